// Package utils provides utility functions used throughout the application.
package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"
)

// GenerateRandomBytes generates n random bytes
func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		return nil, err
	}

	return b, nil
}

// GenerateShareToken generates an unpadded base64url token from 16 random
// bytes, the form used in share links.
func GenerateShareToken() (string, error) {
	b, err := GenerateRandomBytes(16)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// BuildVersion reports the module version and VCS revision baked into the
// binary. Version falls back to "dev" for local builds; revision may be
// empty.
func BuildVersion() (version, revision string) {
	version = "dev"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version, ""
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" {
			revision = setting.Value
			if len(revision) > 12 {
				revision = revision[:12]
			}
		}
	}
	return version, revision
}

// ParseDate parses a YYYY-MM-DD query parameter. A missing or malformed
// value yields the zero time, which filters treat as unbounded.
func ParseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// TruncateString truncates a string to the specified max length with ellipsis
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	return s[:maxLen-3] + "..."
}

// FormatListeningTime formats milliseconds into a human-readable span like
// "1,234 hours" or "45 minutes" for short totals.
func FormatListeningTime(ms int64) string {
	minutes := ms / (1000 * 60)
	if minutes < 60 {
		return fmt.Sprintf("%d minutes", minutes)
	}
	hours := minutes / 60
	return fmt.Sprintf("%s hours", GroupThousands(hours))
}

// GroupThousands renders an integer with comma separators.
func GroupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}

// GetRequestIP gets the client IP address from the request
func GetRequestIP(r *http.Request) string {
	// Check X-Forwarded-For header first (for proxies)
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		// If no proxy, get the remote address
		ip = r.RemoteAddr
	}

	// If there are multiple IPs in X-Forwarded-For, get the first one
	if strings.Contains(ip, ",") {
		ip = strings.TrimSpace(strings.Split(ip, ",")[0])
	}

	// Remove port number if present
	if strings.Contains(ip, ":") {
		ip = strings.Split(ip, ":")[0]
	}

	return ip
}

func ParseRedisInfo(info string) map[string]string {
	parsedInfo := make(map[string]string)
	lines := strings.SplitSeq(info, "\n")
	for line := range lines {
		if strings.Contains(line, ":") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				parsedInfo[parts[0]] = parts[1]
			}
		}
	}
	return parsedInfo
}
