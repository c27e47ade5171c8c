// Package utils provides utility functions used throughout the application.
package utils

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// multipleSpacesRegex matches multiple spaces
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)

// SanitizeDisplayName normalizes an artist or track name from an untrusted
// export for display: control characters stripped, whitespace collapsed and
// the result length-capped. Returns the cleaned name, possibly empty.
func SanitizeDisplayName(name string, maxLen int) string {
	name = StripNonPrintable(name)
	name = multipleSpacesRegex.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	if maxLen > 0 && len(name) > maxLen {
		name = TruncateString(name, maxLen)
	}
	return name
}

// EscapeHTML escapes HTML special characters
func EscapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&#39;")

	return s
}

// StripNonPrintable removes non-printable characters from a string
func StripNonPrintable(s string) string {
	result := strings.Builder{}
	for _, r := range s {
		if unicode.IsPrint(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
