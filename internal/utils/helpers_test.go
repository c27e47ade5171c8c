package utils

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildVersion(t *testing.T) {
	version, _ := BuildVersion()
	assert.NotEmpty(t, version)
}

func TestFormatListeningTime(t *testing.T) {
	assert.Equal(t, "0 minutes", FormatListeningTime(0))
	assert.Equal(t, "45 minutes", FormatListeningTime(45*60*1000))
	assert.Equal(t, "2 hours", FormatListeningTime(2*3_600_000))
	assert.Equal(t, "1,234 hours", FormatListeningTime(1234*3_600_000))
}

func TestSanitizeDisplayName(t *testing.T) {
	assert.Equal(t, "Sigur R\u00f3s", SanitizeDisplayName("Sigur\x00  R\u00f3s\t", 80))
	assert.Equal(t, "plain", SanitizeDisplayName("plain", 80))
	assert.Equal(t, "", SanitizeDisplayName(" \x01 ", 80))

	assert.Equal(t, "aaaaaaa...", SanitizeDisplayName("aaaaaaaaaaaa", 10))
}

func TestErrorResponseEnvelope(t *testing.T) {
	resp := ErrorResponse(ErrRateLimited)

	assert.Equal(t, false, resp["success"])
	inner, ok := resp["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, inner["code"])
	assert.Equal(t, ErrRateLimited.Error(), inner["message"])
}
