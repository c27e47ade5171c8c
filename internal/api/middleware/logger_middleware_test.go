package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/music-livereview/backend/internal/utils"
)

func newTestLoggerMiddleware() *LoggerMiddleware {
	return NewLoggerMiddleware(utils.NewLogger(utils.LoggerOptions{Level: zapcore.ErrorLevel}))
}

func TestLoggerPassesThroughStatus(t *testing.T) {
	h := newTestLoggerMiddleware().Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/community/global", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestLoggerHandlesQuietPaths(t *testing.T) {
	h := newTestLoggerMiddleware().Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/ping", "/health", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
