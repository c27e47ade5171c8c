// Package middleware contains HTTP middleware for the API.
package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/music-livereview/backend/internal/utils"
)

// quietPaths are probed constantly by infrastructure; logging them is noise.
var quietPaths = map[string]bool{
	"/ping":    true,
	"/health":  true,
	"/metrics": true,
}

// LoggerMiddleware handles request logging for the API.
type LoggerMiddleware struct {
	logger *utils.Logger
}

// NewLoggerMiddleware creates a new logger middleware.
func NewLoggerMiddleware(logger *utils.Logger) *LoggerMiddleware {
	return &LoggerMiddleware{
		logger: logger.Named("http"),
	}
}

// Logger is a middleware that logs HTTP requests. Share tokens are
// capability URLs, so the log line carries the chi route pattern
// ("/api/stats/{token}/overview") rather than the raw path.
func (m *LoggerMiddleware) Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		if quietPaths[r.URL.Path] {
			return
		}

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		fields := []any{
			"method", r.Method,
			"path", path,
			"status", rw.statusCode,
			"duration", time.Since(start).String(),
			"ip", utils.GetRequestIP(r),
			"requestId", chimiddleware.GetReqID(r.Context()),
		}

		if rw.statusCode >= http.StatusInternalServerError {
			m.logger.Warn("HTTP request failed", fields...)
			return
		}
		m.logger.Info("HTTP request", fields...)
	})
}

// responseWriter captures the status code written to the client. Shared with
// the metrics middleware.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
