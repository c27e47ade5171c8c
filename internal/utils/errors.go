// Package utils provides utility functions used throughout the application.
package utils

import (
	"errors"
	"net/http"
)

// ErrRateLimited is returned when a client exceeds its request budget.
var ErrRateLimited = errors.New("rate limit exceeded")

// ErrorResponse renders the standard error envelope for failures raised in
// middleware, before a request reaches the domain error mapping.
func ErrorResponse(err error) map[string]any {
	code := http.StatusInternalServerError
	if errors.Is(err, ErrRateLimited) {
		code = http.StatusTooManyRequests
	}

	return map[string]any{
		"success": false,
		"error": map[string]any{
			"code":    code,
			"message": err.Error(),
		},
	}
}
