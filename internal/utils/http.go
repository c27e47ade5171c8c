// Package utils provides utility functions used throughout the application.
package utils

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// APIResponse represents a standard API response.
type APIResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
	Error   any  `json:"error,omitempty"`
}

// ValidationErrorItem represents a single validation error.
type ValidationErrorItem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RespondWithJSON sends a JSON response with the given status code and data.
func RespondWithJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// If encoding fails, log error and send simple error message
			GetLogger().Error("Failed to encode JSON response", err)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
		}
	}
}

// RespondWithError sends an error response with the given status code and message.
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	response := APIResponse{
		Success: false,
		Error: map[string]string{
			"message": message,
		},
	}
	RespondWithJSON(w, statusCode, response)
}

// RespondWithValidationError sends a validation error response.
func RespondWithValidationError(w http.ResponseWriter, err error) {
	var validationErrors []ValidationErrorItem

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			field := e.Field()
			// Convert field name to camelCase for JSON
			if len(field) > 0 {
				field = string(field[0]-'A'+'a') + field[1:]
			}

			var message string
			switch e.Tag() {
			case "required":
				message = field + " is required"
			case "min":
				message = field + " must be at least " + e.Param()
			case "max":
				message = field + " must be at most " + e.Param()
			case "month_key":
				message = field + " must be a first-of-month date (YYYY-MM-01)"
			case "share_token":
				message = field + " must be a valid share token"
			case "user_hash":
				message = field + " must be a 64-character hex digest"
			default:
				message = field + " failed validation: " + e.Tag()
			}

			validationErrors = append(validationErrors, ValidationErrorItem{
				Field:   field,
				Message: message,
			})
		}
	} else {
		// If it's not a validation error, treat it as a general error
		validationErrors = append(validationErrors, ValidationErrorItem{
			Field:   "general",
			Message: err.Error(),
		})
	}

	response := APIResponse{
		Success: false,
		Error: map[string]any{
			"message": "Validation failed",
			"errors":  validationErrors,
		},
	}

	RespondWithJSON(w, http.StatusBadRequest, response)
}

// DecodeJSONBody decodes a JSON request body into dst, transparently
// decompressing gzip bodies. The body is capped at maxBytes; exceeding it
// returns an error rather than silently truncating.
func DecodeJSONBody(r *http.Request, dst any, maxBytes int64) error {
	body := http.MaxBytesReader(nil, r.Body, maxBytes)

	encoding := strings.ToLower(r.Header.Get("Content-Encoding"))
	switch encoding {
	case "", "identity":
		return json.NewDecoder(body).Decode(dst)
	case "gzip":
		gz, err := gzip.NewReader(body)
		if err != nil {
			return fmt.Errorf("invalid gzip body: %w", err)
		}
		defer gz.Close()
		return json.NewDecoder(gz).Decode(dst)
	default:
		return fmt.Errorf("unsupported content encoding %q", encoding)
	}
}
