// Package models contains the data structures used throughout the application.
package models

import (
	"errors"
	"maps"
	"net/http"
)

// Common error types for domain-specific errors
var (
	// Session errors
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionNotCompleted = errors.New("session is not completed")
	ErrInvalidShareToken   = errors.New("invalid share token")

	// Upload errors
	ErrEmptyUpload         = errors.New("upload contains no entries")
	ErrPayloadInvalid      = errors.New("upload payload failed validation")
	ErrPayloadTooLarge     = errors.New("upload payload exceeds size limits")
	ErrPayloadNotGzip      = errors.New("upload body is not valid gzip")
	ErrConflictingPayloads = errors.New("upload carries both raw entries and an aggregated result")

	// Community errors
	ErrInsufficientData = errors.New("not enough community data yet")

	// Validation errors
	ErrInvalidInput         = errors.New("invalid input")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidFormat        = errors.New("invalid format")

	// System errors
	ErrInternalServer     = errors.New("internal server error")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
	ErrDatabaseError      = errors.New("database error")
	ErrCacheError         = errors.New("cache error")
)

// DomainError represents an error that occurs in the application domain.
type DomainError struct {
	// Original is the underlying error
	Original error

	// Message is a human-readable error message
	Message string

	// Code is the HTTP status code
	Code int

	// Domain is the area of the application where the error occurred
	Domain string

	// Details contains additional context for the error
	Details map[string]any
}

// Error returns the error message
func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Original.Error()
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Original
}

// NewDomainError creates a new DomainError
func NewDomainError(err error, message string, code int, domain string) *DomainError {
	if message == "" && err != nil {
		message = err.Error()
	}

	return &DomainError{
		Original: err,
		Message:  message,
		Code:     code,
		Domain:   domain,
		Details:  make(map[string]any),
	}
}

// WithDetails adds details to the error
func (e *DomainError) WithDetails(details map[string]any) *DomainError {
	maps.Copy(e.Details, details)
	return e
}

// AddDetail adds a single detail to the error
func (e *DomainError) AddDetail(key string, value any) *DomainError {
	e.Details[key] = value
	return e
}

// NewSessionError creates a session-related domain error
func NewSessionError(err error, message string, code int) *DomainError {
	return NewDomainError(err, message, code, "session")
}

// NewUploadError creates an upload-related domain error
func NewUploadError(err error, message string, code int) *DomainError {
	return NewDomainError(err, message, code, "upload")
}

// NewStatsError creates a stats-related domain error
func NewStatsError(err error, message string, code int) *DomainError {
	return NewDomainError(err, message, code, "stats")
}

// NewValidationError creates a validation-related domain error
func NewValidationError(err error, message string) *DomainError {
	return NewDomainError(err, message, http.StatusUnprocessableEntity, "validation")
}

// NewInternalError creates an internal server error
func NewInternalError(err error, message string) *DomainError {
	if message == "" {
		message = "An internal server error occurred"
	}
	return NewDomainError(err, message, http.StatusInternalServerError, "system")
}

// StatusCodeFor maps domain errors to HTTP status codes.
func StatusCodeFor(err error) int {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	switch {
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrSessionNotCompleted),
		errors.Is(err, ErrInsufficientData):
		return http.StatusNotFound

	case errors.Is(err, ErrInvalidShareToken),
		errors.Is(err, ErrEmptyUpload),
		errors.Is(err, ErrPayloadNotGzip),
		errors.Is(err, ErrConflictingPayloads),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrMissingRequiredField),
		errors.Is(err, ErrInvalidFormat):
		return http.StatusBadRequest

	case errors.Is(err, ErrPayloadInvalid):
		return http.StatusUnprocessableEntity

	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge

	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse represents the standard error response format for APIs
type ErrorResponse struct {
	// Success is always false for error responses
	Success bool `json:"success"`

	// Error contains information about the error
	Error struct {
		// Code is the HTTP status code
		Code int `json:"code"`

		// Message is a human-readable error message
		Message string `json:"message"`

		// Domain is the area of the application where the error occurred
		Domain string `json:"domain,omitempty"`

		// Details contains additional context for the error
		Details map[string]any `json:"details,omitempty"`
	} `json:"error"`
}

// NewErrorResponse creates a new ErrorResponse from an error
func NewErrorResponse(err error) ErrorResponse {
	response := ErrorResponse{
		Success: false,
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		response.Error.Code = domainErr.Code
		response.Error.Message = domainErr.Message
		response.Error.Domain = domainErr.Domain
		response.Error.Details = domainErr.Details
	} else {
		response.Error.Code = StatusCodeFor(err)
		response.Error.Message = err.Error()
	}

	return response
}
