// Package utils provides utility functions used throughout the application.
package utils

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// shareTokenRegex matches the unpadded base64url form of a 16-byte token
	shareTokenRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{22}$`)

	// userHashRegex matches a lowercase hex SHA-256 digest
	userHashRegex = regexp.MustCompile(`^[a-f0-9]{64}$`)
)

// Initialize validator with custom validations
func init() {
	validate = validator.New()

	// Register function to get tag name from json tags
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Register custom validation functions
	_ = validate.RegisterValidation("month_key", validateMonthKey)
	_ = validate.RegisterValidation("share_token", validateShareToken)
	_ = validate.RegisterValidation("user_hash", validateUserHash)
}

// Validate performs validation on the given struct and returns validation errors.
func Validate(s any) error {
	return validate.Struct(s)
}

// ValidateVar validates a single variable with the given tag and returns errors.
func ValidateVar(field any, tag string) error {
	return validate.Var(field, tag)
}

// Custom validation functions

// validateMonthKey checks that a string is a first-of-month date, YYYY-MM-01.
func validateMonthKey(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return false
	}
	return t.Day() == 1
}

// validateShareToken checks that a string looks like a share token.
func validateShareToken(fl validator.FieldLevel) bool {
	return shareTokenRegex.MatchString(fl.Field().String())
}

// validateUserHash checks that a string is a hex SHA-256 digest.
func validateUserHash(fl validator.FieldLevel) bool {
	return userHashRegex.MatchString(fl.Field().String())
}

// GetValidator returns the validator instance.
func GetValidator() *validator.Validate {
	return validate
}
