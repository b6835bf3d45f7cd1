package otp

import (
	"errors"
	"strings"
)

// Sentinel errors for the OTP service; the HTTP handler maps them to status codes with errors.Is.
var (
	// ErrRateLimited is returned when a live code already exists for the identifier, role and channel.
	ErrRateLimited = errors.New("otp already sent")
	// ErrDeliveryFailed is returned when the code was stored but could not be sent.
	ErrDeliveryFailed = errors.New("otp delivery failed")
	// ErrUserNotFound is returned when a staff identity must pre-exist and does not.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccessCodeNotFound is returned when no access code exists for the submitted id.
	ErrAccessCodeNotFound = errors.New("access code not found")
	// ErrInvalidOrExpired is returned for any failed validity check. It never says which check failed.
	ErrInvalidOrExpired = errors.New("invalid or expired otp")
)

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned for malformed requests.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalidField(field, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}
