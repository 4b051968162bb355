package model

import (
	"fmt"
	"strings"
)

// ErrorCode classifies a console error.
type ErrorCode string

const (
	ErrValidation  ErrorCode = "VALIDATION_ERROR"
	ErrUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// APIError is a structured error shown to the operator.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates an APIError with validation details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

// Fields returns the names of the offending fields, comma separated.
func (e *APIError) Fields() string {
	names := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		if d.Field != "" {
			names = append(names, d.Field)
		}
	}
	return strings.Join(names, ", ")
}
