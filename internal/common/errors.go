package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Pipeline error kinds
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrExtractionFailure = errors.New("extraction failure")
	ErrInsufficientText  = errors.New("insufficient text")
	ErrSessionNotFound   = errors.New("session not found")
	ErrEmptyMessage      = errors.New("empty message")
	ErrInvalidRole       = errors.New("invalid role")
	ErrUpstream          = errors.New("upstream service failure")
)

// NewAppError builds an AppError.
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// HTTPStatus maps an error onto the status returned at the HTTP boundary.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrInsufficientText),
		errors.Is(err, ErrEmptyMessage),
		errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Detail returns the human-readable message for err. AppError messages are
// preferred over the wrapped chain.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return err.Error()
}

// Stage reports which pipeline stage produced err, for logs.
func Stage(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return "format"
	case errors.Is(err, ErrExtractionFailure), errors.Is(err, ErrInsufficientText):
		return "recognition"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrInvalidRole):
		return "session"
	default:
		return "internal"
	}
}
