package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// ConfigErrorMessage describes a missing or invalid configuration value.
	ConfigErrorMessage = "invalid configuration"
	// ValidationErrorMessage describes rejected inbound conversation state.
	ValidationErrorMessage = "invalid conversation state"
	// ProviderErrorMessage describes an upstream HTTP or model failure.
	ProviderErrorMessage = "upstream provider failed"
)

// ErrMissingCredential is wrapped by configuration errors raised for empty API keys.
var ErrMissingCredential = errors.New("missing required credential")

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Config marks err as a configuration error. Configuration errors are fatal and never retried.
func Config(err error) *AppError {
	return New(err, http.StatusInternalServerError, ConfigErrorMessage)
}

// MissingCredential builds the configuration error for an empty credential.
func MissingCredential(name string) *AppError {
	return Config(fmt.Errorf("%w: %s", ErrMissingCredential, name))
}

// Validation marks err as a rejected inbound request.
func Validation(err error) *AppError {
	return New(err, http.StatusBadRequest, ValidationErrorMessage)
}

// Provider marks err as an upstream failure.
func Provider(err error) *AppError {
	return New(err, http.StatusBadGateway, ProviderErrorMessage)
}

// StatusOf returns the HTTP status carried by err, or 500 when err is not an AppError.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}
