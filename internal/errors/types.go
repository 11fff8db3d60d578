// Package errors defines the error taxonomy of the preview pipeline.
//
// Resolution failures (not_found, file_unavailable, resolution) surface to
// HTTP callers as 404 with a human-readable reason. Failures of the generated
// code itself never reach Go: they are caught by the preview document's
// runtime and rendered in place.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeFileUnavailable ErrorType = "file_unavailable"
	ErrorTypeResolution      ErrorType = "resolution"
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeIO              ErrorType = "io"
	ErrorTypeConfig          ErrorType = "config"
	ErrorTypeInternal        ErrorType = "internal"
)

// PreviewError is a structured error type with context.
type PreviewError struct {
	Type      ErrorType
	Code      string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Component string
	// Retryable marks errors the resolver may retry (registry mid-write).
	Retryable bool
}

// Error implements the error interface.
func (e *PreviewError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Reason returns the message without code or cause decoration. It is the
// body of 404 responses.
func (e *PreviewError) Reason() string {
	return e.Message
}

// Unwrap returns the underlying cause error.
func (e *PreviewError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *PreviewError) Is(target error) bool {
	var t *PreviewError
	if errors.As(target, &t) {
		return e.Type == t.Type && (t.Code == "" || e.Code == t.Code)
	}

	return false
}

// WithContext adds context information to the error.
func (e *PreviewError) WithContext(key string, value interface{}) *PreviewError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithComponent adds component context.
func (e *PreviewError) WithComponent(component string) *PreviewError {
	e.Component = component

	return e
}

// Sentinels for errors.Is matching on type alone.
var (
	ErrNotFound        = &PreviewError{Type: ErrorTypeNotFound}
	ErrFileUnavailable = &PreviewError{Type: ErrorTypeFileUnavailable}
	ErrResolution      = &PreviewError{Type: ErrorTypeResolution}
	ErrValidation      = &PreviewError{Type: ErrorTypeValidation}
)

// NewNotFoundError creates a resolution-not-found error.
func NewNotFoundError(code, message string) *PreviewError {
	return &PreviewError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
	}
}

// NewFileUnavailableError reports a registry entry whose source could not be read.
func NewFileUnavailableError(code, message string, cause error) *PreviewError {
	return &PreviewError{
		Type:      ErrorTypeFileUnavailable,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: true,
	}
}

// NewResolutionError reports a registry that could not be read or parsed.
func NewResolutionError(code, message string, cause error) *PreviewError {
	return &PreviewError{
		Type:      ErrorTypeResolution,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: true,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *PreviewError {
	return &PreviewError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *PreviewError {
	return &PreviewError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *PreviewError {
	return &PreviewError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *PreviewError {
	return &PreviewError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsRetryable checks if an error may succeed on a later attempt.
func IsRetryable(err error) bool {
	var pe *PreviewError
	if errors.As(err, &pe) {
		return pe.Retryable
	}

	return false
}

// IsResolutionFailure reports whether err belongs to the resolver's
// taxonomy, which the HTTP layer renders as 404.
func IsResolutionFailure(err error) bool {
	var pe *PreviewError
	if errors.As(err, &pe) {
		switch pe.Type {
		case ErrorTypeNotFound, ErrorTypeFileUnavailable, ErrorTypeResolution:
			return true
		}
	}

	return false
}

// HTTPStatus maps an error to the status code the server responds with.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if IsResolutionFailure(err) {
		return http.StatusNotFound
	}

	var pe *PreviewError
	if errors.As(err, &pe) && pe.Type == ErrorTypeValidation {
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

// Reason returns the human-readable reason for err. For PreviewErrors this is
// the bare message; other errors use their Error string.
func Reason(err error) string {
	var pe *PreviewError
	if errors.As(err, &pe) {
		return pe.Reason()
	}

	return err.Error()
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// ErrorHandler provides centralized error logging.
type ErrorHandler struct {
	logger Logger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs an error at a level matching its type. Resolution failures are
// expected under write races and log as warnings.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var pe *PreviewError
	if !errors.As(err, &pe) {
		h.logger.Error(ctx, err, "Unexpected error")
		return
	}

	fields := []interface{}{"type", string(pe.Type), "code", pe.Code}
	if pe.Component != "" {
		fields = append(fields, "component", pe.Component)
	}
	for k, v := range pe.Context {
		fields = append(fields, k, v)
	}

	if IsResolutionFailure(pe) || pe.Type == ErrorTypeValidation {
		h.logger.Warn(ctx, err, pe.Message, fields...)
		return
	}
	h.logger.Error(ctx, err, pe.Message, fields...)
}
