package errors

import (
	"errors"
)

// Wrap wraps an error with additional context, creating a PreviewError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *PreviewError {
	if err == nil {
		return nil
	}

	var pe *PreviewError
	if errors.As(err, &pe) {
		return &PreviewError{
			Type:      errType,
			Code:      code,
			Message:   message,
			Cause:     pe,
			Context:   pe.Context,
			Component: pe.Component,
			Retryable: pe.Retryable,
		}
	}

	return &PreviewError{
		Type:      errType,
		Code:      code,
		Message:   message,
		Cause:     err,
		Retryable: errType == ErrorTypeResolution || errType == ErrorTypeFileUnavailable,
	}
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, code, message string) *PreviewError {
	return Wrap(err, ErrorTypeIO, code, message)
}

// WrapValidation wraps an error as a validation error
func WrapValidation(err error, code, message string) *PreviewError {
	return Wrap(err, ErrorTypeValidation, code, message)
}

// Is is errors.Is, re-exported so callers need only one errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is errors.As, re-exported so callers need only one errors import.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New.
func New(text string) error {
	return errors.New(text)
}
