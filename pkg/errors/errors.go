package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeInvalidParams indicates a malformed request parameter
	ErrorTypeInvalidParams ErrorType = "INVALID_PARAMS"

	// ErrorTypeQueryTooShort indicates a query below the minimum length
	// with no filter to narrow it
	ErrorTypeQueryTooShort ErrorType = "QUERY_TOO_SHORT"

	// ErrorTypeServer indicates an underlying lookup failure
	ErrorTypeServer ErrorType = "SERVER_ERROR"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error

	// Guidance marks conditions the caller should render as advice
	// ("type at least 3 characters") rather than as a failure.
	Guidance bool
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewInvalidParamsError creates a new invalid parameter error
func NewInvalidParamsError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeInvalidParams,
		Message: message,
	}
}

// NewQueryTooShortError creates a guidance error for short queries
func NewQueryTooShortError(minLength int) *AppError {
	return &AppError{
		Type:     ErrorTypeQueryTooShort,
		Message:  fmt.Sprintf("query must be at least %d characters", minLength),
		Guidance: true,
	}
}

// NewServerError creates a new server error
func NewServerError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeServer,
		Message: message,
		Err:     err,
	}
}

// As extracts an *AppError from err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of type t
func IsType(err error, t ErrorType) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == t
}
