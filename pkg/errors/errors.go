package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Domain errors
	ErrorTypeValidation     ErrorType = "VALIDATION"
	ErrorTypeNotFound       ErrorType = "NOT_FOUND"
	ErrorTypeConflict       ErrorType = "CONFLICT"
	ErrorTypeStaleReference ErrorType = "STALE_REFERENCE"

	// Application errors
	ErrorTypeInternal       ErrorType = "INTERNAL"
	ErrorTypeTimeout        ErrorType = "TIMEOUT"
	ErrorTypeUnavailable    ErrorType = "UNAVAILABLE"
	ErrorTypeNotReady       ErrorType = "NOT_READY"
	ErrorTypeSaveInProgress ErrorType = "SAVE_IN_PROGRESS"

	// Infrastructure errors
	ErrorTypeDatabase     ErrorType = "DATABASE"
	ErrorTypeWriteFailure ErrorType = "WRITE_FAILURE"
	ErrorTypeNetwork      ErrorType = "NETWORK"
	ErrorTypeExternal     ErrorType = "EXTERNAL"
)

// AppError represents an application-specific error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails adds error details
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var sb strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&sb, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return sb.String()
}

func newError(t ErrorType, status int, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		HTTPStatus: status,
		StackTrace: captureStackTrace(),
	}
}

// Constructor functions for common error types

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", resource))
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return newError(ErrorTypeConflict, http.StatusConflict, message)
}

// NewStaleReferenceError reports an id that points at a node or article which no longer exists
func NewStaleReferenceError(kind, id string) *AppError {
	return newError(ErrorTypeStaleReference, http.StatusGone, fmt.Sprintf("%s '%s' no longer exists", kind, id)).
		WithDetails(map[string]interface{}{"kind": kind, "id": id})
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(operation string) *AppError {
	return newError(ErrorTypeTimeout, http.StatusRequestTimeout, fmt.Sprintf("operation '%s' timed out", operation))
}

// NewUnavailableError creates a service unavailable error
func NewUnavailableError(service string) *AppError {
	return newError(ErrorTypeUnavailable, http.StatusServiceUnavailable, fmt.Sprintf("service '%s' is unavailable", service))
}

// NewNotReadyError is returned by remote-facing operations invoked before the
// subscription has delivered its first snapshot
func NewNotReadyError(operation string) *AppError {
	return newError(ErrorTypeNotReady, http.StatusServiceUnavailable, fmt.Sprintf("cannot %s before the graph is synced", operation))
}

// NewSaveInProgressError is returned when a save is requested while another one is in flight
func NewSaveInProgressError() *AppError {
	return newError(ErrorTypeSaveInProgress, http.StatusConflict, "a save is already in progress")
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, err error) *AppError {
	return newError(ErrorTypeDatabase, http.StatusInternalServerError, fmt.Sprintf("database operation '%s' failed", operation)).
		WithCause(err)
}

// NewWriteFailureError reports a rejected save or update. Local state is untouched and the caller may retry.
func NewWriteFailureError(operation string, err error) *AppError {
	return newError(ErrorTypeWriteFailure, http.StatusBadGateway, fmt.Sprintf("write '%s' was rejected", operation)).
		WithCause(err)
}

// NewNetworkError creates a network error
func NewNetworkError(message string, err error) *AppError {
	return newError(ErrorTypeNetwork, http.StatusBadGateway, message).WithCause(err)
}

// NewExternalError creates an external service error
func NewExternalError(service string, err error) *AppError {
	return newError(ErrorTypeExternal, http.StatusBadGateway, fmt.Sprintf("external service '%s' error", service)).
		WithCause(err)
}

// Helper functions

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return IsType(err, ErrorTypeConflict)
}

// IsWriteFailure checks if an error is a write failure
func IsWriteFailure(err error) bool {
	return IsType(err, ErrorTypeWriteFailure)
}

// IsStaleReference checks if an error is a stale reference error
func IsStaleReference(err error) bool {
	return IsType(err, ErrorTypeStaleReference)
}

// IsNotReady checks if an error is a not ready error
func IsNotReady(err error) bool {
	return IsType(err, ErrorTypeNotReady)
}

// IsSaveInProgress checks if an error is a save in progress error
func IsSaveInProgress(err error) bool {
	return IsType(err, ErrorTypeSaveInProgress)
}

// IsRetryable reports whether the operation may succeed if repeated
func IsRetryable(err error) bool {
	switch {
	case IsWriteFailure(err), IsNotReady(err), IsSaveInProgress(err):
		return true
	case IsType(err, ErrorTypeTimeout), IsType(err, ErrorTypeUnavailable), IsType(err, ErrorTypeNetwork):
		return true
	default:
		return false
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}

	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
