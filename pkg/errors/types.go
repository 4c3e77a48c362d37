package errors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a pipeline failure for retry and reporting decisions
type ErrorCode string

const (
	// Resource errors
	ErrCodeNotFound ErrorCode = "NOT_FOUND" // master missing: benign, no retry

	// Configuration errors
	ErrCodeConfigInvalid   ErrorCode = "CONFIG_INVALID"   // bad tunables: fatal, not retryable
	ErrCodeUnknownProvider ErrorCode = "UNKNOWN_PROVIDER" // provider name not registered: fatal

	// External collaborator errors
	ErrCodeTransientExternal ErrorCode = "TRANSIENT_EXTERNAL" // transcode/provider/storage: retryable
	ErrCodeQuotaExceeded     ErrorCode = "QUOTA_EXCEEDED"     // business rejection: needs user action

	// Output integrity errors
	ErrCodeIntegrity ErrorCode = "INTEGRITY" // manifest/entry point missing after packaging

	// Internal errors
	ErrCodeDatabase ErrorCode = "DATABASE"
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// AppError represents a structured application error
type AppError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Retryable reports whether the queue layer should retry a job that failed
// with this error. Not-found, configuration, quota, and integrity failures
// will not get better on retry.
func (e *AppError) Retryable() bool {
	switch e.Code {
	case ErrCodeNotFound, ErrCodeConfigInvalid, ErrCodeUnknownProvider, ErrCodeQuotaExceeded, ErrCodeIntegrity:
		return false
	default:
		return true
	}
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(cause error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(cause error, code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Common error constructors

// NotFound creates a not found error
func NotFound(resource string, id interface{}) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

// UnknownProvider creates a configuration error for an unregistered provider name
func UnknownProvider(name string) *AppError {
	return New(ErrCodeUnknownProvider, fmt.Sprintf("unknown transcription provider %q", name)).
		WithDetail("provider", name)
}

// QuotaExceeded creates a quota rejection error
func QuotaExceeded(userID uint, seconds int) *AppError {
	return New(ErrCodeQuotaExceeded, "transcription quota exceeded").
		WithDetail("user_id", userID).
		WithDetail("audio_seconds", seconds)
}

// ExternalError creates a transient external collaborator error
func ExternalError(service string, cause error) *AppError {
	return Wrap(cause, ErrCodeTransientExternal, fmt.Sprintf("external service '%s' error", service)).
		WithDetail("service", service)
}

// IntegrityError creates an output integrity error
func IntegrityError(message string) *AppError {
	return New(ErrCodeIntegrity, message)
}

// DatabaseError creates a database error
func DatabaseError(operation string, cause error) *AppError {
	return Wrap(cause, ErrCodeDatabase, fmt.Sprintf("database %s failed", operation)).
		WithDetail("operation", operation)
}

// Is checks if an error carries a specific code
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}
