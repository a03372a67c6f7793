// Package errors provides application error codes for the sync daemon.
package errors

import "fmt"

// ErrorCode represents a unique, stable error code exposed to callers.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrDuplicate  ErrorCode = "DUPLICATE"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Store errors
	ErrStore      ErrorCode = "STORE_ERROR"
	ErrMigration  ErrorCode = "MIGRATION_FAILED"
	ErrConstraint ErrorCode = "CONSTRAINT_VIOLATION"

	// Sync errors
	ErrOffline       ErrorCode = "OFFLINE"
	ErrTransport     ErrorCode = "TRANSPORT_ERROR"
	ErrSyncConflict  ErrorCode = "SYNC_CONFLICT"
	ErrResolver      ErrorCode = "RESOLVER_ERROR"
	ErrPersistence   ErrorCode = "PERSISTENCE_ERROR"
	ErrSyncFailed    ErrorCode = "SYNC_FAILED"
	ErrSyncInFlight  ErrorCode = "SYNC_IN_PROGRESS"
	ErrRetryExceeded ErrorCode = "RETRY_EXCEEDED"

	// Background/cache errors
	ErrCacheMiss     ErrorCode = "CACHE_MISS"
	ErrReplayFailed  ErrorCode = "REPLAY_FAILED"
	ErrCaptureFailed ErrorCode = "CAPTURE_FAILED"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error is of a specific code.
func Is(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the error code of err, or ErrInternal if err is not an AppError.
func CodeOf(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrInternal
}
