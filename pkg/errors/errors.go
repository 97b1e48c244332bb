package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"

	// Fatal run-level errors: these abort the run before any mutation
	ErrManifestInvalid   ErrorCode = "MANIFEST_INVALID"
	ErrDirectoryNotFound ErrorCode = "DIRECTORY_NOT_FOUND"
	ErrLockHeld          ErrorCode = "LOCK_HELD"

	// Per-addon recoverable errors: isolated, surfaced in the run report
	ErrResolutionAmbiguous  ErrorCode = "RESOLUTION_AMBIGUOUS"
	ErrNetwork              ErrorCode = "NETWORK_ERROR"
	ErrFetchFailed          ErrorCode = "FETCH_FAILED"
	ErrIntegrityCheckFailed ErrorCode = "INTEGRITY_CHECK_FAILED"
	ErrInvariantViolation   ErrorCode = "INVARIANT_VIOLATION"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"

	// Addon and cache errors
	ErrAddonInvalid ErrorCode = "ADDON_INVALID"
	ErrCacheMissing ErrorCode = "CACHE_MISSING"
	ErrCacheCorrupt ErrorCode = "CACHE_CORRUPT"

	// FileSystem errors
	ErrFileAccess ErrorCode = "FILE_ACCESS"
	ErrFileCopy   ErrorCode = "FILE_COPY"
	ErrFileMove   ErrorCode = "FILE_MOVE"
	ErrDirCreate  ErrorCode = "DIR_CREATE"
)

// WowplugError represents a structured error with code and details
type WowplugError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *WowplugError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *WowplugError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *WowplugError) Is(target error) bool {
	var targetErr *WowplugError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new WowplugError with the given code and message
func New(code ErrorCode, message string) *WowplugError {
	return &WowplugError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new WowplugError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *WowplugError {
	return &WowplugError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a WowplugError
func Wrap(err error, code ErrorCode, message string) *WowplugError {
	if err == nil {
		return nil
	}
	return &WowplugError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *WowplugError {
	if err == nil {
		return nil
	}
	return &WowplugError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *WowplugError) WithDetail(key string, value interface{}) *WowplugError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var werr *WowplugError
	if errors.As(err, &werr) {
		return werr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not
// a WowplugError
func GetErrorCode(err error) ErrorCode {
	var werr *WowplugError
	if errors.As(err, &werr) {
		return werr.Code
	}
	return ErrUnknown
}
