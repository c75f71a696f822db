// Package errors defines the structured error type used across archsetup.
//
// Every error carries a stable ErrorCode so callers and tests can branch on
// the failure category without matching message text. Codes are grouped by
// the failure taxonomy the pipeline acts on: startup validation, task
// execution, transient install, backup integrity.
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
	ErrFileAccess   ErrorCode = "FILE_ACCESS"

	// Startup validation errors. These always abort before any task runs.
	ErrPrivilege           ErrorCode = "PRIVILEGE"
	ErrUserUnknown         ErrorCode = "USER_UNKNOWN"
	ErrUnsupportedPlatform ErrorCode = "UNSUPPORTED_PLATFORM"
	ErrNoNetwork           ErrorCode = "NO_NETWORK"
	ErrNotInteractive      ErrorCode = "NOT_INTERACTIVE"
	ErrConfigLoad          ErrorCode = "CONFIG_LOAD"
	ErrConfigParse         ErrorCode = "CONFIG_PARSE"
	ErrConfigInvalid       ErrorCode = "CONFIG_INVALID"

	// Task errors
	ErrTaskExecute ErrorCode = "TASK_EXECUTE"
	ErrTaskSkipped ErrorCode = "TASK_SKIPPED"

	// Install errors
	ErrInstallTransient ErrorCode = "INSTALL_TRANSIENT"
	ErrInstallFailed    ErrorCode = "INSTALL_FAILED"

	// Backup errors
	ErrBackupIntegrity ErrorCode = "BACKUP_INTEGRITY"
	ErrBackupRestore   ErrorCode = "BACKUP_RESTORE"

	// Run control
	ErrInterrupted ErrorCode = "INTERRUPTED"
)

var startupCodes = map[ErrorCode]bool{
	ErrPrivilege:           true,
	ErrUserUnknown:         true,
	ErrUnsupportedPlatform: true,
	ErrNoNetwork:           true,
	ErrNotInteractive:      true,
	ErrConfigLoad:          true,
	ErrConfigParse:         true,
	ErrConfigInvalid:       true,
}

// Error represents a structured error with code and details
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *Error) Is(target error) bool {
	var targetErr *Error
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new Error with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with an Error
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithDetails adds multiple details to the error
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not an Error
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details from an error, or nil if not an Error
func GetErrorDetails(err error) map[string]interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// IsStartupValidation reports whether err belongs to the startup validation
// category. Such errors abort the run before any task executes.
func IsStartupValidation(err error) bool {
	return startupCodes[GetErrorCode(err)]
}

// GetErrorMessage returns the message of an Error without its cause, or
// err.Error() for other errors.
func GetErrorMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
