// Package errors provides structured error types for octi.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, the HTTP endpoint and the engine
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes map onto the recovery policy applied by the pipeline:
//   - INVALID_*: configuration and input validation failures (fatal)
//   - UNROUTABLE: no path exists for an edge (recoverable with skip/retry)
//   - SOLVER_*: exact optimizer failures (fall back to the heuristic)
//   - CACHE_ERROR: cache unavailable (caching is disabled for the run)
//   - INTERNAL_*: unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidConfig, "unknown base graph type %q", name)
//	if errors.Is(err, errors.ErrCodeInvalidConfig) {
//	    // exit non-zero
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeSolver, origErr, "run %s", solver)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Configuration and input errors
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidGraph  Code = "INVALID_GRAPH"
	ErrCodeInvalidPath   Code = "INVALID_PATH"
	ErrCodeFileNotFound  Code = "FILE_NOT_FOUND"

	// Embedding errors
	ErrCodeUnroutable Code = "UNROUTABLE"
	ErrCodeAborted    Code = "ABORTED"

	// Exact optimizer errors
	ErrCodeSolver        Code = "SOLVER_ERROR"
	ErrCodeSolverTimeout Code = "SOLVER_TIMEOUT"
	ErrCodeInfeasible    Code = "INFEASIBLE"

	// Resource errors
	ErrCodeCache Code = "CACHE_ERROR"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsFatal reports whether err must abort the whole run rather than a single
// attempt. Only configuration errors are fatal.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidConfig, ErrCodeInvalidPath, ErrCodeFileNotFound:
		return true
	}
	return false
}

// IsSolverFailure reports whether err came from the exact optimizer and the
// heuristic result should be used instead.
func IsSolverFailure(err error) bool {
	switch GetCode(err) {
	case ErrCodeSolver, ErrCodeSolverTimeout, ErrCodeInfeasible:
		return true
	}
	return false
}
