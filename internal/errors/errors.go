// Package errors provides structured errors for agentop.
//
// The codes map failures to how the dashboard treats them: a SOURCE error
// degrades one widget, a RUNTIME error flips the connectivity indicator, a
// RENDER error is swallowed at the output boundary, and only CONFIG and
// DAEMON errors ever reach the user as process-terminating messages.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrConfig  = "CONFIG"  // settings file unreadable or invalid
	ErrSource  = "SOURCE"  // a sampler's underlying command/API failed or timed out
	ErrRuntime = "RUNTIME" // agent runtime status source unreachable
	ErrRender  = "RENDER"  // output stream write failure
	ErrDaemon  = "DAEMON"  // background process lifecycle failure
)

// Error represents a structured error with code, message, suggestion, and
// optional cause.
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrSource code.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrSource,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Error implements the error interface with formatted output.
func (e *Error) Error() string {
	var b strings.Builder

	// First line: failure symbol + main message
	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	// Include cause if present (why it failed)
	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	// Include suggestion if present (how to fix)
	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var aErr *Error
	if errors.As(err, &aErr) {
		return aErr.Code == code
	}
	return false
}
