// Package errors provides structured error handling for opgate.
//
// Errors carry a category (ErrorType), an optional cause, free-form details and
// the call stack at creation. Errors produced by connectors travel through the
// operation dispatch layer untouched, so callers can match them with the
// standard errors.Is / errors.As functions.
package errors

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound represents resource not found errors
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeConflict represents conflict errors
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeConnection represents connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeAuthentication represents authentication errors
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeCapability represents operations a connector does not support
	ErrorTypeCapability ErrorType = "capability"
	// ErrorTypeHealth represents failed connector liveness checks
	ErrorTypeHealth ErrorType = "health"
	// ErrorTypeQuery represents query execution errors
	ErrorTypeQuery ErrorType = "query"
	// ErrorTypePoolExhausted is returned when no pooled connector became
	// available within the configured wait.
	ErrorTypePoolExhausted ErrorType = "pool_exhausted"
	// ErrorTypePoolUnavailable is returned when borrowing from a closed pool.
	ErrorTypePoolUnavailable ErrorType = "pool_unavailable"
)

// retryable lists the types worth another attempt with the same input.
var retryable = map[ErrorType]bool{
	ErrorTypeTimeout:       true,
	ErrorTypeConnection:    true,
	ErrorTypePoolExhausted: true,
}

// Error is a categorized error. Cause, when set, stays reachable through
// errors.Is and errors.As.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame is one caller recorded when the error was created.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Type) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Format prints the message for %s and %v. %+v adds details and the stack.
func (e *Error) Format(f fmt.State, verb rune) {
	switch {
	case verb == 'v' && f.Flag('+'):
		_, _ = io.WriteString(f, e.Error())
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_, _ = fmt.Fprintf(f, "\n  %s=%v", k, e.Details[k])
		}
		for _, fr := range e.Stack {
			_, _ = fmt.Fprintf(f, "\n%s\n\t%s:%d", fr.Function, fr.File, fr.Line)
		}
	case verb == 'v' || verb == 's':
		_, _ = io.WriteString(f, e.Error())
	case verb == 'q':
		_, _ = fmt.Fprintf(f, "%q", e.Error())
	}
}

// WithDetail records key=value on e and returns e.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{}, 1)
	}
	e.Details[key] = value
	return e
}

// New creates an error of the given type.
func New(errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message, Stack: captureStack(3)}
}

// Newf creates an error of the given type with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: errType, Message: fmt.Sprintf(format, args...), Stack: captureStack(3)}
}

// Wrap categorizes err. A nil err gives nil. When err already carries a
// stack it is reused so the trace points at the original failure.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}
	wrapped := &Error{Type: errType, Message: message, Cause: err}
	var inner *Error
	if errors.As(err, &inner) && len(inner.Stack) > 0 {
		wrapped.Stack = inner.Stack
	} else {
		wrapped.Stack = captureStack(3)
	}
	return wrapped
}

// TypeOf returns the type of the outermost *Error in err's chain, or "" when
// there is none.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// IsRetryable reports whether the operation may succeed if attempted again.
func IsRetryable(err error) bool {
	return retryable[TypeOf(err)]
}

// IsPoolExhausted reports whether err signals an exhausted connector pool.
func IsPoolExhausted(err error) bool {
	return IsType(err, ErrorTypePoolExhausted)
}

// IsPoolUnavailable reports whether err signals a closed connector pool.
func IsPoolUnavailable(err error) bool {
	return IsType(err, ErrorTypePoolUnavailable)
}

func captureStack(skip int) []StackFrame {
	var pcs [32]uintptr
	n := runtime.Callers(skip, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	stack := make([]StackFrame, 0, n)
	for {
		fr, more := frames.Next()
		if fr.Function != "" {
			stack = append(stack, StackFrame{Function: fr.Function, File: fr.File, Line: fr.Line})
		}
		if !more {
			return stack
		}
	}
}
