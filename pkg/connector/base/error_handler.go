package base

import (
	"context"
	stderrors "errors"
	"net"
	"strings"

	"github.com/ajitpratap0/opgate/pkg/errors"
)

// ErrorHandler classifies driver errors.
type ErrorHandler struct{}

// NewErrorHandler creates a new error handler
func NewErrorHandler() *ErrorHandler {
	return &ErrorHandler{}
}

var nonRetryable = []string{
	"invalid credentials",
	"authentication failed",
	"password authentication",
	"access denied",
	"unauthorized",
	"forbidden",
	"not found",
	"does not exist",
	"bad request",
	"invalid configuration",
	"unsupported",
}

var retryable = []string{
	"timeout",
	"connection refused",
	"connection reset",
	"broken pipe",
	"temporary failure",
	"service unavailable",
	"too many requests",
	"too many connections",
	"throttl",
	"i/o error",
	"eof",
}

// ShouldRetry determines if an error should be retried
func (eh *ErrorHandler) ShouldRetry(err error) bool {
	if err == nil || stderrors.Is(err, context.Canceled) {
		return false
	}

	var typed *errors.Error
	if stderrors.As(err, &typed) {
		return errors.IsRetryable(err)
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range nonRetryable {
		if strings.Contains(errStr, pattern) {
			return false
		}
	}
	for _, pattern := range retryable {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// Classify wraps err in a typed error chosen from its shape. Typed errors and
// context errors are returned unchanged.
func (eh *ErrorHandler) Classify(err error, message string) error {
	if err == nil {
		return nil
	}
	var typed *errors.Error
	if stderrors.As(err, &typed) {
		return err
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Wrap(err, eh.categorize(err), message)
}

func (eh *ErrorHandler) categorize(err error) errors.ErrorType {
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		if netErr.Timeout() {
			return errors.ErrorTypeTimeout
		}
		return errors.ErrorTypeConnection
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout"):
		return errors.ErrorTypeTimeout
	case strings.Contains(errStr, "auth") || strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "access denied") || strings.Contains(errStr, "forbidden"):
		return errors.ErrorTypeAuthentication
	case strings.Contains(errStr, "connection") || strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "eof"):
		return errors.ErrorTypeConnection
	case strings.Contains(errStr, "not found") || strings.Contains(errStr, "does not exist") ||
		strings.Contains(errStr, "no such"):
		return errors.ErrorTypeNotFound
	case strings.Contains(errStr, "duplicate") || strings.Contains(errStr, "already exists") ||
		strings.Contains(errStr, "conflict"):
		return errors.ErrorTypeConflict
	default:
		return errors.ErrorTypeQuery
	}
}
