package domain

import (
	"errors"
	"fmt"
)

// Error codes for the engine's failure taxonomy.
const (
	CodeConfig              = "config"
	CodeHostUnreachable     = "host_unreachable"
	CodeCollectionTimeout   = "collection_timeout"
	CodeRegistryUnavailable = "registry_unavailable"
	CodeUnsupported         = "unsupported"
	CodeScanInProgress      = "scan_in_progress"
	CodeStreamClosed        = "stream_closed"
)

// Error is a coded engine error. Per-host and per-item failures travel as
// values of this type so callers can classify them without string matching.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// NewError creates a coded error with no underlying cause.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an underlying error with a code and message.
func WrapError(err error, code, message string) *Error {
	return &Error{Code: code, Message: message, Cause: err}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode reports whether err is (or wraps) an engine error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
