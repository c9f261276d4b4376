package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies the failures surfaced by the resolution core.
type ErrorKind string

const (
	ErrInputInvalid          ErrorKind = "INPUT_INVALID"
	ErrNotFound              ErrorKind = "NOT_FOUND"
	ErrStateInvalid          ErrorKind = "STATE_INVALID"
	ErrLockAcquisitionFailed ErrorKind = "LOCK_ACQUISITION_FAILED"
	ErrMergeFailed           ErrorKind = "MERGE_FAILED"
	ErrBatchMemoryExceeded   ErrorKind = "BATCH_MEMORY_EXCEEDED"
	ErrBatchTooLarge         ErrorKind = "BATCH_TOO_LARGE"
	ErrStoreUnavailable      ErrorKind = "STORE_UNAVAILABLE"
	ErrLLMUnavailable        ErrorKind = "LLM_UNAVAILABLE"
)

// Error is the typed error returned across the core's boundaries. Step is
// populated by the merge engine with the name of the step that failed.
type Error struct {
	Kind    ErrorKind
	Message string
	Step    string
	cause   error
}

func (e *Error) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s at step %q: %s", e.Kind, e.Step, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewError creates a typed core error.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps a cause with a typed kind.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// NewMergeError names the merge step that failed.
func NewMergeError(step string, cause error) *Error {
	msg := "merge step failed"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: ErrMergeFailed, Message: msg, Step: step, cause: cause}
}

// KindOf extracts the error kind, or "" for untyped errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error kind to the status code used at the REST boundary.
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case ErrInputInvalid, ErrBatchTooLarge:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrStateInvalid:
		return http.StatusConflict
	case ErrLockAcquisitionFailed:
		return http.StatusLocked
	case ErrBatchMemoryExceeded:
		return http.StatusRequestEntityTooLarge
	case ErrStoreUnavailable, ErrLLMUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
