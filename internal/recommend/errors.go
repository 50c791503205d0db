package recommend

import (
	"fmt"

	errors "github.com/Laisky/errors/v2"
)

// ErrorCode identifies a stable lookup error category.
type ErrorCode string

const (
	// ErrCodeDecode marks a malformed payload at any decode boundary.
	ErrCodeDecode ErrorCode = "DECODE_ERROR"
	// ErrCodeFetch marks a network failure or non-2xx answer from the webhook.
	ErrCodeFetch ErrorCode = "FETCH_ERROR"
	// ErrCodeStore marks a read or write failure against the cache store.
	ErrCodeStore ErrorCode = "STORE_ERROR"
)

var (
	// ErrEmptyTerm is returned when the search term is empty or whitespace only.
	ErrEmptyTerm = errors.New("search term is empty")
	// ErrNotFound is returned by stores when no record exists for a term.
	ErrNotFound = errors.New("cache record not found")
	// ErrCanceled is returned when the caller stops waiting for a lookup.
	ErrCanceled = errors.New("lookup canceled")
)

// Error carries a machine-readable code and the underlying cause.
type Error struct {
	Code    ErrorCode
	Message string
	// StatusCode is the webhook HTTP status for fetch errors, zero otherwise.
	StatusCode int
	Err        error
}

// Error renders the error text.
func (e *Error) Error() string {
	if e == nil {
		return "recommend error: <nil>"
	}

	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable reports whether asking again may succeed.
func (e *Error) Retryable() bool {
	return e != nil && e.Code == ErrCodeFetch
}

// NewError constructs a typed lookup error.
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

func decodeError(message string, cause error) *Error {
	return NewError(ErrCodeDecode, message, cause)
}

func storeError(message string, cause error) *Error {
	return NewError(ErrCodeStore, message, cause)
}

// AsError returns a typed lookup error from an error chain when available.
func AsError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	typed := &Error{}
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	typed, ok := AsError(err)
	return ok && typed.Code == code
}
