// Package errorx defines the coded errors returned across nhale. Every error
// that leaves a public API carries one of the codes below so callers can
// branch on the failure class without parsing messages.
package errorx

import (
	"errors"
	"fmt"
)

// Code identifies a class of failure.
type Code string

const (
	// InvalidInput is a malformed argument, carrier or configuration.
	InvalidInput Code = "InvalidInput"
	// InvalidData is a payload that is out of bounds or not decodable.
	InvalidData Code = "InvalidData"
	// Io is a read or write failure of a file or stream.
	Io Code = "Io"
	// Encryption is any key, cipher or padding failure.
	Encryption Code = "Encryption"
	// Integrity is an HMAC mismatch.
	Integrity Code = "Integrity"
	// Encoding is a carrier encode or decode failure.
	Encoding Code = "Encoding"
	// NotImplemented marks a carrier or feature that is declared but absent.
	NotImplemented Code = "NotImplemented"
	// Serialization is a failure to encode or decode a stored record.
	Serialization Code = "Serialization"
	// Internal is used when an error without a code is parsed.
	Internal Code = "Internal"
)

// Error is an error with a code.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error from code and message.
func New(code Code, format string, args ...interface{}) error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a coded error around err. The cause stays reachable through
// errors.Is and errors.As.
func Wrap(err error, code Code, format string, args ...interface{}) error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// Ensure returns err unchanged when it already carries a code, and wraps it
// with the given code otherwise.
func Ensure(err error, code Code, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Wrap(err, code, format, args...)
}

// CodeOf retrieves the outermost code in the error chain, or Internal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Internal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}
