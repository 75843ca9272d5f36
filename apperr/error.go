package apperr

import (
	"errors"
	"fmt"
)

// Error is a failure carrying a Code, a caller-safe message and optional details
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil && !e.Code.IsClient() {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the code's default message
func New(code Code) *Error {
	return &Error{Code: code, Message: code.Message()}
}

// Newf creates an Error with a formatted message
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to err. An *Error already in the chain keeps its own code.
func Wrap(err error, code Code) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	return &Error{Code: code, Message: code.Message(), Err: err}
}

// Wrapf attaches a code and a formatted message to err
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// As extracts an *Error from anywhere in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code of err, treating foreign errors as Internal
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return Internal
}

// PublicMessage is the text safe to return to a caller. Internal faults never
// leak their cause.
func PublicMessage(err error) string {
	e, ok := As(err)
	if !ok {
		return Internal.Message()
	}
	if !e.Code.IsClient() {
		return e.Code.Message()
	}
	return e.Message
}
