// Package apperr defines the typed failures returned by use cases.
// Every failure carries a stable code, a human message and the HTTP status the boundary must preserve.
package apperr

import "errors"

// Error is a classified use-case failure.
type Error struct {
	Code    Code
	Message string
	// Details is optional structured context (e.g. retryAfter, validation fields).
	Details map[string]any
	cause   error
}

// New returns an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Internal wraps an unexpected failure. The cause is kept for logging and never sent to clients.
func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Message: "Internal server error", cause: err}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.cause.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Kind returns the error kind derived from the code.
func (e *Error) Kind() Kind { return e.Code.Kind() }

// Status returns the HTTP status for the code.
func (e *Error) Status() int { return e.Code.Status() }

// As returns the *Error in err's chain, or an internal Error wrapping err when there is none.
// Returns nil for a nil err.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

// CodeOf returns the code of err, or CodeInternal when err is not an *Error.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}
