package domainerrors

import "errors"

// Code classifies why an agenda operation failed. Handlers map it to a status
// and the realtime hub maps it to a chat_error reason.
type Code string

const (
	// Caller input.
	CodeInvalidInput Code = "invalid_input"     // malformed identifier or request body
	CodeValidation   Code = "validation_failed" // well-formed but breaks an event, invite or message rule

	// Who is asking.
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden" // not the organizer, not a participant, wrong tenant role

	// Stored state.
	CodeNotFound Code = "not_found" // also used for rows owned by another tenant
	CodeConflict Code = "conflict"  // a participation transition that is not allowed

	// Infrastructure.
	CodeInternal Code = "internal_error"
	CodeTimeout  Code = "timeout" // caller context ended inside a transaction

	// Identity directory.
	CodeServiceUnavailable Code = "service_unavailable" // circuit open, fail fast
	CodeCommunication      Code = "communication_error" // timeout, network or unexpected upstream reply
)

// Error carries a Code and a caller-facing message over an optional cause.
// Stores return sentinel errors; services translate them into an Error once.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost domain error in the chain,
// or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
