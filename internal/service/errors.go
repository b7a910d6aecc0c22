package service

import (
	"errors"
	"fmt"

	"tnf-api/internal/store"
)

// Error codes surfaced to API clients.
const (
	ECONFLICT     = "conflict"
	ENOTFOUND     = "not_found"
	EINVALID      = "invalid"
	EUNAUTHORIZED = "unauthorized"
	EFORBIDDEN    = "forbidden"
	EDECLINED     = "payment_declined"
	EUPSTREAM     = "upstream"
	EINTERNAL     = "internal"
)

// Error is a domain error with a client-visible code.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode returns the code of the first *Error in err's chain, or EINTERNAL.
func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the client-safe message of err.
func ErrorMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

func conflict(format string, args ...interface{}) error {
	return &Error{Code: ECONFLICT, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...interface{}) error {
	return &Error{Code: ENOTFOUND, Message: fmt.Sprintf(format, args...)}
}

func invalid(format string, args ...interface{}) error {
	return &Error{Code: EINVALID, Message: fmt.Sprintf(format, args...)}
}

func unauthorized(msg string) error {
	return &Error{Code: EUNAUTHORIZED, Message: msg}
}

func upstream(msg string, err error) error {
	return &Error{Code: EUPSTREAM, Message: msg, Err: err}
}

// storeErr maps store sentinels onto domain errors, keeping the cause.
func storeErr(err error, conflictMsg, notFoundMsg string) error {
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return &Error{Code: ECONFLICT, Message: conflictMsg, Err: err}
	case errors.Is(err, store.ErrNotFound):
		return &Error{Code: ENOTFOUND, Message: notFoundMsg, Err: err}
	}
	return err
}
