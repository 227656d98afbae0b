package collab

import (
	"errors"
	"fmt"

	"github.com/colonyops/huddle/internal/core/comment"
	"github.com/colonyops/huddle/internal/core/session"
	"github.com/colonyops/huddle/internal/core/suggestion"
	"github.com/colonyops/huddle/internal/core/version"
)

// Code classifies an error for the wire.
type Code string

const (
	CodeValidation   Code = "validation"
	CodeNotFound     Code = "not_found"
	CodeUnauthorized Code = "unauthorized"
	CodeUnavailable  Code = "unavailable" // storage busy; the request may be retried
	CodeInternal     Code = "internal"
)

// Error is a request failure reported to the sender only.
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

func (e *Error) Unwrap() error { return e.Err }

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: CodeValidation, Message: err.Error(), Err: err}
}

func unauthorized(format string, args ...any) error {
	return &Error{Code: CodeUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// CodeOf maps an error returned by the Service to its wire code.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	var tmp interface{ Temporary() bool }
	if errors.As(err, &tmp) && tmp.Temporary() {
		return CodeUnavailable
	}

	switch {
	case errors.Is(err, comment.ErrNotFound),
		errors.Is(err, suggestion.ErrNotFound),
		errors.Is(err, version.ErrNotFound),
		errors.Is(err, session.ErrNotFound),
		errors.Is(err, session.ErrNotMember):
		return CodeNotFound
	default:
		return CodeInternal
	}
}

// MessageOf returns the client-facing message for an error. Internal errors
// are not described to clients.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	switch CodeOf(err) {
	case CodeNotFound:
		return err.Error()
	case CodeUnavailable:
		return "storage busy, try again"
	}
	return "internal error"
}

// BadRequest reports a frame that could not be decoded or routed.
func BadRequest(format string, args ...any) error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}
