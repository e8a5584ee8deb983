// Package syncerr classifies failures of the task source and calendar
// collaborators so callers can decide between aborting, retrying, and
// surfacing an operator action.
package syncerr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	// Unknown is the zero kind; errors without a classification.
	Unknown Kind = iota
	// Config means required credentials or configuration are absent.
	Config
	// Upstream means a collaborator returned an error or was unreachable.
	Upstream
	// Busy means a sync run is already in progress.
	Busy
	// Invalid means the caller supplied bad input.
	Invalid
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config_error"
	case Upstream:
		return "upstream_error"
	case Busy:
		return "busy"
	case Invalid:
		return "invalid_argument"
	default:
		return "unknown"
	}
}

func (k Kind) HTTPStatus() int {
	switch k {
	case Config:
		return http.StatusServiceUnavailable
	case Upstream:
		return http.StatusBadGateway
	case Busy:
		return http.StatusConflict
	case Invalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "tasks.search"
	Msg  string // message safe to show to callers
	Err  error  // underlying cause, kept for logs
}

func New(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

func ConfigError(op, msg string, err error) *Error {
	return New(Config, op, msg, err)
}

func UpstreamError(op, msg string, err error) *Error {
	return New(Upstream, op, msg, err)
}

func (e *Error) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Kind)
	if e.Op != "" {
		prefix += " " + e.Op
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", prefix, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", prefix, e.Msg, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return Unknown
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func IsConfig(err error) bool {
	return IsKind(err, Config)
}

func IsUpstream(err error) bool {
	return IsKind(err, Upstream)
}

// Message returns the caller-facing message for err, followed by its
// cause when there is one.
func Message(err error) string {
	var se *Error
	if !errors.As(err, &se) {
		return err.Error()
	}
	if se.Err != nil {
		return fmt.Sprintf("%s: %s", se.Msg, se.Err.Error())
	}
	return se.Msg
}
