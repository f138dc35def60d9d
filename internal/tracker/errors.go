package tracker

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected = errors.New("wallet not connected")
	ErrBusy         = errors.New("another draw operation is in flight")
	ErrInvalidDraw  = errors.New("invalid draw request")
)

type ErrorKind string

const (
	KindNotConnected ErrorKind = "not_connected"
	KindNetwork      ErrorKind = "network"
	KindDecode       ErrorKind = "decode"
	KindTimeout      ErrorKind = "timeout"
	KindSubmission   ErrorKind = "submission"
	KindBusy         ErrorKind = "busy"
	KindInvalid      ErrorKind = "invalid_request"
)

// Error is returned by every tracker operation that fails.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a tracker error, or "" for any other error.
func KindOf(err error) ErrorKind {
	var trackerErr *Error
	if errors.As(err, &trackerErr) {
		return trackerErr.Kind
	}
	return ""
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
