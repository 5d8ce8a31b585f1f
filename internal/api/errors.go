package api

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest = errors.New("invalid_request")
	// ErrBusy is returned when no generation slot frees up before the
	// request is cancelled.
	ErrBusy = errors.New("server_busy")
)

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

func newInvalidRequestf(format string, args ...any) error {
	return invalidRequestError{msg: fmt.Sprintf(format, args...)}
}
