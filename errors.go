package libevents

import (
	"net/url"

	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrDropListener is returned by a listener to remove itself from the queue it is running in.
	// The dispatch pass carries on with the next listener.
	ErrDropListener = errors.New("drop listener")

	ErrInvalidArgument  = errors.New("invalid argument")
	ErrUnsupportedEvent = errors.New("event not supported by host")

	ErrConnectionClosed = errors.New("connection has been closed")
	ErrCannotConnect    = errors.New("connection cannot be established")
	ErrTerminated       = errors.New("program exit")
	ErrRateLimit        = errors.New("rate limit exceeded")
)

// ListenerError is a listener failure surfaced out of a dispatch pass. Listeners queued after
// the failing one did not run.
type ListenerError struct {
	Event string
	Index int
	Err   error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener #%d for event %q failed: %s", e.Index, e.Event, e.Err)
}

func (e *ListenerError) Unwrap() error { return e.Err }

type ErrUnrecoverableConnection struct {
	err error
	url url.URL
}

func (e ErrUnrecoverableConnection) Error() string {
	return fmt.Sprintf("Unrecoverable connection error: %s to %s", e.err, e.url.String())
}

func (e ErrUnrecoverableConnection) Unwrap() error { return e.err }

func WrapErrorUnrecoverableConnection(err error, url url.URL) *ErrUnrecoverableConnection {
	if err == nil {
		return nil
	}
	return &ErrUnrecoverableConnection{
		err: err,
		url: url,
	}
}

// IsDropListener reports whether err asks the dispatcher to remove the running listener.
func IsDropListener(err error) bool {
	return errors.Is(err, ErrDropListener)
}
