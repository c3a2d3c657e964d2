package client

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout completes a call whose response did not arrive in time
	ErrTimeout = errors.New("request timed out")
	// ErrDestroyed completes calls that were pending when the client was destroyed
	ErrDestroyed = errors.New("client destroyed")
	// ErrCanceled completes a call after Cancel
	ErrCanceled = errors.New("request canceled")
	// ErrQueueFull completes a call whose request was rejected by the full outbound queue
	ErrQueueFull = errors.New("outbound queue is full")
)

// RemoteError is returned by Call.Wait when the peer answered with an error envelope
type RemoteError struct {
	Subject string
	Text    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error on %s: %s", e.Subject, e.Text)
}
