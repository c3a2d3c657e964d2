package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ValentinKolb/rws/rpc/common"
)

// Call is one request waiting for its correlated response. Exactly one of
// Response and Error delivers a value, unless the call ends locally
// (timeout, cancel, destroy), in which case neither does and Err is set.
// Done is closed in every case.
type Call struct {
	ID      string
	Subject string

	client   *RPCClient
	response chan json.RawMessage
	remote   chan string
	done     chan struct{}
	once     sync.Once
	timer    *time.Timer

	mu      sync.Mutex
	data    json.RawMessage
	errText *string
	err     error
}

func newCall(c *RPCClient, env common.Envelope) *Call {
	return &Call{
		ID:       env.ID,
		Subject:  env.Subject,
		client:   c,
		response: make(chan json.RawMessage, 1),
		remote:   make(chan string, 1),
		done:     make(chan struct{}),
	}
}

// Response delivers the data of a success reply
func (c *Call) Response() <-chan json.RawMessage {
	return c.response
}

// Error delivers the error text of an error reply
func (c *Call) Error() <-chan string {
	return c.remote
}

// Done is closed once the call completed
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Err returns the local reason the call ended (ErrTimeout, ErrCanceled,
// ErrDestroyed) or nil
func (c *Call) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Wait blocks until the call completed or ctx is done. An error reply is
// returned as *RemoteError.
func (c *Call) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-c.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.err != nil:
		return nil, c.err
	case c.errText != nil:
		return nil, &RemoteError{Subject: c.Subject, Text: *c.errText}
	default:
		return c.data, nil
	}
}

// Decode waits for the response and decodes its data into v
func (c *Call) Decode(ctx context.Context, v any) error {
	data, err := c.Wait(ctx)
	if err != nil {
		return err
	}
	return c.client.serializer.Decode(data, v)
}

// Cancel stops waiting for the response. A response arriving later is only
// seen by subject subscribers.
func (c *Call) Cancel() {
	if c.client.forget(c.ID) {
		c.fail(ErrCanceled)
	}
}

// --------------------------------------------------------------------------
// Completion (called by exactly one owner after removing the call from the pending table)
// --------------------------------------------------------------------------

func (c *Call) resolve(env common.Envelope) {
	c.once.Do(func() {
		c.stopTimer()
		c.mu.Lock()
		if env.HasError() {
			text := env.ErrorText()
			c.errText = &text
			c.remote <- text
		} else {
			c.data = env.Payload()
			c.response <- c.data
		}
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *Call) fail(err error) {
	c.once.Do(func() {
		c.stopTimer()
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *Call) startTimer(d time.Duration, expire func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timer = time.AfterFunc(d, expire)
}

func (c *Call) stopTimer() {
	c.mu.Lock()
	timer := c.timer
	c.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
}
