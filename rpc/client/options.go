package client

import "time"

// CallOption changes how a single request is sent
type CallOption func(*callOptions)

type callOptions struct {
	timeout time.Duration
}

// WithTimeout overrides the client's default request timeout for one call.
// A value <= 0 disables the timeout.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = d
	}
}
