package transport

import (
	"github.com/ValentinKolb/rws/lib/broadcast"
	"github.com/ValentinKolb/rws/rpc/common"
)

// --------------------------------------------------------------------------
// Physical connection
// --------------------------------------------------------------------------

// IConn is a single physical, message oriented connection. One call to
// WriteMessage sends exactly one frame and one call to ReadMessage returns
// exactly one frame.
//
// ReadMessage is only called from a single goroutine, WriteMessage only from
// another single goroutine. Close may be called concurrently with both and
// must unblock a pending ReadMessage.
type IConn interface {
	// ReadMessage blocks until a frame arrives. A clean close by the peer is
	// reported as io.EOF, every other error is a fault.
	ReadMessage() (string, error)
	// WriteMessage writes one frame
	WriteMessage(msg string) error
	// Close closes the connection
	Close() error
}

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ConnHandleFunc is called by a server transport for every accepted
// connection. It owns the connection until it returns, the transport
// closes the connection afterwards.
type ConnHandleFunc func(conn IConn, remoteAddr string)

// IRPCServerTransport is the interface for the server side of a transport
type IRPCServerTransport interface {
	// RegisterHandler registers the handler for accepted connections.
	// It must be called before Listen.
	RegisterHandler(handler ConnHandleFunc)
	// Listen starts the transport and blocks until Close is called
	Listen(config common.ServerConfig) error
	// Close stops listening. Connections that were already handed to the
	// handler are closed as well.
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// SendResult is the outcome of IRPCClientTransport.Submit
type SendResult int

const (
	// SendWritten means the message was written to the open connection
	SendWritten SendResult = iota
	// SendQueued means the message waits in the outbound queue
	SendQueued
	// SendRejected means the message was dropped
	SendRejected
)

func (r SendResult) String() string {
	switch r {
	case SendWritten:
		return "written"
	case SendQueued:
		return "queued"
	case SendRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// IRPCClientTransport is the interface for the self-healing client transport.
// It keeps a single logical connection over a sequence of physical ones,
// reconnecting with exponential backoff and queueing messages sent while
// no connection is open. Transport faults never surface as errors, they are
// only observable via the state signal.
type IRPCClientTransport interface {
	// Send transmits message if the transport is Connected and returns true.
	// Otherwise the message is appended to the outbound queue and false is
	// returned. The result means "sent now", not "delivered".
	// After Destroy or when the queue is full the message is dropped.
	Send(message string) bool
	// Submit is Send reporting whether the message was written, queued or
	// rejected (queue full, transport destroyed)
	Submit(message string) SendResult
	// State returns the current connection state
	State() common.ConnectionState
	// SubscribeState returns a replay-last subscription of the connection state
	SubscribeState() *broadcast.Subscription[common.ConnectionState]
	// Messages returns a subscription of all inbound frames received after
	// the call, in wire order. Every subscriber has its own cursor.
	Messages() *broadcast.Subscription[string]
	// Reconnect skips a pending backoff wait and dials immediately
	Reconnect()
	// Destroy closes the connection, cancels all timers and moves the
	// transport to Idle. It is idempotent.
	Destroy()
}
