package mem

import (
	"io"
	"net"
	"sync"

	"github.com/ValentinKolb/rws/lib/broadcast"
	"github.com/ValentinKolb/rws/rpc/transport"
)

// memConn is one end of an in-memory connection. Frames written to one end
// are read from the other end in write order. Closing one end is a clean
// close for the other end (io.EOF after all pending frames).
type memConn struct {
	in        *broadcast.Mailbox[string]
	peer      *memConn
	closed    chan struct{}
	closeOnce sync.Once
	failMu    sync.Mutex
	failErr   error
}

// Pipe creates a connected pair of in-memory connections
func Pipe() (transport.IConn, transport.IConn) {
	a, b := newPipe()
	return a, b
}

func newPipe() (*memConn, *memConn) {
	a := &memConn{in: broadcast.NewMailbox[string](), closed: make(chan struct{})}
	b := &memConn{in: broadcast.NewMailbox[string](), closed: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IConn)
// --------------------------------------------------------------------------

func (c *memConn) ReadMessage() (string, error) {
	select {
	case msg, ok := <-c.in.C():
		if !ok {
			return "", c.readError()
		}
		return msg, nil
	case <-c.closed:
		return "", net.ErrClosed
	}
}

func (c *memConn) WriteMessage(msg string) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	if !c.peer.in.Push(msg) {
		return io.ErrClosedPipe
	}
	return nil
}

func (c *memConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.in.Discard()
		c.peer.in.Close()
	})
	return nil
}

// fail breaks the connection: the peer's reader sees err instead of io.EOF
func (c *memConn) fail(err error) {
	c.peer.failMu.Lock()
	c.peer.failErr = err
	c.peer.failMu.Unlock()
	_ = c.Close()
}

func (c *memConn) readError() error {
	c.failMu.Lock()
	defer c.failMu.Unlock()
	if c.failErr != nil {
		return c.failErr
	}
	return io.EOF
}
