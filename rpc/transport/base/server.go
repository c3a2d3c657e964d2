package base

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/rws/rpc/common"
	"github.com/ValentinKolb/rws/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
// of listener based transports (tcp)
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// Wrap applies protocol-specific settings to an accepted connection and
	// turns it into a message oriented connection
	Wrap(conn net.Conn, config common.ServerConfig) (transport.IConn, error)

	// GetName returns the name of the transport type (e.g., "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the accept loop shared by listener based transports
type serverTransport struct {
	connector IServerConnector
	handler   transport.ConnHandleFunc
	config    common.ServerConfig

	mu       sync.Mutex
	listener net.Listener
	closed   atomic.Bool
	conns    *xsync.MapOf[uint64, transport.IConn]
	nextID   atomic.Uint64
	wg       sync.WaitGroup
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport
func NewBaseServerTransport(connector IServerConnector) transport.IRPCServerTransport {
	return &serverTransport{
		connector: connector,
		conns:     xsync.NewMapOf[uint64, transport.IConn](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ConnHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}
	t.config = config

	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		_ = listener.Close()
		return nil
	}
	t.listener = listener
	t.mu.Unlock()

	Logger.Infof("Starting %s server on %s", t.connector.GetName(), listener.Addr())

	// Accept connections
	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.closed.Load() || errors.Is(err, net.ErrClosed) {
				t.wg.Wait()
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		// Handle the connection in a goroutine
		t.wg.Add(1)
		go t.handleConnection(conn)
	}
}

// Addr returns the address the transport listens on (nil before Listen)
func (t *serverTransport) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

func (t *serverTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}

	t.mu.Lock()
	listener := t.listener
	t.mu.Unlock()

	var err error
	if listener != nil {
		err = listener.Close()
	}

	t.conns.Range(func(_ uint64, conn transport.IConn) bool {
		_ = conn.Close()
		return true
	})
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection hands one accepted connection to the handler
func (t *serverTransport) handleConnection(raw net.Conn) {
	defer t.wg.Done()

	remote := raw.RemoteAddr().String()
	conn, err := t.connector.Wrap(raw, t.config)
	if err != nil {
		Logger.Errorf("Failed to set up connection from %s: %v", remote, err)
		_ = raw.Close()
		return
	}

	id := t.nextID.Add(1)
	t.conns.Store(id, conn)
	defer func() {
		t.conns.Delete(id)
		_ = conn.Close()
	}()

	// the transport may have been closed between accept and store
	if t.closed.Load() {
		return
	}

	Logger.Debugf("Accepted %s connection from %s", t.connector.GetName(), remote)
	t.handler(conn, remote)
	Logger.Debugf("Connection from %s finished", remote)
}
