package mem

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/rws/lib/reachability"
	"github.com/ValentinKolb/rws/rpc/common"
	"github.com/ValentinKolb/rws/rpc/transport"
	"github.com/ValentinKolb/rws/rpc/transport/base"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/mem")

// Network is an in-process network. Server transports listen on arbitrary
// address strings, client transports dial them. Networks are independent of
// each other, so tests can run in parallel.
type Network struct {
	listeners *xsync.MapOf[string, *serverTransport]
}

// NewNetwork creates an empty network
func NewNetwork() *Network {
	return &Network{listeners: xsync.NewMapOf[string, *serverTransport]()}
}

// Dial connects to the server transport listening on address
func (n *Network) Dial(ctx context.Context, address string) (transport.IConn, error) {
	l, ok := n.listeners.Load(address)
	if !ok {
		return nil, fmt.Errorf("dial mem://%s: connection refused", address)
	}

	client, server := newPipe()
	// registered before the handoff so Break sees every dialed connection
	id := l.nextID.Add(1)
	l.conns.Store(id, server)
	select {
	case l.accept <- accepted{id: id, conn: server}:
		return client, nil
	case <-l.closed:
		l.conns.Delete(id)
		return nil, fmt.Errorf("dial mem://%s: connection refused", address)
	case <-ctx.Done():
		l.conns.Delete(id)
		return nil, ctx.Err()
	}
}

// Break fails every open connection to address. Clients see a read error
// (not a clean close).
func (n *Network) Break(address string, err error) int {
	l, ok := n.listeners.Load(address)
	if !ok {
		return 0
	}
	count := 0
	l.conns.Range(func(_ uint64, c *memConn) bool {
		c.fail(err)
		count++
		return true
	})
	return count
}

// NewClientTransport creates a reconnecting client transport dialing config.Endpoint on n
func (n *Network) NewClientTransport(config common.ClientConfig, reach reachability.IReachability) transport.IRPCClientTransport {
	return base.NewBaseClientTransport(&clientConnector{network: n}, config, reach)
}

// NewServerTransport creates a server transport that listens on n
func (n *Network) NewServerTransport() transport.IRPCServerTransport {
	return &serverTransport{
		network: n,
		accept:  make(chan accepted),
		closed:  make(chan struct{}),
		ready:   make(chan struct{}),
		conns:   xsync.NewMapOf[uint64, *memConn](),
	}
}

// --------------------------------------------------------------------------
// Client connector
// --------------------------------------------------------------------------

// clientConnector implements the IClientConnector interface for the mem network
type clientConnector struct {
	network *Network
}

func (c *clientConnector) GetName() string {
	return "mem"
}

func (c *clientConnector) Connect(ctx context.Context, endpoint string, _ common.ClientConfig) (transport.IConn, error) {
	return c.network.Dial(ctx, endpoint)
}

// --------------------------------------------------------------------------
// Server transport
// --------------------------------------------------------------------------

type accepted struct {
	id   uint64
	conn *memConn
}

// serverTransport implements transport.IRPCServerTransport on a Network
type serverTransport struct {
	network   *Network
	handler   transport.ConnHandleFunc
	address   string
	accept    chan accepted
	closed    chan struct{}
	closeOnce sync.Once
	ready     chan struct{}
	readyOnce sync.Once
	conns     *xsync.MapOf[uint64, *memConn]
	nextID    atomic.Uint64
	wg        sync.WaitGroup
}

func (t *serverTransport) RegisterHandler(handler transport.ConnHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}
	select {
	case <-t.closed:
		return nil
	default:
	}

	t.address = config.Endpoint
	if _, loaded := t.network.listeners.LoadOrStore(t.address, t); loaded {
		return fmt.Errorf("listen mem://%s: address already in use", t.address)
	}
	defer t.network.listeners.Compute(t.address, func(old *serverTransport, loaded bool) (*serverTransport, bool) {
		// only remove our own registration
		return old, !loaded || old == t
	})
	t.readyOnce.Do(func() { close(t.ready) })

	Logger.Infof("Listening on mem://%s", t.address)
	for {
		select {
		case a := <-t.accept:
			t.wg.Add(1)
			go t.handleConnection(a.id, a.conn)
		case <-t.closed:
			t.wg.Wait()
			return nil
		}
	}
}

func (t *serverTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
		t.conns.Range(func(_ uint64, c *memConn) bool {
			_ = c.Close()
			return true
		})
	})
	return nil
}

// Ready is closed once the transport accepts connections
func (t *serverTransport) Ready() <-chan struct{} {
	return t.ready
}

func (t *serverTransport) handleConnection(id uint64, conn *memConn) {
	defer t.wg.Done()
	defer func() {
		t.conns.Delete(id)
		_ = conn.Close()
	}()

	select {
	case <-t.closed:
		return
	default:
	}

	t.handler(conn, fmt.Sprintf("mem-%d", id))
}
