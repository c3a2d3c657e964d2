package ws

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/rws/rpc/common"
	"github.com/ValentinKolb/rws/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v3"
)

// ServerTransport implements transport.IRPCServerTransport for websockets.
// It is also an http.Handler, so it can be mounted into an existing server
// or an httptest.Server without calling Listen.
//
// Routes:
//   - config.Path (default /ws): websocket upgrade
//   - config.MetricsPath (default /metrics): prometheus exposition of all rws metrics
//   - /health: liveness check
type ServerTransport struct {
	handler  transport.ConnHandleFunc
	router   atomic.Pointer[mux.Router]
	upgrader websocket.Upgrader
	config   common.ServerConfig

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	closed   atomic.Bool

	conns  *xsync.MapOf[uint64, *wsConn]
	nextID atomic.Uint64
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewWSServerTransport creates a new websocket server transport using the
// default paths. Listen replaces the routes with the ones of its config.
func NewWSServerTransport() *ServerTransport {
	t := &ServerTransport{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // allow all origins
		},
		conns: xsync.NewMapOf[uint64, *wsConn](),
	}
	t.configure(common.DefaultServerConfig(""))
	return t
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *ServerTransport) RegisterHandler(handler transport.ConnHandleFunc) {
	t.handler = handler
}

func (t *ServerTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}
	t.configure(config)

	listener, err := net.Listen("tcp", config.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", config.Endpoint, err)
	}

	server := &http.Server{
		Handler:           t,
		ReadHeaderTimeout: 10 * time.Second,
	}

	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		_ = listener.Close()
		return nil
	}
	t.server = server
	t.listener = listener
	t.mu.Unlock()

	Logger.Infof("Starting ws server on %s (path %s, metrics %s)", listener.Addr(), config.Path, config.MetricsPath)

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ws server failed: %w", err)
	}
	return nil
}

func (t *ServerTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}

	t.mu.Lock()
	server := t.server
	t.mu.Unlock()

	var err error
	if server != nil {
		// hijacked websocket connections are not closed by the http server
		err = server.Close()
	}
	t.conns.Range(func(_ uint64, conn *wsConn) bool {
		_ = conn.Close()
		return true
	})
	return err
}

// --------------------------------------------------------------------------
// http.Handler
// --------------------------------------------------------------------------

func (t *ServerTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.router.Load().ServeHTTP(w, r)
}

// Addr returns the address the transport listens on (nil before Listen)
func (t *ServerTransport) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// configure (re)builds the routes for config
func (t *ServerTransport) configure(config common.ServerConfig) {
	if config.Path == "" {
		config.Path = "/ws"
	}
	t.config = config

	router := mux.NewRouter()
	router.HandleFunc(config.Path, t.serveWebsocket)
	if config.MetricsPath != "" {
		router.HandleFunc(config.MetricsPath, serveMetrics).Methods(http.MethodGet)
	}
	router.HandleFunc("/health", serveHealth).Methods(http.MethodGet)
	t.router.Store(router)
}

// serveWebsocket upgrades the request and hands the connection to the handler
func (t *ServerTransport) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	if t.closed.Load() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	if t.handler == nil {
		http.Error(w, "no handler registered", http.StatusServiceUnavailable)
		return
	}

	raw, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied with an http error
		Logger.Warningf("Websocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}

	conn := newConn(raw, t.config.Timeout())
	id := t.nextID.Add(1)
	t.conns.Store(id, conn)
	defer func() {
		t.conns.Delete(id)
		_ = conn.Close()
	}()

	Logger.Debugf("Accepted websocket connection from %s", r.RemoteAddr)
	t.handler(conn, r.RemoteAddr)
	Logger.Debugf("Websocket connection from %s finished", r.RemoteAddr)
}

func serveMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	metrics.WritePrometheus(w, true)
}

func serveHealth(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("OK"))
}
