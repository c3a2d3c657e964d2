package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/ValentinKolb/rws/rpc/common"
	"github.com/ValentinKolb/rws/rpc/serializer"
	"github.com/ValentinKolb/rws/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("server")

var (
	connectsTotal     = metrics.NewCounter("rws_server_connects_total")
	disconnectsTotal  = metrics.NewCounter("rws_server_disconnects_total")
	decodeErrorsTotal = metrics.NewCounter("rws_server_decode_errors_total")
	unknownTotal      = metrics.NewCounter("rws_server_unknown_subject_total")
	pushedTotal       = metrics.NewCounter("rws_server_pushed_total")
)

func requestCounter(subject string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`rws_server_requests_total{subject=%q}`, subject))
}

func errorCounter(subject string) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`rws_server_errors_total{subject=%q}`, subject))
}

// RPCServer dispatches inbound envelopes to subject handlers and answers
// with envelopes carrying the request's id and subject.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer

	handlers *xsync.MapOf[string, HandlerFunc]
	peers    *xsync.MapOf[string, *Peer]
	once     sync.Once
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		config,
//		ws.NewWSServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//	server.RegisterBuiltins(s)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	s := &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		handlers:   xsync.NewMapOf[string, HandlerFunc](),
		peers:      xsync.NewMapOf[string, *Peer](),
	}
	transport.RegisterHandler(s.handleConnection)

	Logger.Infof("Created RPC Server")
	return s
}

// Handle registers handler for subject, replacing any previous handler
func (s *RPCServer) Handle(subject string, handler HandlerFunc) {
	s.handlers.Store(subject, handler)
}

// Broadcast pushes an event to every connected peer and returns the number
// of peers it was written to
func (s *RPCServer) Broadcast(subject string, data any) (int, error) {
	raw, err := s.serializer.Encode(data)
	if err != nil {
		return 0, fmt.Errorf("failed to encode data for %s: %w", subject, err)
	}
	frame, err := s.serializer.Serialize(common.NewEvent(subject, raw))
	if err != nil {
		return 0, fmt.Errorf("failed to serialize %s: %w", subject, err)
	}

	count := 0
	s.peers.Range(func(_ string, peer *Peer) bool {
		if err := peer.write(string(frame)); err != nil {
			Logger.Warningf("Broadcast of %s: %v", subject, err)
			return true
		}
		count++
		return true
	})
	pushedTotal.Add(count)
	return count, nil
}

// PeerCount returns the number of connected peers
func (s *RPCServer) PeerCount() int {
	return s.peers.Size()
}

// Serve starts the transport and blocks until it is closed
func (s *RPCServer) Serve() error {
	Logger.Infof("%s", s.config.String())
	return s.transport.Listen(s.config)
}

// Close stops the transport and disconnects all peers
func (s *RPCServer) Close() error {
	var err error
	s.once.Do(func() {
		err = s.transport.Close()
		Logger.Infof("RPC Server closed")
	})
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection serves one peer until its connection ends
func (s *RPCServer) handleConnection(conn transport.IConn, remoteAddr string) {
	peer := newPeer(conn, remoteAddr, s.serializer)
	s.peers.Store(peer.ID, peer)
	connectsTotal.Inc()
	Logger.Infof("Peer %s connected from %s", peer.ID, remoteAddr)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		s.peers.Delete(peer.ID)
		disconnectsTotal.Inc()
		Logger.Infof("Peer %s disconnected", peer.ID)
	}()

	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				Logger.Warningf("Read from peer %s failed: %v", peer.ID, err)
			}
			return
		}

		req, err := s.decode(frame)
		if err != nil {
			decodeErrorsTotal.Inc()
			Logger.Warningf("Dropping message from peer %s: %v", peer.ID, err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.dispatch(ctx, peer, req)
		}()
	}
}

// dispatch runs the handler of req and writes the reply
func (s *RPCServer) dispatch(ctx context.Context, peer *Peer, req common.Envelope) {
	handler, ok := s.handlers.Load(req.Subject)
	if !ok {
		unknownTotal.Inc()
		Logger.Warningf("Peer %s sent unknown subject %s", peer.ID, req.Subject)
		s.reply(peer, req, nil, fmt.Errorf("unknown subject %s", req.Subject))
		return
	}
	requestCounter(req.Subject).Inc()

	if timeout := s.config.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := s.invoke(ctx, handler, peer, req)
	if err != nil {
		errorCounter(req.Subject).Inc()
	}
	if err == nil && result == NoReply {
		return
	}
	s.reply(peer, req, result, err)
}

// invoke calls handler and turns a panic into an error
func (s *RPCServer) invoke(ctx context.Context, handler HandlerFunc, peer *Peer, req common.Envelope) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("Handler for %s panicked: %v", req.Subject, r)
			result, err = nil, fmt.Errorf("internal error in %s", req.Subject)
		}
	}()
	return handler(ctx, peer, req)
}

// reply answers req unless it is an event
func (s *RPCServer) reply(peer *Peer, req common.Envelope, result any, err error) {
	if req.ID == "" {
		if err != nil {
			Logger.Debugf("Event %s from peer %s failed: %v", req.Subject, peer.ID, err)
		}
		return
	}

	var resp common.Envelope
	if err != nil {
		resp = common.NewErrorResponse(req, err.Error())
	} else {
		raw, encErr := s.serializer.Encode(result)
		if encErr != nil {
			Logger.Errorf("Failed to encode result of %s: %v", req.Subject, encErr)
			resp = common.NewErrorResponse(req, fmt.Sprintf("failed to encode result: %v", encErr))
		} else {
			resp = common.NewResponse(req, raw)
		}
	}

	if err := peer.send(resp); err != nil {
		Logger.Warningf("Reply to %s: %v", req.Subject, err)
	}
}

func (s *RPCServer) decode(frame string) (common.Envelope, error) {
	var env common.Envelope
	trimmed := strings.TrimLeft(frame, " \t\r\n")
	if !strings.HasPrefix(trimmed, "{") {
		return env, fmt.Errorf("not a json object: %.64q", frame)
	}
	if err := s.serializer.Deserialize([]byte(trimmed), &env); err != nil {
		return env, fmt.Errorf("invalid envelope: %w", err)
	}
	if env.Subject == "" {
		return env, fmt.Errorf("envelope without subject: %.64q", frame)
	}
	return env, nil
}
