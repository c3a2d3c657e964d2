package base

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/rws/lib/broadcast"
	"github.com/ValentinKolb/rws/lib/reachability"
	"github.com/ValentinKolb/rws/rpc/common"
	"github.com/ValentinKolb/rws/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/rpc")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single physical connection to endpoint.
	// The context carries the dial timeout and is cancelled on Destroy.
	Connect(ctx context.Context, endpoint string, config common.ClientConfig) (transport.IConn, error)

	// GetName returns the name of the transport type (e.g., "ws", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Event loop types
// -----------------------------------------------------------

// eventKind tags the events processed by the transport's event loop
type eventKind int

const (
	evDialed eventKind = iota
	evDialFailed
	evClosed
	evTimerFired
	evReachability
	evSend
	evReconnect
	evDestroy
)

// event is the single input type of the event loop. Only the fields
// relevant for the kind are set.
type event struct {
	kind   eventKind
	gen    uint64                    // connection (or timer) generation the event belongs to
	conn   transport.IConn           // evDialed
	err    error                     // evDialFailed, evClosed
	online bool                      // evReachability
	msg    string                    // evSend
	reply  chan transport.SendResult // evSend
	done   chan struct{}             // evDestroy
}

// clientTransport implements the reconnecting client transport
// independent of the specific transport medium (ws, tcp, etc.).
//
// All fields below the loop marker are owned by the event loop goroutine
// and must never be touched from anywhere else.
type clientTransport struct {
	connector IClientConnector
	config    common.ClientConfig
	reach     reachability.IReachability
	metrics   *transportMetrics

	events      chan event
	done        chan struct{} // closed when the event loop exits
	destroyed   atomic.Bool
	destroyOnce sync.Once

	state   *broadcast.Value[common.ConnectionState]
	inbound *broadcast.Stream[string]

	// --- owned by the event loop ---
	conn       transport.IConn
	gen        uint64
	dialing    bool
	dialCancel context.CancelFunc
	queue      []string
	failures   int
	timer      *time.Timer
	timerGen   uint64
	reachSub   *broadcast.Subscription[bool]
}

// -----------------------------------------------------------
// Transport Factory Method (used for ws, tcp, mem, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new reconnecting client transport with the specified
// connector. The transport is Connecting when this function returns and the first
// connection attempt is already in flight. A nil reach is treated as always online.
func NewBaseClientTransport(
	connector IClientConnector,
	config common.ClientConfig,
	reach reachability.IReachability,
) transport.IRPCClientTransport {
	if reach == nil {
		reach = reachability.NewStatic(true)
	}

	t := &clientTransport{
		connector: connector,
		config:    config,
		reach:     reach,
		metrics:   newTransportMetrics(connector.GetName()),
		events:    make(chan event),
		done:      make(chan struct{}),
		state:     broadcast.NewValue(common.StateConnecting),
		inbound:   broadcast.NewStream[string](),
	}

	t.reachSub = reach.Subscribe()
	go t.watchReachability(t.reachSub)

	t.startDial()
	go t.run()

	Logger.Infof("Created %s transport for %s", connector.GetName(), config.Endpoint)
	return t
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Send(message string) bool {
	return t.Submit(message) == transport.SendWritten
}

func (t *clientTransport) Submit(message string) transport.SendResult {
	if t.destroyed.Load() {
		Logger.Warningf("Dropped message, transport to %s is destroyed", t.config.Endpoint)
		return transport.SendRejected
	}

	reply := make(chan transport.SendResult, 1)
	if !t.post(event{kind: evSend, msg: message, reply: reply}) {
		return transport.SendRejected
	}
	return <-reply
}

func (t *clientTransport) State() common.ConnectionState {
	return t.state.Get()
}

func (t *clientTransport) SubscribeState() *broadcast.Subscription[common.ConnectionState] {
	return t.state.Subscribe()
}

func (t *clientTransport) Messages() *broadcast.Subscription[string] {
	return t.inbound.Subscribe()
}

func (t *clientTransport) Reconnect() {
	t.post(event{kind: evReconnect})
}

func (t *clientTransport) Destroy() {
	t.destroyOnce.Do(func() {
		t.destroyed.Store(true)
		done := make(chan struct{})
		if t.post(event{kind: evDestroy, done: done}) {
			<-done
		}
	})
}

// --------------------------------------------------------------------------
// Event loop
// --------------------------------------------------------------------------

// post hands an event to the loop. Returns false if the loop already exited.
func (t *clientTransport) post(ev event) bool {
	select {
	case t.events <- ev:
		return true
	case <-t.done:
		return false
	}
}

// run is the event loop. It is the only goroutine mutating the connection,
// the outbound queue, the timer and the connection state.
func (t *clientTransport) run() {
	defer close(t.done)

	for {
		ev := <-t.events
		switch ev.kind {
		case evDialed:
			t.handleDialed(ev)
		case evDialFailed:
			t.handleDialFailed(ev)
		case evClosed:
			t.handleClosed(ev)
		case evTimerFired:
			t.handleTimerFired(ev)
		case evReachability:
			t.handleReachability(ev)
		case evSend:
			ev.reply <- t.handleSend(ev.msg)
		case evReconnect:
			t.handleReconnect()
		case evDestroy:
			t.handleDestroy()
			close(ev.done)
			return
		}
	}
}

func (t *clientTransport) handleDialed(ev event) {
	if ev.gen != t.gen || !t.dialing {
		_ = ev.conn.Close()
		return
	}

	t.dialing = false
	t.dialCancel = nil
	t.conn = ev.conn
	t.failures = 0
	t.stopTimer()
	t.metrics.connects.Inc()

	Logger.Infof("Connected to %s using %s transport", t.config.Endpoint, t.connector.GetName())
	t.setState(common.StateConnected)

	go t.readLoop(ev.conn, ev.gen)

	// drain the outbound queue before any new send is handled
	if len(t.queue) > 0 {
		Logger.Debugf("Flushing %d queued messages to %s", len(t.queue), t.config.Endpoint)
	}
	for len(t.queue) > 0 {
		if err := t.conn.WriteMessage(t.queue[0]); err != nil {
			Logger.Warningf("Write to %s failed while flushing the queue: %v", t.config.Endpoint, err)
			t.dropConnection(err)
			return
		}
		t.metrics.sent.Inc()
		t.queue[0] = ""
		t.queue = t.queue[1:]
	}
	t.queue = nil
}

func (t *clientTransport) handleDialFailed(ev event) {
	if ev.gen != t.gen || !t.dialing {
		return
	}

	t.dialing = false
	t.dialCancel = nil
	t.metrics.dialFailures.Inc()
	t.setState(common.StateDisconnected)

	delay := t.scheduleReconnect()
	Logger.Warningf("Failed to connect to %s: %v (retry in %s)", t.config.Endpoint, ev.err, delay)
}

func (t *clientTransport) handleClosed(ev event) {
	if ev.gen != t.gen || t.conn == nil {
		return
	}
	t.dropConnection(ev.err)
}

func (t *clientTransport) handleTimerFired(ev event) {
	if ev.gen != t.timerGen || t.timer == nil {
		return
	}
	t.timer = nil

	if !t.reach.Online() {
		t.metrics.deferredDials.Inc()
		delay := t.scheduleReconnect()
		Logger.Infof("Network is offline, deferring reconnect to %s (next check in %s)", t.config.Endpoint, delay)
		return
	}

	Logger.Debugf("Attempting to reconnect to %s", t.config.Endpoint)
	t.startDial()
}

func (t *clientTransport) handleReachability(ev event) {
	if !ev.online {
		Logger.Infof("Network is offline, waiting to reconnect to %s", t.config.Endpoint)
		return
	}
	if t.conn != nil || t.dialing {
		return
	}

	Logger.Infof("Network is back online, reconnecting to %s", t.config.Endpoint)
	t.failures = 0
	t.stopTimer()
	t.startDial()
}

// handleSend writes msg if connected, queues it otherwise
func (t *clientTransport) handleSend(msg string) transport.SendResult {
	if t.conn != nil {
		err := t.conn.WriteMessage(msg)
		if err == nil {
			t.metrics.sent.Inc()
			return transport.SendWritten
		}
		// the queue is empty while connected, so the message keeps its position
		Logger.Warningf("Write to %s failed, queueing message: %v", t.config.Endpoint, err)
		t.queue = append(t.queue, msg)
		t.metrics.queued.Inc()
		t.dropConnection(err)
		return transport.SendQueued
	}

	if t.config.QueueCapacity > 0 && len(t.queue) >= t.config.QueueCapacity {
		t.metrics.queueDropped.Inc()
		Logger.Warningf("Outbound queue for %s is full (%d messages), dropping message", t.config.Endpoint, len(t.queue))
		return transport.SendRejected
	}

	t.queue = append(t.queue, msg)
	t.metrics.queued.Inc()
	return transport.SendQueued
}

func (t *clientTransport) handleReconnect() {
	if t.conn != nil || t.dialing {
		return
	}
	Logger.Infof("Explicit reconnect to %s", t.config.Endpoint)
	t.stopTimer()
	t.startDial()
}

func (t *clientTransport) handleDestroy() {
	t.stopTimer()
	if t.dialCancel != nil {
		t.dialCancel()
		t.dialCancel = nil
	}
	t.dialing = false
	t.gen++

	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	if t.reachSub != nil {
		t.reachSub.Unsubscribe()
		t.reachSub = nil
	}
	if len(t.queue) > 0 {
		Logger.Warningf("Discarding %d queued messages for %s", len(t.queue), t.config.Endpoint)
	}
	t.queue = nil

	t.setState(common.StateIdle)
	t.state.Close()
	t.inbound.Close()

	Logger.Infof("Destroyed %s transport for %s", t.connector.GetName(), t.config.Endpoint)
}

// --------------------------------------------------------------------------
// Helper Methods (event loop only)
// --------------------------------------------------------------------------

// startDial starts a new physical connection attempt in its own goroutine.
// The result is reported back to the loop tagged with the new generation.
func (t *clientTransport) startDial() {
	t.gen++
	gen := t.gen
	t.dialing = true
	t.setState(common.StateConnecting)

	ctx, cancel := context.WithTimeout(context.Background(), t.config.DialTimeout())
	t.dialCancel = cancel

	go func() {
		defer cancel()
		conn, err := t.connector.Connect(ctx, t.config.Endpoint, t.config)
		if err != nil {
			t.post(event{kind: evDialFailed, gen: gen, err: err})
			return
		}
		if !t.post(event{kind: evDialed, gen: gen, conn: conn}) {
			_ = conn.Close()
		}
	}()
}

// dropConnection closes the current connection and schedules a reconnect.
// A clean close (io.EOF) moves to Disconnected, everything else to Failed first.
func (t *clientTransport) dropConnection(err error) {
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	t.metrics.disconnects.Inc()

	if err != nil && !errors.Is(err, io.EOF) {
		t.metrics.faults.Inc()
		Logger.Warningf("Connection to %s failed: %v", t.config.Endpoint, err)
		t.setState(common.StateFailed)
	} else {
		Logger.Infof("Connection to %s closed by peer", t.config.Endpoint)
	}
	t.setState(common.StateDisconnected)

	delay := t.scheduleReconnect()
	Logger.Infof("Reconnecting to %s in %s", t.config.Endpoint, delay)
}

// scheduleReconnect counts a failure and arms the backoff timer
func (t *clientTransport) scheduleReconnect() time.Duration {
	t.failures++
	delay := NextReconnectDelay(t.config.InitialReconnectDelay(), t.config.MaxReconnectDelay(), t.failures)
	t.metrics.backoff.Update(delay.Seconds())

	t.stopTimer()
	t.timerGen++
	gen := t.timerGen
	t.timer = time.AfterFunc(delay, func() {
		t.post(event{kind: evTimerFired, gen: gen})
	})
	return delay
}

// stopTimer cancels the backoff timer. A fire that is already queued is
// discarded by its stale generation.
func (t *clientTransport) stopTimer() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.timerGen++
}

// setState publishes s if it differs from the current state
func (t *clientTransport) setState(s common.ConnectionState) {
	t.state.Update(func(old common.ConnectionState) (common.ConnectionState, bool) {
		return s, old != s
	})
}

// --------------------------------------------------------------------------
// Helper goroutines
// --------------------------------------------------------------------------

// readLoop publishes every inbound frame of conn until it fails
func (t *clientTransport) readLoop(conn transport.IConn, gen uint64) {
	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			t.post(event{kind: evClosed, gen: gen, err: err})
			return
		}
		t.metrics.received.Inc()
		Logger.Debugf("Received frame from %s (%d bytes)", t.config.Endpoint, len(msg))
		t.inbound.Publish(msg)
	}
}

// watchReachability forwards changes of the reachability signal to the loop.
// The replayed initial value only sets the baseline.
func (t *clientTransport) watchReachability(sub *broadcast.Subscription[bool]) {
	first := true
	var last bool
	for online := range sub.C() {
		if first {
			first, last = false, online
			continue
		}
		if online == last {
			continue
		}
		last = online
		if !t.post(event{kind: evReachability, online: online}) {
			return
		}
	}
}
