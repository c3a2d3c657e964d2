package client

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/rws/lib/broadcast"
	"github.com/ValentinKolb/rws/rpc/common"
	"github.com/ValentinKolb/rws/rpc/serializer"
	"github.com/ValentinKolb/rws/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/cskr/pubsub"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("client")

var (
	requestsTotal     = metrics.NewCounter("rws_client_requests_total")
	publishedTotal    = metrics.NewCounter("rws_client_published_total")
	responsesTotal    = metrics.NewCounter("rws_client_responses_total")
	remoteErrorsTotal = metrics.NewCounter("rws_client_remote_errors_total")
	timeoutsTotal     = metrics.NewCounter("rws_client_timeouts_total")
	decodeErrorsTotal = metrics.NewCounter("rws_client_decode_errors_total")
	rejectedTotal     = metrics.NewCounter("rws_client_rejected_total")
)

// RPCClient correlates requests and responses over a reconnecting client
// transport and multicasts every inbound envelope to the subscribers of its
// subject.
type RPCClient struct {
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer

	pending *xsync.MapOf[string, *Call]

	psMu sync.RWMutex
	ps   *pubsub.PubSub
	shut bool

	inbound     *broadcast.Subscription[string]
	stop        chan struct{}
	pumpDone    chan struct{}
	destroyed   atomic.Bool
	destroyOnce sync.Once
}

// NewRPCClient creates a client on top of transport. The client subscribes to
// the transport's inbound frames immediately, so no reply is lost even if the
// transport is already connected.
func NewRPCClient(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) *RPCClient {
	c := &RPCClient{
		config:     config,
		transport:  transport,
		serializer: serializer,
		pending:    xsync.NewMapOf[string, *Call](),
		ps:         pubsub.New(config.SubscriberBufferSize()),
		inbound:    transport.Messages(),
		stop:       make(chan struct{}),
		pumpDone:   make(chan struct{}),
	}
	go c.pump()
	return c
}

// Transport returns the underlying transport, e.g. to observe its state
func (c *RPCClient) Transport() transport.IRPCClientTransport {
	return c.transport
}

// Send encodes data and sends a request with a fresh identifier
func (c *RPCClient) Send(subject string, data any, opts ...CallOption) (*Call, error) {
	raw, err := c.serializer.Encode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode data for %s: %w", subject, err)
	}
	return c.SendEnvelope(common.NewRequest(subject, raw), opts...)
}

// SendEnvelope sends env as a request. The caller's identifier is kept,
// an empty identifier is replaced by a fresh one. The returned error is only
// set if the request could not be serialized or its identifier is already
// pending. A message that cannot be written right now is queued by the
// transport and the call keeps waiting. If the transport rejects it the call
// is returned already completed with ErrQueueFull (or ErrDestroyed).
func (c *RPCClient) SendEnvelope(env common.Envelope, opts ...CallOption) (*Call, error) {
	if env.ID == "" {
		env.ID = common.NewID()
	}

	o := callOptions{timeout: c.config.Timeout()}
	for _, opt := range opts {
		opt(&o)
	}

	frame, err := c.serializer.Serialize(env)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize request %s: %w", env.Subject, err)
	}

	call := newCall(c, env)
	if c.destroyed.Load() {
		call.fail(ErrDestroyed)
		return call, nil
	}

	// the waiter is registered before sending so a fast reply finds it
	if _, loaded := c.pending.LoadOrStore(env.ID, call); loaded {
		return nil, fmt.Errorf("request id %s is already pending", env.ID)
	}
	// Destroy may have drained the table between the check and the store
	if c.destroyed.Load() {
		if c.forget(env.ID) {
			call.fail(ErrDestroyed)
		}
		return call, nil
	}

	if o.timeout > 0 {
		id := env.ID
		call.startTimer(o.timeout, func() {
			if c.forget(id) {
				timeoutsTotal.Inc()
				Logger.Warningf("Request %s (%s) timed out after %s", id, call.Subject, o.timeout)
				call.fail(ErrTimeout)
			}
		})
	}

	requestsTotal.Inc()
	switch c.transport.Submit(string(frame)) {
	case transport.SendQueued:
		Logger.Debugf("Request %s (%s) queued", env.ID, env.Subject)
	case transport.SendRejected:
		if c.forget(env.ID) {
			rejectedTotal.Inc()
			err := ErrQueueFull
			if c.destroyed.Load() {
				err = ErrDestroyed
			}
			Logger.Warningf("Request %s (%s) rejected by the transport: %v", env.ID, env.Subject, err)
			call.fail(err)
		}
	}
	return call, nil
}

// Publish sends a fire-and-forget message. No response is awaited.
func (c *RPCClient) Publish(subject string, data any) error {
	raw, err := c.serializer.Encode(data)
	if err != nil {
		return fmt.Errorf("failed to encode data for %s: %w", subject, err)
	}
	frame, err := c.serializer.Serialize(common.NewEvent(subject, raw))
	if err != nil {
		return fmt.Errorf("failed to serialize message %s: %w", subject, err)
	}
	publishedTotal.Inc()
	c.transport.Send(string(frame))
	return nil
}

// On subscribes to all envelopes with the given subject, including error envelopes
func (c *RPCClient) On(subject string) *Subscription {
	return c.subscribe(messageTopic(subject))
}

// OnError subscribes to all error envelopes with the given subject
func (c *RPCClient) OnError(subject string) *Subscription {
	return c.subscribe(errorTopic(subject))
}

// DecodeEnvelope decodes the data of env (e.g. from On) with the client's serializer
func (c *RPCClient) DecodeEnvelope(env common.Envelope, v any) error {
	if err := c.serializer.Decode(env.Payload(), v); err != nil {
		return fmt.Errorf("failed to decode data of %q: %w", env.Subject, err)
	}
	return nil
}

// Pending returns the number of calls waiting for a response
func (c *RPCClient) Pending() int {
	return c.pending.Size()
}

// Destroy destroys the transport, completes every pending call with
// ErrDestroyed and closes all subscriptions. Safe to call more than once.
func (c *RPCClient) Destroy() {
	c.destroyOnce.Do(func() {
		c.destroyed.Store(true)
		c.transport.Destroy()
		close(c.stop)
		<-c.pumpDone

		rejected := 0
		c.pending.Range(func(id string, _ *Call) bool {
			if call, ok := c.pending.LoadAndDelete(id); ok {
				call.fail(ErrDestroyed)
				rejected++
			}
			return true
		})

		c.psMu.Lock()
		c.shut = true
		c.ps.Shutdown()
		c.psMu.Unlock()

		Logger.Infof("Client for %s destroyed (%d pending requests rejected)", c.config.Endpoint, rejected)
	})
}

// --------------------------------------------------------------------------
// Inbound routing
// --------------------------------------------------------------------------

// pump routes inbound frames until the transport is destroyed
func (c *RPCClient) pump() {
	defer close(c.pumpDone)
	defer c.inbound.Unsubscribe()

	for {
		select {
		case frame, ok := <-c.inbound.C():
			if !ok {
				return
			}
			c.route(frame)
		case <-c.stop:
			return
		}
	}
}

// route decodes one frame, resolves its pending call and broadcasts it
func (c *RPCClient) route(frame string) {
	env, err := c.decode(frame)
	if err != nil {
		decodeErrorsTotal.Inc()
		Logger.Errorf("Dropping inbound message: %v", err)
		return
	}

	if env.ID != "" {
		if call, ok := c.pending.LoadAndDelete(env.ID); ok {
			if env.HasError() {
				remoteErrorsTotal.Inc()
			} else {
				responsesTotal.Inc()
			}
			call.resolve(env)
		}
	}

	topics := []string{messageTopic(env.Subject)}
	if env.HasError() {
		topics = append(topics, errorTopic(env.Subject))
	}

	c.psMu.RLock()
	defer c.psMu.RUnlock()
	if !c.shut {
		// every subscription drains its pubsub channel into a mailbox, so Pub only waits for that hand-off
		c.ps.Pub(env, topics...)
	}
}

func (c *RPCClient) decode(frame string) (common.Envelope, error) {
	var env common.Envelope
	trimmed := strings.TrimLeft(frame, " \t\r\n")
	if !strings.HasPrefix(trimmed, "{") {
		return env, fmt.Errorf("not a json object: %.64q", frame)
	}
	if err := c.serializer.Deserialize([]byte(trimmed), &env); err != nil {
		return env, fmt.Errorf("invalid envelope: %w", err)
	}
	if env.Subject == "" {
		return env, fmt.Errorf("envelope without subject: %.64q", frame)
	}
	return env, nil
}

// forget removes a pending call. Returns true if the caller now owns its completion.
func (c *RPCClient) forget(id string) bool {
	_, ok := c.pending.LoadAndDelete(id)
	return ok
}

func messageTopic(subject string) string {
	return "msg:" + subject
}

func errorTopic(subject string) string {
	return "err:" + subject
}
