package base

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/rws/lib/broadcast"
	"github.com/ValentinKolb/rws/lib/reachability"
	"github.com/ValentinKolb/rws/rpc/common"
	"github.com/ValentinKolb/rws/rpc/transport"
)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

// fakeConn is a scripted in-memory connection
type fakeConn struct {
	in        chan string
	readErr   chan error
	closed    chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	written   []string
	failWrite bool
	writes    chan string
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:      make(chan string, 16),
		readErr: make(chan error, 1),
		closed:  make(chan struct{}),
		writes:  make(chan string, 64),
	}
}

func (c *fakeConn) ReadMessage() (string, error) {
	select {
	case m := <-c.in:
		return m, nil
	case err := <-c.readErr:
		return "", err
	case <-c.closed:
		return "", io.EOF
	}
}

func (c *fakeConn) WriteMessage(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrite {
		return errors.New("broken pipe")
	}
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	default:
	}
	c.written = append(c.written, msg)
	c.writes <- msg
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) setFailWrite(v bool) {
	c.mu.Lock()
	c.failWrite = v
	c.mu.Unlock()
}

// fakeConnector fails or succeeds according to script. The first attempt
// waits for gate (if set) so tests can subscribe before anything happens.
type fakeConnector struct {
	mu       sync.Mutex
	attempts []time.Time
	gate     chan struct{}
	script   func(attempt int) (transport.IConn, error)
}

func (c *fakeConnector) GetName() string {
	return "fake"
}

func (c *fakeConnector) Connect(ctx context.Context, _ string, _ common.ClientConfig) (transport.IConn, error) {
	c.mu.Lock()
	c.attempts = append(c.attempts, time.Now())
	n := len(c.attempts)
	gate := c.gate
	c.mu.Unlock()

	if n == 1 && gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.script(n)
}

func (c *fakeConnector) attemptTimes() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Time(nil), c.attempts...)
}

// failFirst fails the first n attempts and then hands out new connections on conns
func failFirst(n int, conns chan *fakeConn) func(int) (transport.IConn, error) {
	return func(attempt int) (transport.IConn, error) {
		if attempt <= n {
			return nil, errors.New("connection refused")
		}
		c := newFakeConn()
		conns <- c
		return c, nil
	}
}

func testConfig(initial, maxDelay int) common.ClientConfig {
	conf := common.DefaultClientConfig("fake://peer")
	conf.InitialReconnectDelayMs = initial
	conf.MaxReconnectDelayMs = maxDelay
	return conf
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func expectStates(t *testing.T, sub *broadcast.Subscription[common.ConnectionState], want ...common.ConnectionState) {
	t.Helper()
	for i, w := range want {
		select {
		case got, ok := <-sub.C():
			if !ok {
				t.Fatalf("state %d: subscription closed, want %s", i, w)
			}
			if got != w {
				t.Fatalf("state %d: got %s, want %s", i, got, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("state %d: timeout waiting for %s", i, w)
		}
	}
}

func waitForState(t *testing.T, sub *broadcast.Subscription[common.ConnectionState], want common.ConnectionState) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got, ok := <-sub.C():
			if !ok {
				t.Fatalf("subscription closed while waiting for %s", want)
			}
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s", want)
		}
	}
}

func nextConn(t *testing.T, conns chan *fakeConn) *fakeConn {
	t.Helper()
	select {
	case c := <-conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for a connection")
		return nil
	}
}

func expectWrites(t *testing.T, c *fakeConn, want ...string) {
	t.Helper()
	for i, w := range want {
		select {
		case got := <-c.writes:
			if got != w {
				t.Fatalf("write %d: got %q, want %q", i, got, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("write %d: timeout waiting for %q", i, w)
		}
	}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

// TestNextReconnectDelay tests the backoff formula
func TestNextReconnectDelay(t *testing.T) {
	initial := time.Second
	maxDelay := 10 * time.Second

	testCases := []struct {
		failures int
		want     time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{6, 10 * time.Second},
		{1000, 10 * time.Second},
	}

	for _, tc := range testCases {
		if got := NextReconnectDelay(initial, maxDelay, tc.failures); got != tc.want {
			t.Errorf("NextReconnectDelay(%d) = %s, want %s", tc.failures, got, tc.want)
		}
	}

	// a maximum below the initial delay is raised to the initial delay
	if got := NextReconnectDelay(time.Second, time.Millisecond, 3); got != time.Second {
		t.Errorf("expected the initial delay, got %s", got)
	}
}

// TestReconnectScenario tests three failed attempts followed by a success
func TestReconnectScenario(t *testing.T) {
	conns := make(chan *fakeConn, 1)
	connector := &fakeConnector{gate: make(chan struct{}), script: failFirst(3, conns)}

	tr := NewBaseClientTransport(connector, testConfig(10, 1000), nil)
	defer tr.Destroy()

	sub := tr.SubscribeState()
	defer sub.Unsubscribe()
	close(connector.gate)

	expectStates(t, sub,
		common.StateConnecting,
		common.StateDisconnected,
		common.StateConnecting,
		common.StateDisconnected,
		common.StateConnecting,
		common.StateDisconnected,
		common.StateConnecting,
		common.StateConnected,
	)
	nextConn(t, conns)

	attempts := connector.attemptTimes()
	if len(attempts) != 4 {
		t.Fatalf("expected 4 attempts, got %d", len(attempts))
	}
	for i, want := range []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond} {
		if gap := attempts[i+1].Sub(attempts[i]); gap < want {
			t.Errorf("gap before attempt %d was %s, want at least %s", i+2, gap, want)
		}
	}
}

// TestQueueDrainFIFO tests that queued messages are delivered once, in order, before new sends
func TestQueueDrainFIFO(t *testing.T) {
	conns := make(chan *fakeConn, 1)
	connector := &fakeConnector{gate: make(chan struct{}), script: failFirst(0, conns)}

	tr := NewBaseClientTransport(connector, testConfig(10, 100), nil)
	defer tr.Destroy()

	for _, m := range []string{"a", "b", "c"} {
		if tr.Send(m) {
			t.Fatalf("Send(%q) while connecting should report queued", m)
		}
	}

	close(connector.gate)
	c := nextConn(t, conns)
	expectWrites(t, c, "a", "b", "c")

	sub := tr.SubscribeState()
	defer sub.Unsubscribe()
	waitForState(t, sub, common.StateConnected)

	if !tr.Send("d") {
		t.Fatalf("Send while connected should report sent")
	}
	expectWrites(t, c, "d")

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.written) != 4 {
		t.Fatalf("expected exactly 4 writes, got %v", c.written)
	}
}

// TestWriteFailureRequeues tests that a message whose write failed is sent on the next connection
func TestWriteFailureRequeues(t *testing.T) {
	conns := make(chan *fakeConn, 2)
	connector := &fakeConnector{script: failFirst(0, conns)}

	tr := NewBaseClientTransport(connector, testConfig(10, 100), nil)
	defer tr.Destroy()

	first := nextConn(t, conns)
	sub := tr.SubscribeState()
	defer sub.Unsubscribe()
	waitForState(t, sub, common.StateConnected)

	first.setFailWrite(true)
	if tr.Send("x") {
		t.Fatalf("Send with failing write should report queued")
	}
	expectStates(t, sub, common.StateFailed, common.StateDisconnected, common.StateConnecting, common.StateConnected)

	second := nextConn(t, conns)
	expectWrites(t, second, "x")
	if !first.isClosed() {
		t.Fatalf("the broken connection should be closed")
	}
}

// TestFailedOnlyOnBrokenConnection tests the Failed state semantics
func TestFailedOnlyOnBrokenConnection(t *testing.T) {
	conns := make(chan *fakeConn, 3)
	connector := &fakeConnector{script: failFirst(0, conns)}

	tr := NewBaseClientTransport(connector, testConfig(10, 100), nil)
	defer tr.Destroy()

	c := nextConn(t, conns)
	sub := tr.SubscribeState()
	defer sub.Unsubscribe()
	waitForState(t, sub, common.StateConnected)

	t.Run("Fault", func(t *testing.T) {
		c.readErr <- errors.New("connection reset by peer")
		expectStates(t, sub, common.StateFailed, common.StateDisconnected, common.StateConnecting, common.StateConnected)
		c = nextConn(t, conns)
	})

	t.Run("CleanClose", func(t *testing.T) {
		c.readErr <- io.EOF
		expectStates(t, sub, common.StateDisconnected, common.StateConnecting, common.StateConnected)
		nextConn(t, conns)
	})
}

// TestQueueCapacity tests that messages beyond the capacity are rejected
func TestQueueCapacity(t *testing.T) {
	conns := make(chan *fakeConn, 1)
	connector := &fakeConnector{gate: make(chan struct{}), script: failFirst(0, conns)}

	conf := testConfig(10, 100)
	conf.QueueCapacity = 2
	tr := NewBaseClientTransport(connector, conf, nil)
	defer tr.Destroy()

	want := []transport.SendResult{transport.SendQueued, transport.SendQueued, transport.SendRejected}
	for i, m := range []string{"1", "2", "3"} {
		if got := tr.Submit(m); got != want[i] {
			t.Fatalf("Submit(%q) = %s, want %s", m, got, want[i])
		}
	}

	close(connector.gate)
	c := nextConn(t, conns)
	expectWrites(t, c, "1", "2")

	select {
	case m := <-c.writes:
		t.Fatalf("unexpected write %q", m)
	case <-time.After(30 * time.Millisecond):
	}
}

// TestReachabilityDefersReconnect tests that retries wait for the network
func TestReachabilityDefersReconnect(t *testing.T) {
	conns := make(chan *fakeConn, 1)
	connector := &fakeConnector{gate: make(chan struct{}), script: failFirst(1, conns)}
	reach := reachability.NewManual(false)

	tr := NewBaseClientTransport(connector, testConfig(5, 10), reach)
	defer tr.Destroy()

	sub := tr.SubscribeState()
	defer sub.Unsubscribe()
	close(connector.gate)
	expectStates(t, sub, common.StateConnecting, common.StateDisconnected)

	// several timer periods pass without a new attempt
	time.Sleep(60 * time.Millisecond)
	if n := len(connector.attemptTimes()); n != 1 {
		t.Fatalf("expected 1 attempt while offline, got %d", n)
	}
	if tr.State() != common.StateDisconnected {
		t.Fatalf("expected Disconnected, got %s", tr.State())
	}

	reach.Set(true)
	expectStates(t, sub, common.StateConnecting, common.StateConnected)
	nextConn(t, conns)
}

// TestExplicitReconnect tests that Reconnect skips the backoff wait
func TestExplicitReconnect(t *testing.T) {
	conns := make(chan *fakeConn, 1)
	connector := &fakeConnector{gate: make(chan struct{}), script: failFirst(1, conns)}

	tr := NewBaseClientTransport(connector, testConfig(60000, 60000), nil)
	defer tr.Destroy()

	sub := tr.SubscribeState()
	defer sub.Unsubscribe()
	close(connector.gate)
	expectStates(t, sub, common.StateConnecting, common.StateDisconnected)

	tr.Reconnect()
	expectStates(t, sub, common.StateConnecting, common.StateConnected)
	nextConn(t, conns)
}

// TestMessagesBroadcast tests that every subscriber sees every frame in order
func TestMessagesBroadcast(t *testing.T) {
	conns := make(chan *fakeConn, 1)
	connector := &fakeConnector{gate: make(chan struct{}), script: failFirst(0, conns)}

	tr := NewBaseClientTransport(connector, testConfig(10, 100), nil)
	defer tr.Destroy()

	a := tr.Messages()
	b := tr.Messages()
	defer a.Unsubscribe()
	defer b.Unsubscribe()

	close(connector.gate)
	c := nextConn(t, conns)
	for _, m := range []string{"one", "two", "three"} {
		c.in <- m
	}

	for _, sub := range []*broadcast.Subscription[string]{a, b} {
		for _, want := range []string{"one", "two", "three"} {
			select {
			case got := <-sub.C():
				if got != want {
					t.Fatalf("got %q, want %q", got, want)
				}
			case <-time.After(2 * time.Second):
				t.Fatalf("timeout waiting for %q", want)
			}
		}
	}
}

// TestDestroy tests that Destroy is idempotent and leaves the transport inert
func TestDestroy(t *testing.T) {
	conns := make(chan *fakeConn, 1)
	connector := &fakeConnector{script: failFirst(0, conns)}

	tr := NewBaseClientTransport(connector, testConfig(10, 100), nil)
	c := nextConn(t, conns)

	sub := tr.SubscribeState()
	waitForState(t, sub, common.StateConnected)

	tr.Destroy()
	tr.Destroy()

	if tr.State() != common.StateIdle {
		t.Fatalf("expected Idle, got %s", tr.State())
	}
	if !c.isClosed() {
		t.Fatalf("connection should be closed after Destroy")
	}
	if tr.Send("late") {
		t.Fatalf("Send after Destroy should fail")
	}
	if got := tr.Submit("late"); got != transport.SendRejected {
		t.Fatalf("Submit after Destroy = %s, want rejected", got)
	}
	tr.Reconnect()

	waitForState(t, sub, common.StateIdle)
	if _, ok := <-sub.C(); ok {
		t.Fatalf("state subscription should be closed after Destroy")
	}
	if len(connector.attemptTimes()) != 1 {
		t.Fatalf("no attempt may happen after Destroy")
	}
}

// TestDestroyWhileConnecting tests that Destroy cancels a pending dial
func TestDestroyWhileConnecting(t *testing.T) {
	connector := &fakeConnector{gate: make(chan struct{}), script: failFirst(0, make(chan *fakeConn, 1))}
	tr := NewBaseClientTransport(connector, testConfig(10, 100), nil)

	done := make(chan struct{})
	go func() {
		tr.Destroy()
		tr.Destroy()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Destroy blocked on a pending dial")
	}
	if tr.State() != common.StateIdle {
		t.Fatalf("expected Idle, got %s", tr.State())
	}
}
