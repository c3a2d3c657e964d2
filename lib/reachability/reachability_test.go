package reachability

import (
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"
)

func expectValue(t *testing.T, ch <-chan bool, want bool) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("expected %v, got %v", want, got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for %v", want)
	}
}

func expectNothing(t *testing.T, ch <-chan bool) {
	t.Helper()
	select {
	case got := <-ch:
		t.Fatalf("unexpected value %v", got)
	case <-time.After(30 * time.Millisecond):
	}
}

// TestStatic tests that the static signal replays its value
func TestStatic(t *testing.T) {
	for _, online := range []bool{true, false} {
		r := NewStatic(online)
		if r.Online() != online {
			t.Fatalf("Online() = %v, want %v", r.Online(), online)
		}
		sub := r.Subscribe()
		expectValue(t, sub.C(), online)
		sub.Unsubscribe()
	}
}

// TestManual tests that only changes are published
func TestManual(t *testing.T) {
	m := NewManual(true)
	sub := m.Subscribe()
	defer sub.Unsubscribe()

	expectValue(t, sub.C(), true)

	m.Set(true)
	expectNothing(t, sub.C())

	m.Set(false)
	expectValue(t, sub.C(), false)
	if m.Online() {
		t.Fatalf("expected offline")
	}

	m.Set(true)
	expectValue(t, sub.C(), true)
}

// TestProbe tests that the probe follows the dial results
func TestProbe(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)

	dial := func(network, address string, timeout time.Duration) (net.Conn, error) {
		if fail.Load() {
			return nil, errors.New("unreachable")
		}
		client, server := net.Pipe()
		_ = server.Close()
		return client, nil
	}

	p := newProbe("peer:1", 5*time.Millisecond, time.Millisecond, dial)
	defer p.Close()

	sub := p.Subscribe()
	defer sub.Unsubscribe()

	// the initial value is online, the first check flips it
	deadline := time.After(time.Second)
	sawOffline := false
	for !sawOffline {
		select {
		case v := <-sub.C():
			sawOffline = !v
		case <-deadline:
			t.Fatalf("probe never reported offline")
		}
	}

	fail.Store(false)
	expectValue(t, sub.C(), true)
	if !p.Online() {
		t.Fatalf("expected online")
	}
}

// TestProbeClose tests that Close ends subscriptions and is idempotent
func TestProbeClose(t *testing.T) {
	dial := func(network, address string, timeout time.Duration) (net.Conn, error) {
		return nil, errors.New("unreachable")
	}
	p := newProbe("peer:1", time.Hour, time.Millisecond, dial)
	sub := p.Subscribe()

	p.Close()
	p.Close()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-sub.C():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("subscription not closed after Close")
		}
	}
}
