package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/rws/rpc/common"
	"github.com/ValentinKolb/rws/rpc/serializer"
	"github.com/ValentinKolb/rws/rpc/transport"
	"github.com/ValentinKolb/rws/rpc/transport/mem"
)

// testPeer is a raw connection to the server under test
type testPeer struct {
	t    *testing.T
	conn transport.IConn
}

func (p *testPeer) send(frame string) {
	p.t.Helper()
	if err := p.conn.WriteMessage(frame); err != nil {
		p.t.Fatalf("WriteMessage failed: %v", err)
	}
}

func (p *testPeer) recv() common.Envelope {
	p.t.Helper()
	type result struct {
		frame string
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		frame, err := p.conn.ReadMessage()
		ch <- result{frame, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			p.t.Fatalf("ReadMessage failed: %v", r.err)
		}
		var env common.Envelope
		if err := json.Unmarshal([]byte(r.frame), &env); err != nil {
			p.t.Fatalf("invalid frame %q: %v", r.frame, err)
		}
		return env
	case <-time.After(2 * time.Second):
		p.t.Fatalf("no message received")
	}
	return common.Envelope{}
}

// startTestServer starts a server with the builtin handlers on a mem network
func startTestServer(t *testing.T) (*RPCServer, *mem.Network) {
	t.Helper()
	network := mem.NewNetwork()
	st := network.NewServerTransport()
	s := NewRPCServer(common.DefaultServerConfig("peer"), st, serializer.NewJSONSerializer())
	RegisterBuiltins(s)

	go func() {
		if err := s.Serve(); err != nil {
			t.Errorf("Serve failed: %v", err)
		}
	}()
	t.Cleanup(func() { _ = s.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, err := network.Dial(context.Background(), "peer")
		if err == nil {
			_ = conn.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start")
		}
		time.Sleep(time.Millisecond)
	}
	return s, network
}

func connect(t *testing.T, network *mem.Network) *testPeer {
	t.Helper()
	conn, err := network.Dial(context.Background(), "peer")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &testPeer{t: t, conn: conn}
}

// TestBuiltins tests the handlers registered for rws serve
func TestBuiltins(t *testing.T) {
	_, network := startTestServer(t)
	p := connect(t, network)

	t.Run("Ping", func(t *testing.T) {
		p.send(`{"id":"1","subject":"Ping","data":{"n":1}}`)
		resp := p.recv()
		if resp.ID != "1" || resp.Subject != "Ping" || resp.HasError() {
			t.Fatalf("unexpected reply %v", resp)
		}
		if string(resp.Data) != `{"n":1}` {
			t.Fatalf("Expected echoed data, got %s", resp.Data)
		}
	})

	t.Run("PingWithoutData", func(t *testing.T) {
		p.send(`{"id":"2","subject":"Ping"}`)
		if resp := p.recv(); string(resp.Data) != "null" {
			t.Fatalf("Expected null data, got %s", resp.Data)
		}
	})

	t.Run("Echo", func(t *testing.T) {
		p.send(`{"id":"3","subject":"Echo","data":"hi"}`)
		var res EchoResult
		if err := p.recv().DecodeData(&res); err != nil {
			t.Fatalf("DecodeData failed: %v", err)
		}
		if res.Peer == "" || string(res.Data) != `"hi"` {
			t.Fatalf("unexpected echo %+v", res)
		}
	})

	t.Run("Time", func(t *testing.T) {
		p.send(`{"id":"4","subject":"Time"}`)
		var res TimeResult
		if err := p.recv().DecodeData(&res); err != nil {
			t.Fatalf("DecodeData failed: %v", err)
		}
		if _, err := time.Parse(time.RFC3339Nano, res.Time); err != nil {
			t.Fatalf("invalid time %q", res.Time)
		}
	})

	t.Run("UnknownSubject", func(t *testing.T) {
		p.send(`{"id":"5","subject":"Nope","data":{}}`)
		resp := p.recv()
		if resp.ErrorText() != "unknown subject Nope" || resp.ID != "5" {
			t.Fatalf("unexpected reply %v", resp)
		}
		if string(resp.Data) != "null" {
			t.Fatalf("Expected null data on error, got %s", resp.Data)
		}
	})
}

// TestHandlerResults tests errors, NoReply, events and panics
func TestHandlerResults(t *testing.T) {
	s, network := startTestServer(t)
	events := make(chan string, 1)

	s.Handle("Fail", func(context.Context, *Peer, common.Envelope) (any, error) {
		return nil, errors.New("denied")
	})
	s.Handle("Silent", func(context.Context, *Peer, common.Envelope) (any, error) {
		return NoReply, nil
	})
	s.Handle("Panic", func(context.Context, *Peer, common.Envelope) (any, error) {
		panic("boom")
	})
	s.Handle("Event", func(_ context.Context, _ *Peer, req common.Envelope) (any, error) {
		events <- req.Subject
		return "ignored", nil
	})

	p := connect(t, network)

	p.send(`{"id":"a","subject":"Fail"}`)
	if resp := p.recv(); resp.ErrorText() != "denied" {
		t.Fatalf("Expected denied, got %v", resp)
	}

	p.send(`not json`)
	p.send(`{"id":"b","subject":"Silent"}`)
	p.send(`{"subject":"Event","data":1}`)
	select {
	case <-events:
	case <-time.After(2 * time.Second):
		t.Fatalf("event handler not called")
	}

	p.send(`{"id":"c","subject":"Panic"}`)
	resp := p.recv()
	if resp.ID != "c" || !resp.HasError() {
		t.Fatalf("Expected error reply after panic, got %v", resp)
	}
}

// TestBroadcast tests server push to all peers
func TestBroadcast(t *testing.T) {
	s, network := startTestServer(t)
	a := connect(t, network)
	b := connect(t, network)

	// a round trip per peer makes sure both are registered
	for _, p := range []*testPeer{a, b} {
		p.send(`{"id":"sync","subject":"Ping"}`)
		p.recv()
	}

	n, err := s.Broadcast("News", map[string]string{"headline": "rws"})
	if err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("Expected 2 peers, got %d", n)
	}
	for _, p := range []*testPeer{a, b} {
		env := p.recv()
		if env.ID != "" || env.Subject != "News" || string(env.Data) != `{"headline":"rws"}` {
			t.Fatalf("unexpected push %v", env)
		}
	}

	a.send(`{"id":"x","subject":"Broadcast","data":{"subject":"Hello","data":[1]}}`)
	gotPush, gotReply := false, false
	for i := 0; i < 2; i++ {
		env := a.recv()
		switch env.Subject {
		case "Hello":
			gotPush = true
		case "Broadcast":
			gotReply = string(env.Data) == `{"peers":2}`
		}
	}
	if !gotPush || !gotReply {
		t.Fatalf("push=%v reply=%v", gotPush, gotReply)
	}
	if env := b.recv(); env.Subject != "Hello" || string(env.Data) != "[1]" {
		t.Fatalf("unexpected push %v", env)
	}
}

// TestPeerValues tests the per-connection value store
func TestPeerValues(t *testing.T) {
	s, network := startTestServer(t)
	s.Handle("Login", func(_ context.Context, peer *Peer, req common.Envelope) (any, error) {
		peer.Set("user", string(req.Payload()))
		return true, nil
	})
	s.Handle("Whoami", func(_ context.Context, peer *Peer, _ common.Envelope) (any, error) {
		user, ok := peer.Get("user")
		if !ok {
			return nil, errors.New("not logged in")
		}
		return user, nil
	})

	p := connect(t, network)
	p.send(`{"id":"1","subject":"Whoami"}`)
	if resp := p.recv(); resp.ErrorText() != "not logged in" {
		t.Fatalf("unexpected reply %v", resp)
	}
	p.send(`{"id":"2","subject":"Login","data":"alice"}`)
	p.recv()
	p.send(`{"id":"3","subject":"Whoami"}`)
	if resp := p.recv(); string(resp.Data) != `"\"alice\""` {
		t.Fatalf("unexpected reply %s", resp.Data)
	}

	other := connect(t, network)
	other.send(`{"id":"4","subject":"Whoami"}`)
	if resp := other.recv(); !resp.HasError() {
		t.Fatalf("values must not leak between peers")
	}
}
