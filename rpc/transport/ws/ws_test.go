package ws

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/rws/lib/broadcast"
	"github.com/ValentinKolb/rws/rpc/common"
	"github.com/ValentinKolb/rws/rpc/transport"
)

// echoHandler writes every frame back to the sender
func echoHandler(conn transport.IConn, _ string) {
	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := conn.WriteMessage("echo:" + msg); err != nil {
			return
		}
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func clientConfig(endpoint string) common.ClientConfig {
	conf := common.DefaultClientConfig(endpoint)
	conf.InitialReconnectDelayMs = 10
	conf.MaxReconnectDelayMs = 50
	return conf
}

func waitForState(t *testing.T, sub *broadcast.Subscription[common.ConnectionState], want common.ConnectionState) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case got := <-sub.C():
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s", want)
		}
	}
}

func expectMessage(t *testing.T, sub *broadcast.Subscription[string], want string) {
	t.Helper()
	select {
	case got := <-sub.C():
		if got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timeout waiting for %q", want)
	}
}

// TestEcho tests a round trip through a real websocket connection
func TestEcho(t *testing.T) {
	st := NewWSServerTransport()
	st.RegisterHandler(echoHandler)
	srv := httptest.NewServer(st)
	defer srv.Close()
	defer st.Close()

	tr := NewWSClientTransport(clientConfig(wsURL(srv)), nil, nil)
	defer tr.Destroy()

	msgs := tr.Messages()
	defer msgs.Unsubscribe()

	// queued while connecting or sent directly, both must arrive
	tr.Send(`{"subject":"Ping","data":{}}`)
	expectMessage(t, msgs, `echo:{"subject":"Ping","data":{}}`)

	state := tr.SubscribeState()
	defer state.Unsubscribe()
	waitForState(t, state, common.StateConnected)

	if !tr.Send("second") {
		t.Fatalf("Send while connected should report sent")
	}
	expectMessage(t, msgs, "echo:second")
}

// TestCleanCloseReconnects tests that a server side close leads to a reconnect without Failed
func TestCleanCloseReconnects(t *testing.T) {
	var accepted atomic.Int32
	st := NewWSServerTransport()
	st.RegisterHandler(func(conn transport.IConn, addr string) {
		// the first connection is closed right away
		if accepted.Add(1) == 1 {
			return
		}
		echoHandler(conn, addr)
	})
	srv := httptest.NewServer(st)
	defer srv.Close()
	defer st.Close()

	tr := NewWSClientTransport(clientConfig(wsURL(srv)), nil, nil)
	defer tr.Destroy()

	state := tr.SubscribeState()
	defer state.Unsubscribe()

	waitForState(t, state, common.StateConnected)

	sawFailed := false
	deadline := time.After(3 * time.Second)
	for done := false; !done; {
		select {
		case s := <-state.C():
			switch s {
			case common.StateFailed:
				sawFailed = true
			case common.StateConnected:
				done = true
			}
		case <-deadline:
			t.Fatalf("transport did not reconnect")
		}
	}
	if sawFailed {
		t.Errorf("a clean close must not produce Failed")
	}
	if accepted.Load() < 2 {
		t.Errorf("expected a second connection, got %d", accepted.Load())
	}
}

// TestMetricsAndHealth tests the auxiliary routes
func TestMetricsAndHealth(t *testing.T) {
	st := NewWSServerTransport()
	st.RegisterHandler(echoHandler)
	srv := httptest.NewServer(st)
	defer srv.Close()
	defer st.Close()

	// create at least one transport so the transport metrics exist
	tr := NewWSClientTransport(clientConfig(wsURL(srv)), nil, nil)
	state := tr.SubscribeState()
	waitForState(t, state, common.StateConnected)
	state.Unsubscribe()
	tr.Destroy()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), `rws_transport_connects_total{transport="ws"}`) {
		t.Errorf("metrics output misses the connect counter:\n%s", body)
	}

	resp, err = http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "OK" {
		t.Errorf("unexpected health response %q", body)
	}
}

// TestHandshakeFailure tests that a non websocket endpoint keeps the transport retrying
func TestHandshakeFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	tr := NewWSClientTransport(clientConfig(wsURL(srv)), nil, nil)
	defer tr.Destroy()

	state := tr.SubscribeState()
	defer state.Unsubscribe()

	// two failed attempts
	waitForState(t, state, common.StateDisconnected)
	waitForState(t, state, common.StateConnecting)
	waitForState(t, state, common.StateDisconnected)

	if tr.Send("queued") {
		t.Fatalf("Send without connection should report queued")
	}
}
