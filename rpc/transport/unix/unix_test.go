package unix

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/rws/rpc/common"
	"github.com/ValentinKolb/rws/rpc/transport"
)

// TestRoundTrip tests an echo over a unix socket with the reconnecting client
func TestRoundTrip(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "rws.sock")

	st := NewUnixServerTransport()
	st.RegisterHandler(func(conn transport.IConn, _ string) {
		for {
			msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage("echo:" + msg); err != nil {
				return
			}
		}
	})
	go func() {
		if err := st.Listen(common.DefaultServerConfig(socket)); err != nil {
			t.Errorf("Listen failed: %v", err)
		}
	}()
	defer st.Close()

	// wait for the socket file
	deadline := time.Now().Add(2 * time.Second)
	for st.(interface{ Addr() net.Addr }).Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatalf("server did not start")
		}
		time.Sleep(time.Millisecond)
	}

	config := common.DefaultClientConfig(socket)
	config.InitialReconnectDelayMs = 10
	tr := NewUnixClientTransport(config, nil)
	defer tr.Destroy()

	msgs := tr.Messages()
	defer msgs.Unsubscribe()
	tr.Send(`{"subject":"Ping"}`)

	select {
	case got := <-msgs.C():
		if got != `echo:{"subject":"Ping"}` {
			t.Fatalf("unexpected frame %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no echo received")
	}
}
