// Package ws implements the websocket transport of rws on top of
// github.com/gorilla/websocket. Every message is one text frame.
//
// Key Components:
//
//   - clientConnector: websocket implementation of base.IClientConnector.
//     NewWSClientTransport wraps it into the reconnecting base transport.
//     The dial uses the configured dial timeout as handshake timeout and
//     every write is guarded by the configured write timeout.
//
//   - ServerTransport: websocket implementation of transport.IRPCServerTransport.
//     It is an http.Handler routed with gorilla/mux and additionally exposes
//     the prometheus metrics of the process (VictoriaMetrics) and a health check.
//
// A close frame with status 1000 (normal), 1001 (going away) or 1005 (no status)
// counts as a clean close and is reported as io.EOF, every other read error is
// a connection fault.
package ws
