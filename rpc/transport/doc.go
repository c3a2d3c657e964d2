// Package transport defines the interfaces and abstractions for the
// connection layer of rws. It provides a common contract that all transport
// implementations must fulfill, enabling protocol-agnostic communication.
//
// The package focuses on:
//   - Defining clear interfaces for client and server transport layers
//   - Hiding reconnection from callers (single logical connection)
//   - Enabling multiple transport implementations (WebSocket, TCP, in-memory)
//
// Key Components:
//
//   - IConn: A physical message oriented connection (one frame per message).
//
//   - IRPCClientTransport: Interface of the reconnecting client transport.
//     See the base package for the state machine and backoff policy.
//
//   - IRPCServerTransport: Interface for server-side transport implementations
//     that accept connections and hand them to a ConnHandleFunc.
//
// Implementations:
//
//   - base: Reconnecting client transport on top of any connector
//   - ws: WebSocket text frames (gorilla/websocket)
//   - tcp: Newline delimited frames over TCP
//   - mem: In-process network for tests and embedders
package transport
