// Package rpc provides a self-healing, bidirectional message layer on top of a
// single persistent connection. It turns a fire-and-forget text frame stream
// into awaitable request/reply and publish/subscribe semantics.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures used across the RPC system, including the
//     JSON Envelope, the ConnectionState enumeration, configuration structures
//     and logging.
//
//   - transport: Network communication abstractions. The base package holds the
//     reconnecting client transport (backoff, outbound queue, state signal),
//     ws, tcp and mem provide the physical connections.
//
//   - serializer: Envelope serialization (encoding/json or goccy/go-json).
//
//   - client: The correlator. Frames outbound messages with identifiers, decodes
//     inbound frames and routes them to pending calls and subject subscribers.
//
//   - server: A peer server with subject handlers and server push, used by the
//     CLI and in tests.
package rpc
