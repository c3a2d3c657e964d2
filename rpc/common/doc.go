// Package common provides the core data structures shared by the transport,
// client and server packages of rws.
//
// The package focuses on:
//   - Wire message definition (the JSON envelope)
//   - The connection state enumeration observed by all layers
//   - Configuration structures for client and server components
//   - Custom logging implementation integrated with the dragonboat logger facade
//
// Key Components:
//
//   - Envelope: The unit of application communication. One text frame on the
//     wire carries exactly one envelope {id?, subject?, data, error?}. Factory
//     functions create requests (fresh UUIDv4 identifier), events (no
//     identifier) and success or error replies that echo the request's id and
//     subject.
//
//   - ConnectionState: Idle, Connecting, Connected, Disconnected and Failed.
//     Only the transport's event loop changes the state. Failed marks an open
//     connection that broke with an error and is always followed by
//     Disconnected. Idle is terminal.
//
//   - ClientConfig: Endpoint, reconnect backoff (initial and maximum delay),
//     default request timeout, outbound queue capacity and socket options.
//     Zero values fall back to the defaults (1000 ms initial delay, 10000 ms
//     maximum, no request timeout, unbounded queue).
//
//   - ServerConfig: Listen endpoint, websocket and metrics paths, handler
//     timeout and log level.
//
//   - Logger: CreateLogger is a dragonboat logger factory that writes
//     "LEVEL | name | message" lines. InitLoggers installs it and sets the
//     level of every logger of the module.
package common
