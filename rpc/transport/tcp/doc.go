// Package tcp implements a TCP socket-based transport for rws. It provides
// concrete implementations of the base package's connector interfaces.
//
// Framing:
//
//	One message is one line terminated by '\n'. Line breaks inside an outgoing
//	message are replaced by spaces, which never changes the meaning of a JSON
//	envelope. Empty lines are ignored by the reader and may be used as
//	keep-alives.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector
//
// Socket options (TCP_NODELAY, keep-alive, linger, buffer sizes) are applied
// on both sides from common.TransportConfig.
package tcp
