// Package unix implements the rws transport over Unix domain sockets for
// peers running on the same machine. Frames use the newline framing of the
// tcp package, the reconnect logic is the one of package base.
//
// Key Components:
//
//   - clientConnector: Dials the socket file given as endpoint
//
//   - serverConnector: Creates the socket listener, removing a stale socket file first
package unix
