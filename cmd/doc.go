// Package cmd implements the command-line interface of rws. It provides a
// peer server and client commands to talk to any rws peer.
//
// The package is organized into several subpackages:
//
//   - serve: Starts a peer server with the builtin handlers (Ping, Echo, Time, Broadcast)
//   - msg: Client commands (send, publish, listen, perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set as environment variable RWS_<FLAG> (dashes
// become underscores), .env and .env.local are loaded on start.
//
// See rws -help for a list of all commands.
package cmd
