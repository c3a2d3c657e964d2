// Package mem implements an in-process transport for rws. A Network connects
// client and server transports without sockets, which makes the reconnecting
// client testable without timing on real ports.
//
// Key Components:
//
//   - Network: registry of listening server transports (xsync.MapOf).
//     Dialing an address without listener fails with "connection refused",
//     Break fails all connections of an address with a read error.
//
//   - Pipe: a connected pair of IConn. Each end delivers frames through an
//     unbounded broadcast.Mailbox, so writes never block.
//
// Usage:
//
//	network := mem.NewNetwork()
//	st := network.NewServerTransport()
//	st.RegisterHandler(handler)
//	go st.Listen(common.DefaultServerConfig("peer"))
//	tr := network.NewClientTransport(common.DefaultClientConfig("peer"), nil)
package mem
