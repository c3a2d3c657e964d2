// Package server implements the peer side of rws: an RPC server that reads
// envelopes from any server transport (ws, tcp, mem) and dispatches them to
// subject handlers.
//
// The package focuses on:
//   - Subject based dispatch with one goroutine per request
//   - Replies that keep the request's id and subject
//   - Server push to single peers (Peer.Push) and to all peers (Broadcast)
//
// Key Components:
//
//   - HandlerFunc: processes one envelope. The returned value is encoded as the
//     reply's data, a returned error becomes the reply's error text. Returning
//     NoReply sends nothing. Envelopes without id are events and never answered.
//
//   - Peer: one connected client with a per-connection value store (Set/Get).
//
//   - RegisterBuiltins: Ping, Echo, Time and Broadcast handlers used by `rws serve`.
//
// A request with an unregistered subject is answered with the error
// "unknown subject <subject>". Handlers get a context that ends when the peer
// disconnects or ServerConfig.TimeoutSecond elapses.
//
// Usage Example:
//
//	s := server.NewRPCServer(
//	  common.DefaultServerConfig(":8080"),
//	  ws.NewWSServerTransport(),
//	  serializer.NewJSONSerializer(),
//	)
//	server.RegisterBuiltins(s)
//	s.Handle("Add", func(ctx context.Context, p *server.Peer, req common.Envelope) (any, error) {
//	  var args []int
//	  if err := req.DecodeData(&args); err != nil {
//	    return nil, err
//	  }
//	  return args[0] + args[1], nil
//	})
//
//	if err := s.Serve(); err != nil {
//	  log.Fatal(err)
//	}
package server
