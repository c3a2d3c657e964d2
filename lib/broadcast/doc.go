// Package broadcast provides the fan-out primitives used by the transport and
// the session layer to publish values to any number of independent observers.
//
// The package focuses on:
//   - Publishers that never block, regardless of how slow observers are
//   - Per-subscriber cursors: every subscriber has its own queue and sees
//     every value in publish order
//   - Replay-last semantics for state-like values
//
// Key Components:
//
//   - Mailbox: Unbounded multi-producer single-consumer queue backed by a
//     lock-free linked list. Items are handed to the consumer through a
//     channel so it can be used in select statements.
//
//   - Stream: Hot multicast stream. Subscribers only see values published
//     after they subscribed (used for inbound transport frames).
//
//   - Value: Replay-last signal. New subscribers receive the current value
//     immediately, followed by every later Set (used for connection state,
//     reachability and authentication signals).
//
//   - Subscription: Handle returned by Subscribe. Reading from C() consumes
//     the subscriber's queue, Unsubscribe detaches it and drops what was not
//     delivered yet.
//
// Usage:
//
//	state := broadcast.NewValue(common.StateConnecting)
//	sub := state.Subscribe()
//	defer sub.Unsubscribe()
//	for s := range sub.C() {
//	  fmt.Println("state:", s)
//	}
//
// Thread Safety:
//
//	All types are safe for concurrent use. Ordering across subscribers is
//	consistent because publishing is serialized per Stream/Value.
package broadcast
