// Package reachability provides the network reachability signal consumed by
// the reconnecting transport. A reconnect attempt that is due while the signal
// reports offline is deferred and re-armed instead of dialing, and a change
// from offline to online resets the backoff and triggers an immediate attempt.
//
// Key Components:
//
//   - IReachability: Interface of a boolean signal with replay-last
//     subscriptions.
//
//   - NewStatic: Fixed signal. NewStatic(true) is the default and behaves as
//     if the network were always reachable.
//
//   - Manual: Signal driven by the embedder, e.g. from an OS network change
//     notification or from tests.
//
//   - Probe: Periodic TCP dial check against a known address.
package reachability
