// Package base provides the core transport machinery shared by all concrete
// transports of rws. It implements the reconnecting client transport and the
// accept loop of listener based servers. The actual physical connections are
// delegated to transport-specific connectors (see the ws, tcp and mem packages).
//
// Client Architecture:
//
//	The client transport is a single-owner event loop. One goroutine owns the
//	physical connection, the outbound queue, the backoff timer and the
//	connection state. Everything else (dial attempts, the reader goroutine,
//	timers, the reachability watcher and callers of Send) communicates with the
//	loop through tagged events. Every dial attempt gets a new generation
//	number, events of older generations are discarded.
//
// State Machine:
//
//	Idle -> Connecting        never observed, the constructor starts dialing
//	Connecting -> Connected   on successful open, resets the backoff and
//	                          drains the outbound queue before any new send
//	Connecting -> Disconnected on a failed attempt
//	Connected -> Failed -> Disconnected on a broken connection
//	Connected -> Disconnected on a clean close by the peer
//	Disconnected -> Connecting after the backoff delay, deferred and re-armed
//	                          while the reachability signal reports offline
//	any -> Idle               on Destroy (terminal)
//
// Backoff:
//
//	The wait after the N-th consecutive failure is min(initial*2^(N-1), max).
//	With the defaults (1000 ms, 10000 ms) the waits are 1s, 2s, 4s, 8s, 10s, ...
//	The counter resets on a successful open and when the reachability signal
//	changes from offline to online (which also dials immediately). Retries
//	never stop while the transport is not destroyed.
//
// Outbound Queue:
//
//	Messages sent while not Connected are queued in FIFO order and Send returns
//	false. The queue is unbounded unless ClientConfig.QueueCapacity is set, in
//	which case messages that do not fit are dropped (and counted). If a write
//	fails during the drain the failed message and the rest stay at the head of
//	the queue for the next connection.
//
// Metrics (VictoriaMetrics, label transport="<name>"):
//
//	rws_transport_connects_total, rws_transport_dial_failures_total,
//	rws_transport_disconnects_total, rws_transport_faults_total,
//	rws_transport_messages_sent_total, rws_transport_messages_queued_total,
//	rws_transport_queue_dropped_total, rws_transport_messages_received_total,
//	rws_transport_deferred_dials_total, rws_transport_backoff_seconds
package base
