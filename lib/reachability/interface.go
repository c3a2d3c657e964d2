package reachability

import "github.com/ValentinKolb/rws/lib/broadcast"

// IReachability is the interface for a network reachability signal.
// The transport consults it before every scheduled reconnect attempt.
type IReachability interface {
	// Online reports whether the network path to the peer is currently usable
	Online() bool
	// Subscribe returns a replay-last subscription: the current value is
	// delivered first, followed by every change
	Subscribe() *broadcast.Subscription[bool]
}
