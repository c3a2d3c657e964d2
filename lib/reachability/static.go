package reachability

import (
	"github.com/ValentinKolb/rws/lib/broadcast"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("reachability")

// --------------------------------------------------------------------------
// Static signal
// --------------------------------------------------------------------------

// staticReachability never changes its value
type staticReachability struct {
	signal *broadcast.Value[bool]
}

// NewStatic creates a signal that is fixed to online.
// NewStatic(true) is the default used when no signal is configured.
func NewStatic(online bool) IReachability {
	return &staticReachability{signal: broadcast.NewValue(online)}
}

func (s *staticReachability) Online() bool {
	return s.signal.Get()
}

func (s *staticReachability) Subscribe() *broadcast.Subscription[bool] {
	return s.signal.Subscribe()
}

// --------------------------------------------------------------------------
// Manual signal
// --------------------------------------------------------------------------

// Manual is a reachability signal driven by the embedder (or a test).
type Manual struct {
	signal *broadcast.Value[bool]
}

// NewManual creates a manually driven signal with the given initial value
func NewManual(initial bool) *Manual {
	return &Manual{signal: broadcast.NewValue(initial)}
}

func (m *Manual) Online() bool {
	return m.signal.Get()
}

func (m *Manual) Subscribe() *broadcast.Subscription[bool] {
	return m.signal.Subscribe()
}

// Set updates the signal. Subscribers are only notified if the value changed.
func (m *Manual) Set(online bool) {
	if setIfChanged(m.signal, online) {
		if online {
			Logger.Infof("network is reachable again")
		} else {
			Logger.Infof("network is unreachable")
		}
	}
}

// setIfChanged stores val and reports whether this was a change
func setIfChanged(v *broadcast.Value[bool], val bool) bool {
	return v.Update(func(old bool) (bool, bool) {
		return val, old != val
	})
}
