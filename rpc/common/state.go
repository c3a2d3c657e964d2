package common

// ConnectionState is the state of a client transport's logical connection.
// It is owned by the transport and only changes through its event loop.
type ConnectionState int

const (
	// StateIdle is terminal and only reached via Destroy
	StateIdle ConnectionState = iota
	// StateConnecting means a physical connection attempt is in flight
	StateConnecting
	// StateConnected means the physical connection is open
	StateConnected
	// StateDisconnected means no connection is open and a reconnect is scheduled
	StateDisconnected
	// StateFailed is emitted when an open connection broke with an error.
	// It is always followed by StateDisconnected.
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateDisconnected:
		return "Disconnected"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
