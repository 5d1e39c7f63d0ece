package feed

// State is the connection state of a Client.
type State int

const (
	// Disconnected: no live transport. A reconnect may be pending.
	Disconnected State = iota
	// Connecting: a transport was dialed and has not opened yet.
	Connecting
	// Connected: the transport is open and deltas are flowing.
	Connected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}
