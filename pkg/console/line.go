package console

// State is the lifecycle state of a Session.
type State int

const (
	// Connecting: dialing or waiting for the handshake acknowledgement.
	Connecting State = iota
	// Connected: the server acknowledged the handshake.
	Connected
	// Closed: the transport closed. Terminal.
	Closed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Kind classifies a transcript line.
type Kind int

const (
	// Input echoes a submitted command.
	Input Kind = iota
	// Output is text produced by the remote server.
	Output
	// System reports connection and error events.
	System
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Input:
		return "input"
	case Output:
		return "output"
	case System:
		return "system"
	default:
		return "unknown"
	}
}

// LogLine is one transcript entry.
type LogLine struct {
	Kind Kind
	Text string
}
