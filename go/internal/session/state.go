package session

// State is the lifecycle state of the room connection.
type State int

const (
	// StateIdle means no room or no display name is selected.
	StateIdle State = iota
	// StateConnecting means the socket is opening.
	StateConnecting
	// StateAuthenticating means the socket is open and the AUTH frame has not arrived yet.
	StateAuthenticating
	// StateSynced means the identity is known and notifications are being handled.
	StateSynced
	// StateClosed means the connection was torn down by an error.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateSynced:
		return "synced"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// active reports whether a connection is open or being opened.
func (s State) active() bool {
	return s == StateConnecting || s == StateAuthenticating || s == StateSynced
}
