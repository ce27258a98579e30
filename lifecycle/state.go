package lifecycle

// State is the coordinator's position in the server lifecycle.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateRunning
	StateShuttingDown
	StateStopped
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting-down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
