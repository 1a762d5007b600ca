package session

// State is the lifecycle phase of the call session controller.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateActive
	StateStopping
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}
