package session

// State of a controller.
type State int

const (
	Idle State = iota
	Initializing
	Ready
	Playing
	Paused
	Terminating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Terminating:
		return "terminating"
	default:
		return "unknown"
	}
}

// Active reports whether media is attached and playable.
func (s State) Active() bool {
	return s == Ready || s == Playing || s == Paused
}
