package nativeui

// State is the lifecycle state of a Component.
type State int

const (
	StateIdle State = iota
	StateWaitingForReadiness
	StateActive
	// StateSuspended is an active component that was deactivated. Enable may resume it.
	StateSuspended
	// StateDisabled is terminal.
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaitingForReadiness:
		return "waiting_for_readiness"
	case StateActive:
		return "active"
	case StateSuspended:
		return "suspended"
	case StateDisabled:
		return "disabled"
	}
	return "unknown"
}
