package pipeline

import "errors"

// State is the orchestrator lifecycle position. Transitions are strictly
// ordered; operations called out of order fail with ErrInvalidState.
type State int32

const (
	// StateCreated is the initial state after New.
	StateCreated State = iota

	// StateInitialized means queues, registry, and subscriptions exist
	// but no loops are running.
	StateInitialized

	// StateRunning means the feed and the processing loops are active.
	StateRunning

	// StateStopping means shutdown is in progress: feed halted, queues
	// draining.
	StateStopping

	// StateStopped is terminal. A stopped orchestrator is not reusable.
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ErrInvalidState indicates a lifecycle operation called from the wrong
// state, e.g. Start before Init.
var ErrInvalidState = errors.New("invalid lifecycle state")
