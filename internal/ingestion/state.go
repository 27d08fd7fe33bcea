package ingestion

import "sync/atomic"

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Stages of a single message, used as the "stage" log attribute.
const (
	StageDecoding    = "decoding"
	StageResolving   = "resolving"
	StageConverting  = "converting"
	StageDispatching = "dispatching"
)

type stateHolder struct {
	value atomic.Int32
}

func (h *stateHolder) load() State {
	return State(h.value.Load())
}

// swap returns the previous state.
func (h *stateHolder) swap(next State) State {
	return State(h.value.Swap(int32(next)))
}

// moveIf transitions only from the expected state.
func (h *stateHolder) moveIf(from, to State) bool {
	return h.value.CompareAndSwap(int32(from), int32(to))
}
