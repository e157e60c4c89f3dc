package batch

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of a batch job.
type State int

// Batch job states. Validating may move straight to Failed without entering
// Running. There is no retry state.
const (
	StateValidating State = iota
	StateRunning
	StateAggregating
	StateDone
	StateFailed
)

// ErrInvalidTransition is returned for a transition the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid batch state transition")

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateRunning:
		return "running"
	case StateAggregating:
		return "aggregating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state by name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s State) CanTransitionTo(next State) bool {
	switch s {
	case StateValidating:
		return next == StateRunning || next == StateFailed
	case StateRunning:
		// Failed here means the executor itself broke, not that items failed.
		return next == StateAggregating || next == StateFailed
	case StateAggregating:
		return next == StateDone
	default:
		return false
	}
}

// lifecycle tracks the state of a single Run.
type lifecycle struct {
	current State
	history []State
}

func newLifecycle() *lifecycle {
	return &lifecycle{current: StateValidating, history: []State{StateValidating}}
}

func (l *lifecycle) transition(next State) error {
	if !l.current.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.current, next)
	}
	l.current = next
	l.history = append(l.history, next)
	return nil
}
