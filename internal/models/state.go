package models

import "fmt"

// State is the lifecycle position of a Package
type State int

const (
	StateConfigured State = iota
	StatePrepared
	StateDispatched
	StateAwaitingResponse
	StateReceived
	StateFailed
	StateTimedOut
	StatePostProcessed
	StateBundled
	StateDone
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateConfigured:
		return "Configured"
	case StatePrepared:
		return "Prepared"
	case StateDispatched:
		return "Dispatched"
	case StateAwaitingResponse:
		return "AwaitingResponse"
	case StateReceived:
		return "Received"
	case StateFailed:
		return "Failed"
	case StateTimedOut:
		return "TimedOut"
	case StatePostProcessed:
		return "PostProcessed"
	case StateBundled:
		return "Bundled"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is possible from s
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateTimedOut
}

var transitions = map[State][]State{
	StateConfigured:       {StatePrepared},
	StatePrepared:         {StatePrepared, StateDispatched, StatePostProcessed},
	StateDispatched:       {StateAwaitingResponse},
	StateAwaitingResponse: {StateReceived, StateTimedOut},
	StateReceived:         {StatePostProcessed},
	StatePostProcessed:    {StateBundled},
	StateBundled:          {StateDone},
}

// State returns the package's current lifecycle state
func (p *Package) State() State {
	return p.state
}

// Transition moves the package to next. Every non-terminal state may move
// to Failed; all other moves must follow the package lifecycle.
func (p *Package) Transition(next State) error {
	if p.state.Terminal() {
		return fmt.Errorf("package %s: cannot leave terminal state %s for %s", p.Name(), p.state, next)
	}
	if next == StateFailed {
		p.state = next
		return nil
	}
	for _, allowed := range transitions[p.state] {
		if allowed == next {
			p.state = next
			return nil
		}
	}
	return fmt.Errorf("package %s: invalid transition %s -> %s", p.Name(), p.state, next)
}
