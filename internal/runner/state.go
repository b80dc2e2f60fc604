// internal/runner/state.go
package runner

import (
	"fmt"
	"sync"

	"github.com/valpere/uiverify/internal/config"
)

// State is a phase of a verification run
type State string

const (
	StateIdle        State = "idle"
	StateSessionOpen State = "session_open"
	StateNavigating  State = "navigating"
	StateWaiting     State = "waiting"
	StateInteracting State = "interacting"
	StateAsserting   State = "asserting"
	StateCapturing   State = "capturing"
	StateClosed      State = "closed"
)

// transitions lists where each state may move next. Every open state can
// reach Capturing (error artifact) and Closed (teardown).
var transitions = map[State][]State{
	StateIdle:        {StateSessionOpen, StateClosed},
	StateSessionOpen: {StateNavigating, StateWaiting, StateInteracting, StateAsserting, StateCapturing, StateClosed},
	StateNavigating:  {StateNavigating, StateWaiting, StateInteracting, StateAsserting, StateCapturing, StateClosed},
	StateWaiting:     {StateNavigating, StateWaiting, StateInteracting, StateAsserting, StateCapturing, StateClosed},
	StateInteracting: {StateNavigating, StateWaiting, StateInteracting, StateAsserting, StateCapturing, StateClosed},
	StateAsserting:   {StateNavigating, StateWaiting, StateInteracting, StateAsserting, StateCapturing, StateClosed},
	StateCapturing:   {StateNavigating, StateWaiting, StateInteracting, StateAsserting, StateCapturing, StateClosed},
	StateClosed:      {},
}

// CanTransition reports whether a run may move from one state to another
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// stateMachine tracks the current state and the sequence of states visited
type stateMachine struct {
	mu      sync.Mutex
	current State
	trace   []State
}

func newStateMachine() *stateMachine {
	return &stateMachine{current: StateIdle, trace: []State{StateIdle}}
}

func (m *stateMachine) to(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !CanTransition(m.current, next) {
		return fmt.Errorf("invalid run state transition %s -> %s", m.current, next)
	}
	if m.trace[len(m.trace)-1] != next {
		m.trace = append(m.trace, next)
	}
	m.current = next
	return nil
}

func (m *stateMachine) state() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *stateMachine) history() []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]State(nil), m.trace...)
}

// stateFor is the state a step action runs in
func stateFor(a config.Action) State {
	switch a {
	case config.ActionGoto:
		return StateNavigating
	case config.ActionWait:
		return StateWaiting
	case config.ActionAssertVisible, config.ActionAssertHidden, config.ActionAssertAttribute,
		config.ActionAssertNoAttribute, config.ActionAssertText, config.ActionAudit:
		return StateAsserting
	case config.ActionScreenshot, config.ActionSnapshot:
		return StateCapturing
	default:
		return StateInteracting
	}
}
