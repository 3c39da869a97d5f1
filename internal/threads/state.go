package threads

import (
	"fmt"
	"slices"
)

// State is the lifecycle state of a support thread.
type State string

const (
	StateNew           State = "new"
	StateAwaitingInfo  State = "awaiting_info"
	StateInProgress    State = "in_progress"
	StateEscalated     State = "escalated"
	StateHumanHandling State = "human_handling"
	StateResolved      State = "resolved"
)

// Cause identifies the event category that triggered a transition,
// recorded for audit logging.
type Cause string

const (
	CauseClassification Cause = "classification"
	CauseVerification   Cause = "verification"
	CauseEscalation     Cause = "escalation"
	CauseSupervisor     Cause = "supervisor"
	CauseAgent          Cause = "agent"
	CauseInbound        Cause = "inbound"
)

// transitions is the canonical table of valid lifecycle transitions.
// Resolved is terminal: a resolved thread is only revived by a new inbound
// event creating fresh activity, never by a transition.
var transitions = map[State][]State{
	StateNew:           {StateAwaitingInfo, StateInProgress, StateEscalated},
	StateAwaitingInfo:  {StateAwaitingInfo, StateInProgress, StateEscalated},
	StateInProgress:    {StateAwaitingInfo, StateInProgress, StateEscalated},
	StateEscalated:     {StateHumanHandling, StateInProgress, StateResolved},
	StateHumanHandling: {StateInProgress, StateEscalated, StateResolved},
	StateResolved:      {},
}

// ParseState validates a stored state string.
func ParseState(s string) (State, error) {
	switch State(s) {
	case StateNew, StateAwaitingInfo, StateInProgress,
		StateEscalated, StateHumanHandling, StateResolved:
		return State(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownState, s)
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether the transition table permits from → to.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}
