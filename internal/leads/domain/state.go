package domain

import "leadfunnel_backend/platform/apperr"

// State is a lead's lifecycle state. Progression is monotonic: a lead never
// moves backward, and terminal states are never left.
type State string

const (
	StateNew       State = "new"
	StateQualified State = "qualified"
	StateBooked    State = "booked"
	StateCompleted State = "completed"
	StateLost      State = "lost"
)

// Valid reports whether the state is a known lifecycle state.
func (s State) Valid() bool {
	switch s {
	case StateNew, StateQualified, StateBooked, StateCompleted, StateLost:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateLost
}

// transitions is the full set of legal state transitions. Everything not
// listed here is a lifecycle violation.
var transitions = map[State][]State{
	StateNew:       {StateQualified, StateBooked, StateLost},
	StateQualified: {StateBooked, StateLost},
	StateBooked:    {StateCompleted, StateLost},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EnsureTransition returns a stale-state error when the transition is not
// legal. The message names the attempted target so callers can surface it.
func EnsureTransition(from, to State) error {
	if !CanTransition(from, to) {
		return apperr.StaleState("lead is " + string(from) + ", cannot become " + string(to))
	}
	return nil
}
