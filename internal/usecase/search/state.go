package search

// State is a step of the search lifecycle.
type State string

// Lifecycle: RECEIVED → ROUTED → RETRIEVING → COMPOSING → PERSISTED → DONE.
// An invalid query ends in REJECTED right after routing.
const (
	StateReceived   State = "RECEIVED"
	StateRouted     State = "ROUTED"
	StateRetrieving State = "RETRIEVING"
	StateComposing  State = "COMPOSING"
	StatePersisted  State = "PERSISTED"
	StateDone       State = "DONE"
	StateRejected   State = "REJECTED"
)

var transitions = map[State][]State{
	StateReceived:   {StateRouted},
	StateRouted:     {StateRetrieving, StateRejected},
	StateRetrieving: {StateComposing},
	StateComposing:  {StatePersisted},
	StatePersisted:  {StateDone},
}

// CanTransition reports whether to may follow from.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateRejected
}
