package workflow

import "sort"

// UnlockPolicy decides which decision states count as settled when deriving
// the lifecycle and unlocking downstream work.
type UnlockPolicy int

const (
	// UnlockOnSelected treats SELECTED and CONFIRMED decisions as settled.
	UnlockOnSelected UnlockPolicy = iota
	// UnlockOnConfirmed treats only CONFIRMED decisions as settled.
	UnlockOnConfirmed
)

func (p UnlockPolicy) String() string {
	if p == UnlockOnConfirmed {
		return "confirmed"
	}
	return "selected"
}

// Settled reports whether the decision no longer blocks progress under p.
func (p UnlockPolicy) Settled(d Decision) bool {
	switch d.EvolutionState {
	case EvolutionConfirmed:
		return true
	case EvolutionSelected:
		return p == UnlockOnSelected
	default:
		return false
	}
}

// Derive computes the lifecycle state of a session. It is the only source of
// lifecycle truth; the stored Lifecycle field is a cache of its result.
func Derive(s Session, policy UnlockPolicy) LifecycleState {
	if s.Compliance == nil {
		return StateCreated
	}
	if len(s.Decisions) == 0 {
		return StateAwaitingDecisions
	}
	for _, d := range s.Decisions {
		if !policy.Settled(d) {
			return StateAwaitingDecisions
		}
	}
	if len(s.Actions) == 0 {
		return StateDecisionsMade
	}
	for _, a := range s.Actions {
		if !a.Outcome.Done() {
			return StateActionsInProgress
		}
	}
	return StateCompleted
}

// IsLocked reports whether the action at index i of an Order-sorted slice is
// blocked by its predecessor. The first action is never locked.
func IsLocked(actions []Action, i int) bool {
	if i <= 0 || i >= len(actions) {
		return false
	}
	prev := actions[i-1].Outcome
	return prev == "" || prev == OutcomeFailed || prev == OutcomeBlocked
}

// ActionLocked sorts a copy of actions and reports the lock state of the
// action with the given id.
func ActionLocked(actions []Action, actionID string) (locked bool, found bool) {
	sorted := SortActions(actions)
	for i, a := range sorted {
		if a.ActionID == actionID {
			return IsLocked(sorted, i), true
		}
	}
	return false, false
}

// SortActions returns a copy of actions ordered by Order.
func SortActions(actions []Action) []Action {
	out := append([]Action(nil), actions...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// NextAction returns the first action without a finished outcome.
func NextAction(actions []Action) (Action, bool) {
	for _, a := range SortActions(actions) {
		if !a.Outcome.Done() && a.Outcome != OutcomeSkipped {
			return a, true
		}
	}
	return Action{}, false
}
