package workflow

// MergeDecisions folds engine decisions into the current list. Known ids are
// replaced in place, unknown ids are appended in arrival order. A decision
// whose selection is not one of its own options is ignored.
func MergeDecisions(current []Decision, incoming ...Decision) []Decision {
	out := make([]Decision, len(current), len(current)+len(incoming))
	copy(out, current)

	index := make(map[string]int, len(out))
	for i, d := range out {
		index[d.DecisionID] = i
	}
	for _, d := range incoming {
		if d.DecisionID == "" || !selectionValid(d) {
			continue
		}
		if i, ok := index[d.DecisionID]; ok {
			out[i] = d
			continue
		}
		index[d.DecisionID] = len(out)
		out = append(out, d)
	}
	return out
}

// AppendDecisions adds unlocked decisions whose ids are not yet known.
func AppendDecisions(current []Decision, unlocked ...Decision) []Decision {
	out := append([]Decision(nil), current...)
	seen := make(map[string]bool, len(out))
	for _, d := range out {
		seen[d.DecisionID] = true
	}
	for _, d := range unlocked {
		if d.DecisionID == "" || seen[d.DecisionID] || !selectionValid(d) {
			continue
		}
		seen[d.DecisionID] = true
		out = append(out, d)
	}
	return out
}

func selectionValid(d Decision) bool {
	if d.SelectedOptionID == "" {
		return true
	}
	_, ok := d.Option(d.SelectedOptionID)
	return ok
}

// MergeActions unions incoming actions into current by id. The result never
// loses an action, never holds an id twice, and never replaces a finished
// action with an unfinished copy. The result is ordered by Order.
func MergeActions(current []Action, incoming ...Action) []Action {
	out := append([]Action(nil), current...)
	index := make(map[string]int, len(out))
	for i, a := range out {
		index[a.ActionID] = i
	}
	for _, a := range incoming {
		if a.ActionID == "" {
			continue
		}
		i, ok := index[a.ActionID]
		if !ok {
			index[a.ActionID] = len(out)
			out = append(out, a)
			continue
		}
		if out[i].Outcome.Done() && !a.Outcome.Done() {
			continue
		}
		out[i] = a
	}
	return SortActions(out)
}

// ReplaceAction stores the authoritative copy of one action returned by an
// outcome update.
func ReplaceAction(current []Action, updated Action) []Action {
	out := append([]Action(nil), current...)
	for i := range out {
		if out[i].ActionID == updated.ActionID {
			out[i] = updated
			return SortActions(out)
		}
	}
	return SortActions(append(out, updated))
}
