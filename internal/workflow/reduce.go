package workflow

import "time"

// EventKind names a collaborator result or local change applied to a session.
type EventKind string

const (
	EventIntentAnalyzed      EventKind = "intent_analyzed"
	EventComplianceEvaluated EventKind = "compliance_evaluated"
	EventDecisionsLoaded     EventKind = "decisions_loaded"
	EventDecisionUpdated     EventKind = "decision_updated"
	EventActionsLoaded       EventKind = "actions_loaded"
	EventActionUpdated       EventKind = "action_updated"
	EventRiskEvaluated       EventKind = "risk_evaluated"
	EventExplained           EventKind = "explained"
	EventAdvised             EventKind = "advised"
)

// Event is one input of the session reducer.
type Event struct {
	Kind EventKind
	At   time.Time

	Intent      *Intent
	Compliance  *ComplianceResult
	Decision    *Decision
	Decisions   []Decision
	Action      *Action
	Actions     []Action
	Risk        *RiskResult
	Explanation *Explanation
	Advisory    *Advisory
}

// Reducer applies events to sessions under one unlock policy.
type Reducer struct {
	Policy UnlockPolicy
}

// Apply returns the session that results from applying ev to prev. prev is
// never modified.
func (r Reducer) Apply(prev Session, ev Event) Session {
	next := prev.Clone()

	switch ev.Kind {
	case EventIntentAnalyzed:
		if ev.Intent != nil {
			next.Intent = *ev.Intent
		}
	case EventComplianceEvaluated:
		next.Compliance = ev.Compliance
	case EventDecisionsLoaded:
		next.Decisions = MergeDecisions(next.Decisions, ev.Decisions...)
	case EventDecisionUpdated:
		if ev.Decision != nil {
			next.Decisions = MergeDecisions(next.Decisions, *ev.Decision)
		}
		next.Decisions = AppendDecisions(next.Decisions, ev.Decisions...)
		next.Actions = MergeActions(next.Actions, ev.Actions...)
	case EventActionsLoaded:
		next.Actions = MergeActions(next.Actions, ev.Actions...)
	case EventActionUpdated:
		if ev.Action != nil {
			next.Actions = ReplaceAction(next.Actions, *ev.Action)
		}
		next.Actions = MergeActions(next.Actions, ev.Actions...)
	case EventRiskEvaluated:
		next.Risk = ev.Risk
	case EventExplained:
		next.Explanation = ev.Explanation
	case EventAdvised:
		next.Advisory = ev.Advisory
	}

	if next.Decisions == nil {
		next.Decisions = []Decision{}
	}
	if !ev.At.IsZero() {
		next.UpdatedAt = ev.At
	}
	next.Lifecycle = Derive(next, r.Policy)
	return next
}

// Replay folds events onto an initial session.
func (r Reducer) Replay(initial Session, events []Event) Session {
	s := initial
	for _, ev := range events {
		s = r.Apply(s, ev)
	}
	return s
}
