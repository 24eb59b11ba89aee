package orchestrator

import (
	"context"
	"time"

	"github.com/MEKXH/intentpilot/internal/engine"
	"github.com/MEKXH/intentpilot/internal/workflow"
)

type methodContextKey struct{}

// WithDecisionMethod tags decisions made under ctx with how they were made,
// for example "voice" or "cli".
func WithDecisionMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, methodContextKey{}, method)
}

// DecisionMethod returns the method attached by WithDecisionMethod.
func DecisionMethod(ctx context.Context) string {
	if v, ok := ctx.Value(methodContextKey{}).(string); ok && v != "" {
		return v
	}
	return "cli"
}

// Selection names one option of one decision.
type Selection struct {
	DecisionID string
	OptionID   string
}

// SelectOption selects optionID for decisionID. With confirm the decision is
// also confirmed. Option membership is checked before anything is sent.
func (o *Orchestrator) SelectOption(ctx context.Context, sessionID, decisionID, optionID string, confirm bool) (workflow.Session, error) {
	unlock, err := o.sessions.Lock(sessionID)
	if err != nil {
		return workflow.Session{}, err
	}
	defer unlock()
	return o.selectLocked(ctx, sessionID, decisionID, optionID, confirm)
}

func (o *Orchestrator) selectLocked(ctx context.Context, sessionID, decisionID, optionID string, confirm bool) (workflow.Session, error) {
	const op = "select option"
	s, ok := o.sessions.Get(sessionID)
	if !ok {
		return workflow.Session{}, workflow.NotFound(op, "session %s not found", sessionID)
	}
	if s.Halted() {
		return s, workflow.Statef(op, "intent %s was not cleared by compliance (%s)", s.Intent.ID, s.Compliance.Decision)
	}
	d, ok := s.Decision(decisionID)
	if !ok {
		return s, workflow.Validationf(op, "decision %s is not part of this intent", decisionID)
	}
	if err := workflow.ValidateSelection(d, optionID); err != nil {
		return s, err
	}
	if d.EvolutionState == workflow.EvolutionConfirmed && optionID != d.SelectedOptionID {
		return s, workflow.Statef(op, "decision %s is confirmed; use change with a reason", decisionID)
	}

	res, err := o.engines.Decisions.SelectDecision(ctx, engine.SelectRequest{
		DecisionID: decisionID,
		OptionID:   optionID,
		Confirm:    confirm,
		UserID:     o.opts.ActorID,
	})
	if err != nil {
		return s, err
	}

	updated := o.resolved(ctx, d, res.Decision, optionID, confirm)
	next, err := o.sessions.Apply(sessionID, workflow.Event{
		Kind:      workflow.EventDecisionUpdated,
		Decision:  &updated,
		Decisions: res.UnlockedDecisions,
		Actions:   res.UnlockedActions,
	})
	if err != nil {
		return s, err
	}
	return o.ensureActionsLocked(ctx, next)
}

// resolved returns the engine copy of a decision, filled in locally when the
// engine answered without one.
func (o *Orchestrator) resolved(ctx context.Context, local, remote workflow.Decision, optionID string, confirm bool) workflow.Decision {
	out := remote
	if out.DecisionID == "" {
		out = local
		out.SelectedOptionID = optionID
		out.EvolutionState = workflow.EvolutionSelected
		if confirm {
			out.EvolutionState = workflow.EvolutionConfirmed
		}
	}
	if len(out.Options) == 0 {
		out.Options = local.Options
	}
	if confirm {
		if out.DecidedBy == "" {
			out.DecidedBy = o.opts.ActorID
		}
		if out.DecisionMethod == "" {
			out.DecisionMethod = DecisionMethod(ctx)
		}
		if out.DecisionTimestamp == nil {
			now := time.Now().UTC()
			out.DecisionTimestamp = &now
		}
	}
	return out
}

// ConfirmAll confirms decisions one after another, each step seeing the
// result of the previous one. Without selections every unconfirmed decision
// is confirmed with its current or recommended option, including decisions
// unlocked along the way. It stops at the first error and returns the ids
// confirmed so far.
func (o *Orchestrator) ConfirmAll(ctx context.Context, sessionID string, selections []Selection) (workflow.Session, []string, error) {
	unlock, err := o.sessions.Lock(sessionID)
	if err != nil {
		return workflow.Session{}, nil, err
	}
	defer unlock()

	var confirmed []string
	var s workflow.Session
	if len(selections) > 0 {
		for _, sel := range selections {
			s, err = o.selectLocked(ctx, sessionID, sel.DecisionID, sel.OptionID, true)
			if err != nil {
				return s, confirmed, err
			}
			confirmed = append(confirmed, sel.DecisionID)
		}
		return s, confirmed, nil
	}

	attempted := make(map[string]bool)
	for {
		s, _ = o.sessions.Get(sessionID)
		sel, ok := nextConfirmable(s, attempted)
		if !ok {
			return s, confirmed, nil
		}
		attempted[sel.DecisionID] = true
		s, err = o.selectLocked(ctx, sessionID, sel.DecisionID, sel.OptionID, true)
		if err != nil {
			return s, confirmed, err
		}
		confirmed = append(confirmed, sel.DecisionID)
	}
}

func nextConfirmable(s workflow.Session, attempted map[string]bool) (Selection, bool) {
	for _, d := range s.Decisions {
		if d.EvolutionState == workflow.EvolutionConfirmed || attempted[d.DecisionID] {
			continue
		}
		if opt, ok := d.SelectedOption(); ok {
			return Selection{DecisionID: d.DecisionID, OptionID: opt.ID}, true
		}
		if opt, ok := d.RecommendedOption(); ok {
			return Selection{DecisionID: d.DecisionID, OptionID: opt.ID}, true
		}
	}
	return Selection{}, false
}

// ChangeConfirmed moves an already selected or confirmed decision to another
// option. A reason is required.
func (o *Orchestrator) ChangeConfirmed(ctx context.Context, sessionID, decisionID, newOptionID, reason string) (workflow.Session, error) {
	const op = "change decision"
	unlock, err := o.sessions.Lock(sessionID)
	if err != nil {
		return workflow.Session{}, err
	}
	defer unlock()

	s, ok := o.sessions.Get(sessionID)
	if !ok {
		return workflow.Session{}, workflow.NotFound(op, "session %s not found", sessionID)
	}
	d, ok := s.Decision(decisionID)
	if !ok {
		return s, workflow.Validationf(op, "decision %s is not part of this intent", decisionID)
	}
	if err := workflow.ValidateChange(d, newOptionID, reason); err != nil {
		return s, err
	}

	res, err := o.engines.Decisions.ChangeDecision(ctx, engine.ChangeRequest{
		DecisionID:  decisionID,
		NewOptionID: newOptionID,
		Reason:      reason,
		UserID:      o.opts.ActorID,
	})
	if err != nil {
		return s, err
	}

	updated := res.Decision
	if updated.DecisionID == "" {
		updated = d
		updated.SelectedOptionID = newOptionID
	}
	if len(updated.Options) == 0 {
		updated.Options = d.Options
	}
	next, err := o.sessions.Apply(sessionID, workflow.Event{
		Kind:      workflow.EventDecisionUpdated,
		Decision:  &updated,
		Decisions: res.UnlockedDecisions,
		Actions:   res.UnlockedActions,
	})
	if err != nil {
		return s, err
	}
	return o.ensureActionsLocked(ctx, next)
}
