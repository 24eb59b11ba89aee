package orchestrator

import (
	"context"
	"log/slog"

	"github.com/MEKXH/intentpilot/internal/engine"
	"github.com/MEKXH/intentpilot/internal/workflow"
)

// SetOutcome records the outcome of one action. Inputs are validated before
// anything is sent; locked or unknown actions are rejected. Next actions
// returned by the engine are merged into the existing set.
func (o *Orchestrator) SetOutcome(ctx context.Context, sessionID string, in workflow.OutcomeInput) (workflow.Session, error) {
	const op = "set outcome"
	if err := workflow.ValidateOutcome(in); err != nil {
		return workflow.Session{}, err
	}

	unlock, err := o.sessions.Lock(sessionID)
	if err != nil {
		return workflow.Session{}, err
	}
	defer unlock()

	s, ok := o.sessions.Get(sessionID)
	if !ok {
		return workflow.Session{}, workflow.NotFound(op, "session %s not found", sessionID)
	}
	locked, found := workflow.ActionLocked(s.Actions, in.ActionID)
	if !found {
		return s, workflow.Validationf(op, "action %s is not part of this intent", in.ActionID)
	}
	if locked {
		return s, workflow.Statef(op, "action %s is locked until the previous step succeeds", in.ActionID)
	}
	current, _ := s.Action(in.ActionID)

	res, err := o.engines.Actions.UpdateActionOutcome(ctx, engine.OutcomeRequest{
		ActionID:     in.ActionID,
		Outcome:      in.Outcome,
		UserID:       o.opts.ActorID,
		Reason:       in.Reason,
		ScheduledFor: in.ScheduledFor,
	})
	if err != nil {
		if workflow.IsKind(err, workflow.KindNotFound) {
			slog.Warn("action vanished on the engine", "session_id", sessionID, "action_id", in.ActionID)
		}
		return s, err
	}

	updated := res.Action
	if updated.Outcome == "" {
		updated = current
		updated.Outcome = in.Outcome
		updated.Reason = in.Reason
		updated.ScheduledFor = in.ScheduledFor
	}
	if updated.Description == "" {
		updated.Description = current.Description
		updated.Order = current.Order
	}
	next, err := o.sessions.Apply(sessionID, workflow.Event{
		Kind:    workflow.EventActionUpdated,
		Action:  &updated,
		Actions: res.NextActions,
	})
	if err != nil {
		return s, err
	}
	slog.Info("action outcome recorded", "session_id", sessionID, "action_id", in.ActionID, "outcome", in.Outcome, "state", next.Lifecycle)
	return next, nil
}
