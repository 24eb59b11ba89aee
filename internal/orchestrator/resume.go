package orchestrator

import (
	"context"
	"log/slog"

	"github.com/MEKXH/intentpilot/internal/workflow"
)

// Resume asks the decision engine for an open intent of the actor and
// continues it. It reports false when nothing was resumable. A session that
// already tracks the intent is made active instead of being rebuilt.
func (o *Orchestrator) Resume(ctx context.Context) (workflow.Session, bool, error) {
	res, err := o.engines.Decisions.CheckResume(ctx, o.opts.ActorID, o.opts.TenantID)
	if err != nil {
		return workflow.Session{}, false, err
	}
	if !res.HasOpenIntent || !res.Resumable {
		return workflow.Session{}, false, nil
	}

	intentID := res.IntentID
	if intentID == "" && res.Intent != nil {
		intentID = res.Intent.ID
	}
	if intentID == "" {
		return workflow.Session{}, false, nil
	}

	for _, s := range o.sessions.List() {
		if s.Intent.ID == intentID {
			if err := o.sessions.Switch(s.ID); err != nil {
				return s, false, err
			}
			return s, true, nil
		}
	}

	intent := workflow.Intent{ID: intentID}
	if res.Intent != nil {
		intent = *res.Intent
		intent.ID = intentID
	}
	if intent.TenantID == "" {
		intent.TenantID = o.opts.TenantID
	}
	if intent.ActorID == "" {
		intent.ActorID = o.opts.ActorID
	}

	// A resumed intent already passed compliance on the engine side.
	restored := workflow.Session{
		Intent:     intent,
		Compliance: &workflow.ComplianceResult{Decision: workflow.ComplianceAllow, Reason: "resumed"},
		Decisions:  res.Decisions,
		Actions:    workflow.SortActions(res.Actions),
	}

	var visited []workflow.GuardKey
	if len(res.Actions) > 0 {
		visited = []workflow.GuardKey{
			{IntentID: intentID, State: workflow.StateDecisionsMade},
			{IntentID: intentID, State: workflow.StateActionsInProgress},
		}
	}
	s := o.sessions.Restore(restored, visited)
	if err := o.sessions.Switch(s.ID); err != nil {
		return s, false, err
	}
	slog.Info("intent resumed", "session_id", s.ID, "intent_id", intentID, "state", s.Lifecycle)

	s, err = o.Progress(ctx, s.ID)
	return s, true, err
}
