// Package orchestrator drives intents through compliance, decisions and
// actions, applying every collaborator result to the session it was issued for.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MEKXH/intentpilot/internal/engine"
	"github.com/MEKXH/intentpilot/internal/session"
	"github.com/MEKXH/intentpilot/internal/splitter"
	"github.com/MEKXH/intentpilot/internal/workflow"
)

const defaultLocation = "selected location"

// Advisor supplies optional market context for an intent.
type Advisor interface {
	Advise(ctx context.Context, intent workflow.Intent) *workflow.Advisory
}

// Options carries the identity attached to every request.
type Options struct {
	TenantID string
	ActorID  string
	Industry string
}

// Orchestrator coordinates collaborators and the session registry.
type Orchestrator struct {
	engines  engine.Collaborators
	sessions *session.Manager
	advisor  Advisor
	opts     Options
}

// New creates an orchestrator. advisor may be nil.
func New(engines engine.Collaborators, sessions *session.Manager, advisor Advisor, opts Options) *Orchestrator {
	if opts.TenantID == "" {
		opts.TenantID = "default-tenant"
	}
	if opts.ActorID == "" {
		opts.ActorID = "default-user"
	}
	return &Orchestrator{engines: engines, sessions: sessions, advisor: advisor, opts: opts}
}

// Sessions returns the session registry.
func (o *Orchestrator) Sessions() *session.Manager {
	return o.sessions
}

// ActorID returns the actor every request is issued for.
func (o *Orchestrator) ActorID() string {
	return o.opts.ActorID
}

// Submit splits text into intents and progresses each one in input order.
// The first new session becomes active. A failing intent does not stop the
// ones after it.
func (o *Orchestrator) Submit(ctx context.Context, text string) ([]workflow.Session, error) {
	descriptors := splitter.Split(text)
	if len(descriptors) == 0 {
		return nil, workflow.Validationf("submit", "intent text is empty")
	}

	out := make([]workflow.Session, 0, len(descriptors))
	var errs []error
	for _, d := range descriptors {
		s, err := o.SubmitDescriptor(ctx, d)
		if s.ID != "" {
			if len(out) == 0 {
				_ = o.sessions.Switch(s.ID)
			}
			out = append(out, s)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("intent %d: %w", d.Index+1, err))
		}
	}
	return out, errors.Join(errs...)
}

// SubmitDescriptor analyzes one descriptor, registers its session and runs
// the pipeline. The session is returned even when a later stage fails.
func (o *Orchestrator) SubmitDescriptor(ctx context.Context, d splitter.Descriptor) (workflow.Session, error) {
	if strings.TrimSpace(d.Text) == "" {
		return workflow.Session{}, workflow.Validationf("submit", "intent text is empty")
	}

	extracted := map[string]any{}
	if d.Location != "" {
		extracted["location"] = d.Location
	}
	if d.Budget > 0 {
		extracted["budget"] = d.Budget
	}
	location := d.Location
	if location == "" {
		location = defaultLocation
	}

	intent, err := o.engines.Intent.AnalyzeIntent(ctx, engine.AnalyzeRequest{
		Text:          d.Text,
		TenantID:      o.opts.TenantID,
		ActorID:       o.opts.ActorID,
		Industry:      o.opts.Industry,
		IntentType:    d.Type,
		ExtractedInfo: extracted,
		Payload: workflow.Payload{
			Location:     location,
			Budget:       d.Budget,
			OriginalText: d.Text,
		},
	})
	if err != nil {
		return workflow.Session{}, err
	}

	s := o.sessions.Create(o.enrich(intent, d))
	slog.Info("intent registered", "session_id", s.ID, "intent_id", s.Intent.ID, "type", s.Intent.Type)
	return o.Progress(ctx, s.ID)
}

// enrich fills blanks of the analyzed intent with what the splitter found.
// Engine values are never overwritten.
func (o *Orchestrator) enrich(intent workflow.Intent, d splitter.Descriptor) workflow.Intent {
	if intent.Type == "" {
		intent.Type = d.Type
	}
	if intent.Text == "" {
		intent.Text = d.Text
	}
	if intent.Payload.OriginalText == "" {
		intent.Payload.OriginalText = d.Text
	}
	if intent.Payload.Location == "" && d.Location != "" {
		intent.Payload.Location = d.Location
	}
	if intent.Payload.Budget == 0 && d.Budget > 0 {
		intent.Payload.Budget = d.Budget
	}
	if intent.ExtractedInfo == nil {
		intent.ExtractedInfo = map[string]any{}
	}
	if _, ok := intent.ExtractedInfo["location"]; !ok && d.Location != "" {
		intent.ExtractedInfo["location"] = d.Location
	}
	if _, ok := intent.ExtractedInfo["budget"]; !ok && d.Budget > 0 {
		intent.ExtractedInfo["budget"] = d.Budget
	}
	if intent.TenantID == "" {
		intent.TenantID = o.opts.TenantID
	}
	if intent.ActorID == "" {
		intent.ActorID = o.opts.ActorID
	}
	if intent.Industry == "" {
		intent.Industry = o.opts.Industry
	}
	return intent
}

// Progress runs every stage the session has not passed yet. It is safe to
// call again after a failed stage.
func (o *Orchestrator) Progress(ctx context.Context, id string) (workflow.Session, error) {
	unlock, err := o.sessions.Lock(id)
	if err != nil {
		return workflow.Session{}, err
	}
	defer unlock()

	s, _ := o.sessions.Get(id)
	if s.Advisory == nil {
		s = o.advise(ctx, s)
	}
	if s.Compliance == nil {
		s = o.checkCompliance(ctx, s)
		if s.Compliance == nil {
			return s, nil
		}
	}

	if s.Compliance.Decision == workflow.ComplianceAllow && len(s.Decisions) == 0 {
		res, err := o.engines.Decisions.GetDecisions(ctx, s.Intent, s.Compliance.Decision, s.Decisions)
		if err != nil {
			return s, err
		}
		s, err = o.sessions.Apply(id, workflow.Event{Kind: workflow.EventDecisionsLoaded, Decisions: res.Decisions})
		if err != nil {
			return s, err
		}
		s = o.evaluateRisk(ctx, s)
	}
	if s.Compliance.Decision != workflow.ComplianceAllow {
		slog.Info("intent halted by compliance", "session_id", id, "decision", s.Compliance.Decision, "reason", s.Compliance.Reason)
	}
	if s.Explanation == nil {
		s = o.explain(ctx, s)
	}
	return o.ensureActionsLocked(ctx, s)
}

func (o *Orchestrator) advise(ctx context.Context, s workflow.Session) workflow.Session {
	if o.advisor == nil {
		return s
	}
	adv := o.advisor.Advise(ctx, s.Intent)
	if adv == nil {
		return s
	}
	return o.apply(s, workflow.Event{Kind: workflow.EventAdvised, Advisory: adv})
}

func (o *Orchestrator) checkCompliance(ctx context.Context, s workflow.Session) workflow.Session {
	if o.engines.Compliance == nil {
		return s
	}
	res, err := o.engines.Compliance.CheckCompliance(ctx, s.Intent)
	if err != nil {
		slog.Warn("compliance check failed", "session_id", s.ID, "intent_id", s.Intent.ID, "error", err)
		return s
	}
	return o.apply(s, workflow.Event{Kind: workflow.EventComplianceEvaluated, Compliance: res})
}

func (o *Orchestrator) evaluateRisk(ctx context.Context, s workflow.Session) workflow.Session {
	if o.engines.Risk == nil {
		return s
	}
	res, err := o.engines.Risk.EvaluateRisk(ctx, s)
	if err != nil {
		slog.Warn("risk evaluation failed", "session_id", s.ID, "error", err)
		return s
	}
	return o.apply(s, workflow.Event{Kind: workflow.EventRiskEvaluated, Risk: res})
}

func (o *Orchestrator) explain(ctx context.Context, s workflow.Session) workflow.Session {
	if o.engines.Explain == nil || s.Compliance == nil {
		return s
	}
	res, err := o.engines.Explain.Explain(ctx, s)
	if err != nil {
		slog.Warn("explanation failed", "session_id", s.ID, "error", err)
		return s
	}
	return o.apply(s, workflow.Event{Kind: workflow.EventExplained, Explanation: res})
}

func (o *Orchestrator) apply(s workflow.Session, ev workflow.Event) workflow.Session {
	next, err := o.sessions.Apply(s.ID, ev)
	if err != nil {
		slog.Warn("apply session event failed", "session_id", s.ID, "event", ev.Kind, "error", err)
		return s
	}
	return next
}

// EnsureActions requests the action set of a session when its lifecycle
// calls for one and the transition was not requested before.
func (o *Orchestrator) EnsureActions(ctx context.Context, sessionID string) (workflow.Session, error) {
	unlock, err := o.sessions.Lock(sessionID)
	if err != nil {
		return workflow.Session{}, err
	}
	defer unlock()

	s, _ := o.sessions.Get(sessionID)
	return o.ensureActionsLocked(ctx, s)
}

func (o *Orchestrator) ensureActionsLocked(ctx context.Context, s workflow.Session) (workflow.Session, error) {
	key, need := workflow.PendingActionFetch(s, o.sessions.Policy())
	if !need {
		return s, nil
	}
	guard, err := o.sessions.Guard(s.ID)
	if err != nil {
		return s, err
	}
	if !guard.TryMark(key) {
		slog.Debug("action fetch already requested", "session_id", s.ID, "state", key.State)
		return s, nil
	}

	res, err := o.engines.Actions.GetActions(ctx, engine.ActionsRequest{
		Intent:          s.Intent,
		Decisions:       s.Decisions,
		LifecycleState:  s.Lifecycle,
		ExistingActions: s.Actions,
	})
	if err != nil {
		guard.Release(key)
		return s, err
	}

	next, err := o.sessions.Apply(s.ID, workflow.Event{Kind: workflow.EventActionsLoaded, Actions: res.Actions})
	if err != nil {
		return s, err
	}
	guard.Mark(workflow.GuardKey{IntentID: next.Intent.ID, State: next.Lifecycle})
	slog.Info("actions loaded", "session_id", s.ID, "count", len(next.Actions), "state", next.Lifecycle)
	return next, nil
}
