// Package voice turns spoken or typed utterances into workflow commands.
// Reads run at once; mutations wait for an explicit, time-boxed confirmation.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MEKXH/intentpilot/internal/approval"
	"github.com/MEKXH/intentpilot/internal/bus"
	"github.com/MEKXH/intentpilot/internal/evidence"
	"github.com/MEKXH/intentpilot/internal/metrics"
	"github.com/MEKXH/intentpilot/internal/orchestrator"
	"github.com/MEKXH/intentpilot/internal/workflow"
)

// State is the voice agent state.
type State string

const (
	StateIdle                 State = "IDLE"
	StateListening            State = "LISTENING"
	StateTranscribing         State = "TRANSCRIBING"
	StateExecuting            State = "EXECUTING"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
)

const (
	defaultRescheduleAfter = 24 * time.Hour
	voiceReason            = "Updated via voice command"
)

// Workflow is what confirmed voice commands execute against.
type Workflow interface {
	SelectOption(ctx context.Context, sessionID, decisionID, optionID string, confirm bool) (workflow.Session, error)
	SetOutcome(ctx context.Context, sessionID string, in workflow.OutcomeInput) (workflow.Session, error)
}

// Sessions exposes the session commands refer to.
type Sessions interface {
	Active() (workflow.Session, bool)
}

// Speaker says text to the user.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Navigator scrolls whatever the user is looking at.
type Navigator interface {
	Scroll(direction string)
}

// IntentSink receives utterances that are not commands.
type IntentSink func(ctx context.Context, text string) error

// TextSpeaker writes speech to w, one line per utterance.
type TextSpeaker struct {
	W  io.Writer
	mu sync.Mutex
}

// Speak writes text.
func (s *TextSpeaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.W, "voice: %s\n", text)
	return err
}

// Options configures an Orchestrator.
type Options struct {
	Continuous          bool
	ConfirmationTimeout time.Duration
	SelectConfirms      bool
	RescheduleAfter     time.Duration
	ActorID             string
	TenantID            string

	Matcher   Matcher
	Navigator Navigator
	Intents   IntentSink
	Emitter   *evidence.Emitter
	Metrics   *metrics.RuntimeMetrics
	Now       func() time.Time
	AfterFunc approval.AfterFunc
}

// Result describes how one utterance was handled.
type Result struct {
	Command Command
	Reply   string
	State   State
}

// Pending is the mutation waiting for confirmation.
type Pending struct {
	SessionID   string           `json:"sessionId"`
	IntentID    string           `json:"intentId"`
	Kind        Kind             `json:"kind"`
	DecisionID  string           `json:"decisionId,omitempty"`
	OptionID    string           `json:"optionId,omitempty"`
	OptionLabel string           `json:"optionLabel,omitempty"`
	ActionID    string           `json:"actionId,omitempty"`
	Description string           `json:"actionDescription,omitempty"`
	Outcome     workflow.Outcome `json:"outcomeType,omitempty"`
}

// Orchestrator is the voice command state machine. One confirmation is live
// at a time; opening another replaces it.
type Orchestrator struct {
	wf       Workflow
	sessions Sessions
	speaker  Speaker
	opts     Options
	gate     *approval.Gate

	mu    sync.Mutex
	state State

	// expiries wakes Run when a confirmation times out.
	expiries chan struct{}
}

// New creates a voice orchestrator in the IDLE state.
func New(wf Workflow, sessions Sessions, speaker Speaker, opts Options) *Orchestrator {
	if opts.Matcher == nil {
		opts.Matcher = ScoreMatcher{}
	}
	if opts.RescheduleAfter <= 0 {
		opts.RescheduleAfter = defaultRescheduleAfter
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	o := &Orchestrator{
		wf:       wf,
		sessions: sessions,
		speaker:  speaker,
		opts:     opts,
		state:    StateIdle,
		expiries: make(chan struct{}, 1),
	}

	gateOpts := []approval.Option{approval.WithClock(opts.Now)}
	if opts.AfterFunc != nil {
		gateOpts = append(gateOpts, approval.WithAfterFunc(opts.AfterFunc))
	}
	o.gate = approval.NewGate(opts.ConfirmationTimeout, o.expired, gateOpts...)
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Pending returns the mutation waiting for confirmation.
func (o *Orchestrator) Pending() (Pending, approval.Request, bool) {
	req, ok := o.gate.Pending()
	if !ok {
		return Pending{}, approval.Request{}, false
	}
	p, _ := req.Params.(Pending)
	return p, req, true
}

// Listen moves the agent to LISTENING.
func (o *Orchestrator) Listen() {
	o.setState(StateListening)
}

// Close drops any pending confirmation and stops its timer.
func (o *Orchestrator) Close() {
	o.gate.Close()
	o.setState(StateIdle)
}

// Run consumes src until it ends or ctx is done. In single-shot mode it
// returns after the first utterance that leaves nothing to confirm, or once
// the confirmation it opened times out. A source that ends while a
// confirmation is open keeps Run waiting for the answer or the timeout.
func (o *Orchestrator) Run(ctx context.Context, src bus.Source) error {
	select {
	case <-o.expiries:
	default:
	}
	o.Listen()
	events := src.Events()
	for {
		select {
		case <-ctx.Done():
			o.setState(StateIdle)
			return ctx.Err()
		case <-o.expiries:
			if _, _, pending := o.Pending(); pending {
				continue
			}
			if !o.opts.Continuous || events == nil {
				o.setState(StateIdle)
				return nil
			}
		case ev, ok := <-events:
			if !ok {
				if _, _, pending := o.Pending(); pending {
					events = nil
					continue
				}
				o.setState(StateIdle)
				return nil
			}
			switch ev.Type {
			case bus.EventTranscript:
				res, err := o.Handle(bus.WithRequestID(ctx, ev.RequestID), ev.Text)
				if err != nil {
					slog.Warn("voice command failed", "text", ev.Text, "error", err)
				}
				if !o.opts.Continuous && res.State == StateIdle {
					return nil
				}
			case bus.EventError:
				slog.Warn("speech recognition error", "error", ev.Err)
				if !o.opts.Continuous {
					o.setState(StateIdle)
					return ev.Err
				}
			case bus.EventEnd:
				if _, _, pending := o.Pending(); pending {
					events = nil
					continue
				}
				o.setState(StateIdle)
				return nil
			}
		}
	}
}

// Handle processes one utterance.
func (o *Orchestrator) Handle(ctx context.Context, text string) (Result, error) {
	o.setState(StateTranscribing)
	s, hasSession := o.sessions.Active()
	cmd := Parse(text, Context{DecisionsVisible: len(s.Decisions) > 0})
	o.emit(s, evidence.TypeCommandReceived, map[string]any{
		"rawCommand":    text,
		"parsedCommand": cmd,
	}, "Voice command received")

	reply, err := o.dispatch(ctx, cmd, s, hasSession)
	if reply != "" {
		o.speak(ctx, reply)
	}
	return Result{Command: cmd, Reply: reply, State: o.settle()}, err
}

func (o *Orchestrator) dispatch(ctx context.Context, cmd Command, s workflow.Session, hasSession bool) (string, error) {
	switch cmd.Kind {
	case KindConfirm:
		return o.confirm(ctx)
	case KindCancel:
		return o.cancel(s), nil
	case KindNavigation:
		return o.navigate(s, cmd), nil
	case KindRead:
		return o.read(s, cmd), nil
	case KindSelectOption:
		if !hasSession {
			o.record(metrics.VoiceRejected)
			return "There is no active intent yet.", nil
		}
		return o.requestSelect(s, cmd), nil
	case KindUpdateOutcome:
		if !hasSession {
			o.record(metrics.VoiceRejected)
			return "There is no active intent yet.", nil
		}
		return o.requestOutcome(s, cmd), nil
	default:
		if o.opts.Intents != nil {
			o.setState(StateExecuting)
			return "", o.opts.Intents(ctx, cmd.Raw)
		}
		o.record(metrics.VoiceRejected)
		return "Sorry, I did not understand that.", nil
	}
}

func (o *Orchestrator) navigate(s workflow.Session, cmd Command) string {
	o.setState(StateExecuting)
	if o.opts.Navigator != nil {
		o.opts.Navigator.Scroll(cmd.Direction)
	}
	o.emit(s, evidence.TypeNavigationExecuted, map[string]any{"direction": cmd.Direction}, "Navigation command executed")
	o.record(metrics.VoiceExecuted)
	return ""
}

func (o *Orchestrator) read(s workflow.Session, cmd Command) string {
	o.setState(StateExecuting)
	var prompt string
	if _, req, ok := o.Pending(); ok {
		prompt = req.Prompt
	}
	content := Read(s, cmd.Target, cmd.Identifier, prompt)
	o.emit(s, evidence.TypeReadRequested, map[string]any{
		"target":        cmd.Target,
		"identifier":    cmd.Identifier,
		"contentLength": len(content),
	}, "Read command requested")
	o.record(metrics.VoiceExecuted)
	if content == "" {
		return fmt.Sprintf("No %s content available to read.", strings.ReplaceAll(string(cmd.Target), "_", " "))
	}
	return content
}

func (o *Orchestrator) requestSelect(s workflow.Session, cmd Command) string {
	m, ok := o.opts.Matcher.MatchOption(s.Decisions, cmd.Option, cmd.Phrase)
	if !ok {
		o.record(metrics.VoiceRejected)
		return fmt.Sprintf("Could not find option %s. Please try again.", cmd.Option)
	}
	label := optionLabel(m.Option, 0)
	p := Pending{
		SessionID:   s.ID,
		IntentID:    s.Intent.ID,
		Kind:        KindSelectOption,
		DecisionID:  m.Decision.DecisionID,
		OptionID:    m.Option.ID,
		OptionLabel: label,
	}
	return o.open(s, p, fmt.Sprintf("Select %s?", label), "Decision selection requested (confirmation required)")
}

func (o *Orchestrator) requestOutcome(s workflow.Session, cmd Command) string {
	if len(s.Actions) == 0 {
		o.record(metrics.VoiceRejected)
		return "No actions available yet. Please wait for actions to be generated."
	}
	a, ok := o.opts.Matcher.MatchAction(s.Actions, cmd.ActionRef)
	if !ok {
		o.record(metrics.VoiceRejected)
		var names []string
		for _, x := range firstActions(s.Actions, 3) {
			names = append(names, x.Description)
		}
		return fmt.Sprintf("Could not find action %s. Available actions: %s.", cmd.ActionRef, strings.Join(names, ", "))
	}
	p := Pending{
		SessionID:   s.ID,
		IntentID:    s.Intent.ID,
		Kind:        KindUpdateOutcome,
		ActionID:    a.ActionID,
		Description: a.Description,
		Outcome:     cmd.Outcome,
	}
	prompt := fmt.Sprintf("Mark %s as %s?", a.Description, strings.ToLower(string(cmd.Outcome)))
	return o.open(s, p, prompt, "Action outcome update requested (confirmation required)")
}

func (o *Orchestrator) open(s workflow.Session, p Pending, prompt, reason string) string {
	_, replaced, err := o.gate.Open(approval.CreateInput{Kind: string(p.Kind), Prompt: prompt, Params: p})
	if err != nil {
		slog.Warn("open voice confirmation failed", "error", err)
		return "Could not start a confirmation. Please try again."
	}
	if replaced != nil {
		slog.Debug("voice confirmation replaced", "generation", replaced.Generation, "kind", replaced.Kind)
	}
	o.setState(StateAwaitingConfirmation)
	o.emit(s, evidence.TypeActionRequested, map[string]any{
		"command":              p.Kind,
		"pending":              p,
		"confirmationRequired": true,
	}, reason)
	return fmt.Sprintf("Asking confirmation: %s Say 'Confirm' to proceed, or 'Cancel' to abort.", prompt)
}

func (o *Orchestrator) confirm(ctx context.Context) (string, error) {
	req, err := o.gate.Approve()
	if errors.Is(err, approval.ErrNoPending) {
		return "There is nothing to confirm.", nil
	}
	if err != nil {
		return "", err
	}
	p, _ := req.Params.(Pending)
	o.setState(StateExecuting)
	s, _ := o.sessionFor(p)
	o.emit(s, evidence.TypeActionConfirmed, map[string]any{
		"pendingAction":    p.Kind,
		"confirmationType": "voice",
	}, "Voice confirmation received")

	ctx = orchestrator.WithDecisionMethod(ctx, "voice")
	switch p.Kind {
	case KindSelectOption:
		if _, err := o.wf.SelectOption(ctx, p.SessionID, p.DecisionID, p.OptionID, o.opts.SelectConfirms); err != nil {
			return o.failed(s, p, err)
		}
		o.emit(s, evidence.TypeDecisionSelected, map[string]any{
			"decisionId":         p.DecisionID,
			"optionId":           p.OptionID,
			"confirmationMethod": "voice",
		}, "Decision selected via voice command")
		o.record(metrics.VoiceConfirmed)
		return fmt.Sprintf("Decision confirmed and executed. %s selected.", p.OptionLabel), nil
	case KindUpdateOutcome:
		in := workflow.OutcomeInput{ActionID: p.ActionID, Outcome: p.Outcome}
		if p.Outcome.RequiresReason() {
			in.Reason = voiceReason
		}
		if p.Outcome == workflow.OutcomeRescheduled {
			at := o.opts.Now().Add(o.opts.RescheduleAfter).UTC()
			in.ScheduledFor = &at
		}
		if _, err := o.wf.SetOutcome(ctx, p.SessionID, in); err != nil {
			return o.failed(s, p, err)
		}
		o.emit(s, evidence.TypeActionOutcomeUpdated, map[string]any{
			"actionId":           p.ActionID,
			"outcomeType":        p.Outcome,
			"confirmationMethod": "voice",
		}, "Action outcome updated via voice command")
		o.record(metrics.VoiceConfirmed)
		return fmt.Sprintf("Action marked as %s.", strings.ToLower(string(p.Outcome))), nil
	default:
		return "", fmt.Errorf("unknown pending voice action %q", req.Kind)
	}
}

func (o *Orchestrator) failed(s workflow.Session, p Pending, err error) (string, error) {
	o.emit(s, evidence.TypeActionFailed, map[string]any{
		"pending": p,
		"error":   err.Error(),
	}, "Voice action failed")
	o.record(metrics.VoiceRejected)
	return fmt.Sprintf("Failed to apply the change. %s", err.Error()), err
}

func (o *Orchestrator) cancel(s workflow.Session) string {
	req, err := o.gate.Reject()
	if err != nil {
		return "There is nothing to cancel."
	}
	o.emit(s, evidence.TypeActionCancelled, map[string]any{"cancelledAction": req.Kind}, "Voice action cancelled by user")
	o.record(metrics.VoiceCancelled)
	return "Action cancelled."
}

// expired runs on the gate timer. The discard is silent.
func (o *Orchestrator) expired(req approval.Request) {
	p, _ := req.Params.(Pending)
	s, _ := o.sessionFor(p)
	o.emit(s, evidence.TypeConfirmationExpired, map[string]any{"expiredAction": req.Kind}, "Voice confirmation timed out")
	o.record(metrics.VoiceExpired)
	o.mu.Lock()
	if o.state == StateAwaitingConfirmation {
		o.state = o.restingLocked()
	}
	o.mu.Unlock()
	select {
	case o.expiries <- struct{}{}:
	default:
	}
	slog.Info("voice confirmation expired", "kind", req.Kind, "generation", req.Generation)
}

func (o *Orchestrator) sessionFor(p Pending) (workflow.Session, bool) {
	s, ok := o.sessions.Active()
	if ok && s.ID == p.SessionID {
		return s, true
	}
	return workflow.Session{ID: p.SessionID, Intent: workflow.Intent{ID: p.IntentID}}, false
}

func (o *Orchestrator) settle() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.gate.Pending(); ok {
		o.state = StateAwaitingConfirmation
	} else {
		o.state = o.restingLocked()
	}
	return o.state
}

func (o *Orchestrator) restingLocked() State {
	if o.opts.Continuous {
		return StateListening
	}
	return StateIdle
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) speak(ctx context.Context, text string) {
	if o.speaker == nil {
		return
	}
	if err := o.speaker.Speak(ctx, text); err != nil {
		slog.Warn("speech output failed", "error", err)
	}
}

func (o *Orchestrator) emit(s workflow.Session, eventType string, payload map[string]any, reason string) {
	o.opts.Emitter.Emit(evidence.Event{
		IntentID:  s.Intent.ID,
		EventType: eventType,
		ActorID:   o.opts.ActorID,
		TenantID:  o.opts.TenantID,
		Payload:   payload,
		Reason:    reason,
	})
}

func (o *Orchestrator) record(outcome metrics.VoiceOutcome) {
	if _, err := o.opts.Metrics.RecordVoice(outcome); err != nil {
		slog.Warn("persist voice metrics failed", "error", err)
	}
}

func firstActions(actions []workflow.Action, n int) []workflow.Action {
	sorted := workflow.SortActions(actions)
	if len(sorted) > n {
		return sorted[:n]
	}
	return sorted
}
