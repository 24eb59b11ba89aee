package voice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/MEKXH/intentpilot/internal/approval"
	"github.com/MEKXH/intentpilot/internal/bus"
	"github.com/MEKXH/intentpilot/internal/orchestrator"
	"github.com/MEKXH/intentpilot/internal/workflow"
)

type selectCall struct {
	sessionID, decisionID, optionID string
	confirm                         bool
	method                          string
}

type fakeWorkflow struct {
	mu       sync.Mutex
	selects  []selectCall
	outcomes []workflow.OutcomeInput
	err      error
}

func (f *fakeWorkflow) SelectOption(ctx context.Context, sessionID, decisionID, optionID string, confirm bool) (workflow.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selects = append(f.selects, selectCall{sessionID, decisionID, optionID, confirm, orchestrator.DecisionMethod(ctx)})
	return workflow.Session{}, f.err
}

func (f *fakeWorkflow) SetOutcome(_ context.Context, _ string, in workflow.OutcomeInput) (workflow.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, in)
	return workflow.Session{}, f.err
}

func (f *fakeWorkflow) mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.selects) + len(f.outcomes)
}

type fakeSessions struct {
	s  workflow.Session
	ok bool
}

func (f fakeSessions) Active() (workflow.Session, bool) { return f.s, f.ok }

type recordingSpeaker struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordingSpeaker) Speak(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, text)
	return nil
}

func (r *recordingSpeaker) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}

func (r *recordingSpeaker) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.lines) == 0 {
		return ""
	}
	return r.lines[len(r.lines)-1]
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) afterFunc(d time.Duration, f func()) approval.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) fireLast() {
	c.mu.Lock()
	t := c.timers[len(c.timers)-1]
	c.mu.Unlock()
	t.f()
}

var voiceNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func agentSession() workflow.Session {
	return workflow.Session{
		ID:     "s1",
		Intent: workflow.Intent{ID: "i1", Type: "BUY_PROPERTY"},
		Decisions: []workflow.Decision{{
			DecisionID:     "d-agent",
			Type:           "Agent selection",
			EvolutionState: workflow.EvolutionPending,
			Options: []workflow.Option{
				{ID: "agent-a", Label: "Agent A"},
				{ID: "agent-b", Label: "Agent B"},
			},
		}},
		Actions: []workflow.Action{
			{ActionID: "x1", Description: "Get pre-approval", Order: 1},
			{ActionID: "x2", Description: "Visit property", Order: 2},
		},
		Lifecycle: workflow.StateAwaitingDecisions,
	}
}

func newTestVoice(t *testing.T, opts Options) (*Orchestrator, *fakeWorkflow, *recordingSpeaker, *fakeClock) {
	t.Helper()
	wf := &fakeWorkflow{}
	sp := &recordingSpeaker{}
	clock := &fakeClock{}
	opts.AfterFunc = clock.afterFunc
	opts.Now = func() time.Time { return voiceNow }
	if opts.ConfirmationTimeout == 0 {
		opts.ConfirmationTimeout = 30 * time.Second
	}
	o := New(wf, fakeSessions{s: agentSession(), ok: true}, sp, opts)
	t.Cleanup(o.Close)
	return o, wf, sp, clock
}

func TestHandle_SelectCancelLeavesWorkflowUntouched(t *testing.T) {
	defer goleak.VerifyNone(t)
	o, wf, sp, clock := newTestVoice(t, Options{Continuous: true})
	o.Listen()

	res, err := o.Handle(context.Background(), "select agent a")
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if res.State != StateAwaitingConfirmation {
		t.Fatalf("expected AWAITING_CONFIRMATION, got %s", res.State)
	}
	if !strings.Contains(sp.last(), "Select Agent A?") {
		t.Fatalf("expected confirmation prompt, got %q", sp.last())
	}
	if clock.timers[0].d != 30*time.Second {
		t.Fatalf("expected 30s confirmation window, got %s", clock.timers[0].d)
	}

	res, err = o.Handle(context.Background(), "Cancel.")
	if err != nil {
		t.Fatalf("Handle cancel error: %v", err)
	}
	if res.State != StateListening {
		t.Fatalf("expected LISTENING after cancel, got %s", res.State)
	}
	if sp.last() != "Action cancelled." {
		t.Fatalf("unexpected reply %q", sp.last())
	}
	if wf.mutations() != 0 {
		t.Fatalf("expected no workflow mutation, got %d", wf.mutations())
	}
	if _, _, ok := o.Pending(); ok {
		t.Fatal("expected no pending confirmation")
	}
}

func TestHandle_ExpiredConfirmationIsSilentAndInert(t *testing.T) {
	defer goleak.VerifyNone(t)
	o, wf, sp, clock := newTestVoice(t, Options{Continuous: true})

	if _, err := o.Handle(context.Background(), "select agent a"); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	spoken := len(sp.lines)
	clock.fireLast()

	if o.State() != StateListening {
		t.Fatalf("expected LISTENING after expiry, got %s", o.State())
	}
	if len(sp.lines) != spoken {
		t.Fatalf("expiry must not speak, got %q", sp.last())
	}

	if _, err := o.Handle(context.Background(), "confirm"); err != nil {
		t.Fatalf("Handle confirm error: %v", err)
	}
	if wf.mutations() != 0 {
		t.Fatalf("confirm after expiry must not mutate, got %d", wf.mutations())
	}
	if sp.last() != "There is nothing to confirm." {
		t.Fatalf("unexpected reply %q", sp.last())
	}
}

func TestHandle_ConfirmSelectsWithVoiceMethod(t *testing.T) {
	defer goleak.VerifyNone(t)
	o, wf, sp, _ := newTestVoice(t, Options{})

	if _, err := o.Handle(context.Background(), "choose agent b"); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	res, err := o.Handle(context.Background(), "confirm")
	if err != nil {
		t.Fatalf("Handle confirm error: %v", err)
	}
	if res.State != StateIdle {
		t.Fatalf("expected IDLE in single-shot mode, got %s", res.State)
	}
	if len(wf.selects) != 1 {
		t.Fatalf("expected one selection, got %d", len(wf.selects))
	}
	got := wf.selects[0]
	if got.sessionID != "s1" || got.decisionID != "d-agent" || got.optionID != "agent-b" {
		t.Fatalf("unexpected selection %+v", got)
	}
	if got.confirm {
		t.Fatal("voice selection must not confirm by default")
	}
	if got.method != "voice" {
		t.Fatalf("expected voice decision method, got %q", got.method)
	}
	if !strings.HasPrefix(sp.last(), "Decision confirmed and executed.") {
		t.Fatalf("unexpected reply %q", sp.last())
	}
}

func TestHandle_SelectConfirmsWhenConfigured(t *testing.T) {
	defer goleak.VerifyNone(t)
	o, wf, _, _ := newTestVoice(t, Options{SelectConfirms: true})

	if _, err := o.Handle(context.Background(), "select option two"); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if _, err := o.Handle(context.Background(), "confirm selection"); err != nil {
		t.Fatalf("Handle confirm error: %v", err)
	}
	if len(wf.selects) != 1 || !wf.selects[0].confirm || wf.selects[0].optionID != "agent-b" {
		t.Fatalf("unexpected selections %+v", wf.selects)
	}
}

func TestHandle_RescheduleAddsDefaultReasonAndDate(t *testing.T) {
	defer goleak.VerifyNone(t)
	o, wf, sp, _ := newTestVoice(t, Options{})

	if _, err := o.Handle(context.Background(), "reschedule action visit property"); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if !strings.Contains(sp.last(), "Mark Visit property as rescheduled?") {
		t.Fatalf("unexpected prompt %q", sp.last())
	}
	if _, err := o.Handle(context.Background(), "confirm"); err != nil {
		t.Fatalf("Handle confirm error: %v", err)
	}
	if len(wf.outcomes) != 1 {
		t.Fatalf("expected one outcome, got %d", len(wf.outcomes))
	}
	in := wf.outcomes[0]
	if in.ActionID != "x2" || in.Outcome != workflow.OutcomeRescheduled {
		t.Fatalf("unexpected outcome %+v", in)
	}
	if in.Reason != "Updated via voice command" {
		t.Fatalf("expected default reason, got %q", in.Reason)
	}
	if in.ScheduledFor == nil || !in.ScheduledFor.Equal(voiceNow.Add(24*time.Hour)) {
		t.Fatalf("expected schedule 24h out, got %v", in.ScheduledFor)
	}
}

func TestHandle_CompleteHasNoReason(t *testing.T) {
	defer goleak.VerifyNone(t)
	o, wf, sp, _ := newTestVoice(t, Options{})

	if _, err := o.Handle(context.Background(), "complete action one"); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if _, err := o.Handle(context.Background(), "confirm"); err != nil {
		t.Fatalf("Handle confirm error: %v", err)
	}
	if len(wf.outcomes) != 1 || wf.outcomes[0].ActionID != "x1" || wf.outcomes[0].Reason != "" {
		t.Fatalf("unexpected outcomes %+v", wf.outcomes)
	}
	if sp.last() != "Action marked as completed." {
		t.Fatalf("unexpected reply %q", sp.last())
	}
}

func TestHandle_NewRequestReplacesPending(t *testing.T) {
	defer goleak.VerifyNone(t)
	o, wf, _, clock := newTestVoice(t, Options{})

	if _, err := o.Handle(context.Background(), "select agent a"); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if _, err := o.Handle(context.Background(), "select agent b"); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if !clock.timers[0].stopped {
		t.Fatal("expected first timer to be stopped")
	}
	p, _, ok := o.Pending()
	if !ok || p.OptionID != "agent-b" {
		t.Fatalf("expected agent-b pending, got %+v", p)
	}
	// The stale timer firing must not clear the newer request.
	clock.timers[0].f()
	if _, _, ok := o.Pending(); !ok {
		t.Fatal("stale expiry cleared the live confirmation")
	}
	if _, err := o.Handle(context.Background(), "confirm"); err != nil {
		t.Fatalf("Handle confirm error: %v", err)
	}
	if len(wf.selects) != 1 || wf.selects[0].optionID != "agent-b" {
		t.Fatalf("unexpected selections %+v", wf.selects)
	}
}

func TestHandle_ReadsRunWithoutConfirmation(t *testing.T) {
	defer goleak.VerifyNone(t)
	o, wf, sp, _ := newTestVoice(t, Options{})

	res, err := o.Handle(context.Background(), "read decision")
	if err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if res.State != StateIdle {
		t.Fatalf("expected IDLE, got %s", res.State)
	}
	if !strings.HasPrefix(sp.last(), "Agent selection. Options: Agent A, Agent B.") {
		t.Fatalf("unexpected read %q", sp.last())
	}
	if _, err := o.Handle(context.Background(), "read risk"); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if sp.last() != "No risk content available to read." {
		t.Fatalf("unexpected read %q", sp.last())
	}
	if wf.mutations() != 0 {
		t.Fatal("reads must not mutate")
	}
}

func TestHandle_UnmatchedOptionAndAction(t *testing.T) {
	defer goleak.VerifyNone(t)
	o, _, sp, _ := newTestVoice(t, Options{})

	if _, err := o.Handle(context.Background(), "select agent z"); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if sp.last() != "Could not find option z. Please try again." {
		t.Fatalf("unexpected reply %q", sp.last())
	}
	if _, err := o.Handle(context.Background(), "complete action ten"); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if sp.last() != "Could not find action ten. Available actions: Get pre-approval, Visit property." {
		t.Fatalf("unexpected reply %q", sp.last())
	}
	if _, _, ok := o.Pending(); ok {
		t.Fatal("unmatched commands must not open a confirmation")
	}
}

func TestHandle_FailedExecutionReportsError(t *testing.T) {
	defer goleak.VerifyNone(t)
	o, wf, sp, _ := newTestVoice(t, Options{})
	wf.err = workflow.Statef("select", "decision %s is already confirmed", "d-agent")

	if _, err := o.Handle(context.Background(), "select agent a"); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	_, err := o.Handle(context.Background(), "confirm")
	if !workflow.IsKind(err, workflow.KindState) {
		t.Fatalf("expected state error, got %v", err)
	}
	if !strings.HasPrefix(sp.last(), "Failed to apply the change.") {
		t.Fatalf("unexpected reply %q", sp.last())
	}
}

func TestHandle_UnknownGoesToIntentSink(t *testing.T) {
	defer goleak.VerifyNone(t)
	var got string
	o, _, _, _ := newTestVoice(t, Options{Intents: func(_ context.Context, text string) error {
		got = text
		return nil
	}})

	if _, err := o.Handle(context.Background(), "I want to buy a flat in Pune"); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if got != "I want to buy a flat in Pune" {
		t.Fatalf("expected raw text at intent sink, got %q", got)
	}
}

type recordingNavigator struct{ dirs []string }

func (n *recordingNavigator) Scroll(direction string) { n.dirs = append(n.dirs, direction) }

func TestHandle_NavigationScrolls(t *testing.T) {
	defer goleak.VerifyNone(t)
	nav := &recordingNavigator{}
	wf := &fakeWorkflow{}
	o := New(wf, fakeSessions{}, nil, Options{Navigator: nav})
	defer o.Close()

	if _, err := o.Handle(context.Background(), "scroll down"); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if _, err := o.Handle(context.Background(), "go up"); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if strings.Join(nav.dirs, ",") != "down,up" {
		t.Fatalf("unexpected scrolls %v", nav.dirs)
	}
}

func TestRun_SingleShotStopsAfterOneCommand(t *testing.T) {
	defer goleak.VerifyNone(t)
	o, _, sp, _ := newTestVoice(t, Options{})
	src := bus.NewChannelSource(4)
	defer src.Close()

	ctx := context.Background()
	_ = src.Publish(ctx, bus.Transcript("read decision"))
	_ = src.Publish(ctx, bus.Transcript("read action one"))

	if err := o.Run(ctx, src); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(sp.lines) != 1 {
		t.Fatalf("expected exactly one reply, got %v", sp.lines)
	}
	if o.State() != StateIdle {
		t.Fatalf("expected IDLE, got %s", o.State())
	}
}

func TestRun_SingleShotWaitsForConfirmation(t *testing.T) {
	defer goleak.VerifyNone(t)
	o, wf, _, _ := newTestVoice(t, Options{})
	src := bus.NewChannelSource(4)
	defer src.Close()

	ctx := context.Background()
	_ = src.Publish(ctx, bus.Transcript("select agent a"))
	_ = src.Publish(ctx, bus.Transcript("confirm"))

	if err := o.Run(ctx, src); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(wf.selects) != 1 {
		t.Fatalf("expected selection after confirm, got %d", len(wf.selects))
	}
}

func waitPending(t *testing.T, o *Orchestrator) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, _, ok := o.Pending(); ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("confirmation never opened")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitRun(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestRun_SingleShotReturnsOnConfirmationTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)
	o, wf, sp, clock := newTestVoice(t, Options{})
	src := bus.NewChannelSource(4)
	defer src.Close()

	ctx := context.Background()
	_ = src.Publish(ctx, bus.Transcript("select agent a"))
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx, src) }()

	waitPending(t, o)
	clock.fireLast()
	waitRun(t, done)

	_ = src.Publish(ctx, bus.Transcript("read decision"))
	if sp.count() != 1 {
		t.Fatalf("expected only the confirmation prompt, got %v", sp.lines)
	}
	if wf.mutations() != 0 {
		t.Fatalf("timeout must not mutate, got %d", wf.mutations())
	}
	if o.State() != StateIdle {
		t.Fatalf("expected IDLE after timeout, got %s", o.State())
	}
}

func TestRun_ClosedSourceKeepsPendingConfirmation(t *testing.T) {
	defer goleak.VerifyNone(t)
	o, _, _, clock := newTestVoice(t, Options{})
	src := bus.NewChannelSource(2)

	ctx := context.Background()
	_ = src.Publish(ctx, bus.Transcript("select agent a"))
	_ = src.Close()
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx, src) }()

	waitPending(t, o)
	select {
	case err := <-done:
		t.Fatalf("Run returned with a confirmation open: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	if o.State() != StateAwaitingConfirmation {
		t.Fatalf("expected AWAITING_CONFIRMATION, got %s", o.State())
	}

	clock.fireLast()
	waitRun(t, done)
	if _, _, ok := o.Pending(); ok {
		t.Fatal("expected the confirmation to be gone")
	}
}

func TestRun_ContinuousSurvivesErrorsUntilEnd(t *testing.T) {
	defer goleak.VerifyNone(t)
	o, _, sp, _ := newTestVoice(t, Options{Continuous: true})
	src := bus.NewChannelSource(8)
	defer src.Close()

	ctx := context.Background()
	_ = src.Publish(ctx, bus.Transcript("read decision"))
	_ = src.Publish(ctx, bus.Failure(errors.New("no-speech")))
	_ = src.Publish(ctx, bus.Transcript("read action one"))
	_ = src.Publish(ctx, bus.End())

	if err := o.Run(ctx, src); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(sp.lines) != 2 {
		t.Fatalf("expected two replies, got %v", sp.lines)
	}
	if o.State() != StateIdle {
		t.Fatalf("expected IDLE after end, got %s", o.State())
	}
}

func TestRun_SingleShotReturnsRecognitionError(t *testing.T) {
	defer goleak.VerifyNone(t)
	o, _, _, _ := newTestVoice(t, Options{})
	src := bus.NewChannelSource(1)
	defer src.Close()

	boom := errors.New("audio-capture")
	_ = src.Publish(context.Background(), bus.Failure(boom))
	if err := o.Run(context.Background(), src); !errors.Is(err, boom) {
		t.Fatalf("expected recognition error, got %v", err)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	o, _, _, _ := newTestVoice(t, Options{Continuous: true})
	src := bus.NewChannelSource(1)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx, src) }()
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
