package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/MEKXH/intentpilot/internal/config"
	"github.com/MEKXH/intentpilot/internal/engine"
	"github.com/MEKXH/intentpilot/internal/workflow"
)

type fakeEngines struct {
	mu       sync.Mutex
	selects  []engine.SelectRequest
	outcomes []engine.OutcomeRequest
}

func (f *fakeEngines) collaborators() *engine.Collaborators {
	return &engine.Collaborators{Intent: f, Compliance: f, Decisions: f, Actions: f, Risk: f, Explain: f}
}

func (f *fakeEngines) AnalyzeIntent(_ context.Context, req engine.AnalyzeRequest) (workflow.Intent, error) {
	return workflow.Intent{ID: "intent-" + strings.Fields(req.Text)[0], Type: req.IntentType, Payload: req.Payload}, nil
}

func (f *fakeEngines) CheckCompliance(context.Context, workflow.Intent) (*workflow.ComplianceResult, error) {
	return &workflow.ComplianceResult{Decision: workflow.ComplianceAllow, Reason: "ok"}, nil
}

func (f *fakeEngines) GetDecisions(context.Context, workflow.Intent, workflow.ComplianceDecision, []workflow.Decision) (engine.DecisionsResult, error) {
	return engine.DecisionsResult{Decisions: []workflow.Decision{{
		DecisionID:     "d1",
		Type:           "FINANCING",
		EvolutionState: workflow.EvolutionPending,
		Options: []workflow.Option{
			{ID: "cash", Label: "Cash"},
			{ID: "loan", Label: "Loan", Recommended: true},
		},
	}}}, nil
}

func (f *fakeEngines) SelectDecision(_ context.Context, req engine.SelectRequest) (engine.DecisionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selects = append(f.selects, req)
	return engine.DecisionResult{}, nil
}

func (f *fakeEngines) ChangeDecision(context.Context, engine.ChangeRequest) (engine.DecisionResult, error) {
	return engine.DecisionResult{}, nil
}

func (f *fakeEngines) CheckResume(context.Context, string, string) (engine.ResumeResult, error) {
	return engine.ResumeResult{}, nil
}

func (f *fakeEngines) GetActions(context.Context, engine.ActionsRequest) (engine.ActionsResult, error) {
	return engine.ActionsResult{Actions: []workflow.Action{
		{ActionID: "x1", Description: "Get pre-approval", Order: 1},
		{ActionID: "x2", Description: "Visit property", Order: 2},
	}}, nil
}

func (f *fakeEngines) UpdateActionOutcome(_ context.Context, req engine.OutcomeRequest) (engine.OutcomeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, req)
	return engine.OutcomeResult{}, nil
}

func (f *fakeEngines) EvaluateRisk(context.Context, workflow.Session) (*workflow.RiskResult, error) {
	return &workflow.RiskResult{OverallRisk: "LOW"}, nil
}

func (f *fakeEngines) Explain(context.Context, workflow.Session) (*workflow.Explanation, error) {
	return &workflow.Explanation{Summary: "explained"}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	setHome(t)
	cfg := config.DefaultConfig()
	cfg.Workspace = filepath.Join(t.TempDir(), "workspace")
	cfg.Workflow.ActorID = "alice"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	return cfg
}

func TestChat_SingleMessageSubmitsIntent(t *testing.T) {
	cfg := testConfig(t)
	f := &fakeEngines{}
	var out bytes.Buffer

	if err := chat(context.Background(), cfg, f.collaborators(), strings.NewReader(""), &out, []string{"buy", "a", "flat", "in", "Pune"}, false); err != nil {
		t.Fatalf("chat error: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "`intent-buy` [AWAITING_DECISIONS]") {
		t.Fatalf("expected submitted intent, got:\n%s", got)
	}
	if !strings.Contains(got, "Loan `loan` (recommended)") {
		t.Fatalf("expected decision options, got:\n%s", got)
	}
}

func TestChat_VoiceSelectConfirmAndOutcome(t *testing.T) {
	cfg := testConfig(t)
	f := &fakeEngines{}
	var out bytes.Buffer
	input := strings.Join([]string{
		"buy a flat in Pune",
		"select cash",
		"confirm",
		"/outcome 1 COMPLETED",
		"exit",
	}, "\n")

	if err := chat(context.Background(), cfg, f.collaborators(), strings.NewReader(input), &out, nil, false); err != nil {
		t.Fatalf("chat error: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"IntentPilot ready.",
		"voice: Asking confirmation: Select Cash?",
		"voice: Decision confirmed and executed. Cash selected.",
		"Action x1 marked COMPLETED.",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in output:\n%s", want, got)
		}
	}
	if len(f.selects) != 1 || f.selects[0].OptionID != "cash" {
		t.Fatalf("unexpected select requests %+v", f.selects)
	}
	if len(f.outcomes) != 1 || f.outcomes[0].ActionID != "x1" {
		t.Fatalf("unexpected outcome requests %+v", f.outcomes)
	}

	raw, err := os.ReadFile(cfg.HistoryPath())
	if err != nil {
		t.Fatalf("expected history flushed on exit: %v", err)
	}
	if !strings.Contains(string(raw), "intent-buy") {
		t.Fatalf("expected intent in history, got: %s", raw)
	}
}

func TestChat_CancelDropsPendingConfirmation(t *testing.T) {
	cfg := testConfig(t)
	f := &fakeEngines{}
	var out bytes.Buffer
	input := "buy a flat in Pune\nselect loan\ncancel\nconfirm\n"

	if err := chat(context.Background(), cfg, f.collaborators(), strings.NewReader(input), &out, nil, false); err != nil {
		t.Fatalf("chat error: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "voice: There is nothing to confirm.") {
		t.Fatalf("expected nothing to confirm after cancel:\n%s", got)
	}
	if len(f.selects) != 0 {
		t.Fatalf("expected no select after cancel, got %+v", f.selects)
	}
}

func TestChat_UnknownSlashCommand(t *testing.T) {
	cfg := testConfig(t)
	f := &fakeEngines{}
	var out bytes.Buffer

	if err := chat(context.Background(), cfg, f.collaborators(), strings.NewReader("/frobnicate now\n"), &out, nil, false); err != nil {
		t.Fatalf("chat error: %v", err)
	}
	if !strings.Contains(out.String(), "Unknown command /frobnicate") {
		t.Fatalf("expected unknown command notice:\n%s", out.String())
	}
}
