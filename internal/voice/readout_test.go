package voice

import (
	"strings"
	"testing"

	"github.com/MEKXH/intentpilot/internal/workflow"
)

func TestDecisionContent(t *testing.T) {
	decisions := []workflow.Decision{
		{
			DecisionID:       "d-agent",
			Type:             "Agent selection",
			Options:          []workflow.Option{{ID: "agent-a", Label: "Agent A"}, {ID: "agent-b", Label: "Agent B", Recommended: true}},
			SelectedOptionID: "agent-a",
		},
		{
			DecisionID:     "d-loan",
			Type:           "Loan",
			Options:        []workflow.Option{{ID: "hdfc"}, {}},
			Recommendation: "HDFC has the lowest rate",
		},
	}

	got := DecisionContent(decisions, "")
	want := "Loan. Options: hdfc, Option 2. Recommended: HDFC has the lowest rate."
	if got != want {
		t.Fatalf("latest decision:\n got %q\nwant %q", got, want)
	}

	got = DecisionContent(decisions, "one")
	want = "Agent selection. Options: Agent A, Agent B. Currently selected: Agent A. Recommended: Agent B."
	if got != want {
		t.Fatalf("first decision:\n got %q\nwant %q", got, want)
	}

	if got := DecisionContent(decisions, "agent"); !strings.HasPrefix(got, "Agent selection.") {
		t.Fatalf("keyword lookup got %q", got)
	}
	if got := DecisionContent(nil, ""); got != "" {
		t.Fatalf("expected empty content, got %q", got)
	}
}

func TestNextStepContent(t *testing.T) {
	s := workflow.Session{
		Decisions: []workflow.Decision{{DecisionID: "d1"}, {DecisionID: "d2", SelectedOptionID: "o"}},
	}
	if got := NextStepContent(s); got != "Next step: Make a decision. 1 decision pending." {
		t.Fatalf("pending decisions got %q", got)
	}

	s.Actions = []workflow.Action{
		{ActionID: "x2", Description: "Visit property", Order: 2},
		{ActionID: "x1", Description: "Get pre-approval", Order: 1, Outcome: workflow.OutcomeCompleted},
		{ActionID: "x3", Description: "Sign agreement", Order: 3, Guidance: "Bring two IDs."},
	}
	want := "Next step: Visit property. Status: pending. There is 1 more pending action."
	if got := NextStepContent(s); got != want {
		t.Fatalf("next action:\n got %q\nwant %q", got, want)
	}

	for i := range s.Actions {
		s.Actions[i].Outcome = workflow.OutcomeCompleted
	}
	if got := NextStepContent(s); got != "All actions are completed. No next steps." {
		t.Fatalf("all done got %q", got)
	}
}

func TestRead_Targets(t *testing.T) {
	s := workflow.Session{
		Intent:     workflow.Intent{ID: "i1", Type: "BUY_PROPERTY", ExtractedInfo: map[string]any{"location": "Pune", "budget": 8000000}},
		Lifecycle:  workflow.StateAwaitingDecisions,
		Compliance: &workflow.ComplianceResult{Decision: workflow.ComplianceReview, Reason: "KYC pending", Warnings: []string{"w1"}},
		Risk:       &workflow.RiskResult{OverallRisk: "LOW", RiskLevel: "LOW", RiskScore: 0.2, RiskFactors: []string{"market"}},
	}
	s.Explanation = &workflow.Explanation{}
	s.Explanation.ComplianceExplanation.PrimaryReason = "identity documents are missing"

	tests := []struct {
		target Target
		want   string
	}{
		{TargetIntent, "Intent type: BUY_PROPERTY. Current status: awaiting decisions. Extracted information: budget: 8000000, location: Pune."},
		{TargetCompliance, "Compliance decision: review. Reason: KYC pending. Warnings: w1."},
		{TargetRisk, "Overall risk: low. Risk level: low. Risk score: 0.2. Risk factors: market."},
		{TargetExplanation, "This decision was made because: identity documents are missing."},
		{TargetAction, ""},
		{TargetCurrent, "Intent type: BUY_PROPERTY. Current status: awaiting decisions. Extracted information: budget: 8000000, location: Pune."},
	}
	for _, tt := range tests {
		if got := Read(s, tt.target, "", ""); got != tt.want {
			t.Fatalf("Read(%s):\n got %q\nwant %q", tt.target, got, tt.want)
		}
	}

	if got := Read(s, TargetCurrent, "", "Select Agent A?"); got != "Pending confirmation: Select Agent A." {
		t.Fatalf("pending read got %q", got)
	}
}
