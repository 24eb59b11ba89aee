// Package engine defines the collaborator contracts of the orchestrator and
// an HTTP client that reaches the remote engines.
package engine

import (
	"context"
	"time"

	"github.com/MEKXH/intentpilot/internal/evidence"
	"github.com/MEKXH/intentpilot/internal/workflow"
)

// AnalyzeRequest asks the intent engine to analyze free text.
type AnalyzeRequest struct {
	Text          string           `json:"text"`
	TenantID      string           `json:"tenantId"`
	ActorID       string           `json:"actorId"`
	Industry      string           `json:"industry"`
	IntentType    string           `json:"intentType,omitempty"`
	ExtractedInfo map[string]any   `json:"extractedInfo,omitempty"`
	Payload       workflow.Payload `json:"payload"`
}

// DecisionsResult is the decision engine response for a compliant intent.
type DecisionsResult struct {
	Decisions      []workflow.Decision     `json:"decisions"`
	LifecycleState workflow.LifecycleState `json:"lifecycleState,omitempty"`
}

// SelectRequest selects an option of a decision.
type SelectRequest struct {
	DecisionID string `json:"-"`
	OptionID   string `json:"optionId"`
	Confirm    bool   `json:"confirm"`
	UserID     string `json:"userId"`
}

// ChangeRequest changes the option of a resolved decision.
type ChangeRequest struct {
	DecisionID  string `json:"-"`
	NewOptionID string `json:"newOptionId"`
	Reason      string `json:"reason"`
	UserID      string `json:"userId"`
}

// DecisionResult is the response of select and change.
type DecisionResult struct {
	Decision          workflow.Decision   `json:"decision"`
	UnlockedDecisions []workflow.Decision `json:"unlockedDecisions,omitempty"`
	UnlockedActions   []workflow.Action   `json:"unlockedActions,omitempty"`
}

// ActionsRequest asks the action engine for the action set. Existing actions
// are always sent so the engine can keep ids stable.
type ActionsRequest struct {
	Intent          workflow.Intent         `json:"intent"`
	Decisions       []workflow.Decision     `json:"decisions"`
	LifecycleState  workflow.LifecycleState `json:"lifecycleState"`
	ExistingActions []workflow.Action       `json:"existingActions"`
}

// ActionsResult is the action engine response.
type ActionsResult struct {
	Actions            []workflow.Action       `json:"actions"`
	NextLifecycleState workflow.LifecycleState `json:"nextLifecycleState,omitempty"`
}

// OutcomeRequest records the outcome of an action.
type OutcomeRequest struct {
	ActionID     string           `json:"-"`
	Outcome      workflow.Outcome `json:"outcome"`
	UserID       string           `json:"userId"`
	Reason       string           `json:"reason,omitempty"`
	ScheduledFor *time.Time       `json:"scheduledFor,omitempty"`
}

// OutcomeResult is the response of an outcome update.
type OutcomeResult struct {
	Action      workflow.Action   `json:"action"`
	NextActions []workflow.Action `json:"nextActions,omitempty"`
}

// ResumeResult describes an open intent that can be continued.
type ResumeResult struct {
	HasOpenIntent  bool                    `json:"hasOpenIntent"`
	Resumable      bool                    `json:"resumable"`
	IntentID       string                  `json:"intentId,omitempty"`
	Intent         *workflow.Intent        `json:"intent,omitempty"`
	Decisions      []workflow.Decision     `json:"decisions,omitempty"`
	Actions        []workflow.Action       `json:"actions,omitempty"`
	LifecycleState workflow.LifecycleState `json:"lifecycleState,omitempty"`
}

// IntentAnalyzer turns text into an intent.
type IntentAnalyzer interface {
	AnalyzeIntent(ctx context.Context, req AnalyzeRequest) (workflow.Intent, error)
}

// ComplianceChecker evaluates an intent against policy.
type ComplianceChecker interface {
	CheckCompliance(ctx context.Context, intent workflow.Intent) (*workflow.ComplianceResult, error)
}

// DecisionEngine produces and resolves decisions.
type DecisionEngine interface {
	GetDecisions(ctx context.Context, intent workflow.Intent, compliance workflow.ComplianceDecision, existing []workflow.Decision) (DecisionsResult, error)
	SelectDecision(ctx context.Context, req SelectRequest) (DecisionResult, error)
	ChangeDecision(ctx context.Context, req ChangeRequest) (DecisionResult, error)
	CheckResume(ctx context.Context, userID, tenantID string) (ResumeResult, error)
}

// ActionEngine produces actions and records their outcomes.
type ActionEngine interface {
	GetActions(ctx context.Context, req ActionsRequest) (ActionsResult, error)
	UpdateActionOutcome(ctx context.Context, req OutcomeRequest) (OutcomeResult, error)
}

// RiskEvaluator scores a session.
type RiskEvaluator interface {
	EvaluateRisk(ctx context.Context, s workflow.Session) (*workflow.RiskResult, error)
}

// Explainer explains the compliance verdict and decisions of a session.
type Explainer interface {
	Explain(ctx context.Context, s workflow.Session) (*workflow.Explanation, error)
}

// EvidenceStore receives evidence records and lists them per intent.
type EvidenceStore interface {
	SendEvidence(ctx context.Context, ev evidence.Event) error
	EvidenceForIntent(ctx context.Context, intentID string) ([]evidence.Event, error)
}

// Collaborators bundles every engine the orchestrator talks to.
type Collaborators struct {
	Intent     IntentAnalyzer
	Compliance ComplianceChecker
	Decisions  DecisionEngine
	Actions    ActionEngine
	Risk       RiskEvaluator
	Explain    Explainer
}

// ForClient fills every collaborator from one client.
func ForClient(c *Client) Collaborators {
	return Collaborators{
		Intent:     c,
		Compliance: c,
		Decisions:  c,
		Actions:    c,
		Risk:       c,
		Explain:    c,
	}
}
