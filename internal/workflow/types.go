package workflow

import (
	"strings"
	"time"
)

// LifecycleState is the derived progress stage of one intent.
type LifecycleState string

const (
	StateCreated           LifecycleState = "CREATED"
	StateAwaitingDecisions LifecycleState = "AWAITING_DECISIONS"
	StateDecisionsMade     LifecycleState = "DECISIONS_MADE"
	StateActionsInProgress LifecycleState = "ACTIONS_IN_PROGRESS"
	StateCompleted         LifecycleState = "COMPLETED"
)

// ComplianceDecision is the verdict returned by the compliance engine.
type ComplianceDecision string

const (
	ComplianceAllow  ComplianceDecision = "ALLOW"
	ComplianceDeny   ComplianceDecision = "DENY"
	ComplianceReview ComplianceDecision = "REVIEW"
)

// EvolutionState tracks how far a decision has been resolved.
type EvolutionState string

const (
	EvolutionPending   EvolutionState = "PENDING"
	EvolutionSelected  EvolutionState = "SELECTED"
	EvolutionConfirmed EvolutionState = "CONFIRMED"
)

// Outcome is the recorded result of an action step.
type Outcome string

const (
	OutcomeCompleted   Outcome = "COMPLETED"
	OutcomeConfirmed   Outcome = "CONFIRMED"
	OutcomeFailed      Outcome = "FAILED"
	OutcomeBlocked     Outcome = "BLOCKED"
	OutcomeRescheduled Outcome = "RESCHEDULED"
	OutcomeSkipped     Outcome = "SKIPPED"
)

// ParseOutcome maps a case-insensitive name to a known outcome.
func ParseOutcome(raw string) (Outcome, bool) {
	switch o := Outcome(strings.ToUpper(strings.TrimSpace(raw))); o {
	case OutcomeCompleted, OutcomeConfirmed, OutcomeFailed, OutcomeBlocked, OutcomeRescheduled, OutcomeSkipped:
		return o, true
	default:
		return "", false
	}
}

// Done reports whether the outcome finishes the action for completion purposes.
func (o Outcome) Done() bool {
	return o == OutcomeCompleted || o == OutcomeConfirmed
}

// RequiresReason reports whether the outcome must carry a reason.
func (o Outcome) RequiresReason() bool {
	return o == OutcomeFailed || o == OutcomeBlocked || o == OutcomeRescheduled
}

// Intent types understood by the splitter and engines.
const (
	IntentBuyProperty  = "BUY_PROPERTY"
	IntentSellProperty = "SELL_PROPERTY"
	IntentRentProperty = "RENT_PROPERTY"
)

// Payload holds the structured fields of an intent.
type Payload struct {
	Location     string `json:"location,omitempty"`
	Budget       int64  `json:"budget,omitempty"`
	Area         string `json:"area,omitempty"`
	PropertyID   string `json:"propertyId,omitempty"`
	OriginalText string `json:"originalText,omitempty"`
}

// Intent is the analyzed user goal.
type Intent struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Text          string         `json:"text,omitempty"`
	Payload       Payload        `json:"payload"`
	ExtractedInfo map[string]any `json:"extractedInfo,omitempty"`
	TenantID      string         `json:"tenantId,omitempty"`
	ActorID       string         `json:"actorId,omitempty"`
	Industry      string         `json:"industry,omitempty"`
}

// ComplianceCheck is one rule evaluated by the compliance engine.
type ComplianceCheck struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
}

// ComplianceResult is the compliance verdict for an intent.
type ComplianceResult struct {
	Decision   ComplianceDecision `json:"decision"`
	Reason     string             `json:"reason,omitempty"`
	Checks     []ComplianceCheck  `json:"checks,omitempty"`
	Violations []string           `json:"violations,omitempty"`
	Warnings   []string           `json:"warnings,omitempty"`
}

// Option is one selectable choice of a decision.
type Option struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Recommended bool   `json:"recommended,omitempty"`
}

// Decision is a choice point that gates later decisions and actions.
type Decision struct {
	DecisionID          string         `json:"decisionId"`
	Type                string         `json:"type"`
	Options             []Option       `json:"options"`
	SelectedOptionID    string         `json:"selectedOptionId,omitempty"`
	EvolutionState      EvolutionState `json:"evolutionState"`
	RecommendedOptionID string         `json:"recommendedOptionId,omitempty"`
	Recommendation      string         `json:"recommendation,omitempty"`
	Confidence          float64        `json:"confidence,omitempty"`
	DecidedBy           string         `json:"decidedBy,omitempty"`
	DecisionMethod      string         `json:"decisionMethod,omitempty"`
	DecisionTimestamp   *time.Time     `json:"decisionTimestamp,omitempty"`
}

// Option returns the option with the given id.
func (d Decision) Option(id string) (Option, bool) {
	for _, opt := range d.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}

// SelectedOption returns the currently selected option, if any.
func (d Decision) SelectedOption() (Option, bool) {
	if d.SelectedOptionID == "" {
		return Option{}, false
	}
	return d.Option(d.SelectedOptionID)
}

// RecommendedOption returns the recommended option, falling back to the
// first option flagged as recommended.
func (d Decision) RecommendedOption() (Option, bool) {
	if d.RecommendedOptionID != "" {
		if opt, ok := d.Option(d.RecommendedOptionID); ok {
			return opt, true
		}
	}
	for _, opt := range d.Options {
		if opt.Recommended {
			return opt, true
		}
	}
	return Option{}, false
}

// Action is one ordered execution step.
type Action struct {
	ActionID     string     `json:"actionId"`
	Description  string     `json:"description"`
	Order        int        `json:"order"`
	Status       string     `json:"status,omitempty"`
	Guidance     string     `json:"guidance,omitempty"`
	Outcome      Outcome    `json:"outcome,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
}

// RiskResult is the informational risk evaluation of a session.
type RiskResult struct {
	OverallRisk     string   `json:"overallRisk,omitempty"`
	RiskLevel       string   `json:"riskLevel,omitempty"`
	RiskScore       float64  `json:"riskScore,omitempty"`
	RiskFactors     []string `json:"riskFactors,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// Level returns the most specific risk level present.
func (r RiskResult) Level() string {
	if r.OverallRisk != "" {
		return r.OverallRisk
	}
	return r.RiskLevel
}

// Explanation is the explainability engine output.
type Explanation struct {
	DecisionRationale struct {
		WhyDecisionsNeeded  string `json:"whyDecisionsNeeded,omitempty"`
		RecommendationBasis string `json:"recommendationBasis,omitempty"`
	} `json:"decisionRationale"`
	ComplianceExplanation struct {
		PrimaryReason string `json:"primaryReason,omitempty"`
	} `json:"complianceExplanation"`
	Summary string `json:"summary,omitempty"`
}

// Advisory is RAG output surfaced next to engine results. It never gates progress.
type Advisory struct {
	Country    string   `json:"country"`
	Summary    string   `json:"summary"`
	Confidence float64  `json:"confidence,omitempty"`
	Sources    []string `json:"sources,omitempty"`
}

// Session is the state of one tracked intent.
type Session struct {
	ID          string            `json:"id"`
	Intent      Intent            `json:"intent"`
	Compliance  *ComplianceResult `json:"compliance,omitempty"`
	Decisions   []Decision        `json:"decisions"`
	Actions     []Action          `json:"actions"`
	Lifecycle   LifecycleState    `json:"lifecycleState"`
	Risk        *RiskResult       `json:"risk,omitempty"`
	Explanation *Explanation      `json:"explanation,omitempty"`
	Advisory    *Advisory         `json:"advisory,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Clone returns a deep copy so reducers never share slices with callers.
func (s Session) Clone() Session {
	out := s
	if s.Compliance != nil {
		c := *s.Compliance
		c.Checks = append([]ComplianceCheck(nil), s.Compliance.Checks...)
		c.Violations = append([]string(nil), s.Compliance.Violations...)
		c.Warnings = append([]string(nil), s.Compliance.Warnings...)
		out.Compliance = &c
	}
	out.Decisions = make([]Decision, len(s.Decisions))
	for i, d := range s.Decisions {
		d.Options = append([]Option(nil), d.Options...)
		out.Decisions[i] = d
	}
	out.Actions = append([]Action(nil), s.Actions...)
	if out.Actions == nil {
		out.Actions = []Action{}
	}
	if s.Risk != nil {
		r := *s.Risk
		out.Risk = &r
	}
	if s.Explanation != nil {
		e := *s.Explanation
		out.Explanation = &e
	}
	if s.Advisory != nil {
		a := *s.Advisory
		out.Advisory = &a
	}
	if s.Intent.ExtractedInfo != nil {
		info := make(map[string]any, len(s.Intent.ExtractedInfo))
		for k, v := range s.Intent.ExtractedInfo {
			info[k] = v
		}
		out.Intent.ExtractedInfo = info
	}
	return out
}

// Decision returns the decision with the given id.
func (s Session) Decision(id string) (Decision, bool) {
	for _, d := range s.Decisions {
		if d.DecisionID == id {
			return d, true
		}
	}
	return Decision{}, false
}

// Action returns the action with the given id.
func (s Session) Action(id string) (Action, bool) {
	for _, a := range s.Actions {
		if a.ActionID == id {
			return a, true
		}
	}
	return Action{}, false
}

// Halted reports whether compliance stopped the intent from progressing.
func (s Session) Halted() bool {
	return s.Compliance != nil && s.Compliance.Decision != ComplianceAllow
}
