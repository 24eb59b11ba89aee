package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MEKXH/intentpilot/internal/bus"
	"github.com/MEKXH/intentpilot/internal/config"
	"github.com/MEKXH/intentpilot/internal/evidence"
	"github.com/MEKXH/intentpilot/internal/metrics"
	"github.com/MEKXH/intentpilot/internal/workflow"
)

const (
	defaultTimeout  = 10 * time.Second
	maxResponseBody = 4 * 1024 * 1024
)

// Routes holds the resolved endpoint of every engine call.
type Routes struct {
	Intent       string
	Compliance   string
	Decisions    string
	Actions      string
	Risk         string
	Explain      string
	Evidence     string
	DecisionBase string
	ActionBase   string
	EvidenceBase string
}

// RoutesFromConfig resolves routes for individual engines, or for one
// unified engine when unified_url is set.
func RoutesFromConfig(cfg config.EnginesConfig) Routes {
	if u := strings.TrimRight(strings.TrimSpace(cfg.UnifiedURL), "/"); u != "" {
		return Routes{
			Intent:       u + "/v1/intent/execute",
			Compliance:   u + "/v1/compliance/execute",
			Decisions:    u + "/v1/execute",
			Actions:      u + "/v1/action/execute",
			Risk:         u + "/v1/risk/execute",
			Explain:      u + "/v1/explainability/execute",
			Evidence:     u + "/v1/execute",
			DecisionBase: u + "/v1",
			ActionBase:   u + "/v1",
			EvidenceBase: u + "/v1",
		}
	}
	trim := func(s string) string { return strings.TrimRight(strings.TrimSpace(s), "/") }
	return Routes{
		Intent:       trim(cfg.Intent) + "/v1/execute",
		Compliance:   trim(cfg.Compliance) + "/v1/execute",
		Decisions:    trim(cfg.Decision) + "/v1/execute",
		Actions:      trim(cfg.Action) + "/v1/execute",
		Risk:         trim(cfg.Risk) + "/v1/execute",
		Explain:      trim(cfg.Explainability) + "/v1/execute",
		Evidence:     trim(cfg.Evidence) + "/v1/execute",
		DecisionBase: trim(cfg.Decision) + "/v1",
		ActionBase:   trim(cfg.Action) + "/v1",
		EvidenceBase: trim(cfg.Evidence) + "/v1",
	}
}

// Client talks JSON over HTTP to every engine.
type Client struct {
	routes  Routes
	client  *http.Client
	metrics *metrics.RuntimeMetrics
	now     func() time.Time
}

// NewClient builds an engine client. metrics may be nil.
func NewClient(routes Routes, timeout time.Duration, m *metrics.RuntimeMetrics) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		routes:  routes,
		client:  &http.Client{Timeout: timeout},
		metrics: m,
		now:     time.Now,
	}
}

// AnalyzeIntent implements IntentAnalyzer.
func (c *Client) AnalyzeIntent(ctx context.Context, req AnalyzeRequest) (workflow.Intent, error) {
	var out workflow.Intent
	if err := c.do(ctx, "intent", http.MethodPost, c.routes.Intent, req, &out); err != nil {
		return workflow.Intent{}, err
	}
	if out.ID == "" {
		return workflow.Intent{}, workflow.Collaborator("intent", errors.New("response has no intent id"))
	}
	return out, nil
}

// CheckCompliance implements ComplianceChecker.
func (c *Client) CheckCompliance(ctx context.Context, intent workflow.Intent) (*workflow.ComplianceResult, error) {
	body := map[string]any{
		"intentId":   intent.ID,
		"tenantId":   orDefault(intent.TenantID, "default-tenant"),
		"actorId":    orDefault(intent.ActorID, "default-user"),
		"intentType": intent.Type,
		"location":   intent.Payload.Location,
		"budget":     intent.Payload.Budget,
		"area":       intent.Payload.Area,
		"propertyId": intent.Payload.PropertyID,
	}
	var out workflow.ComplianceResult
	if err := c.do(ctx, "compliance", http.MethodPost, c.routes.Compliance, body, &out); err != nil {
		return nil, err
	}
	if out.Decision == "" {
		return nil, workflow.Collaborator("compliance", errors.New("response has no decision"))
	}
	return &out, nil
}

// GetDecisions implements DecisionEngine.
func (c *Client) GetDecisions(ctx context.Context, intent workflow.Intent, compliance workflow.ComplianceDecision, existing []workflow.Decision) (DecisionsResult, error) {
	if existing == nil {
		existing = []workflow.Decision{}
	}
	body := map[string]any{
		"intent": map[string]any{
			"id":               intent.ID,
			"type":             intent.Type,
			"payload":          intent.Payload,
			"extractedInfo":    orEmptyMap(intent.ExtractedInfo),
			"text":             intent.Text,
			"complianceStatus": compliance,
		},
		"existingDecisions": existing,
	}
	var out DecisionsResult
	if err := c.do(ctx, "decision", http.MethodPost, c.routes.Decisions, body, &out); err != nil {
		return DecisionsResult{}, err
	}
	return out, nil
}

// SelectDecision implements DecisionEngine.
func (c *Client) SelectDecision(ctx context.Context, req SelectRequest) (DecisionResult, error) {
	endpoint := c.routes.DecisionBase + "/decision/" + url.PathEscape(req.DecisionID) + "/select"
	var out DecisionResult
	if err := c.do(ctx, "decision", http.MethodPost, endpoint, req, &out); err != nil {
		return DecisionResult{}, err
	}
	return out, nil
}

// ChangeDecision implements DecisionEngine.
func (c *Client) ChangeDecision(ctx context.Context, req ChangeRequest) (DecisionResult, error) {
	endpoint := c.routes.DecisionBase + "/decision/" + url.PathEscape(req.DecisionID) + "/change"
	var out DecisionResult
	if err := c.do(ctx, "decision", http.MethodPost, endpoint, req, &out); err != nil {
		return DecisionResult{}, err
	}
	return out, nil
}

// CheckResume implements DecisionEngine. An unreachable engine or a response
// that is not JSON means there is nothing to resume.
func (c *Client) CheckResume(ctx context.Context, userID, tenantID string) (ResumeResult, error) {
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("tenantId", tenantID)
	endpoint := c.routes.DecisionBase + "/intent/resume?" + q.Encode()

	var out ResumeResult
	err := c.do(ctx, "decision", http.MethodGet, endpoint, nil, &out)
	if err == nil {
		return out, nil
	}
	if workflow.IsKind(err, workflow.KindUnavailable) || workflow.IsKind(err, workflow.KindNotFound) || errors.Is(err, errNotJSON) {
		slog.Debug("resume check skipped", "error", err)
		return ResumeResult{}, nil
	}
	return ResumeResult{}, err
}

// GetActions implements ActionEngine.
func (c *Client) GetActions(ctx context.Context, req ActionsRequest) (ActionsResult, error) {
	if req.Decisions == nil {
		req.Decisions = []workflow.Decision{}
	}
	if req.ExistingActions == nil {
		req.ExistingActions = []workflow.Action{}
	}
	if req.LifecycleState == "" {
		req.LifecycleState = workflow.StateAwaitingDecisions
	}
	var out ActionsResult
	if err := c.do(ctx, "action", http.MethodPost, c.routes.Actions, req, &out); err != nil {
		return ActionsResult{}, err
	}
	return out, nil
}

// UpdateActionOutcome implements ActionEngine.
func (c *Client) UpdateActionOutcome(ctx context.Context, req OutcomeRequest) (OutcomeResult, error) {
	endpoint := c.routes.ActionBase + "/action/" + url.PathEscape(req.ActionID) + "/outcome"
	var out OutcomeResult
	err := c.do(ctx, "action", http.MethodPost, endpoint, req, &out)
	if err != nil {
		if workflow.IsKind(err, workflow.KindNotFound) {
			return OutcomeResult{}, workflow.NotFound("set outcome",
				"action %s not found; the action set was likely regenerated, reload the session and try again", req.ActionID)
		}
		return OutcomeResult{}, err
	}
	if out.Action.ActionID == "" {
		out.Action.ActionID = req.ActionID
	}
	return out, nil
}

// EvaluateRisk implements RiskEvaluator.
func (c *Client) EvaluateRisk(ctx context.Context, s workflow.Session) (*workflow.RiskResult, error) {
	body := map[string]any{
		"intentId":         s.Intent.ID,
		"intentType":       s.Intent.Type,
		"complianceResult": s.Compliance,
		"intentPayload":    s.Intent.Payload,
		"decisions":        s.Decisions,
		"tenantId":         orDefault(s.Intent.TenantID, "default-tenant"),
		"actorId":          orDefault(s.Intent.ActorID, "default-user"),
	}
	var out workflow.RiskResult
	if err := c.do(ctx, "risk", http.MethodPost, c.routes.Risk, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Explain implements Explainer.
func (c *Client) Explain(ctx context.Context, s workflow.Session) (*workflow.Explanation, error) {
	body := map[string]any{
		"intentId":         s.Intent.ID,
		"intentType":       s.Intent.Type,
		"complianceResult": s.Compliance,
		"decisions":        s.Decisions,
		"tenantId":         orDefault(s.Intent.TenantID, "default-tenant"),
		"actorId":          orDefault(s.Intent.ActorID, "default-user"),
	}
	if s.Risk != nil {
		body["riskResult"] = s.Risk
	}
	var out workflow.Explanation
	if err := c.do(ctx, "explainability", http.MethodPost, c.routes.Explain, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendEvidence implements EvidenceStore and evidence.Sink.
func (c *Client) SendEvidence(ctx context.Context, ev evidence.Event) error {
	return c.do(ctx, "evidence", http.MethodPost, c.routes.Evidence, ev, nil)
}

// EvidenceForIntent implements EvidenceStore.
func (c *Client) EvidenceForIntent(ctx context.Context, intentID string) ([]evidence.Event, error) {
	endpoint := c.routes.EvidenceBase + "/intent/" + url.PathEscape(intentID) + "/evidence"
	var out []evidence.Event
	if err := c.do(ctx, "evidence", http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var errNotJSON = errors.New("response is not JSON")

func (c *Client) do(ctx context.Context, engine, method, endpoint string, body, out any) (err error) {
	start := c.now()
	defer func() {
		_, _ = c.metrics.RecordEngineCall(engine, c.now().Sub(start), err)
	}()

	var reader io.Reader
	if body != nil {
		encoded, mErr := json.Marshal(body)
		if mErr != nil {
			return workflow.Collaborator(engine, fmt.Errorf("encode request: %w", mErr))
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return workflow.Collaborator(engine, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	requestID := bus.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = bus.NewRequestID()
	}
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.client.Do(req)
	if err != nil {
		return workflow.Unavailable(engine, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return workflow.Unavailable(engine, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(engine, resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if trimmed := bytes.TrimSpace(raw); trimmed[0] == '<' {
		return workflow.Collaborator(engine, errNotJSON)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return workflow.Collaborator(engine, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func statusError(engine string, status int, raw []byte) error {
	text := strings.TrimSpace(string(raw))
	if r := []rune(text); len(r) > 200 {
		text = string(r[:200])
	}
	cause := fmt.Errorf("status %d: %s", status, text)
	switch {
	case status >= 500 || status == http.StatusMethodNotAllowed:
		return workflow.Unavailable(engine, cause)
	case status == http.StatusNotFound || strings.Contains(text, "NOT_FOUND"):
		return &workflow.Error{Kind: workflow.KindNotFound, Op: engine, Err: cause}
	case status == http.StatusConflict:
		return &workflow.Error{Kind: workflow.KindState, Op: engine, Err: cause}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return &workflow.Error{Kind: workflow.KindValidation, Op: engine, Err: cause}
	default:
		return workflow.Collaborator(engine, cause)
	}
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
