package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/MEKXH/intentpilot/internal/bus"
	"github.com/MEKXH/intentpilot/internal/config"
	"github.com/MEKXH/intentpilot/internal/evidence"
	"github.com/MEKXH/intentpilot/internal/metrics"
	"github.com/MEKXH/intentpilot/internal/workflow"
)

func unifiedClient(t *testing.T, handler http.HandlerFunc) (*Client, *metrics.RuntimeMetrics) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	m := metrics.NewRuntimeMetrics(t.TempDir())
	return NewClient(RoutesFromConfig(config.EnginesConfig{UnifiedURL: srv.URL + "/"}), 2*time.Second, m), m
}

func TestRoutesFromConfig(t *testing.T) {
	individual := RoutesFromConfig(config.EnginesConfig{
		Intent:     "http://intent:7001/",
		Decision:   "http://decision:7003",
		Action:     "http://action:7004",
		Compliance: "http://compliance:7002",
	})
	if individual.Intent != "http://intent:7001/v1/execute" {
		t.Fatalf("unexpected intent route: %q", individual.Intent)
	}
	if individual.DecisionBase != "http://decision:7003/v1" {
		t.Fatalf("unexpected decision base: %q", individual.DecisionBase)
	}

	unified := RoutesFromConfig(config.EnginesConfig{UnifiedURL: "http://all:9000", Intent: "http://ignored"})
	if unified.Intent != "http://all:9000/v1/intent/execute" {
		t.Fatalf("unexpected unified intent route: %q", unified.Intent)
	}
	if unified.Compliance != "http://all:9000/v1/compliance/execute" {
		t.Fatalf("unexpected unified compliance route: %q", unified.Compliance)
	}
	if unified.Actions != "http://all:9000/v1/action/execute" {
		t.Fatalf("unexpected unified action route: %q", unified.Actions)
	}
}

func TestClient_AnalyzeIntentSendsRequestID(t *testing.T) {
	var gotID string
	var gotBody map[string]any
	c, m := unifiedClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/intent/execute" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		gotID = r.Header.Get("X-Request-ID")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "int-1",
			"type":    "BUY_PROPERTY",
			"payload": map[string]any{"location": "Delhi", "budget": 8000000},
		})
	})

	ctx := bus.WithRequestID(context.Background(), "req-42")
	intent, err := c.AnalyzeIntent(ctx, AnalyzeRequest{Text: "house in Delhi", TenantID: "t1", ActorID: "u1"})
	if err != nil {
		t.Fatalf("AnalyzeIntent error: %v", err)
	}
	if intent.ID != "int-1" || intent.Payload.Budget != 8000000 {
		t.Fatalf("unexpected intent: %+v", intent)
	}
	if gotID != "req-42" {
		t.Fatalf("expected request id header, got %q", gotID)
	}
	if gotBody["text"] != "house in Delhi" {
		t.Fatalf("unexpected request body: %+v", gotBody)
	}
	snap := m.Snapshot()
	if snap.ByEngine["intent"].Total != 1 || snap.ByEngine["intent"].Errors != 0 {
		t.Fatalf("expected one successful intent call, got %+v", snap.ByEngine["intent"])
	}
}

func TestClient_GetDecisionsBody(t *testing.T) {
	var gotBody struct {
		Intent struct {
			ID               string `json:"id"`
			ComplianceStatus string `json:"complianceStatus"`
		} `json:"intent"`
		ExistingDecisions []workflow.Decision `json:"existingDecisions"`
	}
	c, _ := unifiedClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/execute" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"decisions": []map[string]any{{
				"decisionId":     "d1",
				"type":           "FINANCING",
				"evolutionState": "PENDING",
				"options":        []map[string]any{{"id": "loan", "label": "Bank loan"}},
			}},
		})
	})

	res, err := c.GetDecisions(context.Background(), workflow.Intent{ID: "int-1"}, workflow.ComplianceAllow, nil)
	if err != nil {
		t.Fatalf("GetDecisions error: %v", err)
	}
	if len(res.Decisions) != 1 || res.Decisions[0].DecisionID != "d1" {
		t.Fatalf("unexpected decisions: %+v", res.Decisions)
	}
	if gotBody.Intent.ID != "int-1" || gotBody.Intent.ComplianceStatus != "ALLOW" {
		t.Fatalf("unexpected request intent: %+v", gotBody.Intent)
	}
	if gotBody.ExistingDecisions == nil {
		t.Fatal("expected existingDecisions to be sent as an empty list")
	}
}

func TestClient_SelectDecisionRoute(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	c, _ := unifiedClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"decision": map[string]any{"decisionId": "d1", "selectedOptionId": "loan", "evolutionState": "SELECTED"},
		})
	})

	res, err := c.SelectDecision(context.Background(), SelectRequest{DecisionID: "d1", OptionID: "loan", UserID: "u1"})
	if err != nil {
		t.Fatalf("SelectDecision error: %v", err)
	}
	if gotPath != "/v1/decision/d1/select" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if _, ok := gotBody["decisionId"]; ok {
		t.Fatalf("decision id must travel in the path, body=%+v", gotBody)
	}
	if gotBody["optionId"] != "loan" || gotBody["confirm"] != false {
		t.Fatalf("unexpected body: %+v", gotBody)
	}
	if res.Decision.EvolutionState != workflow.EvolutionSelected {
		t.Fatalf("unexpected decision: %+v", res.Decision)
	}
}

func TestClient_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   workflow.Kind
	}{
		{name: "server error", status: http.StatusBadGateway, want: workflow.KindUnavailable},
		{name: "not found", status: http.StatusNotFound, want: workflow.KindNotFound},
		{name: "conflict", status: http.StatusConflict, want: workflow.KindState},
		{name: "bad request", status: http.StatusBadRequest, want: workflow.KindValidation},
		{name: "forbidden", status: http.StatusForbidden, want: workflow.KindCollaborator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, m := unifiedClient(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			})
			_, err := c.GetActions(context.Background(), ActionsRequest{Intent: workflow.Intent{ID: "i"}})
			if !workflow.IsKind(err, tt.want) {
				t.Fatalf("expected kind %s, got %v", tt.want, err)
			}
			if m.Snapshot().ByEngine["action"].Errors != 1 {
				t.Fatal("expected failed call to be counted")
			}
		})
	}
}

func TestClient_UnreachableIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := NewClient(RoutesFromConfig(config.EnginesConfig{UnifiedURL: addr}), time.Second, nil)
	_, err := c.CheckCompliance(context.Background(), workflow.Intent{ID: "i"})
	if !workflow.IsKind(err, workflow.KindUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestClient_UpdateActionOutcomeNotFound(t *testing.T) {
	c, _ := unifiedClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/action/a1/outcome" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"NOT_FOUND"}`))
	})

	_, err := c.UpdateActionOutcome(context.Background(), OutcomeRequest{ActionID: "a1", Outcome: workflow.OutcomeCompleted})
	if !workflow.IsKind(err, workflow.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if !strings.Contains(err.Error(), "regenerated") {
		t.Fatalf("expected regeneration hint, got %q", err.Error())
	}
}

func TestClient_UpdateActionOutcomeBody(t *testing.T) {
	when := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var gotBody map[string]any
	c, _ := unifiedClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"action":      map[string]any{"actionId": "a1", "outcome": "RESCHEDULED", "order": 1},
			"nextActions": []map[string]any{{"actionId": "a2", "order": 2}},
		})
	})

	res, err := c.UpdateActionOutcome(context.Background(), OutcomeRequest{
		ActionID:     "a1",
		Outcome:      workflow.OutcomeRescheduled,
		Reason:       "seller away",
		ScheduledFor: &when,
	})
	if err != nil {
		t.Fatalf("UpdateActionOutcome error: %v", err)
	}
	if gotBody["outcome"] != "RESCHEDULED" || gotBody["reason"] != "seller away" {
		t.Fatalf("unexpected body: %+v", gotBody)
	}
	if gotBody["scheduledFor"] != "2026-03-01T10:00:00Z" {
		t.Fatalf("unexpected scheduledFor: %v", gotBody["scheduledFor"])
	}
	if len(res.NextActions) != 1 || res.NextActions[0].ActionID != "a2" {
		t.Fatalf("unexpected next actions: %+v", res.NextActions)
	}
}

func TestClient_CheckResumeDegrades(t *testing.T) {
	c, _ := unifiedClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("userId") != "u1" || r.URL.Query().Get("tenantId") != "t1" {
			t.Fatalf("unexpected query %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>dev server</html>"))
	})

	res, err := c.CheckResume(context.Background(), "u1", "t1")
	if err != nil {
		t.Fatalf("CheckResume error: %v", err)
	}
	if res.HasOpenIntent {
		t.Fatalf("expected empty resume result, got %+v", res)
	}
}

func TestClient_SendEvidence(t *testing.T) {
	var got evidence.Event
	c, _ := unifiedClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	})

	err := c.SendEvidence(context.Background(), evidence.Event{
		IntentID:  "int-1",
		Engine:    evidence.VoiceEngine,
		EventType: evidence.TypeCommandReceived,
	})
	if err != nil {
		t.Fatalf("SendEvidence error: %v", err)
	}
	if got.IntentID != "int-1" || got.EventType != evidence.TypeCommandReceived {
		t.Fatalf("unexpected evidence: %+v", got)
	}
}

func TestStatusError_TruncatesOnRuneBoundary(t *testing.T) {
	body := []byte(strings.Repeat("é", 300))
	err := statusError("decision", http.StatusForbidden, body)
	msg := err.Error()
	if !utf8.ValidString(msg) {
		t.Fatalf("expected valid UTF-8, got %q", msg)
	}
	if n := strings.Count(msg, "é"); n != 200 {
		t.Fatalf("expected 200 runes of body, got %d", n)
	}
}
