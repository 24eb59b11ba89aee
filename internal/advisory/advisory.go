// Package advisory queries a chat model for market context on an intent.
// Its output is informational only.
package advisory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/MEKXH/intentpilot/internal/evidence"
	"github.com/MEKXH/intentpilot/internal/workflow"
)

const (
	defaultTimeout = 60 * time.Second
	// LowConfidence marks answers that should be shown as advisory only.
	LowConfidence = 0.7
)

// Generator is the part of a chat model the advisor needs.
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Advisor runs advisory queries.
type Advisor struct {
	model    Generator
	evidence *evidence.Emitter
	timeout  time.Duration
}

// New builds an advisor. emitter may be nil.
func New(m Generator, emitter *evidence.Emitter, timeout time.Duration) *Advisor {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Advisor{model: m, evidence: emitter, timeout: timeout}
}

// Advise returns market context for the intent, or nil when the model is
// missing, fails, or answers without usable JSON.
func (a *Advisor) Advise(ctx context.Context, intent workflow.Intent) *workflow.Advisory {
	if a == nil || a.model == nil {
		return nil
	}
	country := DetermineCountry(intent)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt(country)),
		schema.UserMessage(userPrompt(intent, country)),
	})
	if err != nil {
		slog.Warn("advisory query failed", "intent_id", intent.ID, "error", err)
		return nil
	}
	out, err := parseResponse(resp.Content, country)
	if err != nil {
		slog.Warn("advisory response unusable", "intent_id", intent.ID, "error", err)
		return nil
	}
	if out.Confidence < LowConfidence {
		slog.Info("advisory confidence below threshold", "intent_id", intent.ID, "confidence", out.Confidence)
	}

	a.evidence.Emit(evidence.Event{
		IntentID:   intent.ID,
		Engine:     "RAG_ENGINE",
		EventType:  evidence.TypeRAGQueryExecuted,
		ActorID:    intent.ActorID,
		TenantID:   intent.TenantID,
		Payload:    map[string]any{"country": out.Country, "intentType": intent.Type, "sources": len(out.Sources)},
		Confidence: confidenceLabel(out.Confidence),
	})
	return out
}

func systemPrompt(country string) string {
	market := "Indian real estate"
	if country == "US" {
		market = "United States real estate"
	}
	return fmt.Sprintf("You are an advisory assistant for the %s market. "+
		"You provide factual, source-cited context only. You never make decisions and never execute actions.", market)
}

func userPrompt(intent workflow.Intent, country string) string {
	entities := intent.ExtractedInfo
	if len(entities) == 0 {
		entities = map[string]any{}
		if intent.Payload.Location != "" {
			entities["location"] = intent.Payload.Location
		}
		if intent.Payload.Budget > 0 {
			entities["budget"] = intent.Payload.Budget
		}
	}
	encoded, _ := json.MarshalIndent(entities, "", "  ")
	intentType := intent.Type
	if intentType == "" {
		intentType = "UNKNOWN"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Intent Type: %s\n", intentType)
	fmt.Fprintf(&b, "Extracted Entities: %s\n", encoded)
	fmt.Fprintf(&b, "Country: %s\n\n", country)
	b.WriteString("Provide market context and cite your sources. ")
	b.WriteString(`Return one JSON object: {"summary": string, "country": string, "confidence": 0.0-1.0, "sources": [{"name": string}]}`)
	return b.String()
}

var (
	jsonObject = regexp.MustCompile(`(?s)\{.*\}`)
	// Reasoning models wrap their scratchpad in think tags, often with braces.
	thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)
)

type rawAdvisory struct {
	Summary    string          `json:"summary"`
	Country    string          `json:"country"`
	Confidence *float64        `json:"confidence"`
	Sources    json.RawMessage `json:"sources"`
}

func parseResponse(content, country string) (*workflow.Advisory, error) {
	content = thinkBlock.ReplaceAllString(content, "")
	match := jsonObject.FindString(content)
	if match == "" {
		return nil, fmt.Errorf("no JSON object in response")
	}
	var raw rawAdvisory
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return nil, fmt.Errorf("decode advisory: %w", err)
	}

	out := &workflow.Advisory{
		Country:    strings.ToUpper(strings.TrimSpace(raw.Country)),
		Summary:    strings.TrimSpace(raw.Summary),
		Confidence: 0.5,
		Sources:    parseSources(raw.Sources),
	}
	if out.Country == "" {
		out.Country = country
	}
	if out.Summary == "" {
		out.Summary = "No summary available"
	}
	if raw.Confidence != nil {
		out.Confidence = clamp(*raw.Confidence)
	}
	return out, nil
}

func parseSources(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err == nil {
		return names
	}
	var objects []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(raw, &objects); err != nil {
		return nil
	}
	for _, o := range objects {
		switch {
		case o.Name != "":
			names = append(names, o.Name)
		case o.URL != "":
			names = append(names, o.URL)
		}
	}
	return names
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func confidenceLabel(v float64) string {
	switch {
	case v >= 0.8:
		return "HIGH"
	case v >= 0.5:
		return "MEDIUM"
	default:
		return "LOW"
	}
}
