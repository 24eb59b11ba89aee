// Package evidence records voice and advisory activity for audit.
package evidence

import "time"

// Event types emitted by the voice and advisory paths.
const (
	TypeCommandReceived      = "VOICE_COMMAND_RECEIVED"
	TypeActionRequested      = "VOICE_ACTION_REQUESTED"
	TypeActionConfirmed      = "VOICE_ACTION_CONFIRMED"
	TypeActionCancelled      = "VOICE_ACTION_CANCELLED"
	TypeConfirmationExpired  = "VOICE_CONFIRMATION_EXPIRED"
	TypeDecisionSelected     = "VOICE_DECISION_SELECTED"
	TypeActionOutcomeUpdated = "VOICE_ACTION_OUTCOME_UPDATED"
	TypeActionFailed         = "VOICE_ACTION_FAILED"
	TypeReadRequested        = "VOICE_READ_REQUESTED"
	TypeNavigationExecuted   = "VOICE_NAVIGATION_EXECUTED"
	TypeRAGQueryExecuted     = "RAG_QUERY_EXECUTED"
)

// VoiceEngine is the engine name attached to voice evidence.
const VoiceEngine = "VOICE_AGENT_ENGINE"

// Event is one evidence record.
type Event struct {
	Time       time.Time      `json:"time"`
	IntentID   string         `json:"intentId"`
	Engine     string         `json:"engine"`
	EventType  string         `json:"eventType"`
	ActorID    string         `json:"actorId"`
	TenantID   string         `json:"tenantId"`
	Payload    map[string]any `json:"payload,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Confidence string         `json:"confidence"`
	RequestID  string         `json:"requestId,omitempty"`
}

func (e Event) normalized(now time.Time) Event {
	if e.Time.IsZero() {
		e.Time = now
	}
	if e.IntentID == "" {
		e.IntentID = "unknown"
	}
	if e.Engine == "" {
		e.Engine = VoiceEngine
	}
	if e.ActorID == "" {
		e.ActorID = "default-user"
	}
	if e.TenantID == "" {
		e.TenantID = "default-tenant"
	}
	if e.Confidence == "" {
		e.Confidence = "HIGH"
	}
	if e.Payload == nil {
		e.Payload = map[string]any{}
	}
	return e
}
