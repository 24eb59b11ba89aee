package approval

import "time"

// RequestStatus is the lifecycle state of a confirmation request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
	StatusExpired  RequestStatus = "expired"
	// StatusReplaced marks a request superseded by a newer one.
	StatusReplaced RequestStatus = "replaced"
)

// Request is one confirmation waiting for a yes or no.
type Request struct {
	Generation  uint64        `json:"generation"`
	Kind        string        `json:"kind"`
	Prompt      string        `json:"prompt"`
	Params      any           `json:"params,omitempty"`
	Status      RequestStatus `json:"status"`
	RequestedAt time.Time     `json:"requested_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
	DecidedAt   time.Time     `json:"decided_at,omitempty"`
}

// CreateInput contains fields needed to open a confirmation.
type CreateInput struct {
	Kind   string
	Prompt string
	Params any
	TTL    time.Duration
}
