package approval

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a pending action.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
	StatusExecuted Status = "executed"
	StatusFailed   Status = "failed"
)

var (
	// ErrNotFound is returned when no action has the given ID.
	ErrNotFound = errors.New("approval: action not found")

	// ErrAlreadyResolved is returned when resolving an action that already
	// left the pending state. Approvals are idempotent losers: the first
	// resolution wins, later ones get this error.
	ErrAlreadyResolved = errors.New("approval: action already resolved")
)

// PendingAction is a tool call awaiting (or past) human review.
type PendingAction struct {
	ID         string         `json:"id"`
	Tool       string         `json:"tool"`
	Params     map[string]any `json:"params"`
	Reasoning  string         `json:"reasoning"`
	Actor      string         `json:"actor"`
	Status     Status         `json:"status"`
	ProposedAt time.Time      `json:"proposed_at"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
	Result     string         `json:"result,omitempty"`
}
