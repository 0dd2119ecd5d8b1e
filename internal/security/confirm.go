package security

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChallengeStatus is the lifecycle state of a confirmation challenge.
type ChallengeStatus string

const (
	ChallengePending   ChallengeStatus = "pending"
	ChallengeConfirmed ChallengeStatus = "confirmed"
	ChallengeExpired   ChallengeStatus = "expired"
)

// Challenge is a time-boxed secondary confirmation for a sensitive tool
// call. The call does not run until the challenge is confirmed, no matter
// who approved it.
type Challenge struct {
	ID        string          `json:"id"`
	Tool      string          `json:"tool"`
	Summary   string          `json:"summary"`
	Status    ChallengeStatus `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Confirmer manages confirmation challenges for tools listed under
// require_confirmation.
type Confirmer struct {
	mu         sync.Mutex
	ttl        time.Duration
	required   map[string]struct{}
	challenges map[string]*Challenge
	logger     *slog.Logger
	now        func() time.Time
}

// NewConfirmer builds a confirmer for the given tool list and challenge TTL.
func NewConfirmer(requiredTools []string, ttl time.Duration, logger *slog.Logger) *Confirmer {
	req := make(map[string]struct{}, len(requiredTools))
	for _, t := range requiredTools {
		req[t] = struct{}{}
	}
	return &Confirmer{
		ttl:        ttl,
		required:   req,
		challenges: make(map[string]*Challenge),
		logger:     logger.With("component", "confirmer"),
		now:        time.Now,
	}
}

// Required reports whether a tool needs a confirmation challenge.
func (c *Confirmer) Required(tool string) bool {
	_, ok := c.required[tool]
	return ok
}

// Issue creates a pending challenge for a tool call and returns it.
func (c *Confirmer) Issue(tool, summary string) *Challenge {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	ch := &Challenge{
		ID:        uuid.NewString(),
		Tool:      tool,
		Summary:   summary,
		Status:    ChallengePending,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}
	c.challenges[ch.ID] = ch
	c.logger.Info("confirmation challenge issued", "id", ch.ID, "tool", tool)
	return ch
}

// Confirm marks a pending challenge confirmed. Expired challenges are
// rejected and flipped to expired.
func (c *Confirmer) Confirm(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.challenges[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrChallengeNotFound, id)
	}
	if ch.Status != ChallengePending {
		return fmt.Errorf("challenge %s already %s", id, ch.Status)
	}
	if c.now().After(ch.ExpiresAt) {
		ch.Status = ChallengeExpired
		return fmt.Errorf("%w: %s", ErrChallengeExpired, id)
	}
	ch.Status = ChallengeConfirmed
	c.logger.Info("confirmation challenge confirmed", "id", id, "tool", ch.Tool)
	return nil
}

// Confirmed reports whether a challenge exists, is confirmed, and is still
// inside its TTL.
func (c *Confirmer) Confirmed(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.challenges[id]
	if !ok {
		return false
	}
	return ch.Status == ChallengeConfirmed && !c.now().After(ch.ExpiresAt)
}

// Pending lists pending, unexpired challenges.
func (c *Confirmer) Pending() []*Challenge {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var out []*Challenge
	for _, ch := range c.challenges {
		if ch.Status == ChallengePending && !now.After(ch.ExpiresAt) {
			cp := *ch
			out = append(out, &cp)
		}
	}
	return out
}

// Sweep expires stale challenges and drops anything resolved or expired
// longer than one TTL ago.
func (c *Confirmer) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for id, ch := range c.challenges {
		if ch.Status == ChallengePending && now.After(ch.ExpiresAt) {
			ch.Status = ChallengeExpired
		}
		if ch.Status != ChallengePending && now.Sub(ch.ExpiresAt) > c.ttl {
			delete(c.challenges, id)
		}
	}
}
