// Package notify fans events out to live subscribers: the websocket stream,
// the TUI, and an optional MQTT publisher for external front ends.
package notify

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Event types published by the daemon.
const (
	EventApprovalNeeded   = "approval_needed"
	EventApprovalResolved = "approval_resolved"
	EventActionExecuted   = "action_executed"
	EventAgentReply       = "agent_reply"
	EventSkillChanged     = "skill_changed"
	EventConfirmNeeded    = "confirmation_needed"
)

// Event is one notification.
type Event struct {
	Type    string         `json:"type"`
	At      time.Time      `json:"at"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Broadcaster delivers events to every subscriber. Slow subscribers drop
// events instead of blocking the publisher.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	logger *slog.Logger
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[int]chan Event),
		logger: logger.With("component", "notify"),
	}
}

// Subscribe returns a channel of events and a cancel function.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, 32)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers an event to all subscribers, stamping the time.
func (b *Broadcaster) Publish(eventType string, payload map[string]any) {
	ev := Event{Type: eventType, At: time.Now().UTC(), Payload: payload}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Debug("dropping event for slow subscriber", "type", eventType)
		}
	}
}

// Marshal encodes an event for the wire.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
