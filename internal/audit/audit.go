// Package audit records every security-relevant decision in an append-only
// sqlite table: tool executions, denials, approvals, skill lifecycle events.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/clawinfra/clawguard/internal/store"
)

// Event kinds recorded in the log.
const (
	EventToolExecuted  = "tool_executed"
	EventToolDenied    = "tool_denied"
	EventRateLimited   = "rate_limited"
	EventProposed      = "proposed"
	EventApproved      = "approved"
	EventRejected      = "rejected"
	EventExpired       = "expired"
	EventSkillStarted  = "skill_started"
	EventSkillStopped  = "skill_stopped"
	EventSkillCrashed  = "skill_crashed"
	EventCredUpdated   = "credential_updated"
	EventCredDeleted   = "credential_deleted"
)

// Entry is one audit record.
type Entry struct {
	ID      int64     `json:"id"`
	At      time.Time `json:"at"`
	Actor   string    `json:"actor"`
	Event   string    `json:"event"`
	Tool    string    `json:"tool,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	Outcome string    `json:"outcome,omitempty"`
}

// Log writes and reads audit entries.
type Log struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewLog wraps the shared store.
func NewLog(st *store.Store, logger *slog.Logger) *Log {
	return &Log{
		db:     st.DB(),
		logger: logger.With("component", "audit"),
		now:    time.Now,
	}
}

// Record appends one entry. Audit failures are logged, never fatal: the
// agent must not wedge because the audit insert failed.
func (l *Log) Record(ctx context.Context, actor, event, tool, detail, outcome string) {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_log (at, actor, event, tool, detail, outcome) VALUES (?, ?, ?, ?, ?, ?)`,
		l.now().Unix(), actor, event, tool, detail, outcome)
	if err != nil {
		l.logger.Error("audit record failed", "event", event, "error", err)
	}
}

// Recent returns the newest entries, newest first, capped at limit.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, at, actor, event, tool, detail, outcome
		 FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			at int64
		)
		if err := rows.Scan(&e.ID, &at, &e.Actor, &e.Event, &e.Tool, &e.Detail, &e.Outcome); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		e.At = time.Unix(at, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
