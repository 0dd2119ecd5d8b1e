// Package approval persists tool calls that need human sign-off before they
// run. All state transitions go through the database so a daemon restart
// never loses or double-runs an action.
package approval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clawinfra/clawguard/internal/store"
)

// Queue is the sqlite-backed pending-action store.
type Queue struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewQueue wraps the shared store.
func NewQueue(st *store.Store, logger *slog.Logger) *Queue {
	return &Queue{
		db:     st.DB(),
		logger: logger.With("component", "approval"),
		now:    time.Now,
	}
}

// Propose inserts a new pending action and returns it.
func (q *Queue) Propose(ctx context.Context, tool string, params map[string]any, reasoning, actor string) (*PendingAction, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("approval: encode params: %w", err)
	}
	a := &PendingAction{
		ID:         uuid.NewString(),
		Tool:       tool,
		Params:     params,
		Reasoning:  reasoning,
		Actor:      actor,
		Status:     StatusPending,
		ProposedAt: q.now().UTC(),
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO pending_actions (id, tool, params, reasoning, actor, status, proposed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Tool, string(raw), a.Reasoning, a.Actor, a.Status, a.ProposedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("approval: insert: %w", err)
	}
	q.logger.Info("action proposed", "id", a.ID, "tool", tool, "actor", actor)
	return a, nil
}

// Resolve moves a pending action to approved or rejected. The UPDATE is
// guarded on status='pending' so concurrent resolutions cannot both win.
func (q *Queue) Resolve(ctx context.Context, id string, status Status) error {
	if status != StatusApproved && status != StatusRejected {
		return fmt.Errorf("approval: invalid resolution %q", status)
	}
	res, err := q.db.ExecContext(ctx,
		`UPDATE pending_actions SET status = ?, resolved_at = ? WHERE id = ? AND status = 'pending'`,
		status, q.now().Unix(), id)
	if err != nil {
		return fmt.Errorf("approval: resolve: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("approval: resolve: %w", err)
	}
	if n == 0 {
		var existing string
		err := q.db.QueryRowContext(ctx, `SELECT status FROM pending_actions WHERE id = ?`, id).Scan(&existing)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("approval: resolve: %w", err)
		}
		return fmt.Errorf("%w: %s is %s", ErrAlreadyResolved, id, existing)
	}
	q.logger.Info("action resolved", "id", id, "status", status)
	return nil
}

// Sweep expires pending actions older than ttl and returns how many flipped.
func (q *Queue) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := q.now().Add(-ttl).Unix()
	res, err := q.db.ExecContext(ctx,
		`UPDATE pending_actions SET status = ?, resolved_at = ? WHERE status = 'pending' AND proposed_at < ?`,
		StatusExpired, q.now().Unix(), cutoff)
	if err != nil {
		return 0, fmt.Errorf("approval: sweep: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("approval: sweep: %w", err)
	}
	if n > 0 {
		q.logger.Info("expired stale actions", "count", n)
	}
	return int(n), nil
}

// Get returns one action by ID.
func (q *Queue) Get(ctx context.Context, id string) (*PendingAction, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, tool, params, reasoning, actor, status, proposed_at, resolved_at, result
		 FROM pending_actions WHERE id = ?`, id)
	a, err := scanAction(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return a, err
}

// List returns actions with the given status, oldest first. An empty status
// lists everything.
func (q *Queue) List(ctx context.Context, status Status) ([]*PendingAction, error) {
	query := `SELECT id, tool, params, reasoning, actor, status, proposed_at, resolved_at, result
	          FROM pending_actions`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY proposed_at ASC, id ASC`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("approval: list: %w", err)
	}
	defer rows.Close()

	var out []*PendingAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// NextApproved returns the oldest approved action, or nil when the drain is
// empty.
func (q *Queue) NextApproved(ctx context.Context) (*PendingAction, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, tool, params, reasoning, actor, status, proposed_at, resolved_at, result
		 FROM pending_actions WHERE status = 'approved'
		 ORDER BY proposed_at ASC, id ASC LIMIT 1`)
	a, err := scanAction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// MarkExecuted records the outcome of an approved action that ran.
func (q *Queue) MarkExecuted(ctx context.Context, id, result string) error {
	return q.finish(ctx, id, StatusExecuted, result)
}

// MarkFailed records an approved action whose execution failed.
func (q *Queue) MarkFailed(ctx context.Context, id, result string) error {
	return q.finish(ctx, id, StatusFailed, result)
}

func (q *Queue) finish(ctx context.Context, id string, status Status, result string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE pending_actions SET status = ?, result = ? WHERE id = ? AND status = 'approved'`,
		status, result, id)
	if err != nil {
		return fmt.Errorf("approval: finish: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("approval: finish: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s not in approved state", ErrNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(row rowScanner) (*PendingAction, error) {
	var (
		a          PendingAction
		rawParams  string
		proposedAt int64
		resolvedAt sql.NullInt64
		result     sql.NullString
	)
	err := row.Scan(&a.ID, &a.Tool, &rawParams, &a.Reasoning, &a.Actor, &a.Status, &proposedAt, &resolvedAt, &result)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rawParams), &a.Params); err != nil {
		return nil, fmt.Errorf("approval: decode params for %s: %w", a.ID, err)
	}
	a.ProposedAt = time.Unix(proposedAt, 0).UTC()
	if resolvedAt.Valid {
		t := time.Unix(resolvedAt.Int64, 0).UTC()
		a.ResolvedAt = &t
	}
	a.Result = result.String
	return &a, nil
}
