package approval

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/clawinfra/clawguard/internal/store"
)

func testQueue(t *testing.T) *Queue {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "clawguard.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return NewQueue(st, logger)
}

func TestProposeAndGet(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	a, err := q.Propose(ctx, "exec", map[string]any{"command": "rm old.log"}, "cleanup", "user")
	if err != nil {
		t.Fatal(err)
	}
	if a.Status != StatusPending {
		t.Errorf("expected pending, got %s", a.Status)
	}

	got, err := q.Get(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Tool != "exec" || got.Params["command"] != "rm old.log" {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
	if got.Reasoning != "cleanup" || got.Actor != "user" {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
}

func TestResolveFirstWins(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	a, err := q.Propose(ctx, "delete_file", map[string]any{"path": "x"}, "", "user")
	if err != nil {
		t.Fatal(err)
	}

	if err := q.Resolve(ctx, a.ID, StatusApproved); err != nil {
		t.Fatal(err)
	}
	// Second resolution loses, whichever direction it goes.
	if err := q.Resolve(ctx, a.ID, StatusRejected); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("expected ErrAlreadyResolved, got %v", err)
	}
	if err := q.Resolve(ctx, a.ID, StatusApproved); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("expected ErrAlreadyResolved, got %v", err)
	}
}

func TestResolveUnknownID(t *testing.T) {
	q := testQueue(t)
	err := q.Resolve(context.Background(), "missing-id", StatusApproved)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveInvalidStatus(t *testing.T) {
	q := testQueue(t)
	if err := q.Resolve(context.Background(), "any", StatusExecuted); err == nil {
		t.Error("expected error for non-terminal resolution status")
	}
}

func TestSweepExpiresOnlyStalePending(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()
	clock := time.Now()
	q.now = func() time.Time { return clock }

	stale, _ := q.Propose(ctx, "exec", map[string]any{"command": "a"}, "", "user")
	resolved, _ := q.Propose(ctx, "exec", map[string]any{"command": "b"}, "", "user")
	if err := q.Resolve(ctx, resolved.ID, StatusApproved); err != nil {
		t.Fatal(err)
	}

	clock = clock.Add(2 * time.Hour)
	fresh, _ := q.Propose(ctx, "exec", map[string]any{"command": "c"}, "", "user")

	n, err := q.Sweep(ctx, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired, got %d", n)
	}

	for id, want := range map[string]Status{
		stale.ID:    StatusExpired,
		resolved.ID: StatusApproved,
		fresh.ID:    StatusPending,
	} {
		got, err := q.Get(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != want {
			t.Errorf("%s: expected %s, got %s", id, want, got.Status)
		}
	}
}

func TestNextApprovedFIFO(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()
	clock := time.Now()
	q.now = func() time.Time { return clock }

	first, _ := q.Propose(ctx, "exec", map[string]any{"command": "a"}, "", "user")
	clock = clock.Add(time.Second)
	second, _ := q.Propose(ctx, "exec", map[string]any{"command": "b"}, "", "user")

	// Approve in reverse order; the drain still returns oldest first.
	if err := q.Resolve(ctx, second.ID, StatusApproved); err != nil {
		t.Fatal(err)
	}
	if err := q.Resolve(ctx, first.ID, StatusApproved); err != nil {
		t.Fatal(err)
	}

	next, err := q.NextApproved(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected %s first, got %+v", first.ID, next)
	}

	if err := q.MarkExecuted(ctx, next.ID, "ok"); err != nil {
		t.Fatal(err)
	}
	next, err = q.NextApproved(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if next == nil || next.ID != second.ID {
		t.Fatalf("expected %s second, got %+v", second.ID, next)
	}

	if err := q.MarkFailed(ctx, next.ID, "boom"); err != nil {
		t.Fatal(err)
	}
	next, err = q.NextApproved(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if next != nil {
		t.Errorf("expected empty drain, got %+v", next)
	}

	got, _ := q.Get(ctx, second.ID)
	if got.Status != StatusFailed || got.Result != "boom" {
		t.Errorf("unexpected final state: %+v", got)
	}
}

func TestMarkExecutedRequiresApproved(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	a, _ := q.Propose(ctx, "exec", map[string]any{"command": "a"}, "", "user")
	if err := q.MarkExecuted(ctx, a.ID, "ok"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for pending action, got %v", err)
	}
}

func TestListByStatus(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	a, _ := q.Propose(ctx, "exec", map[string]any{"command": "a"}, "", "user")
	q.Propose(ctx, "exec", map[string]any{"command": "b"}, "", "user")
	if err := q.Resolve(ctx, a.ID, StatusRejected); err != nil {
		t.Fatal(err)
	}

	pending, err := q.List(ctx, StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Errorf("expected 1 pending, got %d", len(pending))
	}

	all, err := q.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 total, got %d", len(all))
	}
}
