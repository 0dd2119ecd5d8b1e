package audit

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/clawinfra/clawguard/internal/store"
)

func testLog(t *testing.T) *Log {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "clawguard.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return NewLog(st, slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func TestRecordAndRecent(t *testing.T) {
	l := testLog(t)
	ctx := context.Background()

	l.Record(ctx, "user", EventToolExecuted, "read_file", "notes.txt", "ok")
	l.Record(ctx, "user", EventToolDenied, "exec", "rm -rf /", "capability denied")
	l.Record(ctx, "scheduler", EventSkillStarted, "", "weather", "")

	entries, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	// Newest first.
	if entries[0].Event != EventSkillStarted {
		t.Errorf("expected skill_started first, got %s", entries[0].Event)
	}
	if entries[2].Tool != "read_file" || entries[2].Outcome != "ok" {
		t.Errorf("unexpected oldest entry: %+v", entries[2])
	}
}

func TestRecentLimit(t *testing.T) {
	l := testLog(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		l.Record(ctx, "user", EventProposed, "exec", "", "")
	}
	entries, err := l.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}
}
