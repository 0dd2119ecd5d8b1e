package tools

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/clawinfra/clawguard/internal/security"
	"github.com/clawinfra/clawguard/internal/trash"
)

func testContext(t *testing.T) *Context {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	sb, err := security.NewSandboxedFs(filepath.Join(t.TempDir(), "workspace"))
	if err != nil {
		t.Fatal(err)
	}
	tr, err := trash.New(filepath.Join(t.TempDir(), "trash"), logger)
	if err != nil {
		t.Fatal(err)
	}
	return &Context{
		Sandbox:     sb,
		Trash:       tr,
		ExecTimeout: 5 * time.Second,
		Logger:      logger,
	}
}

func mustGet(t *testing.T, r *Registry, name string) Tool {
	t.Helper()
	tool, ok := r.Get(name)
	if !ok {
		t.Fatalf("tool %s not registered", name)
	}
	return tool
}

func TestRegistryHasStandardTools(t *testing.T) {
	r := NewRegistry(testContext(t))
	want := []string{"delete_file", "edit_file", "exec", "list_files", "read_file", "skill", "write_file"}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %s at %d, got %s", want[i], i, got[i])
		}
	}
	if !strings.Contains(r.Describe(), "read_file:") {
		t.Error("Describe should mention read_file")
	}
}

func TestWriteReadEditRoundtrip(t *testing.T) {
	r := NewRegistry(testContext(t))
	ctx := context.Background()

	out := mustGet(t, r, "write_file").Execute(ctx, map[string]any{
		"path": "notes/todo.md", "content": "- buy milk\n- walk dog\n",
	})
	if !out.Success {
		t.Fatalf("write failed: %s", out.Output)
	}

	out = mustGet(t, r, "edit_file").Execute(ctx, map[string]any{
		"path": "notes/todo.md", "search": "walk dog", "replace": "feed cat",
	})
	if !out.Success {
		t.Fatalf("edit failed: %s", out.Output)
	}

	out = mustGet(t, r, "read_file").Execute(ctx, map[string]any{"path": "notes/todo.md"})
	if !out.Success || !strings.Contains(out.Output, "feed cat") {
		t.Errorf("unexpected read result: %+v", out)
	}

	out = mustGet(t, r, "list_files").Execute(ctx, map[string]any{"path": "notes"})
	if !out.Success || out.Output != "todo.md" {
		t.Errorf("unexpected listing: %+v", out)
	}
}

func TestEditRequiresUniqueMatch(t *testing.T) {
	r := NewRegistry(testContext(t))
	ctx := context.Background()

	mustGet(t, r, "write_file").Execute(ctx, map[string]any{
		"path": "a.txt", "content": "dup dup",
	})
	out := mustGet(t, r, "edit_file").Execute(ctx, map[string]any{
		"path": "a.txt", "search": "dup", "replace": "x",
	})
	if out.Success {
		t.Error("ambiguous edit should fail")
	}
	out = mustGet(t, r, "edit_file").Execute(ctx, map[string]any{
		"path": "a.txt", "search": "absent", "replace": "x",
	})
	if out.Success {
		t.Error("edit of missing text should fail")
	}
}

func TestDeleteMovesToTrash(t *testing.T) {
	tc := testContext(t)
	r := NewRegistry(tc)
	ctx := context.Background()

	mustGet(t, r, "write_file").Execute(ctx, map[string]any{"path": "old.txt", "content": "bye"})
	out := mustGet(t, r, "delete_file").Execute(ctx, map[string]any{"path": "old.txt"})
	if !out.Success {
		t.Fatalf("delete failed: %s", out.Output)
	}
	if out.Metadata["trash_id"] == "" {
		t.Error("expected trash_id metadata")
	}

	if _, err := tc.Sandbox.Stat("old.txt"); !os.IsNotExist(err) {
		t.Error("file should be gone from workspace")
	}
	entries, err := tc.Trash.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].OriginalPath != "old.txt" {
		t.Errorf("unexpected trash entries: %+v", entries)
	}
}

func TestToolsRejectEscapingPaths(t *testing.T) {
	r := NewRegistry(testContext(t))
	ctx := context.Background()

	for _, name := range []string{"read_file", "delete_file"} {
		out := mustGet(t, r, name).Execute(ctx, map[string]any{"path": "../../etc/passwd"})
		if out.Success {
			t.Errorf("%s should reject escaping path", name)
		}
	}
	out := mustGet(t, r, "write_file").Execute(ctx, map[string]any{
		"path": "/etc/evil", "content": "x",
	})
	if out.Success {
		t.Error("write_file should reject absolute path")
	}
}

func TestMissingParamsAreToolErrorsNotPanics(t *testing.T) {
	r := NewRegistry(testContext(t))
	ctx := context.Background()

	for _, name := range r.Names() {
		out := mustGet(t, r, name).Execute(ctx, map[string]any{})
		// list_files tolerates an empty path; everything else must fail
		// gracefully.
		if name != "list_files" && out.Success {
			t.Errorf("%s should fail on empty params", name)
		}
	}
}

func TestExecRunsInWorkspace(t *testing.T) {
	tc := testContext(t)
	r := NewRegistry(tc)
	ctx := context.Background()

	out := mustGet(t, r, "exec").Execute(ctx, map[string]any{"command": "pwd"})
	if !out.Success {
		t.Fatalf("exec failed: %s", out.Output)
	}
	if out.Output != tc.Sandbox.Root() {
		t.Errorf("expected cwd %s, got %s", tc.Sandbox.Root(), out.Output)
	}
	if out.Metadata["exit_code"] != 0 {
		t.Errorf("expected exit_code 0, got %v", out.Metadata["exit_code"])
	}
}

func TestExecFailureCapturesExitCode(t *testing.T) {
	r := NewRegistry(testContext(t))
	out := mustGet(t, r, "exec").Execute(context.Background(), map[string]any{"command": "exit 3"})
	if out.Success {
		t.Fatal("expected failure")
	}
	if out.Metadata["exit_code"] != 3 {
		t.Errorf("expected exit_code 3, got %v", out.Metadata["exit_code"])
	}
}

func TestExecTimeout(t *testing.T) {
	tc := testContext(t)
	tc.ExecTimeout = 200 * time.Millisecond
	r := NewRegistry(tc)

	start := time.Now()
	out := mustGet(t, r, "exec").Execute(context.Background(), map[string]any{"command": "sleep 10"})
	if out.Success {
		t.Fatal("expected timeout failure")
	}
	if out.Metadata["timed_out"] != true {
		t.Errorf("expected timed_out metadata, got %v", out.Metadata)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout did not cut the command short")
	}
}
