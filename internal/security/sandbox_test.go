package security

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestSandboxResolveInside(t *testing.T) {
	sb, err := NewSandboxedFs(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	got, err := sb.Resolve("notes/todo.txt")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(sb.Root(), "notes", "todo.txt")
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestSandboxRejectsAbsolute(t *testing.T) {
	sb, err := NewSandboxedFs(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	_, err = sb.Resolve("/etc/passwd")
	if !errors.Is(err, ErrSandboxViolation) {
		t.Errorf("expected ErrSandboxViolation, got %v", err)
	}
}

func TestSandboxRejectsTraversal(t *testing.T) {
	sb, err := NewSandboxedFs(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	for _, p := range []string{"..", "../outside.txt", "a/../../outside.txt"} {
		if _, err := sb.Resolve(p); !errors.Is(err, ErrSandboxViolation) {
			t.Errorf("Resolve(%q): expected ErrSandboxViolation, got %v", p, err)
		}
	}
}

func TestSandboxRejectsSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	outside := t.TempDir()
	sb, err := NewSandboxedFs(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(sb.Root(), "escape")); err != nil {
		t.Fatal(err)
	}

	if _, err := sb.Resolve("escape/secret.txt"); !errors.Is(err, ErrSandboxViolation) {
		t.Errorf("expected ErrSandboxViolation, got %v", err)
	}
}

func TestSandboxReadWrite(t *testing.T) {
	sb, err := NewSandboxedFs(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := sb.WriteFile("deep/nested/file.txt", []byte("hello")); err != nil {
		t.Fatal(err)
	}
	data, err := sb.ReadFile("deep/nested/file.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("expected hello, got %q", data)
	}

	entries, err := sb.ListDir("deep")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "nested" {
		t.Errorf("unexpected entries: %v", entries)
	}
}

func TestSandboxRejectsNullByte(t *testing.T) {
	sb, err := NewSandboxedFs(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sb.Resolve("a\x00b"); !errors.Is(err, ErrSandboxViolation) {
		t.Errorf("expected ErrSandboxViolation, got %v", err)
	}
}
