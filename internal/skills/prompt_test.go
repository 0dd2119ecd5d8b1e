package skills

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writePromptSkill(t *testing.T, root, dirName, content string) {
	t.Helper()
	dir := filepath.Join(root, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPromptLibraryLoadAndMatch(t *testing.T) {
	root := t.TempDir()
	writePromptSkill(t, root, "standup", `---
name: standup
description: daily standup format
triggers:
  - standup
  - daily summary
---
Format the reply as yesterday / today / blockers.`)
	writePromptSkill(t, root, "codereview", `---
name: codereview
triggers: [review]
---
Focus on correctness first.`)

	lib := NewPromptLibrary(root, slog.New(slog.NewTextHandler(os.Stderr, nil)))

	all, err := lib.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 prompt skills, got %d", len(all))
	}

	snippets := lib.Match("please give me the Daily Summary now")
	if len(snippets) != 1 || snippets[0] != "Format the reply as yesterday / today / blockers." {
		t.Errorf("unexpected snippets: %v", snippets)
	}

	if got := lib.Match("unrelated message"); len(got) != 0 {
		t.Errorf("expected no match, got %v", got)
	}
}

func TestPromptLibraryIgnoresBrokenFiles(t *testing.T) {
	root := t.TempDir()
	writePromptSkill(t, root, "good", "---\nname: good\ntriggers: [hi]\n---\nbody")
	writePromptSkill(t, root, "nofront", "just a readme, no frontmatter")
	writePromptSkill(t, root, "noname", "---\ndescription: nameless\n---\nbody")

	lib := NewPromptLibrary(root, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	all, err := lib.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Name != "good" {
		t.Errorf("expected only the good skill, got %+v", all)
	}
}

func TestPromptLibraryMissingDir(t *testing.T) {
	lib := NewPromptLibrary(filepath.Join(t.TempDir(), "nope"), slog.New(slog.NewTextHandler(os.Stderr, nil)))
	all, err := lib.LoadAll()
	if err != nil || len(all) != 0 {
		t.Errorf("missing dir should be empty, got %v %v", all, err)
	}
}
