package skills

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSkill(t *testing.T, root, name, manifest string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "skill.toml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "run.sh"), []byte("#!/bin/sh\nsleep 30\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadManifest(t *testing.T) {
	dir := writeSkill(t, t.TempDir(), "weather", `
name = "weather"
description = "fetch weather"
skill_type = "daemon"
enabled = true
entrypoint = "run.sh"

[env]
UNITS = "metric"

[[credentials]]
name = "WEATHER_API_KEY"
label = "Weather API key"
required = true
`)

	m, err := LoadManifest(dir)
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "weather" || m.SkillType != TypeDaemon || !m.Enabled {
		t.Errorf("unexpected manifest: %+v", m)
	}
	if m.Env["UNITS"] != "metric" {
		t.Errorf("env not parsed: %v", m.Env)
	}
	if len(m.Credentials) != 1 || !m.Credentials[0].Required {
		t.Errorf("credentials not parsed: %+v", m.Credentials)
	}
}

func TestLoadManifestMissingEntrypoint(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "broken")
	os.MkdirAll(dir, 0o755)
	os.WriteFile(filepath.Join(dir, "skill.toml"), []byte(`
name = "broken"
skill_type = "oneshot"
entrypoint = "missing.py"
`), 0o644)

	if _, err := LoadManifest(dir); err == nil {
		t.Error("expected error for missing entrypoint file")
	}
}

func TestManifestValidate(t *testing.T) {
	cases := []struct {
		name string
		m    Manifest
		ok   bool
	}{
		{"valid daemon", Manifest{Name: "a", SkillType: TypeDaemon, Entrypoint: "run.sh"}, true},
		{"valid oneshot", Manifest{Name: "a", SkillType: TypeOneshot, Entrypoint: "run.py"}, true},
		{"missing name", Manifest{SkillType: TypeDaemon, Entrypoint: "run.sh"}, false},
		{"missing type", Manifest{Name: "a", Entrypoint: "run.sh"}, false},
		{"bad type", Manifest{Name: "a", SkillType: "cron", Entrypoint: "run.sh"}, false},
		{"missing entrypoint", Manifest{Name: "a", SkillType: TypeDaemon}, false},
		{"absolute entrypoint", Manifest{Name: "a", SkillType: TypeDaemon, Entrypoint: "/bin/sh"}, false},
		{"unnamed credential", Manifest{Name: "a", SkillType: TypeDaemon, Entrypoint: "r.sh",
			Credentials: []CredentialSpec{{Label: "x"}}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.m.Validate()
			if tc.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestInterpreterFor(t *testing.T) {
	cases := map[string]string{
		"main.py":  "python3",
		"index.js": "node",
		"job.rb":   "ruby",
		"run.sh":   "sh",
		"binary":   "sh",
	}
	for entry, want := range cases {
		argv := interpreterFor(entry)
		if argv[0] != want || argv[1] != entry {
			t.Errorf("interpreterFor(%s) = %v, want [%s %s]", entry, argv, want, entry)
		}
	}
}
