package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.TickIntervalSecs != 120 {
		t.Errorf("expected tick 120, got %d", cfg.TickIntervalSecs)
	}
	if cfg.MaxToolTurns != 5 {
		t.Errorf("expected max_tool_turns 5, got %d", cfg.MaxToolTurns)
	}
	if cfg.ApprovalExpirySecs != 3600 {
		t.Errorf("expected approval_expiry 3600, got %d", cfg.ApprovalExpirySecs)
	}
	if cfg.Security.RateLimitPerMinute != 30 {
		t.Errorf("expected 30/min, got %d", cfg.Security.RateLimitPerMinute)
	}
	if cfg.Security.RateLimitPerHour != 300 {
		t.Errorf("expected 300/hr, got %d", cfg.Security.RateLimitPerHour)
	}
	if cfg.Exec.TimeoutSecs != 30 {
		t.Errorf("expected exec timeout 30, got %d", cfg.Exec.TimeoutSecs)
	}
	if cfg.Skills.CrashLoopThreshold != 5 {
		t.Errorf("expected crash loop threshold 5, got %d", cfg.Skills.CrashLoopThreshold)
	}
	if cfg.ConfirmationTTLSecs != 300 {
		t.Errorf("expected confirmation ttl 300, got %d", cfg.ConfirmationTTLSecs)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clawguard.toml")
	data := `
agent_name = "testbot"
data_dir = "` + dir + `"
max_tool_turns = 3
auto_approve_tools = ["read_file"]

[security]
rate_limit_per_minute = 10
blocked_tools = ["exec"]

[security.tool_capabilities]
write_file = ["write"]

[skills]
grace_secs = 1

[[scheduler.jobs]]
name = "nightly"
expr = "0 2 * * *"
kind = "prompt"
prompt = "run nightly checks"
enabled = true
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.AgentName != "testbot" {
		t.Errorf("expected testbot, got %s", cfg.AgentName)
	}
	if cfg.MaxToolTurns != 3 {
		t.Errorf("expected 3 turns, got %d", cfg.MaxToolTurns)
	}
	// Untouched knobs keep their defaults.
	if cfg.TickIntervalSecs != 120 {
		t.Errorf("expected default tick 120, got %d", cfg.TickIntervalSecs)
	}
	if cfg.Security.RateLimitPerMinute != 10 {
		t.Errorf("expected 10/min, got %d", cfg.Security.RateLimitPerMinute)
	}
	if cfg.Security.RateLimitPerHour != 300 {
		t.Errorf("expected default 300/hr, got %d", cfg.Security.RateLimitPerHour)
	}
	if got := cfg.Security.ToolCapabilities["write_file"]; len(got) != 1 || got[0] != "write" {
		t.Errorf("unexpected capabilities: %v", got)
	}
	if len(cfg.Scheduler.Jobs) != 1 || cfg.Scheduler.Jobs[0].Name != "nightly" {
		t.Errorf("unexpected jobs: %+v", cfg.Scheduler.Jobs)
	}
	if cfg.SkillsDir() != filepath.Join(dir, "skills") {
		t.Errorf("unexpected skills dir: %s", cfg.SkillsDir())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"zero turns", func(c *Config) { c.MaxToolTurns = 0 }},
		{"zero tick", func(c *Config) { c.TickIntervalSecs = 0 }},
		{"bad job kind", func(c *Config) {
			c.Scheduler.Jobs = []JobConfig{{Name: "x", Expr: "* * * * *", Kind: "webhook"}}
		}},
		{"prompt job without prompt", func(c *Config) {
			c.Scheduler.Jobs = []JobConfig{{Name: "x", Expr: "* * * * *", Kind: "prompt"}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestWriteStarter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clawguard.toml")
	if err := WriteStarter(path); err != nil {
		t.Fatal(err)
	}
	// Starter must itself be loadable.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("starter config does not load: %v", err)
	}
	if cfg.MaxToolTurns != 5 {
		t.Errorf("expected 5 turns, got %d", cfg.MaxToolTurns)
	}
	// Refuses overwrite.
	if err := WriteStarter(path); err == nil || !strings.Contains(err.Error(), "exists") {
		t.Errorf("expected exists error, got %v", err)
	}
}
