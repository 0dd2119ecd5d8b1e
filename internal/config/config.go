package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all clawguard configuration, loaded from a single TOML file.
type Config struct {
	// AgentName identifies this agent in logs, the API, and skill env vars.
	AgentName string `toml:"agent_name"`

	// DataDir is the sandbox root. All file tools, the trash, the credential
	// store and the skills directory live under it.
	DataDir string `toml:"data_dir"`

	LogLevel string `toml:"log_level"`

	// TickIntervalSecs is how often the maintenance tick runs (expiry sweep,
	// approved-action drain, skill reconciliation).
	TickIntervalSecs int `toml:"tick_interval_secs"`

	// MaxToolTurns bounds the tool-call loop per inbound message.
	MaxToolTurns int `toml:"max_tool_turns"`

	// ApprovalExpirySecs is the TTL for pending actions.
	ApprovalExpirySecs int `toml:"approval_expiry_secs"`

	// AutoApproveTools dispatch immediately without entering the approval
	// queue. They still pass the rate limiter and capability checks.
	AutoApproveTools []string `toml:"auto_approve_tools"`

	// RequireConfirmation lists tools that need a time-boxed secondary
	// confirmation even when auto-approved.
	RequireConfirmation []string `toml:"require_confirmation"`

	// ConfirmationTTLSecs is how long a confirmation challenge stays valid.
	ConfirmationTTLSecs int `toml:"confirmation_ttl_secs"`

	Oracle    OracleConfig    `toml:"oracle"`
	Security  SecurityConfig  `toml:"security"`
	Exec      ExecConfig      `toml:"exec"`
	Skills    SkillsConfig    `toml:"skills"`
	API       APIConfig       `toml:"api"`
	Notify    NotifyConfig    `toml:"notify"`
	Scheduler SchedulerConfig `toml:"scheduler"`
}

// OracleConfig names the external completion command. The daemon pipes the
// prompt to its stdin (with the system prompt in ORACLE_SYSTEM_PROMPT) and
// reads the reply from stdout, so any backend with a CLI can drive the loop.
type OracleConfig struct {
	Command     string   `toml:"command"`
	Args        []string `toml:"args"`
	TimeoutSecs int      `toml:"timeout_secs"`
}

// SecurityConfig controls the rate limiter and capability policy.
type SecurityConfig struct {
	RateLimitPerMinute int `toml:"rate_limit_per_minute"`
	RateLimitPerHour   int `toml:"rate_limit_per_hour"`

	// BlockedTools are rejected outright, before any other gate.
	BlockedTools []string `toml:"blocked_tools"`

	// ToolCapabilities restricts a tool to a set of inferred operations,
	// e.g. exec = ["ls", "cat"] or write_file = ["write"]. Tools without an
	// entry are unrestricted beyond the blocklist.
	ToolCapabilities map[string][]string `toml:"tool_capabilities"`
}

// ExecConfig controls the exec tool.
type ExecConfig struct {
	TimeoutSecs int `toml:"timeout_secs"`
}

// SkillsConfig controls skill supervision.
type SkillsConfig struct {
	// Dir overrides the default <data_dir>/skills location.
	Dir string `toml:"dir"`

	// CrashLoopThreshold is how many crashes a daemon skill may accumulate
	// before the supervisor stops restarting it.
	CrashLoopThreshold int `toml:"crash_loop_threshold"`

	// GraceSecs is the SIGTERM-to-SIGKILL grace period on teardown.
	GraceSecs int `toml:"grace_secs"`

	// PlatformEnv is injected into every skill process.
	PlatformEnv map[string]string `toml:"platform_env"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Bind string `toml:"bind"`

	// JWTSecret signs and verifies API bearer tokens. Empty disables auth
	// (local development only).
	JWTSecret string `toml:"jwt_secret"`
}

// NotifyConfig controls the optional MQTT event publisher. An empty broker
// URL disables it.
type NotifyConfig struct {
	MQTTBroker   string `toml:"mqtt_broker"`
	MQTTTopic    string `toml:"mqtt_topic"`
	MQTTClientID string `toml:"mqtt_client_id"`
	MQTTUsername string `toml:"mqtt_username"`
	MQTTPassword string `toml:"mqtt_password"`
}

// SchedulerConfig holds cron jobs.
type SchedulerConfig struct {
	Jobs []JobConfig `toml:"jobs"`
}

// JobConfig is one scheduled job: either a prompt injected into the agent or
// a oneshot skill trigger.
type JobConfig struct {
	Name    string `toml:"name"`
	Expr    string `toml:"expr"`
	Kind    string `toml:"kind"` // "prompt" or "skill"
	Prompt  string `toml:"prompt"`
	Skill   string `toml:"skill"`
	Enabled bool   `toml:"enabled"`
}

// Default returns a config with every knob at its default value.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		AgentName:           "clawguard",
		DataDir:             filepath.Join(home, ".clawguard"),
		LogLevel:            "info",
		TickIntervalSecs:    120,
		MaxToolTurns:        5,
		ApprovalExpirySecs:  3600,
		AutoApproveTools:    []string{"read_file", "list_files"},
		ConfirmationTTLSecs: 300,
		Oracle: OracleConfig{
			TimeoutSecs: 120,
		},
		Security: SecurityConfig{
			RateLimitPerMinute: 30,
			RateLimitPerHour:   300,
		},
		Exec: ExecConfig{
			TimeoutSecs: 30,
		},
		Skills: SkillsConfig{
			CrashLoopThreshold: 5,
			GraceSecs:          2,
		},
		API: APIConfig{
			Bind: "127.0.0.1:3030",
		},
	}
}

// Load reads a TOML config file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configs that cannot produce a working agent.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.MaxToolTurns < 1 {
		return fmt.Errorf("max_tool_turns must be at least 1")
	}
	if c.TickIntervalSecs < 1 {
		return fmt.Errorf("tick_interval_secs must be at least 1")
	}
	if c.ApprovalExpirySecs < 1 {
		return fmt.Errorf("approval_expiry_secs must be at least 1")
	}
	for _, j := range c.Scheduler.Jobs {
		if err := j.Validate(); err != nil {
			return fmt.Errorf("scheduler job %q: %w", j.Name, err)
		}
	}
	return nil
}

// Validate checks one scheduler job definition.
func (j *JobConfig) Validate() error {
	if j.Name == "" {
		return fmt.Errorf("name required")
	}
	if j.Expr == "" {
		return fmt.Errorf("cron expression required")
	}
	switch j.Kind {
	case "prompt":
		if j.Prompt == "" {
			return fmt.Errorf("prompt required for prompt job")
		}
	case "skill":
		if j.Skill == "" {
			return fmt.Errorf("skill required for skill job")
		}
	default:
		return fmt.Errorf("unknown job kind %q (use prompt or skill)", j.Kind)
	}
	return nil
}

// TickInterval returns the maintenance tick interval.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSecs) * time.Second
}

// ApprovalExpiry returns the pending-action TTL.
func (c *Config) ApprovalExpiry() time.Duration {
	return time.Duration(c.ApprovalExpirySecs) * time.Second
}

// ConfirmationTTL returns the confirmation-challenge TTL.
func (c *Config) ConfirmationTTL() time.Duration {
	return time.Duration(c.ConfirmationTTLSecs) * time.Second
}

// ExecTimeout returns the exec tool timeout.
func (c *Config) ExecTimeout() time.Duration {
	return time.Duration(c.Exec.TimeoutSecs) * time.Second
}

// SkillsDir returns the configured skills directory, defaulting to
// <data_dir>/skills.
func (c *Config) SkillsDir() string {
	if c.Skills.Dir != "" {
		return c.Skills.Dir
	}
	return filepath.Join(c.DataDir, "skills")
}

// OracleTimeout returns the completion-command timeout.
func (c *Config) OracleTimeout() time.Duration {
	if c.Oracle.TimeoutSecs <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.Oracle.TimeoutSecs) * time.Second
}

// SkillGrace returns the teardown grace period.
func (c *Config) SkillGrace() time.Duration {
	if c.Skills.GraceSecs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Skills.GraceSecs) * time.Second
}

// WriteStarter writes a commented starter config to path. It refuses to
// overwrite an existing file.
func WriteStarter(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, []byte(starterConfig), 0o644)
}

const starterConfig = `# clawguard configuration

agent_name = "clawguard"
# data_dir = "~/.clawguard"
log_level = "info"

tick_interval_secs = 120
max_tool_turns = 5
approval_expiry_secs = 3600

# Tools that run without human approval (still rate-limited and
# capability-checked).
auto_approve_tools = ["read_file", "list_files"]

# Tools that need a second confirmation even when auto-approved.
require_confirmation = []
confirmation_ttl_secs = 300

[oracle]
# The completion backend: prompt on stdin, reply on stdout.
# command = "llm"
# args = ["--no-stream"]
timeout_secs = 120

[security]
rate_limit_per_minute = 30
rate_limit_per_hour = 300
blocked_tools = []

# Restrict a tool to specific operations. For exec, operations are command
# names; for file tools, "read"/"write"/"delete".
# [security.tool_capabilities]
# exec = ["ls", "cat", "grep"]

[exec]
timeout_secs = 30

[skills]
crash_loop_threshold = 5
grace_secs = 2

[api]
bind = "127.0.0.1:3030"
# jwt_secret = ""

[notify]
# mqtt_broker = "tcp://localhost:1883"
# mqtt_topic = "clawguard/events"

# [[scheduler.jobs]]
# name = "morning-brief"
# expr = "0 8 * * *"
# kind = "prompt"
# prompt = "Summarize anything that needs my attention."
# enabled = true
`
