package main

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/clawinfra/clawguard/internal/config"
)

// execOracle bridges the agent loop to an external completion command. The
// prompt goes to stdin, the system prompt rides in ORACLE_SYSTEM_PROMPT, and
// stdout is the reply. Any backend with a CLI can sit behind it.
type execOracle struct {
	command string
	args    []string
	timeout time.Duration
}

func newExecOracle(cfg config.OracleConfig, timeout time.Duration) *execOracle {
	return &execOracle{
		command: cfg.Command,
		args:    cfg.Args,
		timeout: timeout,
	}
}

func (o *execOracle) Complete(ctx context.Context, system, prompt string) (string, error) {
	if o.command == "" {
		return "", fmt.Errorf("oracle: no command configured (set [oracle] command)")
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, o.command, o.args...)
	cmd.Stdin = strings.NewReader(prompt)
	cmd.Env = append(cmd.Environ(), "ORACLE_SYSTEM_PROMPT="+system)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("oracle: command timed out after %s", o.timeout)
		}
		return "", fmt.Errorf("oracle: %s: %w (stderr: %s)", o.command, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
