package tools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

type execTool struct{ tc *Context }

func (t *execTool) Name() string { return "exec" }
func (t *execTool) Description() string {
	return "Run a shell command in the workspace (subject to policy and timeout)"
}

func (t *execTool) ParametersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{"type": "string", "description": "shell command line"},
		},
		"required": []string{"command"},
	}
}

func (t *execTool) Execute(ctx context.Context, params map[string]any) Output {
	command, err := stringParam(params, "command")
	if err != nil {
		return Errorf("%v", err)
	}

	timeout := t.tc.ExecTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = t.tc.Sandbox.Root()
	out, err := cmd.CombinedOutput()

	result := strings.TrimRight(string(out), "\n")
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Output{
			Success:  false,
			Output:   fmt.Sprintf("command timed out after %s\n%s", timeout, result),
			Metadata: map[string]any{"timed_out": true},
		}
	}
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return Output{
			Success:  false,
			Output:   fmt.Sprintf("command failed: %v\n%s", err, result),
			Metadata: map[string]any{"exit_code": exitCode},
		}
	}
	return Output{
		Success:  true,
		Output:   result,
		Metadata: map[string]any{"exit_code": 0},
	}
}
