package security

import (
	"fmt"
	"strings"
)

// CapabilityChecker enforces the tool policy: a hard blocklist plus optional
// per-tool operation allowlists. It runs before every dispatch, including
// executions that were already approved.
type CapabilityChecker struct {
	blocked      map[string]struct{}
	capabilities map[string][]string
}

// NewCapabilityChecker builds a checker from the config lists.
func NewCapabilityChecker(blockedTools []string, toolCapabilities map[string][]string) *CapabilityChecker {
	blocked := make(map[string]struct{}, len(blockedTools))
	for _, t := range blockedTools {
		blocked[strings.TrimSpace(t)] = struct{}{}
	}
	return &CapabilityChecker{
		blocked:      blocked,
		capabilities: toolCapabilities,
	}
}

// Check validates a tool call against the policy. Tools without a
// capabilities entry are unrestricted beyond the blocklist.
func (c *CapabilityChecker) Check(tool string, params map[string]any) error {
	if _, ok := c.blocked[tool]; ok {
		return fmt.Errorf("%w: tool %q is blocked", ErrCapabilityDenied, tool)
	}

	allowed, ok := c.capabilities[tool]
	if !ok {
		return nil
	}

	op := InferOperation(tool, params)
	if op == "" {
		return nil
	}
	for _, a := range allowed {
		if a == "*" || a == op {
			return nil
		}
	}
	return fmt.Errorf("%w: tool %q may not perform %q", ErrCapabilityDenied, tool, op)
}

// InferOperation maps a tool call to the operation the policy reasons about:
// the command name for exec, read/write/delete for file tools, the action
// parameter for the skill tool. Unknown tools yield "" and pass any
// capabilities entry.
func InferOperation(tool string, params map[string]any) string {
	switch tool {
	case "exec":
		cmd, _ := params["command"].(string)
		return firstToken(cmd)
	case "read_file", "list_files":
		return "read"
	case "write_file", "edit_file":
		return "write"
	case "delete_file":
		return "delete"
	case "skill":
		action, _ := params["action"].(string)
		return action
	default:
		return ""
	}
}

// firstToken returns the command's binary name, stripping any path prefix.
func firstToken(cmd string) string {
	fields := strings.Fields(strings.TrimSpace(cmd))
	if len(fields) == 0 {
		return ""
	}
	bin := fields[0]
	if idx := strings.LastIndex(bin, "/"); idx >= 0 {
		bin = bin[idx+1:]
	}
	return bin
}
