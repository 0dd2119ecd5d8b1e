// Package tools defines the tool surface the oracle can call. Tools do the
// work and nothing else: rate limiting, capability checks, and approval all
// happen in the agent loop before Execute is reached.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/clawinfra/clawguard/internal/security"
	"github.com/clawinfra/clawguard/internal/skills"
	"github.com/clawinfra/clawguard/internal/trash"
)

// Output is the result of one tool execution. Bad parameters come back as a
// failed Output, not a Go error; the loop folds either into the oracle
// context.
type Output struct {
	Success  bool           `json:"success"`
	Output   string         `json:"output"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Ok builds a successful output.
func Ok(output string) Output {
	return Output{Success: true, Output: output}
}

// Errorf builds a failed output.
func Errorf(format string, args ...any) Output {
	return Output{Success: false, Output: fmt.Sprintf(format, args...)}
}

// Tool is one callable capability.
type Tool interface {
	Name() string
	Description() string
	ParametersSchema() map[string]any
	Execute(ctx context.Context, params map[string]any) Output
}

// Context carries the shared backends tools operate on.
type Context struct {
	Sandbox     *security.SandboxedFs
	Trash       *trash.Trash
	Supervisor  *skills.Supervisor
	ExecTimeout time.Duration
	Logger      *slog.Logger
}

// Registry holds the available tools by name.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry builds a registry with the standard tool set.
func NewRegistry(tc *Context) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	r.Register(&readFileTool{tc})
	r.Register(&writeFileTool{tc})
	r.Register(&editFileTool{tc})
	r.Register(&deleteFileTool{tc})
	r.Register(&listFilesTool{tc})
	r.Register(&execTool{tc})
	r.Register(&skillTool{tc})
	return r
}

// Register adds a tool, replacing any previous one with the same name.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Describe renders the tool list for the oracle system prompt.
func (r *Registry) Describe() string {
	var b strings.Builder
	for _, name := range r.Names() {
		t := r.tools[name]
		fmt.Fprintf(&b, "- %s: %s\n", t.Name(), t.Description())
	}
	return b.String()
}

// stringParam extracts a required string parameter.
func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("parameter %q must be a non-empty string", key)
	}
	return s, nil
}
