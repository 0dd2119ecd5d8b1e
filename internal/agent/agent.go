// Package agent runs the message loop: oracle replies are parsed for tool
// calls, each call passes the security gates, and anything not auto-approved
// parks in the approval queue until a human resolves it.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/clawinfra/clawguard/internal/approval"
	"github.com/clawinfra/clawguard/internal/audit"
	"github.com/clawinfra/clawguard/internal/config"
	"github.com/clawinfra/clawguard/internal/notify"
	"github.com/clawinfra/clawguard/internal/security"
	"github.com/clawinfra/clawguard/internal/skills"
	"github.com/clawinfra/clawguard/internal/tools"
)

// Oracle produces replies. The daemon is backend-agnostic: anything that
// turns a prompt into text can drive the loop.
type Oracle interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Deps wires the agent to the rest of the daemon.
type Deps struct {
	Config     *config.Config
	Oracle     Oracle
	Registry   *tools.Registry
	Limiter    *security.RateLimiter
	Caps       *security.CapabilityChecker
	Confirmer  *security.Confirmer
	Queue      *approval.Queue
	Audit      *audit.Log
	Supervisor *skills.Supervisor
	Prompts    *skills.PromptLibrary
	Events     *notify.Broadcaster
	Logger     *slog.Logger
}

// Agent is the orchestrator.
type Agent struct {
	cfg         *config.Config
	oracle      Oracle
	registry    *tools.Registry
	limiter     *security.RateLimiter
	caps        *security.CapabilityChecker
	confirmer   *security.Confirmer
	queue       *approval.Queue
	audit       *audit.Log
	supervisor  *skills.Supervisor
	prompts     *skills.PromptLibrary
	events      *notify.Broadcaster
	logger      *slog.Logger
	autoApprove map[string]struct{}

	mu         sync.Mutex
	challenges map[string]string // challenge ID -> pending action ID
}

// New builds an agent from its dependencies.
func New(d Deps) *Agent {
	auto := make(map[string]struct{}, len(d.Config.AutoApproveTools))
	for _, t := range d.Config.AutoApproveTools {
		auto[t] = struct{}{}
	}
	return &Agent{
		cfg:         d.Config,
		oracle:      d.Oracle,
		registry:    d.Registry,
		limiter:     d.Limiter,
		caps:        d.Caps,
		confirmer:   d.Confirmer,
		queue:       d.Queue,
		audit:       d.Audit,
		supervisor:  d.Supervisor,
		prompts:     d.Prompts,
		events:      d.Events,
		logger:      d.Logger.With("component", "agent"),
		autoApprove: auto,
		challenges:  make(map[string]string),
	}
}

// HandleMessage runs the bounded tool-call loop for one inbound message and
// returns the reply. Stale approvals are swept before the loop and skills
// are reconciled after every message.
func (a *Agent) HandleMessage(ctx context.Context, actor, message string) (string, error) {
	defer func() {
		if err := a.supervisor.Reconcile(); err != nil {
			a.logger.Warn("skill reconcile failed", "error", err)
		}
	}()

	a.sweepExpired(ctx)

	convo := message
	if snippets := a.prompts.Match(message); len(snippets) > 0 {
		convo = strings.Join(snippets, "\n\n") + "\n\n" + message
	}
	system := a.systemPrompt()

	for turn := 0; turn < a.cfg.MaxToolTurns; turn++ {
		reply, err := a.oracle.Complete(ctx, system, convo)
		if err != nil {
			return "", fmt.Errorf("agent: oracle: %w", err)
		}

		parsed := ParseReply(reply)
		if len(parsed.Calls) == 0 && len(parsed.Errors) == 0 {
			a.events.Publish(notify.EventAgentReply, map[string]any{"actor": actor, "text": parsed.Text})
			return parsed.Text, nil
		}

		var results []string
		for _, perr := range parsed.Errors {
			results = append(results, "parse error: "+perr)
		}

		allPending := len(parsed.Calls) > 0
		for _, call := range parsed.Calls {
			outcome, pending := a.dispatch(ctx, actor, call)
			results = append(results, fmt.Sprintf("[%s] %s", call.Tool, outcome))
			if !pending {
				allPending = false
			}
		}

		// Every call is parked in the queue: reply now instead of burning
		// turns waiting on a human.
		if allPending && len(parsed.Errors) == 0 {
			note := fmt.Sprintf("%d action(s) queued for approval.", len(parsed.Calls))
			a.events.Publish(notify.EventAgentReply, map[string]any{"actor": actor, "text": note})
			return joinNonEmpty(parsed.Text, note), nil
		}

		convo = convo + "\n\n[assistant]\n" + reply + "\n\n[tool results]\n" + strings.Join(results, "\n")
	}

	const exhausted = "I ran out of tool-call turns before reaching an answer. The results so far are recorded above."
	a.logger.Warn("tool loop exhausted", "actor", actor, "turns", a.cfg.MaxToolTurns)
	return exhausted, nil
}

// dispatch runs one tool call through the gates. The returned pending flag
// is true when the call was parked in the approval queue.
func (a *Agent) dispatch(ctx context.Context, actor string, call ToolCall) (string, bool) {
	if err := a.caps.Check(call.Tool, call.Params); err != nil {
		a.audit.Record(ctx, actor, audit.EventToolDenied, call.Tool, summarize(call), err.Error())
		return "denied: " + err.Error(), false
	}
	if err := a.limiter.AllowCall(actor, call.Tool); err != nil {
		a.audit.Record(ctx, actor, audit.EventRateLimited, call.Tool, summarize(call), err.Error())
		return "denied: " + err.Error(), false
	}

	tool, ok := a.registry.Get(call.Tool)
	if !ok {
		return fmt.Sprintf("unknown tool %q", call.Tool), false
	}

	_, auto := a.autoApprove[call.Tool]

	// Confirmation-gated tools always park, auto-approved or not. The
	// confirmation doubles as the approval.
	if a.confirmer.Required(call.Tool) {
		action, err := a.queue.Propose(ctx, call.Tool, call.Params, call.Reasoning, actor)
		if err != nil {
			return "proposal failed: " + err.Error(), false
		}
		ch := a.confirmer.Issue(call.Tool, summarize(call))
		a.bindChallenge(ch.ID, action.ID)
		a.audit.Record(ctx, actor, audit.EventProposed, call.Tool, summarize(call), "confirmation "+ch.ID)
		a.events.Publish(notify.EventConfirmNeeded, map[string]any{
			"challenge_id": ch.ID, "action_id": action.ID, "tool": call.Tool,
		})
		return fmt.Sprintf("requires confirmation (challenge %s)", ch.ID), true
	}

	if auto {
		out := tool.Execute(ctx, call.Params)
		outcome := "ok"
		if !out.Success {
			outcome = "error"
		}
		a.audit.Record(ctx, actor, audit.EventToolExecuted, call.Tool, summarize(call), outcome)
		if !out.Success {
			return "failed: " + out.Output, false
		}
		return out.Output, false
	}

	action, err := a.queue.Propose(ctx, call.Tool, call.Params, call.Reasoning, actor)
	if err != nil {
		return "proposal failed: " + err.Error(), false
	}
	a.audit.Record(ctx, actor, audit.EventProposed, call.Tool, summarize(call), action.ID)
	a.events.Publish(notify.EventApprovalNeeded, map[string]any{
		"action_id": action.ID, "tool": call.Tool, "actor": actor,
	})
	return fmt.Sprintf("queued for approval (action %s)", action.ID), true
}

// Resolve approves or rejects a pending action on behalf of a reviewer.
func (a *Agent) Resolve(ctx context.Context, reviewer, id string, status approval.Status) error {
	if err := a.queue.Resolve(ctx, id, status); err != nil {
		return err
	}
	event := audit.EventApproved
	if status == approval.StatusRejected {
		event = audit.EventRejected
	}
	a.audit.Record(ctx, reviewer, event, "", id, string(status))
	a.events.Publish(notify.EventApprovalResolved, map[string]any{"action_id": id, "status": string(status)})
	return nil
}

// ConfirmChallenge confirms a challenge and approves its bound action, which
// the next tick's drain will execute.
func (a *Agent) ConfirmChallenge(ctx context.Context, reviewer, challengeID string) error {
	if err := a.confirmer.Confirm(challengeID); err != nil {
		return err
	}
	actionID, ok := a.unbindChallenge(challengeID)
	if !ok {
		return fmt.Errorf("agent: challenge %s has no bound action", challengeID)
	}
	return a.Resolve(ctx, reviewer, actionID, approval.StatusApproved)
}

// Tick is the maintenance pass: expire stale work, drain approved actions,
// reconcile skills. Store errors skip the rest of the tick and are retried
// on the next one.
func (a *Agent) Tick(ctx context.Context) {
	if !a.sweepExpired(ctx) {
		return
	}
	a.confirmer.Sweep()

	a.executeApproved(ctx)

	if err := a.supervisor.Reconcile(); err != nil {
		a.logger.Warn("skill reconcile failed", "error", err)
	}
}

// sweepExpired expires stale pending actions. A false return means the
// store errored; callers skip dependent work until the next pass.
func (a *Agent) sweepExpired(ctx context.Context) bool {
	expired, err := a.queue.Sweep(ctx, a.cfg.ApprovalExpiry())
	if err != nil {
		a.logger.Error("approval sweep failed", "error", err)
		return false
	}
	if expired > 0 {
		a.audit.Record(ctx, "system", audit.EventExpired, "", fmt.Sprintf("%d actions", expired), "")
	}
	return true
}

// executeApproved drains the queue in FIFO order. Every action is re-gated
// through the capability checker before it runs; policy may have tightened
// since the approval.
func (a *Agent) executeApproved(ctx context.Context) {
	actions, err := a.queue.List(ctx, approval.StatusApproved)
	if err != nil {
		a.logger.Error("approved list failed", "error", err)
		return
	}

	var ran []string
	for _, action := range actions {
		result, ok := a.runApproved(ctx, action)
		if ok {
			ran = append(ran, fmt.Sprintf("[%s] %s", action.Tool, result))
		}
	}

	if len(ran) > 0 && a.oracle != nil {
		prompt := "The following previously approved actions have now been executed:\n" +
			strings.Join(ran, "\n") + "\nSummarize the outcome for the user."
		reply, err := a.oracle.Complete(ctx, a.systemPrompt(), prompt)
		if err != nil {
			a.logger.Warn("follow-up oracle call failed", "error", err)
			return
		}
		if parsed := ParseReply(reply); parsed.Text != "" {
			a.events.Publish(notify.EventAgentReply, map[string]any{"actor": "system", "text": parsed.Text})
		}
	}
}

// runApproved executes one approved action. The returned bool reports
// whether it actually ran (successfully or not), as opposed to being skipped
// or denied.
func (a *Agent) runApproved(ctx context.Context, action *approval.PendingAction) (string, bool) {
	if err := a.caps.Check(action.Tool, action.Params); err != nil {
		a.audit.Record(ctx, action.Actor, audit.EventToolDenied, action.Tool, action.ID, err.Error())
		if ferr := a.queue.MarkFailed(ctx, action.ID, "denied at execution: "+err.Error()); ferr != nil {
			a.logger.Error("mark failed", "action", action.ID, "error", ferr)
		}
		return "", false
	}

	tool, ok := a.registry.Get(action.Tool)
	if !ok {
		_ = a.queue.MarkFailed(ctx, action.ID, "unknown tool")
		return "", false
	}

	out := tool.Execute(ctx, action.Params)
	if out.Success {
		if err := a.queue.MarkExecuted(ctx, action.ID, out.Output); err != nil {
			a.logger.Error("mark executed", "action", action.ID, "error", err)
		}
	} else {
		if err := a.queue.MarkFailed(ctx, action.ID, out.Output); err != nil {
			a.logger.Error("mark failed", "action", action.ID, "error", err)
		}
	}
	outcome := "ok"
	if !out.Success {
		outcome = "error"
	}
	a.audit.Record(ctx, action.Actor, audit.EventToolExecuted, action.Tool, action.ID, outcome)
	a.events.Publish(notify.EventActionExecuted, map[string]any{
		"action_id": action.ID, "tool": action.Tool, "success": out.Success,
	})
	return out.Output, true
}

func (a *Agent) bindChallenge(challengeID, actionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.challenges[challengeID] = actionID
}

func (a *Agent) unbindChallenge(challengeID string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	actionID, ok := a.challenges[challengeID]
	if ok {
		delete(a.challenges, challengeID)
	}
	return actionID, ok
}

func (a *Agent) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are " + a.cfg.AgentName + ", an assistant that can use tools.\n")
	b.WriteString("To call a tool, emit a fenced block starting with ```tool_call containing JSON: ")
	b.WriteString(`{"tool": "...", "params": {...}, "reasoning": "..."}` + "\n")
	b.WriteString("Tool calls run in the order written. Some tools need human approval before they run.\n\n")
	b.WriteString("Available tools:\n")
	b.WriteString(a.registry.Describe())
	return b.String()
}

func summarize(call ToolCall) string {
	parts := make([]string, 0, len(call.Params))
	for k, v := range call.Params {
		s := fmt.Sprintf("%v", v)
		if len(s) > 80 {
			s = s[:80] + "..."
		}
		parts = append(parts, k+"="+s)
	}
	return strings.Join(parts, " ")
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}
