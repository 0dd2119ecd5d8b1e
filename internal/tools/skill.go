package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

type skillTool struct{ tc *Context }

func (t *skillTool) Name() string { return "skill" }
func (t *skillTool) Description() string {
	return "Manage skills: list, status, start, stop, restart, trigger"
}

func (t *skillTool) ParametersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type": "string",
				"enum": []string{"list", "status", "start", "stop", "restart", "trigger"},
			},
			"name": map[string]any{"type": "string", "description": "skill name (not needed for list)"},
		},
		"required": []string{"action"},
	}
}

func (t *skillTool) Execute(_ context.Context, params map[string]any) Output {
	action, err := stringParam(params, "action")
	if err != nil {
		return Errorf("%v", err)
	}

	if action == "list" {
		states := t.tc.Supervisor.List()
		data, err := json.MarshalIndent(states, "", "  ")
		if err != nil {
			return Errorf("encode skill list: %v", err)
		}
		return Ok(string(data))
	}

	name, err := stringParam(params, "name")
	if err != nil {
		return Errorf("%v", err)
	}

	switch action {
	case "status":
		st, err := t.tc.Supervisor.Get(name)
		if err != nil {
			return Errorf("%v", err)
		}
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return Errorf("encode status: %v", err)
		}
		return Ok(string(data))
	case "start":
		if err := t.tc.Supervisor.Start(name); err != nil {
			return Errorf("%v", err)
		}
		return Ok(fmt.Sprintf("skill %s started", name))
	case "stop":
		if err := t.tc.Supervisor.Stop(name); err != nil {
			return Errorf("%v", err)
		}
		return Ok(fmt.Sprintf("skill %s stopped", name))
	case "restart":
		if err := t.tc.Supervisor.Restart(name); err != nil {
			return Errorf("%v", err)
		}
		return Ok(fmt.Sprintf("skill %s restarted", name))
	case "trigger":
		if err := t.tc.Supervisor.Trigger(name); err != nil {
			return Errorf("%v", err)
		}
		return Ok(fmt.Sprintf("skill %s triggered", name))
	default:
		return Errorf("unknown action %q", action)
	}
}
