package tools

import (
	"context"
	"fmt"
	"strings"
)

// All file tools resolve through the sandbox; a path that escapes the root
// comes back as a failed Output before any I/O happens.

type readFileTool struct{ tc *Context }

func (t *readFileTool) Name() string        { return "read_file" }
func (t *readFileTool) Description() string { return "Read a file from the workspace" }

func (t *readFileTool) ParametersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "workspace-relative path"},
		},
		"required": []string{"path"},
	}
}

func (t *readFileTool) Execute(_ context.Context, params map[string]any) Output {
	path, err := stringParam(params, "path")
	if err != nil {
		return Errorf("%v", err)
	}
	data, err := t.tc.Sandbox.ReadFile(path)
	if err != nil {
		return Errorf("read %s: %v", path, err)
	}
	return Ok(string(data))
}

type writeFileTool struct{ tc *Context }

func (t *writeFileTool) Name() string        { return "write_file" }
func (t *writeFileTool) Description() string { return "Write (or overwrite) a file in the workspace" }

func (t *writeFileTool) ParametersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string", "description": "workspace-relative path"},
			"content": map[string]any{"type": "string", "description": "file content"},
		},
		"required": []string{"path", "content"},
	}
}

func (t *writeFileTool) Execute(_ context.Context, params map[string]any) Output {
	path, err := stringParam(params, "path")
	if err != nil {
		return Errorf("%v", err)
	}
	content, ok := params["content"].(string)
	if !ok {
		return Errorf("parameter %q must be a string", "content")
	}
	if err := t.tc.Sandbox.WriteFile(path, []byte(content)); err != nil {
		return Errorf("write %s: %v", path, err)
	}
	return Ok(fmt.Sprintf("wrote %d bytes to %s", len(content), path))
}

type editFileTool struct{ tc *Context }

func (t *editFileTool) Name() string { return "edit_file" }
func (t *editFileTool) Description() string {
	return "Replace an exact text fragment in a workspace file"
}

func (t *editFileTool) ParametersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string"},
			"search":  map[string]any{"type": "string", "description": "exact text to replace"},
			"replace": map[string]any{"type": "string", "description": "replacement text"},
		},
		"required": []string{"path", "search", "replace"},
	}
}

func (t *editFileTool) Execute(_ context.Context, params map[string]any) Output {
	path, err := stringParam(params, "path")
	if err != nil {
		return Errorf("%v", err)
	}
	search, err := stringParam(params, "search")
	if err != nil {
		return Errorf("%v", err)
	}
	replace, ok := params["replace"].(string)
	if !ok {
		return Errorf("parameter %q must be a string", "replace")
	}

	data, err := t.tc.Sandbox.ReadFile(path)
	if err != nil {
		return Errorf("read %s: %v", path, err)
	}
	content := string(data)
	n := strings.Count(content, search)
	if n == 0 {
		return Errorf("search text not found in %s", path)
	}
	if n > 1 {
		return Errorf("search text appears %d times in %s, must be unique", n, path)
	}
	if err := t.tc.Sandbox.WriteFile(path, []byte(strings.Replace(content, search, replace, 1))); err != nil {
		return Errorf("write %s: %v", path, err)
	}
	return Ok(fmt.Sprintf("edited %s", path))
}

type deleteFileTool struct{ tc *Context }

func (t *deleteFileTool) Name() string { return "delete_file" }
func (t *deleteFileTool) Description() string {
	return "Move a workspace file to the trash (restorable)"
}

func (t *deleteFileTool) ParametersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "workspace-relative path"},
		},
		"required": []string{"path"},
	}
}

func (t *deleteFileTool) Execute(_ context.Context, params map[string]any) Output {
	path, err := stringParam(params, "path")
	if err != nil {
		return Errorf("%v", err)
	}
	abs, err := t.tc.Sandbox.Resolve(path)
	if err != nil {
		return Errorf("delete %s: %v", path, err)
	}
	entry, err := t.tc.Trash.Put(abs, path)
	if err != nil {
		return Errorf("delete %s: %v", path, err)
	}
	return Output{
		Success:  true,
		Output:   fmt.Sprintf("moved %s to trash", path),
		Metadata: map[string]any{"trash_id": entry.ID},
	}
}

type listFilesTool struct{ tc *Context }

func (t *listFilesTool) Name() string        { return "list_files" }
func (t *listFilesTool) Description() string { return "List a workspace directory" }

func (t *listFilesTool) ParametersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "workspace-relative directory, empty for root"},
		},
	}
}

func (t *listFilesTool) Execute(_ context.Context, params map[string]any) Output {
	path, _ := params["path"].(string)
	entries, err := t.tc.Sandbox.ListDir(path)
	if err != nil {
		return Errorf("list %s: %v", path, err)
	}
	var b strings.Builder
	for _, e := range entries {
		if e.IsDir() {
			fmt.Fprintf(&b, "%s/\n", e.Name())
		} else {
			fmt.Fprintf(&b, "%s\n", e.Name())
		}
	}
	if b.Len() == 0 {
		return Ok("(empty)")
	}
	return Ok(strings.TrimRight(b.String(), "\n"))
}
