package agent

import (
	"encoding/json"
	"strings"
)

// ToolCall is one parsed tool invocation from an oracle reply.
type ToolCall struct {
	Tool      string         `json:"tool"`
	Params    map[string]any `json:"params"`
	Reasoning string         `json:"reasoning,omitempty"`
}

// ParsedReply is an oracle reply split into prose and ordered tool calls.
// Malformed blocks are collected, never fatal: one bad block must not take
// down the calls around it.
type ParsedReply struct {
	Text   string
	Calls  []ToolCall
	Errors []string
}

const (
	fenceOpen  = "```tool_call"
	fenceClose = "```"
)

// ParseReply extracts ```tool_call fenced JSON blocks from an oracle reply.
// Fences count only at the start of a line; everything outside the blocks is
// returned as prose with blank runs collapsed.
func ParseReply(reply string) ParsedReply {
	var (
		out       ParsedReply
		textLines []string
		blockBody []string
		inBlock   bool
	)

	for _, line := range strings.Split(reply, "\n") {
		trimmed := strings.TrimRight(line, "\r")
		switch {
		case !inBlock && strings.TrimSpace(trimmed) == fenceOpen:
			inBlock = true
			blockBody = blockBody[:0]
		case inBlock && strings.TrimSpace(trimmed) == fenceClose:
			inBlock = false
			out.addBlock(strings.Join(blockBody, "\n"))
		case inBlock:
			blockBody = append(blockBody, trimmed)
		default:
			textLines = append(textLines, trimmed)
		}
	}
	// An unterminated block is malformed, not prose.
	if inBlock {
		out.Errors = append(out.Errors, "unterminated tool_call block")
	}

	out.Text = collapseBlankLines(textLines)
	return out
}

func (p *ParsedReply) addBlock(body string) {
	var call ToolCall
	if err := json.Unmarshal([]byte(body), &call); err != nil {
		p.Errors = append(p.Errors, "invalid tool_call JSON: "+err.Error())
		return
	}
	if call.Tool == "" {
		p.Errors = append(p.Errors, "tool_call missing tool name")
		return
	}
	if call.Params == nil {
		call.Params = map[string]any{}
	}
	p.Calls = append(p.Calls, call)
}

func collapseBlankLines(lines []string) string {
	var out []string
	blank := true
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, l)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
