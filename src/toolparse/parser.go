// Package toolparse detects and extracts tool invocations embedded as
// block-tagged markup in model output.
package toolparse

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// TagKind identifies a recognized outer tag family.
type TagKind int

const (
	// TagUseMCPTool is a generic tool invocation block.
	TagUseMCPTool TagKind = iota
	// TagAccessMCPResource is a resource-access invocation block.
	TagAccessMCPResource
)

var tagNames = [...]string{
	TagUseMCPTool:        "use_mcp_tool",
	TagAccessMCPResource: "access_mcp_resource",
}

// Name returns the markup tag name for the kind.
func (k TagKind) Name() string {
	return tagNames[k]
}

func (k TagKind) open() string  { return "<" + k.Name() + ">" }
func (k TagKind) close() string { return "</" + k.Name() + ">" }

// ToolCall is an extracted tool invocation.
type ToolCall struct {
	Server    string
	Tool      string
	Arguments map[string]any
}

// ContainsToolUse reports whether text contains a complete tool block: both
// the open and close markers of a recognized tag family, anywhere in the
// text. Surrounding prose does not matter.
func ContainsToolUse(text string) bool {
	for kind := range tagNames {
		k := TagKind(kind)
		if strings.Contains(text, k.open()) && strings.Contains(text, k.close()) {
			return true
		}
	}
	return false
}

// SplitContent splits text into its prose portion and the earliest complete
// tool block. The prose is the text before and after the block, concatenated
// and trimmed. When no recognized block is present the trimmed input is
// returned with an empty block.
func SplitContent(text string) (prose, block string) {
	kind, start := earliestTag(text)
	if start < 0 {
		return strings.TrimSpace(text), ""
	}
	closeTag := kind.close()
	end := strings.Index(text[start:], closeTag)
	if end < 0 {
		return strings.TrimSpace(text), ""
	}
	end += start + len(closeTag)

	before := strings.TrimSpace(text[:start])
	after := strings.TrimSpace(text[end:])
	switch {
	case before == "":
		prose = after
	case after == "":
		prose = before
	default:
		prose = before + "\n" + after
	}
	return prose, text[start:end]
}

// earliestTag finds the recognized tag family whose open marker occurs first
// in text, considering only families whose close marker also appears.
func earliestTag(text string) (TagKind, int) {
	best := TagKind(0)
	bestIdx := -1
	for kind := range tagNames {
		k := TagKind(kind)
		idx := strings.Index(text, k.open())
		if idx < 0 || !strings.Contains(text[idx:], k.close()) {
			continue
		}
		if bestIdx < 0 || idx < bestIdx {
			best, bestIdx = k, idx
		}
	}
	return best, bestIdx
}

// ExtractToolCall pulls the server name, tool name and JSON arguments out of
// a tool block. It returns nil when any of the three sub-tags is missing or
// the arguments body is not valid JSON; malformed blocks are the model's
// fault and callers treat nil as "ignore".
func ExtractToolCall(block string) *ToolCall {
	server, ok := innerTag(block, "server_name")
	if !ok {
		return nil
	}
	tool, ok := innerTag(block, "tool_name")
	if !ok {
		return nil
	}
	rawArgs, ok := innerTag(block, "arguments")
	if !ok {
		return nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		slog.Warn("tool call has malformed arguments JSON", "tool", tool, "server", server, "error", err)
		return nil
	}
	// JSON null decodes into a nil map without error; a call must always
	// carry an arguments object, even an empty one.
	if args == nil {
		slog.Warn("tool call arguments are not a JSON object", "tool", tool, "server", server)
		return nil
	}

	return &ToolCall{Server: server, Tool: tool, Arguments: args}
}

// innerTag extracts the trimmed body of the first <name>...</name> pair.
func innerTag(text, name string) (string, bool) {
	open := "<" + name + ">"
	closeTag := "</" + name + ">"

	start := strings.Index(text, open)
	if start < 0 {
		return "", false
	}
	start += len(open)
	end := strings.Index(text[start:], closeTag)
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(text[start : start+end]), true
}
