package chat

import "strings"

// personaTemplate is the fixed persona and tool-use instruction block. The
// tag format here must stay in sync with what toolparse recognizes.
const personaTemplate = `You are a helpful assistant. Answer the user's questions directly and concisely.

TOOL USE

You have access to tools exposed by MCP (Model Context Protocol) servers. Use at most one tool per message; the tool's result arrives in the next turn, and you decide then whether another call is needed.

To invoke a tool, end your message with a block in this exact format:

<use_mcp_tool>
<server_name>server name here</server_name>
<tool_name>tool name here</tool_name>
<arguments>
{
  "param": "value"
}
</arguments>
</use_mcp_tool>

The arguments body must be valid JSON matching the tool's input schema. Only call tools listed below; do not invent server or tool names. When no tool is needed, just answer in plain text.`

// BuildSystemPrompt concatenates the persona template with the cached tools
// catalog fragment. An empty catalog yields the bare template.
func BuildSystemPrompt(toolsFragment string) string {
	toolsFragment = strings.TrimSpace(toolsFragment)
	if toolsFragment == "" {
		return personaTemplate
	}
	return personaTemplate + "\n\n# Connected MCP Servers\n\n" + toolsFragment
}
