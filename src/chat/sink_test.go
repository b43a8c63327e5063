package chat

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luohy15/y-gui-sub000/src/mcp"
	"github.com/luohy15/y-gui-sub000/src/provider"
)

func TestSSEWriterPayloadShapes(t *testing.T) {
	rec := httptest.NewRecorder()
	sink := NewSSEWriter(rec)

	require.NoError(t, sink.SendChunk("Hi", "", "gpt-test", "openrouter"))
	require.NoError(t, sink.SendStatus(mcp.StatusEvent{Status: "connecting", Message: "Connecting to MCP server 'tavily'...", Server: "tavily"}))
	require.NoError(t, sink.SendError(&provider.Error{Kind: provider.KindRateLimit, Status: 429, Message: "slow down"}))
	require.NoError(t, sink.Done())

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	events := strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n")
	require.Len(t, events, 4)

	assert.Equal(t, `data: {"choices":[{"delta":{"content":"Hi"}}],"model":"gpt-test","provider":"openrouter"}`, events[0])
	assert.Contains(t, events[1], `"type":"mcp_status"`)
	assert.Contains(t, events[1], `"server":"tavily"`)
	assert.Contains(t, events[2], `"type":"error"`)
	assert.Contains(t, events[2], `"kind":"rate_limit"`)
	assert.Equal(t, "data: [DONE]", events[3])
}

func TestBuildSystemPromptWithoutTools(t *testing.T) {
	prompt := BuildSystemPrompt("  \n")
	assert.Equal(t, personaTemplate, prompt)
}
