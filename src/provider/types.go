package provider

import (
	"strings"

	"github.com/luohy15/y-gui-sub000/src/chattype"
)

// Fragment is one incremental piece of a streamed model reply.
type Fragment struct {
	Content          string
	ReasoningContent string
	Model            string
	Provider         string
}

// wireMessage is the transport form of a message. Content is always a block
// array on the wire, even for plain-text messages.
type wireMessage struct {
	Role    string                  `json:"role"`
	Content []chattype.ContentBlock `json:"content"`
}

// chatRequest is the streaming chat-completions request body.
type chatRequest struct {
	Model           string         `json:"model"`
	Messages        []wireMessage  `json:"messages"`
	Stream          bool           `json:"stream"`
	MaxTokens       int            `json:"max_tokens,omitempty"`
	ReasoningEffort string         `json:"reasoning_effort,omitempty"`
	Provider        map[string]any `json:"provider,omitempty"`
}

// streamChunk is one decoded SSE payload.
type streamChunk struct {
	Model    string `json:"model"`
	Provider string `json:"provider"`
	Choices  []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
	} `json:"choices"`
}

// isClaudeModel reports whether the model belongs to the Claude family,
// which is the only family that understands cache_control annotations.
func isClaudeModel(model string) bool {
	return strings.HasPrefix(model, "anthropic/") || strings.HasPrefix(model, "claude")
}

// prepareMessages builds the wire message list: an optional leading system
// message, then the conversation with string content normalized into block
// lists. Caller-owned content is deep-copied, never annotated in place. For
// Claude-family models the system message and the last user message's final
// text block get an ephemeral cache_control marker.
func prepareMessages(messages []chattype.Message, systemPrompt, model string) []wireMessage {
	claude := isClaudeModel(model)

	wire := make([]wireMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		system := []chattype.ContentBlock{chattype.NewTextBlock(systemPrompt)}
		if claude {
			system[0].CacheControl = &chattype.CacheControl{Type: "ephemeral"}
		}
		wire = append(wire, wireMessage{Role: chattype.RoleSystem, Content: system})
	}

	lastUser := -1
	for _, msg := range messages {
		blocks := msg.Content.Clone()
		if len(blocks) == 0 {
			blocks = chattype.Content{chattype.NewTextBlock("")}
		}
		wire = append(wire, wireMessage{Role: msg.Role, Content: blocks})
		if msg.Role == chattype.RoleUser {
			lastUser = len(wire) - 1
		}
	}

	if claude && lastUser >= 0 {
		blocks := wire[lastUser].Content
		for i := len(blocks) - 1; i >= 0; i-- {
			if blocks[i].Type == chattype.BlockTypeText {
				blocks[i].CacheControl = &chattype.CacheControl{Type: "ephemeral"}
				break
			}
		}
	}

	return wire
}
