package chattype

import (
	"encoding/json"
	"time"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Content block types
const (
	BlockTypeText = "text"
)

// ContentBlock is a typed unit of message content. Only text blocks exist
// today; the type field is kept so richer blocks can be added without a
// document migration.
type ContentBlock struct {
	Type         string        `json:"type"`
	Text         string        `json:"text,omitempty"`
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// CacheControl is the provider-specific prompt-caching annotation attached to
// content blocks for Claude-family models.
type CacheControl struct {
	Type string `json:"type"`
}

// NewTextBlock creates a text content block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeText, Text: text}
}

// Content is an ordered list of content blocks. Persisted documents store
// plain-text messages as bare JSON strings, so unmarshaling accepts either a
// string or a block array.
type Content []ContentBlock

// UnmarshalJSON accepts a bare string or an array of content blocks.
func (c *Content) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Content{NewTextBlock(s)}
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return err
	}
	*c = Content(blocks)
	return nil
}

// MarshalJSON writes a bare string when the content is a single plain text
// block, matching the document format older clients produced.
func (c Content) MarshalJSON() ([]byte, error) {
	if len(c) == 1 && c[0].Type == BlockTypeText && c[0].CacheControl == nil {
		return json.Marshal(c[0].Text)
	}
	return json.Marshal([]ContentBlock(c))
}

// Text concatenates the text of all text-typed blocks.
func (c Content) Text() string {
	var out string
	for _, b := range c {
		if b.Type == BlockTypeText {
			out += b.Text
		}
	}
	return out
}

// Clone returns a deep copy of the content.
func (c Content) Clone() Content {
	if c == nil {
		return nil
	}
	out := make(Content, len(c))
	for i, b := range c {
		out[i] = b
		if b.CacheControl != nil {
			cc := *b.CacheControl
			out[i].CacheControl = &cc
		}
	}
	return out
}

// Message is one node of a chat's message forest.
//
// Tool, Server and Arguments are set together or not at all; an assistant
// message carrying them is a pending or historical tool invocation. A user
// message with Server set is a synthetic tool-result turn, not a human turn.
type Message struct {
	ID               string         `json:"id,omitempty"`
	ParentID         string         `json:"parent_id,omitempty"`
	Role             string         `json:"role"`
	Content          Content        `json:"content"`
	Timestamp        string         `json:"timestamp"`
	UnixTimestamp    int64          `json:"unix_timestamp"`
	Model            string         `json:"model,omitempty"`
	Provider         string         `json:"provider,omitempty"`
	ReasoningContent string         `json:"reasoning_content,omitempty"`
	Tool             string         `json:"tool,omitempty"`
	Server           string         `json:"server,omitempty"`
	Arguments        map[string]any `json:"arguments,omitempty"`
	Links            []string       `json:"links,omitempty"`
}

// Text returns the concatenated text content of the message.
func (m *Message) Text() string {
	return m.Content.Text()
}

// IsToolResult reports whether this is a synthetic tool-result turn.
func (m *Message) IsToolResult() bool {
	return m.Role == RoleUser && m.Server != ""
}

// NewUserMessage creates a user message stamped with the current time.
func NewUserMessage(text string) Message {
	now := time.Now()
	return Message{
		ID:            newMessageID(),
		Role:          RoleUser,
		Content:       Content{NewTextBlock(text)},
		Timestamp:     now.UTC().Format(time.RFC3339),
		UnixTimestamp: now.Unix(),
	}
}

// NewAssistantMessage creates an assistant message stamped with the current time.
func NewAssistantMessage(text, model, provider string) Message {
	now := time.Now()
	return Message{
		ID:            newMessageID(),
		Role:          RoleAssistant,
		Content:       Content{NewTextBlock(text)},
		Timestamp:     now.UTC().Format(time.RFC3339),
		UnixTimestamp: now.Unix(),
		Model:         model,
		Provider:      provider,
	}
}

// NewToolResultMessage wraps a tool execution result as a synthetic user
// turn. Server marks it as a tool result rather than human input.
func NewToolResultMessage(server, text string) Message {
	msg := NewUserMessage(text)
	msg.Server = server
	return msg
}

// Chat is one persisted conversation document. Messages form a forest via
// ParentID; a chat with no messages is valid (newly created, unsaved).
type Chat struct {
	ID                string    `json:"id,omitempty"`
	Messages          []Message `json:"messages"`
	CreatedAt         string    `json:"created_at,omitempty"`
	UpdatedAt         string    `json:"updated_at,omitempty"`
	SelectedMessageID string    `json:"selected_message_id,omitempty"`
	OriginChatID      string    `json:"origin_chat_id,omitempty"`
	OriginMessageID   string    `json:"origin_message_id,omitempty"`
}

// Clone returns a deep copy of the chat suitable for speculative mutation.
func (c *Chat) Clone() *Chat {
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		out.Messages[i] = m
		out.Messages[i].Content = m.Content.Clone()
		if m.Arguments != nil {
			args := make(map[string]any, len(m.Arguments))
			for k, v := range m.Arguments {
				args[k] = v
			}
			out.Messages[i].Arguments = args
		}
	}
	return &out
}

// TruncateAfter returns a copy containing only messages with a unix
// timestamp at or before cutoff. The receiver is not modified.
func (c *Chat) TruncateAfter(cutoff int64) *Chat {
	out := c.Clone()
	kept := out.Messages[:0]
	for _, m := range out.Messages {
		if m.UnixTimestamp <= cutoff {
			kept = append(kept, m)
		}
	}
	out.Messages = kept
	return out
}
