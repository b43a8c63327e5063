package chattype

import (
	"encoding/json"
	"testing"
)

func TestContentUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Content
	}{
		{
			name: "bare string",
			in:   `"hello"`,
			want: Content{NewTextBlock("hello")},
		},
		{
			name: "block array",
			in:   `[{"type":"text","text":"a"},{"type":"text","text":"b"}]`,
			want: Content{NewTextBlock("a"), NewTextBlock("b")},
		},
		{
			name: "block with cache control",
			in:   `[{"type":"text","text":"x","cache_control":{"type":"ephemeral"}}]`,
			want: Content{{Type: BlockTypeText, Text: "x", CacheControl: &CacheControl{Type: "ephemeral"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Content
			if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Type != tt.want[i].Type || got[i].Text != tt.want[i].Text {
					t.Errorf("block %d = %+v, want %+v", i, got[i], tt.want[i])
				}
				if (got[i].CacheControl == nil) != (tt.want[i].CacheControl == nil) {
					t.Errorf("block %d cache control mismatch", i)
				}
			}
		})
	}
}

func TestContentMarshalCollapsesSingleTextBlock(t *testing.T) {
	data, err := json.Marshal(Content{NewTextBlock("hello")})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"hello"` {
		t.Errorf("got %s, want bare string", data)
	}

	// Multi-block and annotated content stay arrays.
	data, err = json.Marshal(Content{NewTextBlock("a"), NewTextBlock("b")})
	if err != nil {
		t.Fatal(err)
	}
	if string(data)[0] != '[' {
		t.Errorf("multi-block content should marshal as array, got %s", data)
	}
}

func TestMessageText(t *testing.T) {
	m := Message{Content: Content{NewTextBlock("a"), NewTextBlock("b")}}
	if m.Text() != "ab" {
		t.Errorf("Text() = %q", m.Text())
	}
}

func TestNewToolResultMessage(t *testing.T) {
	m := NewToolResultMessage("tavily", "result text")
	if m.Role != RoleUser {
		t.Errorf("Role = %q", m.Role)
	}
	if m.Server != "tavily" {
		t.Errorf("Server = %q", m.Server)
	}
	if !m.IsToolResult() {
		t.Error("expected IsToolResult")
	}
	plain := NewUserMessage("hi")
	if plain.IsToolResult() {
		t.Error("plain user message must not be a tool result")
	}
}

func TestTruncateAfter(t *testing.T) {
	chat := &Chat{Messages: []Message{
		{ID: "a", UnixTimestamp: 100},
		{ID: "b", UnixTimestamp: 200},
		{ID: "c", UnixTimestamp: 300},
	}}

	got := chat.TruncateAfter(200)
	if len(got.Messages) != 2 {
		t.Fatalf("len = %d", len(got.Messages))
	}
	if got.Messages[0].ID != "a" || got.Messages[1].ID != "b" {
		t.Errorf("unexpected messages: %+v", got.Messages)
	}
	if len(chat.Messages) != 3 {
		t.Error("original chat must be untouched")
	}
}

func TestChatCloneIsDeep(t *testing.T) {
	chat := &Chat{Messages: []Message{{
		Content:   Content{NewTextBlock("x")},
		Arguments: map[string]any{"k": "v"},
	}}}

	clone := chat.Clone()
	clone.Messages[0].Content[0].Text = "changed"
	clone.Messages[0].Arguments["k"] = "changed"

	if chat.Messages[0].Content[0].Text != "x" {
		t.Error("content not deep-copied")
	}
	if chat.Messages[0].Arguments["k"] != "v" {
		t.Error("arguments not deep-copied")
	}
}

func TestIntegrationMatchesTool(t *testing.T) {
	tests := []struct {
		integration string
		tool        string
		want        bool
	}{
		{"github", "github_create_issue", true},
		{"github", "gitlab_create_issue", false},
		{"cal", "calendar_create", true}, // literal prefix semantics
		{"", "anything", false},
	}
	for _, tt := range tests {
		i := Integration{Name: tt.integration}
		if got := i.MatchesTool(tt.tool); got != tt.want {
			t.Errorf("MatchesTool(%q, %q) = %v, want %v", tt.integration, tt.tool, got, tt.want)
		}
	}
}

func TestIntegrationToken(t *testing.T) {
	oauth := Integration{AuthType: AuthTypeOAuth, Credentials: IntegrationCredentials{AccessToken: "at", APIKey: "ak"}}
	if oauth.Token() != "at" {
		t.Errorf("oauth token = %q", oauth.Token())
	}
	apiKey := Integration{AuthType: AuthTypeAPIKey, Credentials: IntegrationCredentials{APIKey: "ak"}}
	if apiKey.Token() != "ak" {
		t.Errorf("api key token = %q", apiKey.Token())
	}
}

func TestBotAllowsServer(t *testing.T) {
	open := BotConfig{}
	if !open.AllowsServer("anything") {
		t.Error("empty allow-list permits every server")
	}
	restricted := BotConfig{McpServers: []string{"tavily"}}
	if !restricted.AllowsServer("tavily") || restricted.AllowsServer("github") {
		t.Error("allow-list not enforced")
	}
}
