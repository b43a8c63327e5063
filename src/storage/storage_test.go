package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/luohy15/y-gui-sub000/src/chattype"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestChatRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	chat := &chattype.Chat{ID: "chat-1"}
	chat.Messages = append(chat.Messages, chattype.NewUserMessage("hello"))
	if err := db.SaveChat(ctx, chat); err != nil {
		t.Fatalf("SaveChat: %v", err)
	}

	got, err := db.GetChat(ctx, "chat-1")
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}
	if got == nil {
		t.Fatal("expected chat, got nil")
	}
	if len(got.Messages) != 1 || got.Messages[0].Text() != "hello" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
}

func TestSaveChatLastWriterWins(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first := &chattype.Chat{ID: "chat-1", Messages: []chattype.Message{chattype.NewUserMessage("one"), chattype.NewUserMessage("two")}}
	if err := db.SaveChat(ctx, first); err != nil {
		t.Fatalf("SaveChat: %v", err)
	}
	second := &chattype.Chat{ID: "chat-1", Messages: []chattype.Message{chattype.NewUserMessage("replacement")}}
	if err := db.SaveChat(ctx, second); err != nil {
		t.Fatalf("SaveChat: %v", err)
	}

	got, err := db.GetChat(ctx, "chat-1")
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Text() != "replacement" {
		t.Fatalf("expected full overwrite, got %+v", got.Messages)
	}
}

func TestSaveChatAssignsID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	chat := &chattype.Chat{}
	if err := db.SaveChat(ctx, chat); err != nil {
		t.Fatalf("SaveChat: %v", err)
	}
	if chat.ID == "" {
		t.Fatal("expected SaveChat to assign an id")
	}
}

func TestGetOrCreateChatDoesNotPersist(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	chat, err := db.GetOrCreateChat(ctx, "fresh")
	if err != nil {
		t.Fatalf("GetOrCreateChat: %v", err)
	}
	if chat.ID != "fresh" || len(chat.Messages) != 0 {
		t.Fatalf("unexpected chat: %+v", chat)
	}

	// Creation is in-memory only until first save.
	got, err := db.GetChat(ctx, "fresh")
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}
	if got != nil {
		t.Fatal("expected no stored chat before SaveChat")
	}
}

func TestGetChatMissing(t *testing.T) {
	db := openTestDB(t)

	got, err := db.GetChat(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestBotRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	bot := &chattype.BotConfig{Name: "default", Model: "anthropic/claude-sonnet-4", MaxTokens: 4096}
	if err := db.SaveBot(ctx, bot); err != nil {
		t.Fatalf("SaveBot: %v", err)
	}

	got, err := db.GetBot(ctx, "default")
	if err != nil {
		t.Fatalf("GetBot: %v", err)
	}
	if got == nil || got.Model != "anthropic/claude-sonnet-4" || got.MaxTokens != 4096 {
		t.Fatalf("unexpected bot: %+v", got)
	}

	bots, err := db.ListBots(ctx)
	if err != nil {
		t.Fatalf("ListBots: %v", err)
	}
	if len(bots) != 1 || bots[0].Name != "default" {
		t.Fatalf("unexpected bots: %+v", bots)
	}
}

func TestUpdateToolCacheOverwritesWholesale(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	server := &chattype.McpServer{
		Name:   "tavily",
		URL:    "https://tavily.example/mcp",
		Tools:  []chattype.McpTool{{Name: "search"}, {Name: "extract"}},
		Status: chattype.ServerStatusConnected,
	}
	if err := db.SaveMcpServer(ctx, server); err != nil {
		t.Fatalf("SaveMcpServer: %v", err)
	}

	if err := db.UpdateToolCache(ctx, "tavily", nil, chattype.ServerStatusFailed, "connection refused"); err != nil {
		t.Fatalf("UpdateToolCache: %v", err)
	}

	got, err := db.GetMcpServer(ctx, "tavily")
	if err != nil {
		t.Fatalf("GetMcpServer: %v", err)
	}
	if len(got.Tools) != 0 {
		t.Fatalf("expected cache cleared, got %+v", got.Tools)
	}
	if got.Status != chattype.ServerStatusFailed || got.ErrorMessage != "connection refused" {
		t.Fatalf("unexpected status: %s %q", got.Status, got.ErrorMessage)
	}
	if got.LastUpdated == "" {
		t.Fatal("expected LastUpdated to be set")
	}
	if got.URL != "https://tavily.example/mcp" {
		t.Fatal("configuration fields must survive a cache refresh")
	}
}

func TestUpdateToolCacheUnknownServer(t *testing.T) {
	db := openTestDB(t)

	err := db.UpdateToolCache(context.Background(), "missing", nil, chattype.ServerStatusFailed, "boom")
	if err == nil {
		t.Fatal("expected error for unknown server")
	}
}

func TestIntegrationRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	integration := &chattype.Integration{
		Name:      "github",
		AuthType:  chattype.AuthTypeOAuth,
		Connected: true,
		Credentials: chattype.IntegrationCredentials{
			AccessToken: "oauth-token",
		},
	}
	if err := db.SaveIntegration(ctx, integration); err != nil {
		t.Fatalf("SaveIntegration: %v", err)
	}

	list, err := db.ListIntegrations(ctx)
	if err != nil {
		t.Fatalf("ListIntegrations: %v", err)
	}
	if len(list) != 1 || list[0].Token() != "oauth-token" {
		t.Fatalf("unexpected integrations: %+v", list)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	db.Close()

	// Reopening must not reapply the schema.
	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	db.Close()
}
