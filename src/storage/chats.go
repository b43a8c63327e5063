package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"

	"github.com/luohy15/y-gui-sub000/src/chattype"
)

type chatRow struct {
	ID        string    `db:"id"`
	Document  string    `db:"document"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// GetChat returns the chat with the given id, or nil if none exists.
func (d *DB) GetChat(ctx context.Context, id string) (*chattype.Chat, error) {
	var row chatRow
	err := sqlscan.Get(ctx, d.db, &row, "SELECT id, document, created_at, updated_at FROM chats WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}

	var chat chattype.Chat
	if err := json.Unmarshal([]byte(row.Document), &chat); err != nil {
		return nil, fmt.Errorf("failed to decode chat %s: %w", id, err)
	}
	return &chat, nil
}

// GetOrCreateChat returns the stored chat for the id, or a fresh in-memory
// chat when the id is unknown. New chats are not written until SaveChat.
func (d *DB) GetOrCreateChat(ctx context.Context, id string) (*chattype.Chat, error) {
	chat, err := d.GetChat(ctx, id)
	if err != nil {
		return nil, err
	}
	if chat != nil {
		return chat, nil
	}
	now := time.Now()
	return &chattype.Chat{
		ID:        id,
		Messages:  []chattype.Message{},
		CreatedAt: now.UTC().Format(time.RFC3339),
		UpdatedAt: now.UTC().Format(time.RFC3339),
	}, nil
}

// SaveChat writes the chat as one JSON document, replacing any previous
// version wholesale. A chat without an id is assigned one.
func (d *DB) SaveChat(ctx context.Context, chat *chattype.Chat) error {
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}
	chat.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	document, err := json.Marshal(chat)
	if err != nil {
		return fmt.Errorf("failed to encode chat: %w", err)
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO chats (id, document, created_at, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			document = excluded.document,
			updated_at = CURRENT_TIMESTAMP`,
		chat.ID, string(document))
	if err != nil {
		return fmt.Errorf("failed to save chat: %w", err)
	}
	return nil
}

// ListChats returns all chats, most recently updated first.
func (d *DB) ListChats(ctx context.Context) ([]*chattype.Chat, error) {
	var rows []chatRow
	err := sqlscan.Select(ctx, d.db, &rows, "SELECT id, document, created_at, updated_at FROM chats ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}

	chats := make([]*chattype.Chat, 0, len(rows))
	for _, row := range rows {
		var chat chattype.Chat
		if err := json.Unmarshal([]byte(row.Document), &chat); err != nil {
			return nil, fmt.Errorf("failed to decode chat %s: %w", row.ID, err)
		}
		chats = append(chats, &chat)
	}
	return chats, nil
}

// DeleteChat removes a chat. Deleting an unknown id is not an error.
func (d *DB) DeleteChat(ctx context.Context, id string) error {
	_, err := d.db.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	return nil
}
