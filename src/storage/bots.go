package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/luohy15/y-gui-sub000/src/chattype"
)

type configRow struct {
	Name   string `db:"name"`
	Config string `db:"config"`
}

// ListBots returns all stored bot configurations.
func (d *DB) ListBots(ctx context.Context) ([]chattype.BotConfig, error) {
	var rows []configRow
	err := sqlscan.Select(ctx, d.db, &rows, "SELECT name, config FROM bots ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list bots: %w", err)
	}

	bots := make([]chattype.BotConfig, 0, len(rows))
	for _, row := range rows {
		var bot chattype.BotConfig
		if err := json.Unmarshal([]byte(row.Config), &bot); err != nil {
			return nil, fmt.Errorf("failed to decode bot %s: %w", row.Name, err)
		}
		bot.Name = row.Name
		bots = append(bots, bot)
	}
	return bots, nil
}

// GetBot returns the named bot, or nil if it does not exist.
func (d *DB) GetBot(ctx context.Context, name string) (*chattype.BotConfig, error) {
	var row configRow
	err := sqlscan.Get(ctx, d.db, &row, "SELECT name, config FROM bots WHERE name = ?", name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bot: %w", err)
	}

	var bot chattype.BotConfig
	if err := json.Unmarshal([]byte(row.Config), &bot); err != nil {
		return nil, fmt.Errorf("failed to decode bot %s: %w", name, err)
	}
	bot.Name = row.Name
	return &bot, nil
}

// SaveBot inserts or replaces the named bot configuration.
func (d *DB) SaveBot(ctx context.Context, bot *chattype.BotConfig) error {
	if bot.Name == "" {
		return fmt.Errorf("bot name is required")
	}
	config, err := json.Marshal(bot)
	if err != nil {
		return fmt.Errorf("failed to encode bot: %w", err)
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO bots (name, config, created_at, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			config = excluded.config,
			updated_at = CURRENT_TIMESTAMP`,
		bot.Name, string(config))
	if err != nil {
		return fmt.Errorf("failed to save bot: %w", err)
	}
	return nil
}

// DeleteBot removes the named bot. Deleting an unknown name is not an error.
func (d *DB) DeleteBot(ctx context.Context, name string) error {
	_, err := d.db.ExecContext(ctx, "DELETE FROM bots WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete bot: %w", err)
	}
	return nil
}
