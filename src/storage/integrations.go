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

// ListIntegrations returns all stored integrations.
func (d *DB) ListIntegrations(ctx context.Context) ([]chattype.Integration, error) {
	var rows []configRow
	err := sqlscan.Select(ctx, d.db, &rows, "SELECT name, config FROM integrations ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}

	integrations := make([]chattype.Integration, 0, len(rows))
	for _, row := range rows {
		var integration chattype.Integration
		if err := json.Unmarshal([]byte(row.Config), &integration); err != nil {
			return nil, fmt.Errorf("failed to decode integration %s: %w", row.Name, err)
		}
		integration.Name = row.Name
		integrations = append(integrations, integration)
	}
	return integrations, nil
}

// GetIntegration returns the named integration, or nil if it does not exist.
func (d *DB) GetIntegration(ctx context.Context, name string) (*chattype.Integration, error) {
	var row configRow
	err := sqlscan.Get(ctx, d.db, &row, "SELECT name, config FROM integrations WHERE name = ?", name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}

	var integration chattype.Integration
	if err := json.Unmarshal([]byte(row.Config), &integration); err != nil {
		return nil, fmt.Errorf("failed to decode integration %s: %w", name, err)
	}
	integration.Name = row.Name
	return &integration, nil
}

// SaveIntegration inserts or replaces the named integration.
func (d *DB) SaveIntegration(ctx context.Context, integration *chattype.Integration) error {
	if integration.Name == "" {
		return fmt.Errorf("integration name is required")
	}
	config, err := json.Marshal(integration)
	if err != nil {
		return fmt.Errorf("failed to encode integration: %w", err)
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO integrations (name, config, created_at, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			config = excluded.config,
			updated_at = CURRENT_TIMESTAMP`,
		integration.Name, string(config))
	if err != nil {
		return fmt.Errorf("failed to save integration: %w", err)
	}
	return nil
}

// DeleteIntegration removes the named integration.
func (d *DB) DeleteIntegration(ctx context.Context, name string) error {
	_, err := d.db.ExecContext(ctx, "DELETE FROM integrations WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete integration: %w", err)
	}
	return nil
}
