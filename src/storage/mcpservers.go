package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/luohy15/y-gui-sub000/src/chattype"
)

// ListMcpServers returns all stored MCP server configurations.
func (d *DB) ListMcpServers(ctx context.Context) ([]chattype.McpServer, error) {
	var rows []configRow
	err := sqlscan.Select(ctx, d.db, &rows, "SELECT name, config FROM mcp_servers ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list mcp servers: %w", err)
	}

	servers := make([]chattype.McpServer, 0, len(rows))
	for _, row := range rows {
		var server chattype.McpServer
		if err := json.Unmarshal([]byte(row.Config), &server); err != nil {
			return nil, fmt.Errorf("failed to decode mcp server %s: %w", row.Name, err)
		}
		server.Name = row.Name
		servers = append(servers, server)
	}
	return servers, nil
}

// GetMcpServer returns the named server, or nil if it does not exist.
func (d *DB) GetMcpServer(ctx context.Context, name string) (*chattype.McpServer, error) {
	var row configRow
	err := sqlscan.Get(ctx, d.db, &row, "SELECT name, config FROM mcp_servers WHERE name = ?", name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mcp server: %w", err)
	}

	var server chattype.McpServer
	if err := json.Unmarshal([]byte(row.Config), &server); err != nil {
		return nil, fmt.Errorf("failed to decode mcp server %s: %w", name, err)
	}
	server.Name = row.Name
	return &server, nil
}

// SaveMcpServer inserts or replaces the named server configuration.
func (d *DB) SaveMcpServer(ctx context.Context, server *chattype.McpServer) error {
	if server.Name == "" {
		return fmt.Errorf("mcp server name is required")
	}
	config, err := json.Marshal(server)
	if err != nil {
		return fmt.Errorf("failed to encode mcp server: %w", err)
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO mcp_servers (name, config, created_at, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			config = excluded.config,
			updated_at = CURRENT_TIMESTAMP`,
		server.Name, string(config))
	if err != nil {
		return fmt.Errorf("failed to save mcp server: %w", err)
	}
	return nil
}

// DeleteMcpServer removes the named server. Unknown names are not an error.
func (d *DB) DeleteMcpServer(ctx context.Context, name string) error {
	_, err := d.db.ExecContext(ctx, "DELETE FROM mcp_servers WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete mcp server: %w", err)
	}
	return nil
}

// UpdateToolCache replaces the server's cached catalog wholesale: tools,
// status, error message and refresh timestamp together, never merged.
func (d *DB) UpdateToolCache(ctx context.Context, name string, tools []chattype.McpTool, status, errorMessage string) error {
	server, err := d.GetMcpServer(ctx, name)
	if err != nil {
		return err
	}
	if server == nil {
		return fmt.Errorf("mcp server %s not found", name)
	}
	server.Tools = tools
	server.Status = status
	server.ErrorMessage = errorMessage
	server.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return d.SaveMcpServer(ctx, server)
}
