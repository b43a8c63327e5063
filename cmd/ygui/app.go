package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/luohy15/y-gui-sub000/src/builtin"
	"github.com/luohy15/y-gui-sub000/src/chat"
	"github.com/luohy15/y-gui-sub000/src/chattype"
	"github.com/luohy15/y-gui-sub000/src/config"
	"github.com/luohy15/y-gui-sub000/src/mcp"
	"github.com/luohy15/y-gui-sub000/src/storage"
)

// app wires configuration, storage, the connection manager and the
// orchestrator together for one command invocation.
type app struct {
	cfg          *config.Config
	db           *storage.DB
	servers      *serverStore
	builtins     []mcp.BuiltinServer
	manager      *mcp.Manager
	orchestrator *chat.Orchestrator
	logger       *slog.Logger
}

func buildApp(cli *CLI, status mcp.StatusFunc) (*app, error) {
	loader := config.NewLoader(config.GetConfigPaths())
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if cli.Database != "" {
		cfg.Database = cli.Database
	}
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}

	logger := createLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	fetch, err := builtin.NewFetchServer(logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize fetch server: %w", err)
	}

	a := &app{
		cfg:      cfg,
		db:       db,
		servers:  &serverStore{db: db},
		builtins: []mcp.BuiltinServer{fetch},
		logger:   logger,
	}
	a.orchestrator, a.manager = a.newTurnOrchestrator(status)
	return a, nil
}

// newTurnOrchestrator builds a manager and orchestrator pair whose status
// events go to the given sink. The HTTP server builds one per request so
// each turn's connection log streams to its own client.
func (a *app) newTurnOrchestrator(status mcp.StatusFunc) (*chat.Orchestrator, *mcp.Manager) {
	manager := mcp.NewManager(mcp.ManagerConfig{
		Servers:      a.servers,
		Integrations: a.db,
		Builtins:     a.builtins,
		Status:       status,
		Logger:       a.logger,
	})
	orchestrator := chat.NewOrchestrator(chat.OrchestratorConfig{
		Chats:     a.db,
		Tools:     manager,
		NewClient: chat.NewProviderFactory(a.logger),
		Logger:    a.logger,
	})
	return orchestrator, manager
}

func (a *app) close() {
	a.manager.Disconnect()
	a.db.Close()
}

// resolveBot finds the named bot in storage or the configured defaults, and
// fills in the free-tier endpoint when the bot carries no key of its own.
func (a *app) resolveBot(ctx context.Context, name string) (*chattype.BotConfig, error) {
	bot, err := a.db.GetBot(ctx, name)
	if err != nil {
		return nil, err
	}
	if bot == nil {
		for _, d := range config.DefaultBots(a.cfg) {
			if d.Name == name {
				bot = &d
				break
			}
		}
	}
	if bot == nil {
		return nil, fmt.Errorf("bot '%s' is not configured", name)
	}
	if bot.BaseURL == "" {
		bot.BaseURL = a.cfg.FreeTier.BaseURL
	}
	if bot.APIKey == "" {
		bot.APIKey = a.cfg.FreeTier.APIKey
	}
	if bot.Model == "" {
		bot.Model = a.cfg.FreeTier.Model
	}
	return bot, nil
}

// listBots returns the configured defaults overlaid with stored bots.
func (a *app) listBots(ctx context.Context) ([]chattype.BotConfig, error) {
	stored, err := a.db.ListBots(ctx)
	if err != nil {
		return nil, err
	}
	return config.MergeBots(config.DefaultBots(a.cfg), stored), nil
}

// serverStore overlays the configured default MCP servers on the database
// rows, keeping the default-injection policy at the call site rather than
// inside the repository.
type serverStore struct {
	db *storage.DB
}

func (s *serverStore) ListMcpServers(ctx context.Context) ([]chattype.McpServer, error) {
	stored, err := s.db.ListMcpServers(ctx)
	if err != nil {
		return nil, err
	}
	return config.MergeMcpServers(config.DefaultMcpServers(), stored), nil
}

func (s *serverStore) GetMcpServer(ctx context.Context, name string) (*chattype.McpServer, error) {
	server, err := s.db.GetMcpServer(ctx, name)
	if err != nil || server != nil {
		return server, err
	}
	for _, d := range config.DefaultMcpServers() {
		if d.Name == name {
			def := d
			return &def, nil
		}
	}
	return nil, nil
}

// UpdateToolCache seeds a default server into the database on first refresh
// so the cache has a row to land in.
func (s *serverStore) UpdateToolCache(ctx context.Context, name string, tools []chattype.McpTool, status, errorMessage string) error {
	stored, err := s.db.GetMcpServer(ctx, name)
	if err != nil {
		return err
	}
	if stored == nil {
		def, err := s.GetMcpServer(ctx, name)
		if err != nil {
			return err
		}
		if def == nil {
			return fmt.Errorf("mcp server %s not found", name)
		}
		if err := s.db.SaveMcpServer(ctx, def); err != nil {
			return err
		}
	}
	return s.db.UpdateToolCache(ctx, name, tools, status, errorMessage)
}
