package config

import (
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/luohy15/y-gui-sub000/src/chattype"
)

// DefaultConfig returns the baseline configuration. Every field holds a
// usable value so a missing config file still yields a working setup.
func DefaultConfig() *Config {
	return &Config{
		Listen:   "127.0.0.1:8080",
		Database: filepath.Join(xdg.DataHome, "ygui", "ygui.db"),
		FreeTier: FreeTierConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Model:   "google/gemini-2.0-flash-exp:free",
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// DefaultBots returns the baseline free-tier bots. Callers merge these into
// listing results when storage has no bot of the same name; the injection
// happens at the call site, never inside the repository.
func DefaultBots(cfg *Config) []chattype.BotConfig {
	return []chattype.BotConfig{
		{
			Name:    "free",
			Model:   cfg.FreeTier.Model,
			BaseURL: cfg.FreeTier.BaseURL,
			APIKey:  cfg.FreeTier.APIKey,
		},
		{
			Name:    "free-reasoning",
			Model:   "deepseek/deepseek-r1:free",
			BaseURL: cfg.FreeTier.BaseURL,
			APIKey:  cfg.FreeTier.APIKey,
		},
	}
}

// DefaultMcpServers returns the baseline MCP servers merged by callers when
// storage has no server of the same name.
func DefaultMcpServers() []chattype.McpServer {
	return []chattype.McpServer{
		{
			Name:   "tavily",
			URL:    "https://mcp.tavily.com/mcp",
			Status: chattype.ServerStatusPending,
		},
	}
}

// MergeBots overlays stored bots on top of the defaults: a stored bot with
// the same name replaces the default, everything else is appended.
func MergeBots(defaults, stored []chattype.BotConfig) []chattype.BotConfig {
	byName := make(map[string]int, len(defaults))
	out := make([]chattype.BotConfig, len(defaults))
	copy(out, defaults)
	for i, b := range out {
		byName[b.Name] = i
	}
	for _, b := range stored {
		if i, ok := byName[b.Name]; ok {
			out[i] = b
			continue
		}
		byName[b.Name] = len(out)
		out = append(out, b)
	}
	return out
}

// MergeMcpServers overlays stored servers on top of the defaults, same
// replacement rule as MergeBots.
func MergeMcpServers(defaults, stored []chattype.McpServer) []chattype.McpServer {
	byName := make(map[string]int, len(defaults))
	out := make([]chattype.McpServer, len(defaults))
	copy(out, defaults)
	for i, s := range out {
		byName[s.Name] = i
	}
	for _, s := range stored {
		if i, ok := byName[s.Name]; ok {
			out[i] = s
			continue
		}
		byName[s.Name] = len(out)
		out = append(out, s)
	}
	return out
}
