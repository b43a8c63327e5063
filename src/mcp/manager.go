package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/luohy15/y-gui-sub000/src/chattype"
	"github.com/luohy15/y-gui-sub000/src/metrics"
)

// Connection timeouts. Connect attempts and catalog listings are bounded
// tightly so a dead server cannot stall a chat turn; tool execution gets a
// longer leash because real tools do real work.
const (
	connectTimeout = 5 * time.Second
	listTimeout    = 5 * time.Second
	callTimeout    = 30 * time.Second
)

// Status event kinds emitted on connection transitions.
const (
	StatusConnecting   = "connecting"
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusError        = "error"
	StatusInfo         = "info"
)

// StatusEvent is one connection-lifecycle notification, consumed by the UI
// as a live connection log.
type StatusEvent struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Server  string `json:"server,omitempty"`
}

// StatusFunc receives status events. A nil sink drops them.
type StatusFunc func(StatusEvent)

// dialFunc opens a transport to a configured server. Swapped out in tests.
type dialFunc func(ctx context.Context, cfg *chattype.McpServer, token, integrations string) (Transport, error)

// Manager owns at most one live tool-server connection at a time.
//
// Unconditional disconnect-before-connect keeps the invariant within one
// caller; mu extends it across callers, since HTTP handlers can share a
// manager from concurrent goroutines. Do not add pooling.
type Manager struct {
	servers      ServerStore
	integrations IntegrationStore
	builtins     map[string]BuiltinServer
	status       StatusFunc
	dial         dialFunc
	logger       *slog.Logger

	mu      sync.Mutex
	session *Session
}

// ManagerConfig holds dependencies for a new Manager.
type ManagerConfig struct {
	Servers      ServerStore
	Integrations IntegrationStore
	Builtins     []BuiltinServer
	Status       StatusFunc
	Logger       *slog.Logger
}

// NewManager creates a connection manager.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	builtins := make(map[string]BuiltinServer, len(cfg.Builtins))
	for _, b := range cfg.Builtins {
		builtins[b.Name()] = b
	}
	return &Manager{
		servers:      cfg.Servers,
		integrations: cfg.Integrations,
		builtins:     builtins,
		status:       cfg.Status,
		dial:         defaultDial,
		logger:       logger.With("component", "mcp_manager"),
	}
}

func defaultDial(ctx context.Context, cfg *chattype.McpServer, token, integrations string) (Transport, error) {
	if cfg.URL != "" {
		return newHTTPTransport(cfg.URL, token, integrations), nil
	}
	return newStdioTransport(cfg)
}

func (m *Manager) emit(status, message, server string) {
	m.logger.Debug("mcp status", "status", status, "server", server, "message", message)
	if m.status != nil {
		m.status(StatusEvent{Status: status, Message: message, Server: server})
	}
}

// Connect opens a session to the named server, closing any live session
// first. toolHint, when given, drives integration credential selection. A
// nil return means the attempt failed; an error status event carries why.
func (m *Manager) Connect(ctx context.Context, serverName, toolHint string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectLocked(ctx, serverName, toolHint)
}

func (m *Manager) connectLocked(ctx context.Context, serverName, toolHint string) *Session {
	m.disconnectLocked()

	cfg, err := m.servers.GetMcpServer(ctx, serverName)
	if err != nil || cfg == nil || !cfg.HasTarget() {
		m.emit(StatusError, fmt.Sprintf("MCP server '%s' is not configured", serverName), serverName)
		return nil
	}

	token, integrations := m.resolveCredentials(ctx, cfg, toolHint)

	m.emit(StatusConnecting, fmt.Sprintf("Connecting to MCP server '%s'...", serverName), serverName)

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	transport, err := m.dial(dialCtx, cfg, token, integrations)
	if err != nil {
		m.emit(StatusError, fmt.Sprintf("Failed to connect to MCP server '%s': %v", serverName, err), serverName)
		return nil
	}

	session := newSession(serverName, transport, m.logger)
	if err := session.initialize(dialCtx); err != nil {
		session.Close()
		m.emit(StatusError, fmt.Sprintf("Failed to initialize MCP server '%s': %v", serverName, err), serverName)
		return nil
	}

	m.session = session
	m.emit(StatusConnected, fmt.Sprintf("Connected to MCP server '%s'", serverName), serverName)
	return session
}

// Disconnect closes the live session, if any.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectLocked()
}

func (m *Manager) disconnectLocked() {
	if m.session == nil {
		return
	}
	name := m.session.server
	if err := m.session.Close(); err != nil {
		m.logger.Warn("error closing mcp session", "server", name, "error", err)
	}
	m.session = nil
	m.emit(StatusDisconnected, fmt.Sprintf("Disconnected from MCP server '%s'", name), name)
}

// Connected reports whether a session is currently live.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// resolveCredentials picks the bearer token for a connection. If the tool
// hint is prefixed by a connected integration's name, that integration's
// token wins; otherwise the server's own token is used. The second return
// value lists all connected integration names, comma-joined.
func (m *Manager) resolveCredentials(ctx context.Context, cfg *chattype.McpServer, toolHint string) (string, string) {
	token := cfg.Token

	if m.integrations == nil {
		return token, ""
	}
	integrations, err := m.integrations.ListIntegrations(ctx)
	if err != nil {
		m.logger.Warn("failed to list integrations", "error", err)
		return token, ""
	}

	var connected []string
	for i := range integrations {
		integ := &integrations[i]
		if !integ.Connected {
			continue
		}
		connected = append(connected, integ.Name)
		// Prefix match by design, see Integration.MatchesTool.
		if toolHint != "" && integ.MatchesTool(toolHint) {
			if t := integ.Token(); t != "" {
				token = t
			}
		}
	}

	return token, strings.Join(connected, ",")
}

// ListTools refreshes the persisted tool cache for one server. The cache is
// overwritten wholesale: a failed listing clears the tools and records the
// failure, it never preserves a stale catalog. The session is always closed
// before returning.
func (m *Manager) ListTools(ctx context.Context, serverName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.connectLocked(ctx, serverName, "")
	if session == nil {
		m.writeToolCache(ctx, serverName, nil, chattype.ServerStatusFailed,
			fmt.Sprintf("Could not establish connection to MCP server '%s'", serverName))
		return
	}
	defer m.disconnectLocked()

	listCtx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	wireTools, err := session.ListTools(listCtx)
	if err != nil {
		m.emit(StatusError, fmt.Sprintf("Failed to list tools on '%s': %v", serverName, err), serverName)
		m.writeToolCache(ctx, serverName, nil, chattype.ServerStatusFailed, err.Error())
		return
	}

	tools := make([]chattype.McpTool, len(wireTools))
	for i, t := range wireTools {
		tools[i] = chattype.McpTool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
	}
	m.writeToolCache(ctx, serverName, tools, chattype.ServerStatusConnected, "")
	m.emit(StatusInfo, fmt.Sprintf("Cached %d tools for MCP server '%s'", len(tools), serverName), serverName)
}

func (m *Manager) writeToolCache(ctx context.Context, serverName string, tools []chattype.McpTool, status, errorMessage string) {
	metrics.Global().CatalogRefreshes.Inc()
	if err := m.servers.UpdateToolCache(ctx, serverName, tools, status, errorMessage); err != nil {
		m.logger.Error("failed to persist tool cache", "server", serverName, "error", err)
	}
}

// RefreshAll refreshes every configured server's catalog, sequentially: the
// single-connection invariant forbids parallel listings.
func (m *Manager) RefreshAll(ctx context.Context) {
	servers, err := m.servers.ListMcpServers(ctx)
	if err != nil {
		m.emit(StatusError, fmt.Sprintf("Failed to list MCP servers: %v", err), "")
		return
	}
	if len(servers) == 0 {
		m.emit(StatusInfo, "No MCP servers configured", "")
		return
	}
	for _, s := range servers {
		m.ListTools(ctx, s.Name)
	}
}

// ExecuteTool runs one tool and returns its text output. Failures at any
// stage come back as a human-readable error string, never an error value:
// the result becomes the content of the next synthetic user message either
// way. The session is always closed before returning.
func (m *Manager) ExecuteTool(ctx context.Context, serverName, toolName string, args map[string]any) string {
	metrics.Global().ToolCalls.Inc()

	if b, ok := m.builtins[serverName]; ok {
		result, err := b.CallTool(ctx, toolName, args)
		if err != nil {
			metrics.Global().ToolErrors.Inc()
			return fmt.Sprintf("Error executing MCP tool: %v", err)
		}
		return result
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.connectLocked(ctx, serverName, toolName)
	if session == nil {
		metrics.Global().ToolErrors.Inc()
		return fmt.Sprintf("Error: Could not establish connection to MCP server '%s'", serverName)
	}
	defer m.disconnectLocked()

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	result, err := session.CallTool(callCtx, toolName, args)
	if err != nil {
		metrics.Global().ToolErrors.Inc()
		return fmt.Sprintf("Error executing MCP tool: %v", err)
	}
	if result.IsError {
		metrics.Global().ToolErrors.Inc()
	}

	var sb strings.Builder
	for _, item := range result.Content {
		if item.Type != "text" {
			continue
		}
		sb.WriteString(item.Text)
	}
	return sb.String()
}

// RenderToolsPrompt builds the system-prompt fragment describing available
// tools from the persisted cache only; it never opens a connection.
func (m *Manager) RenderToolsPrompt(ctx context.Context) string {
	var sb strings.Builder

	names := make([]string, 0, len(m.builtins))
	for name := range m.builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b := m.builtins[name]
		renderServerSection(&sb, b.Name(), chattype.ServerStatusConnected, "", b.Tools())
	}

	servers, err := m.servers.ListMcpServers(ctx)
	if err != nil {
		m.logger.Warn("failed to list mcp servers for prompt", "error", err)
		return sb.String()
	}
	for i := range servers {
		s := &servers[i]
		renderServerSection(&sb, s.Name, s.Status, s.ErrorMessage, s.Tools)
	}

	return sb.String()
}

func renderServerSection(sb *strings.Builder, name, status, errorMessage string, tools []chattype.McpTool) {
	fmt.Fprintf(sb, "## %s\n", name)
	switch status {
	case chattype.ServerStatusConnected:
		for _, t := range tools {
			fmt.Fprintf(sb, "### %s\n", t.Name)
			if t.Description != "" {
				fmt.Fprintf(sb, "%s\n", t.Description)
			}
			if len(t.InputSchema) > 0 {
				fmt.Fprintf(sb, "Input schema: %s\n", string(t.InputSchema))
			}
		}
	case chattype.ServerStatusFailed:
		fmt.Fprintf(sb, "(Error: %s)\n", errorMessage)
	default:
		sb.WriteString("(Server not connected)\n")
	}
	sb.WriteString("\n")
}
