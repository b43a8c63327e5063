// Package mcp manages connections to MCP tool servers: one live JSON-RPC
// session at a time, credential resolution, catalog caching and tool
// execution that degrades to values instead of raising.
package mcp

import (
	"context"
	"encoding/json"

	"github.com/luohy15/y-gui-sub000/src/chattype"
)

// JSON-RPC request methods
const (
	methodInitialize = "initialize"
	methodListTools  = "tools/list"
	methodCallTool   = "tools/call"
)

const protocolVersion = "2024-11-05"

// Message is a JSON-RPC 2.0 message.
type Message struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// initializeParams is sent on session establishment.
type initializeParams struct {
	ProtocolVersion string     `json:"protocolVersion"`
	Capabilities    struct{}   `json:"capabilities"`
	ClientInfo      clientInfo `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// callToolParams carries a tool invocation.
type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// CallToolResult is a tool invocation response.
type CallToolResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// ContentItem is one piece of tool output.
type ContentItem struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// wireTool is the catalog entry shape servers return.
type wireTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Transport carries JSON-RPC messages to and from one tool server.
type Transport interface {
	Send(ctx context.Context, message *Message) error
	Receive(ctx context.Context) (*Message, error)
	Close() error
}

// ServerStore is the persisted MCP server configuration the manager reads
// and whose tool cache it overwrites.
type ServerStore interface {
	ListMcpServers(ctx context.Context) ([]chattype.McpServer, error)
	GetMcpServer(ctx context.Context, name string) (*chattype.McpServer, error)
	UpdateToolCache(ctx context.Context, name string, tools []chattype.McpTool, status, errorMessage string) error
}

// IntegrationStore resolves third-party credentials for tool calls.
type IntegrationStore interface {
	ListIntegrations(ctx context.Context) ([]chattype.Integration, error)
}

// BuiltinServer is an in-process tool server, consulted before remote
// configuration and executed without a network session.
type BuiltinServer interface {
	Name() string
	Tools() []chattype.McpTool
	CallTool(ctx context.Context, tool string, args map[string]any) (string, error)
}
