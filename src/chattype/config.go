package chattype

import (
	"encoding/json"
	"strings"
)

// BotConfig selects the model backend for a chat turn. Bots without a
// BaseURL/APIKey fall back to the shared free-tier endpoint at load time.
type BotConfig struct {
	Name            string         `json:"name"`
	Model           string         `json:"model"`
	BaseURL         string         `json:"base_url,omitempty"`
	APIKey          string         `json:"api_key,omitempty"`
	Routing         map[string]any `json:"routing,omitempty"`
	McpServers      []string       `json:"mcp_servers,omitempty"`
	MaxTokens       int            `json:"max_tokens,omitempty"`
	ReasoningEffort string         `json:"reasoning_effort,omitempty"`
	CustomAPIPath   string         `json:"custom_api_path,omitempty"`
}

// AllowsServer reports whether the bot may use the named MCP server. An
// empty allow-list means every configured server is allowed.
func (b *BotConfig) AllowsServer(name string) bool {
	if len(b.McpServers) == 0 {
		return true
	}
	for _, s := range b.McpServers {
		if s == name {
			return true
		}
	}
	return false
}

// MCP server cache statuses
const (
	ServerStatusConnected = "connected"
	ServerStatusFailed    = "failed"
	ServerStatusPending   = "pending"
)

// McpTool is one cached catalog entry for an MCP server.
type McpTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// McpServer is the persisted configuration and cached capability state for
// one tool server. Tools/Status/LastUpdated/ErrorMessage are overwritten
// wholesale by catalog refreshes, never merged field by field.
type McpServer struct {
	Name         string            `json:"name"`
	URL          string            `json:"url,omitempty"`
	Token        string            `json:"token,omitempty"`
	Command      string            `json:"command,omitempty"`
	Args         []string          `json:"args,omitempty"`
	Env          map[string]string `json:"env,omitempty"`
	Tools        []McpTool         `json:"tools,omitempty"`
	Status       string            `json:"status,omitempty"`
	LastUpdated  string            `json:"last_updated,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	AllowTools   []string          `json:"allow_tools,omitempty"`
}

// HasTarget reports whether the server has a reachable connection target.
func (s *McpServer) HasTarget() bool {
	return s.URL != "" || s.Command != ""
}

// ToolAllowed reports whether the named tool skips the confirmation gate.
func (s *McpServer) ToolAllowed(tool string) bool {
	for _, t := range s.AllowTools {
		if t == tool {
			return true
		}
	}
	return false
}

// Integration auth types
const (
	AuthTypeAPIKey = "api_key"
	AuthTypeOAuth  = "oauth"
)

// Integration holds third-party credentials used to authorize tool calls
// whose tool name is prefixed by the integration name.
type Integration struct {
	Name        string                 `json:"name"`
	AuthType    string                 `json:"auth_type"`
	Connected   bool                   `json:"connected"`
	Credentials IntegrationCredentials `json:"credentials"`
}

// IntegrationCredentials carries either an api key or oauth tokens,
// depending on the integration's auth type.
type IntegrationCredentials struct {
	APIKey       string `json:"api_key,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
}

// Token returns the bearer token for the integration's auth type, or "".
func (i *Integration) Token() string {
	switch i.AuthType {
	case AuthTypeOAuth:
		return i.Credentials.AccessToken
	default:
		return i.Credentials.APIKey
	}
}

// MatchesTool reports whether the integration name is a prefix of the tool
// name. Literal prefix semantics are load-bearing for existing deployments
// even though "cal" matching "calendar_create" is a known sharp edge.
func (i *Integration) MatchesTool(tool string) bool {
	return i.Name != "" && strings.HasPrefix(tool, i.Name)
}
