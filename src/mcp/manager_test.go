package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luohy15/y-gui-sub000/src/chattype"
)

// fakeTransport answers initialize/tools requests from canned data and
// records open/close ordering through the shared recorder.
type fakeTransport struct {
	server   string
	tools    []wireTool
	toolText string
	failCall bool
	recorder *recorder
	pending  *Message
}

type recorder struct {
	events []string
	open   int
}

func (r *recorder) log(event string) {
	r.events = append(r.events, event)
}

func (t *fakeTransport) Send(ctx context.Context, message *Message) error {
	var result any
	switch message.Method {
	case methodInitialize:
		result = map[string]any{"protocolVersion": protocolVersion}
	case methodListTools:
		result = map[string]any{"tools": t.tools}
	case methodCallTool:
		if t.failCall {
			t.pending = &Message{ID: message.ID, Error: &RPCError{Code: -32000, Message: "tool exploded"}}
			return nil
		}
		result = CallToolResult{Content: []ContentItem{
			{Type: "text", Text: t.toolText},
			{Type: "image", Data: "ignored"},
			{Type: "text", Text: "!"},
		}}
	default:
		t.pending = &Message{ID: message.ID, Error: &RPCError{Code: -32601, Message: "method not found"}}
		return nil
	}
	raw, _ := json.Marshal(result)
	t.pending = &Message{ID: message.ID, Result: raw}
	return nil
}

func (t *fakeTransport) Receive(ctx context.Context) (*Message, error) {
	if t.pending == nil {
		return nil, fmt.Errorf("no pending response")
	}
	msg := t.pending
	t.pending = nil
	return msg, nil
}

func (t *fakeTransport) Close() error {
	t.recorder.open--
	t.recorder.log("close " + t.server)
	return nil
}

// fakeStore serves server configs from memory and records cache writes.
type fakeStore struct {
	servers     map[string]*chattype.McpServer
	cacheWrites []cacheWrite
}

type cacheWrite struct {
	server  string
	tools   []chattype.McpTool
	status  string
	message string
}

func (s *fakeStore) ListMcpServers(ctx context.Context) ([]chattype.McpServer, error) {
	var out []chattype.McpServer
	for _, srv := range s.servers {
		out = append(out, *srv)
	}
	return out, nil
}

func (s *fakeStore) GetMcpServer(ctx context.Context, name string) (*chattype.McpServer, error) {
	return s.servers[name], nil
}

func (s *fakeStore) UpdateToolCache(ctx context.Context, name string, tools []chattype.McpTool, status, errorMessage string) error {
	s.cacheWrites = append(s.cacheWrites, cacheWrite{server: name, tools: tools, status: status, message: errorMessage})
	if srv, ok := s.servers[name]; ok {
		srv.Tools = tools
		srv.Status = status
		srv.ErrorMessage = errorMessage
	}
	return nil
}

type fakeIntegrations struct {
	integrations []chattype.Integration
}

func (f *fakeIntegrations) ListIntegrations(ctx context.Context) ([]chattype.Integration, error) {
	return f.integrations, nil
}

type dialRecord struct {
	token        string
	integrations string
}

func newTestManager(t *testing.T, store *fakeStore, integ *fakeIntegrations) (*Manager, *recorder, *[]dialRecord, *[]StatusEvent) {
	t.Helper()
	rec := &recorder{}
	dials := &[]dialRecord{}
	events := &[]StatusEvent{}

	cfg := ManagerConfig{
		Servers: store,
		Status:  func(ev StatusEvent) { *events = append(*events, ev) },
	}
	if integ != nil {
		cfg.Integrations = integ
	}
	m := NewManager(cfg)
	m.dial = func(ctx context.Context, cfg *chattype.McpServer, token, integrations string) (Transport, error) {
		*dials = append(*dials, dialRecord{token: token, integrations: integrations})
		if rec.open > 0 {
			t.Fatalf("second connection opened while %d still live", rec.open)
		}
		rec.open++
		rec.log("open " + cfg.Name)
		return &fakeTransport{server: cfg.Name, toolText: "result for " + cfg.Name, recorder: rec}, nil
	}
	return m, rec, dials, events
}

func twoServerStore() *fakeStore {
	return &fakeStore{servers: map[string]*chattype.McpServer{
		"tavily": {Name: "tavily", URL: "https://tavily.example/mcp", Token: "server-token"},
		"github": {Name: "github", URL: "https://github.example/mcp"},
	}}
}

// Connecting to a second server must close the first session before the
// second opens.
func TestManagerSingleSessionInvariant(t *testing.T) {
	m, rec, _, _ := newTestManager(t, twoServerStore(), nil)
	ctx := context.Background()

	require.NotNil(t, m.Connect(ctx, "tavily", ""))
	require.NotNil(t, m.Connect(ctx, "github", ""))
	m.Disconnect()

	assert.Equal(t, []string{"open tavily", "close tavily", "open github", "close github"}, rec.events)
	assert.Zero(t, rec.open)
}

// countingTransport tracks how many transports are open at once so a test
// can detect overlapping sessions.
type countingTransport struct {
	fakeTransport
	live *atomic.Int32
}

func (t *countingTransport) Close() error {
	t.live.Add(-1)
	return nil
}

// Concurrent callers share a manager behind the HTTP server; each connect
// must still close the previous session before the next one opens.
func TestConnectSerializesConcurrentCallers(t *testing.T) {
	m, _, _, _ := newTestManager(t, twoServerStore(), nil)

	var live, peak atomic.Int32
	m.dial = func(ctx context.Context, cfg *chattype.McpServer, token, integrations string) (Transport, error) {
		n := live.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		return &countingTransport{fakeTransport: fakeTransport{server: cfg.Name}, live: &live}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		name := "tavily"
		if i%2 == 1 {
			name = "github"
		}
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			m.Connect(context.Background(), name, "")
		}(name)
	}
	wg.Wait()
	m.Disconnect()

	assert.Equal(t, int32(1), peak.Load(), "overlapping sessions were live")
	assert.Zero(t, live.Load())
	assert.False(t, m.Connected())
}

func TestManagerConnectUnknownServer(t *testing.T) {
	m, _, _, events := newTestManager(t, twoServerStore(), nil)

	session := m.Connect(context.Background(), "nope", "")
	assert.Nil(t, session)
	assert.False(t, m.Connected())

	require.NotEmpty(t, *events)
	last := (*events)[len(*events)-1]
	assert.Equal(t, StatusError, last.Status)
	assert.Equal(t, "nope", last.Server)
}

func TestExecuteToolConcatenatesTextBlocks(t *testing.T) {
	m, rec, _, _ := newTestManager(t, twoServerStore(), nil)

	result := m.ExecuteTool(context.Background(), "tavily", "search", map[string]any{"q": "weather"})

	assert.Equal(t, "result for tavily!", result)
	assert.Zero(t, rec.open, "session must be closed on return")
}

func TestExecuteToolUnknownServer(t *testing.T) {
	m, rec, _, _ := newTestManager(t, twoServerStore(), nil)

	result := m.ExecuteTool(context.Background(), "ghost", "search", nil)

	assert.Equal(t, "Error: Could not establish connection to MCP server 'ghost'", result)
	assert.Zero(t, rec.open)
}

func TestExecuteToolFailureReturnsErrorString(t *testing.T) {
	m, rec, _, _ := newTestManager(t, twoServerStore(), nil)
	m.dial = func(ctx context.Context, cfg *chattype.McpServer, token, integrations string) (Transport, error) {
		rec.open++
		return &fakeTransport{server: cfg.Name, failCall: true, recorder: rec}, nil
	}

	result := m.ExecuteTool(context.Background(), "tavily", "search", nil)

	assert.Contains(t, result, "Error executing MCP tool:")
	assert.Contains(t, result, "tool exploded")
	assert.Zero(t, rec.open, "session must be closed even on failure")
}

func TestListToolsOverwritesCache(t *testing.T) {
	store := twoServerStore()
	m, rec, _, _ := newTestManager(t, store, nil)
	m.dial = func(ctx context.Context, cfg *chattype.McpServer, token, integrations string) (Transport, error) {
		rec.open++
		return &fakeTransport{
			server:   cfg.Name,
			tools:    []wireTool{{Name: "search", Description: "Web search"}},
			recorder: rec,
		}, nil
	}

	m.ListTools(context.Background(), "tavily")

	require.Len(t, store.cacheWrites, 1)
	write := store.cacheWrites[0]
	assert.Equal(t, chattype.ServerStatusConnected, write.status)
	require.Len(t, write.tools, 1)
	assert.Equal(t, "search", write.tools[0].Name)
	assert.Zero(t, rec.open, "manager must disconnect after listing")
}

// A failed listing clears the cache rather than preserving the old catalog.
func TestListToolsFailureClearsCache(t *testing.T) {
	store := twoServerStore()
	store.servers["tavily"].Tools = []chattype.McpTool{{Name: "stale"}}
	m, _, _, _ := newTestManager(t, store, nil)

	m.ListTools(context.Background(), "ghost")

	require.Len(t, store.cacheWrites, 1)
	write := store.cacheWrites[0]
	assert.Equal(t, chattype.ServerStatusFailed, write.status)
	assert.Empty(t, write.tools)
	assert.Contains(t, write.message, "ghost")
}

func TestRefreshAllNoServers(t *testing.T) {
	store := &fakeStore{servers: map[string]*chattype.McpServer{}}
	m, _, _, events := newTestManager(t, store, nil)

	m.RefreshAll(context.Background())

	require.Len(t, *events, 1)
	assert.Equal(t, StatusInfo, (*events)[0].Status)
}

func TestResolveCredentialsIntegrationPrefix(t *testing.T) {
	integ := &fakeIntegrations{integrations: []chattype.Integration{
		{
			Name:        "github",
			AuthType:    chattype.AuthTypeOAuth,
			Connected:   true,
			Credentials: chattype.IntegrationCredentials{AccessToken: "oauth-token"},
		},
		{
			Name:        "slack",
			AuthType:    chattype.AuthTypeAPIKey,
			Connected:   true,
			Credentials: chattype.IntegrationCredentials{APIKey: "slack-key"},
		},
		{
			Name:      "jira",
			AuthType:  chattype.AuthTypeAPIKey,
			Connected: false,
		},
	}}
	m, _, dials, _ := newTestManager(t, twoServerStore(), integ)

	// Tool name prefixed by a connected integration: its token wins.
	require.NotNil(t, m.Connect(context.Background(), "tavily", "github_create_issue"))
	require.Len(t, *dials, 1)
	assert.Equal(t, "oauth-token", (*dials)[0].token)
	assert.Equal(t, "github,slack", (*dials)[0].integrations)

	// No matching integration: server's own token.
	require.NotNil(t, m.Connect(context.Background(), "tavily", "unrelated_tool"))
	assert.Equal(t, "server-token", (*dials)[1].token)
}

func TestRenderToolsPromptFromCacheOnly(t *testing.T) {
	store := &fakeStore{servers: map[string]*chattype.McpServer{
		"tavily": {
			Name:   "tavily",
			URL:    "https://tavily.example/mcp",
			Status: chattype.ServerStatusConnected,
			Tools: []chattype.McpTool{{
				Name:        "search",
				Description: "Web search",
				InputSchema: json.RawMessage(`{"type":"object"}`),
			}},
		},
		"broken": {
			Name:         "broken",
			URL:          "https://broken.example/mcp",
			Status:       chattype.ServerStatusFailed,
			ErrorMessage: "connection refused",
		},
		"pending": {
			Name: "pending",
			URL:  "https://pending.example/mcp",
		},
	}}
	m, rec, _, _ := newTestManager(t, store, nil)

	prompt := m.RenderToolsPrompt(context.Background())

	assert.Contains(t, prompt, "## tavily")
	assert.Contains(t, prompt, "### search")
	assert.Contains(t, prompt, "Web search")
	assert.Contains(t, prompt, `{"type":"object"}`)
	assert.Contains(t, prompt, "(Error: connection refused)")
	assert.Contains(t, prompt, "(Server not connected)")
	assert.Empty(t, rec.events, "rendering must not open connections")
}
