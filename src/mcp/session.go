package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Session is one initialized connection to a tool server. Calls are strictly
// sequential; the manager never shares a session between turns.
type Session struct {
	server    string
	transport Transport
	nextID    atomic.Int64
	logger    *slog.Logger
}

func newSession(server string, transport Transport, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		server:    server,
		transport: transport,
		logger:    logger.With("mcp_server", server),
	}
}

// call sends one request and waits for its response, discarding unrelated
// server-initiated messages in between.
func (s *Session) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := s.nextID.Add(1)

	var rawParams json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		rawParams = data
	}

	req := &Message{ID: id, Method: method, Params: rawParams}
	if err := s.transport.Send(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", method, err)
	}

	for {
		resp, err := s.transport.Receive(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to receive %s response: %w", method, err)
		}
		if resp.ID == nil || fmt.Sprint(resp.ID) != fmt.Sprint(id) {
			// Notification or stale response.
			s.logger.Debug("ignoring unsolicited message", "method", resp.Method)
			continue
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("server error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	}
}

// initialize performs the MCP handshake.
func (s *Session) initialize(ctx context.Context) error {
	params := initializeParams{
		ProtocolVersion: protocolVersion,
		ClientInfo:      clientInfo{Name: "y-gui", Version: "1.0.0"},
	}
	if _, err := s.call(ctx, methodInitialize, params); err != nil {
		return err
	}
	return nil
}

// ListTools requests the server's tool catalog.
func (s *Session) ListTools(ctx context.Context) ([]wireTool, error) {
	result, err := s.call(ctx, methodListTools, nil)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Tools []wireTool `json:"tools"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tool catalog: %w", err)
	}
	return parsed.Tools, nil
}

// CallTool invokes one named tool.
func (s *Session) CallTool(ctx context.Context, tool string, args map[string]any) (*CallToolResult, error) {
	result, err := s.call(ctx, methodCallTool, callToolParams{Name: tool, Arguments: args})
	if err != nil {
		return nil, err
	}
	var parsed CallToolResult
	if err := json.Unmarshal(result, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tool result: %w", err)
	}
	return &parsed, nil
}

// Close tears the connection down.
func (s *Session) Close() error {
	return s.transport.Close()
}
