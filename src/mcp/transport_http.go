package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
)

// IntegrationsHeader lists the user's connected integration names so the
// remote server can adapt behavior.
const IntegrationsHeader = "X-Connected-Integrations"

// httpTransport speaks JSON-RPC over HTTP POST. Each Send performs the round
// trip and queues the response for the following Receive, which fits the
// session's strictly sequential call pattern.
type httpTransport struct {
	url          string
	token        string
	integrations string
	client       *http.Client
	responses    chan *Message
	closed       atomic.Bool
}

func newHTTPTransport(url, token, integrations string) *httpTransport {
	return &httpTransport{
		url:          url,
		token:        token,
		integrations: integrations,
		client:       &http.Client{},
		responses:    make(chan *Message, 4),
	}
}

// Send posts the message and queues the server's reply.
func (t *httpTransport) Send(ctx context.Context, message *Message) error {
	if t.closed.Load() {
		return fmt.Errorf("transport is closed")
	}

	message.Jsonrpc = "2.0"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	if t.integrations != "" {
		req.Header.Set(IntegrationsHeader, t.integrations)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		// Notifications get no response body.
		return nil
	}

	var reply Message
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	select {
	case t.responses <- &reply:
	default:
		return fmt.Errorf("response queue full")
	}
	return nil
}

// Receive pops the queued reply to the last Send.
func (t *httpTransport) Receive(ctx context.Context) (*Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg := <-t.responses:
		return msg, nil
	}
}

// Close marks the transport unusable. HTTP needs no teardown beyond that.
func (t *httpTransport) Close() error {
	t.closed.Store(true)
	return nil
}
