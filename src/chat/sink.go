package chat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/luohy15/y-gui-sub000/src/mcp"
	"github.com/luohy15/y-gui-sub000/src/provider"
)

// Sink receives the ordered event stream of one chat turn. Events are
// delivered synchronously in arrival order; a slow sink stalls the stream
// read loop.
type Sink interface {
	SendChunk(content, reasoning, model, providerName string) error
	SendStatus(event mcp.StatusEvent) error
	SendConfirmation(prose, server, tool string, args map[string]any) error
	SendError(perr *provider.Error) error
	Done() error
}

type chunkPayload struct {
	Choices  []chunkChoice `json:"choices"`
	Model    string        `json:"model,omitempty"`
	Provider string        `json:"provider,omitempty"`
}

type chunkChoice struct {
	Delta chunkDelta `json:"delta"`
}

type chunkDelta struct {
	Content          string `json:"content,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

type statusPayload struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Server  string `json:"server,omitempty"`
}

type confirmationPayload struct {
	Type      string         `json:"type"`
	Prose     string         `json:"prose"`
	Server    string         `json:"server"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

type errorPayload struct {
	Type    string `json:"type"`
	Kind    string `json:"kind"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
}

// SSEWriter streams turn events to an HTTP response as server-sent events.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter prepares the response for event streaming. The writer flushes
// after every event when the ResponseWriter supports it.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)
	return &SSEWriter{w: w, flusher: flusher}
}

func (s *SSEWriter) writeEvent(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

func (s *SSEWriter) SendChunk(content, reasoning, model, providerName string) error {
	return s.writeEvent(chunkPayload{
		Choices:  []chunkChoice{{Delta: chunkDelta{Content: content, ReasoningContent: reasoning}}},
		Model:    model,
		Provider: providerName,
	})
}

func (s *SSEWriter) SendStatus(event mcp.StatusEvent) error {
	return s.writeEvent(statusPayload{
		Type:    "mcp_status",
		Status:  event.Status,
		Message: event.Message,
		Server:  event.Server,
	})
}

func (s *SSEWriter) SendConfirmation(prose, server, tool string, args map[string]any) error {
	return s.writeEvent(confirmationPayload{
		Type:      "tool_confirmation",
		Prose:     prose,
		Server:    server,
		Tool:      tool,
		Arguments: args,
	})
}

func (s *SSEWriter) SendError(perr *provider.Error) error {
	return s.writeEvent(errorPayload{
		Type:    "error",
		Kind:    string(perr.Kind),
		Status:  perr.Status,
		Message: perr.Message,
	})
}

// Done terminates the turn's stream from the caller's perspective.
func (s *SSEWriter) Done() error {
	if _, err := io.WriteString(s.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// ConsoleSink prints turn events to a terminal for the CLI chat loop.
type ConsoleSink struct {
	Out io.Writer
}

func (c *ConsoleSink) SendChunk(content, reasoning, model, providerName string) error {
	if content == "" {
		return nil
	}
	_, err := io.WriteString(c.Out, content)
	return err
}

func (c *ConsoleSink) SendStatus(event mcp.StatusEvent) error {
	_, err := fmt.Fprintf(c.Out, "\n[%s] %s\n", event.Status, event.Message)
	return err
}

func (c *ConsoleSink) SendConfirmation(prose, server, tool string, args map[string]any) error {
	argsJSON, _ := json.MarshalIndent(args, "", "  ")
	_, err := fmt.Fprintf(c.Out, "\n\nTool call pending confirmation: %s on server %s\n%s\n", tool, server, argsJSON)
	return err
}

func (c *ConsoleSink) SendError(perr *provider.Error) error {
	_, err := fmt.Fprintf(c.Out, "\nError: %s\n", perr.Message)
	return err
}

func (c *ConsoleSink) Done() error {
	_, err := fmt.Fprintln(c.Out)
	return err
}
