// Package provider streams chat completions from an OpenAI-compatible
// endpoint and translates HTTP failures into a small typed error taxonomy.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/luohy15/y-gui-sub000/src/chattype"
)

const (
	defaultAPIPath = "/chat/completions"

	// requestTimeout bounds the whole stream, measured from request start,
	// not time-to-first-byte.
	requestTimeout = 10 * time.Second
)

const donePayload = "[DONE]"

// Client issues streaming chat-completion requests for one bot config.
type Client struct {
	bot        chattype.BotConfig
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// NewClient creates a streaming client for the given bot. The bot's
// BaseURL/APIKey must already be resolved (free-tier fallback happens at
// config load, not here).
func NewClient(bot chattype.BotConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		bot:        bot,
		httpClient: &http.Client{},
		timeout:    requestTimeout,
		logger:     logger.With("component", "provider_client", "model", bot.Model),
	}
}

// ChatStream sends the conversation and returns a lazy fragment stream. The
// returned error is always a *Error from the taxonomy.
func (c *Client) ChatStream(ctx context.Context, messages []chattype.Message, systemPrompt string) (*Stream, error) {
	reqBody := chatRequest{
		Model:           c.bot.Model,
		Messages:        prepareMessages(messages, systemPrompt, c.bot.Model),
		Stream:          true,
		MaxTokens:       c.bot.MaxTokens,
		ReasoningEffort: c.bot.ReasoningEffort,
		Provider:        c.bot.Routing,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Message: fmt.Sprintf("failed to encode request: %v", err)}
	}

	path := c.bot.CustomAPIPath
	if path == "" {
		path = defaultAPIPath
	}
	url := strings.TrimSuffix(c.bot.BaseURL, "/") + path

	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, &Error{Kind: KindUnknown, Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.bot.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	c.logger.Debug("starting chat stream", "url", url, "messages", len(reqBody.Messages))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, timeoutError()
		}
		return nil, &Error{Kind: KindUnknown, Message: fmt.Sprintf("request failed: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		defer cancel()
		defer resp.Body.Close()
		perr := errorFromResponse(resp)
		c.logger.Warn("provider rejected stream request", "status", resp.StatusCode, "kind", perr.Kind)
		return nil, perr
	}

	return &Stream{
		ctx:    ctx,
		body:   resp.Body,
		cancel: cancel,
		logger: c.logger,
	}, nil
}

// Stream is a single-pass, forward-only sequence of response fragments.
type Stream struct {
	ctx    context.Context
	body   io.ReadCloser
	cancel context.CancelFunc
	events eventReader
	chunk  [4096]byte
	done   bool
	logger *slog.Logger
}

// Recv returns the next fragment. It returns io.EOF after the provider's
// end-of-stream sentinel; once the sentinel is seen no further fragments are
// yielded even if more bytes were buffered behind it.
func (s *Stream) Recv() (*Fragment, error) {
	if s.done {
		return nil, io.EOF
	}

	for {
		event, ok := s.events.Next()
		if !ok {
			n, err := s.body.Read(s.chunk[:])
			if n > 0 {
				s.events.Push(s.chunk[:n])
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					if event, ok := s.events.Flush(); ok {
						frag, done := s.decodeEvent(event)
						s.finish()
						if frag != nil && !done {
							return frag, nil
						}
						return nil, io.EOF
					}
					s.finish()
					return nil, io.EOF
				}
				// net/http does not always wrap the context error into the
				// read failure, so consult the request context directly.
				budgetHit := errors.Is(err, context.DeadlineExceeded) ||
					errors.Is(s.ctx.Err(), context.DeadlineExceeded)
				s.finish()
				if budgetHit {
					return nil, timeoutError()
				}
				return nil, &Error{Kind: KindUnknown, Message: fmt.Sprintf("stream read failed: %v", err)}
			}
			continue
		}

		frag, done := s.decodeEvent(event)
		if done {
			s.finish()
			return nil, io.EOF
		}
		if frag != nil {
			return frag, nil
		}
	}
}

// decodeEvent maps one SSE event onto a fragment. Events without a data
// line, keep-alives and malformed JSON payloads are skipped; the sentinel
// reports done.
func (s *Stream) decodeEvent(event string) (*Fragment, bool) {
	var payload string
	for _, line := range strings.Split(event, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, "data:") {
			payload = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			break
		}
	}
	if payload == "" {
		return nil, false
	}
	if payload == donePayload {
		return nil, true
	}

	var chunk streamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		s.logger.Debug("skipping malformed stream event", "error", err)
		return nil, false
	}

	if len(chunk.Choices) == 0 {
		return nil, false
	}
	delta := chunk.Choices[0].Delta
	if delta.Content == "" && delta.ReasoningContent == "" {
		return nil, false
	}

	return &Fragment{
		Content:          delta.Content,
		ReasoningContent: delta.ReasoningContent,
		Model:            chunk.Model,
		Provider:         chunk.Provider,
	}, false
}

// finish cancels the underlying request and marks the stream exhausted.
func (s *Stream) finish() {
	if s.done {
		return
	}
	s.done = true
	s.cancel()
	s.body.Close()
}

// Close releases the stream early. Safe to call more than once.
func (s *Stream) Close() error {
	s.finish()
	return nil
}
