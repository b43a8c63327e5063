// Package chat sequences one chat turn: stream the assistant reply, detect
// an embedded tool call, gate execution behind confirmation, and persist the
// conversation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/luohy15/y-gui-sub000/src/chattype"
	"github.com/luohy15/y-gui-sub000/src/metrics"
	"github.com/luohy15/y-gui-sub000/src/provider"
	"github.com/luohy15/y-gui-sub000/src/toolparse"
)

// ChatStore persists whole chat documents, last-writer-wins.
type ChatStore interface {
	GetOrCreateChat(ctx context.Context, id string) (*chattype.Chat, error)
	SaveChat(ctx context.Context, chat *chattype.Chat) error
}

// ToolRunner executes tools and renders the cached catalog prompt.
// Satisfied by *mcp.Manager.
type ToolRunner interface {
	ExecuteTool(ctx context.Context, serverName, toolName string, args map[string]any) string
	RenderToolsPrompt(ctx context.Context) string
}

// Stream is a forward-only fragment sequence ending in io.EOF.
type Stream interface {
	Recv() (*provider.Fragment, error)
	Close() error
}

// StreamClient opens one streaming completion request.
type StreamClient interface {
	ChatStream(ctx context.Context, messages []chattype.Message, systemPrompt string) (Stream, error)
}

// ClientFactory builds a stream client for a bot config.
type ClientFactory func(bot chattype.BotConfig) StreamClient

// NewProviderFactory returns the production factory backed by the provider
// package.
func NewProviderFactory(logger *slog.Logger) ClientFactory {
	return func(bot chattype.BotConfig) StreamClient {
		return providerAdapter{client: provider.NewClient(bot, logger)}
	}
}

type providerAdapter struct {
	client *provider.Client
}

func (a providerAdapter) ChatStream(ctx context.Context, messages []chattype.Message, systemPrompt string) (Stream, error) {
	stream, err := a.client.ChatStream(ctx, messages, systemPrompt)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// Orchestrator drives chat turns. One invocation exclusively owns its chat;
// no concurrent turns per chat are supported.
type Orchestrator struct {
	chats     ChatStore
	tools     ToolRunner
	newClient ClientFactory
	logger    *slog.Logger
}

// OrchestratorConfig holds dependencies for a new Orchestrator.
type OrchestratorConfig struct {
	Chats     ChatStore
	Tools     ToolRunner
	NewClient ClientFactory
	Logger    *slog.Logger
}

// NewOrchestrator creates a chat turn orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		chats:     cfg.Chats,
		tools:     cfg.Tools,
		newClient: cfg.NewClient,
		logger:    logger.With("component", "orchestrator"),
	}
}

// InitializeChat fetches or creates the chat (creation is in-memory only)
// and builds the system prompt from the persona template plus the cached
// tools catalog.
func (o *Orchestrator) InitializeChat(ctx context.Context, id string) (*chattype.Chat, string, error) {
	chat, err := o.chats.GetOrCreateChat(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load chat: %w", err)
	}
	return chat, BuildSystemPrompt(o.tools.RenderToolsPrompt(ctx)), nil
}

// ProcessUserMessage appends the user message and runs one turn: stream the
// reply, forward fragments to the sink, detect a tool call, persist. A
// provider failure is absorbed into a persisted error turn and returns nil.
func (o *Orchestrator) ProcessUserMessage(ctx context.Context, chat *chattype.Chat, bot *chattype.BotConfig, systemPrompt string, msg chattype.Message, sink Sink) error {
	if msg.ParentID == "" && len(chat.Messages) > 0 {
		msg.ParentID = chat.Messages[len(chat.Messages)-1].ID
	}
	chat.Messages = append(chat.Messages, msg)
	return o.runTurn(ctx, chat, chat.Messages, bot, systemPrompt, sink)
}

// ConfirmToolUse executes an approved tool call and feeds its result back
// into the conversation as a synthetic user turn, re-entering the same turn
// pipeline for the follow-up assistant reply.
func (o *Orchestrator) ConfirmToolUse(ctx context.Context, chat *chattype.Chat, bot *chattype.BotConfig, systemPrompt, server, tool string, args map[string]any, sink Sink) error {
	result := o.tools.ExecuteTool(ctx, server, tool, args)
	return o.ProcessUserMessage(ctx, chat, bot, systemPrompt, chattype.NewToolResultMessage(server, result), sink)
}

// Refresh regenerates the assistant reply after the user message at
// targetUnix. The model sees only the history up to that point, but the new
// reply is appended to the full chat as a sibling of the reply it
// supersedes: the old branch stays in the stored forest and the new one
// becomes selected.
func (o *Orchestrator) Refresh(ctx context.Context, chat *chattype.Chat, bot *chattype.BotConfig, systemPrompt string, targetUnix int64, sink Sink) error {
	working := chat.TruncateAfter(targetUnix)
	return o.runTurn(ctx, chat, working.Messages, bot, systemPrompt, sink)
}

// runTurn streams one assistant reply against history and appends it to
// chat. The two differ only during a refresh, where history is a truncated
// view of the same conversation.
func (o *Orchestrator) runTurn(ctx context.Context, chat *chattype.Chat, history []chattype.Message, bot *chattype.BotConfig, systemPrompt string, sink Sink) error {
	metrics.Global().ChatTurns.Inc()

	parentID := ""
	if n := len(history); n > 0 {
		parentID = history[n-1].ID
	}

	text, reasoning, model, providerName, streamErr := o.streamReply(ctx, history, bot, systemPrompt, sink)
	if streamErr != nil && text == "" {
		return o.finishWithError(ctx, chat, parentID, streamErr, sink)
	}
	if model == "" {
		model = bot.Model
	}

	assistant := chattype.NewAssistantMessage(text, model, providerName)
	assistant.ParentID = parentID
	assistant.ReasoningContent = reasoning

	var call *toolparse.ToolCall
	prose, block := toolparse.SplitContent(text)
	if block != "" {
		// A nil extraction means malformed markup; the block stays in the
		// message as ordinary prose, tags and all.
		call = toolparse.ExtractToolCall(block)
	}
	if call != nil {
		assistant.Content = chattype.Content{chattype.NewTextBlock(prose)}
		assistant.Tool = call.Tool
		assistant.Server = call.Server
		assistant.Arguments = call.Arguments
	}
	chat.Messages = append(chat.Messages, assistant)
	chat.SelectedMessageID = assistant.ID

	if call != nil {
		if err := sink.SendConfirmation(prose, call.Server, call.Tool, call.Arguments); err != nil {
			o.logger.Warn("failed to send confirmation event", "error", err)
		}
	}
	if streamErr != nil {
		// The stream died mid-reply; the partial text above is persisted
		// as-is and the failure is still reported.
		if err := sink.SendError(asProviderError(streamErr)); err != nil {
			o.logger.Warn("failed to send error event", "error", err)
		}
	}

	if err := o.chats.SaveChat(ctx, chat); err != nil {
		sink.Done()
		return fmt.Errorf("failed to persist chat: %w", err)
	}
	return sink.Done()
}

// finishWithError converts a provider failure into a persisted assistant
// turn so the chat always ends in a consistent stored state.
func (o *Orchestrator) finishWithError(ctx context.Context, chat *chattype.Chat, parentID string, streamErr error, sink Sink) error {
	perr := asProviderError(streamErr)
	o.logger.Error("provider stream failed", "kind", perr.Kind, "status", perr.Status, "message", perr.Message)

	msg := chattype.NewAssistantMessage("Error: "+perr.Message, "error", "system")
	msg.ParentID = parentID
	chat.Messages = append(chat.Messages, msg)
	chat.SelectedMessageID = msg.ID

	if err := sink.SendError(perr); err != nil {
		o.logger.Warn("failed to send error event", "error", err)
	}
	if err := o.chats.SaveChat(ctx, chat); err != nil {
		sink.Done()
		return fmt.Errorf("failed to persist chat: %w", err)
	}
	return sink.Done()
}

// streamReply streams the model's reply, forwarding each fragment to the
// sink as it arrives and accumulating the full text. On a mid-stream error
// the text gathered so far is returned alongside the error.
func (o *Orchestrator) streamReply(ctx context.Context, history []chattype.Message, bot *chattype.BotConfig, systemPrompt string, sink Sink) (text, reasoning, model, providerName string, err error) {
	stream, err := o.newClient(*bot).ChatStream(ctx, history, systemPrompt)
	if err != nil {
		metrics.Global().ProviderErrors.WithLabelValues(string(asProviderError(err).Kind)).Inc()
		return "", "", "", "", err
	}
	defer stream.Close()

	var content, reasoningBuf strings.Builder
	for {
		frag, rerr := stream.Recv()
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			metrics.Global().ProviderErrors.WithLabelValues(string(asProviderError(rerr).Kind)).Inc()
			return content.String(), reasoningBuf.String(), model, providerName, rerr
		}

		metrics.Global().StreamFragments.Inc()
		if model == "" {
			model = frag.Model
		}
		if providerName == "" {
			providerName = frag.Provider
		}
		content.WriteString(frag.Content)
		reasoningBuf.WriteString(frag.ReasoningContent)

		if serr := sink.SendChunk(frag.Content, frag.ReasoningContent, frag.Model, frag.Provider); serr != nil {
			// The sink went away; abandon the stream but keep what arrived.
			return content.String(), reasoningBuf.String(), model, providerName,
				fmt.Errorf("output sink closed: %w", serr)
		}
	}
	return content.String(), reasoningBuf.String(), model, providerName, nil
}

func asProviderError(err error) *provider.Error {
	var perr *provider.Error
	if errors.As(err, &perr) {
		return perr
	}
	return &provider.Error{Kind: provider.KindUnknown, Message: err.Error()}
}
