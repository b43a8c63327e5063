package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luohy15/y-gui-sub000/src/chat"
	"github.com/luohy15/y-gui-sub000/src/chattype"
	"github.com/luohy15/y-gui-sub000/src/mcp"
)

// ServeCmd runs the HTTP chat server.
type ServeCmd struct {
	Listen string `help:"Listen address (overrides config)"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	a, err := buildApp(cli, nil)
	if err != nil {
		return err
	}
	defer a.close()

	listen := c.Listen
	if listen == "" {
		listen = a.cfg.Listen
	}

	srv := &server{app: a}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", srv.handleChat)
	mux.HandleFunc("POST /api/chat/confirm", srv.handleConfirm)
	mux.HandleFunc("POST /api/chat/refresh", srv.handleRefresh)
	mux.HandleFunc("GET /api/chats", srv.handleListChats)
	mux.HandleFunc("GET /api/bots", srv.handleListBots)
	mux.Handle("GET /metrics", promhttp.Handler())

	a.logger.Info("listening", "addr", listen)
	return http.ListenAndServe(listen, mux)
}

type server struct {
	app *app
}

type chatRequest struct {
	ChatID  string `json:"chat_id"`
	Bot     string `json:"bot"`
	Content string `json:"content"`
}

type confirmRequest struct {
	ChatID    string         `json:"chat_id"`
	Bot       string         `json:"bot"`
	Server    string         `json:"server"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

type refreshRequest struct {
	ChatID     string `json:"chat_id"`
	Bot        string `json:"bot"`
	TargetUnix int64  `json:"target_unix"`
}

// turn bundles the per-request pipeline: its own orchestrator and connection
// manager, with status events routed to the request's SSE sink.
type turn struct {
	conversation *chattype.Chat
	bot          *chattype.BotConfig
	systemPrompt string
	sink         *chat.SSEWriter
	orch         *chat.Orchestrator
	manager      *mcp.Manager
}

func (t *turn) finish() {
	t.manager.Disconnect()
}

// beginTurn resolves the bot, builds the request's own orchestrator and
// initializes the chat plus its system prompt; errors are reported before
// streaming starts.
func (s *server) beginTurn(w http.ResponseWriter, r *http.Request, chatID, botName string) (*turn, bool) {
	bot, err := s.app.resolveBot(r.Context(), botName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	sink := chat.NewSSEWriter(w)
	orch, manager := s.app.newTurnOrchestrator(func(event mcp.StatusEvent) {
		sink.SendStatus(event)
	})

	conversation, systemPrompt, err := orch.InitializeChat(r.Context(), chatID)
	if err != nil {
		manager.Disconnect()
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return &turn{
		conversation: conversation,
		bot:          bot,
		systemPrompt: systemPrompt,
		sink:         sink,
		orch:         orch,
		manager:      manager,
	}, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tn, ok := s.beginTurn(w, r, req.ChatID, req.Bot)
	if !ok {
		return
	}
	defer tn.finish()

	err := tn.orch.ProcessUserMessage(r.Context(), tn.conversation, tn.bot, tn.systemPrompt, chattype.NewUserMessage(req.Content), tn.sink)
	if err != nil {
		s.app.logger.Error("chat turn failed", "chat", tn.conversation.ID, "error", err)
	}
}

func (s *server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tn, ok := s.beginTurn(w, r, req.ChatID, req.Bot)
	if !ok {
		return
	}
	defer tn.finish()

	err := tn.orch.ConfirmToolUse(r.Context(), tn.conversation, tn.bot, tn.systemPrompt, req.Server, req.Tool, req.Arguments, tn.sink)
	if err != nil {
		s.app.logger.Error("tool confirmation failed", "chat", tn.conversation.ID, "error", err)
	}
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tn, ok := s.beginTurn(w, r, req.ChatID, req.Bot)
	if !ok {
		return
	}
	defer tn.finish()

	err := tn.orch.Refresh(r.Context(), tn.conversation, tn.bot, tn.systemPrompt, req.TargetUnix, tn.sink)
	if err != nil {
		s.app.logger.Error("refresh failed", "chat", tn.conversation.ID, "error", err)
	}
}

func (s *server) handleListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.app.db.ListChats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chats)
}

func (s *server) handleListBots(w http.ResponseWriter, r *http.Request) {
	bots, err := s.app.listBots(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// Keys stay out of listing responses.
	for i := range bots {
		bots[i].APIKey = ""
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(bots)
}
