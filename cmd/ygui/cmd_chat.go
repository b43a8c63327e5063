package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/luohy15/y-gui-sub000/src/chat"
	"github.com/luohy15/y-gui-sub000/src/chattype"
	"github.com/luohy15/y-gui-sub000/src/mcp"
)

// ChatCmd runs an interactive chat loop in the terminal.
type ChatCmd struct {
	Bot    string `default:"free" help:"Bot to chat with"`
	ChatID string `help:"Resume an existing chat by id"`
}

func (c *ChatCmd) Run(cli *CLI) error {
	sink := &chat.ConsoleSink{Out: os.Stdout}

	a, err := buildApp(cli, func(event mcp.StatusEvent) {
		sink.SendStatus(event)
	})
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()

	bot, err := a.resolveBot(ctx, c.Bot)
	if err != nil {
		return err
	}

	conversation, systemPrompt, err := a.orchestrator.InitializeChat(ctx, c.ChatID)
	if err != nil {
		return err
	}

	fmt.Printf("Chatting with %s (%s). Ctrl-D to exit.\n", bot.Name, bot.Model)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		err := a.orchestrator.ProcessUserMessage(ctx, conversation, bot, systemPrompt, chattype.NewUserMessage(line), sink)
		if err != nil {
			return err
		}

		if err := c.handlePendingToolCalls(ctx, a, conversation, bot, systemPrompt, sink, scanner); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// handlePendingToolCalls walks the confirmation gate after each turn: tools
// on the server's allow-list run without asking, everything else prompts.
// A confirmed tool re-enters the turn pipeline, which may request another
// tool, so this loops until the last assistant message carries no call.
func (c *ChatCmd) handlePendingToolCalls(ctx context.Context, a *app, conversation *chattype.Chat, bot *chattype.BotConfig, systemPrompt string, sink chat.Sink, scanner *bufio.Scanner) error {
	for {
		if len(conversation.Messages) == 0 {
			return nil
		}
		last := conversation.Messages[len(conversation.Messages)-1]
		if last.Role != chattype.RoleAssistant || last.Tool == "" {
			return nil
		}
		if !bot.AllowsServer(last.Server) {
			fmt.Printf("Bot '%s' is not allowed to use server '%s'; skipping.\n", bot.Name, last.Server)
			return nil
		}

		if !c.toolAllowed(ctx, a, last.Server, last.Tool) {
			fmt.Print("Run this tool? [y/N] ")
			if !scanner.Scan() {
				return scanner.Err()
			}
			answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
			if answer != "y" && answer != "yes" {
				fmt.Println("Skipped.")
				return nil
			}
		}

		err := a.orchestrator.ConfirmToolUse(ctx, conversation, bot, systemPrompt, last.Server, last.Tool, last.Arguments, sink)
		if err != nil {
			return err
		}
	}
}

func (c *ChatCmd) toolAllowed(ctx context.Context, a *app, server, tool string) bool {
	cfg, err := a.servers.GetMcpServer(ctx, server)
	if err != nil || cfg == nil {
		return false
	}
	return cfg.ToolAllowed(tool)
}
