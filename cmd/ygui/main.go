package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

// CLI is the top-level command structure.
type CLI struct {
	Database string `help:"Override the sqlite database path"`
	LogLevel string `help:"Log level (debug|info|warn|error)"`

	Chat    ChatCmd    `cmd:"" help:"Interactive chat in the terminal"`
	Serve   ServeCmd   `cmd:"" help:"Run the HTTP chat server"`
	Mcp     McpCmd     `cmd:"" help:"MCP server catalog management"`
	Bots    BotsCmd    `cmd:"" help:"Bot configuration management"`
	Migrate MigrateCmd `cmd:"" help:"Open the database and apply pending migrations"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("ygui"),
		kong.Description("Chat assistant with MCP tool orchestration"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	err := ctx.Run(&cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
