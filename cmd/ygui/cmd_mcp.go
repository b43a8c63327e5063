package main

import (
	"context"
	"fmt"

	"github.com/luohy15/y-gui-sub000/src/mcp"
)

// McpCmd manages the MCP server catalog.
type McpCmd struct {
	List    McpListCmd    `cmd:"" help:"List configured MCP servers and their cached tools"`
	Refresh McpRefreshCmd `cmd:"" help:"Refresh the tool catalog for one or all servers"`
}

// McpListCmd lists configured servers and their cache state.
type McpListCmd struct{}

func (c *McpListCmd) Run(cli *CLI) error {
	a, err := buildApp(cli, nil)
	if err != nil {
		return err
	}
	defer a.close()

	servers, err := a.servers.ListMcpServers(context.Background())
	if err != nil {
		return err
	}
	if len(servers) == 0 {
		fmt.Println("No MCP servers configured.")
		return nil
	}

	for _, s := range servers {
		status := s.Status
		if status == "" {
			status = "pending"
		}
		fmt.Printf("%s\t%s\t%d tools", s.Name, status, len(s.Tools))
		if s.ErrorMessage != "" {
			fmt.Printf("\t(%s)", s.ErrorMessage)
		}
		fmt.Println()
		for _, t := range s.Tools {
			fmt.Printf("  %s\t%s\n", t.Name, t.Description)
		}
	}
	return nil
}

// McpRefreshCmd refreshes the cached tool catalog.
type McpRefreshCmd struct {
	Server string `arg:"" optional:"" help:"Refresh only this server"`
}

func (c *McpRefreshCmd) Run(cli *CLI) error {
	a, err := buildApp(cli, func(event mcp.StatusEvent) {
		if event.Server != "" {
			fmt.Printf("[%s] %s\n", event.Status, event.Message)
		} else {
			fmt.Println(event.Message)
		}
	})
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	if c.Server != "" {
		a.manager.ListTools(ctx, c.Server)
		return nil
	}
	a.manager.RefreshAll(ctx)
	return nil
}
