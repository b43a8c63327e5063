package main

import (
	"context"
	"fmt"
)

// BotsCmd manages bot configurations.
type BotsCmd struct {
	List BotsListCmd `cmd:"" help:"List configured bots, defaults included"`
}

// BotsListCmd lists bots.
type BotsListCmd struct{}

func (c *BotsListCmd) Run(cli *CLI) error {
	a, err := buildApp(cli, nil)
	if err != nil {
		return err
	}
	defer a.close()

	bots, err := a.listBots(context.Background())
	if err != nil {
		return err
	}
	for _, b := range bots {
		fmt.Printf("%s\t%s", b.Name, b.Model)
		if len(b.McpServers) > 0 {
			fmt.Printf("\tmcp: %v", b.McpServers)
		}
		fmt.Println()
	}
	return nil
}
