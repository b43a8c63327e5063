package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/luohy15/y-gui-sub000/src/config"
	"github.com/luohy15/y-gui-sub000/src/storage"
)

// MigrateCmd opens the database, applying any pending migrations.
type MigrateCmd struct {
	DBPath string `help:"Database path (defaults to config)"`
}

func (c *MigrateCmd) Run(cli *CLI) error {
	dbPath := c.DBPath
	if dbPath == "" {
		loader := config.NewLoader(config.GetConfigPaths())
		cfg, err := loader.Load()
		if err != nil {
			return err
		}
		if cli.Database != "" {
			cfg.Database = cli.Database
		}
		dbPath = cfg.Database
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := storage.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	fmt.Printf("Database ready: %s\n", dbPath)
	return nil
}
