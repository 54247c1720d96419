package main

import (
	"context"
	"fmt"

	"github.com/hiveforge/kernel/internal/adapter"
	"github.com/hiveforge/kernel/internal/config"
)

// openAdapter opens the backend cfg names directly, for short-lived CLI
// invocations that don't want to pay for a daemon round trip. Each
// command is responsible for closing the returned adapter.
func openAdapter(cfg *config.Config) (adapter.Adapter, error) {
	switch cfg.Backend {
	case "postgres":
		a, err := adapter.OpenPostgres(context.Background(), cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return a, nil
	default:
		a, err := adapter.OpenSQLite(context.Background(), cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return a, nil
	}
}
