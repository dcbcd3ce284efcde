package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/datacleaner/internal/cli"
	"github.com/JonMunkholm/datacleaner/internal/config"
	"github.com/JonMunkholm/datacleaner/internal/core"
	"github.com/JonMunkholm/datacleaner/internal/logging"
	"github.com/JonMunkholm/datacleaner/internal/sink"
)

var version = "dev"

func main() {
	// A missing .env is fine; values already in the environment win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	opts, err := core.OptionsFromConfig(cfg)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if cfg.Database.URL != "" {
		pool, err := sink.OpenPool(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		opts.DB = pool
	}

	app := &cli.App{
		Config:  cfg,
		Service: core.NewService(opts),
		Version: version,
	}
	if err := cli.Execute(ctx, app, os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
