package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/datacleaner/internal/config"
	"github.com/JonMunkholm/datacleaner/internal/core"
	"github.com/JonMunkholm/datacleaner/internal/logging"
	"github.com/JonMunkholm/datacleaner/internal/resource"
	"github.com/JonMunkholm/datacleaner/internal/sink"
	"github.com/JonMunkholm/datacleaner/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if info, err := resource.Snapshot(ctx, cfg.Output.Dir); err != nil {
		slog.Warn("system snapshot incomplete", "error", err)
	} else {
		slog.Info("system",
			"total_memory_gb", info.TotalMemoryGB,
			"available_memory_gb", info.AvailableMemoryGB,
			"disk_free_gb", info.DiskFreeGB,
			"go", info.GoVersion,
		)
	}

	opts, err := core.OptionsFromConfig(cfg)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if cfg.Database.URL != "" {
		pool, err := sink.OpenPool(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		opts.DB = pool
	}

	service := core.NewService(opts)
	server := web.NewServer(service, cfg)

	if err := server.Run(ctx); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
