package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/indicator-client/internal/app"
	"github.com/samvad-hq/indicator-client/internal/config"
	"github.com/samvad-hq/indicator-client/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "indicator runner start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("indicator runner starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := app.NewRunner(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize runner", "error", err)
		return err
	}

	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("runner run: %w", err)
	}

	return nil
}
