package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kapu/greeting-push-go/internal/app"
	"github.com/kapu/greeting-push-go/internal/config"
	"github.com/kapu/greeting-push-go/internal/domain"
	"github.com/kapu/greeting-push-go/internal/util"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	// Initialize logger
	logger, err := util.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("Daily greeting starting...",
		zap.String("log_level", cfg.Logging.Level),
		zap.String("recipient_source", cfg.Run.RecipientSource),
		zap.Bool("dry_run", cfg.Run.DryRun),
	)

	// The whole run is bounded and stops on SIGINT/SIGTERM.
	signalCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(signalCtx, cfg.Run.Timeout)
	defer cancel()

	container, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to assemble application services", zap.Error(err))
		return 1
	}
	defer container.Close()

	report := container.Run(ctx)

	if report.AllFailed() {
		logger.Error("Greeting failed for every recipient",
			zap.Int("recipients", len(report.Recipients)),
			zap.Int("failed", report.Count(domain.DeliveryFailed)),
		)
		return 1
	}

	logger.Info("Daily greeting complete")
	return 0
}
