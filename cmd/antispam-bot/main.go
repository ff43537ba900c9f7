package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/buzzbuster/antispam/internal/adapters/telegram"
	"github.com/buzzbuster/antispam/internal/core"
	"github.com/buzzbuster/antispam/internal/di"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	bot *telegram.Bot,
	pipeline *core.Pipeline,
	membership *core.Membership,
	repo *core.UserStateRepository,
	groups *core.GroupRegistry,
	classifier core.Classifier,
	backing core.Store,
) error {
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Startup state must load before any update is handled; a daemon that
	// forgot its spammers would let them straight back in.
	if err := groups.Load(ctx); err != nil {
		logger.Error("Failed to load group registry", zap.Error(err))
		return err
	}
	if err := repo.Cache().WarmUp(ctx); err != nil {
		logger.Error("Failed to warm up state cache", zap.Error(err))
		return err
	}

	bot.Bind(pipeline, membership, groups)

	logger.Info("Starting antispam bot",
		zap.Int("groups", groups.Count()))

	err := bot.Run(ctx)
	if err != nil && ctx.Err() == nil {
		logger.Error("Telegram connection failed", zap.Error(err))
	}

	logger.Info("Shutting down...")

	// Close any resources that need closing
	if closer, ok := classifier.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close classifier", zap.Error(err))
		}
	}
	if closer, ok := backing.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close store", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete")
	return nil
}
