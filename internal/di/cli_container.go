package di

import (
	"context"
	"flag"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/buzzbuster/antispam/internal/admin"
	"github.com/buzzbuster/antispam/internal/config"
	"github.com/buzzbuster/antispam/internal/core"
	"github.com/buzzbuster/antispam/internal/factory"
	"github.com/buzzbuster/antispam/internal/logging"
)

// CLIFlags contains all command line flags for the inspection tool
type CLIFlags struct {
	UserID  int64
	GroupID int64

	Verbose bool
	JSONLog bool
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}

	flag.Int64Var(&flags.UserID, "user", 0, "Telegram user id to operate on")
	flag.Int64Var(&flags.GroupID, "group", 0, "Telegram group id (force-ban only)")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")

	flag.Parse()
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container
// for the inspection tool. It shares the daemon's store and cache wiring but
// never opens a Telegram connection: enforcement side effects of CLI
// overrides land the next time the running daemon sees the user.
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register persistence backend
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.StoreFactory) (factory.Backing, error) {
		return f.CreateStore()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(b factory.Backing) core.Store { return b }); err != nil {
		return nil, err
	}
	if err := container.Provide(func(b factory.Backing) core.GroupStore { return b }); err != nil {
		return nil, err
	}

	// Register state cache and repository
	if err := container.Provide(func(cfg *config.Config, s core.Store, logger *zap.Logger) (*core.StateCache, error) {
		window, err := cfg.GetDuration("spam.spammer_window")
		if err != nil {
			return nil, err
		}
		return core.NewStateCache(s, logger, window), nil
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(core.NewUserStateRepository); err != nil {
		return nil, err
	}

	// Register group registry
	if err := container.Provide(core.NewGroupRegistry); err != nil {
		return nil, err
	}

	// Register offline platform: state changes persist, enforcement waits
	// for the daemon
	if err := container.Provide(func(logger *zap.Logger) core.Platform {
		return offlinePlatform{logger: logger}
	}); err != nil {
		return nil, err
	}

	// Register admin service
	if err := container.Provide(admin.NewService); err != nil {
		return nil, err
	}

	return container, nil
}

// offlinePlatform satisfies the platform port without a live connection.
type offlinePlatform struct {
	logger *zap.Logger
}

func (p offlinePlatform) BanMember(ctx context.Context, groupID, userID int64) error {
	p.logger.Info("No live connection; ban takes effect when the daemon next sees the user",
		zap.Int64("group_id", groupID),
		zap.Int64("user_id", userID))
	return nil
}

func (p offlinePlatform) DeleteMessage(ctx context.Context, groupID, messageID int64) error {
	return nil
}

func (p offlinePlatform) SendMessage(ctx context.Context, groupID int64, text string) error {
	return nil
}
