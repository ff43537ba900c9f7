package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/buzzbuster/antispam/internal/adapters/telegram"
	"github.com/buzzbuster/antispam/internal/admin"
	"github.com/buzzbuster/antispam/internal/config"
	"github.com/buzzbuster/antispam/internal/core"
	"github.com/buzzbuster/antispam/internal/factory"
	"github.com/buzzbuster/antispam/internal/heuristics"
	"github.com/buzzbuster/antispam/internal/logging"
	"github.com/buzzbuster/antispam/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewClassifierFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewBanListFactory); err != nil {
		return nil, err
	}

	// Register persistence backend and its two facets
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

	// Register state cache
	if err := container.Provide(func(cfg *config.Config, s core.Store, logger *zap.Logger) (*core.StateCache, error) {
		window, err := cfg.GetDuration("spam.spammer_window")
		if err != nil {
			return nil, err
		}
		return core.NewStateCache(s, logger, window), nil
	}); err != nil {
		return nil, err
	}

	// Register repository
	if err := container.Provide(core.NewUserStateRepository); err != nil {
		return nil, err
	}
	if err := container.Provide(func(r *core.UserStateRepository) core.Repository { return r }); err != nil {
		return nil, err
	}

	// Register group registry
	if err := container.Provide(core.NewGroupRegistry); err != nil {
		return nil, err
	}

	// Register classifier
	if err := container.Provide(func(f *factory.ClassifierFactory) (core.Classifier, error) {
		return f.CreateClassifier()
	}); err != nil {
		return nil, err
	}

	// Register ban list
	if err := container.Provide(func(f *factory.BanListFactory) (core.BanList, error) {
		return f.CreateBanList()
	}); err != nil {
		return nil, err
	}

	// Register heuristics
	if err := container.Provide(func(cfg *config.Config, profiles core.ProfileSource, logger *zap.Logger, tp *utils.TextProcessor) []core.Heuristic {
		var hs []core.Heuristic
		if cfg.GetBool("spam.heuristics.bio_invite_links") {
			hs = append(hs, heuristics.NewBioInviteLinks(profiles, logger, tp))
		}
		if cfg.GetBool("spam.heuristics.channel_messages") {
			hs = append(hs, heuristics.NewChannelMessages(logger))
		}
		return hs
	}); err != nil {
		return nil, err
	}

	// Register Telegram transport
	if err := container.Provide(telegram.NewPeerCache); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config, peers *telegram.PeerCache, logger *zap.Logger) (*telegram.Bot, error) {
		tgCfg := cfg.GetTelegram()
		return telegram.NewBot(tgCfg.AppID, tgCfg.AppHash, tgCfg.BotToken, tgCfg.SessionPath, peers, logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(b *telegram.Bot, peers *telegram.PeerCache, logger *zap.Logger) *telegram.Platform {
		return telegram.NewPlatform(b.API(), peers, logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(p *telegram.Platform) core.Platform { return p }); err != nil {
		return nil, err
	}
	if err := container.Provide(func(b *telegram.Bot, peers *telegram.PeerCache, logger *zap.Logger) *telegram.Profiles {
		return telegram.NewProfiles(b.API(), peers, logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(p *telegram.Profiles) core.ProfileSource { return p }); err != nil {
		return nil, err
	}

	// Register status notifier and reporter
	if err := container.Provide(func(cfg *config.Config, p *telegram.Platform, logger *zap.Logger) logging.StatusNotifier {
		return telegram.NewStatusNotifier(p, cfg.GetTelegram().StatusChatID, logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(logging.NewEventReporter); err != nil {
		return nil, err
	}
	if err := container.Provide(func(r *logging.EventReporter) core.Reporter { return r }); err != nil {
		return nil, err
	}

	// Register membership state machine
	if err := container.Provide(core.NewMembership); err != nil {
		return nil, err
	}

	// Register classification pipeline
	if err := container.Provide(func(
		repo core.Repository,
		classifier core.Classifier,
		platform core.Platform,
		reporter core.Reporter,
		groups *core.GroupRegistry,
		hs []core.Heuristic,
		cfg *config.Config,
		tp *utils.TextProcessor,
		logger *zap.Logger,
	) *core.Pipeline {
		// Instructions are operator-supplied text headed into an LLM prompt;
		// bound their size.
		instructions := tp.ProcessText(
			cfg.GetString("spam.default_instructions"),
			cfg.GetInt("spam.instructions_length_limit"))
		return core.NewPipeline(
			repo,
			classifier,
			platform,
			reporter,
			groups,
			hs,
			instructions,
			logger,
		)
	}); err != nil {
		return nil, err
	}

	// Register admin service
	if err := container.Provide(admin.NewService); err != nil {
		return nil, err
	}

	return container, nil
}
