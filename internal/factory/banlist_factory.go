package factory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/buzzbuster/antispam/internal/adapters/cas"
	"github.com/buzzbuster/antispam/internal/config"
	"github.com/buzzbuster/antispam/internal/core"
)

// BanListFactory creates the external known-abuser lookup
type BanListFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewBanListFactory creates a new ban-list factory
func NewBanListFactory(cfg *config.Config, logger *zap.Logger) *BanListFactory {
	return &BanListFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateBanList creates a ban-list lookup based on the configuration
func (f *BanListFactory) CreateBanList() (core.BanList, error) {
	banlistCfg := f.cfg.GetBanList()

	switch banlistCfg.Provider {
	case "cas":
		timeout, err := f.cfg.GetDuration("banlist.timeout")
		if err != nil {
			return nil, fmt.Errorf("invalid ban-list timeout: %w", err)
		}
		return cas.NewBanList(banlistCfg.BaseURL, timeout, banlistCfg.RetryMax, f.logger), nil
	case "disabled":
		f.logger.Info("Ban-list lookup disabled")
		return disabledBanList{}, nil
	default:
		return nil, fmt.Errorf("unsupported ban-list provider: %s", banlistCfg.Provider)
	}
}

// disabledBanList never flags anyone.
type disabledBanList struct{}

func (disabledBanList) IsKnownAbuser(ctx context.Context, userID int64) (bool, error) {
	return false, nil
}
