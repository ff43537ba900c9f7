package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/buzzbuster/antispam/internal/adapters/store"
	"github.com/buzzbuster/antispam/internal/config"
	"github.com/buzzbuster/antispam/internal/core"
)

// Backing is the full persistence surface one backend provides: the
// per-user entry table plus the group registry.
type Backing interface {
	core.Store
	core.GroupStore
}

// StoreFactory creates persistence backends based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateStore creates a persistence backend based on the configuration
func (f *StoreFactory) CreateStore() (Backing, error) {
	storeType := f.cfg.GetString("store.type")

	switch storeType {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		sqlitePath := f.cfg.GetString("store.sqlite_path")
		if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return store.NewSQLiteStore(sqlitePath, f.logger)
	case "mysql":
		mysqlDSN := f.cfg.GetString("store.mysql_dsn")
		return store.NewMySQLStore(mysqlDSN, f.logger)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeType)
	}
}
