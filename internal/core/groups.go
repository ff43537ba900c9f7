package core

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// GroupRegistry is the in-memory mirror of the configured-group table. The
// pipeline reads it on every message; onboarding, offboarding and settings
// changes flow through it so the mirror never drifts from the store.
type GroupRegistry struct {
	store  GroupStore
	logger *zap.Logger

	mu     sync.RWMutex
	groups map[int64]GroupConfig
}

// NewGroupRegistry creates an empty registry. Call Load before serving events.
func NewGroupRegistry(store GroupStore, logger *zap.Logger) *GroupRegistry {
	return &GroupRegistry{
		store:  store,
		logger: logger,
		groups: make(map[int64]GroupConfig),
	}
}

// Load bulk-loads configured groups from the store. A failure here is a
// startup failure.
func (r *GroupRegistry) Load(ctx context.Context) error {
	groups, err := r.store.LoadGroups(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups = make(map[int64]GroupConfig, len(groups))
	for _, g := range groups {
		r.groups[g.GroupID] = g
	}
	r.logger.Debug("Configured groups loaded", zap.Int("count", len(groups)))
	return nil
}

// IsConfigured reports whether the engine moderates the group.
func (r *GroupRegistry) IsConfigured(groupID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.groups[groupID]
	return ok
}

// Config returns the group's configuration and whether the group is
// configured at all.
func (r *GroupRegistry) Config(groupID int64) (GroupConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[groupID]
	return g, ok
}

// Add onboards a group: persists it and mirrors it in memory.
func (r *GroupRegistry) Add(ctx context.Context, groupID int64) error {
	if err := r.store.AddGroup(ctx, groupID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[groupID]; !ok {
		r.groups[groupID] = GroupConfig{GroupID: groupID, Settings: map[string]string{}}
	}
	return nil
}

// Remove offboards a group, deleting its settings with it.
func (r *GroupRegistry) Remove(ctx context.Context, groupID int64) error {
	if err := r.store.RemoveGroup(ctx, groupID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.groups, groupID)
	return nil
}

// SetSetting updates one settings key for a configured group.
func (r *GroupRegistry) SetSetting(ctx context.Context, groupID int64, key, value string) error {
	if err := r.store.SetSetting(ctx, groupID, key, value); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[groupID]
	if !ok {
		g = GroupConfig{GroupID: groupID, Settings: map[string]string{}}
	}
	if g.Settings == nil {
		g.Settings = map[string]string{}
	}
	g.Settings[key] = value
	r.groups[groupID] = g
	return nil
}

// Migrate rewrites a group id after the platform migrates the chat to a new
// id, keeping data continuity for settings and user entries.
func (r *GroupRegistry) Migrate(ctx context.Context, oldID, newID int64) error {
	if err := r.store.MigrateGroup(ctx, oldID, newID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.groups[oldID]; ok {
		delete(r.groups, oldID)
		g.GroupID = newID
		r.groups[newID] = g
	}
	r.logger.Info("Group id migrated",
		zap.Int64("old_group_id", oldID),
		zap.Int64("new_group_id", newID))
	return nil
}

// Count reports how many groups are configured, for diagnostics.
func (r *GroupRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups)
}
