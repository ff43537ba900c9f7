package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/buzzbuster/antispam/internal/adapters/store"
	"github.com/buzzbuster/antispam/internal/core"
)

func TestGroupRegistryAddRemove(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	require.NoError(t, r.groups.Add(ctx, 100))
	assert.True(t, r.groups.IsConfigured(100))
	assert.Equal(t, 1, r.groups.Count())

	require.NoError(t, r.groups.Remove(ctx, 100))
	assert.False(t, r.groups.IsConfigured(100))
	assert.Equal(t, 0, r.groups.Count())
}

func TestGroupRegistryLoadFromStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.AddGroup(ctx, 100))
	require.NoError(t, st.SetSetting(ctx, 100, "instructions", "no invite links"))

	registry := core.NewGroupRegistry(st, zap.NewNop())
	require.NoError(t, registry.Load(ctx))

	cfg, ok := registry.Config(100)
	require.True(t, ok)
	assert.Equal(t, "no invite links", cfg.Instructions("fallback"))
}

func TestGroupRegistryInstructionsFallback(t *testing.T) {
	r := newRig(t, 100)

	cfg, ok := r.groups.Config(100)
	require.True(t, ok)
	assert.Equal(t, "fallback", cfg.Instructions("fallback"))

	require.NoError(t, r.groups.SetSetting(context.Background(), 100, "instructions", "be strict"))
	cfg, _ = r.groups.Config(100)
	assert.Equal(t, "be strict", cfg.Instructions("fallback"))
}

func TestGroupRegistryMigrateKeepsSettingsAndEntries(t *testing.T) {
	r := newRig(t, 100)
	ctx := context.Background()

	require.NoError(t, r.groups.SetSetting(ctx, 100, "instructions", "no spam"))
	r.repo.MarkSpammer(ctx, 1, 100)

	require.NoError(t, r.groups.Migrate(ctx, 100, 500))

	assert.False(t, r.groups.IsConfigured(100))
	assert.True(t, r.groups.IsConfigured(500))
	cfg, _ := r.groups.Config(500)
	assert.Equal(t, "no spam", cfg.Instructions(""))

	// The user entry followed the group id.
	flagged, err := r.store.GroupsWithSpamFlag(ctx, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{500}, flagged)
}

func TestGroupRegistryLoadFailsWhenStoreDown(t *testing.T) {
	st := store.NewMemoryStore()
	st.SetUnavailable(true)
	registry := core.NewGroupRegistry(st, zap.NewNop())

	assert.Error(t, registry.Load(context.Background()))
}
