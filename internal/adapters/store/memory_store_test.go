package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buzzbuster/antispam/internal/core"
)

func TestMemoryStoreUpsertMergesFlags(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, st.UpsertEntry(ctx, core.UserGroupEntry{
		UserID: 1, GroupID: 100, JoinedAt: now, Seen: true,
	}))
	require.NoError(t, st.UpsertEntry(ctx, core.UserGroupEntry{
		UserID: 1, GroupID: 100, JoinedAt: now, Spammer: true,
	}))

	entry, err := st.Entry(ctx, 1, 100)
	require.NoError(t, err)
	assert.True(t, entry.Seen, "merge must not clobber seen back to false")
	assert.True(t, entry.Spammer)
}

func TestMemoryStoreEntryNotFound(t *testing.T) {
	st := NewMemoryStore()

	_, err := st.Entry(context.Background(), 1, 100)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMemoryStoreClearSpammerKeepsEntry(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.UpsertEntry(ctx, core.UserGroupEntry{
		UserID: 1, GroupID: 100, JoinedAt: time.Now(), Seen: true, Spammer: true,
	}))
	require.NoError(t, st.ClearSpammer(ctx, 1, 100))

	entry, err := st.Entry(ctx, 1, 100)
	require.NoError(t, err)
	assert.False(t, entry.Spammer)
	assert.True(t, entry.Seen)
}

func TestMemoryStoreLoadSpammersWindow(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, st.UpsertEntry(ctx, core.UserGroupEntry{
		UserID: 1, GroupID: 100, JoinedAt: now, Spammer: true,
	}))
	require.NoError(t, st.UpsertEntry(ctx, core.UserGroupEntry{
		UserID: 2, GroupID: 100, JoinedAt: now.Add(-48 * time.Hour), Spammer: true,
	}))

	ids, err := st.LoadSpammers(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1}, ids)
}

func TestMemoryStoreLoadPending(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, st.UpsertEntry(ctx, core.UserGroupEntry{UserID: 1, GroupID: 100, JoinedAt: now}))
	require.NoError(t, st.UpsertEntry(ctx, core.UserGroupEntry{UserID: 2, GroupID: 100, JoinedAt: now, Seen: true}))
	require.NoError(t, st.UpsertEntry(ctx, core.UserGroupEntry{UserID: 3, GroupID: 100, JoinedAt: now, Spammer: true}))

	ids, err := st.LoadPending(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1}, ids)
}

func TestMemoryStoreUnavailable(t *testing.T) {
	st := NewMemoryStore()
	st.SetUnavailable(true)
	ctx := context.Background()

	assert.ErrorIs(t, st.Ping(ctx), core.ErrStoreUnavailable)
	assert.ErrorIs(t, st.UpsertEntry(ctx, core.UserGroupEntry{UserID: 1, GroupID: 100}), core.ErrStoreUnavailable)
	_, err := st.AnySpammer(ctx, 1)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)

	st.SetUnavailable(false)
	assert.NoError(t, st.Ping(ctx))
}

func TestMemoryStoreGroups(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.AddGroup(ctx, 100))
	require.NoError(t, st.SetSetting(ctx, 100, "instructions", "no spam"))

	groups, err := st.LoadGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, int64(100), groups[0].GroupID)
	assert.Equal(t, "no spam", groups[0].Settings["instructions"])

	require.NoError(t, st.RemoveGroup(ctx, 100))
	groups, err = st.LoadGroups(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups)
}
