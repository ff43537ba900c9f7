package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/buzzbuster/antispam/internal/adapters/store"
	"github.com/buzzbuster/antispam/internal/core"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCacheMemoizesSpammerLookup(t *testing.T) {
	r := newRig(t, 100)
	ctx := context.Background()

	assert.False(t, r.cache.HasSpammerAnywhere(ctx, 1))
	assert.Equal(t, int64(1), r.store.SpammerQueries())

	// Second lookup is answered by the negative cache.
	assert.False(t, r.cache.HasSpammerAnywhere(ctx, 1))
	assert.Equal(t, int64(1), r.store.SpammerQueries())
}

func TestCacheMemoizesSeenLookup(t *testing.T) {
	r := newRig(t, 100)
	ctx := context.Background()

	r.seedEntry(t, 1, 100, true, false)

	assert.True(t, r.cache.HasSeenAnywhere(ctx, 1))
	assert.Equal(t, int64(1), r.store.SeenQueries())

	assert.True(t, r.cache.HasSeenAnywhere(ctx, 1))
	assert.Equal(t, int64(1), r.store.SeenQueries())
}

func TestCachePositiveMarkEvictsNegative(t *testing.T) {
	r := newRig(t, 100)
	ctx := context.Background()

	// Populate the negative cache first.
	assert.False(t, r.cache.HasSpammerAnywhere(ctx, 1))
	queries := r.store.SpammerQueries()

	r.cache.MarkSpammer(1)

	// Positive hit without another store round trip.
	assert.True(t, r.cache.HasSpammerAnywhere(ctx, 1))
	assert.Equal(t, queries, r.store.SpammerQueries())
}

func TestCacheStoreErrorIsNotNegativeCached(t *testing.T) {
	r := newRig(t, 100)
	ctx := context.Background()

	r.store.SetUnavailable(true)
	assert.False(t, r.cache.HasSpammerAnywhere(ctx, 1))

	// Once the store recovers the answer comes from it, not from a stale
	// negative entry recorded during the outage.
	r.store.SetUnavailable(false)
	r.seedEntry(t, 1, 100, false, true)
	assert.True(t, r.cache.HasSpammerAnywhere(ctx, 1))
}

func TestCacheSuspiciousExcludesSpammers(t *testing.T) {
	r := newRig(t, 100)

	r.cache.MarkSuspicious(1)
	assert.True(t, r.cache.IsSuspicious(1))

	r.cache.MarkSpammer(1)
	assert.False(t, r.cache.IsSuspicious(1))
}

func TestCacheWarmUp(t *testing.T) {
	logger := zap.NewNop()
	st := store.NewMemoryStore()
	cache := core.NewStateCache(st, logger, testWindow)
	ctx := context.Background()

	now := time.Now()
	entries := []core.UserGroupEntry{
		{UserID: 1, GroupID: 100, JoinedAt: now, Spammer: true},
		{UserID: 2, GroupID: 100, JoinedAt: now.Add(-2 * testWindow), Spammer: true},
		{UserID: 3, GroupID: 100, JoinedAt: now},
		{UserID: 4, GroupID: 100, JoinedAt: now, Seen: true},
	}
	for _, e := range entries {
		require.NoError(t, st.UpsertEntry(ctx, e))
	}

	require.NoError(t, cache.WarmUp(ctx))

	// Recent spammer loaded, stale one aged out of the warm set.
	assert.True(t, cache.IsSpammerCached(1))
	assert.False(t, cache.IsSpammerCached(2))

	// Pending user is suspicious again, trusted user is not.
	assert.True(t, cache.IsSuspicious(3))
	assert.False(t, cache.IsSuspicious(4))
}

func TestCacheWarmUpFailsWhenStoreDown(t *testing.T) {
	logger := zap.NewNop()
	st := store.NewMemoryStore()
	st.SetUnavailable(true)
	cache := core.NewStateCache(st, logger, testWindow)

	require.Error(t, cache.WarmUp(context.Background()))
}

func TestCacheLockSerializesPerUser(t *testing.T) {
	r := newRig(t, 100)

	unlock := r.cache.Lock(1)
	done := make(chan struct{})
	go func() {
		inner := r.cache.Lock(1)
		inner()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second lock acquired while first still held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired after release")
	}
}

func TestCacheStats(t *testing.T) {
	r := newRig(t, 100)

	r.cache.MarkSpammer(1)
	r.cache.MarkSeen(2)
	r.cache.MarkSuspicious(3)

	stats := r.cache.Stats()
	assert.Equal(t, 1, stats.Spammers)
	assert.Equal(t, 1, stats.Seen)
	assert.Equal(t, 1, stats.Suspicious)
}
