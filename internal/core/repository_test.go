package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepositorySpammerRoundTrip(t *testing.T) {
	r := newRig(t, 100, 200)
	ctx := context.Background()

	r.repo.MarkSpammer(ctx, 1, 100)

	assert.True(t, r.repo.IsSpammer(ctx, 1))
	assert.ElementsMatch(t, []int64{100}, r.repo.GroupsWithSpamFlag(ctx, 1))

	entry, ok := r.repo.Entry(ctx, 1, 100)
	assert.True(t, ok)
	assert.True(t, entry.Spammer)
}

func TestRepositoryGlobalFlagIsOROverGroups(t *testing.T) {
	r := newRig(t, 100, 200)
	ctx := context.Background()

	r.repo.MarkSpammer(ctx, 1, 100)
	r.repo.MarkSpammer(ctx, 1, 200)

	// Clearing one group leaves the aggregate set.
	remaining := r.repo.ClearSpammer(ctx, 1, 100)
	assert.ElementsMatch(t, []int64{200}, remaining)
	assert.True(t, r.repo.IsSpammer(ctx, 1))

	// Clearing the last group evicts the user for good.
	remaining = r.repo.ClearSpammer(ctx, 1, 200)
	assert.Empty(t, remaining)
	assert.False(t, r.repo.IsSpammer(ctx, 1))

	// The aggregate always matches the per-group flags.
	assert.Equal(t,
		len(r.repo.GroupsWithSpamFlag(ctx, 1)) > 0,
		r.repo.IsSpammer(ctx, 1))
}

func TestRepositoryClearThenLookupUsesNegativeCache(t *testing.T) {
	r := newRig(t, 100)
	ctx := context.Background()

	r.repo.MarkSpammer(ctx, 1, 100)
	r.repo.ClearSpammer(ctx, 1, 100)

	queries := r.store.SpammerQueries()
	assert.False(t, r.repo.IsSpammer(ctx, 1))
	assert.Equal(t, queries, r.store.SpammerQueries())
}

func TestRepositoryMutationsSurviveStoreOutage(t *testing.T) {
	r := newRig(t, 100)
	ctx := context.Background()

	r.store.SetUnavailable(true)
	r.repo.MarkSpammer(ctx, 1, 100)

	// The cache serves the flag even though persistence failed.
	assert.True(t, r.repo.IsSpammerCached(1))
	assert.True(t, r.repo.IsSpammer(ctx, 1))
}

func TestRepositoryReconcileFailureKeepsPositiveCache(t *testing.T) {
	r := newRig(t, 100)
	ctx := context.Background()

	r.repo.MarkSpammer(ctx, 1, 100)
	r.store.SetUnavailable(true)

	remaining := r.repo.ClearSpammer(ctx, 1, 100)
	assert.Empty(t, remaining)

	// Without a trustworthy store answer the user must stay flagged.
	assert.True(t, r.repo.IsSpammerCached(1))
}

func TestRepositoryMarkSeenIsIdempotent(t *testing.T) {
	r := newRig(t, 100)
	ctx := context.Background()

	r.repo.MarkSeen(ctx, 1, 100)
	r.repo.MarkSeen(ctx, 1, 100)

	assert.True(t, r.repo.IsSeen(ctx, 1))
	entry, ok := r.repo.Entry(ctx, 1, 100)
	assert.True(t, ok)
	assert.True(t, entry.Seen)
	assert.False(t, entry.Spammer)
}

func TestRepositoryUpsertMergesFlags(t *testing.T) {
	r := newRig(t, 100)
	ctx := context.Background()

	r.repo.MarkSeen(ctx, 1, 100)
	r.repo.MarkSpammer(ctx, 1, 100)

	// Both flags survive the second write.
	entry, ok := r.repo.Entry(ctx, 1, 100)
	assert.True(t, ok)
	assert.True(t, entry.Seen)
	assert.True(t, entry.Spammer)
}

func TestRepositoryEntryAbsent(t *testing.T) {
	r := newRig(t, 100)

	_, ok := r.repo.Entry(context.Background(), 1, 100)
	assert.False(t, ok)
}
