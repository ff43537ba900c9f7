package core

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Repository is the single surface the state machine and the pipeline use for
// every query and mutation of user state. Nothing above it touches the cache
// or the store directly, which is what makes consistency enforceable in one
// place. Tests supply a fake implementation of this interface.
type Repository interface {
	// Lock serializes handling for one user. The returned func releases it.
	Lock(userID int64) func()

	IsSpammer(ctx context.Context, userID int64) bool
	IsSeen(ctx context.Context, userID int64) bool
	IsSuspicious(ctx context.Context, userID int64) bool

	MarkSpammer(ctx context.Context, userID, groupID int64)
	MarkSeen(ctx context.Context, userID, groupID int64)
	// MarkUnseen creates or refreshes a pending entry for (user,group).
	MarkUnseen(ctx context.Context, userID, groupID int64)

	MarkSuspicious(userID int64)
	DropSuspicious(userID int64)
	// IsSpammerCached reports positive-cache membership without a store query,
	// the fallback heuristic when no store entry exists.
	IsSpammerCached(userID int64) bool

	// ClearSpammer clears the per-group flag and reconciles the global
	// aggregate. It returns the groups that still flag the user after the
	// clear; only an empty result evicts the user from the positive cache.
	ClearSpammer(ctx context.Context, userID, groupID int64) []int64

	GroupsWithSpamFlag(ctx context.Context, userID int64) []int64

	// Entry returns the (user,group) record, reporting false when absent or
	// the store is unreachable.
	Entry(ctx context.Context, userID, groupID int64) (UserGroupEntry, bool)
}

// UserStateRepository implements Repository over a Store and a StateCache.
//
// Mutations persist first and then update the in-memory sets unconditionally,
// even when the store write failed. That keeps cache-only operation working
// and readers consistent with what they were just told; durability is traded
// for availability and the failure is logged.
type UserStateRepository struct {
	store  Store
	cache  *StateCache
	logger *zap.Logger
}

// NewUserStateRepository creates the repository façade.
func NewUserStateRepository(store Store, cache *StateCache, logger *zap.Logger) *UserStateRepository {
	return &UserStateRepository{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

func (r *UserStateRepository) Lock(userID int64) func() {
	return r.cache.Lock(userID)
}

func (r *UserStateRepository) IsSpammer(ctx context.Context, userID int64) bool {
	return r.cache.HasSpammerAnywhere(ctx, userID)
}

func (r *UserStateRepository) IsSeen(ctx context.Context, userID int64) bool {
	return r.cache.HasSeenAnywhere(ctx, userID)
}

func (r *UserStateRepository) IsSuspicious(ctx context.Context, userID int64) bool {
	return r.cache.IsSuspicious(userID)
}

func (r *UserStateRepository) IsSpammerCached(userID int64) bool {
	return r.cache.IsSpammerCached(userID)
}

func (r *UserStateRepository) MarkSpammer(ctx context.Context, userID, groupID int64) {
	entry := UserGroupEntry{
		UserID:   userID,
		GroupID:  groupID,
		JoinedAt: time.Now(),
		Spammer:  true,
	}
	if err := r.store.UpsertEntry(ctx, entry); err != nil {
		r.logger.Error("Failed to persist spammer flag",
			zap.Int64("user_id", userID),
			zap.Int64("group_id", groupID),
			zap.Error(errors.Join(ErrStoreUnavailable, err)))
	}
	r.cache.MarkSpammer(userID)
}

func (r *UserStateRepository) MarkSeen(ctx context.Context, userID, groupID int64) {
	entry := UserGroupEntry{
		UserID:   userID,
		GroupID:  groupID,
		JoinedAt: time.Now(),
		Seen:     true,
	}
	if err := r.store.UpsertEntry(ctx, entry); err != nil {
		r.logger.Error("Failed to persist seen flag",
			zap.Int64("user_id", userID),
			zap.Int64("group_id", groupID),
			zap.Error(errors.Join(ErrStoreUnavailable, err)))
	}
	r.cache.MarkSeen(userID)
}

func (r *UserStateRepository) MarkUnseen(ctx context.Context, userID, groupID int64) {
	entry := UserGroupEntry{
		UserID:   userID,
		GroupID:  groupID,
		JoinedAt: time.Now(),
	}
	if err := r.store.UpsertEntry(ctx, entry); err != nil {
		r.logger.Error("Failed to persist pending entry",
			zap.Int64("user_id", userID),
			zap.Int64("group_id", groupID),
			zap.Error(errors.Join(ErrStoreUnavailable, err)))
	}
}

func (r *UserStateRepository) MarkSuspicious(userID int64) {
	r.cache.MarkSuspicious(userID)
}

func (r *UserStateRepository) DropSuspicious(userID int64) {
	r.cache.DropSuspicious(userID)
}

// ClearSpammer persists the per-group clear, then recomputes the global
// aggregate from a fresh store query. The recompute is deliberate: multiple
// groups may hold independent flags set by different events, so a single
// stale clear must never falsely negative-cache a user flagged elsewhere.
func (r *UserStateRepository) ClearSpammer(ctx context.Context, userID, groupID int64) []int64 {
	if err := r.store.ClearSpammer(ctx, userID, groupID); err != nil {
		r.logger.Error("Failed to persist spammer clear",
			zap.Int64("user_id", userID),
			zap.Int64("group_id", groupID),
			zap.Error(errors.Join(ErrStoreUnavailable, err)))
	}
	return r.reconcile(ctx, userID)
}

// reconcile restores the invariant: the global spammer aggregate equals the
// OR over every group's flag. Returns the groups still flagging the user.
func (r *UserStateRepository) reconcile(ctx context.Context, userID int64) []int64 {
	remaining, err := r.store.GroupsWithSpamFlag(ctx, userID)
	if err != nil {
		// Without a trustworthy answer the positive cache stays put; evicting
		// on a failed query could un-flag a user still flagged elsewhere.
		r.logger.Error("Reconcile query failed, keeping positive cache",
			zap.Int64("user_id", userID),
			zap.Error(errors.Join(ErrStoreUnavailable, err)))
		return nil
	}
	if len(remaining) == 0 {
		r.cache.DropSpammer(userID)
	}
	return remaining
}

func (r *UserStateRepository) GroupsWithSpamFlag(ctx context.Context, userID int64) []int64 {
	groups, err := r.store.GroupsWithSpamFlag(ctx, userID)
	if err != nil {
		r.logger.Error("Failed to list flagged groups",
			zap.Int64("user_id", userID),
			zap.Error(errors.Join(ErrStoreUnavailable, err)))
		return nil
	}
	if len(groups) == 0 && r.cache.IsSpammerCached(userID) {
		r.logger.Warn("Positive cache disagrees with store",
			zap.Int64("user_id", userID),
			zap.Error(ErrConsistency))
	}
	return groups
}

func (r *UserStateRepository) Entry(ctx context.Context, userID, groupID int64) (UserGroupEntry, bool) {
	entry, err := r.store.Entry(ctx, userID, groupID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.logger.Error("Failed to load user entry",
				zap.Int64("user_id", userID),
				zap.Int64("group_id", groupID),
				zap.Error(errors.Join(ErrStoreUnavailable, err)))
		}
		return UserGroupEntry{}, false
	}
	return entry, true
}

// Cache exposes the state cache for diagnostics and warm-up wiring.
func (r *UserStateRepository) Cache() *StateCache {
	return r.cache
}

// Ping reports store connectivity, for diagnostics.
func (r *UserStateRepository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}
