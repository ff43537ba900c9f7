package core

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// lockStripes is the number of per-user mutex stripes. Handlers for the same
// user serialize on one stripe; unrelated users almost always proceed in
// parallel.
const lockStripes = 64

// userSet is a mutable set of user ids safe for concurrent use. The internal
// lock covers only map access, never I/O.
type userSet struct {
	mu  sync.RWMutex
	ids map[int64]struct{}
}

func newUserSet() *userSet {
	return &userSet{ids: make(map[int64]struct{})}
}

func (s *userSet) Has(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

func (s *userSet) Add(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
}

func (s *userSet) Remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

func (s *userSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

func (s *userSet) Snapshot() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	return out
}

func (s *userSet) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[int64]struct{})
}

// StateCache owns every in-memory mirror of store facts: the positive sets
// (spammers, seen users, suspicious users) and the negative sets memoizing
// confirmed absence (not-spammer, not-seen). A user id is never in both the
// positive and negative set for the same predicate; every positive mutation
// evicts the corresponding negative entry.
//
// The cache is bulk-loaded at startup, incrementally updated on every
// mutation, and fully rebuildable on demand.
type StateCache struct {
	store  Store
	logger *zap.Logger

	spammers   *userSet
	seen       *userSet
	suspicious *userSet
	notSpammer *userSet
	notSeen    *userSet

	// spammerWindow bounds how far back warm-up loads confirmed spammers.
	spammerWindow time.Duration

	locks [lockStripes]sync.Mutex
}

// NewStateCache creates an empty cache over the given store. Call WarmUp
// before serving events.
func NewStateCache(store Store, logger *zap.Logger, spammerWindow time.Duration) *StateCache {
	return &StateCache{
		store:         store,
		logger:        logger,
		spammers:      newUserSet(),
		seen:          newUserSet(),
		suspicious:    newUserSet(),
		notSpammer:    newUserSet(),
		notSeen:       newUserSet(),
		spammerWindow: spammerWindow,
	}
}

// userLock returns the stripe mutex serializing state transitions for one
// user.
func (c *StateCache) userLock(userID int64) *sync.Mutex {
	idx := userID % lockStripes
	if idx < 0 {
		idx = -idx
	}
	return &c.locks[idx]
}

// Lock acquires the per-user stripe lock. Handlers take it at entry and hold
// it for the whole event, so events for one user are processed in arrival
// order while unrelated users proceed in parallel.
func (c *StateCache) Lock(userID int64) func() {
	mu := c.userLock(userID)
	mu.Lock()
	return mu.Unlock
}

// HasSpammerAnywhere reports whether any group flags the user as spammer.
// Positive set hits and negative set hits return immediately; otherwise the
// store is queried exactly once and the outcome memoized. A store failure is
// logged and degrades to false without poisoning the negative cache.
func (c *StateCache) HasSpammerAnywhere(ctx context.Context, userID int64) bool {
	if c.spammers.Has(userID) {
		return true
	}
	if c.notSpammer.Has(userID) {
		return false
	}
	flagged, err := c.store.AnySpammer(ctx, userID)
	if err != nil {
		c.logger.Error("Spammer lookup failed, treating as not flagged",
			zap.Int64("user_id", userID), zap.Error(err))
		return false
	}
	if flagged {
		c.spammers.Add(userID)
	} else {
		c.notSpammer.Add(userID)
	}
	return flagged
}

// HasSeenAnywhere reports whether any group has recorded an accepted message
// from the user, with the same memoization contract as HasSpammerAnywhere.
func (c *StateCache) HasSeenAnywhere(ctx context.Context, userID int64) bool {
	if c.seen.Has(userID) {
		return true
	}
	if c.notSeen.Has(userID) {
		return false
	}
	seen, err := c.store.AnySeen(ctx, userID)
	if err != nil {
		c.logger.Error("Seen lookup failed, treating as not seen",
			zap.Int64("user_id", userID), zap.Error(err))
		return false
	}
	if seen {
		c.seen.Add(userID)
	} else {
		c.notSeen.Add(userID)
	}
	return seen
}

// MarkSpammer records a confirmed spammer in the in-memory sets: positive set
// gains the user, the negative set and the suspicious set drop them.
func (c *StateCache) MarkSpammer(userID int64) {
	c.spammers.Add(userID)
	c.notSpammer.Remove(userID)
	c.suspicious.Remove(userID)
}

// MarkSeen records a trusted user in the in-memory sets.
func (c *StateCache) MarkSeen(userID int64) {
	c.seen.Add(userID)
	c.notSeen.Remove(userID)
	c.suspicious.Remove(userID)
}

// MarkSuspicious adds the user to the pending-verdict set.
func (c *StateCache) MarkSuspicious(userID int64) {
	c.suspicious.Add(userID)
}

// DropSuspicious removes the user from the pending-verdict set.
func (c *StateCache) DropSuspicious(userID int64) {
	c.suspicious.Remove(userID)
}

// IsSuspicious reports whether the user is awaiting a first verdict. A global
// spammer is never suspicious, whatever the pending set says.
func (c *StateCache) IsSuspicious(userID int64) bool {
	return c.suspicious.Has(userID) && !c.spammers.Has(userID)
}

// IsSpammerCached reports positive-set membership without touching the store.
// Used as the fallback heuristic when no store entry exists.
func (c *StateCache) IsSpammerCached(userID int64) bool {
	return c.spammers.Has(userID)
}

// DropSpammer evicts the user from the spammer positive set and memoizes the
// absence. Only the reconciler calls this, after a fresh store query confirmed
// no group still flags the user.
func (c *StateCache) DropSpammer(userID int64) {
	c.spammers.Remove(userID)
	c.notSpammer.Add(userID)
}

// WarmUp bulk-loads the positive sets from the store. Confirmed spammers are
// loaded within the configured window; pending users are loaded in full.
// A warm-up failure is a startup failure and should be treated as fatal by
// the caller.
func (c *StateCache) WarmUp(ctx context.Context) error {
	since := time.Now().Add(-c.spammerWindow)
	spammers, err := c.store.LoadSpammers(ctx, since)
	if err != nil {
		return err
	}
	for _, id := range spammers {
		c.spammers.Add(id)
	}
	pending, err := c.store.LoadPending(ctx)
	if err != nil {
		return err
	}
	for _, id := range pending {
		// A user flagged in one group may have a pending entry in another;
		// the global flag wins.
		if !c.spammers.Has(id) {
			c.suspicious.Add(id)
		}
	}
	c.logger.Debug("User caches loaded",
		zap.Int("spammers", c.spammers.Len()),
		zap.Int("suspicious", c.suspicious.Len()))
	return nil
}

// Rebuild discards every set, negative caches included, and re-runs warm-up.
// Used for recovery and testing.
func (c *StateCache) Rebuild(ctx context.Context) error {
	c.spammers.Reset()
	c.seen.Reset()
	c.suspicious.Reset()
	c.notSpammer.Reset()
	c.notSeen.Reset()
	return c.WarmUp(ctx)
}

// CacheStats is a point-in-time size report of every set, for diagnostics.
type CacheStats struct {
	Spammers   int
	Seen       int
	Suspicious int
	NotSpammer int
	NotSeen    int
}

// Stats reports current set sizes.
func (c *StateCache) Stats() CacheStats {
	return CacheStats{
		Spammers:   c.spammers.Len(),
		Seen:       c.seen.Len(),
		Suspicious: c.suspicious.Len(),
		NotSpammer: c.notSpammer.Len(),
		NotSeen:    c.notSeen.Len(),
	}
}

// SuspiciousUsers lists the pending set, for diagnostics.
func (c *StateCache) SuspiciousUsers() []int64 {
	return c.suspicious.Snapshot()
}

// SpammerUsers lists the spammer positive set, for diagnostics.
func (c *StateCache) SpammerUsers() []int64 {
	return c.spammers.Snapshot()
}
