package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/buzzbuster/antispam/internal/core"
)

type entryKey struct {
	userID  int64
	groupID int64
}

// MemoryStore is an in-memory implementation of the Store and GroupStore
// interfaces. It counts existence queries so tests can assert the negative
// cache's query bound, and can be forced into a failing state to exercise
// degraded-store paths.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[entryKey]core.UserGroupEntry
	groups  map[int64]core.GroupConfig

	// Unavailable makes every operation fail with core.ErrStoreUnavailable.
	Unavailable bool

	spammerQueries atomic.Int64
	seenQueries    atomic.Int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[entryKey]core.UserGroupEntry),
		groups:  make(map[int64]core.GroupConfig),
	}
}

func (s *MemoryStore) failing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Unavailable
}

// SetUnavailable toggles the simulated outage.
func (s *MemoryStore) SetUnavailable(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Unavailable = down
}

func (s *MemoryStore) UpsertEntry(ctx context.Context, entry core.UserGroupEntry) error {
	if s.failing() {
		return core.ErrStoreUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entryKey{entry.UserID, entry.GroupID}
	if existing, ok := s.entries[key]; ok {
		existing.JoinedAt = entry.JoinedAt
		existing.Seen = existing.Seen || entry.Seen
		existing.Spammer = existing.Spammer || entry.Spammer
		s.entries[key] = existing
		return nil
	}
	s.entries[key] = entry
	return nil
}

func (s *MemoryStore) Entry(ctx context.Context, userID, groupID int64) (core.UserGroupEntry, error) {
	if s.failing() {
		return core.UserGroupEntry{}, core.ErrStoreUnavailable
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[entryKey{userID, groupID}]
	if !ok {
		return core.UserGroupEntry{}, core.ErrNotFound
	}
	return entry, nil
}

func (s *MemoryStore) AnySpammer(ctx context.Context, userID int64) (bool, error) {
	s.spammerQueries.Add(1)
	if s.failing() {
		return false, core.ErrStoreUnavailable
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for key, entry := range s.entries {
		if key.userID == userID && entry.Spammer {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) AnySeen(ctx context.Context, userID int64) (bool, error) {
	s.seenQueries.Add(1)
	if s.failing() {
		return false, core.ErrStoreUnavailable
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for key, entry := range s.entries {
		if key.userID == userID && entry.Seen {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ClearSpammer(ctx context.Context, userID, groupID int64) error {
	if s.failing() {
		return core.ErrStoreUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entryKey{userID, groupID}
	if entry, ok := s.entries[key]; ok {
		entry.Spammer = false
		s.entries[key] = entry
	}
	return nil
}

func (s *MemoryStore) GroupsWithSpamFlag(ctx context.Context, userID int64) ([]int64, error) {
	if s.failing() {
		return nil, core.ErrStoreUnavailable
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var groups []int64
	for key, entry := range s.entries {
		if key.userID == userID && entry.Spammer {
			groups = append(groups, key.groupID)
		}
	}
	return groups, nil
}

func (s *MemoryStore) LoadSpammers(ctx context.Context, since time.Time) ([]int64, error) {
	if s.failing() {
		return nil, core.ErrStoreUnavailable
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int64]struct{})
	var ids []int64
	for key, entry := range s.entries {
		if entry.Spammer && !entry.JoinedAt.Before(since) {
			if _, ok := seen[key.userID]; !ok {
				seen[key.userID] = struct{}{}
				ids = append(ids, key.userID)
			}
		}
	}
	return ids, nil
}

func (s *MemoryStore) LoadPending(ctx context.Context) ([]int64, error) {
	if s.failing() {
		return nil, core.ErrStoreUnavailable
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int64]struct{})
	var ids []int64
	for key, entry := range s.entries {
		if entry.Pending() {
			if _, ok := seen[key.userID]; !ok {
				seen[key.userID] = struct{}{}
				ids = append(ids, key.userID)
			}
		}
	}
	return ids, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	if s.failing() {
		return core.ErrStoreUnavailable
	}
	return nil
}

func (s *MemoryStore) AddGroup(ctx context.Context, groupID int64) error {
	if s.failing() {
		return core.ErrStoreUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[groupID]; !ok {
		s.groups[groupID] = core.GroupConfig{GroupID: groupID, Settings: map[string]string{}}
	}
	return nil
}

func (s *MemoryStore) RemoveGroup(ctx context.Context, groupID int64) error {
	if s.failing() {
		return core.ErrStoreUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, groupID)
	return nil
}

func (s *MemoryStore) MigrateGroup(ctx context.Context, oldID, newID int64) error {
	if s.failing() {
		return core.ErrStoreUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.groups[oldID]; ok {
		delete(s.groups, oldID)
		g.GroupID = newID
		s.groups[newID] = g
	}
	for key, entry := range s.entries {
		if key.groupID == oldID {
			delete(s.entries, key)
			entry.GroupID = newID
			s.entries[entryKey{key.userID, newID}] = entry
		}
	}
	return nil
}

func (s *MemoryStore) SetSetting(ctx context.Context, groupID int64, key, value string) error {
	if s.failing() {
		return core.ErrStoreUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		g = core.GroupConfig{GroupID: groupID, Settings: map[string]string{}}
	}
	g.Settings[key] = value
	s.groups[groupID] = g
	return nil
}

func (s *MemoryStore) LoadGroups(ctx context.Context) ([]core.GroupConfig, error) {
	if s.failing() {
		return nil, core.ErrStoreUnavailable
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups := make([]core.GroupConfig, 0, len(s.groups))
	for _, g := range s.groups {
		groups = append(groups, g)
	}
	return groups, nil
}

// SpammerQueries reports how many AnySpammer queries have run.
func (s *MemoryStore) SpammerQueries() int64 {
	return s.spammerQueries.Load()
}

// SeenQueries reports how many AnySeen queries have run.
func (s *MemoryStore) SeenQueries() int64 {
	return s.seenQueries.Load()
}
