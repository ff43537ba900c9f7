package core_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/buzzbuster/antispam/internal/adapters/store"
	"github.com/buzzbuster/antispam/internal/core"
)

const testWindow = 30 * 24 * time.Hour

// fakePlatform records every enforcement call.
type fakePlatform struct {
	bans     []int64
	deleted  []int64
	messages []string
	banErr   error
}

func (p *fakePlatform) BanMember(ctx context.Context, groupID, userID int64) error {
	p.bans = append(p.bans, userID)
	return p.banErr
}

func (p *fakePlatform) DeleteMessage(ctx context.Context, groupID, messageID int64) error {
	p.deleted = append(p.deleted, messageID)
	return nil
}

func (p *fakePlatform) SendMessage(ctx context.Context, groupID int64, text string) error {
	p.messages = append(p.messages, text)
	return nil
}

// fakeReporter records event names and counts elevated notifications.
type fakeReporter struct {
	events   []string
	notifies []string
}

func (r *fakeReporter) Event(ctx context.Context, name string, fields map[string]any) {
	r.events = append(r.events, name)
}

func (r *fakeReporter) Notify(ctx context.Context, text string) {
	r.notifies = append(r.notifies, text)
}

func (r *fakeReporter) hasEvent(name string) bool {
	for _, e := range r.events {
		if e == name {
			return true
		}
	}
	return false
}

// fakeBanList flags exactly the configured user ids.
type fakeBanList struct {
	listed map[int64]bool
	err    error
	calls  int
}

func (b *fakeBanList) IsKnownAbuser(ctx context.Context, userID int64) (bool, error) {
	b.calls++
	if b.err != nil {
		return false, b.err
	}
	return b.listed[userID], nil
}

// fakeClassifier returns a fixed verdict and counts invocations.
type fakeClassifier struct {
	spam  bool
	err   error
	calls int
}

func (c *fakeClassifier) Classify(ctx context.Context, body, instructions string) (bool, error) {
	c.calls++
	return c.spam, c.err
}

// rig bundles a fully wired engine over the in-memory store.
type rig struct {
	store      *store.MemoryStore
	cache      *core.StateCache
	repo       *core.UserStateRepository
	groups     *core.GroupRegistry
	platform   *fakePlatform
	reporter   *fakeReporter
	banList    *fakeBanList
	classifier *fakeClassifier
	membership *core.Membership
	pipeline   *core.Pipeline
}

func newRig(t *testing.T, groupIDs ...int64) *rig {
	t.Helper()
	logger := zap.NewNop()

	st := store.NewMemoryStore()
	cache := core.NewStateCache(st, logger, testWindow)
	repo := core.NewUserStateRepository(st, cache, logger)
	groups := core.NewGroupRegistry(st, logger)
	for _, gid := range groupIDs {
		if err := groups.Add(context.Background(), gid); err != nil {
			t.Fatalf("add group %d: %v", gid, err)
		}
	}

	platform := &fakePlatform{}
	reporter := &fakeReporter{}
	banList := &fakeBanList{listed: map[int64]bool{}}
	classifier := &fakeClassifier{}

	return &rig{
		store:      st,
		cache:      cache,
		repo:       repo,
		groups:     groups,
		platform:   platform,
		reporter:   reporter,
		banList:    banList,
		classifier: classifier,
		membership: core.NewMembership(repo, banList, platform, reporter, groups, logger),
		pipeline: core.NewPipeline(repo, classifier, platform, reporter, groups,
			nil, "crypto scams, job offers", logger),
	}
}

func (r *rig) join(userID, groupID int64) {
	r.membership.HandleEvent(context.Background(), core.MembershipEvent{
		UserID:    userID,
		GroupID:   groupID,
		OldStatus: core.StatusUnknown,
		NewStatus: core.StatusMember,
	})
}

func (r *rig) message(userID, groupID, messageID int64, body string) {
	r.pipeline.HandleMessage(context.Background(), core.MessageEvent{
		UserID:    userID,
		GroupID:   groupID,
		MessageID: messageID,
		Body:      body,
	})
}

func (r *rig) seedEntry(t *testing.T, userID, groupID int64, seen, spammer bool) {
	t.Helper()
	err := r.store.UpsertEntry(context.Background(), core.UserGroupEntry{
		UserID:   userID,
		GroupID:  groupID,
		JoinedAt: time.Now(),
		Seen:     seen,
		Spammer:  spammer,
	})
	if err != nil {
		t.Fatalf("seed entry: %v", err)
	}
}
