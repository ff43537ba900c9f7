package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/buzzbuster/antispam/internal/core"
)

func TestJoinNewUserBecomesSuspicious(t *testing.T) {
	r := newRig(t, 100)
	ctx := context.Background()

	r.join(1, 100)

	assert.True(t, r.repo.IsSuspicious(ctx, 1))
	entry, ok := r.repo.Entry(ctx, 1, 100)
	assert.True(t, ok)
	assert.True(t, entry.Pending())
	assert.Empty(t, r.platform.bans)
	assert.Empty(t, r.reporter.notifies)
}

func TestJoinTrustedElsewhereCarriesTrustOver(t *testing.T) {
	r := newRig(t, 100, 200)
	ctx := context.Background()

	// Trusted in group 100 already.
	r.repo.MarkSeen(ctx, 1, 100)

	r.join(1, 200)

	// The new entry is trusted from the start, never suspicious.
	assert.False(t, r.repo.IsSuspicious(ctx, 1))
	entry, ok := r.repo.Entry(ctx, 1, 200)
	assert.True(t, ok)
	assert.True(t, entry.Seen)
	assert.Empty(t, r.platform.bans)
}

func TestJoinKnownSpammerBannedImmediately(t *testing.T) {
	r := newRig(t, 100, 200)
	ctx := context.Background()

	r.repo.MarkSpammer(ctx, 1, 100)

	r.join(1, 200)

	assert.Equal(t, []int64{1}, r.platform.bans)
	assert.True(t, r.reporter.hasEvent("join_known_spammer_banned"))
	assert.Len(t, r.reporter.notifies, 1)

	// No pending entry is created for a banned join.
	_, ok := r.repo.Entry(ctx, 1, 200)
	assert.False(t, ok)
}

func TestJoinBanListedUserBanned(t *testing.T) {
	r := newRig(t, 100)
	ctx := context.Background()

	r.banList.listed[1] = true

	r.join(1, 100)

	assert.Equal(t, []int64{1}, r.platform.bans)
	assert.True(t, r.repo.IsSpammer(ctx, 1))
	assert.True(t, r.reporter.hasEvent("join_banlist_banned"))
	assert.Len(t, r.reporter.notifies, 1)
}

func TestJoinBanListFailureTreatedAsNotListed(t *testing.T) {
	r := newRig(t, 100)
	ctx := context.Background()

	r.banList.err = errors.New("cas timeout")

	r.join(1, 100)

	assert.Empty(t, r.platform.bans)
	assert.False(t, r.repo.IsSpammer(ctx, 1))
	assert.True(t, r.repo.IsSuspicious(ctx, 1))
}

func TestJoinUnconfiguredGroupIgnored(t *testing.T) {
	r := newRig(t, 100)

	r.join(1, 999)

	assert.False(t, r.repo.IsSuspicious(context.Background(), 1))
	assert.Zero(t, r.banList.calls)
}

func TestUnbanClearsFlagInOneGroupOnly(t *testing.T) {
	r := newRig(t, 100, 200)
	ctx := context.Background()

	r.repo.MarkSpammer(ctx, 1, 100)
	r.repo.MarkSpammer(ctx, 1, 200)

	r.membership.HandleEvent(ctx, core.MembershipEvent{
		UserID:    1,
		GroupID:   100,
		OldStatus: core.StatusBanned,
		NewStatus: core.StatusMember,
	})

	// Still flagged globally through group 200.
	assert.True(t, r.repo.IsSpammer(ctx, 1))
	assert.ElementsMatch(t, []int64{200}, r.repo.GroupsWithSpamFlag(ctx, 1))

	// Trusted again in the unbanning group.
	entry, ok := r.repo.Entry(ctx, 1, 100)
	assert.True(t, ok)
	assert.True(t, entry.Seen)
	assert.False(t, entry.Spammer)

	assert.True(t, r.reporter.hasEvent("unban_flag_cleared"))
	assert.Len(t, r.reporter.notifies, 1)
	assert.Len(t, r.platform.messages, 1)
}

func TestUnbanInLastGroupClearsGlobally(t *testing.T) {
	r := newRig(t, 100)
	ctx := context.Background()

	r.repo.MarkSpammer(ctx, 1, 100)

	r.membership.HandleEvent(ctx, core.MembershipEvent{
		UserID:    1,
		GroupID:   100,
		OldStatus: core.StatusBanned,
		NewStatus: core.StatusMember,
	})

	assert.False(t, r.repo.IsSpammer(ctx, 1))
	assert.True(t, r.repo.IsSeen(ctx, 1))
}

func TestUnbanRestrictedToLeftAlsoRestores(t *testing.T) {
	r := newRig(t, 100)
	ctx := context.Background()

	r.repo.MarkSpammer(ctx, 1, 100)

	// Moderation lift can surface as restricted -> left as well.
	r.membership.HandleEvent(ctx, core.MembershipEvent{
		UserID:    1,
		GroupID:   100,
		OldStatus: core.StatusRestricted,
		NewStatus: core.StatusLeft,
	})

	assert.False(t, r.repo.IsSpammer(ctx, 1))
}

func TestRejoinAfterKickWithoutFlagRunsJoinChecks(t *testing.T) {
	r := newRig(t, 100)
	ctx := context.Background()

	// Never flagged, never seen; kicked by an operator and re-admitted.
	r.membership.HandleEvent(ctx, core.MembershipEvent{
		UserID:    5,
		GroupID:   100,
		OldStatus: core.StatusKicked,
		NewStatus: core.StatusMember,
	})

	assert.Equal(t, 1, r.banList.calls)
	assert.True(t, r.repo.IsSuspicious(ctx, 5))
	entry, ok := r.repo.Entry(ctx, 5, 100)
	assert.True(t, ok)
	assert.True(t, entry.Pending())
}

func TestRejoinAfterKickBanListedUserBanned(t *testing.T) {
	r := newRig(t, 100)
	r.banList.listed[5] = true

	r.membership.HandleEvent(context.Background(), core.MembershipEvent{
		UserID:    5,
		GroupID:   100,
		OldStatus: core.StatusKicked,
		NewStatus: core.StatusMember,
	})

	assert.Equal(t, []int64{5}, r.platform.bans)
	assert.Len(t, r.reporter.notifies, 1)
}

func TestUnbanWithoutFlagIsNoop(t *testing.T) {
	r := newRig(t, 100)
	ctx := context.Background()

	r.repo.MarkSeen(ctx, 1, 100)

	r.membership.HandleEvent(ctx, core.MembershipEvent{
		UserID:    1,
		GroupID:   100,
		OldStatus: core.StatusBanned,
		NewStatus: core.StatusMember,
	})

	assert.Empty(t, r.reporter.notifies)
	assert.Empty(t, r.platform.messages)
}

func TestLeaveRequiresNoAction(t *testing.T) {
	r := newRig(t, 100)

	r.membership.HandleEvent(context.Background(), core.MembershipEvent{
		UserID:    1,
		GroupID:   100,
		OldStatus: core.StatusMember,
		NewStatus: core.StatusLeft,
	})

	assert.Empty(t, r.reporter.events)
	assert.Empty(t, r.reporter.notifies)
}
