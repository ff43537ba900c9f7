package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/buzzbuster/antispam/internal/logging"
)

// Membership reacts to join/leave/ban/unban transitions for users in
// configured groups. Per (user,group) the states are
// unknown -> pending -> {trusted | banned}, with banned -> trusted only via
// an explicit unban.
type Membership struct {
	repo     Repository
	banList  BanList
	platform Platform
	reporter Reporter
	groups   *GroupRegistry
	logger   *zap.Logger
}

// NewMembership creates the membership state machine.
func NewMembership(
	repo Repository,
	banList BanList,
	platform Platform,
	reporter Reporter,
	groups *GroupRegistry,
	logger *zap.Logger,
) *Membership {
	return &Membership{
		repo:     repo,
		banList:  banList,
		platform: platform,
		reporter: reporter,
		groups:   groups,
		logger:   logger,
	}
}

// HandleEvent processes one membership transition. Failures of external
// collaborators are absorbed here; the handler always runs to completion.
func (m *Membership) HandleEvent(ctx context.Context, ev MembershipEvent) {
	log := logging.FromContext(ctx, m.logger)

	if !m.groups.IsConfigured(ev.GroupID) {
		log.Debug("Membership event for unconfigured group",
			zap.Int64("group_id", ev.GroupID))
		return
	}

	unlock := m.repo.Lock(ev.UserID)
	defer unlock()

	switch {
	case ev.OldStatus.restorable() && ev.NewStatus.active():
		if m.handleUnban(ctx, ev, log) {
			return
		}
		// No flag to clear: a kicked user rejoining as a member is a fresh
		// join and still goes through the ban-list check.
		if ev.NewStatus == StatusMember {
			m.handleJoin(ctx, ev, log)
		}
	case ev.NewStatus == StatusMember:
		m.handleJoin(ctx, ev, log)
	default:
		log.Debug("Membership transition requires no action",
			zap.Int64("user_id", ev.UserID),
			zap.Int64("group_id", ev.GroupID),
			zap.String("old_status", ev.OldStatus.String()),
			zap.String("new_status", ev.NewStatus.String()))
	}
}

func (m *Membership) handleJoin(ctx context.Context, ev MembershipEvent, log *zap.Logger) {
	// A user flagged anywhere is banned on sight; the flag is already
	// persisted so nothing is re-written.
	if m.repo.IsSpammer(ctx, ev.UserID) {
		m.ban(ctx, ev.GroupID, ev.UserID, log)
		m.reporter.Event(ctx, "join_known_spammer_banned", map[string]any{
			"user_id":  ev.UserID,
			"group_id": ev.GroupID,
		})
		m.reporter.Notify(ctx, fmt.Sprintf(
			"Automatically banned known spammer %d joining group %d.",
			ev.UserID, ev.GroupID))
		return
	}

	if m.repo.IsSeen(ctx, ev.UserID) {
		// Trust carries over from other groups: the entry is created seen,
		// the user stays out of the suspicious set, and no classification is
		// forced on their first message here.
		m.repo.MarkSeen(ctx, ev.UserID, ev.GroupID)
		log.Debug("Known user joined, trust carried over",
			zap.Int64("user_id", ev.UserID),
			zap.Int64("group_id", ev.GroupID))
	} else {
		m.repo.MarkUnseen(ctx, ev.UserID, ev.GroupID)
		m.repo.MarkSuspicious(ev.UserID)
		log.Debug("New user added to suspicious set",
			zap.Int64("user_id", ev.UserID),
			zap.Int64("group_id", ev.GroupID))
	}

	listed, err := m.banList.IsKnownAbuser(ctx, ev.UserID)
	if err != nil {
		log.Error("Ban-list lookup failed, treating as not listed",
			zap.Int64("user_id", ev.UserID),
			zap.Error(errors.Join(ErrBanLookup, err)))
		return
	}
	if listed {
		// Pre-empts the message pipeline for this user and group.
		m.repo.MarkSpammer(ctx, ev.UserID, ev.GroupID)
		m.ban(ctx, ev.GroupID, ev.UserID, log)
		m.reporter.Event(ctx, "join_banlist_banned", map[string]any{
			"user_id":  ev.UserID,
			"group_id": ev.GroupID,
		})
		m.reporter.Notify(ctx, fmt.Sprintf(
			"User %d is on the external ban list and was removed from group %d.",
			ev.UserID, ev.GroupID))
	}
}

// handleUnban restores a user an operator moved out of a moderation state.
// The per-group flag is cleared, the global aggregate recomputed, and the
// user marked seen in this group: an unban restores trust there. Returns
// false when there was no flag to clear.
func (m *Membership) handleUnban(ctx context.Context, ev MembershipEvent, log *zap.Logger) bool {
	flagged := false
	if entry, ok := m.repo.Entry(ctx, ev.UserID, ev.GroupID); ok {
		flagged = entry.Spammer
	} else {
		// No store entry (possibly a degraded store): fall back to the
		// positive cache.
		flagged = m.repo.IsSpammerCached(ev.UserID)
	}
	if !flagged {
		log.Debug("Status restored for user without spam flag",
			zap.Int64("user_id", ev.UserID),
			zap.Int64("group_id", ev.GroupID),
			zap.String("old_status", ev.OldStatus.String()),
			zap.String("new_status", ev.NewStatus.String()))
		return false
	}

	remaining := m.repo.ClearSpammer(ctx, ev.UserID, ev.GroupID)
	otherGroups := make([]int64, 0, len(remaining))
	for _, g := range remaining {
		if g != ev.GroupID {
			otherGroups = append(otherGroups, g)
		}
	}

	m.repo.MarkSeen(ctx, ev.UserID, ev.GroupID)

	m.reporter.Event(ctx, "unban_flag_cleared", map[string]any{
		"user_id":      ev.UserID,
		"group_id":     ev.GroupID,
		"other_groups": otherGroups,
	})
	var text string
	if len(otherGroups) > 0 {
		text = fmt.Sprintf(
			"User %d unbanned in group %d; still flagged in %d other group(s).",
			ev.UserID, ev.GroupID, len(otherGroups))
	} else {
		text = fmt.Sprintf(
			"User %d unbanned in group %d; no longer flagged anywhere.",
			ev.UserID, ev.GroupID)
	}
	m.reporter.Notify(ctx, text)

	if err := m.platform.SendMessage(ctx, ev.GroupID, fmt.Sprintf(
		"User %d has been unbanned and is trusted in this group again.", ev.UserID)); err != nil {
		log.Error("Failed to send unban notification",
			zap.Int64("user_id", ev.UserID),
			zap.Int64("group_id", ev.GroupID),
			zap.Error(err))
	}
	return true
}

func (m *Membership) ban(ctx context.Context, groupID, userID int64, log *zap.Logger) {
	if err := m.platform.BanMember(ctx, groupID, userID); err != nil {
		log.Error("Failed to ban member",
			zap.Int64("user_id", userID),
			zap.Int64("group_id", groupID),
			zap.Error(err))
	}
}
