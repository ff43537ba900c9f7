package admin

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/buzzbuster/antispam/internal/core"
)

// UserReport is the full classification state for one user, aggregated across
// every group the engine tracks.
type UserReport struct {
	UserID        int64
	Spammer       bool
	Seen          bool
	Suspicious    bool
	FlaggedGroups []int64
}

// Diagnostics is a snapshot of engine health for operators.
type Diagnostics struct {
	StoreOK    bool
	StoreError string
	Cache      core.CacheStats
	Groups     int
}

// Service exposes the operator surface: inspection and manual overrides of
// the automatic verdicts. All mutations go through the repository so the
// cache and the store stay in step.
type Service struct {
	repo     *core.UserStateRepository
	platform core.Platform
	groups   *core.GroupRegistry
	logger   *zap.Logger
}

func NewService(repo *core.UserStateRepository, platform core.Platform, groups *core.GroupRegistry, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		platform: platform,
		groups:   groups,
		logger:   logger,
	}
}

// InspectUser reports the user's current state without mutating anything.
func (s *Service) InspectUser(ctx context.Context, userID int64) UserReport {
	return UserReport{
		UserID:        userID,
		Spammer:       s.repo.IsSpammer(ctx, userID),
		Seen:          s.repo.IsSeen(ctx, userID),
		Suspicious:    s.repo.IsSuspicious(ctx, userID),
		FlaggedGroups: s.repo.GroupsWithSpamFlag(ctx, userID),
	}
}

// ForceBan flags the user as spammer in the given group and bans them there,
// overriding whatever the pipeline decided.
func (s *Service) ForceBan(ctx context.Context, userID, groupID int64) error {
	unlock := s.repo.Lock(userID)
	defer unlock()

	s.repo.MarkSpammer(ctx, userID, groupID)
	if err := s.platform.BanMember(ctx, groupID, userID); err != nil {
		return fmt.Errorf("ban user %d in group %d: %w", userID, groupID, err)
	}
	s.logger.Info("Operator ban applied",
		zap.Int64("user_id", userID),
		zap.Int64("group_id", groupID))
	return nil
}

// GlobalUnban clears the user's spammer flag in every group that holds one
// and records the user as trusted in each. Returns the groups that were
// cleared.
func (s *Service) GlobalUnban(ctx context.Context, userID int64) []int64 {
	unlock := s.repo.Lock(userID)
	defer unlock()

	flagged := s.repo.GroupsWithSpamFlag(ctx, userID)
	for _, groupID := range flagged {
		s.repo.ClearSpammer(ctx, userID, groupID)
		s.repo.MarkSeen(ctx, userID, groupID)
	}
	if len(flagged) > 0 {
		s.logger.Info("Operator unban applied",
			zap.Int64("user_id", userID),
			zap.Int64s("group_ids", flagged))
	}
	return flagged
}

// Diagnose checks store connectivity and reports cache occupancy.
func (s *Service) Diagnose(ctx context.Context) Diagnostics {
	d := Diagnostics{
		Cache:  s.repo.Cache().Stats(),
		Groups: s.groups.Count(),
	}
	if err := s.repo.Ping(ctx); err != nil {
		d.StoreError = err.Error()
	} else {
		d.StoreOK = true
	}
	return d
}
