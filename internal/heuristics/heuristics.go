// Package heuristics holds supplementary spam signals OR-ed into the
// classification verdict alongside the text classifier. Each heuristic is a
// cheap local check over data the platform already delivered with the event.
package heuristics

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"github.com/buzzbuster/antispam/internal/core"
	"github.com/buzzbuster/antispam/internal/utils"
)

// invitePattern matches messenger invite links commonly planted in spammer
// bios.
var invitePattern = regexp.MustCompile(
	`(?i)(?:t\.me|telegram\.me)/(?:joinchat/|\+)[A-Za-z0-9_-]+`)

// BioInviteLinks flags users whose bio carries an invite link, a strong
// spam-account marker. Message updates do not carry the bio, so it is fetched
// through the profile source at check time.
type BioInviteLinks struct {
	profiles core.ProfileSource
	logger   *zap.Logger
	text     *utils.TextProcessor
}

// NewBioInviteLinks creates the bio invite-link heuristic.
func NewBioInviteLinks(profiles core.ProfileSource, logger *zap.Logger, text *utils.TextProcessor) *BioInviteLinks {
	return &BioInviteLinks{profiles: profiles, logger: logger, text: text}
}

// Flags implements core.Heuristic.
func (h *BioInviteLinks) Flags(ctx context.Context, ev core.MessageEvent) (bool, string) {
	bio := ev.UserBio
	if bio == "" && h.profiles != nil {
		fetched, err := h.profiles.UserBio(ctx, ev.UserID)
		if err != nil {
			h.logger.Debug("Bio lookup failed, skipping heuristic",
				zap.Int64("user_id", ev.UserID),
				zap.Error(err))
			return false, "bio_invite_links"
		}
		bio = fetched
	}
	if bio == "" {
		return false, "bio_invite_links"
	}
	// Normalize first so homoglyph-disguised links still match.
	bio = h.text.NormalizeText(bio)
	if invitePattern.MatchString(bio) {
		h.logger.Debug("Invite link found in user bio",
			zap.Int64("user_id", ev.UserID))
		return true, "bio_invite_links"
	}
	return false, "bio_invite_links"
}

// ChannelMessages flags messages authored on behalf of a channel rather than
// the user, excluding automatic forwards from a linked broadcast channel
// (those are handled by the pipeline's forward short-circuit).
type ChannelMessages struct {
	logger *zap.Logger
}

// NewChannelMessages creates the channel-authored-message heuristic.
func NewChannelMessages(logger *zap.Logger) *ChannelMessages {
	return &ChannelMessages{logger: logger}
}

// Flags implements core.Heuristic.
func (h *ChannelMessages) Flags(ctx context.Context, ev core.MessageEvent) (bool, string) {
	if ev.FromChannel && !ev.AutoForward {
		h.logger.Debug("Message sent on behalf of a channel",
			zap.Int64("user_id", ev.UserID),
			zap.Int64("group_id", ev.GroupID))
		return true, "channel_message"
	}
	return false, "channel_message"
}
