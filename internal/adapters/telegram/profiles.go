package telegram

import (
	"context"
	"fmt"

	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

// Profiles fetches user profile data the update stream does not carry, such
// as the bio text the invite-link heuristic inspects.
type Profiles struct {
	api    *tg.Client
	peers  *PeerCache
	logger *zap.Logger
}

// NewProfiles creates the profile source adapter.
func NewProfiles(api *tg.Client, peers *PeerCache, logger *zap.Logger) *Profiles {
	return &Profiles{api: api, peers: peers, logger: logger}
}

// UserBio fetches the user's bio text. Returns an empty string when the
// profile has none.
func (p *Profiles) UserBio(ctx context.Context, userID int64) (string, error) {
	user, ok := p.peers.User(userID)
	if !ok {
		return "", fmt.Errorf("user bio: unknown user %d", userID)
	}

	full, err := p.api.UsersGetFullUser(ctx, user)
	if err != nil {
		return "", fmt.Errorf("user bio: %w", err)
	}

	about, ok := full.FullUser.GetAbout()
	if !ok {
		return "", nil
	}
	p.logger.Debug("Fetched user bio",
		zap.Int64("user_id", userID),
		zap.Int("length", len(about)))
	return about, nil
}
