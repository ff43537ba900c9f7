package telegram

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/gotd/td/crypto"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

// Platform adapts the engine's narrow platform surface onto Telegram RPC
// calls. Peers are resolved through the cache fed by inbound updates.
type Platform struct {
	api    *tg.Client
	peers  *PeerCache
	logger *zap.Logger
}

// NewPlatform creates the Telegram platform adapter.
func NewPlatform(api *tg.Client, peers *PeerCache, logger *zap.Logger) *Platform {
	return &Platform{api: api, peers: peers, logger: logger}
}

// BanMember bans a user from a group.
func (p *Platform) BanMember(ctx context.Context, groupID, userID int64) error {
	channel, ok := p.peers.Channel(groupID)
	if !ok {
		return fmt.Errorf("ban member: unknown group %d", groupID)
	}
	participant, ok := p.peers.UserPeer(userID)
	if !ok {
		// Channel-authored messages attribute the sending channel's id, so
		// the subject of the ban may be a channel rather than a user.
		participant, ok = p.peers.ChannelPeer(userID)
	}
	if !ok {
		return fmt.Errorf("ban member: unknown user %d", userID)
	}

	_, err := p.api.ChannelsEditBanned(ctx, &tg.ChannelsEditBannedRequest{
		Channel:     channel,
		Participant: participant,
		BannedRights: tg.ChatBannedRights{
			ViewMessages: true,
			SendMessages: true,
			UntilDate:    0,
		},
	})
	if err != nil {
		return fmt.Errorf("ban member: %w", err)
	}
	p.logger.Debug("Member banned",
		zap.Int64("user_id", userID),
		zap.Int64("group_id", groupID))
	return nil
}

// DeleteMessage removes one message from a group.
func (p *Platform) DeleteMessage(ctx context.Context, groupID, messageID int64) error {
	channel, ok := p.peers.Channel(groupID)
	if !ok {
		return fmt.Errorf("delete message: unknown group %d", groupID)
	}

	_, err := p.api.ChannelsDeleteMessages(ctx, &tg.ChannelsDeleteMessagesRequest{
		Channel: channel,
		ID:      []int{int(messageID)},
	})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// SendMessage posts a text message into a group.
func (p *Platform) SendMessage(ctx context.Context, groupID int64, text string) error {
	peer, ok := p.peers.ChannelPeer(groupID)
	if !ok {
		return fmt.Errorf("send message: unknown group %d", groupID)
	}

	randomID, err := crypto.RandInt64(rand.Reader)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	_, err = p.api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     peer,
		Message:  text,
		RandomID: randomID,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// StatusNotifier mirrors elevated events into a status chat. A zero chat id
// disables it.
type StatusNotifier struct {
	platform *Platform
	chatID   int64
	logger   *zap.Logger
}

// NewStatusNotifier creates a notifier posting into the given chat.
func NewStatusNotifier(platform *Platform, chatID int64, logger *zap.Logger) *StatusNotifier {
	return &StatusNotifier{platform: platform, chatID: chatID, logger: logger}
}

// NotifyOperator posts the elevated event text into the status chat,
// swallowing failures.
func (n *StatusNotifier) NotifyOperator(ctx context.Context, text string) {
	if n.chatID == 0 {
		return
	}
	if err := n.platform.SendMessage(ctx, n.chatID, text); err != nil {
		n.logger.Warn("Failed to send status notification", zap.Error(err))
	}
}
