package telegram

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gotd/td/session"
	gotdtelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"github.com/buzzbuster/antispam/internal/core"
	"github.com/buzzbuster/antispam/internal/logging"
)

// Bot owns the Telegram connection and feeds mapped updates into the engine.
// Each handler converts the raw payload at this boundary, tags the context
// with the update's correlation id, and runs to completion; errors never
// escape a handler.
type Bot struct {
	client     *gotdtelegram.Client
	dispatcher tg.UpdateDispatcher
	peers      *PeerCache
	token      string
	logger     *zap.Logger

	pipeline   *core.Pipeline
	membership *core.Membership
	groups     *core.GroupRegistry
}

// NewBot wires a gotd client around the engine. Call Bind before Run; the
// handlers are attached late because the enforcement adapter needs the
// client's API handle first.
func NewBot(
	appID int,
	appHash string,
	token string,
	sessionPath string,
	peers *PeerCache,
	logger *zap.Logger,
) (*Bot, error) {
	storage, err := newSessionStorage(sessionPath)
	if err != nil {
		return nil, fmt.Errorf("session storage: %w", err)
	}

	dispatcher := tg.NewUpdateDispatcher()
	client := gotdtelegram.NewClient(appID, appHash, gotdtelegram.Options{
		UpdateHandler:  dispatcher,
		SessionStorage: storage,
	})

	b := &Bot{
		client:     client,
		dispatcher: dispatcher,
		peers:      peers,
		token:      token,
		logger:     logger,
	}

	dispatcher.OnNewChannelMessage(b.onChannelMessage)
	dispatcher.OnChannelParticipant(b.onChannelParticipant)

	return b, nil
}

// Bind attaches the engine handlers. Must happen before Run.
func (b *Bot) Bind(pipeline *core.Pipeline, membership *core.Membership, groups *core.GroupRegistry) {
	b.pipeline = pipeline
	b.membership = membership
	b.groups = groups
}

func newSessionStorage(path string) (*session.FileStorage, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, err
	}
	return &session.FileStorage{Path: absPath}, nil
}

// API returns the raw RPC client for the platform adapter.
func (b *Bot) API() *tg.Client {
	return b.client.API()
}

// Run connects, authenticates as a bot and processes updates until the
// context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	return b.client.Run(ctx, func(ctx context.Context) error {
		status, err := b.client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("auth status: %w", err)
		}
		if !status.Authorized {
			if _, err := b.client.Auth().Bot(ctx, b.token); err != nil {
				return fmt.Errorf("bot login: %w", err)
			}
		}
		b.logger.Info("Connected to Telegram")
		<-ctx.Done()
		return ctx.Err()
	})
}

func (b *Bot) onChannelMessage(ctx context.Context, e tg.Entities, update *tg.UpdateNewChannelMessage) error {
	b.peers.Remember(e)

	// A supergroup created by migrating a basic chat announces itself with a
	// service message carrying the old chat id. Carrying the registration
	// over keeps settings and user entries attached to the new id.
	if svc, ok := update.Message.(*tg.MessageService); ok {
		if action, ok := svc.Action.(*tg.MessageActionChannelMigrateFrom); ok {
			if peer, ok := svc.PeerID.(*tg.PeerChannel); ok {
				if err := b.groups.Migrate(ctx, action.ChatID, peer.ChannelID); err != nil {
					b.logger.Error("Failed to migrate group id",
						zap.Int64("old_group_id", action.ChatID),
						zap.Int64("new_group_id", peer.ChannelID),
						zap.Error(err))
				}
			}
		}
		return nil
	}

	ev, ok := mapMessage(update)
	if !ok {
		return nil
	}
	ctx = logging.WithUpdateID(ctx, b.logger, logging.UpdateID(int64(update.Pts)))
	b.pipeline.HandleMessage(ctx, ev)
	return nil
}

func (b *Bot) onChannelParticipant(ctx context.Context, e tg.Entities, update *tg.UpdateChannelParticipant) error {
	b.peers.Remember(e)

	ev := mapParticipant(update)
	ctx = logging.WithUpdateID(ctx, b.logger, logging.UpdateID(int64(update.Qts)))
	b.membership.HandleEvent(ctx, ev)
	return nil
}
