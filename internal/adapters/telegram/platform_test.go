package telegram

import (
	"context"
	"testing"

	"github.com/gotd/td/bin"
	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeInvoker records RPC requests and lets a test shape each response.
type fakeInvoker struct {
	requests []bin.Encoder
	respond  func(output bin.Decoder)
	err      error
}

func (f *fakeInvoker) Invoke(ctx context.Context, input bin.Encoder, output bin.Decoder) error {
	f.requests = append(f.requests, input)
	if f.err != nil {
		return f.err
	}
	if f.respond != nil {
		f.respond(output)
	}
	return nil
}

func seededPeers() *PeerCache {
	peers := NewPeerCache()
	peers.Remember(tg.Entities{
		Channels: map[int64]*tg.Channel{
			100: {ID: 100, AccessHash: 1000},
			55:  {ID: 55, AccessHash: 5500},
		},
		Users: map[int64]*tg.User{
			7: {ID: 7, AccessHash: 700},
		},
	})
	return peers
}

func TestBanMemberUser(t *testing.T) {
	invoker := &fakeInvoker{}
	p := NewPlatform(tg.NewClient(invoker), seededPeers(), zap.NewNop())

	err := p.BanMember(context.Background(), 100, 7)

	require.NoError(t, err)
	require.Len(t, invoker.requests, 1)
	req, ok := invoker.requests[0].(*tg.ChannelsEditBannedRequest)
	require.True(t, ok)
	participant, ok := req.Participant.(*tg.InputPeerUser)
	require.True(t, ok)
	assert.Equal(t, int64(7), participant.UserID)
	assert.True(t, req.BannedRights.ViewMessages)
}

func TestBanMemberChannelSender(t *testing.T) {
	// Channel-authored messages carry the sending channel's id as the
	// subject; the ban must target that channel, not a user.
	invoker := &fakeInvoker{}
	p := NewPlatform(tg.NewClient(invoker), seededPeers(), zap.NewNop())

	err := p.BanMember(context.Background(), 100, 55)

	require.NoError(t, err)
	require.Len(t, invoker.requests, 1)
	req, ok := invoker.requests[0].(*tg.ChannelsEditBannedRequest)
	require.True(t, ok)
	participant, ok := req.Participant.(*tg.InputPeerChannel)
	require.True(t, ok)
	assert.Equal(t, int64(55), participant.ChannelID)
}

func TestBanMemberUnknownSubject(t *testing.T) {
	invoker := &fakeInvoker{}
	p := NewPlatform(tg.NewClient(invoker), seededPeers(), zap.NewNop())

	err := p.BanMember(context.Background(), 100, 404)

	assert.Error(t, err)
	assert.Empty(t, invoker.requests)
}
