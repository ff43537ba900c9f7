package telegram

import (
	"context"
	"errors"
	"testing"

	"github.com/gotd/td/bin"
	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestUserBio(t *testing.T) {
	invoker := &fakeInvoker{respond: func(output bin.Decoder) {
		full, ok := output.(*tg.UsersUserFull)
		require.True(t, ok)
		full.FullUser.SetAbout("join t.me/+promo")
	}}
	p := NewProfiles(tg.NewClient(invoker), seededPeers(), zap.NewNop())

	bio, err := p.UserBio(context.Background(), 7)

	require.NoError(t, err)
	assert.Equal(t, "join t.me/+promo", bio)
	require.Len(t, invoker.requests, 1)
	req, ok := invoker.requests[0].(*tg.UsersGetFullUserRequest)
	require.True(t, ok)
	user, ok := req.ID.(*tg.InputUser)
	require.True(t, ok)
	assert.Equal(t, int64(7), user.UserID)
	assert.Equal(t, int64(700), user.AccessHash)
}

func TestUserBioEmptyProfile(t *testing.T) {
	invoker := &fakeInvoker{}
	p := NewProfiles(tg.NewClient(invoker), seededPeers(), zap.NewNop())

	bio, err := p.UserBio(context.Background(), 7)

	require.NoError(t, err)
	assert.Empty(t, bio)
}

func TestUserBioUnknownUser(t *testing.T) {
	invoker := &fakeInvoker{}
	p := NewProfiles(tg.NewClient(invoker), seededPeers(), zap.NewNop())

	_, err := p.UserBio(context.Background(), 404)

	assert.Error(t, err)
	assert.Empty(t, invoker.requests)
}

func TestUserBioRPCFailure(t *testing.T) {
	invoker := &fakeInvoker{err: errors.New("FLOOD_WAIT_30")}
	p := NewProfiles(tg.NewClient(invoker), seededPeers(), zap.NewNop())

	_, err := p.UserBio(context.Background(), 7)

	assert.Error(t, err)
}
