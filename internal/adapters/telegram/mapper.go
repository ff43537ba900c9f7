package telegram

import (
	"github.com/gotd/td/tg"

	"github.com/buzzbuster/antispam/internal/core"
)

// mapMessage converts a channel message update into an engine message event.
// Returns false for service messages, the bot's own outgoing messages and
// messages without a resolvable group.
func mapMessage(update *tg.UpdateNewChannelMessage) (core.MessageEvent, bool) {
	msg, ok := update.Message.(*tg.Message)
	if !ok {
		return core.MessageEvent{}, false
	}

	// MTProto delivers the bot's own outgoing messages back as updates;
	// classifying those would let the bot flag itself.
	if msg.Out {
		return core.MessageEvent{}, false
	}

	peer, ok := msg.PeerID.(*tg.PeerChannel)
	if !ok {
		return core.MessageEvent{}, false
	}

	ev := core.MessageEvent{
		GroupID:   peer.ChannelID,
		MessageID: int64(msg.ID),
		Body:      msg.Message,
	}

	switch from := msg.FromID.(type) {
	case *tg.PeerUser:
		ev.UserID = from.UserID
	case *tg.PeerChannel:
		// Authored on behalf of a channel; attribute to the channel id so
		// enforcement still has a subject.
		ev.UserID = from.ChannelID
		ev.FromChannel = true
	default:
		return core.MessageEvent{}, false
	}

	if fwd, ok := msg.GetFwdFrom(); ok {
		// An automatic forward from the linked broadcast channel carries the
		// saved-from reference.
		if _, saved := fwd.GetSavedFromMsgID(); saved {
			ev.AutoForward = true
		}
	}

	return ev, true
}

// mapParticipant converts a channel participant update into an engine
// membership event.
func mapParticipant(update *tg.UpdateChannelParticipant) core.MembershipEvent {
	prev, prevOK := update.GetPrevParticipant()
	next, nextOK := update.GetNewParticipant()

	ev := core.MembershipEvent{
		UserID:    update.UserID,
		GroupID:   update.ChannelID,
		OldStatus: core.StatusUnknown,
		NewStatus: core.StatusLeft,
	}
	if prevOK {
		ev.OldStatus = participantStatus(prev)
	}
	if nextOK {
		ev.NewStatus = participantStatus(next)
	}
	return ev
}

// participantStatus maps a Telegram participant class onto the engine's
// closed membership-status enum.
func participantStatus(participant tg.ChannelParticipantClass) core.MembershipStatus {
	switch p := participant.(type) {
	case *tg.ChannelParticipantCreator:
		return core.StatusCreator
	case *tg.ChannelParticipantAdmin:
		return core.StatusAdministrator
	case *tg.ChannelParticipant, *tg.ChannelParticipantSelf:
		return core.StatusMember
	case *tg.ChannelParticipantBanned:
		if p.Left {
			return core.StatusKicked
		}
		if p.BannedRights.ViewMessages {
			return core.StatusBanned
		}
		return core.StatusRestricted
	case *tg.ChannelParticipantLeft:
		return core.StatusLeft
	default:
		return core.StatusUnknown
	}
}
