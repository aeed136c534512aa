package service

import (
	"context"
	"time"

	"github.com/parley-im/parley/internal/core/domain"
	"github.com/parley-im/parley/internal/core/port"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DropReason says why the relay discarded an event. The client is never
// told; the reason exists so the failure path is observable in logs and
// tests.
type DropReason string

const (
	DropMissingField    DropReason = "missing-field"
	DropSenderNotMember DropReason = "sender-not-member"
	DropTargetNotMember DropReason = "target-not-member"
	DropAuthCheckFailed DropReason = "auth-check-failed"
	DropTargetOffline   DropReason = "target-offline"
)

// Outcome is the tagged result of a relay attempt: delivered, or dropped
// with a reason.
type Outcome struct {
	Delivered bool
	Reason    DropReason
}

func delivered() Outcome           { return Outcome{Delivered: true} }
func dropped(r DropReason) Outcome { return Outcome{Reason: r} }

// Relay forwards call-lifecycle events between authorized participants. It
// is stateless per event: nothing is recorded, no ordering is verified, and
// an answer with no preceding offer is still relayed.
type Relay struct {
	members   port.Membership
	directory port.Directory
	rooms     *Rooms
	now       func() time.Time
}

func NewRelay(members port.Membership, directory port.Directory, rooms *Rooms) *Relay {
	return &Relay{
		members:   members,
		directory: directory,
		rooms:     rooms,
		now:       time.Now,
	}
}

// Relay validates, authorizes both endpoints against the conversation, and
// delivers the event to the target's private room. Every failure drops the
// event silently from the sender's point of view.
func (s *Relay) Relay(ctx context.Context, kind domain.CallKind, from domain.UserID, p domain.CallPayload) Outcome {
	l := log.With().
		Str("kind", string(kind)).
		Str("from", from.String()).
		Str("to", p.ToUserID.String()).
		Str("chat_id", p.ChatID.String()).
		Logger()

	if err := p.Validate(kind); err != nil {
		l.Debug().Err(err).Msg("Dropping call signal")
		return dropped(DropMissingField)
	}

	// Both the sender and the target must be members of the conversation.
	if out, ok := s.authorize(ctx, p.ChatID, from, DropSenderNotMember, l); !ok {
		return out
	}
	if out, ok := s.authorize(ctx, p.ChatID, p.ToUserID, DropTargetNotMember, l); !ok {
		return out
	}

	var payload any
	if kind == domain.CallInvite {
		payload = s.inviteWithSender(ctx, from, p)
	} else {
		payload = domain.CallRelayed{
			ChatID:     p.ChatID,
			FromUserID: from,
			SDP:        p.SDP,
			Candidate:  p.Candidate,
			Reason:     p.Reason,
		}
	}

	n := s.rooms.Broadcast(domain.UserRoom(p.ToUserID), kind.OutboundEvent(), payload, "")
	if n == 0 {
		l.Debug().Msg("Call signal target has no live connection")
		return dropped(DropTargetOffline)
	}
	return delivered()
}

// GroupCallStarted announces a group call to every other subscriber of the
// conversation room. Only the sender's membership is checked; there is no
// per-target authorization for a room broadcast.
func (s *Relay) GroupCallStarted(ctx context.Context, c port.Client, p domain.GroupCallPayload) Outcome {
	return s.groupAnnounce(ctx, c, p, domain.EventGroupCallStarted)
}

// GroupCallEnded announces the end of a group call.
func (s *Relay) GroupCallEnded(ctx context.Context, c port.Client, p domain.GroupCallPayload) Outcome {
	return s.groupAnnounce(ctx, c, p, domain.EventGroupCallEnded)
}

func (s *Relay) groupAnnounce(ctx context.Context, c port.Client, p domain.GroupCallPayload, event string) Outcome {
	l := log.With().
		Str("event", event).
		Str("from", c.UserID().String()).
		Str("chat_id", p.ChatID.String()).
		Logger()

	if p.ChatID == "" {
		l.Debug().Msg("Dropping group call announce")
		return dropped(DropMissingField)
	}
	if out, ok := s.authorize(ctx, p.ChatID, c.UserID(), DropSenderNotMember, l); !ok {
		return out
	}

	announce := domain.GroupCallAnnounce{
		ChatID:    p.ChatID,
		Timestamp: s.now().UnixMilli(),
	}
	if event == domain.EventGroupCallStarted {
		announce.Type = p.Type
		announce.StartedBy = c.UserID()
	} else {
		announce.EndedBy = c.UserID()
	}

	s.rooms.Broadcast(domain.ChatRoom(p.ChatID), event, announce, c.ID())
	return delivered()
}

func (s *Relay) authorize(ctx context.Context, chat domain.ChatID, user domain.UserID, miss DropReason, l zerolog.Logger) (Outcome, bool) {
	ok, err := s.members.IsMember(ctx, chat, user)
	if err != nil {
		l.Warn().Err(err).Str("user_id", user.String()).Msg("Membership lookup failed")
		return dropped(DropAuthCheckFailed), false
	}
	if !ok {
		l.Debug().Str("user_id", user.String()).Msg("Dropping call signal: not a member")
		return dropped(miss), false
	}
	return Outcome{}, true
}

// inviteWithSender enriches an invite with display metadata for the caller.
// The lookup is best-effort: on failure the invite still goes out, just
// without name and avatar.
func (s *Relay) inviteWithSender(ctx context.Context, from domain.UserID, p domain.CallPayload) domain.CallIncoming {
	out := domain.CallIncoming{
		ChatID:     p.ChatID,
		FromUserID: from,
		Type:       p.Type,
		Timestamp:  s.now().UnixMilli(),
	}
	info, err := s.directory.DisplayInfo(ctx, from)
	if err != nil {
		log.Warn().Err(err).Str("user_id", from.String()).Msg("Error fetching caller info for call invite")
		return out
	}
	out.FromUserName = info.Name
	out.FromUserAvatar = info.Avatar
	return out
}
