package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CallKind enumerates the call-lifecycle events the relay forwards. The
// relay enforces no ordering between them; call state lives entirely in the
// two endpoints.
type CallKind string

const (
	CallInvite    CallKind = "invite"
	CallOffer     CallKind = "offer"
	CallAnswer    CallKind = "answer"
	CallCandidate CallKind = "candidate"
	CallAccept    CallKind = "accept"
	CallReject    CallKind = "reject"
	CallEnd       CallKind = "end"
)

// CallKindForEvent maps an inbound wire event name to its relay kind.
func CallKindForEvent(event string) (CallKind, bool) {
	switch event {
	case EventCallInvite:
		return CallInvite, true
	case EventCallOffer:
		return CallOffer, true
	case EventCallAnswer:
		return CallAnswer, true
	case EventCallCandidate:
		return CallCandidate, true
	case EventCallAccept:
		return CallAccept, true
	case EventCallReject:
		return CallReject, true
	case EventCallEnd:
		return CallEnd, true
	}
	return "", false
}

// OutboundEvent is the wire name the target receives. An invite arrives as
// call:incoming; every other kind keeps its inbound name.
func (k CallKind) OutboundEvent() string {
	if k == CallInvite {
		return EventCallIncoming
	}
	return "call:" + string(k)
}

// CallPayload is the inbound payload shared by every point-to-point call
// event. SDP and Candidate are opaque to the gateway and forwarded verbatim.
type CallPayload struct {
	ChatID    ChatID          `json:"chatId"`
	ToUserID  UserID          `json:"toUserId"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Type      string          `json:"type,omitempty"`
}

var errMissingField = errors.New("missing required field")

// Validate reports whether the payload carries every field the kind
// requires. ChatID and ToUserID are always required; the signaling blob only
// for offer, answer and candidate.
func (p CallPayload) Validate(k CallKind) error {
	if p.ChatID == "" {
		return fmt.Errorf("%w: chatId", errMissingField)
	}
	if p.ToUserID == "" {
		return fmt.Errorf("%w: toUserId", errMissingField)
	}
	switch k {
	case CallOffer, CallAnswer:
		if emptyJSON(p.SDP) {
			return fmt.Errorf("%w: sdp", errMissingField)
		}
	case CallCandidate:
		if emptyJSON(p.Candidate) {
			return fmt.Errorf("%w: candidate", errMissingField)
		}
	}
	return nil
}

func emptyJSON(m json.RawMessage) bool {
	return len(m) == 0 || string(m) == "null"
}

// CallIncoming is the enriched payload delivered for call:invite.
// FromUserName and FromUserAvatar are best-effort; a failed directory lookup
// leaves them unset without blocking delivery.
type CallIncoming struct {
	ChatID         ChatID  `json:"chatId"`
	FromUserID     UserID  `json:"fromUserId"`
	FromUserName   string  `json:"fromUserName,omitempty"`
	FromUserAvatar *string `json:"fromUserAvatar,omitempty"`
	Type           string  `json:"type,omitempty"`
	Timestamp      int64   `json:"timestamp"`
}

// CallRelayed is the outbound payload for every non-invite kind.
type CallRelayed struct {
	ChatID     ChatID          `json:"chatId"`
	FromUserID UserID          `json:"fromUserId"`
	SDP        json.RawMessage `json:"sdp,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// GroupCallPayload is the inbound payload of group:call:started and
// group:call:ended.
type GroupCallPayload struct {
	ChatID ChatID `json:"chatId"`
	Type   string `json:"type,omitempty"`
}

// GroupCallAnnounce is broadcast to a conversation room when a member starts
// or ends a group call.
type GroupCallAnnounce struct {
	ChatID    ChatID `json:"chatId"`
	Type      string `json:"type,omitempty"`
	StartedBy UserID `json:"startedBy,omitempty"`
	EndedBy   UserID `json:"endedBy,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
