package domain

import "encoding/json"

// Wire event names exchanged with connected clients. These are part of the
// client contract and must not be renamed.
const (
	EventChatJoin    = "chat:join"
	EventChatLeave   = "chat:leave"
	EventTypingStart = "typing:start"
	EventTypingStop  = "typing:stop"

	EventCallInvite    = "call:invite"
	EventCallIncoming  = "call:incoming"
	EventCallOffer     = "call:offer"
	EventCallAnswer    = "call:answer"
	EventCallCandidate = "call:candidate"
	EventCallAccept    = "call:accept"
	EventCallReject    = "call:reject"
	EventCallEnd       = "call:end"

	EventGroupCallStarted = "group:call:started"
	EventGroupCallEnded   = "group:call:ended"

	EventOnlineUsers    = "online:users"
	EventChatNew        = "chat:new"
	EventChatUpdate     = "chat:update"
	EventMessageNew     = "message:new"
	EventMessageUpdated = "message:updated"
	EventMessageDeleted = "message:deleted"

	EventAck = "ack"
)

// Envelope is the framing for every websocket text frame, inbound and
// outbound. Ack carries a client-chosen correlation id on events that
// support an acknowledgment reply.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   string          `json:"ack,omitempty"`
}

// AckBody is the reply payload for an acknowledged request. Error is empty
// on success.
type AckBody struct {
	Error string `json:"error,omitempty"`
}

// RoomRequest is the inbound payload of chat:join, chat:leave, typing:start
// and typing:stop.
type RoomRequest struct {
	ChatID ChatID `json:"chatId"`
}

// Typing is broadcast to a conversation room while a member is typing.
type Typing struct {
	UserID UserID `json:"userId"`
	ChatID ChatID `json:"chatId"`
}

// MessageDeleted announces removal of a message to a conversation room.
type MessageDeleted struct {
	ChatID    ChatID `json:"chatId"`
	MessageID string `json:"messageId"`
}

// ChatSummary carries a conversation's latest message to each participant's
// private room.
type ChatSummary struct {
	ChatID      ChatID `json:"chatId"`
	LastMessage any    `json:"lastMessage"`
}

// DisplayInfo is the best-effort sender metadata attached to call invites.
type DisplayInfo struct {
	Name   string
	Avatar *string
}
