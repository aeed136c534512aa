package service

import (
	"github.com/parley-im/parley/internal/core/domain"
)

// Notifier is the write-side trigger surface consumed by the CRUD layer
// after it persists a change. Payloads are opaque to the gateway and
// forwarded as-is. All delivery is best-effort fan-out; an offline
// participant simply misses the event.
type Notifier struct {
	rooms    *Rooms
	presence *Registry
}

func NewNotifier(rooms *Rooms, presence *Registry) *Notifier {
	return &Notifier{
		rooms:    rooms,
		presence: presence,
	}
}

// NewChat announces a freshly created conversation to each participant's
// private room.
func (n *Notifier) NewChat(participants []domain.UserID, chat any) {
	for _, p := range participants {
		n.rooms.Broadcast(domain.UserRoom(p), domain.EventChatNew, chat, "")
	}
}

// NewMessage fans a persisted message out to the conversation room,
// excluding the sender's own current connection. A sender with no
// registered connection excludes nobody.
func (n *Notifier) NewMessage(sender domain.UserID, chat domain.ChatID, msg any) {
	var exclude domain.ConnID
	if conn, ok := n.presence.Lookup(sender); ok {
		exclude = conn
	}
	n.rooms.Broadcast(domain.ChatRoom(chat), domain.EventMessageNew, msg, exclude)
}

// MessageUpdated announces an edit to the conversation room.
func (n *Notifier) MessageUpdated(chat domain.ChatID, msg any) {
	n.rooms.Broadcast(domain.ChatRoom(chat), domain.EventMessageUpdated, msg, "")
}

// MessageDeleted announces a deletion to the conversation room.
func (n *Notifier) MessageDeleted(chat domain.ChatID, messageID string) {
	n.rooms.Broadcast(domain.ChatRoom(chat), domain.EventMessageDeleted, domain.MessageDeleted{
		ChatID:    chat,
		MessageID: messageID,
	}, "")
}

// ChatSummaryUpdated pushes a conversation's latest message to each
// participant's private room, for sidebar previews.
func (n *Notifier) ChatSummaryUpdated(participants []domain.UserID, chat domain.ChatID, lastMessage any) {
	payload := domain.ChatSummary{
		ChatID:      chat,
		LastMessage: lastMessage,
	}
	for _, p := range participants {
		n.rooms.Broadcast(domain.UserRoom(p), domain.EventChatUpdate, payload, "")
	}
}
