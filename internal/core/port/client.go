package port

import "github.com/parley-im/parley/internal/core/domain"

// Client is one live authenticated connection as seen by the core. Send and
// Ack are best-effort: a full outbound queue drops the frame rather than
// block a broadcast.
type Client interface {
	ID() domain.ConnID
	UserID() domain.UserID
	Send(event string, payload any) error
	Ack(id string, errMsg string) error
	Close() error
}
