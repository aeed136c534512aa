package port

import (
	"context"

	"github.com/parley-im/parley/internal/core/domain"
)

// Membership answers whether a user is an active participant of a
// conversation. Consulted on every room join and every signaling event; the
// authoritative data lives in the external store.
type Membership interface {
	IsMember(ctx context.Context, chat domain.ChatID, user domain.UserID) (bool, error)
}

// Directory resolves display metadata for a user. Lookups are best-effort;
// callers must tolerate failure.
type Directory interface {
	DisplayInfo(ctx context.Context, user domain.UserID) (domain.DisplayInfo, error)
}
