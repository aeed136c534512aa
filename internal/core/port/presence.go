package port

import (
	"context"

	"github.com/parley-im/parley/internal/core/domain"
)

// PresenceMirror publishes online/offline transitions to an external store
// so sibling services can read online status without holding a socket. The
// in-process registry stays authoritative; mirror failures are logged and
// otherwise ignored.
type PresenceMirror interface {
	Online(ctx context.Context, user domain.UserID) error
	Offline(ctx context.Context, user domain.UserID) error
}
