package port

import (
	"context"

	"github.com/parley-im/parley/internal/core/domain"
)

// CredentialVerifier validates the bearer credential presented at handshake
// and resolves it to a user identity. Implemented outside the core; the
// gateway consumes it exactly once per connection attempt.
type CredentialVerifier interface {
	Verify(ctx context.Context, token string) (domain.UserID, error)
}
