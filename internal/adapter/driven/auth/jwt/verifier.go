package jwt

import (
	"context"
	"fmt"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/parley-im/parley/internal/core/domain"
)

// Verifier implements port.CredentialVerifier for HMAC-signed access
// tokens. The user identity is read from the userId claim, with sub as a
// fallback.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

func (v *Verifier) Verify(ctx context.Context, token string) (domain.UserID, error) {
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	if !parsed.Valid {
		return "", domain.ErrUnauthenticated
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: claims type mismatch", domain.ErrUnauthenticated)
	}
	if id, ok := claims["userId"].(string); ok && id != "" {
		return domain.UserID(id), nil
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return domain.UserID(sub), nil
	}
	return "", fmt.Errorf("%w: token carries no user id", domain.ErrUnauthenticated)
}
