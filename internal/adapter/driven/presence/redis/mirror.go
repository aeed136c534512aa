package redis

import (
	"context"
	"errors"
	"time"

	"github.com/parley-im/parley/internal/core/domain"
	goredis "github.com/redis/go-redis/v9"
)

// Mirror implements port.PresenceMirror on redis. Each online user gets a
// TTL-bounded key holding this gateway's id, so sibling services can answer
// "is X online" without holding a socket. The TTL caps staleness if the
// gateway dies without cleaning up.
type Mirror struct {
	rdb       *goredis.Client
	gatewayID string
	ttl       time.Duration
}

type Config struct {
	Addr      string
	Password  string
	DB        int
	GatewayID string
	TTL       time.Duration // key lifetime; defaults to 2h
}

func NewMirror(c Config) (*Mirror, error) {
	if c.TTL <= 0 {
		c.TTL = 2 * time.Hour
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Mirror{rdb: rdb, gatewayID: c.GatewayID, ttl: c.TTL}, nil
}

func presenceKey(user domain.UserID) string {
	return "presence:online:" + user.String()
}

func (m *Mirror) Online(ctx context.Context, user domain.UserID) error {
	return m.rdb.Set(ctx, presenceKey(user), m.gatewayID, m.ttl).Err()
}

func (m *Mirror) Offline(ctx context.Context, user domain.UserID) error {
	return m.rdb.Del(ctx, presenceKey(user)).Err()
}

// Lookup reports whether user has a mirrored online entry and which gateway
// wrote it.
func (m *Mirror) Lookup(ctx context.Context, user domain.UserID) (string, bool, error) {
	val, err := m.rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (m *Mirror) Close() error {
	return m.rdb.Close()
}
