package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenDenylist records revoked access token IDs in Redis until the token
// would have expired anyway, so the set never outgrows the live tokens.
type TokenDenylist struct {
	rdb    *redis.Client
	prefix string
}

// NewTokenDenylist stores entries under "<prefix>:<jti>".
func NewTokenDenylist(rdb *redis.Client, prefix string) *TokenDenylist {
	if prefix == "" {
		prefix = "revoked"
	}
	return &TokenDenylist{rdb: rdb, prefix: prefix}
}

func (d *TokenDenylist) key(jti string) string { return d.prefix + ":" + jti }

// Revoke denylists jti until expiresAt. Tokens that are already past expiry
// need no entry.
func (d *TokenDenylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return d.rdb.Set(ctx, d.key(jti), 1, ttl).Err()
}

// IsRevoked reports whether jti has been denylisted.
func (d *TokenDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	err := d.rdb.Get(ctx, d.key(jti)).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, err
	}
}
