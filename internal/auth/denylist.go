package auth

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const denylistPrefix = "jobboard:revoked:"

// Denylist remembers revoked token ids until the token would have expired anyway.
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type (
	RedisDenylist struct {
		rdb *redis.Client
	}

	NopDenylist struct{}
)

func NewDenylist(rdb *redis.Client) Denylist {
	if rdb == nil {
		return NopDenylist{}
	}
	return &RedisDenylist{rdb: rdb}
}

func (d *RedisDenylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := d.rdb.Set(ctx, denylistPrefix+tokenID, 1, ttl).Err(); err != nil {
		return errors.Wrap(err, "revoke token")
	}
	return nil
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.rdb.Exists(ctx, denylistPrefix+tokenID).Result()
	if err != nil {
		return false, errors.Wrap(err, "check revoked token")
	}
	return n > 0, nil
}

func (NopDenylist) Revoke(context.Context, string, time.Time) error { return nil }

func (NopDenylist) IsRevoked(context.Context, string) (bool, error) { return false, nil }
