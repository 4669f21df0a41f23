// Package events publishes bookmark and application activity to Redis pub/sub
// for downstream consumers. Publishing never fails the originating request.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	TypeBookmarkToggled          = "BOOKMARK_TOGGLED"
	TypeApplicationStatusChanged = "APPLICATION_STATUS_CHANGED"
)

type (
	Event struct {
		Type          string    `json:"type"`
		UserID        uint64    `json:"userId"`
		PostingID     uint64    `json:"postingId"`
		ApplicationID uint64    `json:"applicationId,omitempty"`
		Status        string    `json:"status,omitempty"`
		Bookmarked    *bool     `json:"bookmarked,omitempty"`
		At            time.Time `json:"at"`
	}

	Publisher interface {
		Publish(ctx context.Context, e Event)
	}

	RedisPublisher struct {
		rdb    *redis.Client
		logger *zap.SugaredLogger
	}

	NopPublisher struct{}
)

func NewPublisher(rdb *redis.Client, l *zap.SugaredLogger) Publisher {
	if rdb == nil {
		return NopPublisher{}
	}
	return &RedisPublisher{rdb: rdb, logger: l}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		p.logger.Warnw("marshal event", "type", e.Type, "err", err)
		return
	}
	if err := p.rdb.Publish(ctx, e.Type, payload).Err(); err != nil {
		p.logger.Warnw("publish event", "type", e.Type, "err", err)
	}
}

func (NopPublisher) Publish(context.Context, Event) {}
