package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisPublisher_Publish(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, TypeApplicationStatusChanged)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	p := NewPublisher(rdb, zap.NewNop().Sugar())
	p.Publish(ctx, Event{
		Type:          TypeApplicationStatusChanged,
		UserID:        7,
		PostingID:     3,
		ApplicationID: 11,
		Status:        "applying",
	})

	select {
	case msg := <-sub.Channel():
		var got Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, uint64(11), got.ApplicationID)
		assert.Equal(t, "applying", got.Status)
		assert.False(t, got.At.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("event was not published")
	}
}

func TestRedisPublisher_ClosedConnectionIsNotFatal(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	p := NewPublisher(rdb, zap.NewNop().Sugar())
	assert.NotPanics(t, func() {
		p.Publish(context.Background(), Event{Type: TypeBookmarkToggled})
	})
}

func TestNewPublisher_WithoutRedis(t *testing.T) {
	p := NewPublisher(nil, zap.NewNop().Sugar())
	assert.IsType(t, NopPublisher{}, p)
	p.Publish(context.Background(), Event{Type: TypeBookmarkToggled})
}
