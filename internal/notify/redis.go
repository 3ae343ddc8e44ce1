package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// RedisBus shares events between service instances over Redis pub/sub.
type RedisBus struct {
	rdb     redisClient
	channel string
	logger  *zap.Logger
}

func NewRedisBus(rdb *redis.Client, channel string, logger *zap.Logger) *RedisBus {
	return newRedisBus(rdb, channel, logger)
}

func newRedisBus(rdb redisClient, channel string, logger *zap.Logger) *RedisBus {
	if channel == "" {
		channel = "bookings"
	}
	return &RedisBus{rdb: rdb, channel: channel, logger: logger}
}

func (b *RedisBus) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Relay forwards every event on the channel into dst until ctx is done.
func (b *RedisBus) Relay(ctx context.Context, dst Sink) {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()
	b.forward(ctx, sub.Channel(), dst)
}

func (b *RedisBus) forward(ctx context.Context, ch <-chan *redis.Message, dst Sink) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				b.logger.Warn("discarding malformed event", zap.String("payload", msg.Payload), zap.Error(err))
				continue
			}
			if err := dst.Publish(ctx, evt); err != nil {
				b.logger.Warn("relay publish failed", zap.Error(err))
			}
		}
	}
}
