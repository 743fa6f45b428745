package storage

import (
	"context"
	"encoding/json"

	"mediaguard/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher fans ledger events out over Redis Pub/Sub so every API
// instance sees every committed change.
type RedisPublisher struct {
	Redis   *redis.Client
	Channel string
}

// NewRedisPublisher Constructor
func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{Redis: rdb, Channel: channel}
}

// Publish serializes the event to JSON and publishes it on the channel.
func (p *RedisPublisher) Publish(ctx context.Context, ev models.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.Redis.Publish(ctx, p.Channel, string(payload)).Err()
}

// Subscribe returns a subscription to the events channel. The caller closes it.
func (p *RedisPublisher) Subscribe(ctx context.Context) *redis.PubSub {
	return p.Redis.Subscribe(ctx, p.Channel)
}
