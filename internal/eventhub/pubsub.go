package eventhub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"mediaguard/backend/internal/models"
)

// ListenRedis forwards events from a Redis subscription into the hub until
// ctx ends or the subscription closes. Malformed payloads are skipped.
func (h *Hub) ListenRedis(ctx context.Context, sub *redis.PubSub) {
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				h.log.Warn("redis subscription closed")
				return
			}
			ev, err := decodeEvent(msg.Payload)
			if err != nil {
				h.log.Warn("skipping redis message", "channel", msg.Channel, "err", err)
				continue
			}
			if err := h.Publish(ctx, ev); err != nil {
				return
			}
		}
	}
}

func decodeEvent(payload string) (models.Event, error) {
	var ev models.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return models.Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == "" {
		return models.Event{}, fmt.Errorf("decode event: missing type")
	}
	return ev, nil
}
