package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"eventix/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "eventix:realtime:event:"

// ChannelFor is the Redis channel carrying an event's topic.
func ChannelFor(eventID string) string {
	return channelPrefix + eventID
}

// RedisBroker fans messages out across instances. Publish goes through
// Redis only; Run feeds everything received back into the local hub, so
// the publishing instance's own subscribers are reached the same way.
type RedisBroker struct {
	client *redis.Client
	hub    *Hub
	logger *logger.Logger
}

func NewRedisBroker(client *redis.Client, hub *Hub, log *logger.Logger) *RedisBroker {
	return &RedisBroker{client: client, hub: hub, logger: log}
}

func (b *RedisBroker) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode realtime message: %w", err)
	}
	if err := b.client.Publish(ctx, ChannelFor(msg.EventID.String()), data).Err(); err != nil {
		return fmt.Errorf("publish realtime message: %w", err)
	}
	return nil
}

// Run subscribes to every event channel until ctx is done. ready, if not
// nil, is closed once the subscription is confirmed.
func (b *RedisBroker) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe realtime channels: %w", err)
	}
	if ready != nil {
		close(ready)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				b.logger.Warn("Discarding malformed realtime message",
					"channel", m.Channel,
					"error", err.Error(),
				)
				continue
			}
			b.hub.Broadcast(msg)
		}
	}
}
