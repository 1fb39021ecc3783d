package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	channelKeyPrefix = "naejango:channel:"
	// ChannelPattern matches every channel key, for PSUBSCRIBE.
	ChannelPattern = channelKeyPrefix + "*"
)

func ChannelKey(channelID uuid.UUID) string {
	return channelKeyPrefix + channelID.String()
}

// ChannelIDFromKey parses a key built by ChannelKey.
func ChannelIDFromKey(key string) (uuid.UUID, error) {
	if len(key) <= len(channelKeyPrefix) || key[:len(channelKeyPrefix)] != channelKeyPrefix {
		return uuid.Nil, fmt.Errorf("not a channel key: %q", key)
	}
	return uuid.Parse(key[len(channelKeyPrefix):])
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher publishes to the channel's pub/sub key. Every instance's hub
// relays that key to its own websocket clients.
type RedisPublisher struct {
	client redisPublisher
}

func NewRedisPublisher(client redisPublisher) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, ChannelKey(ev.ChannelID), payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}
