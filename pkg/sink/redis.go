package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink publishes events to a Redis pub/sub channel and keeps the
// latest value of every node/kind under a stable key, so late consumers
// can catch up without replaying the stream.
type RedisSink struct {
	client  *redis.Client
	channel string
}

var _ Sink = (*RedisSink)(nil)

// NewRedisSink connects to Redis and verifies the connection.
func NewRedisSink(ctx context.Context, addr, password string, db int, channel string) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	return &RedisSink{client: client, channel: channel}, nil
}

// Publish implements Sink.
func (s *RedisSink) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		return err
	}
	key := fmt.Sprintf("lunix:%d:%s", ev.Node, ev.Kind)
	return s.client.Set(ctx, key, data, 0).Err()
}

// Close implements io.Closer.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
