package publish

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/dj-oyu/smart-posture/posture-server/internal/config"
)

// NewRedisClient creates a client from cfg.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisSink publishes payload JSON on a pub/sub channel and keeps the newest
// one under <channel>:latest for consumers that join late.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink creates a sink on channel.
func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

// LatestKey is where the newest payload is stored.
func (s *RedisSink) LatestKey() string {
	return s.channel + ":latest"
}

// Name implements Sink.
func (s *RedisSink) Name() string {
	return "redis"
}

// Publish implements Sink.
func (s *RedisSink) Publish(ctx context.Context, ev *Event) error {
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Publish(ctx, s.channel, ev.JSON)
		p.Set(ctx, s.LatestKey(), ev.JSON, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish to %s: %w", s.channel, err)
	}
	return nil
}

// Ping checks the connection.
func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
