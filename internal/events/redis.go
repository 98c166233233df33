package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pkordes/tripvote/internal/domain"
)

// publisher is the slice of the go-redis client this package uses.
type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisSink publishes events to a per-trip Redis pub/sub channel named
// "<prefix>:<tripID>", so subscribers can follow a single trip.
type RedisSink struct {
	client publisher
	prefix string
}

// NewRedisSink returns a sink publishing through client.
func NewRedisSink(client publisher, prefix string) *RedisSink {
	return &RedisSink{client: client, prefix: prefix}
}

// Channel returns the pub/sub channel e is published on.
func (s *RedisSink) Channel(e domain.Event) string {
	return s.prefix + ":" + e.TripID.String()
}

func (s *RedisSink) Publish(ctx context.Context, e domain.Event) error {
	payload, err := encode(e)
	if err != nil {
		return err
	}
	if err := s.client.Publish(ctx, s.Channel(e), payload).Err(); err != nil {
		return fmt.Errorf("events.RedisSink.Publish: %w", err)
	}
	return nil
}

// NewRedisClient parses url and pings the server once.
// The caller owns the returned client and must Close it.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("events.NewRedisClient: parse url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("events.NewRedisClient: ping: %w", err)
	}
	return client, nil
}
