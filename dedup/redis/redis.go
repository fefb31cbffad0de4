// Package redis provides a Redis implementation of the webhook.Deduper
// interface, suitable for deployments with multiple webhook replicas.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "botquota:event:"

// Config holds Redis deduper configuration.
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "botquota:event:").
	KeyPrefix string
}

// Deduper implements webhook.Deduper using Redis.
type Deduper struct {
	client    redis.UniversalClient
	keyPrefix string
}

// New creates a new Redis deduper. The client can be *redis.Client,
// *redis.ClusterClient, or *redis.Ring.
func New(client redis.UniversalClient, config Config) (*Deduper, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Deduper{client: client, keyPrefix: prefix}, nil
}

// Seen implements webhook.Deduper.
func (d *Deduper) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.keyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check event key: %w", err)
	}
	return n > 0, nil
}

// Mark implements webhook.Deduper.
func (d *Deduper) Mark(ctx context.Context, eventID string, ttl time.Duration) error {
	if err := d.client.Set(ctx, d.keyPrefix+eventID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark event key: %w", err)
	}
	return nil
}
