package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/melenae/task-tracker-app/internal/ports"
	"github.com/redis/go-redis/v9"
)

// InboundDeduper marks broker positions as seen with SETNX so redelivered
// messages are applied once across restarts and replicas.
type InboundDeduper struct {
	client *redis.Client
}

var _ ports.InboundDeduper = (*InboundDeduper)(nil)

func NewInboundDeduper(client *redis.Client) *InboundDeduper {
	return &InboundDeduper{client: client}
}

func (d *InboundDeduper) FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := d.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

func (d *InboundDeduper) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}
