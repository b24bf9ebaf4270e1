package ports

import (
	"context"
	"time"
)

type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}

// InboundDeduper remembers broker positions that were already applied so a
// redelivered message is not applied twice.
type InboundDeduper interface {
	FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
