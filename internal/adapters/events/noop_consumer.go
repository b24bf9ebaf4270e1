package events

import (
	"context"
	"time"
)

// NoopConsumer stands in when no brokers are configured. Poll blocks for the
// poll timeout so the listener loop does not spin.
type NoopConsumer struct {
	wait time.Duration
}

func NewNoopConsumer(wait time.Duration) *NoopConsumer {
	return &NoopConsumer{wait: wait}
}

func (n *NoopConsumer) Poll(ctx context.Context, _ int) ([]Message, error) {
	if n.wait <= 0 {
		return nil, nil
	}
	timer := time.NewTimer(n.wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	}
}

func (n *NoopConsumer) Close() error {
	return nil
}
