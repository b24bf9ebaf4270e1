package events

import (
	"context"
	"log/slog"
)

// LoggingPublisher records events in the log instead of a broker. It is used
// when no brokers are configured.
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	p.logger.InfoContext(ctx, "issue event published to log",
		"module", "events.publisher",
		"layer", "adapter",
		"operation", "publish",
		"outcome", "success",
		"event_type", eventType,
		"partition_key", partitionKey,
		"payload_bytes", len(payload),
	)
	p.logger.DebugContext(ctx, "issue event payload", "payload", string(payload))
	return nil
}

func (p *LoggingPublisher) Close() error {
	return nil
}
