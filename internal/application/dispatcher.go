package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/melenae/task-tracker-app/internal/domain"
	"github.com/melenae/task-tracker-app/internal/ports"
)

// OutboundDispatcher publishes composed events. Delivery is best-effort: it
// retries a bounded number of times and never reports failure to the caller.
type OutboundDispatcher struct {
	publisher   ports.EventPublisher
	deadLetters ports.DeadLetterRepository
	logger      *slog.Logger
	maxRetries  int
	ackTimeout  time.Duration
	backoff     time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	nowFn       func() time.Time
}

func NewOutboundDispatcher(publisher ports.EventPublisher, deadLetters ports.DeadLetterRepository, logger *slog.Logger, cfg Config, nowFn func() time.Time) *OutboundDispatcher {
	return &OutboundDispatcher{
		publisher:   publisher,
		deadLetters: deadLetters,
		logger:      logger,
		maxRetries:  cfg.PublishMaxRetries,
		ackTimeout:  cfg.PublishAckTimeout,
		backoff:     cfg.PublishRetryBackoff,
		sleep:       sleepContext,
		nowFn:       nowFn,
	}
}

func (d *OutboundDispatcher) Publish(ctx context.Context, event domain.OutboundEvent) {
	// The caller's cancellation must not cut a publish short. All attempts and
	// backoff sleeps share one ack deadline instead.
	ctx = context.WithoutCancel(ctx)
	payload, err := event.Encode()
	if err != nil {
		d.logger.ErrorContext(ctx, "event encoding failed",
			"module", "application.dispatcher",
			"layer", "application",
			"operation", "publish",
			"outcome", "failure",
			"event_type", event.Kind,
			"issue_id", event.IssueID,
			"error", err,
		)
		return
	}

	sendCtx := ctx
	if d.ackTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.ackTimeout)
		defer cancel()
	}

	attempts := 0
	for {
		attempts++
		err = d.attempt(sendCtx, event, payload)
		if err == nil {
			d.logger.InfoContext(ctx, "issue event sent",
				"module", "application.dispatcher",
				"layer", "application",
				"operation", "publish",
				"outcome", "success",
				"event_type", event.Kind,
				"issue_id", event.IssueID,
				"attempts", attempts,
			)
			return
		}
		if attempts > d.maxRetries || sendCtx.Err() != nil {
			break
		}
		d.logger.WarnContext(ctx, "issue event publish failed, retrying",
			"module", "application.dispatcher",
			"layer", "application",
			"operation", "publish",
			"outcome", "retry",
			"event_type", event.Kind,
			"issue_id", event.IssueID,
			"attempt", attempts,
			"error", err,
		)
		if sleepErr := d.sleep(sendCtx, time.Duration(attempts)*d.backoff); sleepErr != nil {
			break
		}
	}

	d.logger.ErrorContext(ctx, "issue event discarded",
		"module", "application.dispatcher",
		"layer", "application",
		"operation", "publish",
		"outcome", "failure",
		"event_type", event.Kind,
		"issue_id", event.IssueID,
		"attempts", attempts,
		"error", err,
	)
	d.recordDeadLetter(ctx, event, payload, attempts, err)
}

func (d *OutboundDispatcher) attempt(ctx context.Context, event domain.OutboundEvent, payload []byte) error {
	if d.publisher == nil {
		return errPublisherMissing
	}
	return d.publisher.Publish(ctx, string(event.Kind), payload, event.PartitionKey())
}

func (d *OutboundDispatcher) recordDeadLetter(ctx context.Context, event domain.OutboundEvent, payload []byte, attempts int, cause error) {
	if d.deadLetters == nil {
		return
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := d.deadLetters.Record(ctx, ports.DeadLetter{
		DeadLetterID: uuid.New(),
		EventType:    string(event.Kind),
		IssueID:      event.IssueID,
		PartitionKey: event.PartitionKey(),
		Payload:      payload,
		Attempts:     attempts,
		LastError:    msg,
		FailedAt:     d.nowFn(),
	}); err != nil {
		d.logger.WarnContext(ctx, "dead letter record failed",
			"module", "application.dispatcher",
			"layer", "application",
			"operation", "record_dead_letter",
			"outcome", "failure",
			"issue_id", event.IssueID,
			"error", err,
		)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var errPublisherMissing = errors.New("event publisher is not configured")
