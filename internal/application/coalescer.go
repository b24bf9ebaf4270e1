package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/melenae/task-tracker-app/internal/domain"
	"github.com/melenae/task-tracker-app/internal/ports"
)

type pendingCoalescing struct {
	OperationID uuid.UUID
	BegunAt     time.Time
	// Created is set when the pending change is the issue's creation.
	Created bool
}

// EventCoalescer merges a primary issue change and its companion comment into
// one outbound event.
type EventCoalescer struct {
	pending       *keyedStore[pendingCoalescing]
	store         ports.IssueStore
	detector      *ChangeDetector
	composer      *EventComposer
	dispatcher    *OutboundDispatcher
	createdWindow time.Duration
	logger        *slog.Logger
	nowFn         func() time.Time
}

func NewEventCoalescer(store ports.IssueStore, detector *ChangeDetector, composer *EventComposer, dispatcher *OutboundDispatcher, cfg Config, logger *slog.Logger, nowFn func() time.Time) *EventCoalescer {
	return &EventCoalescer{
		pending:       newKeyedStore[pendingCoalescing](cfg.CoalescingTTL),
		store:         store,
		detector:      detector,
		composer:      composer,
		dispatcher:    dispatcher,
		createdWindow: cfg.CreatedWindow,
		logger:        logger,
		nowFn:         nowFn,
	}
}

// Begin declares that a comment will follow the next change of the issue.
func (c *EventCoalescer) Begin(issueID int64) uuid.UUID {
	return c.begin(issueID, false)
}

// BeginCreated declares that a comment will follow the creation of the issue.
func (c *EventCoalescer) BeginCreated(issueID int64) uuid.UUID {
	return c.begin(issueID, true)
}

func (c *EventCoalescer) begin(issueID int64, created bool) uuid.UUID {
	opID := uuid.New()
	now := c.nowFn()
	c.pending.put(issueID, pendingCoalescing{OperationID: opID, BegunAt: now, Created: created}, now)
	return opID
}

func (c *EventCoalescer) IsPending(issueID int64) bool {
	_, ok := c.pending.peek(issueID)
	return ok
}

// Complete emits the single coalesced event once the comment is persisted.
func (c *EventCoalescer) Complete(ctx context.Context, issueID int64, comment domain.Comment) {
	entry, ok := c.pending.take(issueID)
	prior := c.detector.Consume(issueID)
	if !ok {
		c.logger.WarnContext(ctx, "no pending coalescing for comment",
			"module", "application.coalescer",
			"layer", "application",
			"operation", "complete",
			"outcome", "skipped",
			"issue_id", issueID,
		)
		return
	}

	issue, err := c.store.GetIssue(ctx, issueID)
	if err != nil {
		c.logger.ErrorContext(ctx, "coalesced issue reload failed",
			"module", "application.coalescer",
			"layer", "application",
			"operation", "complete",
			"outcome", "failure",
			"issue_id", issueID,
			"operation_id", entry.OperationID.String(),
			"error", err,
		)
		return
	}

	var before *domain.Issue
	if !entry.Created {
		before = c.beforeFor(prior, issue)
	}
	event := c.composer.Compose(before, issue, &comment)
	c.logger.InfoContext(ctx, "coalesced issue change with comment",
		"module", "application.coalescer",
		"layer", "application",
		"operation", "complete",
		"outcome", "success",
		"issue_id", issueID,
		"event_type", event.Kind,
		"operation_id", entry.OperationID.String(),
	)
	c.dispatcher.Publish(ctx, event)
}

// beforeFor rebuilds the pre-mutation view from the captured prior status. When
// neither a prior status nor a creation was recorded, the issue counts as new
// only while it is younger than the created window.
func (c *EventCoalescer) beforeFor(prior domain.PriorStatus, issue domain.Issue) *domain.Issue {
	if prior.Known {
		before := issue
		before.Status = prior.Status
		return &before
	}
	if !issue.DateCreate.IsZero() && c.nowFn().Sub(issue.DateCreate) < c.createdWindow {
		return nil
	}
	return &issue
}

// Abandon drops the pending entry without emitting anything.
func (c *EventCoalescer) Abandon(ctx context.Context, issueID int64) {
	entry, ok := c.pending.take(issueID)
	c.detector.Discard(issueID)
	if !ok {
		return
	}
	c.logger.WarnContext(ctx, "coalescing abandoned, no event emitted",
		"module", "application.coalescer",
		"layer", "application",
		"operation", "abandon",
		"outcome", "dropped",
		"issue_id", issueID,
		"operation_id", entry.OperationID.String(),
	)
}

func (c *EventCoalescer) Pending() int {
	return c.pending.len()
}

func (c *EventCoalescer) SweepExpired() int {
	return c.pending.sweepExpired(c.nowFn())
}
