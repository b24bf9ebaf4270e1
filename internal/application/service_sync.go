package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/melenae/task-tracker-app/internal/domain"
)

// BeginCoalescing must be called before persisting an issue change that a
// comment will follow in the same logical operation.
func (s *Service) BeginCoalescing(issueID int64) uuid.UUID {
	return s.coalescer.Begin(issueID)
}

// AbandonCoalescing drops a pending coalescing entry; nothing is emitted.
func (s *Service) AbandonCoalescing(ctx context.Context, issueID int64) {
	s.coalescer.Abandon(ctx, issueID)
}

// RecordChange is called after an issue mutation commits. before is nil for a
// newly created issue.
func (s *Service) RecordChange(ctx context.Context, before *domain.Issue, after domain.Issue) {
	if IsInboundOrigin(ctx) {
		s.detector.Discard(after.ID)
		s.logger.DebugContext(ctx, "inbound change not republished",
			"module", "application.sync",
			"layer", "application",
			"operation", "record_change",
			"outcome", "skipped",
			"issue_id", after.ID,
		)
		return
	}
	if s.coalescer.IsPending(after.ID) {
		s.logger.InfoContext(ctx, "issue event delayed until comment is stored",
			"module", "application.sync",
			"layer", "application",
			"operation", "record_change",
			"outcome", "deferred",
			"issue_id", after.ID,
		)
		return
	}
	s.detector.Discard(after.ID)
	s.dispatcher.Publish(ctx, s.composer.Compose(before, after, nil))
}

// RecordComment is called after a comment is persisted. With coalesce set and
// a pending entry the comment completes the coalesced event; otherwise a
// standalone comment_added event is emitted.
func (s *Service) RecordComment(ctx context.Context, issueID int64, comment domain.Comment, coalesce bool) {
	if IsInboundOrigin(ctx) {
		return
	}
	if coalesce {
		if s.coalescer.IsPending(issueID) {
			s.coalescer.Complete(ctx, issueID, comment)
			return
		}
		s.logger.WarnContext(ctx, "coalesce requested without pending change",
			"module", "application.sync",
			"layer", "application",
			"operation", "record_comment",
			"outcome", "standalone",
			"issue_id", issueID,
		)
	}
	s.dispatcher.Publish(ctx, s.composer.ComposeComment(comment))
}

func (s *Service) RecordDelete(ctx context.Context, issueID int64, name string) {
	s.detector.Discard(issueID)
	s.coalescer.Abandon(ctx, issueID)
	if IsInboundOrigin(ctx) {
		return
	}
	s.dispatcher.Publish(ctx, s.composer.ComposeDelete(issueID, name))
}

func (s *Service) SyncStatus() SyncStatus {
	return SyncStatus{
		PendingCoalescing:  s.coalescer.Pending(),
		PendingPriorStatus: s.detector.Pending(),
	}
}

// SweepExpired drops transient entries that outlived their operation.
func (s *Service) SweepExpired(ctx context.Context) {
	pending := s.coalescer.SweepExpired()
	prior := s.detector.SweepExpired()
	if pending+prior == 0 {
		return
	}
	s.logger.WarnContext(ctx, "expired sync entries removed",
		"module", "application.sync",
		"layer", "application",
		"operation", "sweep_expired",
		"outcome", "success",
		"pending_coalescing", pending,
		"prior_status", prior,
	)
}

// RunJanitor sweeps expired entries until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.SweepExpired(ctx)
		}
	}
}
