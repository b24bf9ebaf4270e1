package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/melenae/task-tracker-app/internal/domain"
	"github.com/melenae/task-tracker-app/internal/ports"
)

// ChangeDetector records an issue's status right before it is mutated so the
// transition can be classified once the mutation commits.
type ChangeDetector struct {
	store  ports.IssueStore
	prior  *keyedStore[domain.PriorStatus]
	logger *slog.Logger
	nowFn  func() time.Time
}

func NewChangeDetector(store ports.IssueStore, ttl time.Duration, logger *slog.Logger, nowFn func() time.Time) *ChangeDetector {
	return &ChangeDetector{
		store:  store,
		prior:  newKeyedStore[domain.PriorStatus](ttl),
		logger: logger,
		nowFn:  nowFn,
	}
}

// Capture stores the current status of the issue and returns it together with
// the snapshot it was read from. A missing issue yields no prior status.
func (d *ChangeDetector) Capture(ctx context.Context, issueID int64) (domain.PriorStatus, *domain.Issue) {
	issue, err := d.store.GetIssue(ctx, issueID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			d.logger.WarnContext(ctx, "prior status capture failed",
				"module", "application.change_detector",
				"layer", "application",
				"operation", "capture",
				"outcome", "failure",
				"issue_id", issueID,
				"error", err,
			)
		}
		d.prior.remove(issueID)
		return domain.NoPriorStatus(), nil
	}
	prior := domain.KnownPriorStatus(issue.Status)
	d.prior.put(issueID, prior, d.nowFn())
	return prior, &issue
}

// Consume returns the captured status once and forgets it.
func (d *ChangeDetector) Consume(issueID int64) domain.PriorStatus {
	prior, ok := d.prior.take(issueID)
	if !ok {
		return domain.NoPriorStatus()
	}
	return prior
}

func (d *ChangeDetector) Discard(issueID int64) {
	d.prior.remove(issueID)
}

func (d *ChangeDetector) Pending() int {
	return d.prior.len()
}

func (d *ChangeDetector) SweepExpired() int {
	return d.prior.sweepExpired(d.nowFn())
}
