package application

import (
	"context"
	"fmt"

	"github.com/melenae/task-tracker-app/internal/domain"
	"github.com/melenae/task-tracker-app/internal/ports"
)

// SyncedStore wraps the entity store with the sync pipeline: it captures the
// prior status before each issue mutation and records the change after it
// commits. Status transitions without a pending companion comment are rejected
// unless the mutation comes from an inbound event.
type SyncedStore struct {
	store   ports.IssueStore
	service *Service
}

var _ ports.IssueStore = (*SyncedStore)(nil)

func NewSyncedStore(store ports.IssueStore, service *Service) *SyncedStore {
	return &SyncedStore{store: store, service: service}
}

func (s *SyncedStore) GetIssue(ctx context.Context, id int64) (domain.Issue, error) {
	return s.store.GetIssue(ctx, id)
}

func (s *SyncedStore) CreateIssue(ctx context.Context, params ports.CreateIssueParams) (domain.Issue, error) {
	issue, err := s.store.CreateIssue(ctx, params)
	if err != nil {
		return domain.Issue{}, err
	}
	if !IsInboundOrigin(ctx) && commentFollows(ctx) {
		s.service.coalescer.BeginCreated(issue.ID)
	}
	s.service.RecordChange(ctx, nil, issue)
	return issue, nil
}

func (s *SyncedStore) UpdateIssue(ctx context.Context, id int64, params ports.UpdateIssueParams) (domain.Issue, error) {
	return s.mutate(ctx, id, params.Status, func(ctx context.Context) (domain.Issue, error) {
		return s.store.UpdateIssue(ctx, id, params)
	})
}

func (s *SyncedStore) UpdateStatus(ctx context.Context, id int64, status domain.Status) (domain.Issue, error) {
	return s.mutate(ctx, id, &status, func(ctx context.Context) (domain.Issue, error) {
		return s.store.UpdateStatus(ctx, id, status)
	})
}

func (s *SyncedStore) mutate(ctx context.Context, id int64, newStatus *domain.Status, write func(context.Context) (domain.Issue, error)) (domain.Issue, error) {
	_, before := s.service.detector.Capture(ctx, id)
	if before != nil && newStatus != nil && *newStatus != before.Status &&
		!IsInboundOrigin(ctx) && !s.service.coalescer.IsPending(id) {
		s.service.detector.Discard(id)
		return domain.Issue{}, fmt.Errorf("issue %d: %w", id, domain.ErrCommentRequired)
	}
	after, err := write(ctx)
	if err != nil {
		s.service.detector.Discard(id)
		return domain.Issue{}, err
	}
	s.service.RecordChange(ctx, before, after)
	return after, nil
}

func (s *SyncedStore) DeleteIssue(ctx context.Context, id int64) (domain.Issue, error) {
	deleted, err := s.store.DeleteIssue(ctx, id)
	if err != nil {
		return domain.Issue{}, err
	}
	s.service.RecordDelete(ctx, deleted.ID, deleted.Name)
	return deleted, nil
}

func (s *SyncedStore) CreateComment(ctx context.Context, params ports.CreateCommentParams) (domain.Comment, error) {
	coalesce := !IsInboundOrigin(ctx) && s.service.coalescer.IsPending(params.IssueID)
	comment, err := s.store.CreateComment(ctx, params)
	if err != nil {
		if coalesce {
			s.service.coalescer.Abandon(ctx, params.IssueID)
		}
		return domain.Comment{}, err
	}
	s.service.RecordComment(ctx, params.IssueID, comment, coalesce)
	return comment, nil
}
