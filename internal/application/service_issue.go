package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/melenae/task-tracker-app/internal/domain"
	"github.com/melenae/task-tracker-app/internal/ports"
)

const kanbanTransitionFormat = "Status changed from '%s' to '%s' via kanban board.\n%s"

func (s *Service) GetIssue(ctx context.Context, issueID int64) (IssueResponse, error) {
	issue, err := s.store.GetIssue(ctx, issueID)
	if err != nil {
		return IssueResponse{}, err
	}
	return toIssueResponse(issue), nil
}

// CreateIssue stores a new issue. With a comment the issue and the comment are
// published as one created_with_comment event.
func (s *Service) CreateIssue(ctx context.Context, req CreateIssueRequest) (IssueResponse, error) {
	if err := domain.ValidateIssueName(req.Name); err != nil {
		return IssueResponse{}, err
	}
	params := ports.CreateIssueParams{
		Name:          strings.TrimSpace(req.Name),
		Content:       req.Content,
		Status:        domain.StatusNew,
		Priority:      domain.PriorityMedium,
		ParentID:      req.ParentID,
		SprintID:      req.SprintID,
		CompanyID:     req.CompanyID,
		ServiceID:     req.ServiceID,
		DatabaseID:    req.DatabaseID,
		UserID:        req.UserID,
		SupervisorID:  req.SupervisorID,
		Deadline:      req.Deadline,
		DateCheck:     req.DateCheck,
		DateStartPlan: req.DateStartPlan,
		DateEndPlan:   req.DateEndPlan,
		CreatedAt:     s.nowFn(),
	}
	if strings.TrimSpace(req.Status) != "" {
		status, err := domain.ParseStatus(req.Status)
		if err != nil {
			return IssueResponse{}, err
		}
		params.Status = status
	}
	if strings.TrimSpace(req.Priority) != "" {
		priority, err := domain.ParsePriority(req.Priority)
		if err != nil {
			return IssueResponse{}, err
		}
		params.Priority = priority
	}
	applicant, err := parseApplicantFields(req.ApplicantType, req.ApplicantID)
	if err != nil {
		return IssueResponse{}, err
	}
	params.Applicant = applicant
	if err := s.checkReferences(ctx, referenceSet{
		applicant: params.Applicant, parent: params.ParentID, sprint: params.SprintID,
		company: params.CompanyID, service: params.ServiceID, database: params.DatabaseID,
		user: params.UserID, supervisor: params.SupervisorID, author: req.AuthorID,
	}); err != nil {
		return IssueResponse{}, err
	}

	comment := strings.TrimSpace(req.Comment)
	createCtx := ctx
	if comment != "" {
		createCtx = withCommentToFollow(ctx)
	}
	issue, err := s.synced.CreateIssue(createCtx, params)
	if err != nil {
		return IssueResponse{}, err
	}
	if comment != "" {
		if _, err := s.synced.CreateComment(ctx, ports.CreateCommentParams{
			IssueID:   issue.ID,
			AuthorID:  req.AuthorID,
			Text:      comment,
			CreatedAt: s.nowFn(),
		}); err != nil {
			return IssueResponse{}, fmt.Errorf("store comment for issue %d: %w", issue.ID, err)
		}
	}
	return toIssueResponse(issue), nil
}

// UpdateIssue applies a partial update. A status change is accepted only
// together with a comment.
func (s *Service) UpdateIssue(ctx context.Context, issueID int64, req UpdateIssueRequest) (IssueResponse, error) {
	params, err := s.updateParams(req)
	if err != nil {
		return IssueResponse{}, err
	}
	if err := s.checkReferences(ctx, referenceSet{
		applicant: params.Applicant, parent: params.ParentID, sprint: params.SprintID,
		company: params.CompanyID, service: params.ServiceID, database: params.DatabaseID,
		user: params.UserID, supervisor: params.SupervisorID, author: req.AuthorID,
	}); err != nil {
		return IssueResponse{}, err
	}
	if params.ParentID != nil && *params.ParentID == issueID {
		return IssueResponse{}, fmt.Errorf("%w: issue cannot be its own parent", domain.ErrInvalidInput)
	}

	comment := strings.TrimSpace(req.Comment)
	if params.IsEmpty() {
		current, err := s.store.GetIssue(ctx, issueID)
		if err != nil {
			return IssueResponse{}, err
		}
		if comment != "" {
			if _, err := s.synced.CreateComment(ctx, ports.CreateCommentParams{
				IssueID: issueID, AuthorID: req.AuthorID, Text: comment, CreatedAt: s.nowFn(),
			}); err != nil {
				return IssueResponse{}, err
			}
		}
		return toIssueResponse(current), nil
	}

	if comment != "" {
		s.BeginCoalescing(issueID)
	}
	updated, err := s.synced.UpdateIssue(ctx, issueID, params)
	if err != nil {
		if comment != "" {
			s.AbandonCoalescing(ctx, issueID)
		}
		return IssueResponse{}, err
	}
	if comment != "" {
		if _, err := s.synced.CreateComment(ctx, ports.CreateCommentParams{
			IssueID: issueID, AuthorID: req.AuthorID, Text: comment, CreatedAt: s.nowFn(),
		}); err != nil {
			return IssueResponse{}, fmt.Errorf("store comment for issue %d: %w", issueID, err)
		}
	}
	return toIssueResponse(updated), nil
}

// ChangeStatus is the board transition: the comment is mandatory and is
// stored with a transition line in front of it.
func (s *Service) ChangeStatus(ctx context.Context, issueID int64, req ChangeStatusRequest) (IssueResponse, error) {
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		return IssueResponse{}, err
	}
	current, err := s.store.GetIssue(ctx, issueID)
	if err != nil {
		return IssueResponse{}, err
	}
	if current.Status == status {
		return toIssueResponse(current), nil
	}
	comment := strings.TrimSpace(req.Comment)
	if comment == "" {
		return IssueResponse{}, fmt.Errorf("issue %d: %w", issueID, domain.ErrCommentRequired)
	}
	if err := s.checkReferences(ctx, referenceSet{author: req.AuthorID}); err != nil {
		return IssueResponse{}, err
	}

	s.BeginCoalescing(issueID)
	updated, err := s.synced.UpdateStatus(ctx, issueID, status)
	if err != nil {
		s.AbandonCoalescing(ctx, issueID)
		return IssueResponse{}, err
	}
	text := fmt.Sprintf(kanbanTransitionFormat, current.Status.Label(), status.Label(), comment)
	if _, err := s.synced.CreateComment(ctx, ports.CreateCommentParams{
		IssueID: issueID, AuthorID: req.AuthorID, Text: text, CreatedAt: s.nowFn(),
	}); err != nil {
		s.logger.WarnContext(ctx, "transition comment not stored",
			"module", "application.issue",
			"layer", "application",
			"operation", "change_status",
			"outcome", "partial",
			"issue_id", issueID,
			"error", err,
		)
	}
	return toIssueResponse(updated), nil
}

func (s *Service) AddComment(ctx context.Context, issueID int64, req AddCommentRequest) (CommentResponse, error) {
	text := strings.TrimSpace(req.Comment)
	if text == "" {
		return CommentResponse{}, fmt.Errorf("%w: comment is required", domain.ErrInvalidInput)
	}
	if _, err := s.store.GetIssue(ctx, issueID); err != nil {
		return CommentResponse{}, err
	}
	if err := s.checkReferences(ctx, referenceSet{author: req.AuthorID}); err != nil {
		return CommentResponse{}, err
	}
	comment, err := s.synced.CreateComment(ctx, ports.CreateCommentParams{
		IssueID: issueID, AuthorID: req.AuthorID, Text: text, CreatedAt: s.nowFn(),
	})
	if err != nil {
		return CommentResponse{}, err
	}
	return toCommentResponse(comment), nil
}

func (s *Service) DeleteIssue(ctx context.Context, issueID int64) error {
	_, err := s.synced.DeleteIssue(ctx, issueID)
	return err
}

func (s *Service) ListDeadLetters(ctx context.Context, limit int) ([]DeadLetterView, error) {
	if s.deadLetters == nil {
		return []DeadLetterView{}, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	items, err := s.deadLetters.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]DeadLetterView, 0, len(items))
	for _, item := range items {
		out = append(out, DeadLetterView{
			DeadLetterID: item.DeadLetterID.String(),
			EventType:    item.EventType,
			IssueID:      item.IssueID,
			Attempts:     item.Attempts,
			LastError:    item.LastError,
			FailedAt:     item.FailedAt,
		})
	}
	return out, nil
}

func (s *Service) updateParams(req UpdateIssueRequest) (ports.UpdateIssueParams, error) {
	params := ports.UpdateIssueParams{
		Content:       req.Content,
		ParentID:      req.ParentID,
		SprintID:      req.SprintID,
		CompanyID:     req.CompanyID,
		ServiceID:     req.ServiceID,
		DatabaseID:    req.DatabaseID,
		UserID:        req.UserID,
		SupervisorID:  req.SupervisorID,
		Deadline:      req.Deadline,
		DateCheck:     req.DateCheck,
		DateStartPlan: req.DateStartPlan,
		DateEndPlan:   req.DateEndPlan,
	}
	if req.Name != nil {
		if err := domain.ValidateIssueName(*req.Name); err != nil {
			return ports.UpdateIssueParams{}, err
		}
		name := strings.TrimSpace(*req.Name)
		params.Name = &name
	}
	if req.Status != nil {
		status, err := domain.ParseStatus(*req.Status)
		if err != nil {
			return ports.UpdateIssueParams{}, err
		}
		params.Status = &status
	}
	if req.Priority != nil {
		priority, err := domain.ParsePriority(*req.Priority)
		if err != nil {
			return ports.UpdateIssueParams{}, err
		}
		params.Priority = &priority
	}
	if req.ApplicantType != nil || req.ApplicantID != nil {
		applicantType := ""
		if req.ApplicantType != nil {
			applicantType = *req.ApplicantType
		}
		applicant, err := parseApplicantFields(applicantType, req.ApplicantID)
		if err != nil {
			return ports.UpdateIssueParams{}, err
		}
		params.Applicant = applicant
	}
	return params, nil
}

func parseApplicantFields(applicantType string, applicantID *int64) (*domain.Applicant, error) {
	if strings.TrimSpace(applicantType) == "" && applicantID == nil {
		return nil, nil
	}
	if applicantID == nil {
		return nil, fmt.Errorf("%w: applicant_id is required with applicant_type", domain.ErrInvalidApplicant)
	}
	applicant, err := domain.ParseApplicant(applicantType, *applicantID)
	if err != nil {
		return nil, err
	}
	return &applicant, nil
}

type referenceSet struct {
	applicant  *domain.Applicant
	parent     *int64
	sprint     *int64
	company    *int64
	service    *int64
	database   *int64
	user       *int64
	supervisor *int64
	author     *int64
}

// checkReferences rejects requests pointing at records that do not exist.
func (s *Service) checkReferences(ctx context.Context, refs referenceSet) error {
	if s.references == nil {
		return nil
	}
	type check struct {
		field string
		kind  domain.ReferenceKind
		id    *int64
	}
	checks := []check{
		{"parent_id", domain.ReferenceIssue, refs.parent},
		{"sprint_id", domain.ReferenceSprint, refs.sprint},
		{"company_id", domain.ReferenceCompany, refs.company},
		{"service_id", domain.ReferenceService, refs.service},
		{"database_id", domain.ReferenceDatabase, refs.database},
		{"user_id", domain.ReferenceUser, refs.user},
		{"supervisor_id", domain.ReferenceUser, refs.supervisor},
		{"author_id", domain.ReferenceUser, refs.author},
	}
	if refs.applicant != nil {
		id := refs.applicant.ID
		checks = append(checks, check{"applicant_id", refs.applicant.ReferenceKind(), &id})
	}
	for _, c := range checks {
		if c.id == nil {
			continue
		}
		found, err := s.references.LookupReference(ctx, c.kind, *c.id)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: unknown %s %d", domain.ErrInvalidInput, c.field, *c.id)
		}
	}
	return nil
}

func toIssueResponse(issue domain.Issue) IssueResponse {
	resp := IssueResponse{
		ID:           issue.ID,
		Name:         issue.Name,
		Content:      issue.Content,
		Status:       string(issue.Status),
		Priority:     string(issue.Priority),
		ParentID:     issue.ParentID,
		SprintID:     issue.SprintID,
		CompanyID:    issue.CompanyID,
		ServiceID:    issue.ServiceID,
		DatabaseID:   issue.DatabaseID,
		UserID:       issue.UserID,
		SupervisorID: issue.SupervisorID,
		Deadline:     issue.Deadline,
		DateCreate:   issue.DateCreate,
	}
	if issue.Applicant != nil {
		id := issue.Applicant.ID
		resp.ApplicantType = issue.Applicant.ApplicantType()
		resp.ApplicantID = &id
	}
	return resp
}

func toCommentResponse(comment domain.Comment) CommentResponse {
	return CommentResponse{
		ID:         comment.ID,
		IssueID:    comment.IssueID,
		AuthorID:   comment.AuthorID,
		Comment:    comment.Text,
		DateCreate: comment.DateCreate,
	}
}
