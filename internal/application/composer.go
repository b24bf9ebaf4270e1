package application

import (
	"time"

	"github.com/melenae/task-tracker-app/internal/domain"
)

// EventComposer classifies a mutation and builds its outbound event.
type EventComposer struct {
	source string
}

func NewEventComposer(source string) *EventComposer {
	return &EventComposer{source: source}
}

// Compose classifies in order: creation, status transition, plain update. A
// non-nil comment selects the coalesced variant and is embedded in the payload.
func (c *EventComposer) Compose(before *domain.Issue, after domain.Issue, comment *domain.Comment) domain.OutboundEvent {
	payload := projectIssue(after)
	var kind domain.EventKind
	switch {
	case before == nil:
		kind = domain.EventCreated
	case before.Status != after.Status:
		kind = domain.EventStatusChanged
		oldStatus, newStatus := before.Status, after.Status
		payload.OldStatus = &oldStatus
		payload.NewStatus = &newStatus
	default:
		kind = domain.EventUpdated
	}
	if comment != nil {
		kind = kind.WithComment()
		payload.Comment = projectComment(*comment)
	}
	return c.event(kind, after.ID, timePtr(after.DateCreate), payload)
}

func (c *EventComposer) ComposeDelete(issueID int64, name string) domain.OutboundEvent {
	return c.event(domain.EventDeleted, issueID, nil, domain.DeletedPayload{ID: issueID, Name: name})
}

func (c *EventComposer) ComposeComment(comment domain.Comment) domain.OutboundEvent {
	return c.event(domain.EventCommentAdded, comment.IssueID, timePtr(comment.DateCreate), domain.CommentAddedPayload{
		IssueID:    comment.IssueID,
		CommentID:  comment.ID,
		Comment:    comment.Text,
		UserID:     comment.AuthorID,
		UserName:   comment.AuthorName,
		DateCreate: domain.FormatTime(timePtr(comment.DateCreate)),
	})
}

func (c *EventComposer) event(kind domain.EventKind, issueID int64, ts *time.Time, payload any) domain.OutboundEvent {
	return domain.OutboundEvent{
		Kind:          kind,
		IssueID:       issueID,
		Timestamp:     ts,
		Payload:       payload,
		Source:        c.source,
		SchemaVersion: domain.SchemaVersion,
	}
}

func projectIssue(issue domain.Issue) domain.IssuePayload {
	p := domain.IssuePayload{
		ID:            issue.ID,
		Name:          issue.Name,
		Content:       issue.Content,
		Status:        issue.Status,
		Priority:      issue.Priority,
		Deadline:      domain.FormatTime(issue.Deadline),
		DateCreate:    domain.FormatTime(timePtr(issue.DateCreate)),
		DateCheck:     domain.FormatTime(issue.DateCheck),
		DateStartPlan: domain.FormatTime(issue.DateStartPlan),
		DateEndPlan:   domain.FormatTime(issue.DateEndPlan),
		CompanyID:     issue.CompanyID,
		ServiceID:     issue.ServiceID,
		DatabaseID:    issue.DatabaseID,
		UserID:        issue.UserID,
		SupervisorID:  issue.SupervisorID,
		SprintID:      issue.SprintID,
		ParentID:      issue.ParentID,
	}
	if issue.Applicant != nil {
		applicantType := issue.Applicant.ApplicantType()
		applicantID := issue.Applicant.ID
		p.ApplicantType = &applicantType
		p.ApplicantID = &applicantID
	}
	return p
}

func projectComment(comment domain.Comment) *domain.CommentPayload {
	return &domain.CommentPayload{
		CommentID:  comment.ID,
		Comment:    comment.Text,
		UserID:     comment.AuthorID,
		UserName:   comment.AuthorName,
		DateCreate: domain.FormatTime(timePtr(comment.DateCreate)),
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
