package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/melenae/task-tracker-app/internal/domain"
)

type CreateIssueParams struct {
	Name          string
	Content       string
	Status        domain.Status
	Priority      domain.Priority
	Applicant     *domain.Applicant
	ParentID      *int64
	SprintID      *int64
	CompanyID     *int64
	ServiceID     *int64
	DatabaseID    *int64
	UserID        *int64
	SupervisorID  *int64
	Deadline      *time.Time
	DateCheck     *time.Time
	DateStartPlan *time.Time
	DateEndPlan   *time.Time
	CreatedAt     time.Time
}

// UpdateIssueParams applies only the non-nil fields. ClearDeadline resets the
// deadline to null.
type UpdateIssueParams struct {
	Name          *string
	Content       *string
	Status        *domain.Status
	Priority      *domain.Priority
	Applicant     *domain.Applicant
	ParentID      *int64
	SprintID      *int64
	CompanyID     *int64
	ServiceID     *int64
	DatabaseID    *int64
	UserID        *int64
	SupervisorID  *int64
	Deadline      *time.Time
	ClearDeadline bool
	DateCheck     *time.Time
	DateStartPlan *time.Time
	DateEndPlan   *time.Time
}

func (p UpdateIssueParams) IsEmpty() bool {
	return p.Name == nil && p.Content == nil && p.Status == nil && p.Priority == nil &&
		p.Applicant == nil && p.ParentID == nil && p.SprintID == nil && p.CompanyID == nil &&
		p.ServiceID == nil && p.DatabaseID == nil && p.UserID == nil && p.SupervisorID == nil &&
		p.Deadline == nil && !p.ClearDeadline && p.DateCheck == nil && p.DateStartPlan == nil &&
		p.DateEndPlan == nil
}

type CreateCommentParams struct {
	IssueID   int64
	AuthorID  *int64
	Text      string
	CreatedAt time.Time
}

// IssueStore is the entity store the sync engine reads and mutates.
type IssueStore interface {
	GetIssue(ctx context.Context, id int64) (domain.Issue, error)
	CreateIssue(ctx context.Context, params CreateIssueParams) (domain.Issue, error)
	UpdateIssue(ctx context.Context, id int64, params UpdateIssueParams) (domain.Issue, error)
	UpdateStatus(ctx context.Context, id int64, status domain.Status) (domain.Issue, error)
	DeleteIssue(ctx context.Context, id int64) (domain.Issue, error)
	CreateComment(ctx context.Context, params CreateCommentParams) (domain.Comment, error)
}

type ReferenceResolver interface {
	LookupReference(ctx context.Context, kind domain.ReferenceKind, id int64) (bool, error)
	FindUserByEmail(ctx context.Context, email string) (int64, bool, error)
}

type DeadLetter struct {
	DeadLetterID uuid.UUID
	EventType    string
	IssueID      int64
	PartitionKey string
	Payload      []byte
	Attempts     int
	LastError    string
	FailedAt     time.Time
}

// DeadLetterRepository keeps events whose publish budget was exhausted. Records
// are for operators only and are never re-published.
type DeadLetterRepository interface {
	Record(ctx context.Context, letter DeadLetter) error
	ListRecent(ctx context.Context, limit int) ([]DeadLetter, error)
}
