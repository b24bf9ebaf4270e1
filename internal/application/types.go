package application

import (
	"time"
)

type Config struct {
	ServiceName         string
	SourceTag           string
	PublishAckTimeout   time.Duration
	PublishMaxRetries   int
	PublishRetryBackoff time.Duration
	CoalescingTTL       time.Duration
	CreatedWindow       time.Duration
}

type CreateIssueRequest struct {
	Name          string     `json:"name"`
	Content       string     `json:"content,omitempty"`
	Status        string     `json:"status,omitempty"`
	Priority      string     `json:"priority,omitempty"`
	ApplicantType string     `json:"applicant_type,omitempty"`
	ApplicantID   *int64     `json:"applicant_id,omitempty"`
	ParentID      *int64     `json:"parent_id,omitempty"`
	SprintID      *int64     `json:"sprint_id,omitempty"`
	CompanyID     *int64     `json:"company_id,omitempty"`
	ServiceID     *int64     `json:"service_id,omitempty"`
	DatabaseID    *int64     `json:"database_id,omitempty"`
	UserID        *int64     `json:"user_id,omitempty"`
	SupervisorID  *int64     `json:"supervisor_id,omitempty"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	DateCheck     *time.Time `json:"date_check,omitempty"`
	DateStartPlan *time.Time `json:"date_start_plan,omitempty"`
	DateEndPlan   *time.Time `json:"date_end_plan,omitempty"`
	Comment       string     `json:"comment,omitempty"`
	AuthorID      *int64     `json:"author_id,omitempty"`
}

type UpdateIssueRequest struct {
	Name          *string    `json:"name,omitempty"`
	Content       *string    `json:"content,omitempty"`
	Status        *string    `json:"status,omitempty"`
	Priority      *string    `json:"priority,omitempty"`
	ApplicantType *string    `json:"applicant_type,omitempty"`
	ApplicantID   *int64     `json:"applicant_id,omitempty"`
	ParentID      *int64     `json:"parent_id,omitempty"`
	SprintID      *int64     `json:"sprint_id,omitempty"`
	CompanyID     *int64     `json:"company_id,omitempty"`
	ServiceID     *int64     `json:"service_id,omitempty"`
	DatabaseID    *int64     `json:"database_id,omitempty"`
	UserID        *int64     `json:"user_id,omitempty"`
	SupervisorID  *int64     `json:"supervisor_id,omitempty"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	DateCheck     *time.Time `json:"date_check,omitempty"`
	DateStartPlan *time.Time `json:"date_start_plan,omitempty"`
	DateEndPlan   *time.Time `json:"date_end_plan,omitempty"`
	Comment       string     `json:"comment,omitempty"`
	AuthorID      *int64     `json:"author_id,omitempty"`
}

type ChangeStatusRequest struct {
	Status   string `json:"status"`
	Comment  string `json:"comment"`
	AuthorID *int64 `json:"author_id,omitempty"`
}

type AddCommentRequest struct {
	Comment  string `json:"comment"`
	AuthorID *int64 `json:"author_id,omitempty"`
}

type IssueResponse struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Content       string     `json:"content"`
	Status        string     `json:"status"`
	Priority      string     `json:"priority"`
	ApplicantType string     `json:"applicant_type,omitempty"`
	ApplicantID   *int64     `json:"applicant_id,omitempty"`
	ParentID      *int64     `json:"parent_id,omitempty"`
	SprintID      *int64     `json:"sprint_id,omitempty"`
	CompanyID     *int64     `json:"company_id,omitempty"`
	ServiceID     *int64     `json:"service_id,omitempty"`
	DatabaseID    *int64     `json:"database_id,omitempty"`
	UserID        *int64     `json:"user_id,omitempty"`
	SupervisorID  *int64     `json:"supervisor_id,omitempty"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	DateCreate    time.Time  `json:"date_create"`
}

type CommentResponse struct {
	ID         int64     `json:"id"`
	IssueID    int64     `json:"issue_id"`
	AuthorID   *int64    `json:"author_id,omitempty"`
	Comment    string    `json:"comment"`
	DateCreate time.Time `json:"date_create"`
}

type SyncStatus struct {
	PendingCoalescing  int `json:"pending_coalescing"`
	PendingPriorStatus int `json:"pending_prior_status"`
}

type DeadLetterView struct {
	DeadLetterID string    `json:"dead_letter_id"`
	EventType    string    `json:"event_type"`
	IssueID      int64     `json:"issue_id"`
	Attempts     int       `json:"attempts"`
	LastError    string    `json:"last_error"`
	FailedAt     time.Time `json:"failed_at"`
}
