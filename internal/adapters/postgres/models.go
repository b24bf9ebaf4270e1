package postgres

import (
	"time"

	"github.com/google/uuid"
)

type issueModel struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Name          string     `gorm:"column:name"`
	Content       string     `gorm:"column:content"`
	Status        string     `gorm:"column:status"`
	Priority      string     `gorm:"column:priority"`
	ApplicantType *string    `gorm:"column:applicant_type"`
	ApplicantID   *int64     `gorm:"column:applicant_id"`
	ParentID      *int64     `gorm:"column:parent_id"`
	SprintID      *int64     `gorm:"column:sprint_id"`
	CompanyID     *int64     `gorm:"column:company_id"`
	ServiceID     *int64     `gorm:"column:service_id"`
	DatabaseID    *int64     `gorm:"column:database_id"`
	UserID        *int64     `gorm:"column:user_id"`
	SupervisorID  *int64     `gorm:"column:supervisor_id"`
	Deadline      *time.Time `gorm:"column:deadline"`
	DateCheck     *time.Time `gorm:"column:date_check"`
	DateStartPlan *time.Time `gorm:"column:date_start_plan"`
	DateEndPlan   *time.Time `gorm:"column:date_end_plan"`
	TimeDeadLine  *float64   `gorm:"column:time_dead_line"`
	TimeCheck     *float64   `gorm:"column:time_check"`
	SLAReaction   *float64   `gorm:"column:sla_reaction"`
	SLAExecution  *float64   `gorm:"column:sla_execution"`
	SLACheck      *float64   `gorm:"column:sla_check"`
	SLADeadline   *float64   `gorm:"column:sla_deadline"`
	DateCreate    time.Time  `gorm:"column:date_create"`
}

func (issueModel) TableName() string { return "issues" }

type issueCommentModel struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	IssueID    int64     `gorm:"column:issue_id"`
	UserID     *int64    `gorm:"column:user_id"`
	Comment    string    `gorm:"column:comment"`
	DateCreate time.Time `gorm:"column:date_create"`
}

func (issueCommentModel) TableName() string { return "issue_comments" }

type userModel struct {
	ID    int64   `gorm:"column:id;primaryKey"`
	Name  *string `gorm:"column:name"`
	Email *string `gorm:"column:email"`
}

func (userModel) TableName() string { return "users" }

type deadLetterModel struct {
	DeadLetterID uuid.UUID `gorm:"column:dead_letter_id;type:uuid;primaryKey"`
	EventType    string    `gorm:"column:event_type"`
	IssueID      int64     `gorm:"column:issue_id"`
	PartitionKey string    `gorm:"column:partition_key"`
	Payload      string    `gorm:"column:payload"`
	Attempts     int       `gorm:"column:attempts"`
	LastError    string    `gorm:"column:last_error"`
	FailedAt     time.Time `gorm:"column:failed_at"`
}

func (deadLetterModel) TableName() string { return "sync_dead_letters" }

type inboundDedupModel struct {
	DedupKey    string    `gorm:"column:dedup_key;primaryKey"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (inboundDedupModel) TableName() string { return "sync_inbound_dedup" }
