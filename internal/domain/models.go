package domain

import (
	"time"
)

type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusWaiting    Status = "waiting"
	StatusTesting    Status = "testing"
	StatusDone       Status = "done"
	StatusClosed     Status = "closed"
)

// Statuses lists the known statuses in board order.
var Statuses = []Status{StatusNew, StatusInProgress, StatusWaiting, StatusTesting, StatusDone, StatusClosed}

var statusLabels = map[Status]string{
	StatusNew:        "New",
	StatusInProgress: "In progress",
	StatusWaiting:    "Waiting",
	StatusTesting:    "Testing",
	StatusDone:       "Done",
	StatusClosed:     "Closed",
}

func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type ApplicantKind string

const (
	ApplicantUser          ApplicantKind = "user"
	ApplicantClientContact ApplicantKind = "client_contact"
)

// Applicant is either a user or a client contact. Exactly one kind is set.
type Applicant struct {
	Kind ApplicantKind
	ID   int64
}

type ReferenceKind string

const (
	ReferenceCompany       ReferenceKind = "company"
	ReferenceService       ReferenceKind = "service"
	ReferenceDatabase      ReferenceKind = "database"
	ReferenceUser          ReferenceKind = "user"
	ReferenceClientContact ReferenceKind = "client_contact"
	ReferenceSprint        ReferenceKind = "sprint"
	ReferenceIssue         ReferenceKind = "issue"
)

type Issue struct {
	ID            int64
	Name          string
	Content       string
	Status        Status
	Priority      Priority
	Applicant     *Applicant
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
	TimeDeadLine  *float64
	TimeCheck     *float64
	SLAReaction   *float64
	SLAExecution  *float64
	SLACheck      *float64
	SLADeadline   *float64
	DateCreate    time.Time
}

type Comment struct {
	ID         int64
	IssueID    int64
	AuthorID   *int64
	AuthorName *string
	Text       string
	DateCreate time.Time
}

// PriorStatus is the status observed immediately before a mutation.
// Known is false for issues that did not exist yet.
type PriorStatus struct {
	Status Status
	Known  bool
}

func NoPriorStatus() PriorStatus { return PriorStatus{} }

func KnownPriorStatus(s Status) PriorStatus { return PriorStatus{Status: s, Known: true} }
