package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const SchemaVersion = "1.0"

type EventKind string

const (
	EventCreated                  EventKind = "created"
	EventCreatedWithComment       EventKind = "created_with_comment"
	EventUpdated                  EventKind = "updated"
	EventUpdatedWithComment       EventKind = "updated_with_comment"
	EventStatusChanged            EventKind = "status_changed"
	EventStatusChangedWithComment EventKind = "status_changed_with_comment"
	EventDeleted                  EventKind = "deleted"
	EventCommentAdded             EventKind = "comment_added"
)

// WithComment returns the coalesced variant of a primary kind.
func (k EventKind) WithComment() EventKind {
	switch k {
	case EventCreated:
		return EventCreatedWithComment
	case EventUpdated:
		return EventUpdatedWithComment
	case EventStatusChanged:
		return EventStatusChangedWithComment
	default:
		return k
	}
}

// OutboundEvent is a composed event ready to be dispatched. It is never persisted.
type OutboundEvent struct {
	Kind          EventKind
	IssueID       int64
	Timestamp     *time.Time
	Payload       any
	Source        string
	SchemaVersion string
}

// PartitionKey keeps all events of one issue on the same partition.
func (e OutboundEvent) PartitionKey() string {
	return strconv.FormatInt(e.IssueID, 10)
}

// Envelope is the wire form shared by both directions.
type Envelope struct {
	EventType EventKind       `json:"event_type"`
	IssueID   int64           `json:"issue_id"`
	Timestamp *string         `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	Source    string          `json:"source"`
	Version   string          `json:"version"`
}

func (e OutboundEvent) Encode() ([]byte, error) {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event data: %w", err)
	}
	version := e.SchemaVersion
	if version == "" {
		version = SchemaVersion
	}
	return json.Marshal(Envelope{
		EventType: e.Kind,
		IssueID:   e.IssueID,
		Timestamp: FormatTime(e.Timestamp),
		Data:      data,
		Source:    e.Source,
		Version:   version,
	})
}

type wireEnvelope struct {
	EventType string          `json:"event_type"`
	IssueID   json.RawMessage `json:"issue_id"`
	Timestamp *string         `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	Source    *string         `json:"source"`
	Version   string          `json:"version"`
}

// DecodeEnvelope parses an inbound message. Unknown fields are ignored and a
// missing source is treated as defaultSource.
func DecodeEnvelope(raw []byte, defaultSource string) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(raw, &w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if strings.TrimSpace(w.EventType) == "" {
		return Envelope{}, fmt.Errorf("%w: event_type is required", ErrInvalidEnvelope)
	}
	issueID, err := parseIssueID(w.IssueID)
	if err != nil {
		return Envelope{}, err
	}
	data := w.Data
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		data = json.RawMessage("{}")
	}
	if trimmed := bytes.TrimSpace(data); trimmed[0] != '{' {
		return Envelope{}, fmt.Errorf("%w: data must be an object", ErrInvalidEnvelope)
	}
	source := defaultSource
	if w.Source != nil && strings.TrimSpace(*w.Source) != "" {
		source = strings.TrimSpace(*w.Source)
	}
	return Envelope{
		EventType: EventKind(strings.TrimSpace(w.EventType)),
		IssueID:   issueID,
		Timestamp: w.Timestamp,
		Data:      data,
		Source:    source,
		Version:   w.Version,
	}, nil
}

func parseIssueID(raw json.RawMessage) (int64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return 0, nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		var s string
		if strErr := json.Unmarshal(trimmed, &s); strErr != nil {
			return 0, fmt.Errorf("%w: issue_id: %v", ErrInvalidEnvelope, err)
		}
		n = json.Number(strings.TrimSpace(s))
	}
	id, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: issue_id %q is not an integer", ErrInvalidEnvelope, n.String())
	}
	return id, nil
}

// FormatTime renders an absolute time as RFC 3339 in UTC, nil stays nil.
func FormatTime(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

// IssuePayload is the projected issue carried in non-delete events.
type IssuePayload struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Content       string          `json:"content"`
	Status        Status          `json:"status"`
	Priority      Priority        `json:"priority"`
	Deadline      *string         `json:"deadline"`
	DateCreate    *string         `json:"date_create"`
	DateCheck     *string         `json:"date_check"`
	DateStartPlan *string         `json:"date_start_plan"`
	DateEndPlan   *string         `json:"date_end_plan"`
	CompanyID     *int64          `json:"company_id"`
	ServiceID     *int64          `json:"service_id"`
	DatabaseID    *int64          `json:"database_id"`
	UserID        *int64          `json:"user_id"`
	SupervisorID  *int64          `json:"supervisor_id"`
	ApplicantType *string         `json:"applicant_type"`
	ApplicantID   *int64          `json:"applicant_id"`
	SprintID      *int64          `json:"sprint_id"`
	ParentID      *int64          `json:"parent_id"`
	OldStatus     *Status         `json:"old_status,omitempty"`
	NewStatus     *Status         `json:"new_status,omitempty"`
	Comment       *CommentPayload `json:"comment,omitempty"`
}

// CommentPayload is embedded into coalesced events.
type CommentPayload struct {
	CommentID  int64   `json:"comment_id"`
	Comment    string  `json:"comment"`
	UserID     *int64  `json:"user_id"`
	UserName   *string `json:"user_name"`
	DateCreate *string `json:"date_create"`
}

// CommentAddedPayload is the data of a standalone comment event.
type CommentAddedPayload struct {
	IssueID    int64   `json:"issue_id"`
	CommentID  int64   `json:"comment_id"`
	Comment    string  `json:"comment"`
	UserID     *int64  `json:"user_id"`
	UserName   *string `json:"user_name"`
	DateCreate *string `json:"date_create"`
}

// DeletedPayload carries only identity; deleted issues have no further state.
type DeletedPayload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
