package application_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/melenae/task-tracker-app/internal/application"
	"github.com/melenae/task-tracker-app/internal/domain"
)

func composerIssue(status domain.Status) domain.Issue {
	return domain.Issue{
		ID:         5,
		Name:       "Printer offline",
		Status:     status,
		Priority:   domain.PriorityHigh,
		Applicant:  &domain.Applicant{Kind: domain.ApplicantClientContact, ID: 3},
		DateCreate: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
}

func TestComposeClassification(t *testing.T) {
	t.Parallel()

	composer := application.NewEventComposer("local")
	created := composerIssue(domain.StatusNew)
	moved := composerIssue(domain.StatusDone)
	comment := domain.Comment{ID: 9, IssueID: 5, Text: "done", DateCreate: created.DateCreate}

	tests := []struct {
		name    string
		before  *domain.Issue
		after   domain.Issue
		comment *domain.Comment
		want    domain.EventKind
	}{
		{name: "creation", before: nil, after: created, want: domain.EventCreated},
		{name: "creation with comment", before: nil, after: created, comment: &comment, want: domain.EventCreatedWithComment},
		{name: "status transition", before: &created, after: moved, want: domain.EventStatusChanged},
		{name: "status transition with comment", before: &created, after: moved, comment: &comment, want: domain.EventStatusChangedWithComment},
		{name: "plain update", before: &created, after: created, want: domain.EventUpdated},
		{name: "update with comment", before: &created, after: created, comment: &comment, want: domain.EventUpdatedWithComment},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			event := composer.Compose(tc.before, tc.after, tc.comment)
			if event.Kind != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, event.Kind)
			}
			if event.PartitionKey() != "5" || event.Source != "local" {
				t.Fatalf("unexpected routing fields: %+v", event)
			}
		})
	}
}

func TestComposeStatusChangeCarriesBothStatuses(t *testing.T) {
	t.Parallel()

	before := composerIssue(domain.StatusTesting)
	after := composerIssue(domain.StatusClosed)
	event := application.NewEventComposer("local").Compose(&before, after, nil)

	raw, err := event.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var envelope struct {
		Timestamp string         `json:"timestamp"`
		Version   string         `json:"version"`
		Data      map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data["old_status"] != "testing" || envelope.Data["new_status"] != "closed" {
		t.Fatalf("unexpected statuses: %+v", envelope.Data)
	}
	if envelope.Data["applicant_type"] != "clientteams" {
		t.Fatalf("expected clientteams applicant, got %v", envelope.Data["applicant_type"])
	}
	if _, ok := envelope.Data["comment"]; ok {
		t.Fatalf("comment must be omitted without a coalesced comment")
	}
	if envelope.Timestamp != "2026-03-02T09:00:00Z" || envelope.Version != domain.SchemaVersion {
		t.Fatalf("unexpected envelope header: %+v", envelope)
	}
}

func TestComposeCommentAndDelete(t *testing.T) {
	t.Parallel()

	composer := application.NewEventComposer("local")
	name := "Ann Lee"
	comment := composer.ComposeComment(domain.Comment{
		ID: 4, IssueID: 5, AuthorID: int64Ptr(1), AuthorName: &name, Text: "hello",
		DateCreate: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	})
	if comment.Kind != domain.EventCommentAdded || comment.IssueID != 5 {
		t.Fatalf("unexpected comment event: %+v", comment)
	}
	payload, ok := comment.Payload.(domain.CommentAddedPayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", comment.Payload)
	}
	if payload.CommentID != 4 || payload.Comment != "hello" || payload.UserName == nil || *payload.UserName != name {
		t.Fatalf("unexpected comment payload: %+v", payload)
	}

	deleted := composer.ComposeDelete(5, "Printer offline")
	if deleted.Kind != domain.EventDeleted || deleted.Timestamp != nil {
		t.Fatalf("unexpected delete event: %+v", deleted)
	}
	if deleted.Payload != (domain.DeletedPayload{ID: 5, Name: "Printer offline"}) {
		t.Fatalf("unexpected delete payload: %+v", deleted.Payload)
	}
}
