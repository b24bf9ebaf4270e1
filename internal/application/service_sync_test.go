package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/melenae/task-tracker-app/internal/adapters/memory"
	"github.com/melenae/task-tracker-app/internal/application"
	"github.com/melenae/task-tracker-app/internal/domain"
	"github.com/melenae/task-tracker-app/internal/ports"
)

func TestCreateWithoutCommentEmitsCreated(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	issue, err := f.service.CreateIssue(ctx, application.CreateIssueRequest{
		Name:      "DB migration",
		Content:   "move to v2 schema",
		Priority:  "high",
		CompanyID: int64Ptr(10),
	})
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}

	ev := expectSingleEvent(t, f.publisher.snapshot(), domain.EventCreated)
	if ev.envelope.IssueID != issue.ID || ev.partitionKey != "1" {
		t.Fatalf("unexpected envelope identity: %+v key=%s", ev.envelope, ev.partitionKey)
	}
	if ev.envelope.Source != "local" || ev.envelope.Version != domain.SchemaVersion {
		t.Fatalf("unexpected envelope metadata: %+v", ev.envelope)
	}
	if ev.envelope.Timestamp == nil || *ev.envelope.Timestamp != "2026-03-02T09:00:00Z" {
		t.Fatalf("expected creation timestamp, got %v", ev.envelope.Timestamp)
	}
	for key, want := range map[string]any{
		"id": float64(1), "name": "DB migration", "content": "move to v2 schema",
		"status": "new", "priority": "high", "company_id": float64(10),
	} {
		if got := ev.data[key]; got != want {
			t.Fatalf("data[%s] = %v, want %v", key, got, want)
		}
	}
	for _, key := range []string{"deadline", "sprint_id", "parent_id", "applicant_type"} {
		if _, ok := ev.data[key]; !ok {
			t.Fatalf("expected %s in full snapshot", key)
		}
	}
	if _, ok := ev.data["comment"]; ok {
		t.Fatalf("plain created event must not embed a comment")
	}
}

func TestCreateWithCommentEmitsSingleCoalescedEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	issue, err := f.service.CreateIssue(context.Background(), application.CreateIssueRequest{
		Name:     "Printer offline",
		Comment:  "Reported by phone",
		AuthorID: int64Ptr(1),
	})
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}

	ev := expectSingleEvent(t, f.publisher.snapshot(), domain.EventCreatedWithComment)
	comment, ok := ev.data["comment"].(map[string]any)
	if !ok {
		t.Fatalf("expected embedded comment, got %v", ev.data["comment"])
	}
	if comment["comment"] != "Reported by phone" || comment["user_name"] != "Ann Lee" {
		t.Fatalf("unexpected embedded comment: %v", comment)
	}
	if len(f.store.Comments(issue.ID)) != 1 {
		t.Fatalf("expected the comment to be stored")
	}
	if status := f.service.SyncStatus(); status.PendingCoalescing != 0 || status.PendingPriorStatus != 0 {
		t.Fatalf("expected no pending entries, got %+v", status)
	}
}

func TestStatusChangeWithoutCommentIsRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	issue, err := f.service.CreateIssue(ctx, application.CreateIssueRequest{Name: "Backup"})
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}
	f.publisher.reset()

	_, err = f.service.UpdateIssue(ctx, issue.ID, application.UpdateIssueRequest{Status: strPtr("done")})
	if !errors.Is(err, domain.ErrCommentRequired) {
		t.Fatalf("expected comment required, got %v", err)
	}
	if _, err := f.service.ChangeStatus(ctx, issue.ID, application.ChangeStatusRequest{Status: "done"}); !errors.Is(err, domain.ErrCommentRequired) {
		t.Fatalf("expected comment required from board, got %v", err)
	}
	if _, err := f.service.Store().UpdateStatus(ctx, issue.ID, domain.StatusDone); !errors.Is(err, domain.ErrCommentRequired) {
		t.Fatalf("expected collaborator boundary to reject, got %v", err)
	}

	stored, _ := f.store.GetIssue(ctx, issue.ID)
	if stored.Status != domain.StatusNew {
		t.Fatalf("status must stay new, got %s", stored.Status)
	}
	if events := f.publisher.snapshot(); len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
	if status := f.service.SyncStatus(); status.PendingPriorStatus != 0 {
		t.Fatalf("rejected change left prior status behind: %+v", status)
	}
}

func TestStatusChangeWithCommentEmitsCoalescedTransition(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	issue, _ := f.service.CreateIssue(ctx, application.CreateIssueRequest{Name: "Backup"})
	f.clock.Advance(time.Hour)
	f.publisher.reset()

	updated, err := f.service.ChangeStatus(ctx, issue.ID, application.ChangeStatusRequest{
		Status:   "testing",
		Comment:  "ready for QA",
		AuthorID: int64Ptr(1),
	})
	if err != nil {
		t.Fatalf("change status: %v", err)
	}
	if updated.Status != "testing" {
		t.Fatalf("expected testing, got %s", updated.Status)
	}

	ev := expectSingleEvent(t, f.publisher.snapshot(), domain.EventStatusChangedWithComment)
	if ev.data["old_status"] != "new" || ev.data["new_status"] != "testing" {
		t.Fatalf("unexpected transition: %v -> %v", ev.data["old_status"], ev.data["new_status"])
	}
	comment := ev.data["comment"].(map[string]any)
	want := "Status changed from 'New' to 'Testing' via kanban board.\nready for QA"
	if comment["comment"] != want {
		t.Fatalf("unexpected comment text %q", comment["comment"])
	}
}

func TestChangeStatusToSameStatusIsNoop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	issue, _ := f.service.CreateIssue(ctx, application.CreateIssueRequest{Name: "Backup"})
	f.publisher.reset()

	if _, err := f.service.ChangeStatus(ctx, issue.ID, application.ChangeStatusRequest{Status: "new"}); err != nil {
		t.Fatalf("same status should succeed, got %v", err)
	}
	if events := f.publisher.snapshot(); len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}

func TestUpdateWithCommentWithoutStatusChange(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	issue, _ := f.service.CreateIssue(ctx, application.CreateIssueRequest{Name: "Backup"})
	f.clock.Advance(time.Hour)
	f.publisher.reset()

	if _, err := f.service.UpdateIssue(ctx, issue.ID, application.UpdateIssueRequest{
		Priority: strPtr("low"),
		Comment:  "not urgent",
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	ev := expectSingleEvent(t, f.publisher.snapshot(), domain.EventUpdatedWithComment)
	if ev.data["priority"] != "low" {
		t.Fatalf("expected new priority in snapshot, got %v", ev.data["priority"])
	}
	if _, ok := ev.data["old_status"]; ok {
		t.Fatalf("updated event must not carry status transition")
	}
}

func TestPlainUpdateEmitsUpdated(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	issue, _ := f.service.CreateIssue(ctx, application.CreateIssueRequest{Name: "Backup"})
	f.publisher.reset()

	if _, err := f.service.UpdateIssue(ctx, issue.ID, application.UpdateIssueRequest{Name: strPtr("Nightly backup")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	ev := expectSingleEvent(t, f.publisher.snapshot(), domain.EventUpdated)
	if ev.data["name"] != "Nightly backup" {
		t.Fatalf("unexpected name %v", ev.data["name"])
	}
}

func TestDeleteEmitsIdentityOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	issue, _ := f.service.CreateIssue(ctx, application.CreateIssueRequest{
		Name:      "Obsolete",
		Content:   "lots of fields",
		CompanyID: int64Ptr(10),
		Priority:  "high",
	})
	f.publisher.reset()

	if err := f.service.DeleteIssue(ctx, issue.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ev := expectSingleEvent(t, f.publisher.snapshot(), domain.EventDeleted)
	if len(ev.data) != 2 || ev.data["id"] != float64(issue.ID) || ev.data["name"] != "Obsolete" {
		t.Fatalf("delete data must be {id, name}, got %v", ev.data)
	}
	if ev.envelope.Timestamp != nil {
		t.Fatalf("delete event carries no timestamp, got %v", *ev.envelope.Timestamp)
	}
	if err := f.service.DeleteIssue(ctx, issue.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestStandaloneCommentEmitsCommentAdded(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	issue, _ := f.service.CreateIssue(ctx, application.CreateIssueRequest{Name: "Backup"})
	f.publisher.reset()

	if _, err := f.service.AddComment(ctx, issue.ID, application.AddCommentRequest{Comment: "checked logs", AuthorID: int64Ptr(1)}); err != nil {
		t.Fatalf("add comment: %v", err)
	}
	ev := expectSingleEvent(t, f.publisher.snapshot(), domain.EventCommentAdded)
	if ev.data["comment"] != "checked logs" || ev.data["issue_id"] != float64(issue.ID) || ev.data["user_id"] != float64(1) {
		t.Fatalf("unexpected comment payload: %v", ev.data)
	}
}

func TestCoalescingAbandonedWhenUpdateFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.UpdateIssue(ctx, 404, application.UpdateIssueRequest{Status: strPtr("done"), Comment: "x"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if status := f.service.SyncStatus(); status.PendingCoalescing != 0 || status.PendingPriorStatus != 0 {
		t.Fatalf("failed update left pending entries: %+v", status)
	}
	if events := f.publisher.snapshot(); len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}

func TestSweepRemovesExpiredCoalescing(t *testing.T) {
	t.Parallel()

	f := newFixtureWithConfig(t, application.Config{SourceTag: "local", CoalescingTTL: time.Minute})
	f.service.BeginCoalescing(42)
	if f.service.SyncStatus().PendingCoalescing != 1 {
		t.Fatalf("expected one pending entry")
	}
	f.clock.Advance(2 * time.Minute)
	f.service.SweepExpired(context.Background())
	if f.service.SyncStatus().PendingCoalescing != 0 {
		t.Fatalf("expected expired entry to be swept")
	}
}

func TestConcreteSyncScenario(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	issue, err := f.service.CreateIssue(ctx, application.CreateIssueRequest{Name: "DB migration"})
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}
	created := expectSingleEvent(t, f.publisher.snapshot(), domain.EventCreated)
	if created.data["id"] != float64(1) || created.data["status"] != "new" {
		t.Fatalf("unexpected created data: %v", created.data)
	}
	f.clock.Advance(time.Minute)
	f.publisher.reset()

	if _, err := f.service.UpdateIssue(ctx, issue.ID, application.UpdateIssueRequest{
		Status:  strPtr("in_progress"),
		Comment: "Started work",
	}); err != nil {
		t.Fatalf("status change: %v", err)
	}
	changed := expectSingleEvent(t, f.publisher.snapshot(), domain.EventStatusChangedWithComment)
	if changed.data["old_status"] != "new" || changed.data["new_status"] != "in_progress" {
		t.Fatalf("unexpected transition: %v", changed.data)
	}
	if changed.data["comment"].(map[string]any)["comment"] != "Started work" {
		t.Fatalf("unexpected embedded comment: %v", changed.data["comment"])
	}
	f.publisher.reset()

	f.service.HandleInboundEvent(ctx, domain.Envelope{
		EventType: domain.EventCommentAdded,
		IssueID:   1,
		Source:    "external",
		Data:      []byte(`{"comment":"Reviewed externally"}`),
	})
	comments := f.store.Comments(issue.ID)
	if len(comments) != 2 || comments[1].Text != "Reviewed externally" {
		t.Fatalf("expected inbound comment to be stored, got %+v", comments)
	}
	if events := f.publisher.snapshot(); len(events) != 0 {
		t.Fatalf("inbound comment must not be republished, got %+v", events)
	}
}

func TestCreateWithSlowCommentStillEmitsCreatedWithComment(t *testing.T) {
	t.Parallel()

	f := newFixtureWithStore(t, application.Config{SourceTag: "local", CreatedWindow: 5 * time.Second},
		func(store *memory.Store, clock *fakeClock) ports.IssueStore {
			return &commentHookStore{Store: store, hook: func() error {
				clock.Advance(6 * time.Second)
				return nil
			}}
		})
	ctx := context.Background()

	if _, err := f.service.CreateIssue(ctx, application.CreateIssueRequest{Name: "Slow disk", Comment: "first note"}); err != nil {
		t.Fatalf("create issue: %v", err)
	}
	ev := expectSingleEvent(t, f.publisher.snapshot(), domain.EventCreatedWithComment)
	if comment, ok := ev.data["comment"].(map[string]any); !ok || comment["comment"] != "first note" {
		t.Fatalf("expected embedded comment, got %v", ev.data["comment"])
	}
}

func TestCreateCommentFailureEmitsNothing(t *testing.T) {
	t.Parallel()

	writeErr := errors.New("disk full")
	f := newFixtureWithStore(t, application.Config{SourceTag: "local"},
		func(store *memory.Store, _ *fakeClock) ports.IssueStore {
			return &commentHookStore{Store: store, hook: func() error { return writeErr }}
		})
	ctx := context.Background()

	_, err := f.service.CreateIssue(ctx, application.CreateIssueRequest{Name: "Lost note", Comment: "never stored"})
	if !errors.Is(err, writeErr) {
		t.Fatalf("expected comment write error, got %v", err)
	}
	if events := f.publisher.snapshot(); len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
	if status := f.service.SyncStatus(); status.PendingCoalescing != 0 || status.PendingPriorStatus != 0 {
		t.Fatalf("failed comment left pending entries: %+v", status)
	}
	if _, err := f.store.GetIssue(ctx, 1); err != nil {
		t.Fatalf("issue must stay stored: %v", err)
	}
}

func TestUpdateCommentFailureEmitsNothing(t *testing.T) {
	t.Parallel()

	var failComments bool
	writeErr := errors.New("disk full")
	f := newFixtureWithStore(t, application.Config{SourceTag: "local"},
		func(store *memory.Store, _ *fakeClock) ports.IssueStore {
			return &commentHookStore{Store: store, hook: func() error {
				if failComments {
					return writeErr
				}
				return nil
			}}
		})
	ctx := context.Background()
	issue, err := f.service.CreateIssue(ctx, application.CreateIssueRequest{Name: "Backup"})
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}
	f.publisher.reset()
	failComments = true

	_, err = f.service.UpdateIssue(ctx, issue.ID, application.UpdateIssueRequest{Status: strPtr("in_progress"), Comment: "taking it"})
	if !errors.Is(err, writeErr) {
		t.Fatalf("expected comment write error, got %v", err)
	}
	if events := f.publisher.snapshot(); len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
	if status := f.service.SyncStatus(); status.PendingCoalescing != 0 || status.PendingPriorStatus != 0 {
		t.Fatalf("failed comment left pending entries: %+v", status)
	}
	stored, _ := f.store.GetIssue(ctx, issue.ID)
	if stored.Status != domain.StatusInProgress {
		t.Fatalf("status change must stay committed, got %s", stored.Status)
	}
}

func TestCoalescedCommentOnYoungIssueCountsAsCreation(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		age  time.Duration
		want domain.EventKind
	}{
		{name: "inside window", age: 2 * time.Second, want: domain.EventCreatedWithComment},
		{name: "outside window", age: time.Hour, want: domain.EventUpdatedWithComment},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixtureWithConfig(t, application.Config{SourceTag: "local", CreatedWindow: 5 * time.Second})
			ctx := context.Background()
			issue, err := f.service.CreateIssue(ctx, application.CreateIssueRequest{Name: "Imported"})
			if err != nil {
				t.Fatalf("create issue: %v", err)
			}
			f.publisher.reset()
			f.store.SetIssueCreated(issue.ID, f.clock.Now().Add(-tc.age))

			f.service.BeginCoalescing(issue.ID)
			if _, err := f.service.Store().CreateComment(ctx, ports.CreateCommentParams{
				IssueID: issue.ID, Text: "linked", CreatedAt: f.clock.Now(),
			}); err != nil {
				t.Fatalf("create comment: %v", err)
			}
			expectSingleEvent(t, f.publisher.snapshot(), tc.want)
		})
	}
}
