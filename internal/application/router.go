package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/melenae/task-tracker-app/internal/domain"
	"github.com/melenae/task-tracker-app/internal/ports"
)

const importedIssueName = "Imported issue"

// MessageRouter applies inbound events to the entity store. Every mutation it
// performs carries the inbound-origin marker so it is never published back.
type MessageRouter struct {
	store      ports.IssueStore
	references ports.ReferenceResolver
	logger     *slog.Logger
	nowFn      func() time.Time
}

func NewMessageRouter(store ports.IssueStore, references ports.ReferenceResolver, logger *slog.Logger, nowFn func() time.Time) *MessageRouter {
	return &MessageRouter{store: store, references: references, logger: logger, nowFn: nowFn}
}

// HandleInboundEvent routes one decoded envelope from the broker.
func (s *Service) HandleInboundEvent(ctx context.Context, envelope domain.Envelope) {
	// Route logs its own failures; the listener has nothing to retry.
	_ = s.router.Route(ctx, envelope)
}

// Route applies one envelope. It returns an error only when the envelope as a
// whole cannot be applied; per-field problems are logged and skipped.
func (r *MessageRouter) Route(ctx context.Context, envelope domain.Envelope) error {
	ctx = WithInboundOrigin(ctx)
	fields, err := decodeFields(envelope.Data)
	if err != nil {
		err = fmt.Errorf("%w: data is not an object: %v", domain.ErrInvalidEnvelope, err)
		r.warn(ctx, "route", envelope.IssueID, "inbound event dropped", "error", err)
		return err
	}
	r.logger.InfoContext(ctx, "processing inbound event",
		"module", "application.router",
		"layer", "application",
		"operation", "route",
		"event_type", envelope.EventType,
		"issue_id", envelope.IssueID,
		"source", envelope.Source,
	)

	switch envelope.EventType {
	case domain.EventCreated:
		r.createIssue(ctx, fields)
	case domain.EventUpdated:
		r.updateIssue(ctx, envelope.IssueID, fields)
	case domain.EventStatusChanged:
		r.updateStatus(ctx, envelope.IssueID, fields)
	case domain.EventCommentAdded:
		r.appendComment(ctx, envelope.IssueID, fields)
	default:
		err := fmt.Errorf("%w: %q", domain.ErrUnsupportedEventType, envelope.EventType)
		r.warn(ctx, "route", envelope.IssueID, "inbound event dropped", "error", err)
		return err
	}
	return nil
}

func (r *MessageRouter) createIssue(ctx context.Context, f eventFields) {
	params := ports.CreateIssueParams{
		Name:      importedIssueName,
		Status:    domain.StatusNew,
		Priority:  domain.PriorityMedium,
		CreatedAt: r.nowFn(),
	}
	if name, ok := f.str("name"); ok && strings.TrimSpace(name) != "" {
		params.Name = strings.TrimSpace(name)
	}
	if content, ok := f.str("content"); ok {
		params.Content = content
	}
	if raw, ok := f.str("status"); ok {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			r.warn(ctx, "create_issue", 0, "invalid inbound status, using default", "status", raw)
		} else {
			params.Status = status
		}
	}
	if raw, ok := f.str("priority"); ok {
		priority, err := domain.ParsePriority(raw)
		if err != nil {
			r.warn(ctx, "create_issue", 0, "invalid inbound priority, using default", "priority", raw)
		} else {
			params.Priority = priority
		}
	}
	params.CompanyID = r.resolve(ctx, f, "company_id", domain.ReferenceCompany)
	params.ServiceID = r.resolve(ctx, f, "service_id", domain.ReferenceService)
	params.DatabaseID = r.resolve(ctx, f, "database_id", domain.ReferenceDatabase)
	params.UserID = r.resolve(ctx, f, "user_id", domain.ReferenceUser)

	issue, err := r.store.CreateIssue(ctx, params)
	if err != nil {
		r.fail(ctx, "create_issue", 0, err)
		return
	}
	r.logger.InfoContext(ctx, "issue created from inbound event",
		"module", "application.router",
		"layer", "application",
		"operation", "create_issue",
		"outcome", "success",
		"issue_id", issue.ID,
	)
}

func (r *MessageRouter) updateIssue(ctx context.Context, issueID int64, f eventFields) {
	if issueID <= 0 {
		r.warn(ctx, "update_issue", issueID, "inbound update without issue id")
		return
	}
	var params ports.UpdateIssueParams
	if name, ok := f.str("name"); ok {
		params.Name = &name
	}
	if content, ok := f.str("content"); ok {
		params.Content = &content
	}
	if raw, ok := f.str("priority"); ok {
		priority, err := domain.ParsePriority(raw)
		if err != nil {
			r.warn(ctx, "update_issue", issueID, "invalid inbound priority skipped", "priority", raw)
		} else {
			params.Priority = &priority
		}
	}
	if f.has("deadline") {
		if f.isNull("deadline") {
			params.ClearDeadline = true
		} else if raw, ok := f.str("deadline"); ok {
			if deadline, err := parseInboundTime(raw); err == nil {
				params.Deadline = &deadline
			} else {
				r.warn(ctx, "update_issue", issueID, "invalid inbound deadline skipped", "deadline", raw)
			}
		}
	}
	if params.IsEmpty() {
		return
	}
	if _, err := r.store.UpdateIssue(ctx, issueID, params); err != nil {
		r.fail(ctx, "update_issue", issueID, err)
		return
	}
	r.logger.InfoContext(ctx, "issue updated from inbound event",
		"module", "application.router",
		"layer", "application",
		"operation", "update_issue",
		"outcome", "success",
		"issue_id", issueID,
	)
}

func (r *MessageRouter) updateStatus(ctx context.Context, issueID int64, f eventFields) {
	if issueID <= 0 {
		r.warn(ctx, "update_status", issueID, "inbound status change without issue id")
		return
	}
	raw, ok := f.str("status")
	if !ok {
		raw, ok = f.str("new_status")
	}
	if !ok {
		r.warn(ctx, "update_status", issueID, "inbound status change without status")
		return
	}
	status, err := domain.ParseStatus(raw)
	if err != nil {
		r.warn(ctx, "update_status", issueID, "invalid inbound status rejected", "status", raw)
		return
	}
	if _, err := r.store.UpdateStatus(ctx, issueID, status); err != nil {
		r.fail(ctx, "update_status", issueID, err)
		return
	}
	r.logger.InfoContext(ctx, "issue status updated from inbound event",
		"module", "application.router",
		"layer", "application",
		"operation", "update_status",
		"outcome", "success",
		"issue_id", issueID,
		"status", status,
	)
}

func (r *MessageRouter) appendComment(ctx context.Context, issueID int64, f eventFields) {
	if issueID <= 0 {
		r.warn(ctx, "append_comment", issueID, "inbound comment without issue id")
		return
	}
	params := ports.CreateCommentParams{
		IssueID:   issueID,
		Text:      f.commentText(),
		CreatedAt: r.nowFn(),
	}
	if email, ok := f.str("user_email"); ok && strings.TrimSpace(email) != "" && r.references != nil {
		userID, found, err := r.references.FindUserByEmail(ctx, strings.TrimSpace(email))
		switch {
		case err != nil:
			r.warn(ctx, "append_comment", issueID, "comment author lookup failed", "error", err)
		case found:
			params.AuthorID = &userID
		default:
			r.logger.DebugContext(ctx, "comment author not found", "issue_id", issueID, "user_email", email)
		}
	}
	if params.AuthorID == nil {
		params.AuthorID = r.resolve(ctx, f, "user_id", domain.ReferenceUser)
	}
	if _, err := r.store.CreateComment(ctx, params); err != nil {
		r.fail(ctx, "append_comment", issueID, err)
		return
	}
	r.logger.InfoContext(ctx, "comment added from inbound event",
		"module", "application.router",
		"layer", "application",
		"operation", "append_comment",
		"outcome", "success",
		"issue_id", issueID,
	)
}

// resolve returns the id when it exists locally. Unknown references are
// logged and left unset so the rest of the event still applies.
func (r *MessageRouter) resolve(ctx context.Context, f eventFields, key string, kind domain.ReferenceKind) *int64 {
	id, ok := f.id(key)
	if !ok {
		return nil
	}
	if r.references == nil {
		return nil
	}
	found, err := r.references.LookupReference(ctx, kind, id)
	if err != nil {
		r.warn(ctx, "resolve_reference", 0, "reference lookup failed", "reference", kind, "reference_id", id, "error", err)
		return nil
	}
	if !found {
		r.warn(ctx, "resolve_reference", 0, "reference not found", "reference", kind, "reference_id", id)
		return nil
	}
	return &id
}

func (r *MessageRouter) warn(ctx context.Context, operation string, issueID int64, msg string, attrs ...any) {
	base := []any{
		"module", "application.router",
		"layer", "application",
		"operation", operation,
		"outcome", "skipped",
		"issue_id", issueID,
	}
	r.logger.WarnContext(ctx, msg, append(base, attrs...)...)
}

func (r *MessageRouter) fail(ctx context.Context, operation string, issueID int64, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		r.warn(ctx, operation, issueID, "issue not found for inbound event")
		return
	}
	r.logger.ErrorContext(ctx, "inbound event apply failed",
		"module", "application.router",
		"layer", "application",
		"operation", operation,
		"outcome", "failure",
		"issue_id", issueID,
		"error", err,
	)
}

type eventFields map[string]json.RawMessage

func decodeFields(data json.RawMessage) (eventFields, error) {
	f := eventFields{}
	if len(bytes.TrimSpace(data)) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f, nil
}

func (f eventFields) has(key string) bool {
	_, ok := f[key]
	return ok
}

func (f eventFields) isNull(key string) bool {
	raw, ok := f[key]
	return ok && bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func (f eventFields) str(key string) (string, bool) {
	raw, ok := f[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (f eventFields) id(key string) (int64, bool) {
	raw, ok := f[key]
	if !ok {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		s, isString := f.str(key)
		if !isString {
			return 0, false
		}
		n = json.Number(strings.TrimSpace(s))
	}
	id, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// commentText accepts the plain text form and the embedded comment object.
func (f eventFields) commentText() string {
	if text, ok := f.str("comment"); ok {
		return text
	}
	raw, ok := f["comment"]
	if !ok {
		return ""
	}
	var embedded domain.CommentPayload
	if err := json.Unmarshal(raw, &embedded); err != nil {
		return ""
	}
	return embedded.Comment
}

var inboundTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseInboundTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range inboundTimeLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
