// Package memory holds process-local adapters used when no database is
// configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/melenae/task-tracker-app/internal/domain"
	"github.com/melenae/task-tracker-app/internal/ports"
)

type Store struct {
	mu         sync.RWMutex
	nextIssue  int64
	nextNote   int64
	issues     map[int64]domain.Issue
	comments   map[int64][]domain.Comment
	users      map[int64]User
	references map[domain.ReferenceKind]map[int64]struct{}
	letters    []ports.DeadLetter
	dedup      map[string]time.Time
	// dedupSweptAt is when expired dedup keys were last dropped.
	dedupSweptAt time.Time
	nowFn        func() time.Time
}

type User struct {
	ID    int64
	Name  string
	Email string
}

var (
	_ ports.IssueStore           = (*Store)(nil)
	_ ports.ReferenceResolver    = (*Store)(nil)
	_ ports.DeadLetterRepository = (*Store)(nil)
	_ ports.InboundDeduper       = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		issues:     map[int64]domain.Issue{},
		comments:   map[int64][]domain.Comment{},
		users:      map[int64]User{},
		references: map[domain.ReferenceKind]map[int64]struct{}{},
		dedup:      map[string]time.Time{},
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
}

// AddUser registers a user that comments and references can point at.
func (s *Store) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	s.addReferenceLocked(domain.ReferenceUser, u.ID)
}

func (s *Store) AddReference(kind domain.ReferenceKind, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addReferenceLocked(kind, id)
}

func (s *Store) addReferenceLocked(kind domain.ReferenceKind, id int64) {
	ids, ok := s.references[kind]
	if !ok {
		ids = map[int64]struct{}{}
		s.references[kind] = ids
	}
	ids[id] = struct{}{}
}

// SetIssueCreated overrides the creation time of an issue.
func (s *Store) SetIssueCreated(id int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if issue, ok := s.issues[id]; ok {
		issue.DateCreate = at
		s.issues[id] = issue
	}
}

func (s *Store) Comments(issueID int64) []domain.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Comment(nil), s.comments[issueID]...)
}

func (s *Store) GetIssue(_ context.Context, id int64) (domain.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	issue, ok := s.issues[id]
	if !ok {
		return domain.Issue{}, domain.ErrNotFound
	}
	return cloneIssue(issue), nil
}

func (s *Store) CreateIssue(_ context.Context, params ports.CreateIssueParams) (domain.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if params.ParentID != nil {
		if _, ok := s.issues[*params.ParentID]; !ok {
			return domain.Issue{}, fmt.Errorf("%w: unknown parent %d", domain.ErrInvalidInput, *params.ParentID)
		}
	}
	s.nextIssue++
	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.nowFn()
	}
	issue := domain.Issue{
		ID:            s.nextIssue,
		Name:          params.Name,
		Content:       params.Content,
		Status:        params.Status,
		Priority:      params.Priority,
		Applicant:     params.Applicant,
		ParentID:      params.ParentID,
		SprintID:      params.SprintID,
		CompanyID:     params.CompanyID,
		ServiceID:     params.ServiceID,
		DatabaseID:    params.DatabaseID,
		UserID:        params.UserID,
		SupervisorID:  params.SupervisorID,
		Deadline:      params.Deadline,
		DateCheck:     params.DateCheck,
		DateStartPlan: params.DateStartPlan,
		DateEndPlan:   params.DateEndPlan,
		DateCreate:    createdAt,
	}
	s.issues[issue.ID] = cloneIssue(issue)
	s.addReferenceLocked(domain.ReferenceIssue, issue.ID)
	return cloneIssue(issue), nil
}

func (s *Store) UpdateIssue(_ context.Context, id int64, params ports.UpdateIssueParams) (domain.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue, ok := s.issues[id]
	if !ok {
		return domain.Issue{}, domain.ErrNotFound
	}
	if params.Name != nil {
		issue.Name = *params.Name
	}
	if params.Content != nil {
		issue.Content = *params.Content
	}
	if params.Status != nil {
		issue.Status = *params.Status
	}
	if params.Priority != nil {
		issue.Priority = *params.Priority
	}
	if params.Applicant != nil {
		applicant := *params.Applicant
		issue.Applicant = &applicant
	}
	assignID(&issue.ParentID, params.ParentID)
	assignID(&issue.SprintID, params.SprintID)
	assignID(&issue.CompanyID, params.CompanyID)
	assignID(&issue.ServiceID, params.ServiceID)
	assignID(&issue.DatabaseID, params.DatabaseID)
	assignID(&issue.UserID, params.UserID)
	assignID(&issue.SupervisorID, params.SupervisorID)
	switch {
	case params.ClearDeadline:
		issue.Deadline = nil
	case params.Deadline != nil:
		issue.Deadline = timePtr(*params.Deadline)
	}
	if params.DateCheck != nil {
		issue.DateCheck = timePtr(*params.DateCheck)
	}
	if params.DateStartPlan != nil {
		issue.DateStartPlan = timePtr(*params.DateStartPlan)
	}
	if params.DateEndPlan != nil {
		issue.DateEndPlan = timePtr(*params.DateEndPlan)
	}
	s.issues[id] = cloneIssue(issue)
	return cloneIssue(issue), nil
}

func (s *Store) UpdateStatus(_ context.Context, id int64, status domain.Status) (domain.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue, ok := s.issues[id]
	if !ok {
		return domain.Issue{}, domain.ErrNotFound
	}
	issue.Status = status
	s.issues[id] = issue
	return cloneIssue(issue), nil
}

func (s *Store) DeleteIssue(_ context.Context, id int64) (domain.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue, ok := s.issues[id]
	if !ok {
		return domain.Issue{}, domain.ErrNotFound
	}
	delete(s.issues, id)
	delete(s.comments, id)
	delete(s.references[domain.ReferenceIssue], id)
	return cloneIssue(issue), nil
}

func (s *Store) CreateComment(_ context.Context, params ports.CreateCommentParams) (domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.issues[params.IssueID]; !ok {
		return domain.Comment{}, fmt.Errorf("comment for issue %d: %w", params.IssueID, domain.ErrNotFound)
	}
	s.nextNote++
	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.nowFn()
	}
	comment := domain.Comment{
		ID:         s.nextNote,
		IssueID:    params.IssueID,
		Text:       params.Text,
		DateCreate: createdAt,
	}
	if params.AuthorID != nil {
		authorID := *params.AuthorID
		comment.AuthorID = &authorID
		if user, ok := s.users[authorID]; ok && user.Name != "" {
			name := user.Name
			comment.AuthorName = &name
		}
	}
	s.comments[params.IssueID] = append(s.comments[params.IssueID], comment)
	return comment, nil
}

func (s *Store) LookupReference(_ context.Context, kind domain.ReferenceKind, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.references[kind][id]
	return ok, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(strings.TrimSpace(email))
	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if strings.ToLower(s.users[id].Email) == email {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (s *Store) Record(_ context.Context, letter ports.DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.letters = append(s.letters, letter)
	return nil
}

func (s *Store) ListRecent(_ context.Context, limit int) ([]ports.DeadLetter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ports.DeadLetter, 0, limit)
	for i := len(s.letters) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.letters[i])
	}
	return out, nil
}

func (s *Store) FirstSeen(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()
	if now.Sub(s.dedupSweptAt) >= dedupSweepInterval {
		for k, expiresAt := range s.dedup {
			if !now.Before(expiresAt) {
				delete(s.dedup, k)
			}
		}
		s.dedupSweptAt = now
	}
	if expiresAt, ok := s.dedup[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	s.dedup[key] = now.Add(ttl)
	return true, nil
}

const dedupSweepInterval = time.Minute

func assignID(dst **int64, src *int64) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func cloneIssue(issue domain.Issue) domain.Issue {
	out := issue
	if issue.Applicant != nil {
		applicant := *issue.Applicant
		out.Applicant = &applicant
	}
	return out
}
