package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/melenae/task-tracker-app/internal/adapters/memory"
	"github.com/melenae/task-tracker-app/internal/application"
	"github.com/melenae/task-tracker-app/internal/domain"
	"github.com/melenae/task-tracker-app/internal/ports"
)

type publishedEvent struct {
	eventType    string
	partitionKey string
	envelope     domain.Envelope
	data         map[string]any
}

type recordingPublisher struct {
	mu       sync.Mutex
	events   []publishedEvent
	failures int
	calls    int
	// block makes every call wait for ctx to end, like an unacknowledged send.
	block bool
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	p.mu.Lock()
	p.calls++
	if p.block {
		p.mu.Unlock()
		<-ctx.Done()
		return ctx.Err()
	}
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	var envelope domain.Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return err
	}
	data := map[string]any{}
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return err
	}
	p.events = append(p.events, publishedEvent{
		eventType:    eventType,
		partitionKey: partitionKey,
		envelope:     envelope,
		data:         data,
	})
	return nil
}

func (p *recordingPublisher) snapshot() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
	p.calls = 0
}

func (p *recordingPublisher) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	service   *application.Service
	store     *memory.Store
	publisher *recordingPublisher
	clock     *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, application.Config{SourceTag: "local"})
}

func newFixtureWithConfig(t *testing.T, cfg application.Config) *fixture {
	t.Helper()
	return newFixtureWithStore(t, cfg, nil)
}

// newFixtureWithStore lets a test put a wrapper in front of the memory store
// for issue writes. References and dead letters still go to the store itself.
func newFixtureWithStore(t *testing.T, cfg application.Config, wrap func(*memory.Store, *fakeClock) ports.IssueStore) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.AddUser(memory.User{ID: 1, Name: "Ann Lee", Email: "ann@example.com"})
	store.AddReference(domain.ReferenceCompany, 10)
	publisher := &recordingPublisher{}
	clock := &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	var issues ports.IssueStore = store
	if wrap != nil {
		issues = wrap(store, clock)
	}
	service := application.NewService(application.Dependencies{
		Config:      cfg,
		Issues:      issues,
		References:  store,
		DeadLetters: store,
		Publisher:   publisher,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:         clock.Now,
	})
	return &fixture{service: service, store: store, publisher: publisher, clock: clock}
}

func strPtr(v string) *string { return &v }

func int64Ptr(v int64) *int64 { return &v }

func expectSingleEvent(t *testing.T, events []publishedEvent, kind domain.EventKind) publishedEvent {
	t.Helper()
	if len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d: %+v", len(events), events)
	}
	if events[0].envelope.EventType != kind {
		t.Fatalf("expected %s event, got %s", kind, events[0].envelope.EventType)
	}
	return events[0]
}

// commentHookStore runs hook before every comment write and fails the write
// when hook returns an error.
type commentHookStore struct {
	*memory.Store
	hook func() error
}

func (s *commentHookStore) CreateComment(ctx context.Context, params ports.CreateCommentParams) (domain.Comment, error) {
	if err := s.hook(); err != nil {
		return domain.Comment{}, err
	}
	return s.Store.CreateComment(ctx, params)
}
