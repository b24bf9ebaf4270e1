package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/melenae/task-tracker-app/internal/domain"
)

type scriptedConsumer struct {
	mu      sync.Mutex
	batches [][]Message
	closed  bool
}

func (c *scriptedConsumer) Poll(ctx context.Context, _ int) ([]Message, error) {
	c.mu.Lock()
	if len(c.batches) > 0 {
		next := c.batches[0]
		c.batches = c.batches[1:]
		c.mu.Unlock()
		return next, nil
	}
	c.mu.Unlock()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return nil, nil
	}
}

func (c *scriptedConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *scriptedConsumer) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type recordingHandler struct {
	mu        sync.Mutex
	envelopes []domain.Envelope
}

func (h *recordingHandler) HandleInboundEvent(_ context.Context, envelope domain.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.envelopes = append(h.envelopes, envelope)
}

func (h *recordingHandler) snapshot() []domain.Envelope {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Envelope(nil), h.envelopes...)
}

type memoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func (d *memoryDeduper) FirstSeen(_ context.Context, key string, _ time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	d.seen[key] = struct{}{}
	return true, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestInboundListenerFiltersAndRoutes(t *testing.T) {
	t.Parallel()

	consumer := &scriptedConsumer{batches: [][]Message{{
		{Topic: "issues", Offset: 1, Payload: []byte(`{"event_type":"created","issue_id":7,"data":{},"source":"local","version":"1.0"}`)},
		{Topic: "issues.external", Offset: 1, Payload: []byte(`{"event_type":"status_changed","issue_id":"7","data":{"status":"done"},"source":"erp"}`)},
		{Topic: "issues.external", Offset: 2, Payload: []byte(`not json`)},
		{Topic: "issues.external", Offset: 3, Payload: []byte(`{"event_type":"comment_added","issue_id":7,"data":{"comment":"hi"}}`)},
	}}}
	handler := &recordingHandler{}
	listener := NewInboundListener(discardLogger(), consumer, handler, nil, ListenerConfig{SourceTag: "local"})

	listener.Start(context.Background())
	waitFor(t, func() bool { return listener.Stats().Received == 4 })
	if err := listener.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	stats := listener.Stats()
	if stats.Routed != 2 || stats.SelfOrigin != 1 || stats.Malformed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	got := handler.snapshot()
	if len(got) != 2 {
		t.Fatalf("expected 2 routed envelopes, got %d", len(got))
	}
	if got[0].EventType != domain.EventStatusChanged || got[0].IssueID != 7 || got[0].Source != "erp" {
		t.Fatalf("unexpected first envelope: %+v", got[0])
	}
	if got[1].Source != externalSource {
		t.Fatalf("expected default source %q, got %q", externalSource, got[1].Source)
	}
}

func TestInboundListenerDropsRedelivery(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"event_type":"updated","issue_id":3,"data":{"name":"x"},"source":"erp"}`)
	consumer := &scriptedConsumer{batches: [][]Message{
		{{Topic: "issues.external", Partition: 0, Offset: 10, Payload: payload}},
		{{Topic: "issues.external", Partition: 0, Offset: 10, Payload: payload}},
		{{Topic: "issues.external", Partition: 1, Offset: 10, Payload: payload}},
	}}
	handler := &recordingHandler{}
	deduper := &memoryDeduper{seen: map[string]struct{}{}}
	listener := NewInboundListener(discardLogger(), consumer, handler, deduper, ListenerConfig{SourceTag: "local"})

	listener.Start(context.Background())
	waitFor(t, func() bool { return listener.Stats().Received == 3 })
	if err := listener.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stats := listener.Stats(); stats.Duplicates != 1 || stats.Routed != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestInboundListenerLifecycle(t *testing.T) {
	t.Parallel()

	consumer := &scriptedConsumer{}
	listener := NewInboundListener(discardLogger(), consumer, &recordingHandler{}, nil, ListenerConfig{SourceTag: "local"})
	if listener.State() != StateStopped {
		t.Fatalf("expected stopped, got %s", listener.State())
	}

	listener.Start(context.Background())
	listener.Start(context.Background())
	waitFor(t, func() bool { return listener.State() == StateRunning })

	if err := listener.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if listener.State() != StateStopped {
		t.Fatalf("expected stopped after stop, got %s", listener.State())
	}
	if !consumer.isClosed() {
		t.Fatalf("expected consumer to be closed")
	}
	if err := listener.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

// stuckConsumer ignores cancellation until release is closed.
type stuckConsumer struct {
	release chan struct{}
}

func (c *stuckConsumer) Poll(ctx context.Context, _ int) ([]Message, error) {
	<-c.release
	<-ctx.Done()
	return nil, ctx.Err()
}

func (c *stuckConsumer) Close() error { return nil }

func TestInboundListenerStopTimeoutStillReachesStopped(t *testing.T) {
	t.Parallel()

	consumer := &stuckConsumer{release: make(chan struct{})}
	listener := NewInboundListener(discardLogger(), consumer, &recordingHandler{}, nil, ListenerConfig{SourceTag: "local"})
	listener.Start(context.Background())
	waitFor(t, func() bool { return listener.State() == StateRunning })

	expired, cancel := context.WithCancel(context.Background())
	cancel()
	if err := listener.Stop(expired); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected stop to give up on its context, got %v", err)
	}
	if listener.State() != StateStopping {
		t.Fatalf("expected stopping while the poll is stuck, got %s", listener.State())
	}

	close(consumer.release)
	waitFor(t, func() bool { return listener.State() == StateStopped })

	listener.Start(context.Background())
	waitFor(t, func() bool { return listener.State() == StateRunning })
	if err := listener.Stop(context.Background()); err != nil {
		t.Fatalf("stop after restart: %v", err)
	}
	if listener.State() != StateStopped {
		t.Fatalf("expected stopped, got %s", listener.State())
	}
}

func TestInboundListenerStartIgnoresParentCancel(t *testing.T) {
	t.Parallel()

	consumer := &scriptedConsumer{}
	listener := NewInboundListener(discardLogger(), consumer, &recordingHandler{}, nil, ListenerConfig{SourceTag: "local"})
	ctx, cancel := context.WithCancel(context.Background())
	listener.Start(ctx)
	cancel()
	waitFor(t, func() bool { return listener.State() == StateRunning })

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := listener.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
