package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/melenae/task-tracker-app/internal/domain"
	"github.com/melenae/task-tracker-app/internal/ports"
)

type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Payload   []byte
}

type Consumer interface {
	Poll(ctx context.Context, max int) ([]Message, error)
	Close() error
}

// InboundHandler applies a decoded inbound envelope.
type InboundHandler interface {
	HandleInboundEvent(ctx context.Context, envelope domain.Envelope)
}

type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// externalSource is assumed for envelopes that do not name their origin.
const externalSource = "external"

type ListenerConfig struct {
	SourceTag    string
	DedupTTL     time.Duration
	BatchSize    int
	ErrorBackoff time.Duration
}

type Stats struct {
	Received   uint64 `json:"received"`
	Routed     uint64 `json:"routed"`
	SelfOrigin uint64 `json:"self_origin_skipped"`
	Malformed  uint64 `json:"malformed"`
	Duplicates uint64 `json:"duplicates"`
	PollErrors uint64 `json:"poll_errors"`
}

// InboundListener consumes issue events on a single supervised goroutine and
// hands them to the router one at a time.
type InboundListener struct {
	logger   *slog.Logger
	consumer Consumer
	handler  InboundHandler
	deduper  ports.InboundDeduper
	cfg      ListenerConfig

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	done     chan struct{}
	closeErr error

	received   atomic.Uint64
	routed     atomic.Uint64
	selfOrigin atomic.Uint64
	malformed  atomic.Uint64
	duplicates atomic.Uint64
	pollErrors atomic.Uint64
}

func NewInboundListener(logger *slog.Logger, consumer Consumer, handler InboundHandler, deduper ports.InboundDeduper, cfg ListenerConfig) *InboundListener {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 2 * time.Second
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 24 * time.Hour
	}
	return &InboundListener{
		logger:   logger,
		consumer: consumer,
		handler:  handler,
		deduper:  deduper,
		cfg:      cfg,
		state:    StateStopped,
	}
}

// Start launches the consume loop. Calling it on a listener that is not
// stopped does nothing. The loop runs until Stop.
func (l *InboundListener) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateStopped {
		l.logger.WarnContext(ctx, "inbound listener already started",
			"module", "events.listener",
			"layer", "adapter",
			"operation", "start",
			"outcome", "skipped",
			"state", l.state,
		)
		return
	}
	l.state = StateStarting
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(loopCtx, l.done)
}

// Stop cancels the loop and waits for it to exit. The loop closes the consumer
// on its way out, so a Stop that gives up on ctx still ends in StateStopped.
func (l *InboundListener) Stop(ctx context.Context) error {
	l.mu.Lock()
	if l.state == StateStopped || l.state == StateStopping {
		l.mu.Unlock()
		return nil
	}
	l.state = StateStopping
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		select {
		case <-done:
		default:
			return fmt.Errorf("inbound listener stop: %w", ctx.Err())
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeErr
}

func (l *InboundListener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *InboundListener) Stats() Stats {
	return Stats{
		Received:   l.received.Load(),
		Routed:     l.routed.Load(),
		SelfOrigin: l.selfOrigin.Load(),
		Malformed:  l.malformed.Load(),
		Duplicates: l.duplicates.Load(),
		PollErrors: l.pollErrors.Load(),
	}
}

func (l *InboundListener) run(ctx context.Context, done chan struct{}) {
	defer l.finish(done)
	l.mu.Lock()
	if l.state == StateStarting {
		l.state = StateRunning
	}
	l.mu.Unlock()
	l.logger.InfoContext(ctx, "inbound listener running",
		"module", "events.listener",
		"layer", "adapter",
		"operation", "run",
		"outcome", "started",
	)

	for ctx.Err() == nil {
		msgs, err := l.consumer.Poll(ctx, l.cfg.BatchSize)
		for _, msg := range msgs {
			l.process(ctx, msg)
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return
		}
		l.pollErrors.Add(1)
		l.logger.ErrorContext(ctx, "consumer poll failed",
			"module", "events.listener",
			"layer", "adapter",
			"operation", "poll",
			"outcome", "failure",
			"error", err,
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(l.cfg.ErrorBackoff):
		}
	}
}

func (l *InboundListener) finish(done chan struct{}) {
	err := l.consumer.Close()
	l.mu.Lock()
	l.state = StateStopped
	l.cancel = nil
	l.done = nil
	l.closeErr = err
	l.mu.Unlock()
	close(done)

	if err != nil {
		l.logger.Warn("inbound consumer close failed",
			"module", "events.listener",
			"layer", "adapter",
			"operation", "stop",
			"outcome", "failure",
			"error", err,
		)
		return
	}
	l.logger.Info("inbound listener stopped",
		"module", "events.listener",
		"layer", "adapter",
		"operation", "stop",
		"outcome", "success",
	)
}

func (l *InboundListener) process(ctx context.Context, msg Message) {
	l.received.Add(1)
	if l.deduper != nil {
		key := fmt.Sprintf("issue-sync:inbound:%s:%d:%d", msg.Topic, msg.Partition, msg.Offset)
		first, err := l.deduper.FirstSeen(ctx, key, l.cfg.DedupTTL)
		switch {
		case err != nil:
			l.logger.WarnContext(ctx, "inbound dedup unavailable",
				"module", "events.listener",
				"layer", "adapter",
				"operation", "dedup",
				"outcome", "degraded",
				"topic", msg.Topic,
				"error", err,
			)
		case !first:
			l.duplicates.Add(1)
			return
		}
	}

	envelope, err := domain.DecodeEnvelope(msg.Payload, externalSource)
	if err != nil {
		l.malformed.Add(1)
		l.logger.WarnContext(ctx, "malformed inbound message dropped",
			"module", "events.listener",
			"layer", "adapter",
			"operation", "decode",
			"outcome", "dropped",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return
	}
	if envelope.Source == l.cfg.SourceTag {
		l.selfOrigin.Add(1)
		l.logger.DebugContext(ctx, "own event ignored",
			"module", "events.listener",
			"layer", "adapter",
			"operation", "filter",
			"outcome", "skipped",
			"issue_id", envelope.IssueID,
			"event_type", envelope.EventType,
		)
		return
	}
	l.handler.HandleInboundEvent(ctx, envelope)
	l.routed.Add(1)
}
