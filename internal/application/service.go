package application

import (
	"io"
	"log/slog"
	"time"

	"github.com/melenae/task-tracker-app/internal/ports"
)

type Service struct {
	cfg         Config
	store       ports.IssueStore
	synced      *SyncedStore
	references  ports.ReferenceResolver
	deadLetters ports.DeadLetterRepository
	detector    *ChangeDetector
	composer    *EventComposer
	coalescer   *EventCoalescer
	dispatcher  *OutboundDispatcher
	router      *MessageRouter
	logger      *slog.Logger
	nowFn       func() time.Time
}

type Dependencies struct {
	Config      Config
	Issues      ports.IssueStore
	References  ports.ReferenceResolver
	DeadLetters ports.DeadLetterRepository
	Publisher   ports.EventPublisher
	Logger      *slog.Logger
	Now         func() time.Time
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "issue-sync-service"
	}
	if cfg.SourceTag == "" {
		cfg.SourceTag = "local"
	}
	if cfg.PublishAckTimeout <= 0 {
		cfg.PublishAckTimeout = 10 * time.Second
	}
	if cfg.PublishMaxRetries < 0 {
		cfg.PublishMaxRetries = 0
	}
	if cfg.PublishRetryBackoff < 0 {
		cfg.PublishRetryBackoff = 0
	}
	if cfg.CoalescingTTL <= 0 {
		cfg.CoalescingTTL = 5 * time.Minute
	}
	if cfg.CreatedWindow <= 0 {
		cfg.CreatedWindow = 5 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	nowFn := deps.Now
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}

	s := &Service{
		cfg:         cfg,
		store:       deps.Issues,
		references:  deps.References,
		deadLetters: deps.DeadLetters,
		logger:      logger,
		nowFn:       nowFn,
	}
	s.detector = NewChangeDetector(deps.Issues, cfg.CoalescingTTL, logger, nowFn)
	s.composer = NewEventComposer(cfg.SourceTag)
	s.dispatcher = NewOutboundDispatcher(deps.Publisher, deps.DeadLetters, logger, cfg, nowFn)
	s.coalescer = NewEventCoalescer(deps.Issues, s.detector, s.composer, s.dispatcher, cfg, logger, nowFn)
	s.synced = NewSyncedStore(deps.Issues, s)
	s.router = NewMessageRouter(s.synced, deps.References, logger, nowFn)
	return s
}

// Store returns the entity store wrapped with the sync pipeline. Collaborators
// that mutate issues must go through it.
func (s *Service) Store() *SyncedStore {
	return s.synced
}

func (s *Service) SourceTag() string {
	return s.cfg.SourceTag
}
