package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/melenae/task-tracker-app/internal/adapters/cache"
	eventadapter "github.com/melenae/task-tracker-app/internal/adapters/events"
	httpadapter "github.com/melenae/task-tracker-app/internal/adapters/http"
	"github.com/melenae/task-tracker-app/internal/adapters/memory"
	"github.com/melenae/task-tracker-app/internal/adapters/postgres"
	"github.com/melenae/task-tracker-app/internal/application"
	"github.com/melenae/task-tracker-app/internal/ports"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	service    *application.Service
	listener   *eventadapter.InboundListener
	httpServer *http.Server
	grpcServer *grpc.Server
	health     *health.Server
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)

	var (
		closers     []io.Closer
		issues      ports.IssueStore
		references  ports.ReferenceResolver
		deadLetters ports.DeadLetterRepository
		deduper     ports.InboundDeduper
		checks      = map[string]httpadapter.ReadinessCheck{}
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}

	if cfg.DatabaseURL != "" {
		db, connErr := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
		if connErr != nil {
			return nil, connErr
		}
		closers = append(closers, closerFunc(func() error { return postgres.Close(db) }))
		if cfg.RunMigrationsOnStartup {
			if migErr := postgres.RunMigrations(ctx, db); migErr != nil {
				cleanup()
				return nil, migErr
			}
		}
		repos := postgres.NewRepositories(db)
		issues, references, deadLetters, deduper = repos.Issues, repos.References, repos.DeadLetters, repos.InboundDedup
		checks["postgres"] = func(ctx context.Context) error { return postgres.Ping(ctx, db) }
	} else {
		logger.WarnContext(ctx, "no database configured, issues are kept in memory",
			"module", "bootstrap",
			"layer", "runtime",
			"operation", "new_runtime",
		)
		store := memory.NewStore()
		issues, references, deadLetters, deduper = store, store, store, store
	}

	if cfg.RedisURL != "" {
		redisClient, redisErr := cache.Connect(ctx, cfg.RedisURL)
		if redisErr != nil {
			cleanup()
			return nil, redisErr
		}
		closers = append(closers, redisClient)
		redisDeduper := cache.NewInboundDeduper(redisClient)
		deduper = redisDeduper
		checks["redis"] = redisDeduper.Ping
	}

	publisher := ports.EventPublisher(eventadapter.NewLoggingPublisher(logger))
	consumer := eventadapter.Consumer(eventadapter.NewNoopConsumer(cfg.ConsumerPollTimeout))
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, pubErr := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicIssues, cfg.PublishAckTimeout)
		if pubErr != nil {
			cleanup()
			return nil, pubErr
		}
		publisher = kafkaPublisher
		closers = append(closers, kafkaPublisher)

		if !cfg.DisableInboundListener {
			kafkaConsumer, conErr := eventadapter.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, cfg.InboundTopics(), cfg.ConsumerPollTimeout)
			if conErr != nil {
				cleanup()
				return nil, conErr
			}
			consumer = kafkaConsumer
		}
	} else {
		logger.WarnContext(ctx, "no kafka brokers configured, events are logged only",
			"module", "bootstrap",
			"layer", "runtime",
			"operation", "new_runtime",
		)
	}

	service := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:         cfg.ServiceID,
			SourceTag:           cfg.SourceTag,
			PublishAckTimeout:   cfg.PublishAckTimeout,
			PublishMaxRetries:   cfg.PublishMaxRetries,
			PublishRetryBackoff: cfg.PublishRetryBackoff,
			CoalescingTTL:       cfg.CoalescingTTL,
			CreatedWindow:       cfg.CreatedWindow,
		},
		Issues:      issues,
		References:  references,
		DeadLetters: deadLetters,
		Publisher:   publisher,
		Logger:      logger,
	})

	listener := eventadapter.NewInboundListener(logger, consumer, service, deduper, eventadapter.ListenerConfig{
		SourceTag: cfg.SourceTag,
		DedupTTL:  cfg.InboundDedupTTL,
		BatchSize: cfg.ConsumerBatchSize,
	})
	if !cfg.DisableInboundListener {
		checks["listener"] = func(context.Context) error {
			if state := listener.State(); state != eventadapter.StateRunning {
				return fmt.Errorf("inbound listener is %s", state)
			}
			return nil
		}
	}

	handler := httpadapter.NewHandler(service, listener, checks, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           httpadapter.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		service:    service,
		listener:   listener,
		httpServer: httpServer,
		grpcServer: grpcServer,
		health:     healthSrv,
		cleanupFn: func(context.Context) {
			cleanup()
		},
	}, nil
}

// RunAPI serves HTTP and gRPC health next to the inbound listener and the
// janitor until a signal arrives.
func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		r.cleanupFn(ctx)
		return err
	}
	errCh := make(chan error, 2)
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()

	r.startBackground(ctx, janitorCtx)
	go func() {
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()
	r.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	r.logger.InfoContext(ctx, "api runtime started",
		"module", "bootstrap",
		"layer", "runtime",
		"operation", "run_api",
		"http_port", r.cfg.HTTPPort,
		"grpc_port", r.cfg.GRPCPort,
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), r.cfg.ShutdownTimeout)
	defer cancel()
	r.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	r.stopListener(shutdownCtx)
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	stopJanitor()
	r.cleanupFn(shutdownCtx)
	return runErr
}

// RunWorker runs only the inbound listener and the janitor.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()

	r.startBackground(ctx, janitorCtx)
	r.logger.InfoContext(ctx, "worker runtime started",
		"module", "bootstrap",
		"layer", "runtime",
		"operation", "run_worker",
	)
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), r.cfg.ShutdownTimeout)
	defer cancel()
	r.stopListener(shutdownCtx)
	stopJanitor()
	r.cleanupFn(shutdownCtx)
	return nil
}

func (r *Runtime) startBackground(ctx, janitorCtx context.Context) {
	if !r.cfg.DisableInboundListener {
		r.listener.Start(ctx)
	}
	go func() {
		if err := r.service.RunJanitor(janitorCtx, r.cfg.JanitorInterval); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.ErrorContext(janitorCtx, "janitor stopped", "error", err)
		}
	}()
}

func (r *Runtime) stopListener(ctx context.Context) {
	if err := r.listener.Stop(ctx); err != nil {
		r.logger.ErrorContext(ctx, "inbound listener stop failed",
			"module", "bootstrap",
			"layer", "runtime",
			"operation", "shutdown",
			"outcome", "failure",
			"error", err,
		)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
