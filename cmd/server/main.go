package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	chathandler "agenda/internal/chat/handler"
	chatmetrics "agenda/internal/chat/metrics"
	"agenda/internal/chat/realtime"
	chatservice "agenda/internal/chat/service"
	chatstore "agenda/internal/chat/store"
	"agenda/internal/directory"
	eventhandler "agenda/internal/event/handler"
	eventmetrics "agenda/internal/event/metrics"
	"agenda/internal/event/publisher"
	eventservice "agenda/internal/event/service"
	eventstore "agenda/internal/event/store/event"
	participationstore "agenda/internal/event/store/participation"
	"agenda/internal/event/workers/retention"
	notifhandler "agenda/internal/notification/handler"
	notifmetrics "agenda/internal/notification/metrics"
	notifservice "agenda/internal/notification/service"
	notifstore "agenda/internal/notification/store"
	"agenda/internal/platform/config"
	"agenda/internal/platform/database"
	"agenda/internal/platform/health"
	"agenda/internal/platform/kafka/producer"
	"agenda/internal/platform/logger"
	redisclient "agenda/internal/platform/redis"
	"agenda/internal/token"
	"agenda/migrations"
	"agenda/pkg/platform/circuit"
	"agenda/pkg/platform/middleware/auth"
	"agenda/pkg/platform/middleware/request"
)

const maxRequestBodyBytes = 1 << 20

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

type stores struct {
	events         eventservice.EventStore
	participations eventservice.ParticipationStore
	chat           chatStore
	notifications  notifservice.Store
	tx             eventservice.StoreTx
}

// chatStore is the union the event and chat services need from one backend.
type chatStore interface {
	chatservice.Store
	eventservice.ChatPurger
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	log.Info("initializing agenda",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	healthHandler := health.New(cfg.Environment)

	pool, err := database.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close() //nolint:errcheck // process is exiting
	st, err := buildStores(ctx, cfg, pool, log)
	if err != nil {
		return err
	}
	if pool != nil {
		healthHandler.RegisterCheck("database", pool.Health)
	}

	rdb, err := redisclient.New(ctx, cfg.Redis, reg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close() //nolint:errcheck // process is exiting
		healthHandler.RegisterCheck("redis", rdb.Health)
	}

	kafkaProducer, err := producer.New(cfg.Kafka, log)
	if err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	if kafkaProducer != nil {
		healthHandler.RegisterCheck("kafka", kafkaProducer.Health)
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Kafka.DeliveryTimeout)
			defer cancel()
			_ = kafkaProducer.Close(flushCtx) //nolint:errcheck // logged by the producer
		}()
	}

	resolver := directory.NewResolver(
		directory.NewHTTPClient(cfg.Directory.URL, &http.Client{Timeout: cfg.Directory.Timeout}),
		directory.WithTimeout(cfg.Directory.Timeout),
		directory.WithParallelism(cfg.Directory.LookupParallel),
		directory.WithLogger(log),
		directory.WithMetrics(directory.NewMetrics(reg)),
		directory.WithBreakerOptions(
			circuit.WithFailureThreshold(cfg.Directory.FailureThreshold),
			circuit.WithWindow(cfg.Directory.Window, 10),
			circuit.WithMinRequests(cfg.Directory.MinRequests),
			circuit.WithCoolDown(cfg.Directory.CoolDown),
		),
	)
	healthHandler.RegisterInfo("directory_circuit", func() string { return resolver.State().String() })

	tokens := token.NewService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	validator := token.NewValidator(tokens)

	chatMetrics := chatmetrics.New(reg)

	eventOpts := []eventservice.Option{
		eventservice.WithLogger(log),
		eventservice.WithMetrics(eventmetrics.New(reg)),
		eventservice.WithTx(st.tx),
	}
	if kafkaProducer != nil {
		eventOpts = append(eventOpts, eventservice.WithLifecyclePublisher(publisher.NewKafka(kafkaProducer, cfg.Kafka.Topic)))
	}

	// the hub needs the chat service, which needs the event service, which
	// needs the notifier; the pusher is resolved lazily to break the cycle
	pusher := &lazyPusher{}
	notifications := notifservice.New(st.notifications,
		notifservice.WithLogger(log),
		notifservice.WithMetrics(notifmetrics.New(reg)),
		notifservice.WithPusher(pusher),
	)
	eventOpts = append(eventOpts, eventservice.WithNotifier(notifications))
	events := eventservice.New(st.events, st.participations, st.chat, resolver, eventOpts...)

	chat := chatservice.New(st.chat, events, resolver,
		chatservice.WithLogger(log),
		chatservice.WithMetrics(chatMetrics),
	)
	hub := realtime.NewHub(chat, validator,
		realtime.WithLogger(log),
		realtime.WithMetrics(chatMetrics),
		realtime.WithFrameRate(cfg.Realtime.FramesPerSecond, cfg.Realtime.Burst),
		realtime.WithWriteTimeout(cfg.Realtime.WriteTimeout),
	)
	var relay *realtime.Relay
	if rdb != nil {
		relay = realtime.NewRelay(rdb.Client, cfg.Redis.Channel, hub, log)
		pusher.set(relay)
	} else {
		pusher.set(hub)
	}

	sweeper, err := retention.New(events,
		retention.WithInterval(cfg.Retention.Interval),
		retention.WithWindow(cfg.Retention.Window),
		retention.WithRunOnStart(cfg.Retention.RunOnStart),
		retention.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("retention: %w", err)
	}

	router := newRouter(cfg, log, reg, routes{
		health:        healthHandler,
		validator:     validator,
		events:        eventhandler.New(events, log),
		chat:          chathandler.New(chat, log),
		notifications: notifhandler.New(notifications, log),
		realtime:      hub,
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return ignoreCancel(sweeper.Start(gctx))
	})
	if relay != nil {
		g.Go(func() error {
			return ignoreCancel(relay.Run(gctx))
		})
		g.Go(func() error {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					rdb.RecordPoolStats()
				case <-gctx.Done():
					return nil
				}
			}
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func buildStores(ctx context.Context, cfg config.Server, pool *database.Pool, log *slog.Logger) (*stores, error) {
	if pool == nil {
		log.Warn("DATABASE_URL not set; using in-memory stores")
		return &stores{
			events:         eventstore.NewInMemory(),
			participations: participationstore.NewInMemory(),
			chat:           chatstore.NewInMemory(),
			notifications:  notifstore.NewInMemory(),
		}, nil
	}

	if cfg.Database.AutoMigrate {
		if err := pool.Migrate(ctx, migrations.FS); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	db := pool.DB()
	return &stores{
		events:         eventstore.NewPostgres(db),
		participations: participationstore.NewPostgres(db),
		chat:           chatstore.NewPostgres(db),
		notifications:  notifstore.NewPostgres(db),
		tx:             newPostgresTx(db),
	}, nil
}

type routes struct {
	health        *health.Handler
	validator     auth.JWTValidator
	events        *eventhandler.Handler
	chat          *chathandler.Handler
	notifications *notifhandler.Handler
	realtime      http.Handler
}

func newRouter(cfg config.Server, log *slog.Logger, reg *prometheus.Registry, h routes) http.Handler {
	requestMetrics := request.NewMetrics(reg)

	r := chi.NewRouter()
	r.Use(request.Recovery(log))
	r.Use(request.RequestID)
	r.Use(request.Logger(log))
	r.Use(request.LatencyMiddleware(requestMetrics))

	h.health.Register(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	// websocket upgrades must not sit behind the timeout handler
	r.Handle("/ws", h.realtime)

	r.Group(func(r chi.Router) {
		r.Use(request.RateLimit(request.NewClientLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst), requestMetrics))
		r.Use(request.BodyLimit(maxRequestBodyBytes))
		r.Use(request.Timeout(cfg.RequestTimeout))
		r.Use(auth.RequireAuth(h.validator, log))

		h.events.Register(r)
		h.chat.Register(r)
		h.notifications.Register(r)
	})
	return r
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
