// Package app is the composition root: it turns a Config into wired stores,
// services and the HTTP handler, choosing in-memory or external backends by
// what is configured.
package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	httpapi "landadmin/internal/http"
	"landadmin/internal/identity"
	identitymodels "landadmin/internal/identity/models"
	identitystore "landadmin/internal/identity/store"
	jwttoken "landadmin/internal/jwt_token"
	landhandler "landadmin/internal/landrecord/handler"
	landservice "landadmin/internal/landrecord/service"
	landstore "landadmin/internal/landrecord/store"
	"landadmin/internal/landtransfer/cache"
	"landadmin/internal/landtransfer/documents"
	transferhandler "landadmin/internal/landtransfer/handler"
	transfermetrics "landadmin/internal/landtransfer/metrics"
	"landadmin/internal/landtransfer/preload"
	transferservice "landadmin/internal/landtransfer/service"
	transferstore "landadmin/internal/landtransfer/store"
	"landadmin/internal/platform/config"
	"landadmin/internal/platform/kafka"
	"landadmin/internal/platform/metrics"
	"landadmin/internal/platform/postgres"
	platformredis "landadmin/internal/platform/redis"
	id "landadmin/pkg/domain"
	"landadmin/pkg/platform/events"
	"landadmin/pkg/platform/events/relay"
	"landadmin/pkg/platform/events/sinks"
	outboxstore "landadmin/pkg/platform/events/store/postgres"
	txcontext "landadmin/pkg/platform/tx"
)

const (
	eventBuffer     = 256
	topicPartitions = 3
)

// UserStore is the identity surface the binaries need.
type UserStore interface {
	Create(ctx context.Context, user *identitymodels.User) error
	FindByID(ctx context.Context, userID id.UserID) (*identitymodels.User, error)
	FindByEmail(ctx context.Context, email string) (*identitymodels.User, error)
	ExistsActive(ctx context.Context, userID id.UserID) (bool, error)
	Count(ctx context.Context) (int, error)
}

// LandStore is the land record store shared by the land and transfer services.
type LandStore interface {
	landservice.Store
	transferservice.LandGate
}

// App holds the wired components of one process.
type App struct {
	Config    config.Config
	Logger    *slog.Logger
	Registry  *prometheus.Registry
	Users     UserStore
	Lands     *landservice.Service
	Transfers *transferservice.Service
	Tokens    *jwttoken.JWTService
	Relay     *relay.Relay

	db        *sql.DB
	redis     *platformredis.Client
	producer  *kafka.Producer
	queue     *preload.Client
	publisher *events.Publisher
	checks    map[string]httpapi.HealthCheck
}

// New connects every configured backend and wires the services. Close must
// be called to release connections.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		Tokens:   jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience),
		checks:   map[string]httpapi.HealthCheck{},
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var (
		lands     LandStore
		transfers transferservice.Store
		runner    txcontext.Runner
	)
	if cfg.Database.URL != "" {
		a.db, err = postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.checks["database"] = a.db.PingContext
		a.Users = identitystore.NewPostgres(a.db)
		lands = landstore.NewPostgres(a.db)
		transfers = transferstore.NewPostgres(a.db)
		runner = txcontext.NewSQLRunner(a.db, cfg.Database.TxTimeout)
	} else {
		memLands, memTransfers := landstore.NewInMemory(), transferstore.NewInMemory()
		a.Users = identitystore.NewInMemory()
		lands, transfers = memLands, memTransfers
		runner = txcontext.NewMemoryRunner(memLands, memTransfers)
		logger.Info("DATABASE_URL not set, using in-memory stores")
	}

	sink, outbox, err := a.eventSink(ctx)
	if err != nil {
		return nil, err
	}

	opMetrics := transfermetrics.NewWithRegisterer(a.Registry)
	opts := []transferservice.Option{
		transferservice.WithLogger(logger),
		transferservice.WithMetrics(opMetrics),
	}
	landOpts := []landservice.Option{landservice.WithLogger(logger)}
	if outbox != nil {
		opts = append(opts, transferservice.WithOutbox(outbox))
		landOpts = append(landOpts, landservice.WithOutbox(outbox))
	} else {
		a.publisher = events.NewPublisher(sink,
			events.WithLogger(logger),
			events.WithMetrics(events.NewMetricsWithRegisterer(a.Registry)),
			events.WithAsyncBuffer(eventBuffer),
		)
		opts = append(opts, transferservice.WithPublisher(a.publisher))
		landOpts = append(landOpts, landservice.WithPublisher(a.publisher))
	}

	a.redis, err = platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if a.redis != nil {
		a.checks["redis"] = a.redis.Health
		opts = append(opts, transferservice.WithCache(
			cache.NewRedis(a.redis.Client, cache.WithLogger(logger), cache.WithMetrics(opMetrics)),
			cfg.Cache,
		))
	}

	if cfg.Queue.Enabled() {
		a.queue = preload.NewClient(cfg.Queue)
		opts = append(opts, transferservice.WithPreloadEnqueuer(a.queue))
	}

	if cfg.Storage.Enabled() {
		docs, err := documents.New(cfg.Storage)
		if err != nil {
			return nil, err
		}
		if err := docs.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		opts = append(opts, transferservice.WithDocuments(docs))
	}

	a.Lands = landservice.New(lands, a.Users, runner, landOpts...)
	a.Transfers = transferservice.New(transfers, lands, a.Users, runner, opts...)
	return a, nil
}

// eventSink picks the event destination. With Postgres and Kafka both
// configured it returns the outbox, written inside each write transaction and
// drained by the relay. Otherwise it returns a sink for the async publisher:
// Kafka behind a circuit breaker alongside the log sink, or the log sink.
func (a *App) eventSink(ctx context.Context) (events.Sink, *outboxstore.Store, error) {
	if !a.Config.Kafka.Enabled() {
		return sinks.NewLogSink(a.Logger), nil, nil
	}
	producer, err := kafka.NewProducer(a.Config.Kafka)
	if err != nil {
		return nil, nil, err
	}
	a.producer = producer
	a.checks["kafka"] = producer.Ping
	if err := producer.EnsureTopic(ctx, producer.Topic(), topicPartitions, 1); err != nil {
		a.Logger.Warn("could not ensure event topic", "topic", producer.Topic(), "error", err)
	}

	if a.db == nil {
		return sinks.Multi{
			sinks.NewLogSink(a.Logger),
			sinks.NewKafkaSink(producer, producer.Topic(), sinks.DefaultBreakerSettings(), a.Logger),
		}, nil, nil
	}
	outbox := outboxstore.New(a.db)
	a.Relay = relay.New(outbox, producer, producer.Topic(),
		a.Config.Kafka.OutboxPollInterval, a.Config.Kafka.OutboxBatchSize, a.Logger)
	return nil, outbox, nil
}

// Handler builds the HTTP surface.
func (a *App) Handler() http.Handler {
	return httpapi.NewRouter(httpapi.Deps{
		Logger:         a.Logger,
		Metrics:        metrics.NewWithRegisterer(a.Registry),
		Gatherer:       a.Registry,
		Validator:      jwttoken.NewJWTServiceAdapter(a.Tokens),
		Resolver:       identity.NewResolver(a.Users),
		RequestTimeout: a.Config.Server.RequestTimeout,
		Checks:         a.checks,
		Modules: []httpapi.Module{
			transferhandler.New(a.Transfers, a.Logger),
			landhandler.New(a.Lands, a.Logger),
		},
	})
}

// PreloadProcessor builds the asynq handler for cache preload tasks. The
// preload lock needs Redis; without it preloads run uncoordinated.
func (a *App) PreloadProcessor() *preload.Processor {
	var locker preload.Locker
	if a.redis != nil {
		locker = platformredis.NewLocker(a.redis)
	}
	return preload.NewProcessor(a.Transfers, locker, a.Logger)
}

// DB returns the Postgres handle, or nil when running in memory.
func (a *App) DB() *sql.DB {
	return a.db
}

// Close flushes pending events and releases every connection.
func (a *App) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	var errs []error
	if a.queue != nil {
		errs = append(errs, a.queue.Close())
	}
	if a.producer != nil {
		a.producer.Close()
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.Logger.Warn("error while closing resources", "error", err)
	}
}
