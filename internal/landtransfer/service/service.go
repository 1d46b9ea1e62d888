// Package service implements the land transfer workflow: a status machine
// over transfers coupled to the land record gate, with every multi-row change
// committed in one transaction and events published after commit.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	landmodels "landadmin/internal/landrecord/models"
	"landadmin/internal/landtransfer/cache"
	"landadmin/internal/landtransfer/metrics"
	"landadmin/internal/landtransfer/models"
	"landadmin/internal/platform/config"
	"landadmin/internal/policy"
	id "landadmin/pkg/domain"
	dErrors "landadmin/pkg/domain-errors"
	"landadmin/pkg/platform/events"
	txcontext "landadmin/pkg/platform/tx"
)

// Store is the transfer persistence the workflow needs.
type Store interface {
	Create(ctx context.Context, t *models.Transfer) error
	FindByID(ctx context.Context, transferID id.TransferID) (*models.Transfer, error)
	ExistsByNumber(ctx context.Context, number string) (bool, error)
	Transition(ctx context.Context, t *models.Transfer, from ...models.Status) error
	List(ctx context.Context, scope policy.Scope, filter models.ListFilter) ([]*models.Transfer, int, error)
	FindByLand(ctx context.Context, landID id.LandID) ([]*models.Transfer, error)
	FindByUser(ctx context.Context, userID id.UserID) ([]*models.Transfer, error)
	FindByDistrict(ctx context.Context, district string) ([]*models.Transfer, error)
	History(ctx context.Context, landID id.LandID) ([]*models.Transfer, error)
	Recent(ctx context.Context, limit int) ([]*models.Transfer, error)
	Count(ctx context.Context, scope policy.Scope, statuses ...models.Status) (int, error)
}

// LandGate is the land record surface a transfer drives.
type LandGate interface {
	FindByID(ctx context.Context, landID id.LandID) (*landmodels.LandRecord, error)
	LockForTransfer(ctx context.Context, landID id.LandID, now time.Time) (*landmodels.LandRecord, error)
	FinalizeTransfer(ctx context.Context, landID id.LandID, expectedOwner, newOwner id.UserID, now time.Time) error
	RestoreAfterTransfer(ctx context.Context, landID id.LandID, now time.Time) error
}

// UserDirectory checks that a user exists and may still act.
type UserDirectory interface {
	ExistsActive(ctx context.Context, userID id.UserID) (bool, error)
}

// EventPublisher delivers domain events without failing the caller.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event)
}

// EventOutbox stores events in the caller's transaction.
type EventOutbox interface {
	Write(ctx context.Context, event events.Event) error
}

// DocumentStore keeps uploaded transfer documents.
type DocumentStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string) (string, error)
}

// PreloadEnqueuer schedules an asynchronous cache preload.
type PreloadEnqueuer interface {
	EnqueuePreload(ctx context.Context, limit int) error
}

// Service coordinates transfer operations.
type Service struct {
	transfers Store
	lands     LandGate
	users     UserDirectory
	tx        txcontext.Runner
	publisher EventPublisher
	outbox    EventOutbox
	cache     cache.Cache
	ttl       config.CacheTTLs
	documents DocumentStore
	preloader PreloadEnqueuer
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithOutbox records events in the write transaction instead of publishing
// them after commit. The relay delivers them from there.
func WithOutbox(o EventOutbox) Option {
	return func(s *Service) { s.outbox = o }
}

// WithCache enables read-through caching with the given lifetimes.
func WithCache(c cache.Cache, ttl config.CacheTTLs) Option {
	return func(s *Service) {
		s.cache = c
		s.ttl = ttl
	}
}

func WithDocuments(d DocumentStore) Option {
	return func(s *Service) { s.documents = d }
}

func WithPreloadEnqueuer(e PreloadEnqueuer) Option {
	return func(s *Service) { s.preloader = e }
}

func New(transfers Store, lands LandGate, users UserDirectory, tx txcontext.Runner, opts ...Option) *Service {
	s := &Service{
		transfers: transfers,
		lands:     lands,
		users:     users,
		tx:        tx,
		cache:     cache.Noop{},
		logger:    slog.Default(),
		tracer:    otel.Tracer("landadmin/landtransfer"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// startOp opens the span and returns the finisher that records the outcome.
func (s *Service) startOp(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "landtransfer."+op, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		outcome := "ok"
		if err := *errp; err != nil {
			outcome = string(dErrors.CodeOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		s.metrics.ObserveOperation(op, outcome, start)
		span.End()
	}
}

// domainError passes domain errors through and wraps everything else as an
// internal error with msg.
func domainError(err error, msg string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func transferAttr(transferID id.TransferID) attribute.KeyValue {
	return attribute.String("transfer.id", transferID.String())
}
