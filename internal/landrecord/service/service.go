// Package service registers and reviews land records. It is the minimal
// registration surface that makes a parcel transferable.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"landadmin/internal/landrecord/models"
	"landadmin/internal/landrecord/store"
	"landadmin/internal/policy"
	id "landadmin/pkg/domain"
	dErrors "landadmin/pkg/domain-errors"
	"landadmin/pkg/platform/events"
	"landadmin/pkg/platform/sentinel"
	txcontext "landadmin/pkg/platform/tx"
	"landadmin/pkg/requestcontext"
)

// Store is the persistence the service needs.
type Store interface {
	Create(ctx context.Context, land *models.LandRecord) error
	FindByID(ctx context.Context, landID id.LandID) (*models.LandRecord, error)
	ExistsByParcelNumber(ctx context.Context, parcel string) (bool, error)
	ExistsByUPI(ctx context.Context, upi string) (bool, error)
	List(ctx context.Context, scope policy.Scope, filter models.ListFilter) ([]*models.LandRecord, int, error)
	Review(ctx context.Context, land *models.LandRecord) error
}

// UserDirectory checks that a named owner exists and is active.
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

// Service coordinates land record registration and review.
type Service struct {
	store     Store
	users     UserDirectory
	tx        txcontext.Runner
	publisher EventPublisher
	outbox    EventOutbox
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithOutbox writes review events in the review transaction instead of
// publishing them after commit.
func WithOutbox(o EventOutbox) Option {
	return func(s *Service) { s.outbox = o }
}

func New(store Store, users UserDirectory, tx txcontext.Runner, opts ...Option) *Service {
	s := &Service{
		store:  store,
		users:  users,
		tx:     tx,
		logger: slog.Default(),
		tracer: otel.Tracer("landadmin/landrecord"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a pending land record. Citizens register for themselves;
// staff may register on behalf of a named owner.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.LandRecord, error) {
	ctx, span := s.tracer.Start(ctx, "landrecord.Register")
	defer span.End()

	actor := requestcontext.ActorFrom(ctx)
	owner := actor.UserID
	if !req.Owner().IsNil() && req.Owner() != actor.UserID {
		if !policy.Allowed(actor.Role, policy.OpRegisterForOwner) {
			return nil, dErrors.New(dErrors.CodeForbidden, "not authorized to register land for another owner")
		}
		exists, err := s.users.ExistsActive(ctx, req.Owner())
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check owner")
		}
		if !exists {
			return nil, dErrors.New(dErrors.CodeNotFound, "owner not found")
		}
		owner = req.Owner()
	}

	if taken, err := s.store.ExistsByParcelNumber(ctx, req.ParcelNumber); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check parcel number")
	} else if taken {
		return nil, dErrors.New(dErrors.CodeConflict, "parcel number already exists")
	}
	if taken, err := s.store.ExistsByUPI(ctx, req.UPINumber); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check UPI number")
	} else if taken {
		return nil, dErrors.New(dErrors.CodeConflict, "UPI number already exists")
	}

	now := requestcontext.Now(ctx)
	documents := req.Documents
	if documents == nil {
		documents = []string{}
	}
	land := &models.LandRecord{
		ID:              id.NewLandID(),
		ParcelNumber:    req.ParcelNumber,
		UPINumber:       req.UPINumber,
		Area:            req.Area,
		District:        req.District,
		Sector:          req.Sector,
		Cell:            req.Cell,
		Village:         req.Village,
		Description:     req.Description,
		LandUseType:     req.LandUseType,
		Status:          models.StatusPending,
		MarketValue:     req.MarketValue,
		GovernmentValue: req.GovernmentValue,
		Geometry:        req.Geometry,
		Documents:       documents,
		OwnerID:         owner,
		RegisteredBy:    actor.UserID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.Create(ctx, land)
	})
	switch {
	case errors.Is(err, store.ErrDuplicateParcel):
		return nil, dErrors.New(dErrors.CodeConflict, "parcel number already exists")
	case errors.Is(err, store.ErrDuplicateUPI):
		return nil, dErrors.New(dErrors.CodeConflict, "UPI number already exists")
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register land record")
	}

	s.logger.InfoContext(ctx, "land record registered",
		"land_id", land.ID.String(),
		"parcel_number", land.ParcelNumber,
		"request_id", requestcontext.RequestID(ctx),
	)
	return land, nil
}

// Approve approves a pending registration.
func (s *Service) Approve(ctx context.Context, landID id.LandID) (*models.LandRecord, error) {
	return s.review(ctx, landID, "approve", func(l *models.LandRecord, reviewer id.UserID, now time.Time) error {
		return l.ApplyApprove(reviewer, now)
	})
}

// Reject rejects a pending registration with reason.
func (s *Service) Reject(ctx context.Context, landID id.LandID, reason string) (*models.LandRecord, error) {
	return s.review(ctx, landID, "reject", func(l *models.LandRecord, reviewer id.UserID, now time.Time) error {
		return l.ApplyReject(reviewer, reason, now)
	})
}

func (s *Service) review(ctx context.Context, landID id.LandID, verb string, apply func(*models.LandRecord, id.UserID, time.Time) error) (*models.LandRecord, error) {
	ctx, span := s.tracer.Start(ctx, "landrecord."+verb, trace.WithAttributes(attribute.String("land.id", landID.String())))
	defer span.End()

	actor := requestcontext.ActorFrom(ctx)
	if !policy.Allowed(actor.Role, policy.OpReviewLand) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not authorized to "+verb+" land records")
	}
	invalid := dErrors.New(dErrors.CodeBadRequest, "land cannot be "+pastTense(verb)+" in current status")

	var (
		updated *models.LandRecord
		evt     events.Event
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		land, err := s.store.FindByID(ctx, landID)
		if err != nil {
			return err
		}
		previous := land.Status
		if err := apply(land, actor.UserID, requestcontext.Now(ctx)); err != nil {
			return invalid
		}
		if err := s.store.Review(ctx, land); err != nil {
			return err
		}
		updated = land
		evt = events.New(ctx, events.LandStatusChanged, land.ID.String(), map[string]any{
			"landId":         land.ID.String(),
			"parcelNumber":   land.ParcelNumber,
			"district":       land.District,
			"previousStatus": string(previous),
			"newStatus":      string(land.Status),
		})
		if s.outbox != nil {
			return s.outbox.Write(ctx, evt)
		}
		return nil
	})
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.New(dErrors.CodeNotFound, "land record not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return nil, invalid
	case dErrors.CodeOf(err) == dErrors.CodeBadRequest:
		return nil, err
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+verb+" land record")
	}

	s.publish(ctx, evt)
	return updated, nil
}

func pastTense(verb string) string {
	if verb == "approve" {
		return "approved"
	}
	return "rejected"
}

// Get returns a land record visible to the actor.
func (s *Service) Get(ctx context.Context, landID id.LandID) (*models.LandRecord, error) {
	land, err := s.store.FindByID(ctx, landID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "land record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load land record")
	}
	scope := policy.ScopeFor(requestcontext.ActorFrom(ctx))
	if !scope.Permits(land.District, land.OwnerID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not authorized to view this land record")
	}
	return land, nil
}

// List returns a page of land records visible to the actor.
func (s *Service) List(ctx context.Context, filter models.ListFilter) (*models.ListResult, error) {
	page, limit := store.NormalizePage(filter.Page, filter.Limit)
	filter.Page, filter.Limit = page, limit
	scope := policy.ScopeFor(requestcontext.ActorFrom(ctx))
	records, total, err := s.store.List(ctx, scope, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list land records")
	}
	return &models.ListResult{Data: records, Total: total, Page: page, Limit: limit}, nil
}

func (s *Service) publish(ctx context.Context, evt events.Event) {
	if s.publisher == nil || s.outbox != nil {
		return
	}
	s.publisher.Publish(ctx, evt)
}
