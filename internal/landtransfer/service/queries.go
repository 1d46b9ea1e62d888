package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"landadmin/internal/landtransfer/cache"
	"landadmin/internal/landtransfer/documents"
	"landadmin/internal/landtransfer/models"
	"landadmin/internal/landtransfer/store"
	"landadmin/internal/policy"
	id "landadmin/pkg/domain"
	dErrors "landadmin/pkg/domain-errors"
	"landadmin/pkg/platform/sentinel"
	"landadmin/pkg/requestcontext"
)

// DefaultPreloadLimit bounds how many recent transfers a preload warms.
const DefaultPreloadLimit = 100

func visible(scope policy.Scope, t *models.Transfer) bool {
	return scope.Permits(t.District, t.CurrentOwnerID, t.NewOwnerID)
}

func filterVisible(scope policy.Scope, in []*models.Transfer) []*models.Transfer {
	out := make([]*models.Transfer, 0, len(in))
	for _, t := range in {
		if visible(scope, t) {
			out = append(out, t)
		}
	}
	return out
}

// FindAll returns one page of the transfers visible to the caller.
func (s *Service) FindAll(ctx context.Context, filter models.ListFilter) (_ *models.ListResult, err error) {
	ctx, done := s.startOp(ctx, "find_all")
	defer done(&err)

	filter.Page, filter.Limit = store.NormalizePage(filter.Page, filter.Limit)
	scope := policy.ScopeFor(requestcontext.ActorFrom(ctx))
	result, err := cache.Fetch(ctx, s.cache, cache.ListKey(scope, filter), s.ttl.List,
		func(ctx context.Context) (*models.ListResult, error) {
			data, total, err := s.transfers.List(ctx, scope, filter)
			if err != nil {
				return nil, err
			}
			return &models.ListResult{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
		})
	if err != nil {
		return nil, domainError(err, "failed to list transfers")
	}
	return result, nil
}

// FindOne returns a single transfer. Visibility is checked on every call,
// including cache hits.
func (s *Service) FindOne(ctx context.Context, transferID id.TransferID) (_ *models.Transfer, err error) {
	ctx, done := s.startOp(ctx, "find_one", transferAttr(transferID))
	defer done(&err)

	t, err := cache.Fetch(ctx, s.cache, cache.TransferKey(transferID), s.ttl.Transfer,
		func(ctx context.Context) (*models.Transfer, error) {
			return s.transfers.FindByID(ctx, transferID)
		})
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, errTransferNotFound
	}
	if err != nil {
		return nil, domainError(err, "failed to load transfer")
	}
	if !visible(policy.ScopeFor(requestcontext.ActorFrom(ctx)), t) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not authorized to view this transfer")
	}
	return t, nil
}

// FindByLand lists the visible transfers of a parcel, newest first.
func (s *Service) FindByLand(ctx context.Context, landID id.LandID) (_ []*models.Transfer, err error) {
	ctx, done := s.startOp(ctx, "find_by_land", attribute.String("land.id", landID.String()))
	defer done(&err)

	all, err := s.transfers.FindByLand(ctx, landID)
	if err != nil {
		return nil, domainError(err, "failed to list transfers for land")
	}
	return filterVisible(policy.ScopeFor(requestcontext.ActorFrom(ctx)), all), nil
}

// FindByUser lists the visible transfers where userID is a party.
func (s *Service) FindByUser(ctx context.Context, userID id.UserID) (_ []*models.Transfer, err error) {
	ctx, done := s.startOp(ctx, "find_by_user", attribute.String("user.id", userID.String()))
	defer done(&err)

	if !policy.Allowed(requestcontext.ActorFrom(ctx).Role, policy.OpViewByUser) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not authorized to view transfers by user")
	}
	list, err := cache.Fetch(ctx, s.cache, cache.UserKey(userID), s.ttl.User,
		func(ctx context.Context) ([]*models.Transfer, error) {
			return s.transfers.FindByUser(ctx, userID)
		})
	if err != nil {
		return nil, domainError(err, "failed to list transfers for user")
	}
	return filterVisible(policy.ScopeFor(requestcontext.ActorFrom(ctx)), list), nil
}

// History lists every transfer of a parcel, oldest first.
func (s *Service) History(ctx context.Context, landID id.LandID) (_ []*models.Transfer, err error) {
	ctx, done := s.startOp(ctx, "history", attribute.String("land.id", landID.String()))
	defer done(&err)

	all, err := cache.Fetch(ctx, s.cache, cache.HistoryKey(landID), s.ttl.History,
		func(ctx context.Context) ([]*models.Transfer, error) {
			return s.transfers.History(ctx, landID)
		})
	if err != nil {
		return nil, domainError(err, "failed to load transfer history")
	}
	return filterVisible(policy.ScopeFor(requestcontext.ActorFrom(ctx)), all), nil
}

// ByDistrict lists the transfers of one district. A land officer asking for
// another district gets an empty list.
func (s *Service) ByDistrict(ctx context.Context, district string) (_ []*models.Transfer, err error) {
	ctx, done := s.startOp(ctx, "by_district", attribute.String("district", district))
	defer done(&err)

	scope := policy.ScopeFor(requestcontext.ActorFrom(ctx))
	if scope.Kind == policy.ScopeDistrict && scope.District != district {
		return []*models.Transfer{}, nil
	}
	all, err := cache.Fetch(ctx, s.cache, cache.DistrictKey(district), s.ttl.District,
		func(ctx context.Context) ([]*models.Transfer, error) {
			return s.transfers.FindByDistrict(ctx, district)
		})
	if err != nil {
		return nil, domainError(err, "failed to list transfers for district")
	}
	return filterVisible(scope, all), nil
}

// Statistics counts the visible transfers by status.
func (s *Service) Statistics(ctx context.Context) (_ *models.Statistics, err error) {
	ctx, done := s.startOp(ctx, "statistics")
	defer done(&err)

	scope := policy.ScopeFor(requestcontext.ActorFrom(ctx))
	stats, err := cache.Fetch(ctx, s.cache, cache.StatsKey(scope), s.ttl.Stats,
		func(ctx context.Context) (*models.Statistics, error) {
			return s.countAll(ctx, scope)
		})
	if err != nil {
		return nil, domainError(err, "failed to compute transfer statistics")
	}
	return stats, nil
}

func (s *Service) countAll(ctx context.Context, scope policy.Scope) (*models.Statistics, error) {
	var stats models.Statistics
	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int, statuses ...models.Status) {
		g.Go(func() error {
			n, err := s.transfers.Count(gctx, scope, statuses...)
			*dst = n
			return err
		})
	}
	count(&stats.Total)
	count(&stats.Pending, models.PendingStatuses...)
	count(&stats.Approved, models.StatusApproved)
	count(&stats.Completed, models.StatusCompleted)
	count(&stats.Rejected, models.StatusRejected)
	count(&stats.Cancelled, models.StatusCancelled)
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}

// DocumentLinks returns presigned download URLs for a transfer's documents.
// Only uploads stored under the transfer's own prefix are signed; other
// references are returned without a URL.
func (s *Service) DocumentLinks(ctx context.Context, transferID id.TransferID) ([]models.DocumentLink, error) {
	if s.documents == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "document storage is not configured")
	}
	t, err := s.FindOne(ctx, transferID)
	if err != nil {
		return nil, err
	}
	links := make([]models.DocumentLink, 0, len(t.Documents))
	for _, key := range t.Documents {
		if !documents.BelongsTo(t.ID, key) {
			links = append(links, models.DocumentLink{Key: key})
			continue
		}
		url, err := s.documents.PresignGet(ctx, key)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to presign document")
		}
		links = append(links, models.DocumentLink{Key: key, URL: url})
	}
	return links, nil
}

// CacheHealth is the result of a cache ping.
type CacheHealth struct {
	Status    string    `json:"status"`
	CheckedAt time.Time `json:"checkedAt"`
}

// CacheHealth pings the cache backend.
func (s *Service) CacheHealth(ctx context.Context) (*CacheHealth, error) {
	actor := requestcontext.ActorFrom(ctx)
	if !policy.Allowed(actor.Role, policy.OpCacheHealth) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not authorized to view cache health")
	}
	health := &CacheHealth{Status: "healthy", CheckedAt: requestcontext.Now(ctx)}
	err := s.cache.Ping(ctx)
	switch {
	case errors.Is(err, cache.ErrDisabled):
		health.Status = "disabled"
	case err != nil:
		s.logger.WarnContext(ctx, "cache health check failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "cache is unavailable")
	}
	return health, nil
}

// RequestPreload schedules a cache preload. Without a queue the preload runs
// inline.
func (s *Service) RequestPreload(ctx context.Context, limit int) error {
	actor := requestcontext.ActorFrom(ctx)
	if !policy.Allowed(actor.Role, policy.OpCachePreload) {
		return dErrors.New(dErrors.CodeForbidden, "not authorized to preload cache")
	}
	if limit < 1 {
		limit = DefaultPreloadLimit
	}
	if s.preloader == nil {
		_, err := s.Preload(ctx, limit)
		return err
	}
	if err := s.preloader.EnqueuePreload(ctx, limit); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to schedule cache preload")
	}
	s.logger.InfoContext(ctx, "cache preload enqueued",
		"limit", limit,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// Preload warms the per-transfer cache entries for the most recent transfers
// and returns how many were written.
func (s *Service) Preload(ctx context.Context, limit int) (_ int, err error) {
	ctx, done := s.startOp(ctx, "preload", attribute.Int("limit", limit))
	defer done(&err)

	recent, err := s.transfers.Recent(ctx, limit)
	if err != nil {
		return 0, domainError(err, "failed to load recent transfers")
	}
	for _, t := range recent {
		if err := cache.Store(ctx, s.cache, cache.TransferKey(t.ID), t, s.ttl.Transfer); err != nil {
			return 0, domainError(err, "failed to preload cache")
		}
	}
	s.logger.InfoContext(ctx, "cache preloaded", "count", len(recent))
	return len(recent), nil
}
