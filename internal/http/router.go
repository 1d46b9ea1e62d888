// Package httpapi assembles the public HTTP surface: the middleware chain,
// the unauthenticated probes and the authenticated domain routes.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"landadmin/internal/platform/metrics"
	platformmw "landadmin/internal/platform/middleware"
	"landadmin/pkg/platform/httputil"
	"landadmin/pkg/platform/middleware/auth"
	"landadmin/pkg/platform/middleware/metadata"
	"landadmin/pkg/platform/middleware/request"
	"landadmin/pkg/platform/middleware/requesttime"
)

const defaultRequestTimeout = 30 * time.Second

// Module mounts a group of authenticated routes.
type Module interface {
	Register(r chi.Router)
}

// HealthCheck probes one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// Deps carries everything the router needs.
type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Validator      auth.JWTValidator
	Resolver       auth.ActorResolver
	RequestTimeout time.Duration
	Checks         map[string]HealthCheck
	Modules        []Module
}

// NewRouter wires the middleware chain and every route.
func NewRouter(d Deps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = defaultRequestTimeout
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(d.Logger))
	r.Use(request.Logger(d.Logger))
	r.Use(platformmw.LatencyMiddleware(d.Metrics))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Timeout(d.RequestTimeout))

	r.Get("/health", healthHandler(d.Checks))
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(request.ContentTypeJSON)
		r.Use(auth.RequireAuth(d.Validator, d.Resolver, d.Logger))
		for _, m := range d.Modules {
			m.Register(r)
		}
	})
	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				results[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "up"
		}
		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status": overall,
			"checks": results,
		})
	}
}
