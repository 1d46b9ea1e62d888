package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"landadmin/internal/landrecord/models"
	id "landadmin/pkg/domain"
	dErrors "landadmin/pkg/domain-errors"
	"landadmin/pkg/platform/httputil"
	"landadmin/pkg/requestcontext"
)

// Service defines the land record operations the handler needs.
type Service interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.LandRecord, error)
	Approve(ctx context.Context, landID id.LandID) (*models.LandRecord, error)
	Reject(ctx context.Context, landID id.LandID, reason string) (*models.LandRecord, error)
	Get(ctx context.Context, landID id.LandID) (*models.LandRecord, error)
	List(ctx context.Context, filter models.ListFilter) (*models.ListResult, error)
}

// Handler wires land record endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts land record endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/land-records", func(r chi.Router) {
		r.Post("/", h.HandleRegister)
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
		r.Post("/{id}/approve", h.HandleApprove)
		r.Post("/{id}/reject", h.HandleReject)
	})
}

// HandleRegister handles POST /land-records.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	land, err := h.service.Register(ctx, req)
	if err != nil {
		h.fail(ctx, w, "land registration failed", requestID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, land)
}

// HandleList handles GET /land-records.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	filter := models.ListFilter{
		Status:   models.Status(strings.ToLower(q.Get("status"))),
		District: strings.TrimSpace(q.Get("district")),
		Page:     atoiOrZero(q.Get("page")),
		Limit:    atoiOrZero(q.Get("limit")),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid status filter"))
		return
	}
	result, err := h.service.List(ctx, filter)
	if err != nil {
		h.fail(ctx, w, "land record listing failed", requestcontext.RequestID(ctx), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleGet handles GET /land-records/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	landID, err := id.ParseLandID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	land, err := h.service.Get(ctx, landID)
	if err != nil {
		h.fail(ctx, w, "land record lookup failed", requestcontext.RequestID(ctx), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, land)
}

// HandleApprove handles POST /land-records/{id}/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	landID, err := id.ParseLandID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	land, err := h.service.Approve(ctx, landID)
	if err != nil {
		h.fail(ctx, w, "land approval failed", requestcontext.RequestID(ctx), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, land)
}

// HandleReject handles POST /land-records/{id}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	landID, err := id.ParseLandID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.RejectRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	land, err := h.service.Reject(ctx, landID, req.RejectionReason)
	if err != nil {
		h.fail(ctx, w, "land rejection failed", requestID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, land)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg, requestID string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "request_id", requestID, "error", err)
	} else {
		h.logger.WarnContext(ctx, msg, "request_id", requestID, "error", err)
	}
	httputil.WriteError(w, err)
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
