package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"landadmin/internal/landtransfer/models"
	"landadmin/internal/landtransfer/service"
	id "landadmin/pkg/domain"
	dErrors "landadmin/pkg/domain-errors"
	"landadmin/pkg/platform/httputil"
	"landadmin/pkg/requestcontext"
)

const maxUploadBytes = 10 << 20

// Service defines the transfer operations the handler needs.
type Service interface {
	Initiate(ctx context.Context, req *models.InitiateRequest) (*models.Transfer, error)
	Approve(ctx context.Context, transferID id.TransferID, notes string) (*models.Transfer, error)
	Reject(ctx context.Context, transferID id.TransferID, reason string) (*models.Transfer, error)
	Cancel(ctx context.Context, transferID id.TransferID) (*models.Transfer, error)
	Update(ctx context.Context, transferID id.TransferID, patch *models.UpdateRequest) (*models.Transfer, error)
	AttachDocument(ctx context.Context, transferID id.TransferID, upload service.Upload) (*models.Transfer, error)
	DocumentLinks(ctx context.Context, transferID id.TransferID) ([]models.DocumentLink, error)
	FindAll(ctx context.Context, filter models.ListFilter) (*models.ListResult, error)
	FindOne(ctx context.Context, transferID id.TransferID) (*models.Transfer, error)
	FindByLand(ctx context.Context, landID id.LandID) ([]*models.Transfer, error)
	FindByUser(ctx context.Context, userID id.UserID) ([]*models.Transfer, error)
	History(ctx context.Context, landID id.LandID) ([]*models.Transfer, error)
	ByDistrict(ctx context.Context, district string) ([]*models.Transfer, error)
	Statistics(ctx context.Context) (*models.Statistics, error)
	CacheHealth(ctx context.Context) (*service.CacheHealth, error)
	RequestPreload(ctx context.Context, limit int) error
}

// Handler wires land transfer endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts land transfer endpoints on the router. Fixed paths are
// registered ahead of /{id}.
func (h *Handler) Register(r chi.Router) {
	r.Route("/land-transfer", func(r chi.Router) {
		r.Post("/", h.HandleInitiate)
		r.Get("/", h.HandleList)
		r.Get("/statistics", h.HandleStatistics)
		r.Get("/by-land/{landId}", h.HandleByLand)
		r.Get("/by-user/{userId}", h.HandleByUser)
		r.Get("/district/{district}", h.HandleByDistrict)
		r.Get("/history/{landId}", h.HandleHistory)
		r.Get("/cache/health", h.HandleCacheHealth)
		r.Post("/cache/preload", h.HandleCachePreload)

		r.Get("/{id}", h.HandleGet)
		r.Patch("/{id}", h.HandleUpdate)
		r.Post("/{id}/approve", h.HandleApprove)
		r.Post("/{id}/reject", h.HandleReject)
		r.Post("/{id}/cancel", h.HandleCancel)
		r.Post("/{id}/documents", h.HandleUploadDocument)
		r.Get("/{id}/documents", h.HandleListDocuments)
	})
}

// HandleInitiate handles POST /land-transfer.
func (h *Handler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.InitiateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	transfer, err := h.service.Initiate(ctx, req)
	if err != nil {
		h.fail(ctx, w, "transfer initiation failed", requestID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, transfer)
}

// HandleList handles GET /land-transfer.
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
	result, err := h.service.FindAll(ctx, filter)
	if err != nil {
		h.fail(ctx, w, "transfer listing failed", requestcontext.RequestID(ctx), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleStatistics handles GET /land-transfer/statistics.
func (h *Handler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.service.Statistics(ctx)
	if err != nil {
		h.fail(ctx, w, "transfer statistics failed", requestcontext.RequestID(ctx), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// HandleByLand handles GET /land-transfer/by-land/{landId}.
func (h *Handler) HandleByLand(w http.ResponseWriter, r *http.Request) {
	h.listByLand(w, r, "transfer lookup by land failed", h.service.FindByLand)
}

// HandleHistory handles GET /land-transfer/history/{landId}.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	h.listByLand(w, r, "transfer history lookup failed", h.service.History)
}

func (h *Handler) listByLand(w http.ResponseWriter, r *http.Request, msg string, list func(context.Context, id.LandID) ([]*models.Transfer, error)) {
	ctx := r.Context()
	landID, err := id.ParseLandID(chi.URLParam(r, "landId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	transfers, err := list(ctx, landID)
	if err != nil {
		h.fail(ctx, w, msg, requestcontext.RequestID(ctx), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, transfers)
}

// HandleByUser handles GET /land-transfer/by-user/{userId}.
func (h *Handler) HandleByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := id.ParseUserID(chi.URLParam(r, "userId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	transfers, err := h.service.FindByUser(ctx, userID)
	if err != nil {
		h.fail(ctx, w, "transfer lookup by user failed", requestcontext.RequestID(ctx), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, transfers)
}

// HandleByDistrict handles GET /land-transfer/district/{district}.
func (h *Handler) HandleByDistrict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	district := strings.TrimSpace(chi.URLParam(r, "district"))
	if district == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "district is required"))
		return
	}
	transfers, err := h.service.ByDistrict(ctx, district)
	if err != nil {
		h.fail(ctx, w, "transfer lookup by district failed", requestcontext.RequestID(ctx), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, transfers)
}

// HandleCacheHealth handles GET /land-transfer/cache/health.
func (h *Handler) HandleCacheHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	health, err := h.service.CacheHealth(ctx)
	if err != nil {
		h.fail(ctx, w, "cache health check failed", requestcontext.RequestID(ctx), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, health)
}

// HandleCachePreload handles POST /land-transfer/cache/preload.
func (h *Handler) HandleCachePreload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := atoiOrZero(r.URL.Query().Get("limit"))
	if limit < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must not be negative"))
		return
	}
	if err := h.service.RequestPreload(ctx, limit); err != nil {
		h.fail(ctx, w, "cache preload request failed", requestcontext.RequestID(ctx), err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

// HandleGet handles GET /land-transfer/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	transferID, ok := transferIDParam(w, r)
	if !ok {
		return
	}
	transfer, err := h.service.FindOne(ctx, transferID)
	if err != nil {
		h.fail(ctx, w, "transfer lookup failed", requestcontext.RequestID(ctx), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, transfer)
}

// HandleUpdate handles PATCH /land-transfer/{id}. Unknown fields are rejected.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	transferID, ok := transferIDParam(w, r)
	if !ok {
		return
	}
	patch, ok := httputil.DecodeStrictAndPrepare[models.UpdateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	transfer, err := h.service.Update(ctx, transferID, patch)
	if err != nil {
		h.fail(ctx, w, "transfer update failed", requestID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, transfer)
}

// HandleApprove handles POST /land-transfer/{id}/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	transferID, ok := transferIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.ApproveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	transfer, err := h.service.Approve(ctx, transferID, req.ApprovalNotes)
	if err != nil {
		h.fail(ctx, w, "transfer approval failed", requestID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, transfer)
}

// HandleReject handles POST /land-transfer/{id}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	transferID, ok := transferIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.RejectRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	transfer, err := h.service.Reject(ctx, transferID, req.RejectionReason)
	if err != nil {
		h.fail(ctx, w, "transfer rejection failed", requestID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, transfer)
}

// HandleCancel handles POST /land-transfer/{id}/cancel.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	transferID, ok := transferIDParam(w, r)
	if !ok {
		return
	}
	transfer, err := h.service.Cancel(ctx, transferID)
	if err != nil {
		h.fail(ctx, w, "transfer cancellation failed", requestcontext.RequestID(ctx), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, transfer)
}

// HandleUploadDocument handles POST /land-transfer/{id}/documents as
// multipart/form-data with the file in the "file" field.
func (h *Handler) HandleUploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	transferID, ok := transferIDParam(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "file exceeds the 10MB limit"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid multipart form"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "file is required"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	transfer, err := h.service.AttachDocument(ctx, transferID, service.Upload{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		h.fail(ctx, w, "transfer document upload failed", requestID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, transfer)
}

// HandleListDocuments handles GET /land-transfer/{id}/documents.
func (h *Handler) HandleListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	transferID, ok := transferIDParam(w, r)
	if !ok {
		return
	}
	links, err := h.service.DocumentLinks(ctx, transferID)
	if err != nil {
		h.fail(ctx, w, "transfer document listing failed", requestcontext.RequestID(ctx), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, links)
}

func transferIDParam(w http.ResponseWriter, r *http.Request) (id.TransferID, bool) {
	transferID, err := id.ParseTransferID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.TransferID{}, false
	}
	return transferID, true
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
