package service

import (
	"context"
	"errors"
	"io"

	"go.opentelemetry.io/otel/attribute"

	landmodels "landadmin/internal/landrecord/models"
	"landadmin/internal/landtransfer/documents"
	"landadmin/internal/landtransfer/models"
	"landadmin/internal/landtransfer/store"
	"landadmin/internal/policy"
	id "landadmin/pkg/domain"
	dErrors "landadmin/pkg/domain-errors"
	"landadmin/pkg/platform/events"
	"landadmin/pkg/platform/sentinel"
	pkgstrings "landadmin/pkg/platform/strings"
	"landadmin/pkg/requestcontext"
)

var (
	errTransferNotFound = dErrors.New(dErrors.CodeNotFound, "land transfer not found")
	errLandNotFound     = dErrors.New(dErrors.CodeNotFound, "land record not found")
	errLandNotLocked    = dErrors.New(dErrors.CodeBadRequest, "land is not locked for this transfer")
	errNotTransferable  = dErrors.New(dErrors.CodeBadRequest, "land must be approved/active")
	errForeignDocument  = dErrors.New(dErrors.CodeValidation, "documents may only reference uploads of this transfer")
)

// checkDocumentRefs rejects references into the document bucket that are not
// uploads of transferID. Free-form references are left alone.
func checkDocumentRefs(transferID id.TransferID, refs []string) error {
	for _, ref := range refs {
		if documents.IsStoredKey(ref) && !documents.BelongsTo(transferID, ref) {
			return errForeignDocument
		}
	}
	return nil
}

// Initiate opens a transfer and locks the parcel in one transaction.
func (s *Service) Initiate(ctx context.Context, req *models.InitiateRequest) (_ *models.Transfer, err error) {
	ctx, done := s.startOp(ctx, "initiate",
		attribute.String("transfer.number", req.TransferNumber),
		attribute.String("land.id", req.ParsedLandID().String()))
	defer done(&err)

	actor := requestcontext.ActorFrom(ctx)
	now := requestcontext.Now(ctx)
	transferID := id.NewTransferID()
	if err := checkDocumentRefs(transferID, req.Documents); err != nil {
		return nil, err
	}
	var (
		transfer *models.Transfer
		evts     []events.Event
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		taken, err := s.transfers.ExistsByNumber(ctx, req.TransferNumber)
		if err != nil {
			return err
		}
		if taken {
			return dErrors.New(dErrors.CodeConflict, "transfer number already exists")
		}

		land, err := s.lands.FindByID(ctx, req.ParsedLandID())
		if errors.Is(err, sentinel.ErrNotFound) {
			return errLandNotFound
		}
		if err != nil {
			return err
		}
		if land.OwnerID != actor.UserID && !policy.Allowed(actor.Role, policy.OpInitiateTransfer) {
			return dErrors.New(dErrors.CodeForbidden, "not authorized to initiate transfer for this land")
		}
		if !land.IsTransferable() {
			return errNotTransferable
		}
		exists, err := s.users.ExistsActive(ctx, req.ParsedNewOwnerID())
		if err != nil {
			return err
		}
		if !exists {
			return dErrors.New(dErrors.CodeNotFound, "new owner not found")
		}
		if req.ParsedNewOwnerID() == land.OwnerID {
			return dErrors.New(dErrors.CodeBadRequest, "cannot transfer to same owner")
		}

		documents := req.Documents
		if documents == nil {
			documents = []string{}
		}
		transfer = &models.Transfer{
			ID:             transferID,
			TransferNumber: req.TransferNumber,
			LandID:         land.ID,
			District:       land.District,
			CurrentOwnerID: land.OwnerID,
			NewOwnerID:     req.ParsedNewOwnerID(),
			TransferValue:  req.TransferValue,
			TaxAmount:      req.Tax(),
			Reason:         req.Reason,
			Documents:      documents,
			Status:         models.StatusInitiated,
			InitiatedBy:    actor.UserID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.transfers.Create(ctx, transfer); err != nil {
			if errors.Is(err, store.ErrDuplicateNumber) {
				return dErrors.New(dErrors.CodeConflict, "transfer number already exists")
			}
			return err
		}
		if _, err := s.lands.LockForTransfer(ctx, land.ID, now); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return errNotTransferable
			}
			if errors.Is(err, sentinel.ErrNotFound) {
				return errLandNotFound
			}
			return err
		}
		evts = []events.Event{
			transferEvent(ctx, events.TransferInitiated, transfer),
			landStatusEvent(ctx, transfer, land.Status, landmodels.StatusUnderReview),
		}
		return s.record(ctx, evts...)
	})
	if err != nil {
		return nil, domainError(err, "failed to initiate transfer")
	}

	s.logger.InfoContext(ctx, "transfer initiated",
		"transfer_id", transfer.ID.String(),
		"transfer_number", transfer.TransferNumber,
		"land_id", transfer.LandID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.applyTransferEvent(ctx, transfer, evts...)
	return transfer, nil
}

// decide loads an open transfer inside the caller's transaction, applies the
// decision and writes it back with a status guard. A lost race reports the
// same error as the status gate.
func (s *Service) decide(ctx context.Context, transferID id.TransferID, invalid error, apply func(*models.Transfer) error) (*models.Transfer, error) {
	t, err := s.transfers.FindByID(ctx, transferID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, errTransferNotFound
	}
	if err != nil {
		return nil, err
	}
	if !t.IsOpen() {
		return nil, invalid
	}
	if err := apply(t); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, invalid
		}
		return nil, err
	}
	if err := s.transfers.Transition(ctx, t, models.OpenStatuses...); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, invalid
		}
		return nil, err
	}
	return t, nil
}

func gateError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrInvalidState):
		return errLandNotLocked
	case errors.Is(err, sentinel.ErrNotFound):
		return errLandNotFound
	default:
		return err
	}
}

// Approve approves a transfer and completes it in the same transaction:
// the parcel changes hands and the transfer closes as completed.
func (s *Service) Approve(ctx context.Context, transferID id.TransferID, notes string) (_ *models.Transfer, err error) {
	ctx, done := s.startOp(ctx, "approve", transferAttr(transferID))
	defer done(&err)

	actor := requestcontext.ActorFrom(ctx)
	if !policy.Allowed(actor.Role, policy.OpApproveTransfer) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not authorized to approve transfers")
	}
	invalid := dErrors.New(dErrors.CodeBadRequest, "transfer cannot be approved in current status")
	now := requestcontext.Now(ctx)

	var (
		completed *models.Transfer
		evts      []events.Event
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		t, err := s.decide(ctx, transferID, invalid, func(t *models.Transfer) error {
			return t.ApplyApprove(actor.UserID, notes, now)
		})
		if err != nil {
			return err
		}
		approved := t.Clone()

		if err := s.lands.FinalizeTransfer(ctx, t.LandID, t.CurrentOwnerID, t.NewOwnerID, now); err != nil {
			return gateError(err)
		}
		if err := t.ApplyComplete(now); err != nil {
			return err
		}
		if err := s.transfers.Transition(ctx, t, models.StatusApproved); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return invalid
			}
			return err
		}
		completed = t
		evts = []events.Event{
			transferEvent(ctx, events.TransferApproved, approved),
			transferEvent(ctx, events.TransferCompleted, completed),
			ownershipEvent(ctx, completed),
			landStatusEvent(ctx, completed, landmodels.StatusUnderReview, landmodels.StatusTransferred),
		}
		return s.record(ctx, evts...)
	})
	if err != nil {
		return nil, domainError(err, "failed to approve transfer")
	}

	s.logger.InfoContext(ctx, "transfer approved and completed",
		"transfer_id", completed.ID.String(),
		"land_id", completed.LandID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.applyTransferEvent(ctx, completed, evts...)
	return completed, nil
}

// Reject declines a transfer and releases the parcel.
func (s *Service) Reject(ctx context.Context, transferID id.TransferID, reason string) (_ *models.Transfer, err error) {
	ctx, done := s.startOp(ctx, "reject", transferAttr(transferID))
	defer done(&err)

	actor := requestcontext.ActorFrom(ctx)
	if !policy.Allowed(actor.Role, policy.OpRejectTransfer) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not authorized to reject transfers")
	}
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "rejectionReason is required")
	}
	invalid := dErrors.New(dErrors.CodeBadRequest, "transfer cannot be rejected in current status")
	now := requestcontext.Now(ctx)

	var (
		rejected *models.Transfer
		evts     []events.Event
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		t, err := s.decide(ctx, transferID, invalid, func(t *models.Transfer) error {
			return t.ApplyReject(actor.UserID, reason, now)
		})
		if err != nil {
			return err
		}
		if err := s.lands.RestoreAfterTransfer(ctx, t.LandID, now); err != nil {
			return gateError(err)
		}
		rejected = t
		evts = []events.Event{
			transferEvent(ctx, events.TransferRejected, rejected),
			landStatusEvent(ctx, rejected, landmodels.StatusUnderReview, landmodels.StatusApproved),
		}
		return s.record(ctx, evts...)
	})
	if err != nil {
		return nil, domainError(err, "failed to reject transfer")
	}

	s.logger.InfoContext(ctx, "transfer rejected",
		"transfer_id", rejected.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.applyTransferEvent(ctx, rejected, evts...)
	return rejected, nil
}

// Cancel lets the current owner withdraw an open transfer.
func (s *Service) Cancel(ctx context.Context, transferID id.TransferID) (_ *models.Transfer, err error) {
	ctx, done := s.startOp(ctx, "cancel", transferAttr(transferID))
	defer done(&err)

	actor := requestcontext.ActorFrom(ctx)
	invalid := dErrors.New(dErrors.CodeBadRequest, "transfer cannot be cancelled in current status")
	now := requestcontext.Now(ctx)

	var (
		cancelled *models.Transfer
		evts      []events.Event
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.transfers.FindByID(ctx, transferID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return errTransferNotFound
		}
		if err != nil {
			return err
		}
		if current.CurrentOwnerID != actor.UserID {
			return dErrors.New(dErrors.CodeForbidden, "only current owner can cancel")
		}
		t, err := s.decide(ctx, transferID, invalid, func(t *models.Transfer) error {
			return t.ApplyCancel(now)
		})
		if err != nil {
			return err
		}
		if err := s.lands.RestoreAfterTransfer(ctx, t.LandID, now); err != nil {
			return gateError(err)
		}
		cancelled = t
		evts = []events.Event{transferEvent(ctx, events.TransferCancelled, cancelled)}
		return s.record(ctx, evts...)
	})
	if err != nil {
		return nil, domainError(err, "failed to cancel transfer")
	}

	s.logger.InfoContext(ctx, "transfer cancelled",
		"transfer_id", cancelled.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.applyTransferEvent(ctx, cancelled, evts...)
	return cancelled, nil
}

// Update applies the whitelisted patch to an open transfer.
func (s *Service) Update(ctx context.Context, transferID id.TransferID, patch *models.UpdateRequest) (_ *models.Transfer, err error) {
	ctx, done := s.startOp(ctx, "update", transferAttr(transferID))
	defer done(&err)

	actor := requestcontext.ActorFrom(ctx)
	now := requestcontext.Now(ctx)

	var updated *models.Transfer
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		t, err := s.editable(ctx, transferID, actor, "transfer cannot be updated in current status")
		if err != nil {
			return err
		}
		if patch.Status != nil && !policy.Allowed(actor.Role, policy.OpUpdateTransfer) {
			return dErrors.New(dErrors.CodeForbidden, "only staff may change transfer status")
		}
		if err := checkDocumentRefs(t.ID, patch.Documents); err != nil {
			return err
		}
		from := t.Status
		patch.Apply(t)
		t.UpdatedAt = now
		if err := s.transfers.Transition(ctx, t, from); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeBadRequest, "transfer cannot be updated in current status")
			}
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, domainError(err, "failed to update transfer")
	}

	s.applyTransferEvent(ctx, updated)
	return updated, nil
}

// editable loads a transfer that actor may still change: it must be open and
// actor must be the current owner or staff.
func (s *Service) editable(ctx context.Context, transferID id.TransferID, actor requestcontext.Actor, invalidMsg string) (*models.Transfer, error) {
	t, err := s.transfers.FindByID(ctx, transferID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, errTransferNotFound
	}
	if err != nil {
		return nil, err
	}
	if !t.IsOpen() {
		return nil, dErrors.New(dErrors.CodeBadRequest, invalidMsg)
	}
	if t.CurrentOwnerID != actor.UserID && !policy.Allowed(actor.Role, policy.OpUpdateTransfer) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not authorized to update this transfer")
	}
	return t, nil
}

// Upload describes one document received for a transfer.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AttachDocument stores an uploaded file and records its key on the transfer.
func (s *Service) AttachDocument(ctx context.Context, transferID id.TransferID, upload Upload) (_ *models.Transfer, err error) {
	ctx, done := s.startOp(ctx, "attach_document", transferAttr(transferID))
	defer done(&err)

	if s.documents == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "document storage is not configured")
	}
	actor := requestcontext.ActorFrom(ctx)
	const invalidMsg = "transfer documents cannot be changed in current status"
	if _, err := s.editable(ctx, transferID, actor, invalidMsg); err != nil {
		return nil, domainError(err, "failed to load transfer")
	}

	key := documents.ObjectKey(transferID, upload.Filename)
	if err := s.documents.Upload(ctx, key, upload.Body, upload.Size, upload.ContentType); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store document")
	}

	now := requestcontext.Now(ctx)
	var updated *models.Transfer
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		t, err := s.editable(ctx, transferID, actor, invalidMsg)
		if err != nil {
			return err
		}
		from := t.Status
		t.Documents = pkgstrings.AppendUnique(t.Documents, key)
		t.UpdatedAt = now
		if err := s.transfers.Transition(ctx, t, from); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeBadRequest, invalidMsg)
			}
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		// The object stays in the bucket unreferenced; bucket lifecycle rules reap it.
		return nil, domainError(err, "failed to attach document")
	}

	s.logger.InfoContext(ctx, "transfer document attached",
		"transfer_id", transferID.String(),
		"object_key", key,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.applyTransferEvent(ctx, updated)
	return updated, nil
}
