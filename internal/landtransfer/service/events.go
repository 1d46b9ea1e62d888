package service

import (
	"context"
	"fmt"

	landmodels "landadmin/internal/landrecord/models"
	"landadmin/internal/landtransfer/cache"
	"landadmin/internal/landtransfer/models"
	"landadmin/pkg/platform/events"
)

// record writes evts to the outbox. It runs inside the write transaction so
// the rows commit or roll back with the transfer.
func (s *Service) record(ctx context.Context, evts ...events.Event) error {
	if s.outbox == nil {
		return nil
	}
	for _, evt := range evts {
		if err := s.outbox.Write(ctx, evt); err != nil {
			return fmt.Errorf("record %s: %w", evt.Type, err)
		}
	}
	return nil
}

// applyTransferEvent is the single post-commit hook: it publishes evts, unless
// they already went to the outbox, and drops every cache entry the change to
// t made stale.
func (s *Service) applyTransferEvent(ctx context.Context, t *models.Transfer, evts ...events.Event) {
	if s.publisher != nil && s.outbox == nil {
		for _, evt := range evts {
			s.publisher.Publish(ctx, evt)
		}
	}
	s.cache.Invalidate(ctx, cache.InvalidationSet(t))
}

func transferEvent(ctx context.Context, typ events.Type, t *models.Transfer) events.Event {
	payload := map[string]any{
		"transferId":     t.ID.String(),
		"transferNumber": t.TransferNumber,
		"landId":         t.LandID.String(),
		"district":       t.District,
		"currentOwnerId": t.CurrentOwnerID.String(),
		"newOwnerId":     t.NewOwnerID.String(),
		"transferValue":  t.TransferValue.StringFixed(2),
		"taxAmount":      t.TaxAmount.StringFixed(2),
		"status":         string(t.Status),
	}
	switch typ {
	case events.TransferApproved:
		payload["approvalNotes"] = t.ApprovalNotes
	case events.TransferRejected:
		payload["rejectionReason"] = t.RejectionReason
	}
	return events.New(ctx, typ, t.ID.String(), payload)
}

func landStatusEvent(ctx context.Context, t *models.Transfer, from, to landmodels.Status) events.Event {
	return events.New(ctx, events.LandStatusChanged, t.LandID.String(), map[string]any{
		"landId":         t.LandID.String(),
		"transferId":     t.ID.String(),
		"district":       t.District,
		"previousStatus": string(from),
		"newStatus":      string(to),
	})
}

func ownershipEvent(ctx context.Context, t *models.Transfer) events.Event {
	return events.New(ctx, events.LandOwnershipTransferred, t.LandID.String(), map[string]any{
		"landId":          t.LandID.String(),
		"transferId":      t.ID.String(),
		"previousOwnerId": t.CurrentOwnerID.String(),
		"newOwnerId":      t.NewOwnerID.String(),
	})
}
