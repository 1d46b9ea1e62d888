// Package models holds the land transfer aggregate and its state machine.
package models

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	id "landadmin/pkg/domain"
	dErrors "landadmin/pkg/domain-errors"
)

// Status is the lifecycle state of a transfer.
type Status string

const (
	StatusInitiated       Status = "initiated"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusInitiated, StatusPendingApproval, StatusApproved,
		StatusRejected, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// OpenStatuses are the states from which a transfer may still be approved,
// rejected, cancelled or edited.
var OpenStatuses = []Status{StatusInitiated, StatusPendingApproval}

// PendingStatuses are counted as "pending" in statistics.
var PendingStatuses = OpenStatuses

// TaxRate is the default transfer tax applied to the declared value.
var TaxRate = decimal.RequireFromString("0.05")

// DefaultTax returns value × TaxRate rounded to two decimals.
func DefaultTax(value decimal.Decimal) decimal.Decimal {
	return value.Mul(TaxRate).Round(2)
}

// Transfer is a request to move a parcel from its current owner to a new owner.
type Transfer struct {
	ID              id.TransferID   `json:"id"`
	TransferNumber  string          `json:"transferNumber"`
	LandID          id.LandID       `json:"landId"`
	District        string          `json:"district"`
	CurrentOwnerID  id.UserID       `json:"currentOwnerId"`
	NewOwnerID      id.UserID       `json:"newOwnerId"`
	TransferValue   decimal.Decimal `json:"transferValue"`
	TaxAmount       decimal.Decimal `json:"taxAmount"`
	Reason          string          `json:"reason,omitempty"`
	Documents       []string        `json:"documents"`
	Status          Status          `json:"status"`
	InitiatedBy     id.UserID       `json:"initiatedBy"`
	ApprovedBy      *id.UserID      `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time      `json:"approvedAt,omitempty"`
	ApprovalNotes   string          `json:"approvalNotes,omitempty"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	CompletedAt     *time.Time      `json:"completedAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// IsOpen reports whether the transfer still awaits a decision.
func (t *Transfer) IsOpen() bool {
	return slices.Contains(OpenStatuses, t.Status)
}

// InvolvesUser reports whether userID is a party to the transfer.
func (t *Transfer) InvolvesUser(userID id.UserID) bool {
	return t.CurrentOwnerID == userID || t.NewOwnerID == userID
}

func invariant(msg string) error {
	return dErrors.New(dErrors.CodeInvariantViolation, msg)
}

// ApplyApprove records the approval decision.
func (t *Transfer) ApplyApprove(approver id.UserID, notes string, now time.Time) error {
	if !t.IsOpen() {
		return invariant("transfer cannot be approved in current status")
	}
	t.Status = StatusApproved
	t.ApprovedBy = &approver
	t.ApprovedAt = &now
	t.ApprovalNotes = notes
	t.UpdatedAt = now
	return nil
}

// ApplyComplete closes an approved transfer.
func (t *Transfer) ApplyComplete(now time.Time) error {
	if t.Status != StatusApproved {
		return invariant("transfer cannot be completed in current status")
	}
	t.Status = StatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// ApplyReject records the rejection decision. The reviewer is kept in
// ApprovedBy/ApprovedAt as the decision maker.
func (t *Transfer) ApplyReject(reviewer id.UserID, reason string, now time.Time) error {
	if !t.IsOpen() {
		return invariant("transfer cannot be rejected in current status")
	}
	if reason == "" {
		return dErrors.New(dErrors.CodeValidation, "rejectionReason is required")
	}
	t.Status = StatusRejected
	t.RejectionReason = reason
	t.ApprovedBy = &reviewer
	t.ApprovedAt = &now
	t.UpdatedAt = now
	return nil
}

// ApplyCancel withdraws an open transfer.
func (t *Transfer) ApplyCancel(now time.Time) error {
	if !t.IsOpen() {
		return invariant("transfer cannot be cancelled in current status")
	}
	t.Status = StatusCancelled
	t.UpdatedAt = now
	return nil
}

// Clone returns a deep copy safe to hand out of a store or cache.
func (t *Transfer) Clone() *Transfer {
	if t == nil {
		return nil
	}
	c := *t
	c.Documents = slices.Clone(t.Documents)
	if t.ApprovedBy != nil {
		v := *t.ApprovedBy
		c.ApprovedBy = &v
	}
	if t.ApprovedAt != nil {
		v := *t.ApprovedAt
		c.ApprovedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}

// Statistics summarises transfers visible to an actor.
type Statistics struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Approved  int `json:"approved"`
	Completed int `json:"completed"`
	Rejected  int `json:"rejected"`
	Cancelled int `json:"cancelled"`
}
