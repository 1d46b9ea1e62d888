// Package models defines land records and the status gate a transfer passes
// through: lock on initiate, finalize on approve, restore on reject or cancel.
package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "landadmin/pkg/domain"
	dErrors "landadmin/pkg/domain-errors"
)

// Status is the lifecycle state of a parcel.
type Status string

const (
	StatusPending     Status = "pending"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusActive      Status = "active"
	StatusRejected    Status = "rejected"
	StatusTransferred Status = "transferred"
	StatusDisputed    Status = "disputed"
	StatusInactive    Status = "inactive"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusUnderReview, StatusApproved, StatusActive,
		StatusRejected, StatusTransferred, StatusDisputed, StatusInactive:
		return true
	}
	return false
}

// LandUseType classifies the parcel's permitted use.
type LandUseType string

const (
	LandUseResidential  LandUseType = "residential"
	LandUseCommercial   LandUseType = "commercial"
	LandUseAgricultural LandUseType = "agricultural"
	LandUseIndustrial   LandUseType = "industrial"
	LandUseMixedUse     LandUseType = "mixed_use"
	LandUseGovernment   LandUseType = "government"
	LandUseRecreational LandUseType = "recreational"
	LandUseForest       LandUseType = "forest"
	LandUseWetland      LandUseType = "wetland"
)

// IsValid reports whether t is a known land use.
func (t LandUseType) IsValid() bool {
	switch t {
	case LandUseResidential, LandUseCommercial, LandUseAgricultural, LandUseIndustrial,
		LandUseMixedUse, LandUseGovernment, LandUseRecreational, LandUseForest, LandUseWetland:
		return true
	}
	return false
}

// TransferableStatuses are the statuses a parcel must hold to enter a transfer.
var TransferableStatuses = []Status{StatusApproved, StatusActive}

// ReviewableStatuses are the statuses a registration review may start from.
// under_review is left out: it is the transfer lock and only the transfer
// workflow may release it.
var ReviewableStatuses = []Status{StatusPending}

// LandRecord is a registered parcel.
type LandRecord struct {
	ID              id.LandID        `json:"id"`
	ParcelNumber    string           `json:"parcelNumber"`
	UPINumber       string           `json:"upiNumber"`
	Area            decimal.Decimal  `json:"area"`
	District        string           `json:"district"`
	Sector          string           `json:"sector"`
	Cell            string           `json:"cell"`
	Village         string           `json:"village"`
	Description     string           `json:"description,omitempty"`
	LandUseType     LandUseType      `json:"landUseType"`
	Status          Status           `json:"status"`
	MarketValue     *decimal.Decimal `json:"marketValue,omitempty"`
	GovernmentValue *decimal.Decimal `json:"governmentValue,omitempty"`
	Geometry        string           `json:"geometry,omitempty"`
	Documents       []string         `json:"documents"`
	OwnerID         id.UserID        `json:"ownerId"`
	RegisteredBy    id.UserID        `json:"registeredBy"`
	ApprovedBy      *id.UserID       `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time       `json:"approvedAt,omitempty"`
	RejectionReason string           `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

func statusIn(s Status, set []Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

// IsTransferable reports whether a transfer may be initiated on the parcel.
func (l *LandRecord) IsTransferable() bool {
	return statusIn(l.Status, TransferableStatuses)
}

// CanLock reports whether the parcel can be placed under review for a transfer.
func (l *LandRecord) CanLock() bool {
	return l.IsTransferable()
}

// ApplyLock moves the parcel to under_review.
func (l *LandRecord) ApplyLock(now time.Time) error {
	if !l.CanLock() {
		return dErrors.New(dErrors.CodeInvariantViolation, "land must be approved/active")
	}
	l.Status = StatusUnderReview
	l.UpdatedAt = now
	return nil
}

// ApplyFinalize hands the parcel to newOwner and marks it transferred.
func (l *LandRecord) ApplyFinalize(newOwner id.UserID, now time.Time) error {
	if l.Status != StatusUnderReview {
		return dErrors.New(dErrors.CodeInvariantViolation, "land is not locked for transfer")
	}
	l.OwnerID = newOwner
	l.Status = StatusTransferred
	l.UpdatedAt = now
	return nil
}

// ApplyRestore releases a transfer lock, returning the parcel to approved.
func (l *LandRecord) ApplyRestore(now time.Time) error {
	if l.Status != StatusUnderReview {
		return dErrors.New(dErrors.CodeInvariantViolation, "land is not locked for transfer")
	}
	l.Status = StatusApproved
	l.UpdatedAt = now
	return nil
}

// CanReview reports whether the registration can be approved or rejected.
func (l *LandRecord) CanReview() bool {
	return statusIn(l.Status, ReviewableStatuses)
}

// ApplyApprove approves the registration.
func (l *LandRecord) ApplyApprove(reviewer id.UserID, now time.Time) error {
	if !l.CanReview() {
		return dErrors.New(dErrors.CodeInvariantViolation, "land cannot be approved in current status")
	}
	l.Status = StatusApproved
	l.ApprovedBy = &reviewer
	l.ApprovedAt = &now
	l.UpdatedAt = now
	return nil
}

// ApplyReject rejects the registration with reason.
func (l *LandRecord) ApplyReject(reviewer id.UserID, reason string, now time.Time) error {
	if !l.CanReview() {
		return dErrors.New(dErrors.CodeInvariantViolation, "land cannot be rejected in current status")
	}
	l.Status = StatusRejected
	l.RejectionReason = reason
	l.ApprovedBy = &reviewer
	l.ApprovedAt = &now
	l.UpdatedAt = now
	return nil
}

// Clone returns a deep copy safe to hand out of a store.
func (l *LandRecord) Clone() *LandRecord {
	cp := *l
	cp.Documents = append([]string(nil), l.Documents...)
	if l.ApprovedBy != nil {
		v := *l.ApprovedBy
		cp.ApprovedBy = &v
	}
	if l.ApprovedAt != nil {
		v := *l.ApprovedAt
		cp.ApprovedAt = &v
	}
	if l.MarketValue != nil {
		v := *l.MarketValue
		cp.MarketValue = &v
	}
	if l.GovernmentValue != nil {
		v := *l.GovernmentValue
		cp.GovernmentValue = &v
	}
	return &cp
}
