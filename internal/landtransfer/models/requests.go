package models

import (
	"strings"

	"github.com/shopspring/decimal"

	id "landadmin/pkg/domain"
	dErrors "landadmin/pkg/domain-errors"
	pkgstrings "landadmin/pkg/platform/strings"
)

const (
	maxTransferNumberLength = 64
	maxTextLength           = 2000
)

func validation(msg string) error {
	return dErrors.New(dErrors.CodeValidation, msg)
}

// InitiateRequest is the body of POST /land-transfer.
type InitiateRequest struct {
	TransferNumber string           `json:"transferNumber"`
	LandID         string           `json:"landId"`
	NewOwnerID     string           `json:"newOwnerId"`
	TransferValue  decimal.Decimal  `json:"transferValue"`
	TaxAmount      *decimal.Decimal `json:"taxAmount"`
	Reason         string           `json:"reason"`
	Documents      []string         `json:"documents"`

	landID     id.LandID
	newOwnerID id.UserID
}

func (r *InitiateRequest) Validate() error {
	r.TransferNumber = strings.TrimSpace(r.TransferNumber)
	r.Reason = strings.TrimSpace(r.Reason)
	r.Documents = pkgstrings.DedupeAndTrim(r.Documents)

	if r.TransferNumber == "" || len(r.TransferNumber) > maxTransferNumberLength {
		return validation("transferNumber is required and must be at most 64 characters")
	}
	landID, err := id.ParseLandID(strings.TrimSpace(r.LandID))
	if err != nil {
		return validation("landId must be a valid UUID")
	}
	newOwner, err := id.ParseUserID(strings.TrimSpace(r.NewOwnerID))
	if err != nil {
		return validation("newOwnerId must be a valid UUID")
	}
	if !r.TransferValue.IsPositive() {
		return validation("transferValue must be greater than zero")
	}
	if r.TaxAmount != nil && r.TaxAmount.IsNegative() {
		return validation("taxAmount must not be negative")
	}
	if len(r.Reason) > maxTextLength {
		return validation("reason is too long")
	}
	r.landID, r.newOwnerID = landID, newOwner
	return nil
}

func (r *InitiateRequest) ParsedLandID() id.LandID     { return r.landID }
func (r *InitiateRequest) ParsedNewOwnerID() id.UserID { return r.newOwnerID }

// Tax returns the supplied tax or the default for the declared value.
func (r *InitiateRequest) Tax() decimal.Decimal {
	if r.TaxAmount != nil {
		return r.TaxAmount.Round(2)
	}
	return DefaultTax(r.TransferValue)
}

// UpdateRequest is the closed patch accepted by PATCH /land-transfer/{id}.
// It is decoded with unknown fields disallowed.
type UpdateRequest struct {
	TransferValue *decimal.Decimal `json:"transferValue"`
	TaxAmount     *decimal.Decimal `json:"taxAmount"`
	Reason        *string          `json:"reason"`
	Documents     []string         `json:"documents"`
	Status        *Status          `json:"status"`
}

func (r *UpdateRequest) Validate() error {
	if r.TransferValue == nil && r.TaxAmount == nil && r.Reason == nil && r.Documents == nil && r.Status == nil {
		return validation("no updatable fields supplied")
	}
	if r.TransferValue != nil && !r.TransferValue.IsPositive() {
		return validation("transferValue must be greater than zero")
	}
	if r.TaxAmount != nil && r.TaxAmount.IsNegative() {
		return validation("taxAmount must not be negative")
	}
	if r.Reason != nil {
		trimmed := strings.TrimSpace(*r.Reason)
		if len(trimmed) > maxTextLength {
			return validation("reason is too long")
		}
		r.Reason = &trimmed
	}
	if r.Documents != nil {
		r.Documents = pkgstrings.DedupeAndTrim(r.Documents)
		if r.Documents == nil {
			r.Documents = []string{}
		}
	}
	if r.Status != nil {
		s := Status(strings.ToLower(strings.TrimSpace(string(*r.Status))))
		if s != StatusPendingApproval {
			return validation("status may only be set to pending_approval")
		}
		r.Status = &s
	}
	return nil
}

// Apply writes the patch onto t and recomputes derived fields.
func (r *UpdateRequest) Apply(t *Transfer) {
	if r.TransferValue != nil {
		t.TransferValue = *r.TransferValue
		if r.TaxAmount == nil {
			t.TaxAmount = DefaultTax(t.TransferValue)
		}
	}
	if r.TaxAmount != nil {
		t.TaxAmount = r.TaxAmount.Round(2)
	}
	if r.Reason != nil {
		t.Reason = *r.Reason
	}
	if r.Documents != nil {
		t.Documents = r.Documents
	}
	if r.Status != nil {
		t.Status = *r.Status
	}
}

// ApproveRequest is the body of POST /land-transfer/{id}/approve.
type ApproveRequest struct {
	ApprovalNotes string `json:"approvalNotes"`
}

func (r *ApproveRequest) Validate() error {
	r.ApprovalNotes = strings.TrimSpace(r.ApprovalNotes)
	if r.ApprovalNotes == "" {
		return validation("approvalNotes is required")
	}
	if len(r.ApprovalNotes) > maxTextLength {
		return validation("approvalNotes is too long")
	}
	return nil
}

// RejectRequest is the body of POST /land-transfer/{id}/reject.
type RejectRequest struct {
	RejectionReason string `json:"rejectionReason"`
}

func (r *RejectRequest) Validate() error {
	r.RejectionReason = strings.TrimSpace(r.RejectionReason)
	if r.RejectionReason == "" {
		return validation("rejectionReason is required")
	}
	if len(r.RejectionReason) > maxTextLength {
		return validation("rejectionReason is too long")
	}
	return nil
}

// ListFilter narrows GET /land-transfer.
type ListFilter struct {
	Status   Status `json:"status,omitempty"`
	District string `json:"district,omitempty"`
	Page     int    `json:"page"`
	Limit    int    `json:"limit"`
}

// ListResult is a page of transfers.
type ListResult struct {
	Data  []*Transfer `json:"data"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// DocumentLink is a presigned download for one stored document.
type DocumentLink struct {
	Key string `json:"key"`
	URL string `json:"url,omitempty"`
}
