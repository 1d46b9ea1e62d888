package models

import (
	"strings"

	"github.com/shopspring/decimal"

	id "landadmin/pkg/domain"
	dErrors "landadmin/pkg/domain-errors"
	pkgstrings "landadmin/pkg/platform/strings"
)

const maxIdentifierLength = 64

// RegisterRequest is the body of POST /land-records.
type RegisterRequest struct {
	ParcelNumber    string           `json:"parcelNumber"`
	UPINumber       string           `json:"upiNumber"`
	Area            decimal.Decimal  `json:"area"`
	District        string           `json:"district"`
	Sector          string           `json:"sector"`
	Cell            string           `json:"cell"`
	Village         string           `json:"village"`
	Description     string           `json:"description"`
	LandUseType     LandUseType      `json:"landUseType"`
	MarketValue     *decimal.Decimal `json:"marketValue"`
	GovernmentValue *decimal.Decimal `json:"governmentValue"`
	Geometry        string           `json:"geometry"`
	Documents       []string         `json:"documents"`
	OwnerID         string           `json:"ownerId"`

	owner id.UserID
}

// Validate trims and checks the registration fields.
func (r *RegisterRequest) Validate() error {
	r.ParcelNumber = strings.TrimSpace(r.ParcelNumber)
	r.UPINumber = strings.TrimSpace(r.UPINumber)
	r.District = strings.TrimSpace(r.District)
	r.Sector = strings.TrimSpace(r.Sector)
	r.Cell = strings.TrimSpace(r.Cell)
	r.Village = strings.TrimSpace(r.Village)
	r.LandUseType = LandUseType(strings.ToLower(strings.TrimSpace(string(r.LandUseType))))
	r.Documents = pkgstrings.DedupeAndTrim(r.Documents)

	switch {
	case r.ParcelNumber == "" || len(r.ParcelNumber) > maxIdentifierLength:
		return dErrors.New(dErrors.CodeValidation, "parcelNumber is required and must be at most 64 characters")
	case r.UPINumber == "" || len(r.UPINumber) > maxIdentifierLength:
		return dErrors.New(dErrors.CodeValidation, "upiNumber is required and must be at most 64 characters")
	case !r.Area.IsPositive():
		return dErrors.New(dErrors.CodeValidation, "area must be greater than zero")
	case r.District == "" || r.Sector == "" || r.Cell == "" || r.Village == "":
		return dErrors.New(dErrors.CodeValidation, "district, sector, cell and village are required")
	case !r.LandUseType.IsValid():
		return dErrors.New(dErrors.CodeValidation, "invalid landUseType")
	case r.MarketValue != nil && r.MarketValue.IsNegative():
		return dErrors.New(dErrors.CodeValidation, "marketValue must not be negative")
	case r.GovernmentValue != nil && r.GovernmentValue.IsNegative():
		return dErrors.New(dErrors.CodeValidation, "governmentValue must not be negative")
	}
	if r.OwnerID != "" {
		owner, err := id.ParseUserID(r.OwnerID)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "ownerId must be a valid UUID")
		}
		r.owner = owner
	}
	return nil
}

// Owner returns the parsed ownerId, or the nil id when none was given.
func (r *RegisterRequest) Owner() id.UserID {
	return r.owner
}

// RejectRequest is the body of POST /land-records/{id}/reject.
type RejectRequest struct {
	RejectionReason string `json:"rejectionReason"`
}

func (r *RejectRequest) Validate() error {
	r.RejectionReason = strings.TrimSpace(r.RejectionReason)
	if r.RejectionReason == "" {
		return dErrors.New(dErrors.CodeValidation, "rejectionReason is required")
	}
	return nil
}

// ListFilter narrows GET /land-records.
type ListFilter struct {
	Status   Status
	District string
	Page     int
	Limit    int
}

// ListResult is a page of land records.
type ListResult struct {
	Data  []*LandRecord `json:"data"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}
