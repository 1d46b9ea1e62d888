// Package policy is the single capability table for transfer and land record
// operations, plus the visibility rule every read applies.
package policy

import (
	"landadmin/internal/identity/models"
	id "landadmin/pkg/domain"
	"landadmin/pkg/requestcontext"
)

// Operation names an action gated by role.
type Operation string

const (
	OpInitiateTransfer Operation = "transfer.initiate"
	OpApproveTransfer  Operation = "transfer.approve"
	OpRejectTransfer   Operation = "transfer.reject"
	OpUpdateTransfer   Operation = "transfer.update"
	OpViewByUser       Operation = "transfer.view_by_user"
	OpCacheHealth      Operation = "transfer.cache_health"
	OpCachePreload     Operation = "transfer.cache_preload"
	OpReviewLand       Operation = "land.review"
	OpRegisterForOwner Operation = "land.register_for_owner"
)

var staff = []models.Role{models.RoleLandOfficer, models.RoleDistrictAdmin, models.RoleRegistrar}

// capabilities lists the roles that may perform each operation regardless of
// ownership. Owner rules (initiate, update, cancel) are checked by callers
// on top of this table.
var capabilities = map[Operation][]models.Role{
	OpInitiateTransfer: staff,
	OpApproveTransfer:  staff,
	OpRejectTransfer:   staff,
	OpUpdateTransfer:   staff,
	OpViewByUser:       append(append([]models.Role{}, staff...), models.RoleSuperAdmin),
	OpCacheHealth:      {models.RoleSystemAdmin, models.RoleDistrictAdmin},
	OpCachePreload:     {models.RoleSystemAdmin},
	OpReviewLand:       staff,
	OpRegisterForOwner: staff,
}

// Allowed reports whether role may perform op.
func Allowed(role string, op Operation) bool {
	for _, r := range capabilities[op] {
		if string(r) == role {
			return true
		}
	}
	return false
}

// IsStaff reports whether role is one of the transfer-processing roles.
func IsStaff(role string) bool {
	for _, r := range staff {
		if string(r) == role {
			return true
		}
	}
	return false
}

// ScopeKind selects how reads are narrowed for an actor.
type ScopeKind int

const (
	ScopeAll ScopeKind = iota
	ScopeOwner
	ScopeDistrict
)

// Scope is the visibility filter derived from an actor.
type Scope struct {
	Kind     ScopeKind
	UserID   id.UserID
	District string
}

// ScopeFor returns the read scope for actor: citizens see records they are a
// party to, land officers see their own district, everyone else sees all.
func ScopeFor(actor requestcontext.Actor) Scope {
	switch models.Role(actor.Role) {
	case models.RoleCitizen:
		return Scope{Kind: ScopeOwner, UserID: actor.UserID}
	case models.RoleLandOfficer:
		return Scope{Kind: ScopeDistrict, District: actor.District}
	default:
		return Scope{Kind: ScopeAll}
	}
}

// Key is a stable cache key fragment for the scope.
func (s Scope) Key() string {
	switch s.Kind {
	case ScopeOwner:
		return "user:" + s.UserID.String()
	case ScopeDistrict:
		return "district:" + s.District
	default:
		return "all"
	}
}

// Permits reports whether a record with the given parties and district is
// visible under s.
func (s Scope) Permits(district string, parties ...id.UserID) bool {
	switch s.Kind {
	case ScopeOwner:
		for _, p := range parties {
			if p == s.UserID {
				return true
			}
		}
		return false
	case ScopeDistrict:
		return district == s.District
	default:
		return true
	}
}
