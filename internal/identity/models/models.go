// Package models holds the user identity types shared by the transfer and
// land record services.
package models

import (
	"strings"
	"time"

	id "landadmin/pkg/domain"
	dErrors "landadmin/pkg/domain-errors"
)

// Role is the closed set of roles a user can hold.
type Role string

const (
	RoleCitizen       Role = "citizen"
	RoleLandOfficer   Role = "land_officer"
	RoleDistrictAdmin Role = "district_admin"
	RoleRegistrar     Role = "registrar"
	RoleTaxOfficer    Role = "tax_officer"
	RoleUrbanPlanner  Role = "urban_planner"
	RoleSystemAdmin   Role = "system_admin"
	RoleSuperAdmin    Role = "super_admin"
)

var validRoles = map[Role]struct{}{
	RoleCitizen:       {},
	RoleLandOfficer:   {},
	RoleDistrictAdmin: {},
	RoleRegistrar:     {},
	RoleTaxOfficer:    {},
	RoleUrbanPlanner:  {},
	RoleSystemAdmin:   {},
	RoleSuperAdmin:    {},
}

// ParseRole normalizes s and rejects anything outside the closed set.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := validRoles[r]; !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	_, ok := validRoles[r]
	return ok
}

func (r Role) String() string { return string(r) }

// User is a registered person or staff member.
type User struct {
	ID         id.UserID `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	NationalID string    `json:"nationalId,omitempty"`
	Role       Role      `json:"role"`
	District   string    `json:"district,omitempty"`
	Sector     string    `json:"sector,omitempty"`
	Cell       string    `json:"cell,omitempty"`
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
