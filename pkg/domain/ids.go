package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "landadmin/pkg/domain-errors"
)

// Typed identifiers. Each wraps a UUID so a LandID can never be passed where a
// UserID is expected. Construct them with the Parse functions at trust
// boundaries; direct conversion from uuid.UUID is reserved for stores and tests.
type (
	UserID     uuid.UUID
	LandID     uuid.UUID
	TransferID uuid.UUID
)

const maxIDLength = 36

func parseUUID(kind, s string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	return u, nil
}

// ParseUserID parses and validates a user identifier.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user id", s)
	return UserID(u), err
}

// ParseLandID parses and validates a land record identifier.
func ParseLandID(s string) (LandID, error) {
	u, err := parseUUID("land id", s)
	return LandID(u), err
}

// ParseTransferID parses and validates a transfer identifier.
func ParseTransferID(s string) (TransferID, error) {
	u, err := parseUUID("transfer id", s)
	return TransferID(u), err
}

func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id LandID) String() string     { return uuid.UUID(id).String() }
func (id TransferID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id LandID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id TransferID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id UserID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id LandID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id TransferID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *LandID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *TransferID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

// NewUserID, NewLandID and NewTransferID mint random identifiers.
func NewUserID() UserID         { return UserID(uuid.New()) }
func NewLandID() LandID         { return LandID(uuid.New()) }
func NewTransferID() TransferID { return TransferID(uuid.New()) }
