//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	identitymodels "landadmin/internal/identity/models"
	identitystore "landadmin/internal/identity/store"
	"landadmin/internal/landrecord/models"
	"landadmin/internal/policy"
	id "landadmin/pkg/domain"
	"landadmin/pkg/platform/sentinel"
	"landadmin/pkg/testutil/containers"
)

type PostgresLandStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresLandStore
	owner id.UserID
	now   time.Time
}

func TestPostgresLandStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	suite.Run(t, new(PostgresLandStoreSuite))
}

func (s *PostgresLandStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgres(s.pg.DB)
}

func (s *PostgresLandStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.pg.TruncateTables(ctx, "outbox", "land_transfers", "land_records", "users"))
	s.now = time.Now().UTC().Truncate(time.Microsecond)
	s.owner = s.createUser()
}

func (s *PostgresLandStoreSuite) createUser() id.UserID {
	user := &identitymodels.User{
		ID:        id.NewUserID(),
		Email:     id.NewUserID().String() + "@example.rw",
		FirstName: "Aline",
		LastName:  "Uwase",
		Role:      identitymodels.RoleCitizen,
		District:  "Gasabo",
		IsActive:  true,
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	s.Require().NoError(identitystore.NewPostgres(s.pg.DB).Create(context.Background(), user))
	return user.ID
}

func (s *PostgresLandStoreSuite) seed(parcel string, status models.Status) *models.LandRecord {
	value := decimal.RequireFromString("15000000.50")
	land := &models.LandRecord{
		ID:           id.NewLandID(),
		ParcelNumber: parcel,
		UPINumber:    "UPI-" + parcel,
		Area:         decimal.RequireFromString("420.75"),
		District:     "Gasabo",
		Sector:       "Kacyiru",
		Cell:         "Kamatamu",
		Village:      "Urugwiro",
		LandUseType:  models.LandUseCommercial,
		Status:       status,
		MarketValue:  &value,
		Documents:    []string{"deed.pdf"},
		OwnerID:      s.owner,
		RegisteredBy: s.owner,
		CreatedAt:    s.now,
		UpdatedAt:    s.now,
	}
	s.Require().NoError(s.store.Create(context.Background(), land))
	return land
}

func (s *PostgresLandStoreSuite) TestRoundTripAndDuplicates() {
	ctx := context.Background()
	land := s.seed("GS-001", models.StatusPending)

	got, err := s.store.FindByID(ctx, land.ID)
	s.Require().NoError(err)
	s.True(land.Area.Equal(got.Area))
	s.Require().NotNil(got.MarketValue)
	s.True(land.MarketValue.Equal(*got.MarketValue))
	s.Nil(got.GovernmentValue)
	s.Equal([]string{"deed.pdf"}, got.Documents)
	s.Equal(s.owner, got.OwnerID)

	dup := land.Clone()
	dup.ID = id.NewLandID()
	dup.UPINumber = "UPI-other"
	s.ErrorIs(s.store.Create(ctx, dup), ErrDuplicateParcel)

	dup.ParcelNumber = "GS-002"
	dup.UPINumber = land.UPINumber
	s.ErrorIs(s.store.Create(ctx, dup), ErrDuplicateUPI)

	_, err = s.store.FindByID(ctx, id.NewLandID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresLandStoreSuite) TestGateTransitions() {
	ctx := context.Background()
	land := s.seed("GS-010", models.StatusApproved)

	locked, err := s.store.LockForTransfer(ctx, land.ID, s.now)
	s.Require().NoError(err)
	s.Equal(models.StatusUnderReview, locked.Status)

	_, err = s.store.LockForTransfer(ctx, land.ID, s.now)
	s.ErrorIs(err, sentinel.ErrInvalidState)
	_, err = s.store.LockForTransfer(ctx, id.NewLandID(), s.now)
	s.ErrorIs(err, sentinel.ErrNotFound)

	newOwner := s.createUser()
	s.ErrorIs(s.store.FinalizeTransfer(ctx, land.ID, newOwner, newOwner, s.now), sentinel.ErrInvalidState)
	s.Require().NoError(s.store.FinalizeTransfer(ctx, land.ID, s.owner, newOwner, s.now))

	got, err := s.store.FindByID(ctx, land.ID)
	s.Require().NoError(err)
	s.Equal(newOwner, got.OwnerID)
	s.Equal(models.StatusTransferred, got.Status)

	other := s.seed("GS-011", models.StatusActive)
	_, err = s.store.LockForTransfer(ctx, other.ID, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.RestoreAfterTransfer(ctx, other.ID, s.now))
	got, err = s.store.FindByID(ctx, other.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, got.Status)
}

func (s *PostgresLandStoreSuite) TestReviewLeavesTransferLockAlone() {
	ctx := context.Background()
	land := s.seed("GS-015", models.StatusApproved)
	locked, err := s.store.LockForTransfer(ctx, land.ID, s.now)
	s.Require().NoError(err)

	approve := locked.Clone()
	approve.Status = models.StatusApproved
	s.ErrorIs(s.store.Review(ctx, approve), sentinel.ErrInvalidState)

	reject := locked.Clone()
	reject.Status = models.StatusRejected
	reject.RejectionReason = "boundary dispute"
	s.ErrorIs(s.store.Review(ctx, reject), sentinel.ErrInvalidState)

	got, err := s.store.FindByID(ctx, land.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusUnderReview, got.Status)
}

func (s *PostgresLandStoreSuite) TestReviewAndList() {
	ctx := context.Background()
	land := s.seed("GS-020", models.StatusPending)
	s.seed("GS-021", models.StatusPending)

	s.Require().NoError(land.ApplyReject(s.owner, "survey mismatch", s.now))
	s.Require().NoError(s.store.Review(ctx, land))
	s.ErrorIs(s.store.Review(ctx, land), sentinel.ErrInvalidState)

	rejected, total, err := s.store.List(ctx, policy.Scope{Kind: policy.ScopeAll}, models.ListFilter{Status: models.StatusRejected, Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal("survey mismatch", rejected[0].RejectionReason)

	_, total, err = s.store.List(ctx, policy.Scope{Kind: policy.ScopeOwner, UserID: id.NewUserID()}, models.ListFilter{Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Zero(total)

	_, total, err = s.store.List(ctx, policy.Scope{Kind: policy.ScopeDistrict, District: "Gasabo"}, models.ListFilter{Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Equal(2, total)
}
