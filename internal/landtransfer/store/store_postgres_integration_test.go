//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	identitymodels "landadmin/internal/identity/models"
	identitystore "landadmin/internal/identity/store"
	landmodels "landadmin/internal/landrecord/models"
	landstore "landadmin/internal/landrecord/store"
	"landadmin/internal/landtransfer/models"
	"landadmin/internal/policy"
	id "landadmin/pkg/domain"
	"landadmin/pkg/platform/sentinel"
	txcontext "landadmin/pkg/platform/tx"
	"landadmin/pkg/testutil/containers"
)

type PostgresTransferStoreSuite struct {
	suite.Suite
	pg     *containers.PostgresContainer
	store  *PostgresTransferStore
	lands  *landstore.PostgresLandStore
	seller id.UserID
	buyer  id.UserID
	land   *landmodels.LandRecord
	now    time.Time
}

func TestPostgresTransferStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	suite.Run(t, new(PostgresTransferStoreSuite))
}

func (s *PostgresTransferStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgres(s.pg.DB)
	s.lands = landstore.NewPostgres(s.pg.DB)
}

func (s *PostgresTransferStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.pg.TruncateTables(ctx, "outbox", "land_transfers", "land_records", "users"))
	s.now = time.Now().UTC().Truncate(time.Microsecond)
	s.seller = s.createUser("Gasabo")
	s.buyer = s.createUser("Kicukiro")
	s.land = s.createLand("GS-100")
}

func (s *PostgresTransferStoreSuite) createUser(district string) id.UserID {
	user := &identitymodels.User{
		ID:        id.NewUserID(),
		Email:     id.NewUserID().String() + "@example.rw",
		FirstName: "Jean",
		LastName:  "Habimana",
		Role:      identitymodels.RoleCitizen,
		District:  district,
		IsActive:  true,
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	s.Require().NoError(identitystore.NewPostgres(s.pg.DB).Create(context.Background(), user))
	return user.ID
}

func (s *PostgresTransferStoreSuite) createLand(parcel string) *landmodels.LandRecord {
	land := &landmodels.LandRecord{
		ID:           id.NewLandID(),
		ParcelNumber: parcel,
		UPINumber:    "UPI-" + parcel,
		Area:         decimal.NewFromInt(600),
		District:     "Gasabo",
		Sector:       "Remera",
		Cell:         "Rukiri",
		Village:      "Amahoro",
		LandUseType:  landmodels.LandUseResidential,
		Status:       landmodels.StatusApproved,
		Documents:    []string{},
		OwnerID:      s.seller,
		RegisteredBy: s.seller,
		CreatedAt:    s.now,
		UpdatedAt:    s.now,
	}
	s.Require().NoError(s.lands.Create(context.Background(), land))
	return land
}

func (s *PostgresTransferStoreSuite) newTransfer(number string) *models.Transfer {
	value := decimal.RequireFromString("1000000.00")
	t := &models.Transfer{
		ID:             id.NewTransferID(),
		TransferNumber: number,
		LandID:         s.land.ID,
		District:       s.land.District,
		CurrentOwnerID: s.seller,
		NewOwnerID:     s.buyer,
		TransferValue:  value,
		TaxAmount:      models.DefaultTax(value),
		Reason:         "sale",
		Documents:      []string{"agreement.pdf"},
		Status:         models.StatusInitiated,
		InitiatedBy:    s.seller,
		CreatedAt:      s.now,
		UpdatedAt:      s.now,
	}
	s.now = s.now.Add(time.Second)
	return t
}

func (s *PostgresTransferStoreSuite) TestRoundTripAndDuplicateNumber() {
	ctx := context.Background()
	t := s.newTransfer("TRF-100")
	s.Require().NoError(s.store.Create(ctx, t))

	got, err := s.store.FindByID(ctx, t.ID)
	s.Require().NoError(err)
	s.Equal(t.TransferNumber, got.TransferNumber)
	s.True(t.TransferValue.Equal(got.TransferValue))
	s.True(decimal.NewFromInt(50000).Equal(got.TaxAmount))
	s.Equal([]string{"agreement.pdf"}, got.Documents)
	s.Nil(got.ApprovedBy)
	s.Nil(got.CompletedAt)

	dup := s.newTransfer("TRF-100")
	s.ErrorIs(s.store.Create(ctx, dup), ErrDuplicateNumber)

	exists, err := s.store.ExistsByNumber(ctx, "TRF-100")
	s.Require().NoError(err)
	s.True(exists)

	_, err = s.store.FindByID(ctx, id.NewTransferID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresTransferStoreSuite) TestTransitionGuardsOnStatus() {
	ctx := context.Background()
	t := s.newTransfer("TRF-200")
	s.Require().NoError(s.store.Create(ctx, t))

	approved := t.Clone()
	s.Require().NoError(approved.ApplyApprove(s.buyer, "verified", s.now))
	s.Require().NoError(s.store.Transition(ctx, approved, models.OpenStatuses...))

	completed := approved.Clone()
	s.Require().NoError(completed.ApplyComplete(s.now))
	s.Require().NoError(s.store.Transition(ctx, completed, models.StatusApproved))

	stale := t.Clone()
	s.Require().NoError(stale.ApplyCancel(s.now))
	s.ErrorIs(s.store.Transition(ctx, stale, models.OpenStatuses...), sentinel.ErrInvalidState)

	got, err := s.store.FindByID(ctx, t.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, got.Status)
	s.Equal("verified", got.ApprovalNotes)
	s.Require().NotNil(got.ApprovedBy)
	s.Equal(s.buyer, *got.ApprovedBy)
	s.NotNil(got.CompletedAt)

	missing := t.Clone()
	missing.ID = id.NewTransferID()
	s.ErrorIs(s.store.Transition(ctx, missing, models.OpenStatuses...), sentinel.ErrNotFound)
}

func (s *PostgresTransferStoreSuite) TestSelfTransferViolatesConstraint() {
	t := s.newTransfer("TRF-300")
	t.NewOwnerID = s.seller
	err := s.store.Create(context.Background(), t)
	s.Error(err)
	s.NotErrorIs(err, ErrDuplicateNumber)
}

func (s *PostgresTransferStoreSuite) TestInitiateRollsBackAsAUnit() {
	ctx := context.Background()
	runner := txcontext.NewSQLRunner(s.pg.DB, 5*time.Second)
	boom := errors.New("lock lost")

	t := s.newTransfer("TRF-400")
	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, t); err != nil {
			return err
		}
		if _, err := s.lands.LockForTransfer(ctx, s.land.ID, s.now); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	exists, err := s.store.ExistsByNumber(ctx, "TRF-400")
	s.Require().NoError(err)
	s.False(exists)
	land, err := s.lands.FindByID(ctx, s.land.ID)
	s.Require().NoError(err)
	s.Equal(landmodels.StatusApproved, land.Status)
}

func (s *PostgresTransferStoreSuite) TestQueriesAndCounts() {
	ctx := context.Background()
	first := s.newTransfer("TRF-500")
	first.Status = models.StatusCancelled
	s.Require().NoError(s.store.Create(ctx, first))
	second := s.newTransfer("TRF-501")
	s.Require().NoError(s.store.Create(ctx, second))

	byLand, err := s.store.FindByLand(ctx, s.land.ID)
	s.Require().NoError(err)
	s.Require().Len(byLand, 2)
	s.Equal(second.ID, byLand[0].ID)

	history, err := s.store.History(ctx, s.land.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(first.ID, history[0].ID)

	byUser, err := s.store.FindByUser(ctx, s.buyer)
	s.Require().NoError(err)
	s.Len(byUser, 2)

	recent, err := s.store.Recent(ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(recent, 1)
	s.Equal(second.ID, recent[0].ID)

	page, total, err := s.store.List(ctx, policy.Scope{Kind: policy.ScopeOwner, UserID: s.buyer},
		models.ListFilter{Status: models.StatusInitiated, Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal(second.ID, page[0].ID)

	_, total, err = s.store.List(ctx, policy.Scope{Kind: policy.ScopeDistrict, District: "Musanze"}, models.ListFilter{Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Zero(total)

	n, err := s.store.Count(ctx, policy.Scope{Kind: policy.ScopeAll}, models.PendingStatuses...)
	s.Require().NoError(err)
	s.Equal(1, n)
	n, err = s.store.Count(ctx, policy.Scope{Kind: policy.ScopeDistrict, District: "Gasabo"})
	s.Require().NoError(err)
	s.Equal(2, n)
}
