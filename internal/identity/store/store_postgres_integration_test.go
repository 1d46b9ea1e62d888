//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"landadmin/internal/identity/models"
	id "landadmin/pkg/domain"
	"landadmin/pkg/platform/sentinel"
	"landadmin/pkg/testutil/containers"
)

type PostgresUserStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresUserStore
}

func TestPostgresUserStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	suite.Run(t, new(PostgresUserStoreSuite))
}

func (s *PostgresUserStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgres(s.pg.DB)
}

func (s *PostgresUserStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "outbox", "land_transfers", "land_records", "users"))
}

func (s *PostgresUserStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	user := &models.User{
		ID:        id.NewUserID(),
		Email:     "Officer@Gasabo.gov.rw",
		FirstName: "Eric",
		LastName:  "Mugisha",
		Role:      models.RoleLandOfficer,
		District:  "Gasabo",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Require().NoError(s.store.Create(ctx, user))
	s.ErrorIs(s.store.Create(ctx, user), sentinel.ErrConflict)

	found, err := s.store.FindByID(ctx, user.ID)
	s.Require().NoError(err)
	s.Equal(models.RoleLandOfficer, found.Role)
	s.Equal("officer@gasabo.gov.rw", found.Email)
	s.Equal("", found.NationalID)

	byEmail, err := s.store.FindByEmail(ctx, "officer@gasabo.gov.rw")
	s.Require().NoError(err)
	s.Equal(user.ID, byEmail.ID)

	ok, err := s.store.ExistsActive(ctx, user.ID)
	s.Require().NoError(err)
	s.True(ok)

	inactive := *user
	inactive.ID = id.NewUserID()
	inactive.Email = "retired@gasabo.gov.rw"
	inactive.IsActive = false
	s.Require().NoError(s.store.Create(ctx, &inactive))
	ok, err = s.store.ExistsActive(ctx, inactive.ID)
	s.Require().NoError(err)
	s.False(ok)

	_, err = s.store.FindByID(ctx, id.NewUserID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
