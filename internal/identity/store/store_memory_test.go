package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"landadmin/internal/identity/models"
	id "landadmin/pkg/domain"
	"landadmin/pkg/platform/sentinel"
)

type InMemoryUserStoreSuite struct {
	suite.Suite
	store *InMemoryUserStore
	ctx   context.Context
}

func TestInMemoryUserStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryUserStoreSuite))
}

func (s *InMemoryUserStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *InMemoryUserStoreSuite) newUser(email string) *models.User {
	now := time.Now()
	return &models.User{
		ID:        id.NewUserID(),
		Email:     email,
		FirstName: "Jean",
		LastName:  "Habimana",
		Role:      models.RoleCitizen,
		District:  "Gasabo",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *InMemoryUserStoreSuite) TestLookup() {
	user := s.newUser("jean@example.rw")
	s.Require().NoError(s.store.Create(s.ctx, user))

	s.Run("by id", func() {
		found, err := s.store.FindByID(s.ctx, user.ID)
		s.Require().NoError(err)
		s.Equal(user, found)
	})

	s.Run("by email is case insensitive", func() {
		found, err := s.store.FindByEmail(s.ctx, "JEAN@example.rw")
		s.Require().NoError(err)
		s.Equal(user.ID, found.ID)
	})

	s.Run("missing user returns ErrNotFound", func() {
		_, err := s.store.FindByID(s.ctx, id.NewUserID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindByEmail(s.ctx, "nobody@example.rw")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("exists and count", func() {
		ok, err := s.store.ExistsActive(s.ctx, user.ID)
		s.Require().NoError(err)
		s.True(ok)
		ok, err = s.store.ExistsActive(s.ctx, id.NewUserID())
		s.Require().NoError(err)
		s.False(ok)
		n, err := s.store.Count(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, n)
	})

	s.Run("inactive users do not count as existing", func() {
		inactive := s.newUser("gone@example.rw")
		inactive.IsActive = false
		s.Require().NoError(s.store.Create(s.ctx, inactive))
		ok, err := s.store.ExistsActive(s.ctx, inactive.ID)
		s.Require().NoError(err)
		s.False(ok)
	})
}

func (s *InMemoryUserStoreSuite) TestCreateRejectsDuplicates() {
	user := s.newUser("dup@example.rw")
	s.Require().NoError(s.store.Create(s.ctx, user))

	s.ErrorIs(s.store.Create(s.ctx, user), sentinel.ErrConflict)
	s.ErrorIs(s.store.Create(s.ctx, s.newUser("DUP@example.rw")), sentinel.ErrConflict)
}

func (s *InMemoryUserStoreSuite) TestReturnsCopies() {
	user := s.newUser("copy@example.rw")
	s.Require().NoError(s.store.Create(s.ctx, user))

	found, err := s.store.FindByID(s.ctx, user.ID)
	s.Require().NoError(err)
	found.Role = models.RoleSuperAdmin

	again, err := s.store.FindByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Equal(models.RoleCitizen, again.Role)
}
