//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"landadmin/pkg/platform/events"
	txcontext "landadmin/pkg/platform/tx"
	"landadmin/pkg/testutil/containers"
)

type OutboxSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Store
}

func TestOutboxSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	suite.Run(t, new(OutboxSuite))
}

func (s *OutboxSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = New(s.pg.DB)
}

func (s *OutboxSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "outbox"))
}

func (s *OutboxSuite) TestWriteFetchMark() {
	ctx := context.Background()
	first := events.New(ctx, events.TransferInitiated, "t-1", map[string]any{"n": 1})
	first.Timestamp = time.Now().Add(-time.Minute)
	second := events.New(ctx, events.LandStatusChanged, "l-1", nil)
	s.Require().NoError(s.store.Write(ctx, first))
	s.Require().NoError(s.store.Write(ctx, second))

	var fetched []Entry
	s.Require().NoError(s.store.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		fetched, err = s.store.FetchUnpublished(ctx, 10)
		return err
	}))
	s.Require().Len(fetched, 2)
	s.Equal("t-1", fetched[0].AggregateID, "oldest first")
	s.Equal("land.status.changed", fetched[1].EventType)

	var decoded events.Event
	s.Require().NoError(json.Unmarshal(fetched[0].Payload, &decoded))
	s.Equal(first.ID, decoded.ID)

	s.Require().NoError(s.store.MarkPublished(ctx, []uuid.UUID{fetched[0].ID}, time.Now()))

	remaining, err := s.store.FetchUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(remaining, 1)
	s.Equal("l-1", remaining[0].AggregateID)
}

func (s *OutboxSuite) TestWriteJoinsCallerTransaction() {
	ctx := context.Background()
	runner := txcontext.NewSQLRunner(s.pg.DB, 0)
	boom := errors.New("transfer write failed")

	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Write(ctx, events.New(ctx, events.TransferInitiated, "t-rolled-back", nil)); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	s.Require().NoError(runner.RunInTx(ctx, func(ctx context.Context) error {
		return s.store.Write(ctx, events.New(ctx, events.TransferInitiated, "t-committed", nil))
	}))

	pending, err := s.store.FetchUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal("t-committed", pending[0].AggregateID)
}
