package preload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"landadmin/internal/landtransfer/preload/mocks"
	platformredis "landadmin/internal/platform/redis"
)

//go:generate mockgen -source=processor.go -destination=mocks/mocks.go -package=mocks Preloader

type ProcessorSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	preloader *mocks.MockPreloader
	locker    *platformredis.Locker
	processor *Processor
}

func TestProcessorSuite(t *testing.T) {
	suite.Run(t, new(ProcessorSuite))
}

func (s *ProcessorSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.preloader = mocks.NewMockPreloader(s.ctrl)

	mr := miniredis.RunT(s.T())
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s.T().Cleanup(func() { _ = client.Close() })
	s.locker = platformredis.NewLocker(platformredis.Wrap(client))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.processor = NewProcessor(s.preloader, s.locker, logger)
}

func (s *ProcessorSuite) task(limit int) *asynq.Task {
	task, err := NewTask(limit)
	s.Require().NoError(err)
	return task
}

func (s *ProcessorSuite) TestHandlePreload() {
	s.Run("runs the preload with the task limit", func() {
		s.preloader.EXPECT().Preload(gomock.Any(), 25).Return(25, nil)
		s.NoError(s.processor.HandlePreload(context.Background(), s.task(25)))
	})

	s.Run("preload errors are returned for retry", func() {
		boom := errors.New("store unavailable")
		s.preloader.EXPECT().Preload(gomock.Any(), 10).Return(0, boom)
		s.ErrorIs(s.processor.HandlePreload(context.Background(), s.task(10)), boom)
	})

	s.Run("malformed payload is not retried", func() {
		err := s.processor.HandlePreload(context.Background(), asynq.NewTask(TaskType, []byte("{")))
		s.ErrorIs(err, asynq.SkipRetry)
	})

	s.Run("non-positive limit is not retried", func() {
		err := s.processor.HandlePreload(context.Background(), s.task(0))
		s.ErrorIs(err, asynq.SkipRetry)
	})

	s.Run("a preload already in progress makes the task a no-op", func() {
		err := s.locker.WithLock(context.Background(), LockKey, platformredis.DefaultLockOptions(), func(ctx context.Context) error {
			return s.processor.HandlePreload(ctx, s.task(5))
		})
		s.NoError(err)
	})
}

func (s *ProcessorSuite) TestHandlePreload_WithoutLocker() {
	processor := NewProcessor(s.preloader, nil, nil)
	s.preloader.EXPECT().Preload(gomock.Any(), 3).Return(3, nil)
	s.NoError(processor.HandlePreload(context.Background(), s.task(3)))
}

func (s *ProcessorSuite) TestHandlerRoutesTaskType() {
	s.preloader.EXPECT().Preload(gomock.Any(), 7).Return(7, nil)
	s.NoError(s.processor.Handler().ProcessTask(context.Background(), s.task(7)))
}
