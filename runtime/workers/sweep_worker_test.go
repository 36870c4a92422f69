package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"wagl-backend/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSweepWorker_Keeps_Running_After_Failure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	sweeper := mocks.NewMockISweeper(ctrl)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var calls atomic.Int32
	sweeper.EXPECT().Sweep(gomock.Any(), fixed).
		DoAndReturn(func(ctx context.Context, now time.Time) error {
			if calls.Add(1) == 1 {
				return fmt.Errorf("disk full")
			}
			return nil
		}).MinTimes(2)

	worker := NewSweepWorker(slog.Default(), sweeper, 10*time.Millisecond, func() time.Time { return fixed })
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	req.NoError(worker.Run(ctx))
	req.GreaterOrEqual(calls.Load(), int32(2))
}
