package workers

import (
	"context"
	"log/slog"
	"time"

	"wagl-backend/contract"
)

// SweepWorker runs the housekeeping pass on a fixed interval.
// A failed pass is logged and retried on the next tick.
type SweepWorker struct {
	log      *slog.Logger
	sweeper  contract.ISweeper
	interval time.Duration
	now      func() time.Time
}

func NewSweepWorker(log *slog.Logger, sweeper contract.ISweeper, interval time.Duration, now func() time.Time) *SweepWorker {
	if now == nil {
		now = time.Now
	}
	return &SweepWorker{log: log, sweeper: sweeper, interval: interval, now: now}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping sweeps")
			return nil
		case <-ticker.C:
			if err := w.sweeper.Sweep(ctx, w.now()); err != nil {
				w.log.Error("Sweep failed", "error", err)
			}
		}
	}
}
