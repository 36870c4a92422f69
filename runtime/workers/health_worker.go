package workers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"wagl-backend/contract"

	"github.com/shirou/gopsutil/process"
)

// HealthWorker checks the relay target on its reserved health room and logs
// the process footprint next to it.
type HealthWorker struct {
	log      *slog.Logger
	client   contract.IRelayClient
	interval time.Duration
	healthy  atomic.Bool
}

func NewHealthWorker(log *slog.Logger, client contract.IRelayClient, interval time.Duration) *HealthWorker {
	w := &HealthWorker{log: log, client: client, interval: interval}
	w.healthy.Store(true)
	return w
}

func (w *HealthWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Check(ctx, p)
		}
	}
}

// Check logs the transitions of the relay health, and the process stats on every tick.
func (w *HealthWorker) Check(ctx context.Context, p *process.Process) {
	healthy := w.client.IsHealthy(ctx)
	previous := w.healthy.Swap(healthy)
	switch {
	case healthy && !previous:
		w.log.Info("Relay target is back")
	case !healthy && previous:
		w.log.Warn("Relay target unreachable, chat continues without relay")
	}

	if p == nil {
		return
	}
	rss, cpu, status, err := selfStats(p)
	if err != nil {
		w.log.Debug("Failed to collect self stats", "error", err)
		return
	}
	w.log.Debug("Heartbeat", "relay_healthy", healthy, "rss_bytes", rss, "cpu_percent", cpu, "status", status)
}

func (w *HealthWorker) Healthy() bool { return w.healthy.Load() }

// selfStats retrieves memory, CPU and OS status for the given process.
func selfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}
	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, fmt.Sprint(status), nil
}
