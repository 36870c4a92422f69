package workers

import (
	"context"
	"log/slog"

	"wagl-backend/contract"
	"wagl-backend/domain"
)

type RelayJobKind int

const (
	RelayMessage RelayJobKind = iota
	RelayConnect
	RelayDisconnect
)

func (k RelayJobKind) String() string {
	switch k {
	case RelayMessage:
		return "message"
	case RelayConnect:
		return "connect"
	case RelayDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// RelayJob is one call to the relay target, already addressed.
type RelayJob struct {
	Kind           RelayJobKind
	RelaySessionID string
	RoomNumber     int
	Message        domain.ChatMessage
	Participant    domain.Participant
}

// RelayWorker drains the relay queue. The outcome of each call is only logged
// by the client; nothing flows back to the code that queued the job.
type RelayWorker struct {
	log    *slog.Logger
	client contract.IRelayClient
	jobs   <-chan RelayJob
}

func NewRelayWorker(log *slog.Logger, client contract.IRelayClient, jobs <-chan RelayJob) *RelayWorker {
	return &RelayWorker{log: log, client: client, jobs: jobs}
}

func (w *RelayWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job, ok := <-w.jobs:
			if !ok {
				return nil
			}
			w.handle(ctx, job)
		}
	}
}

func (w *RelayWorker) handle(ctx context.Context, job RelayJob) {
	var delivered bool
	switch job.Kind {
	case RelayMessage:
		delivered = w.client.Relay(ctx, job.Message, job.RelaySessionID, job.RoomNumber)
	case RelayConnect:
		delivered = w.client.NotifyConnect(ctx, job.Participant, job.RelaySessionID, job.RoomNumber)
	case RelayDisconnect:
		delivered = w.client.NotifyDisconnect(ctx, job.Participant, job.RelaySessionID, job.RoomNumber)
	default:
		w.log.Error("Unknown relay job", "kind", int(job.Kind))
		return
	}
	w.log.Debug("Relay job handled", "kind", job.Kind, "room", job.RoomNumber, "delivered", delivered)
}
