package runtime

import (
	"log/slog"

	"wagl-backend/domain"
	"wagl-backend/infrastructure/relay"
	"wagl-backend/runtime/workers"
)

// RelayDispatcher addresses relay calls and queues them for the relay workers.
// Callers have already committed their transaction; a full queue drops the call.
type RelayDispatcher struct {
	log        *slog.Logger
	addressing *relay.Addressing
	jobs       chan workers.RelayJob
}

func NewRelayDispatcher(log *slog.Logger, addressing *relay.Addressing, queueSize int) *RelayDispatcher {
	return &RelayDispatcher{log: log, addressing: addressing, jobs: make(chan workers.RelayJob, queueSize)}
}

func (d *RelayDispatcher) DispatchMessage(msg domain.ChatMessage) {
	d.enqueue(workers.RelayJob{
		Kind:           workers.RelayMessage,
		RelaySessionID: relay.SessionIDFor(msg.SessionID),
		RoomNumber:     d.addressing.RoomNumberFor(msg.RoomID),
		Message:        msg,
	})
}

func (d *RelayDispatcher) DispatchConnect(p domain.Participant) {
	d.dispatchPresence(workers.RelayConnect, p)
}

func (d *RelayDispatcher) DispatchDisconnect(p domain.Participant) {
	d.dispatchPresence(workers.RelayDisconnect, p)
}

// System participants speak for the relay, so their presence is never echoed back to it.
func (d *RelayDispatcher) dispatchPresence(kind workers.RelayJobKind, p domain.Participant) {
	if p.Type.IsSystem() {
		return
	}
	d.enqueue(workers.RelayJob{
		Kind:           kind,
		RelaySessionID: relay.SessionIDFor(p.SessionID),
		RoomNumber:     d.addressing.RoomNumberFor(p.RoomID),
		Participant:    p,
	})
}

func (d *RelayDispatcher) enqueue(job workers.RelayJob) {
	select {
	case d.jobs <- job:
	default:
		d.log.Warn("Relay queue full, dropping call", "kind", job.Kind, "session", job.RelaySessionID)
	}
}

func (d *RelayDispatcher) Jobs() <-chan workers.RelayJob { return d.jobs }
