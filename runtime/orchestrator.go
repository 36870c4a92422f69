// Package runtime moves events and relay calls between the services and the outside world.
// It orchestrates the system without containing business logic or domain rules.
package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"wagl-backend/contract"
	"wagl-backend/domain"
	"wagl-backend/runtime/workers"

	"github.com/google/uuid"
)

type Config struct {
	RelayWorkers   int
	SinkTimeout    time.Duration
	SweepInterval  time.Duration
	HealthInterval time.Duration
}

// Orchestrator owns the background pipeline: the event fanout, the relay
// workers, the sweeper and the relay health check, all under one supervisor.
// It is also the entry point of the transport for connections.
type Orchestrator struct {
	mu             sync.Mutex
	log            *slog.Logger
	config         Config
	supervisor     contract.ISupervisor
	registry       contract.IRegistry
	presence       contract.IPresence
	bus            *EventBus
	dispatcher     *RelayDispatcher
	relayClient    contract.IRelayClient
	sweeper        contract.ISweeper
	permanentSinks []contract.EventSink
	health         *workers.HealthWorker
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, registry contract.IRegistry,
	presence contract.IPresence, bus *EventBus, dispatcher *RelayDispatcher,
	relayClient contract.IRelayClient, sweeper contract.ISweeper, config Config) *Orchestrator {
	return &Orchestrator{
		log:         log,
		config:      config,
		supervisor:  supervisor,
		registry:    registry,
		presence:    presence,
		bus:         bus,
		dispatcher:  dispatcher,
		relayClient: relayClient,
		sweeper:     sweeper,
	}
}

// Add registers sinks receiving every event. Call it before Start.
func (o *Orchestrator) Add(sinks ...contract.EventSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// Connect marks the participant present and routes the events of its room to sink.
func (o *Orchestrator) Connect(ctx context.Context, participantID uuid.UUID, connectionHandle string,
	sink contract.EventSink) (domain.Participant, error) {
	participant, err := o.presence.MarkActive(ctx, participantID, connectionHandle)
	if err != nil {
		return domain.Participant{}, err
	}
	o.registry.Subscribe(participant.ID, participant.SessionID, participant.RoomID, sink)
	o.log.Debug("Participant connected", "participant", participant.ID, "room", participant.RoomID)
	return participant, nil
}

// Disconnect stops the event flow first, then frees the seat.
func (o *Orchestrator) Disconnect(ctx context.Context, participantID uuid.UUID, connectionHandle string) error {
	o.registry.Unsubscribe(participantID)
	return o.presence.MarkAsLeftByConnection(ctx, connectionHandle)
}

// RelayHealthy reports the last known state of the relay target.
// It stays true until the health worker has checked once.
func (o *Orchestrator) RelayHealthy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.health == nil || o.health.Healthy()
}

// Start prepares every worker and runs the supervisor until ctx is done.
func (o *Orchestrator) Start(ctx context.Context) {
	// Preparation happens outside the lock
	fanout := workers.NewEventFanout(o.log, o.sinks(), o.registry, o.bus.Events(), o.config.SinkTimeout)
	relayWorkers := o.prepareRelayWorkers()
	sweep := workers.NewSweepWorker(o.log, o.sweeper, o.config.SweepInterval, func() time.Time { return time.Now().UTC() })
	health := workers.NewHealthWorker(o.log, o.relayClient, o.config.HealthInterval)

	o.mu.Lock()
	o.health = health
	o.supervisor.Add(fanout, sweep, health)
	o.supervisor.Add(relayWorkers...)
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers", "relay_workers", len(relayWorkers))
	o.supervisor.Run(ctx)
}

func (o *Orchestrator) sinks() []contract.EventSink {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]contract.EventSink(nil), o.permanentSinks...)
}

func (o *Orchestrator) prepareRelayWorkers() []contract.Worker {
	n := max(o.config.RelayWorkers, 1)
	res := make([]contract.Worker, 0, n)
	for range n {
		res = append(res, workers.NewRelayWorker(o.log, o.relayClient, o.dispatcher.Jobs()))
	}
	return res
}

// Stop cancels the supervised workers. Start returns once they all exited.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
