package runtime

import (
	"sync"

	"wagl-backend/contract"
	"wagl-backend/domain"

	"github.com/google/uuid"
)

type Set map[uuid.UUID]struct{}

type subscription struct {
	sessionID uuid.UUID
	roomID    uuid.UUID
	sink      contract.EventSink
}

// Registry maps live transport connections to the rooms and sessions they follow.
// A participant has a single connection; subscribing again replaces it.
type Registry struct {
	mu             sync.RWMutex
	subscriptions  map[uuid.UUID]subscription // participant -> connection
	roomMembers    map[uuid.UUID]Set          // room -> participants
	sessionMembers map[uuid.UUID]Set          // session -> participants
}

func NewRegistry() *Registry {
	return &Registry{
		subscriptions:  make(map[uuid.UUID]subscription),
		roomMembers:    make(map[uuid.UUID]Set),
		sessionMembers: make(map[uuid.UUID]Set),
	}
}

// GetSinks resolves the members of a room, or of the whole session for
// domain.BroadcastRoomID, into their sinks.
// Returns nil when nobody listens.
func (r *Registry) GetSinks(sessionID, roomID uuid.UUID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.roomMembers[roomID]
	if roomID == domain.BroadcastRoomID {
		members = r.sessionMembers[sessionID]
	}
	var sinks []contract.EventSink
	for participantID := range members {
		if sub, ok := r.subscriptions[participantID]; ok {
			sinks = append(sinks, sub.sink)
		}
	}
	return sinks
}

func (r *Registry) Subscribe(participantID, sessionID, roomID uuid.UUID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.remove(participantID)
	r.subscriptions[participantID] = subscription{sessionID: sessionID, roomID: roomID, sink: sink}
	add(r.roomMembers, roomID, participantID)
	add(r.sessionMembers, sessionID, participantID)
}

// Unsubscribe drops the participant connection. Empty sets are removed to
// keep the maps from growing with churn.
func (r *Registry) Unsubscribe(participantID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(participantID)
}

func (r *Registry) remove(participantID uuid.UUID) {
	sub, ok := r.subscriptions[participantID]
	if !ok {
		return
	}
	delete(r.subscriptions, participantID)
	discard(r.roomMembers, sub.roomID, participantID)
	discard(r.sessionMembers, sub.sessionID, participantID)
}

func add(index map[uuid.UUID]Set, key, participantID uuid.UUID) {
	if _, ok := index[key]; !ok {
		index[key] = make(Set)
	}
	index[key][participantID] = struct{}{}
}

func discard(index map[uuid.UUID]Set, key, participantID uuid.UUID) {
	if members, ok := index[key]; ok {
		delete(members, participantID)
		if len(members) == 0 {
			delete(index, key)
		}
	}
}
