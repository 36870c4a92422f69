package services

import (
	"log/slog"

	"wagl-backend/contract"
	"wagl-backend/infrastructure/storage"
)

type Dependencies struct {
	Store      *storage.Store
	Publisher  contract.IEventPublisher
	Relay      contract.IRelayDispatcher
	Censor     Censor
	Index      MessageIndex
	Addressing RoomAddresser
	Log        *slog.Logger
	Now        Clock
}

// Chat is the set of use cases handed to the transport layer.
type Chat struct {
	Sessions     *SessionService
	Allocator    *RoomAllocator
	Invites      *InviteService
	Participants *ParticipantService
	System       *SystemParticipantService
	Messages     *MessageService
	Inbound      *RelayInboundService
	Janitor      *Janitor
}

func NewChat(deps Dependencies) *Chat {
	if deps.Now == nil {
		deps.Now = UTCNow
	}
	sessions := NewSessionService(deps.Store, deps.Index, deps.Publisher, deps.Log, deps.Now)
	allocator := NewRoomAllocator(deps.Store, deps.Publisher, deps.Relay, deps.Log, deps.Now)
	invites := NewInviteService(deps.Store, allocator, deps.Log, deps.Now)
	system := NewSystemParticipantService(deps.Store, deps.Publisher, deps.Log, deps.Now)
	messages := NewMessageService(deps.Store, deps.Censor, deps.Index, deps.Publisher, deps.Relay, deps.Log, deps.Now)
	return &Chat{
		Sessions:     sessions,
		Allocator:    allocator,
		Invites:      invites,
		Participants: NewParticipantService(deps.Store, allocator, deps.Publisher, deps.Relay, deps.Log, deps.Now),
		System:       system,
		Messages:     messages,
		Inbound:      NewRelayInboundService(allocator, system, messages, deps.Addressing, deps.Log),
		Janitor:      NewJanitor(sessions, invites, allocator, system, deps.Log),
	}
}
