package errors

import (
	"errors"
	"fmt"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")
	ErrInvalidPool = fmt.Errorf("invalid relay room pool")
)

// Lookups
var (
	ErrSessionNotFound     = fmt.Errorf("session not found")
	ErrRoomNotFound        = fmt.Errorf("room not found")
	ErrParticipantNotFound = fmt.Errorf("participant not found")
	ErrInviteNotFound      = fmt.Errorf("invite not found")
	ErrMessageNotFound     = fmt.Errorf("message not found")
)

// Validation failures, surfaced to users with a readable reason.
var (
	ErrInvalidCommand      = fmt.Errorf("invalid command")
	ErrSessionNotScheduled = fmt.Errorf("session is not scheduled")
	ErrSessionNotJoinable  = fmt.Errorf("session is not open for joining")
	ErrSessionActive       = fmt.Errorf("session is active")
	ErrNotEntitled         = fmt.Errorf("caller is not allowed to manage this session")
	ErrRoomFull            = fmt.Errorf("room full")
	ErrRoomClosed          = fmt.Errorf("room closed")
	ErrRoomMismatch        = fmt.Errorf("room does not belong to session")
	ErrAlreadyInSession    = fmt.Errorf("user already joined this session")
	ErrParticipantInactive = fmt.Errorf("participant is not active")
	ErrNotInRoom           = fmt.Errorf("participant is not in this room")
	ErrEmptyMessage        = fmt.Errorf("message is empty")
	ErrMessageTooLong      = fmt.Errorf("message too long")
	ErrNotMessageAuthor    = fmt.Errorf("only the author can delete a message")
	ErrDuplicateToken      = fmt.Errorf("invite token already exists")
	ErrInvalidToken        = fmt.Errorf("invalid token")
)

// Relay integration failures. They never leave the relay client.
var (
	ErrServiceUnavailable = fmt.Errorf("relay service unavailable")
	ErrRelayTimeout       = fmt.Errorf("relay request timed out")
	ErrRelayNetwork       = fmt.Errorf("relay network error")
)

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func Join(errs ...error) error { return errors.Join(errs...) }
