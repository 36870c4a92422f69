// Package services holds the chat use cases: session lifecycle, room
// allocation, invites, presence and messages.
//
// Every mutation runs in one storage transaction. Domain events and relay
// calls are handed over only after the commit, so a retried or failed
// transaction never leaks a notification.
package services

import (
	"context"
	"log/slog"
	"time"

	"wagl-backend/contract"
	"wagl-backend/domain/event"
	"wagl-backend/errors"
)

type Clock func() time.Time

func UTCNow() time.Time { return time.Now().UTC() }

var lookupErrors = []error{
	errors.ErrSessionNotFound,
	errors.ErrRoomNotFound,
	errors.ErrParticipantNotFound,
	errors.ErrInviteNotFound,
	errors.ErrMessageNotFound,
}

var validationErrors = []error{
	errors.ErrInvalidCommand,
	errors.ErrSessionNotScheduled,
	errors.ErrSessionNotJoinable,
	errors.ErrSessionActive,
	errors.ErrNotEntitled,
	errors.ErrRoomFull,
	errors.ErrRoomClosed,
	errors.ErrRoomMismatch,
	errors.ErrAlreadyInSession,
	errors.ErrParticipantInactive,
	errors.ErrNotInRoom,
	errors.ErrEmptyMessage,
	errors.ErrMessageTooLong,
	errors.ErrNotMessageAuthor,
	errors.ErrDuplicateToken,
}

func IsNotFound(err error) bool { return isAny(err, lookupErrors) }

func IsValidation(err error) bool { return isAny(err, validationErrors) }

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// logFailure picks the level from the error kind: unknown ids are warnings,
// rejected requests are debug, anything else is an internal failure.
func logFailure(ctx context.Context, log *slog.Logger, err error, msg string, args ...any) {
	args = append(args, "error", err)
	switch {
	case IsNotFound(err):
		log.WarnContext(ctx, msg, args...)
	case IsValidation(err), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.DebugContext(ctx, msg, args...)
	default:
		log.ErrorContext(ctx, msg, args...)
	}
}

func publishAll(publisher contract.IEventPublisher, events []event.DomainEvent) {
	for _, e := range events {
		publisher.Publish(e)
	}
}
