package services

import (
	"context"
	"log/slog"
	"time"

	"wagl-backend/domain"
	"wagl-backend/errors"
)

// Janitor is the periodic housekeeping pass run by the sweep worker.
type Janitor struct {
	sessions  *SessionService
	invites   *InviteService
	allocator *RoomAllocator
	system    *SystemParticipantService
	log       *slog.Logger
}

func NewJanitor(sessions *SessionService, invites *InviteService, allocator *RoomAllocator,
	system *SystemParticipantService, log *slog.Logger) *Janitor {
	return &Janitor{sessions: sessions, invites: invites, allocator: allocator, system: system, log: log}
}

// Sweep expires sessions and invites, then tidies the rooms of running sessions.
// Every step runs even when an earlier one failed.
func (j *Janitor) Sweep(ctx context.Context, now time.Time) error {
	var errs []error
	report, err := j.sessions.SweepExpired(ctx, now)
	errs = append(errs, err)
	invites, err := j.invites.SweepExpired(ctx, now)
	errs = append(errs, err)

	active, err := j.sessions.List(ctx, domain.SessionActive)
	errs = append(errs, err)
	var closed, bots int
	for _, session := range active {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rooms, err := j.allocator.Consolidate(ctx, session.ID)
		errs = append(errs, err)
		closed += len(rooms)

		all, err := j.allocator.ListRooms(ctx, session.ID)
		errs = append(errs, err)
		for _, room := range all {
			n, err := j.system.CleanupInactiveBots(ctx, room.ID)
			errs = append(errs, err)
			bots += n
		}
	}

	j.log.Debug("Sweep done",
		"sessions_deleted", len(report.Deleted),
		"sessions_ended", len(report.Ended),
		"invites_deleted", invites,
		"rooms_closed", closed,
		"bots_deleted", bots)
	return errors.Join(errs...)
}
