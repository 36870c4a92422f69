package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"wagl-backend/auth"
	"wagl-backend/domain"
	"wagl-backend/domain/event"
	"wagl-backend/errors"
	"wagl-backend/infrastructure/storage"

	"github.com/google/uuid"
)

const tokenBytes = 32

type IInviteService interface {
	Create(ctx context.Context, caller auth.Caller, cmd CreateInviteCommand) (domain.SessionInvite, error)
	CreateBulk(ctx context.Context, caller auth.Caller, sessionID uuid.UUID, recipients []InviteRecipient, expirationMinutes int) (BulkInviteResult, error)
	Validate(ctx context.Context, token string) (domain.InviteValidation, error)
	Consume(ctx context.Context, token, displayName string, userID *string) (ConsumeResult, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.SessionInvite, error)
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

type BulkInviteFailure struct {
	Recipient InviteRecipient
	Reason    string
}

type BulkInviteResult struct {
	Invites   []domain.SessionInvite
	Succeeded int
	Failed    int
	Failures  []BulkInviteFailure
}

// ConsumeResult carries the room and participant only when Validation is valid.
type ConsumeResult struct {
	Validation  domain.InviteValidation
	Room        domain.ChatRoom
	Participant domain.Participant
}

// InviteService issues single use invite tokens and redeems them.
// Redemption validates, allocates a seat and marks the invite consumed in one
// transaction: two redemptions of the same token cannot both commit, and a
// failed allocation leaves the invite untouched.
type InviteService struct {
	store     *storage.Store
	allocator *RoomAllocator
	log       *slog.Logger
	now       Clock
	newToken  func() (string, error)
}

func NewInviteService(store *storage.Store, allocator *RoomAllocator, log *slog.Logger, now Clock) *InviteService {
	return &InviteService{store: store, allocator: allocator, log: log, now: now, newToken: NewToken}
}

// NewToken returns 32 random bytes encoded for URLs.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate invite token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *InviteService) Create(ctx context.Context, caller auth.Caller, cmd CreateInviteCommand) (domain.SessionInvite, error) {
	if err := validateCommand(cmd); err != nil {
		logFailure(ctx, s.log, err, "Invite rejected", "session", cmd.SessionID)
		return domain.SessionInvite{}, err
	}
	var invite domain.SessionInvite
	err := s.store.Update(ctx, func(tx *storage.Tx) error {
		var err error
		invite, err = s.create(tx, caller, cmd.SessionID, cmd.InviteeEmail, cmd.InviteeName, cmd.ExpirationMinutes)
		return err
	})
	if err != nil {
		logFailure(ctx, s.log, err, "Invite creation failed", "session", cmd.SessionID)
		return domain.SessionInvite{}, err
	}
	s.log.Debug("Invite created", "session", invite.SessionID, "expires_at", invite.ExpiresAt)
	return invite, nil
}

func (s *InviteService) create(tx *storage.Tx, caller auth.Caller, sessionID uuid.UUID,
	email, name *string, expirationMinutes int) (domain.SessionInvite, error) {
	session, err := tx.Session(sessionID)
	if err != nil {
		return domain.SessionInvite{}, err
	}
	if err := checkInviteIssuer(caller, session); err != nil {
		return domain.SessionInvite{}, err
	}

	token, err := s.newToken()
	if err != nil {
		return domain.SessionInvite{}, err
	}
	exists, err := tx.InviteExists(token)
	if err != nil {
		return domain.SessionInvite{}, err
	}
	if exists {
		return domain.SessionInvite{}, errors.ErrDuplicateToken
	}

	now := s.now()
	invite := domain.SessionInvite{
		ID:              uuid.New(),
		SessionID:       sessionID,
		Token:           token,
		InviteeEmail:    email,
		InviteeName:     name,
		CreatedByUserID: caller.UserID,
		CreatedAt:       now,
		ExpiresAt:       now.Add(time.Duration(expirationMinutes) * time.Minute),
	}
	return invite, tx.PutInvite(invite)
}

func checkInviteIssuer(caller auth.Caller, session domain.ChatSession) error {
	if !caller.CanManageSession(session) {
		return errors.ErrNotEntitled
	}
	if session.Status != domain.SessionScheduled {
		return fmt.Errorf("%w: status %s", errors.ErrSessionNotScheduled, session.Status)
	}
	return nil
}

// CreateBulk issues one invite per recipient, all sharing the same expiry.
// Problems common to every recipient are returned as an error; a recipient
// that fails on its own is counted in the result.
func (s *InviteService) CreateBulk(ctx context.Context, caller auth.Caller, sessionID uuid.UUID,
	recipients []InviteRecipient, expirationMinutes int) (BulkInviteResult, error) {
	if expirationMinutes < 0 {
		err := fmt.Errorf("%w: expiration must not be negative", errors.ErrInvalidCommand)
		logFailure(ctx, s.log, err, "Bulk invite rejected", "session", sessionID)
		return BulkInviteResult{}, err
	}
	err := s.store.View(ctx, func(tx *storage.Tx) error {
		session, err := tx.Session(sessionID)
		if err != nil {
			return err
		}
		return checkInviteIssuer(caller, session)
	})
	if err != nil {
		logFailure(ctx, s.log, err, "Bulk invite rejected", "session", sessionID)
		return BulkInviteResult{}, err
	}

	var result BulkInviteResult
	for _, recipient := range recipients {
		invite, err := s.Create(ctx, caller, CreateInviteCommand{
			SessionID:         sessionID,
			InviteeEmail:      recipient.Email,
			InviteeName:       recipient.Name,
			ExpirationMinutes: expirationMinutes,
		})
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			result.Failures = append(result.Failures, BulkInviteFailure{Recipient: recipient, Reason: err.Error()})
			continue
		}
		result.Succeeded++
		result.Invites = append(result.Invites, invite)
	}
	s.log.Info("Bulk invites created", "session", sessionID, "succeeded", result.Succeeded, "failed", result.Failed)
	return result, nil
}

// Validate checks a token without consuming it. The error is only set for
// storage failures; an unusable invite is described by the validation status.
func (s *InviteService) Validate(ctx context.Context, token string) (domain.InviteValidation, error) {
	var validation domain.InviteValidation
	err := s.store.View(ctx, func(tx *storage.Tx) error {
		var err error
		validation, err = s.validate(tx, token, s.now())
		return err
	})
	if err != nil {
		logFailure(ctx, s.log, err, "Invite validation failed")
		return domain.InviteValidation{}, err
	}
	if validation.Status == domain.InviteInvalidToken {
		s.log.Warn("Unknown invite token")
	}
	return validation, nil
}

func (s *InviteService) validate(tx *storage.Tx, token string, now time.Time) (domain.InviteValidation, error) {
	invite, err := tx.Invite(token)
	if errors.Is(err, errors.ErrInviteNotFound) {
		return domain.ValidateInvite(nil, nil, now), nil
	}
	if err != nil {
		return domain.InviteValidation{}, err
	}
	session, err := tx.Session(invite.SessionID)
	switch {
	case errors.Is(err, errors.ErrSessionNotFound):
		return domain.ValidateInvite(&invite, nil, now), nil
	case err != nil:
		return domain.InviteValidation{}, err
	}
	return domain.ValidateInvite(&invite, &session, now), nil
}

// Consume redeems a token for a seat in the session.
func (s *InviteService) Consume(ctx context.Context, token, displayName string, userID *string) (ConsumeResult, error) {
	var result ConsumeResult
	var events []event.DomainEvent
	err := s.store.Update(ctx, func(tx *storage.Tx) error {
		result, events = ConsumeResult{}, nil
		now := s.now()

		validation, err := s.validate(tx, token, now)
		if err != nil {
			return err
		}
		result.Validation = validation
		if !validation.IsValid() {
			return nil
		}

		allocation, allocated, err := s.allocator.allocate(tx, validation.SessionID, displayName, userID)
		if errors.Is(err, errors.ErrAlreadyInSession) {
			result.Validation.Status = domain.InviteUserAlreadyInSession
			return nil
		}
		if err != nil {
			return err
		}

		invite, err := tx.Invite(token)
		if err != nil {
			return err
		}
		invite.Consume(displayName, userID, now)
		if err := tx.PutInvite(invite); err != nil {
			return err
		}
		result.Room, result.Participant, events = allocation.Room, allocation.Participant, allocated
		return nil
	})
	if err != nil {
		logFailure(ctx, s.log, err, "Invite consumption failed")
		return ConsumeResult{}, err
	}
	if !result.Validation.IsValid() {
		s.log.Debug("Invite refused", "reason", result.Validation.Reason())
		return result, nil
	}
	s.allocator.announceJoin(Allocation{Room: result.Room, Participant: result.Participant}, events)
	return result, nil
}

func (s *InviteService) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.SessionInvite, error) {
	var invites []domain.SessionInvite
	err := s.store.View(ctx, func(tx *storage.Tx) error {
		if _, err := tx.Session(sessionID); err != nil {
			return err
		}
		var err error
		invites, err = tx.InvitesBySession(sessionID)
		return err
	})
	if err != nil {
		logFailure(ctx, s.log, err, "Listing invites failed", "session", sessionID)
		return nil, err
	}
	slices.SortFunc(invites, func(a, b domain.SessionInvite) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return invites, nil
}

// SweepExpired deletes every invite past its expiry, consumed or not.
func (s *InviteService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	var deleted int
	err := s.store.Update(ctx, func(tx *storage.Tx) error {
		deleted = 0
		invites, err := tx.Invites()
		if err != nil {
			return err
		}
		for _, invite := range invites {
			if !invite.IsExpired(now) {
				continue
			}
			if err := tx.DeleteInvite(invite); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		logFailure(ctx, s.log, err, "Invite sweep failed")
		return 0, err
	}
	if deleted > 0 {
		s.log.Info("Expired invites deleted", "count", deleted)
	}
	return deleted, nil
}
