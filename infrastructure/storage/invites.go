package storage

import (
	"fmt"
	"time"

	"wagl-backend/domain"
	"wagl-backend/errors"

	"github.com/google/uuid"
)

type diskInvite struct {
	ID               uuid.UUID  `json:"id"`
	SessionID        uuid.UUID  `json:"session_id"`
	Token            string     `json:"token"`
	InviteeEmail     *string    `json:"invitee_email,omitempty"`
	InviteeName      *string    `json:"invitee_name,omitempty"`
	CreatedByUserID  string     `json:"created_by_user_id"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	IsConsumed       bool       `json:"is_consumed"`
	ConsumedAt       *time.Time `json:"consumed_at,omitempty"`
	ConsumedByUserID *string    `json:"consumed_by_user_id,omitempty"`
	ConsumedByName   *string    `json:"consumed_by_name,omitempty"`
}

// Invite loads an invite by token. The read registers the token key, so two
// transactions consuming the same invite cannot both commit.
func (tx *Tx) Invite(token string) (domain.SessionInvite, error) {
	var inv diskInvite
	if err := tx.get(inviteKey(token), &inv); err != nil {
		if isNotFound(err) {
			return domain.SessionInvite{}, errors.ErrInviteNotFound
		}
		return domain.SessionInvite{}, fmt.Errorf("get invite: %w", err)
	}
	return toInvite(inv), nil
}

func (tx *Tx) InviteExists(token string) (bool, error) {
	_, err := tx.txn.Get([]byte(inviteKey(token)))
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

func (tx *Tx) PutInvite(inv domain.SessionInvite) error {
	if err := tx.put(inviteKey(inv.Token), fromInvite(inv)); err != nil {
		return err
	}
	return tx.putString(sessionInviteKey(inv.SessionID, inv.Token), "")
}

func (tx *Tx) DeleteInvite(inv domain.SessionInvite) error {
	if err := tx.delete(sessionInviteKey(inv.SessionID, inv.Token)); err != nil {
		return err
	}
	return tx.delete(inviteKey(inv.Token))
}

func (tx *Tx) InvitesBySession(sessionID uuid.UUID) ([]domain.SessionInvite, error) {
	prefix := sessionInvitePrefix(sessionID)
	entries, err := tx.scan(prefix, false, "", 0)
	if err != nil {
		return nil, err
	}
	invites := make([]domain.SessionInvite, 0, len(entries))
	for _, e := range entries {
		inv, err := tx.Invite(e.key[len(prefix):])
		if err != nil {
			return nil, err
		}
		invites = append(invites, inv)
	}
	return invites, nil
}

func (tx *Tx) Invites() ([]domain.SessionInvite, error) {
	entries, err := tx.scan(invitePrefix, false, "", 0)
	if err != nil {
		return nil, err
	}
	disks, err := decode[diskInvite](entries)
	if err != nil {
		return nil, err
	}
	invites := make([]domain.SessionInvite, 0, len(disks))
	for _, inv := range disks {
		invites = append(invites, toInvite(inv))
	}
	return invites, nil
}

func fromInvite(inv domain.SessionInvite) diskInvite {
	return diskInvite{
		ID:               inv.ID,
		SessionID:        inv.SessionID,
		Token:            inv.Token,
		InviteeEmail:     inv.InviteeEmail,
		InviteeName:      inv.InviteeName,
		CreatedByUserID:  inv.CreatedByUserID,
		CreatedAt:        inv.CreatedAt,
		ExpiresAt:        inv.ExpiresAt,
		IsConsumed:       inv.IsConsumed,
		ConsumedAt:       inv.ConsumedAt,
		ConsumedByUserID: inv.ConsumedByUserID,
		ConsumedByName:   inv.ConsumedByName,
	}
}

func toInvite(inv diskInvite) domain.SessionInvite {
	return domain.SessionInvite{
		ID:               inv.ID,
		SessionID:        inv.SessionID,
		Token:            inv.Token,
		InviteeEmail:     inv.InviteeEmail,
		InviteeName:      inv.InviteeName,
		CreatedByUserID:  inv.CreatedByUserID,
		CreatedAt:        inv.CreatedAt,
		ExpiresAt:        inv.ExpiresAt,
		IsConsumed:       inv.IsConsumed,
		ConsumedAt:       inv.ConsumedAt,
		ConsumedByUserID: inv.ConsumedByUserID,
		ConsumedByName:   inv.ConsumedByName,
	}
}
