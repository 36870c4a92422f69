package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestValidateInvite_PriorityOrder(t *testing.T) {
	now := time.Now().UTC()
	scheduled := &ChatSession{ID: uuid.New(), Name: "Demo", Status: SessionScheduled}
	ended := &ChatSession{ID: uuid.New(), Status: SessionEnded}

	tests := []struct {
		name     string
		invite   *SessionInvite
		session  *ChatSession
		expected InviteStatus
	}{
		{name: "unknown token", invite: nil, session: scheduled, expected: InviteInvalidToken},
		{
			name:     "expired wins over consumed",
			invite:   &SessionInvite{ExpiresAt: now, IsConsumed: true},
			session:  scheduled,
			expected: InviteExpired,
		},
		{
			name:     "consumed wins over session state",
			invite:   &SessionInvite{ExpiresAt: now.Add(time.Hour), IsConsumed: true},
			session:  ended,
			expected: InviteAlreadyConsumed,
		},
		{
			name:     "session ended",
			invite:   &SessionInvite{ExpiresAt: now.Add(time.Hour)},
			session:  ended,
			expected: InviteSessionNotJoinable,
		},
		{
			name:     "valid",
			invite:   &SessionInvite{SessionID: scheduled.ID, ExpiresAt: now.Add(time.Hour)},
			session:  scheduled,
			expected: InviteValid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			v := ValidateInvite(tt.invite, tt.session, now)
			req.Equal(tt.expected, v.Status)
			req.NotEmpty(v.Reason())
		})
	}
}

func TestSessionInvite_Consume(t *testing.T) {
	req := require.New(t)
	now := time.Now().UTC()
	invite := SessionInvite{ExpiresAt: now.Add(time.Hour)}

	invite.Consume("Alice", lo.ToPtr("user-1"), now)

	req.True(invite.IsConsumed)
	req.Equal(now, *invite.ConsumedAt)
	req.Equal("Alice", *invite.ConsumedByName)
	req.Equal("user-1", *invite.ConsumedByUserID)
}

func TestInviteValidation_ZeroValueIsNotValid(t *testing.T) {
	req := require.New(t)

	var v InviteValidation

	req.False(v.IsValid())
	req.Equal(InviteUnknown, v.Status)
	req.Equal("unknown", v.Status.String())
	req.Equal("invite rejected", v.Reason())
}
