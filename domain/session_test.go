package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChatSession_Transitions(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name      string
		status    SessionStatus
		canStart  bool
		canEnd    bool
		canCancel bool
	}{
		{name: "scheduled", status: SessionScheduled, canStart: true, canEnd: false, canCancel: true},
		{name: "active", status: SessionActive, canStart: false, canEnd: true, canCancel: true},
		{name: "ended", status: SessionEnded, canStart: false, canEnd: false, canCancel: false},
		{name: "cancelled", status: SessionCancelled, canStart: false, canEnd: false, canCancel: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			s := ChatSession{Status: tt.status}
			req.Equal(tt.canStart, s.Start(now))
			s = ChatSession{Status: tt.status}
			req.Equal(tt.canEnd, s.End(now))
			s = ChatSession{Status: tt.status}
			req.Equal(tt.canCancel, s.Cancel(now))
		})
	}
}

func TestChatSession_IsExpired(t *testing.T) {
	req := require.New(t)
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	s := ChatSession{ScheduledStart: start, Duration: time.Hour, Status: SessionActive}

	req.False(s.IsExpired(start.Add(59 * time.Minute)))
	req.True(s.IsExpired(start.Add(time.Hour)))

	// Given the session was ended properly
	s.Status = SessionEnded
	// Then it never counts as expired
	req.False(s.IsExpired(start.Add(2 * time.Hour)))
}

func TestRoomCount(t *testing.T) {
	req := require.New(t)
	req.Equal(2, RoomCount(12, 6))
	req.Equal(3, RoomCount(13, 6))
	req.Equal(1, RoomCount(1, 6))
	req.Equal(0, RoomCount(0, 6))
}
