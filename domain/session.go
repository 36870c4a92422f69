// Package domain contains core concepts of the chat system.
// This file defines the ChatSession lifecycle and its transition rules.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionActive    SessionStatus = "active"
	SessionEnded     SessionStatus = "ended"
	SessionCancelled SessionStatus = "cancelled"
)

// ChatSession is a scheduled chat event with a fixed lifetime and participant cap.
type ChatSession struct {
	ID                     uuid.UUID
	Name                   string
	ScheduledStart         time.Time
	Duration               time.Duration
	MaxParticipants        int
	MaxParticipantsPerRoom int
	Status                 SessionStatus
	CreatedByUserID        string
	CreatedAt              time.Time
	StartedAt              *time.Time
	EndedAt                *time.Time
}

func (s ChatSession) ScheduledEnd() time.Time {
	return s.ScheduledStart.Add(s.Duration)
}

func (s ChatSession) IsTerminal() bool {
	return s.Status == SessionEnded || s.Status == SessionCancelled
}

func (s ChatSession) CanStart() bool { return s.Status == SessionScheduled }

func (s ChatSession) CanEnd() bool { return s.Status == SessionActive }

func (s ChatSession) CanCancel() bool { return !s.IsTerminal() }

// IsJoinable reports whether rooms may be allocated and invites consumed.
func (s ChatSession) IsJoinable() bool {
	return s.Status == SessionScheduled || s.Status == SessionActive
}

// IsExpired is true once the scheduled end has passed for a session that was never ended.
func (s ChatSession) IsExpired(now time.Time) bool {
	if s.IsTerminal() {
		return false
	}
	return !now.Before(s.ScheduledEnd())
}

func (s *ChatSession) Start(now time.Time) bool {
	if !s.CanStart() {
		return false
	}
	s.Status = SessionActive
	s.StartedAt = &now
	return true
}

func (s *ChatSession) End(now time.Time) bool {
	if !s.CanEnd() {
		return false
	}
	s.Status = SessionEnded
	s.EndedAt = &now
	return true
}

func (s *ChatSession) Cancel(now time.Time) bool {
	if !s.CanCancel() {
		return false
	}
	s.Status = SessionCancelled
	s.EndedAt = &now
	return true
}

// RoomCount is the number of rooms needed to seat maxParticipants, perRoom at a time.
func RoomCount(maxParticipants, perRoom int) int {
	if maxParticipants <= 0 || perRoom <= 0 {
		return 0
	}
	return (maxParticipants + perRoom - 1) / perRoom
}
