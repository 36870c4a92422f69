package services

import (
	"sync"
	"testing"

	"wagl-backend/domain"
	"wagl-backend/domain/event"
	"wagl-backend/errors"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func Test_Seventh_Participant_Opens_Room_2(t *testing.T) {
	req := require.New(t)
	h := setup(t)
	session, rooms := h.newSession(t, 6, 6)
	req.Len(rooms, 1)

	// Given six guests filling Room 1
	for i := range 6 {
		allocation, err := h.allocator.Allocate(h.ctx, session.ID, "guest", nil)
		req.NoError(err)
		req.Equal("Room 1", allocation.Room.Name)
		req.Equal(i+1, allocation.Room.ParticipantCount)
	}
	req.Equal(domain.RoomFull, h.reload(t, rooms[0]).Status)

	// When a seventh guest joins
	allocation, err := h.allocator.Allocate(h.ctx, session.ID, "guest 7", nil)

	// Then Room 2 is created for it
	req.NoError(err)
	req.Equal("Room 2", allocation.Room.Name)
	req.Equal(2, allocation.Room.Number)
	req.Equal(1, allocation.Room.ParticipantCount)
	req.Equal(domain.GuestUser, allocation.Participant.Type)
	req.Nil(allocation.Participant.UserID)

	listed, err := h.allocator.ListRooms(h.ctx, session.ID)
	req.NoError(err)
	req.Len(listed, 2)
}

func Test_Allocation_Fills_First_Room_First(t *testing.T) {
	req := require.New(t)
	h := setup(t)
	session, _ := h.newSession(t, 12, 6)

	for range 7 {
		_, err := h.allocator.Allocate(h.ctx, session.ID, "guest", nil)
		req.NoError(err)
	}

	rooms, err := h.allocator.ListRooms(h.ctx, session.ID)
	req.NoError(err)
	req.Equal([]int{6, 1}, lo.Map(rooms, func(r domain.ChatRoom, _ int) int { return r.ParticipantCount }))
}

func Test_Concurrent_Allocation_Never_Exceeds_Capacity(t *testing.T) {
	req := require.New(t)
	h := setup(t)
	session, _ := h.newSession(t, 6, 3)
	const joiners = 20

	// When twenty guests join at once
	var wg sync.WaitGroup
	errs := make(chan error, joiners)
	for range joiners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.allocator.Allocate(h.ctx, session.ID, "guest", nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	// Then no room holds more than three and every seat is accounted for
	rooms, err := h.allocator.ListRooms(h.ctx, session.ID)
	req.NoError(err)
	req.Len(rooms, 7)
	total := 0
	for _, room := range rooms {
		req.LessOrEqual(room.ParticipantCount, room.MaxParticipants)
		members, err := h.participants.ListByRoom(h.ctx, room.ID, ParticipantFilter{ActiveOnly: true})
		req.NoError(err)
		req.Len(members, room.ParticipantCount)
		total += room.ParticipantCount
	}
	req.Equal(joiners, total)
	req.Equal(lo.Range(7), lo.Map(rooms, func(r domain.ChatRoom, i int) int { return r.Number - 1 }))
}

func Test_Registered_User_Joins_Once(t *testing.T) {
	req := require.New(t)
	h := setup(t)
	session, _ := h.newSession(t, 6, 6)

	first, err := h.allocator.Allocate(h.ctx, session.ID, "Ada", lo.ToPtr("user-1"))
	req.NoError(err)
	req.Equal(domain.RegisteredUser, first.Participant.Type)

	_, err = h.allocator.Allocate(h.ctx, session.ID, "Ada again", lo.ToPtr("user-1"))
	req.ErrorIs(err, errors.ErrAlreadyInSession)
	req.True(IsValidation(err))
}

func Test_Remove_Frees_The_Seat(t *testing.T) {
	req := require.New(t)
	h := setup(t)
	session, rooms := h.newSession(t, 2, 2)
	first, err := h.allocator.Allocate(h.ctx, session.ID, "a", nil)
	req.NoError(err)
	_, err = h.allocator.Allocate(h.ctx, session.ID, "b", nil)
	req.NoError(err)
	req.Equal(domain.RoomFull, h.reload(t, rooms[0]).Status)
	h.events.reset()

	// When a participant is removed
	req.NoError(h.allocator.Remove(h.ctx, first.Participant.ID))

	// Then the room reopens with one seat taken
	room := h.reload(t, rooms[0])
	req.Equal(domain.RoomActive, room.Status)
	req.Equal(1, room.ParticipantCount)
	req.Equal([]string{event.ParticipantLeftName, event.RoomStatusChangedName}, h.events.names())

	// And removing again changes nothing
	req.NoError(h.allocator.Remove(h.ctx, first.Participant.ID))
	req.Equal(1, h.reload(t, rooms[0]).ParticipantCount)

	left, err := h.participants.Get(h.ctx, first.Participant.ID)
	req.NoError(err)
	req.False(left.IsActive)
	req.NotNil(left.LeftAt)
}

func Test_Consolidate_Keeps_One_Open_Room(t *testing.T) {
	req := require.New(t)
	h := setup(t)
	session, rooms := h.newSession(t, 18, 6)
	req.Len(rooms, 3)
	allocation, err := h.allocator.Allocate(h.ctx, session.ID, "guest", nil)
	req.NoError(err)
	req.Equal(rooms[0].ID, allocation.Room.ID)

	// When the session is consolidated
	closed, err := h.allocator.Consolidate(h.ctx, session.ID)

	// Then both empty rooms close and the occupied one stays
	req.NoError(err)
	req.Len(closed, 2)
	req.Equal(domain.RoomActive, h.reload(t, rooms[0]).Status)

	// When the last participant leaves
	req.NoError(h.allocator.Remove(h.ctx, allocation.Participant.ID))
	closed, err = h.allocator.Consolidate(h.ctx, session.ID)

	// Then the last active room stays open
	req.NoError(err)
	req.Empty(closed)
	req.Equal(domain.RoomActive, h.reload(t, rooms[0]).Status)
}
