package relay

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"wagl-backend/errors"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

const DefaultHealthRoom = 0

var DefaultRoomPool = []int{1, 2, 3}

// Addressing maps internal identifiers onto the numeric scheme of the relay target.
// Several internal rooms may share a relay room: the target keeps no state per room.
type Addressing struct {
	pool       []int
	healthRoom int
}

func NewAddressing(pool []int, healthRoom int) (*Addressing, error) {
	if len(pool) == 0 {
		return nil, fmt.Errorf("%w: pool is empty", errors.ErrInvalidPool)
	}
	if slices.Contains(pool, healthRoom) {
		return nil, fmt.Errorf("%w: health room %d is part of the pool", errors.ErrInvalidPool, healthRoom)
	}
	return &Addressing{pool: slices.Clone(pool), healthRoom: healthRoom}, nil
}

// RoomNumberFor hashes the room UUID with xxhash64, which does not depend on
// the process, so a room keeps its relay number across restarts.
func (a *Addressing) RoomNumberFor(roomID uuid.UUID) int {
	return a.pool[xxhash.Sum64(roomID[:])%uint64(len(a.pool))]
}

func (a *Addressing) HealthRoom() int { return a.healthRoom }

// UserIDFor reads the first 8 bytes of the participant UUID as a big endian
// integer and keeps its absolute value. Distinct participants may collide.
func UserIDFor(participantID uuid.UUID) int64 {
	v := int64(binary.BigEndian.Uint64(participantID[:8]))
	switch {
	case v == math.MinInt64:
		return math.MaxInt64
	case v < 0:
		return -v
	default:
		return v
	}
}

// SessionIDFor returns the path segment identifying a session on the relay target.
func SessionIDFor(sessionID uuid.UUID) string { return sessionID.String() }
