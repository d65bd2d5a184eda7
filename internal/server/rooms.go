package server

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/vladimirruppel/roomchat/internal/protocol"
	"github.com/vladimirruppel/roomchat/internal/roomapi"
)

// JoinError carries the backend code of a refused join.
type JoinError struct {
	Code int
}

func (e *JoinError) Error() string {
	switch e.Code {
	case roomapi.CodeRoomFull:
		return "Room is full"
	case roomapi.CodeAlreadyMember:
		return "User already in room"
	case roomapi.CodeRoomNotFound:
		return "Room not found"
	}
	return "Failed to join room"
}

type room struct {
	id        int64
	name      string
	createdBy int64
	createdAt time.Time
	members   []int64
}

// RoomRegistry holds the rooms and their member lists.
type RoomRegistry struct {
	mu       sync.RWMutex
	rooms    map[int64]*room
	nextID   int64
	maxUsers int
}

func NewRoomRegistry(maxUsers int) *RoomRegistry {
	return &RoomRegistry{
		rooms:    make(map[int64]*room),
		nextID:   1,
		maxUsers: maxUsers,
	}
}

// Create adds a room. The creator is not made a member.
func (r *RoomRegistry) Create(name string, createdBy int64) (protocol.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return protocol.Room{}, errors.New("room name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm := &room{id: r.nextID, name: name, createdBy: createdBy, createdAt: time.Now().UTC()}
	r.nextID++
	r.rooms[rm.id] = rm
	return rm.view(), nil
}

// List returns every room ordered by id.
func (r *RoomRegistry) List() []protocol.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		out = append(out, rm.view())
	}
	slices.SortFunc(out, func(a, b protocol.Room) int {
		return cmp.Compare(a.RoomID, b.RoomID)
	})
	return out
}

func (r *RoomRegistry) Exists(roomID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID]
	return ok
}

// Join adds userID to the room. Refusals are *JoinError with code -1
// (full), -2 (already a member) or -3 (no such room).
func (r *RoomRegistry) Join(roomID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return &JoinError{Code: roomapi.CodeRoomNotFound}
	}
	if slices.Contains(rm.members, userID) {
		return &JoinError{Code: roomapi.CodeAlreadyMember}
	}
	if len(rm.members) >= r.maxUsers {
		return &JoinError{Code: roomapi.CodeRoomFull}
	}
	rm.members = append(rm.members, userID)
	return nil
}

// Members lists the user ids of a room in join order.
func (r *RoomRegistry) Members(roomID int64) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, &JoinError{Code: roomapi.CodeRoomNotFound}
	}
	return slices.Clone(rm.members), nil
}

func (rm *room) view() protocol.Room {
	createdBy := rm.createdBy
	return protocol.Room{
		RoomID:    rm.id,
		RoomName:  rm.name,
		UserCount: len(rm.members),
		CreatedBy: &createdBy,
	}
}
