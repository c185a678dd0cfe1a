// Package server maintains the process-wide room registry mapping room ids
// to room state.
package server

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrRoomNotFound is returned when a referenced room id is absent from the
// registry, either because it never existed or because it was deleted after
// its last member left.
var ErrRoomNotFound = errors.New("room not found")

// Room is a point-in-time snapshot of a registry entry. Snapshots are
// copies: mutating one has no effect on the registry, and a snapshot can be
// stale the moment it is returned.
type Room struct {
	ID      string
	Passkey string            // empty means open room
	Members map[string]string // connection id -> username
}

// room is the registry-owned representation. Only the Registry touches it.
type room struct {
	passkey string
	members map[string]string
}

// Registry is the sole owner of all room state. Sessions hold room ids, not
// room references, and must re-resolve them through Lookup on every use.
// All four operations are safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*room
}

// NewRegistry creates an empty room registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*room)}
}

// CreateRoom generates a fresh unique room id, inserts a room with no
// members, and returns the id. An empty passkey creates an open room.
// The id doubles as the token shared out of band to invite others, so it
// must be collision-resistant and safe to paste or speak.
func (r *Registry) CreateRoom(passkey string) string {
	id := uuid.New().String()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[id] = &room{passkey: passkey, members: make(map[string]string)}
	return id
}

// Lookup returns a snapshot of the room, or false if it does not exist.
func (r *Registry) Lookup(roomID string) (Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return Room{}, false
	}

	members := make(map[string]string, len(rm.members))
	for connID, username := range rm.members {
		members[connID] = username
	}
	return Room{ID: roomID, Passkey: rm.passkey, Members: members}, true
}

// Join records connID as a member of the room under the given username.
// It returns ErrRoomNotFound if the room vanished between a prior lookup
// and this call.
func (r *Registry) Join(roomID, connID, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	rm.members[connID] = username
	return nil
}

// Leave removes connID from the room and returns the username that was
// removed. If the departure empties the room, the room is deleted in the
// same critical section; there is no observable empty-room state afterward.
func (r *Registry) Leave(roomID, connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return "", false
	}
	username, ok := rm.members[connID]
	if !ok {
		return "", false
	}

	delete(rm.members, connID)
	if len(rm.members) == 0 {
		delete(r.rooms, roomID)
	}
	return username, true
}

// RoomIDs returns the ids of every room currently in the registry. It is
// used by the shutdown path to notify each room before closing connections.
func (r *Registry) RoomIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	return ids
}
