package main

import "sync"

const maxRooms = 200

// Registry is the process-wide table of active rooms. It is the only
// place rooms are created or destroyed, so room lifetime is unambiguous.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// CreateRoom allocates a room with the host as first member. Returns nil
// only on resource exhaustion.
func (reg *Registry) CreateRoom(host string, cfg GameConfig) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if len(reg.rooms) >= maxRooms {
		return nil
	}
	room := NewRoom(GenerateRoomID(), host, cfg)
	reg.rooms[room.ID] = room
	return room
}

// GetRoom returns a room by ID, or nil when absent. Callers decide whether
// an absent room is worth surfacing.
func (reg *Registry) GetRoom(id string) *Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.rooms[id]
}

// JoinRoom appends an identity to a room preserving join order
func (reg *Registry) JoinRoom(id, identity string, sender Sender) (*Room, error) {
	room := reg.GetRoom(id)
	if room == nil {
		return nil, reject("room_not_found")
	}
	if err := room.AddMember(identity, sender); err != nil {
		return nil, err
	}
	return room, nil
}

// Leave removes an identity from a room. The room closes itself under
// its own lock when the last human leaves (see Room.RemoveMember), so by
// the time it is deleted here any concurrent join already sees it closed.
func (reg *Registry) Leave(id, identity string) {
	room := reg.GetRoom(id)
	if room == nil {
		return
	}
	if room.RemoveMember(identity) == 0 {
		reg.mu.Lock()
		delete(reg.rooms, id)
		reg.mu.Unlock()
	}
}

// ListRooms returns info about all active rooms
func (reg *Registry) ListRooms() []RoomInfo {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	list := make([]RoomInfo, 0, len(reg.rooms))
	for id, room := range reg.rooms {
		list = append(list, RoomInfo{RoomID: id, Mode: string(room.Mode), Players: room.MemberCount()})
	}
	return list
}

// RoomCount returns the number of active rooms
func (reg *Registry) RoomCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}
