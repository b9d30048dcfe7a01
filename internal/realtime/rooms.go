package realtime

import "sync"

// RoomIndex is the many-to-many mapping between connections and room
// identifiers. Rooms are implicit: an entry appears on first join and is
// deleted when its member set empties. Room ids are opaque strings named
// by the application layer's convention; the index assigns them no
// meaning and performs no authorization.
type RoomIndex struct {
	mu sync.RWMutex

	connectionsByRoom map[string]map[string]struct{}
	roomsByConnection map[string]map[string]struct{}
}

func NewRoomIndex() *RoomIndex {
	return &RoomIndex{
		connectionsByRoom: make(map[string]map[string]struct{}),
		roomsByConnection: make(map[string]map[string]struct{}),
	}
}

func (i *RoomIndex) Join(connectionId string, roomId string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.connectionsByRoom[roomId]; !ok {
		i.connectionsByRoom[roomId] = make(map[string]struct{})
	}
	i.connectionsByRoom[roomId][connectionId] = struct{}{}

	if _, ok := i.roomsByConnection[connectionId]; !ok {
		i.roomsByConnection[connectionId] = make(map[string]struct{})
	}
	i.roomsByConnection[connectionId][roomId] = struct{}{}
}

func (i *RoomIndex) Leave(connectionId string, roomId string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.leaveLocked(connectionId, roomId)
}

// LeaveAll removes the connection from every room it joined. Called on
// disconnect to prevent membership leaks.
func (i *RoomIndex) LeaveAll(connectionId string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for roomId := range i.roomsByConnection[connectionId] {
		i.leaveLocked(connectionId, roomId)
	}
}

func (i *RoomIndex) leaveLocked(connectionId string, roomId string) {
	rooms, ok := i.roomsByConnection[connectionId]
	if ok {
		delete(rooms, roomId)
		if len(rooms) == 0 {
			delete(i.roomsByConnection, connectionId)
		}
	}

	members, ok := i.connectionsByRoom[roomId]
	if !ok {
		return
	}

	delete(members, connectionId)
	if len(members) == 0 {
		delete(i.connectionsByRoom, roomId)
	}
}

func (i *RoomIndex) MembersOf(roomId string) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	members := i.connectionsByRoom[roomId]

	connectionIds := make([]string, 0, len(members))
	for connectionId := range members {
		connectionIds = append(connectionIds, connectionId)
	}

	return connectionIds
}

func (i *RoomIndex) RoomsOf(connectionId string) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	rooms := i.roomsByConnection[connectionId]

	roomIds := make([]string, 0, len(rooms))
	for roomId := range rooms {
		roomIds = append(roomIds, roomId)
	}

	return roomIds
}
