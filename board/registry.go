package board

import "sync"

// RosterEntry is the wire shape of one room member in roster and
// join announcements.
type RosterEntry struct {
	SID      string `json:"sid"`
	UserName string `json:"user_name"`
}

// Registry tracks which connection is in which room, and the display
// name each connection picked. A connection is in at most one room;
// joining a new room supersedes the old membership. All operations are
// total: looking up a connection that never joined anything simply
// reports no room.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Conn // room key -> conn id -> conn
	where map[string]string          // conn id -> room key
	names map[string]string          // conn id -> display name
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[string]Conn),
		where: make(map[string]string),
		names: make(map[string]string),
	}
}

// Join moves conn into room, removing it from any previous room first.
func (r *Registry) Join(conn Conn, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(conn.ID())
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]Conn)
		r.rooms[room] = members
	}
	members[conn.ID()] = conn
	r.where[conn.ID()] = room
}

// CurrentRoom reports the room a connection is in, if any.
func (r *Registry) CurrentRoom(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.where[connID]
	return room, ok
}

// Members returns the connections in a room, skipping any ids in
// exclude.
func (r *Registry) Members(room string, exclude ...string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[room]
	out := make([]Conn, 0, len(members))
next:
	for id, conn := range members {
		for _, ex := range exclude {
			if id == ex {
				continue next
			}
		}
		out = append(out, conn)
	}
	return out
}

// LeaveAll removes the connection from whatever room it was in and
// returns the vacated room for announcement purposes.
func (r *Registry) LeaveAll(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.where[connID]
	if ok {
		r.removeLocked(connID)
	}
	return room, ok
}

// Forget is the disconnect cleanup: membership and display name are
// both dropped so nothing keeps referencing a dead connection.
func (r *Registry) Forget(connID string) (room string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok = r.where[connID]
	r.removeLocked(connID)
	delete(r.names, connID)
	return room, ok
}

// SetName records the display name announced for a connection.
func (r *Registry) SetName(connID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[connID] = name
}

// Name returns the display name for a connection, or "" if it never
// set one.
func (r *Registry) Name(connID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names[connID]
}

// Roster lists the other members of a room with their display names,
// for the initialUsers push to a newly active connection.
func (r *Registry) Roster(room, excludeID string) []RosterEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roster := make([]RosterEntry, 0, len(r.rooms[room]))
	for id := range r.rooms[room] {
		if id == excludeID {
			continue
		}
		roster = append(roster, RosterEntry{SID: id, UserName: r.names[id]})
	}
	return roster
}

// ActiveRooms reports the member count of every non-empty room.
func (r *Registry) ActiveRooms() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make(map[string]int, len(r.rooms))
	for room, members := range r.rooms {
		if len(members) > 0 {
			rooms[room] = len(members)
		}
	}
	return rooms
}

func (r *Registry) removeLocked(connID string) {
	room, ok := r.where[connID]
	if !ok {
		return
	}
	delete(r.where, connID)
	if members := r.rooms[room]; members != nil {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
}
