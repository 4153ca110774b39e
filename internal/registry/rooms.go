package registry

import "sync"

// Rooms tracks call-negotiation scopes. A room is a named set of participant
// connections; membership is what scopes signaling fan-out.
//
// Members are stored as connection references rather than user ids so a
// participant can join before it has sent its first presence update. Rooms
// are never deleted automatically; state is ephemeral by design and dies with
// the process.
type Rooms struct {
	mu    sync.Mutex
	rooms map[string]map[string]Conn
}

func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[string]map[string]Conn)}
}

// Create makes an empty room. It is idempotent: creating an existing room is
// a no-op returning false, since concurrent create races between clients are
// expected and harmless.
func (r *Rooms) Create(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[roomID]; ok {
		return false
	}
	r.rooms[roomID] = make(map[string]Conn)
	return true
}

// Join adds conn to the room, creating the room if it does not exist yet.
// Join-creates tolerates late or reordered create/join messages.
func (r *Rooms) Join(roomID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]Conn)
		r.rooms[roomID] = members
	}
	members[conn.ID()] = conn
}

// LeaveAll removes conn from every room. Called from the connection close
// handler.
func (r *Rooms) LeaveAll(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, members := range r.rooms {
		delete(members, conn.ID())
	}
}

// MembersExcept returns the connections of every room member except exclude.
// A missing room yields an empty slice.
func (r *Rooms) MembersExcept(roomID string, exclude Conn) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]Conn, 0, len(members))
	for id, conn := range members {
		if exclude != nil && id == exclude.ID() {
			continue
		}
		out = append(out, conn)
	}
	return out
}

// Exists reports whether the room has been created (explicitly or by join).
func (r *Rooms) Exists(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[roomID]
	return ok
}

// MemberCount reports the number of participants in the room.
func (r *Rooms) MemberCount(roomID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[roomID])
}
