package registry

import (
	"sort"
	"sync"
)

// Position is a user's last reported location.
type Position struct {
	Lat float64  `json:"lat"`
	Lng float64  `json:"lng"`
	Alt *float64 `json:"altitude,omitempty"`
}

// User is one live participant: a logical id bound to the connection that
// last produced a presence update for it.
type User struct {
	ID       string
	Name     string
	Position Position
	Conn     Conn
}

// PresenceEntry is the public projection of a User, as served by the snapshot
// endpoint and the presence broadcast.
type PresenceEntry struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Position Position `json:"position"`
}

// Users maps logical user ids to their live connection and last-known
// presence. At most one entry exists per id; an update from a new connection
// rebinds the id (last writer wins).
type Users struct {
	mu    sync.Mutex
	users map[string]*User
}

func NewUsers() *Users {
	return &Users{users: make(map[string]*User)}
}

// Upsert creates the user on first sight and overwrites name/position on
// subsequent updates. When the id is already bound to a different live
// connection the old one is superseded and returned so the caller can close
// it; this supports reconnect-with-same-id without duplicate delivery.
func (u *Users) Upsert(id, name string, pos Position, conn Conn) (superseded Conn) {
	u.mu.Lock()
	defer u.mu.Unlock()

	existing, ok := u.users[id]
	if !ok {
		u.users[id] = &User{ID: id, Name: name, Position: pos, Conn: conn}
		return nil
	}

	if existing.Conn != conn {
		superseded = existing.Conn
	}
	existing.Name = name
	existing.Position = pos
	existing.Conn = conn
	return superseded
}

// RemoveByConn removes the user bound to conn, if any. Safe to call after the
// user was already removed (explicit disconnect racing the socket close).
func (u *Users) RemoveByConn(conn Conn) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	for id, user := range u.users {
		if user.Conn == conn {
			delete(u.users, id)
			return true
		}
	}
	return false
}

// RemoveByID removes the user with the given id, if present.
func (u *Users) RemoveByID(id string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.users[id]; !ok {
		return false
	}
	delete(u.users, id)
	return true
}

// ConnByID returns the connection currently bound to id.
func (u *Users) ConnByID(id string) (Conn, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	user, ok := u.users[id]
	if !ok {
		return nil, false
	}
	return user.Conn, true
}

// Snapshot returns a point-in-time projection of all users, sorted by id so
// the order is stable.
func (u *Users) Snapshot() []PresenceEntry {
	u.mu.Lock()
	defer u.mu.Unlock()

	entries := make([]PresenceEntry, 0, len(u.users))
	for _, user := range u.users {
		entries = append(entries, PresenceEntry{ID: user.ID, Name: user.Name, Position: user.Position})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

// Len reports the number of live users.
func (u *Users) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.users)
}
