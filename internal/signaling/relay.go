package signaling

import (
	"errors"
	"log/slog"

	"github.com/Gwilymm/mds-api-class/internal/metrics"
	"github.com/Gwilymm/mds-api-class/internal/registry"
)

// ErrTargetNotFound is returned when a relay target id has no live connection.
var ErrTargetNotFound = errors.New("relay target not found")

// Relay forwards opaque signaling frames to their recipients. It is
// transport, not a protocol peer: payloads are never inspected and never
// rewritten.
type Relay struct {
	users   *registry.Users
	rooms   *registry.Rooms
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewRelay(users *registry.Users, rooms *registry.Rooms, m *metrics.Metrics, log *slog.Logger) *Relay {
	return &Relay{users: users, rooms: rooms, metrics: m, log: log}
}

// DeliverToUser forwards raw byte-for-byte to the connection currently bound
// to targetID. A missing target is reported, never fatal, and never falls
// back to a broadcast.
func (r *Relay) DeliverToUser(targetID string, raw []byte) error {
	conn, ok := r.users.ConnByID(targetID)
	if !ok {
		r.metrics.Inc(eventRelayTargetNotFound)
		r.log.Info("relay target not found", "target_id", targetID)
		return ErrTargetNotFound
	}
	if err := conn.Send(raw); err != nil {
		// The target's socket died under us; its close handler removes it.
		r.metrics.Inc(eventRelayTargetNotFound)
		return ErrTargetNotFound
	}
	r.metrics.Inc(eventRelayDelivered)
	return nil
}

// DeliverToRoom forwards raw to every member of the room except the sender.
// Returns the number of members the frame was queued for.
func (r *Relay) DeliverToRoom(roomID string, sender registry.Conn, raw []byte) int {
	if !r.rooms.Exists(roomID) {
		r.metrics.Inc(eventRelayTargetNotFound)
		r.log.Info("relay to unknown room", "room_id", roomID)
		return 0
	}

	delivered := 0
	for _, conn := range r.rooms.MembersExcept(roomID, sender) {
		if err := conn.Send(raw); err != nil {
			continue
		}
		delivered++
	}
	if delivered > 0 {
		r.metrics.Add(eventRelayDelivered, uint64(delivered))
	} else {
		r.metrics.Inc(eventRelayTargetNotFound)
		r.log.Info("room relay had no recipients", "room_id", roomID)
	}
	return delivered
}
