package signaling

import (
	"errors"
	"log/slog"

	"github.com/Gwilymm/mds-api-class/internal/metrics"
	"github.com/Gwilymm/mds-api-class/internal/registry"
)

// session is the router's per-connection state: the connection itself plus
// the optional room affinity tag set by join/invite/accept. Everything else
// is stateless across frames.
type session struct {
	conn registry.Conn

	// roomAffinity routes signaling frames that carry neither an explicit
	// target id nor a room id.
	roomAffinity string
}

// Router dispatches inbound frames by kind. Presence and signaling are
// disjoint concerns: a signaling frame never perturbs presence state and a
// presence update never touches room membership.
type Router struct {
	users       *registry.Users
	rooms       *registry.Rooms
	broadcaster *Broadcaster
	relay       *Relay
	metrics     *metrics.Metrics
	log         *slog.Logger
}

func NewRouter(users *registry.Users, rooms *registry.Rooms, b *Broadcaster, r *Relay, m *metrics.Metrics, log *slog.Logger) *Router {
	return &Router{
		users:       users,
		rooms:       rooms,
		broadcaster: b,
		relay:       r,
		metrics:     m,
		log:         log,
	}
}

// HandleFrame routes one inbound frame. Malformed or unrecognized frames are
// dropped with a diagnostic; they never terminate the connection.
func (rt *Router) HandleFrame(sess *session, raw []byte) {
	env, err := parseEnvelope(raw)
	if err != nil {
		rt.metrics.Inc(eventFrameMalformed)
		rt.log.Info("dropping malformed frame", "conn_id", sess.conn.ID(), "err", err)
		return
	}

	switch env.Type {
	case kindPresenceUpdate:
		rt.handlePresenceUpdate(sess, env)
	case kindDisconnect:
		if rt.users.RemoveByID(env.ID) {
			rt.broadcaster.Publish()
		}
	case kindRoomCreate:
		rt.rooms.Create(env.RoomID)
	case kindRoomJoin:
		rt.rooms.Join(env.RoomID, sess.conn)
		sess.roomAffinity = env.RoomID
		rt.log.Debug("room join", "room_id", env.RoomID, "conn_id", sess.conn.ID(), "members", rt.rooms.MemberCount(env.RoomID))
	case kindCallInvite:
		rt.joinCallRoom(sess, env.RoomID)
		rt.deliver(sess, env.InvitedUserID, raw)
	case kindCallAccept:
		rt.joinCallRoom(sess, env.RoomID)
		rt.deliver(sess, env.InviterUserID, raw)
	case kindSignalOffer, kindSignalAnswer, kindSignalICECandidate:
		rt.routeSignal(sess, env, raw)
	default:
		rt.metrics.Inc(eventFrameUnknownKind)
		rt.log.Info("dropping frame with unknown kind", "conn_id", sess.conn.ID(), "kind", string(env.Type))
	}
}

func (rt *Router) handlePresenceUpdate(sess *session, env envelope) {
	superseded := rt.users.Upsert(env.ID, env.Name, env.registryPosition(), sess.conn)
	if superseded != nil {
		// Reconnect with the same id: close the stale socket so frames for
		// this user are never delivered twice.
		rt.metrics.Inc(eventRebindSuperseded)
		rt.log.Info("closing superseded connection", "user_id", env.ID, "old_conn_id", superseded.ID())
		_ = superseded.Close()
	}
	rt.broadcaster.Publish()
}

// joinCallRoom records call-scoped room membership for invite/accept frames
// that name a room.
func (rt *Router) joinCallRoom(sess *session, roomID string) {
	if roomID == "" {
		return
	}
	rt.rooms.Join(roomID, sess.conn)
	sess.roomAffinity = roomID
}

// deliver forwards raw to a single user and notifies the sender when the
// target has no live connection.
func (rt *Router) deliver(sess *session, targetID string, raw []byte) {
	if err := rt.relay.DeliverToUser(targetID, raw); errors.Is(err, ErrTargetNotFound) {
		_ = sess.conn.Send(encodeError("target_not_found", "user "+targetID+" is not connected"))
	}
}

func (rt *Router) routeSignal(sess *session, env envelope, raw []byte) {
	if env.TargetUserID != "" {
		rt.deliver(sess, env.TargetUserID, raw)
		return
	}

	roomID := env.RoomID
	if roomID == "" {
		roomID = sess.roomAffinity
	}
	if roomID == "" {
		rt.metrics.Inc(eventRelayNoRoute)
		rt.log.Info("dropping unaddressed signaling frame", "conn_id", sess.conn.ID(), "kind", string(env.Type))
		return
	}
	rt.relay.DeliverToRoom(roomID, sess.conn, raw)
}

// HandleOpen runs when a connection is established: it becomes a presence
// broadcast recipient immediately, before it has identified itself.
func (rt *Router) HandleOpen(sess *session) {
	rt.broadcaster.Attach(sess.conn)
}

// HandleClose runs when a connection's socket closes: the bound user (if any)
// leaves every snapshot and every room. Removal is idempotent; an explicit
// disconnect frame racing the socket close is harmless.
func (rt *Router) HandleClose(sess *session) {
	rt.broadcaster.Detach(sess.conn)
	rt.rooms.LeaveAll(sess.conn)
	if rt.users.RemoveByConn(sess.conn) {
		rt.broadcaster.Publish()
	}
}
