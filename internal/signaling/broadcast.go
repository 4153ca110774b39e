package signaling

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/Gwilymm/mds-api-class/internal/metrics"
	"github.com/Gwilymm/mds-api-class/internal/registry"
)

// Broadcaster pushes the public presence snapshot to every open connection,
// identified or not — a client that has not yet sent its first update still
// sees everyone else move.
type Broadcaster struct {
	users   *registry.Users
	metrics *metrics.Metrics
	log     *slog.Logger

	// pubMu makes a snapshot and its fan-out atomic as a pair: a publish
	// triggered by a later registry change can never enqueue its frame ahead
	// of an earlier one on any connection's FIFO queue.
	pubMu sync.Mutex

	mu    sync.Mutex
	conns map[string]registry.Conn
}

func NewBroadcaster(users *registry.Users, m *metrics.Metrics, log *slog.Logger) *Broadcaster {
	return &Broadcaster{
		users:   users,
		metrics: m,
		log:     log,
		conns:   make(map[string]registry.Conn),
	}
}

// Attach registers an open connection as a broadcast recipient.
func (b *Broadcaster) Attach(conn registry.Conn) {
	b.mu.Lock()
	b.conns[conn.ID()] = conn
	b.mu.Unlock()
}

// Detach drops a connection from the recipient set. Idempotent.
func (b *Broadcaster) Detach(conn registry.Conn) {
	b.mu.Lock()
	delete(b.conns, conn.ID())
	b.mu.Unlock()
}

// Publish serializes the snapshot once and sends the identical bytes to every
// attached connection. A failed send is logged and counted but not acted on
// here: the connection's own close handler is the single authority for
// removal, which avoids double-removal races.
//
// Sends are non-blocking queue enqueues, so holding pubMu across the whole
// fan-out is cheap.
func (b *Broadcaster) Publish() {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	snapshot := b.users.Snapshot()
	frame, err := json.Marshal(presenceSnapshotMessage{Type: kindPresenceSnapshot, Users: snapshot})
	if err != nil {
		b.log.Error("failed to encode presence snapshot", "err", err)
		return
	}

	b.mu.Lock()
	recipients := make([]registry.Conn, 0, len(b.conns))
	for _, conn := range b.conns {
		recipients = append(recipients, conn)
	}
	b.mu.Unlock()

	b.metrics.Inc(eventPresenceBroadcast)
	for _, conn := range recipients {
		if err := conn.Send(frame); err != nil {
			b.metrics.Inc(eventBroadcastSendFailed)
			b.log.Debug("presence broadcast send failed", "conn_id", conn.ID(), "err", err)
		}
	}
}
