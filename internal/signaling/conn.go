package signaling

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Gwilymm/mds-api-class/internal/registry"
)

const wsWriteWait = 5 * time.Second

// wsConn wraps one live websocket and implements registry.Conn.
//
// Outbound frames go through a byte-bounded queue drained by a single writer
// goroutine, so a slow or dead peer never blocks a broadcast for everyone
// else. When the queue overflows the connection is considered dead and torn
// down; the close handler then performs registry removal.
type wsConn struct {
	id    string
	ws    *websocket.Conn
	queue *sendQueue
	log   *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

var _ registry.Conn = (*wsConn)(nil)

func newWSConn(ws *websocket.Conn, queueBytes int, log *slog.Logger) *wsConn {
	id := uuid.NewString()
	c := &wsConn{
		id:    id,
		ws:    ws,
		queue: newSendQueue(queueBytes),
		log:   log.With("conn_id", id),
		done:  make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *wsConn) ID() string { return c.id }

// Send queues a frame for delivery. It never blocks; a full queue means the
// peer cannot keep up and the connection is closed.
func (c *wsConn) Send(data []byte) error {
	ok, closed := c.queue.Enqueue(data)
	if ok {
		return nil
	}
	if !closed {
		c.log.Warn("send queue overflow, closing connection")
		_ = c.Close()
	}
	return registry.ErrConnClosed
}

// Close tears the connection down. Idempotent; the read loop observes the
// socket close and runs the registry cleanup exactly once.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.queue.Close()
		_ = c.ws.Close()
	})
	return nil
}

func (c *wsConn) writeLoop() {
	for {
		frame, ok := c.queue.Dequeue()
		if !ok {
			return
		}
		_ = c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
			c.log.Debug("write failed", "err", err)
			_ = c.Close()
			return
		}
	}
}

// keepalive pings the peer at the given interval until the connection closes.
// WriteControl is safe to call concurrently with the writer goroutine.
func (c *wsConn) keepalive(interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteWait)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}

// writeClose sends a close frame with the given code and reason, best effort.
func (c *wsConn) writeClose(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}

// sendQueue is a byte-bounded FIFO of outbound frames. Enqueue never blocks;
// Dequeue blocks until a frame arrives or the queue closes.
type sendQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond

	maxBytes int
	curBytes int
	pending  [][]byte
	closed   bool
}

func newSendQueue(maxBytes int) *sendQueue {
	q := &sendQueue{maxBytes: maxBytes}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

func (q *sendQueue) Enqueue(frame []byte) (ok, closed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false, true
	}
	if q.curBytes+len(frame) > q.maxBytes {
		return false, false
	}
	q.pending = append(q.pending, frame)
	q.curBytes += len(frame)
	q.notEmpty.Signal()
	return true, false
}

func (q *sendQueue) Dequeue() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.pending) == 0 {
		return nil, false
	}
	frame := q.pending[0]
	q.pending = q.pending[1:]
	q.curBytes -= len(frame)
	return frame, true
}

func (q *sendQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.pending = nil
	q.curBytes = 0
	q.mu.Unlock()
	q.notEmpty.Broadcast()
}
