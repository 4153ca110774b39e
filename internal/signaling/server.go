package signaling

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Gwilymm/mds-api-class/internal/metrics"
	"github.com/Gwilymm/mds-api-class/internal/origin"
	"github.com/Gwilymm/mds-api-class/internal/ratelimit"
)

// Config carries the per-connection limits for the websocket endpoint.
type Config struct {
	AllowedOrigins []string

	MaxMessageBytes      int64
	MaxMessagesPerSecond int64
	IdleTimeout          time.Duration
	PingInterval         time.Duration
	SendQueueBytes       int
}

// Server upgrades /ws requests and runs one read loop per connection.
type Server struct {
	cfg      Config
	router   *Router
	metrics  *metrics.Metrics
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewServer(cfg Config, router *Router, m *metrics.Metrics, log *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		router:  router,
		metrics: m,
		log:     log,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return s.originAllowed(r)
		},
	}
	return s
}

// originAllowed applies the same policy as the HTTP surface: no Origin header
// means a non-browser client and is accepted; browsers must match the
// allowlist or the request host.
func (s *Server) originAllowed(r *http.Request) bool {
	header := strings.TrimSpace(r.Header.Get("Origin"))
	if header == "" {
		return true
	}
	normalized, host, ok := origin.Normalize(header)
	if !ok {
		return false
	}
	return origin.IsAllowed(normalized, host, r.Host, s.cfg.AllowedOrigins)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	conn := newWSConn(ws, s.cfg.SendQueueBytes, s.log)
	s.metrics.Inc(eventConnOpened)
	s.log.Info("websocket connected", "conn_id", conn.ID(), "remote_addr", r.RemoteAddr)

	go conn.keepalive(s.cfg.PingInterval)
	s.readLoop(conn)
}

func (s *Server) readLoop(conn *wsConn) {
	sess := &session{conn: conn}
	s.router.HandleOpen(sess)
	defer func() {
		_ = conn.Close()
		s.router.HandleClose(sess)
		s.metrics.Inc(eventConnClosed)
		s.log.Info("websocket disconnected", "conn_id", conn.ID())
	}()

	ws := conn.ws
	if s.cfg.MaxMessageBytes > 0 {
		ws.SetReadLimit(s.cfg.MaxMessageBytes)
	}
	resetDeadline := func() {
		if s.cfg.IdleTimeout > 0 {
			_ = ws.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
	}
	resetDeadline()
	ws.SetPongHandler(func(string) error {
		resetDeadline()
		return nil
	})

	limiter := ratelimit.NewTokenBucket(nil, s.cfg.MaxMessagesPerSecond, s.cfg.MaxMessagesPerSecond)

	for {
		msgType, frame, err := ws.ReadMessage()
		if err != nil {
			// On a read-limit violation the library has already sent the 1009
			// close frame; every other read error means the socket is gone.
			return
		}
		resetDeadline()

		if msgType != websocket.TextMessage {
			conn.writeClose(websocket.CloseUnsupportedData, "expected text frames")
			return
		}
		if s.cfg.MaxMessagesPerSecond > 0 && !limiter.Allow(1) {
			conn.writeClose(websocket.ClosePolicyViolation, "message rate exceeded")
			return
		}

		s.router.HandleFrame(sess, frame)
	}
}
