// Package config loads the relay configuration from environment variables
// with command-line flag overrides, and constructs the process logger.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
)

const (
	envVarListenAddr      = "PRESENCE_RELAY_LISTEN_ADDR"
	envVarMode            = "PRESENCE_RELAY_MODE"
	envVarLogFormat       = "PRESENCE_RELAY_LOG_FORMAT"
	envVarLogLevel        = "PRESENCE_RELAY_LOG_LEVEL"
	envVarShutdownTimeout = "PRESENCE_RELAY_SHUTDOWN_TIMEOUT"
	envVarStaticDir       = "PRESENCE_RELAY_STATIC_DIR"
	envVarAllowedOrigins  = "ALLOWED_ORIGINS"

	// WebSocket hardening knobs.
	envVarMaxMessageBytes      = "MAX_SIGNALING_MESSAGE_BYTES"
	envVarMaxMessagesPerSecond = "MAX_SIGNALING_MESSAGES_PER_SECOND"
	envVarWSIdleTimeout        = "SIGNALING_WS_IDLE_TIMEOUT"
	envVarWSPingInterval       = "SIGNALING_WS_PING_INTERVAL"
	envVarSendQueueBytes       = "SIGNALING_SEND_QUEUE_BYTES"

	// ICE server configuration surfaced to browsers via /webrtc/ice.
	envVarICEServersJSON = "ICE_SERVERS_JSON"
	envVarSTUNURLs       = "STUN_URLS"
	envVarTURNURLs       = "TURN_URLS"
	envVarTURNUsername   = "TURN_USERNAME"
	envVarTURNCredential = "TURN_CREDENTIAL"

	// coturn TURN REST (ephemeral) credentials.
	envVarTURNRESTSharedSecret   = "TURN_REST_SHARED_SECRET"
	envVarTURNRESTTTLSeconds     = "TURN_REST_TTL_SECONDS"
	envVarTURNRESTUsernamePrefix = "TURN_REST_USERNAME_PREFIX"
)

const (
	DefaultListenAddr           = "127.0.0.1:3000"
	DefaultShutdownTimeout      = 15 * time.Second
	DefaultMaxMessageBytes      = int64(64 * 1024)
	DefaultMaxMessagesPerSec    = int64(50)
	DefaultWSIdleTimeout        = 60 * time.Second
	DefaultWSPingInterval       = 20 * time.Second
	DefaultSendQueueBytes       = 1 << 20 // 1MiB
	DefaultSTUNURL              = "stun:stun.l.google.com:19302"
	DefaultTURNRESTTTLSeconds   = int64(3600)
	DefaultTURNRESTPrefix       = "relay"
	DefaultMode            Mode = ModeDev
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type TurnRESTConfig struct {
	SharedSecret   string
	TTLSeconds     int64
	UsernamePrefix string
}

func (c TurnRESTConfig) Enabled() bool {
	return strings.TrimSpace(c.SharedSecret) != ""
}

type Config struct {
	ListenAddr      string
	Mode            Mode
	LogFormat       LogFormat
	LogLevel        slog.Level
	ShutdownTimeout time.Duration
	AllowedOrigins  []string

	// StaticDir is served at / when non-empty (the map frontend).
	StaticDir string

	MaxMessageBytes      int64
	MaxMessagesPerSecond int64
	WSIdleTimeout        time.Duration
	WSPingInterval       time.Duration
	SendQueueBytes       int

	ICEServers []webrtc.ICEServer
	TURNREST   TurnRESTConfig
}

func Load(args []string) (Config, error) {
	return load(os.LookupEnv, args)
}

// load is the testable entry point: env lookup and argv are injected.
func load(lookup func(string) (string, bool), args []string) (Config, error) {
	mode := envOrDefault(lookup, envVarMode, string(DefaultMode))
	logFormat := envOrDefault(lookup, envVarLogFormat, defaultLogFormatForMode(mode))
	logLevel := envOrDefault(lookup, envVarLogLevel, defaultLogLevelForMode(mode))

	listenAddr := envOrDefault(lookup, envVarListenAddr, DefaultListenAddr)
	staticDir := envOrDefault(lookup, envVarStaticDir, "")

	fs := flag.NewFlagSet("presence-relay", flag.ContinueOnError)
	fs.StringVar(&listenAddr, "listen-addr", listenAddr, "TCP address to listen on")
	fs.StringVar(&mode, "mode", mode, "dev or prod (selects log defaults)")
	fs.StringVar(&logFormat, "log-format", logFormat, "text or json")
	fs.StringVar(&logLevel, "log-level", logLevel, "debug, info, warn or error")
	fs.StringVar(&staticDir, "static-dir", staticDir, "directory of static frontend files (empty disables)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Config{
		ListenAddr: listenAddr,
		StaticDir:  staticDir,
	}

	switch Mode(mode) {
	case ModeDev, ModeProd:
		cfg.Mode = Mode(mode)
	default:
		return Config{}, fmt.Errorf("invalid mode %q (want dev or prod)", mode)
	}

	switch LogFormat(logFormat) {
	case LogFormatText, LogFormatJSON:
		cfg.LogFormat = LogFormat(logFormat)
	default:
		return Config{}, fmt.Errorf("invalid log format %q (want text or json)", logFormat)
	}

	level, err := parseLogLevel(logLevel)
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level

	cfg.ShutdownTimeout, err = envDurationOrDefault(lookup, envVarShutdownTimeout, DefaultShutdownTimeout)
	if err != nil {
		return Config{}, err
	}

	if raw := envOrDefault(lookup, envVarAllowedOrigins, ""); raw != "" {
		for _, entry := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(entry); trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	cfg.MaxMessageBytes, err = envInt64OrDefault(lookup, envVarMaxMessageBytes, DefaultMaxMessageBytes)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxMessagesPerSecond, err = envInt64OrDefault(lookup, envVarMaxMessagesPerSecond, DefaultMaxMessagesPerSec)
	if err != nil {
		return Config{}, err
	}
	cfg.WSIdleTimeout, err = envDurationOrDefault(lookup, envVarWSIdleTimeout, DefaultWSIdleTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.WSPingInterval, err = envDurationOrDefault(lookup, envVarWSPingInterval, DefaultWSPingInterval)
	if err != nil {
		return Config{}, err
	}
	queueBytes, err := envInt64OrDefault(lookup, envVarSendQueueBytes, DefaultSendQueueBytes)
	if err != nil {
		return Config{}, err
	}
	if queueBytes <= 0 {
		return Config{}, fmt.Errorf("%s must be > 0", envVarSendQueueBytes)
	}
	cfg.SendQueueBytes = int(queueBytes)

	cfg.ICEServers, err = loadICEServers(lookup)
	if err != nil {
		return Config{}, err
	}

	cfg.TURNREST = TurnRESTConfig{
		SharedSecret:   envOrDefault(lookup, envVarTURNRESTSharedSecret, ""),
		UsernamePrefix: envOrDefault(lookup, envVarTURNRESTUsernamePrefix, DefaultTURNRESTPrefix),
	}
	cfg.TURNREST.TTLSeconds, err = envInt64OrDefault(lookup, envVarTURNRESTTTLSeconds, DefaultTURNRESTTTLSeconds)
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadICEServers builds the browser-facing ICE server list: either an
// explicit JSON array or the STUN/TURN shorthand variables. With nothing
// configured the public Google STUN server is used, matching what the
// frontend historically hardcoded.
func loadICEServers(lookup func(string) (string, bool)) ([]webrtc.ICEServer, error) {
	if raw := envOrDefault(lookup, envVarICEServersJSON, ""); raw != "" {
		var servers []webrtc.ICEServer
		if err := json.Unmarshal([]byte(raw), &servers); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", envVarICEServersJSON, err)
		}
		for i, server := range servers {
			if len(server.URLs) == 0 {
				return nil, fmt.Errorf("invalid %s: server %d has no urls", envVarICEServersJSON, i)
			}
		}
		return servers, nil
	}

	var servers []webrtc.ICEServer
	if raw := envOrDefault(lookup, envVarSTUNURLs, ""); raw != "" {
		servers = append(servers, webrtc.ICEServer{URLs: splitAndTrim(raw)})
	}
	if raw := envOrDefault(lookup, envVarTURNURLs, ""); raw != "" {
		servers = append(servers, webrtc.ICEServer{
			URLs:       splitAndTrim(raw),
			Username:   envOrDefault(lookup, envVarTURNUsername, ""),
			Credential: envOrDefault(lookup, envVarTURNCredential, ""),
		})
	}
	if len(servers) == 0 {
		servers = []webrtc.ICEServer{{URLs: []string{DefaultSTUNURL}}}
	}
	return servers, nil
}

func NewLogger(cfg Config) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var handler slog.Handler
	switch cfg.LogFormat {
	case LogFormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	case LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}
	return slog.New(handler), nil
}

func defaultLogFormatForMode(mode string) string {
	if Mode(mode) == ModeProd {
		return string(LogFormatJSON)
	}
	return string(LogFormatText)
}

func defaultLogLevelForMode(mode string) string {
	if Mode(mode) == ModeProd {
		return "info"
	}
	return "debug"
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", raw)
	}
}

func splitAndTrim(raw string) []string {
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(entry); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envOrDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func envInt64OrDefault(lookup func(string) (string, bool), key string, fallback int64) (int64, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envDurationOrDefault(lookup func(string) (string, bool), key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}
