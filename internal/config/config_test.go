package config

import (
	"log/slog"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(envMap(nil), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.ListenAddr != DefaultListenAddr {
		t.Fatalf("ListenAddr = %q, want %q", cfg.ListenAddr, DefaultListenAddr)
	}
	if cfg.Mode != ModeDev {
		t.Fatalf("Mode = %q, want dev", cfg.Mode)
	}
	if cfg.LogFormat != LogFormatText {
		t.Fatalf("LogFormat = %q, want text (dev default)", cfg.LogFormat)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v, want debug (dev default)", cfg.LogLevel)
	}
	if cfg.MaxMessageBytes != DefaultMaxMessageBytes {
		t.Fatalf("MaxMessageBytes = %d, want %d", cfg.MaxMessageBytes, DefaultMaxMessageBytes)
	}
	if len(cfg.ICEServers) != 1 || cfg.ICEServers[0].URLs[0] != DefaultSTUNURL {
		t.Fatalf("expected default STUN server, got %+v", cfg.ICEServers)
	}
	if cfg.TURNREST.Enabled() {
		t.Fatalf("TURN REST must be disabled without a shared secret")
	}
}

func TestLoad_ProdModeLogDefaults(t *testing.T) {
	cfg, err := load(envMap(map[string]string{envVarMode: "prod"}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogFormat != LogFormatJSON {
		t.Fatalf("LogFormat = %q, want json (prod default)", cfg.LogFormat)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v, want info (prod default)", cfg.LogLevel)
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	env := envMap(map[string]string{envVarListenAddr: "127.0.0.1:9999"})
	cfg, err := load(env, []string{"-listen-addr", "127.0.0.1:4000", "-log-level", "warn"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:4000" {
		t.Fatalf("ListenAddr = %q, want flag value", cfg.ListenAddr)
	}
	if cfg.LogLevel != slog.LevelWarn {
		t.Fatalf("LogLevel = %v, want warn", cfg.LogLevel)
	}
}

func TestLoad_Limits(t *testing.T) {
	env := envMap(map[string]string{
		envVarMaxMessageBytes:      "1024",
		envVarMaxMessagesPerSecond: "10",
		envVarWSIdleTimeout:        "30s",
		envVarWSPingInterval:       "5s",
		envVarSendQueueBytes:       "2048",
		envVarAllowedOrigins:       "https://app.example.com, https://other.example.com",
	})
	cfg, err := load(env, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxMessageBytes != 1024 || cfg.MaxMessagesPerSecond != 10 {
		t.Fatalf("unexpected message limits: %+v", cfg)
	}
	if cfg.WSIdleTimeout != 30*time.Second || cfg.WSPingInterval != 5*time.Second {
		t.Fatalf("unexpected ws timeouts: %+v", cfg)
	}
	if cfg.SendQueueBytes != 2048 {
		t.Fatalf("SendQueueBytes = %d, want 2048", cfg.SendQueueBytes)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://app.example.com" {
		t.Fatalf("unexpected origins: %v", cfg.AllowedOrigins)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "bad mode", env: map[string]string{envVarMode: "staging"}},
		{name: "bad log format", env: map[string]string{envVarLogFormat: "xml"}},
		{name: "bad log level", args: []string{"-log-level", "verbose"}},
		{name: "bad duration", env: map[string]string{envVarWSIdleTimeout: "soon"}},
		{name: "bad int", env: map[string]string{envVarMaxMessageBytes: "lots"}},
		{name: "zero send queue", env: map[string]string{envVarSendQueueBytes: "0"}},
		{name: "bad ice json", env: map[string]string{envVarICEServersJSON: "{"}},
		{name: "ice server without urls", env: map[string]string{envVarICEServersJSON: `[{"username":"u"}]`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := load(envMap(tt.env), tt.args); err == nil {
				t.Fatalf("expected load to fail")
			}
		})
	}
}

func TestLoad_ICEServersJSON(t *testing.T) {
	env := envMap(map[string]string{
		envVarICEServersJSON: `[{"urls":["stun:stun.example.com"]},{"urls":["turn:turn.example.com"],"username":"u","credential":"p"}]`,
	})
	cfg, err := load(env, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.ICEServers) != 2 {
		t.Fatalf("expected 2 ICE servers, got %d", len(cfg.ICEServers))
	}
	if cfg.ICEServers[1].Username != "u" {
		t.Fatalf("expected TURN username to round-trip, got %+v", cfg.ICEServers[1])
	}
}

func TestLoad_ICEServersShorthand(t *testing.T) {
	env := envMap(map[string]string{
		envVarSTUNURLs:       "stun:a.example.com, stun:b.example.com",
		envVarTURNURLs:       "turn:t.example.com",
		envVarTURNUsername:   "u",
		envVarTURNCredential: "p",
	})
	cfg, err := load(env, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.ICEServers) != 2 {
		t.Fatalf("expected 2 ICE servers, got %d", len(cfg.ICEServers))
	}
	if len(cfg.ICEServers[0].URLs) != 2 {
		t.Fatalf("expected 2 STUN urls, got %v", cfg.ICEServers[0].URLs)
	}
	cred, _ := cfg.ICEServers[1].Credential.(string)
	if cred != "p" {
		t.Fatalf("expected TURN credential, got %+v", cfg.ICEServers[1])
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []LogFormat{LogFormatText, LogFormatJSON} {
		logger, err := NewLogger(Config{LogFormat: format, LogLevel: slog.LevelInfo})
		if err != nil || logger == nil {
			t.Fatalf("NewLogger(%q) = %v, %v", format, logger, err)
		}
	}
	if _, err := NewLogger(Config{LogFormat: "yaml"}); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}
