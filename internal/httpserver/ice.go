package httpserver

import (
	"net/http"
	"strings"

	"github.com/pion/webrtc/v4"
)

// handleICEServers returns the ICE server list the browser should use for
// its RTCPeerConnection. When TURN REST is enabled, per-request ephemeral
// credentials are injected into every TURN entry.
func (s *Server) handleICEServers(w http.ResponseWriter, r *http.Request) {
	servers := s.cfg.ICEServers

	if s.turnGen != nil {
		creds, err := s.turnGen.GenerateRandom()
		if err != nil {
			s.log.Error("failed to generate TURN credentials", "err", err)
			WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to generate credentials"})
			return
		}
		servers = withTURNCredentials(servers, creds.Username, creds.Credential)
	}

	if servers == nil {
		servers = []webrtc.ICEServer{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"iceServers": servers})
}

func withTURNCredentials(servers []webrtc.ICEServer, username, credential string) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, len(servers))
	for i, server := range servers {
		out[i] = server
		if hasTURNURL(server) {
			out[i].Username = username
			out[i].Credential = credential
		}
	}
	return out
}

func hasTURNURL(server webrtc.ICEServer) bool {
	for _, raw := range server.URLs {
		u := strings.ToLower(strings.TrimSpace(raw))
		if strings.HasPrefix(u, "turn:") || strings.HasPrefix(u, "turns:") {
			return true
		}
	}
	return false
}
