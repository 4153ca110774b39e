package httpserver

import (
	"net/http"
	"strings"

	"github.com/Gwilymm/mds-api-class/internal/origin"
)

// withOriginPolicy guards browser-facing GET endpoints. Requests without an
// Origin header (curl, same-origin fetches in some browsers) pass through;
// cross-origin requests must match the allowlist or the request host, and
// allowed ones get CORS headers so a separately hosted frontend works.
func (s *Server) withOriginPolicy(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Origin"))
		if header == "" {
			next(w, r)
			return
		}

		normalized, host, ok := origin.Normalize(header)
		if !ok || !origin.IsAllowed(normalized, host, r.Host, s.cfg.AllowedOrigins) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", header)
		w.Header().Set("Vary", "Origin")
		next(w, r)
	}
}
