package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

const metricName = "presence_relay_events_total"

// PrometheusHandler exposes the counter registry as a single counter metric
// with an `event` label. Counters are emitted in sorted order so scrapes are
// deterministic.
func PrometheusHandler(m *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			http.Error(w, "metrics not configured", http.StatusInternalServerError)
			return
		}

		snap := m.Snapshot()
		events := make([]string, 0, len(snap))
		for event := range snap {
			events = append(events, event)
		}
		sort.Strings(events)

		escaper := strings.NewReplacer(`\`, `\\`, `"`, `\"`)

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprintf(w, "# HELP %s Internal event counters.\n", metricName)
		fmt.Fprintf(w, "# TYPE %s counter\n", metricName)
		for _, event := range events {
			fmt.Fprintf(w, "%s{event=\"%s\"} %d\n", metricName, escaper.Replace(event), snap[event])
		}
	})
}
