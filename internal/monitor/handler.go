package monitor

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the monitor over HTTP:
//
//	GET /metrics         Prometheus exposition
//	GET /series          stored series names
//	GET /series/{name}   points of one series
func (m *Monitor) Handler() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	r.Get("/series", func(w http.ResponseWriter, r *http.Request) {
		names, err := m.Names(r.Context())
		if err != nil {
			m.writeError(w, err)
			return
		}
		if names == nil {
			names = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"run_id": m.runID, "series": names})
	})
	r.Get("/series/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		points, err := m.History(r.Context(), name)
		if err != nil {
			m.writeError(w, err)
			return
		}
		if len(points) == 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown series " + name})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"run_id": m.runID, "name": name, "points": points})
	})
	return r
}

func (m *Monitor) writeError(w http.ResponseWriter, err error) {
	m.logger.Error().Err(err).Str("event", "monitor.http_error").Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
