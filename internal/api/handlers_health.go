package api

import (
	"net/http"
	"time"

	"github.com/HenGPlayZ/lavalink-status/internal/monitor"
)

// HealthResponse reports the dashboard's own state and the cached flags.
type HealthResponse struct {
	Status        string                        `json:"status"`
	UptimeSeconds int64                         `json:"uptime_seconds"`
	Nodes         map[string]monitor.NodeStatus `json:"nodes"`
}

// GetHealth handles GET /healthz. It never contacts upstream.
func (h *APIHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := h.Store.Snapshot()
	nodes := make(map[string]monitor.NodeStatus, len(h.Nodes))

	// "degraded" if any node is not online
	status := "healthy"
	for _, node := range h.Nodes {
		st := snapshot[node.Version]
		if st.Liveness == "" {
			st.Liveness = monitor.Unknown
		}
		nodes[node.Version.Key()] = st
		if st.Liveness != monitor.Online {
			status = "degraded"
		}
	}

	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:        status,
		UptimeSeconds: int64(time.Since(h.StartedAt).Seconds()),
		Nodes:         nodes,
	})
}
