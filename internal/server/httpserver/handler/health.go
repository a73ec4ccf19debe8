package handler

import "net/http"

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, HealthResponse{Status: "ok", Node: h.cluster.Name()})
}

// handleReady reports 503 until the node listens and after it starts closing.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if !h.cluster.Ready() {
		h.writeJSON(w, r, http.StatusServiceUnavailable, HealthResponse{Status: "not_ready", Node: h.cluster.Name()})
		return
	}
	h.writeJSON(w, r, http.StatusOK, HealthResponse{Status: "ready", Node: h.cluster.Name()})
}
