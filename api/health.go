package api

import "net/http"

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.Health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	report, err := h.Health(r.Context())
	if err != nil {
		h.logger.Error("health check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}
