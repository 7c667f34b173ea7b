package api

import (
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"simple_model":  s.cfg.SimpleModel,
		"complex_model": s.cfg.ComplexModel,
		"stats":         s.stats.Snapshot(),
	})
}
