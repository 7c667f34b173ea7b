package api

import (
	"fmt"
	"net/http"

	"github.com/dgallion1/clearpath/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

// queueRebuild submits a rebuild and renders the 202 reply, merging extra
// into the body.
func (s *Server) queueRebuild(w http.ResponseWriter, extra map[string]any) {
	if s.orchestrator == nil {
		jsonError(w, "index rebuilds are not enabled", http.StatusServiceUnavailable)
		return
	}
	job, err := s.orchestrator.Submit()
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	body := map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/index/jobs/%s", job.ID),
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusAccepted, body)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	s.queueRebuild(w, nil)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}
