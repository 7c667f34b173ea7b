package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dgallion1/clearpath/internal/llm"
	"github.com/dgallion1/clearpath/internal/rag"
)

type queryRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id"`
}

func decodeQuery(w http.ResponseWriter, r *http.Request) (queryRequest, bool) {
	var req queryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		detailError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return req, false
	}
	if strings.TrimSpace(req.Question) == "" {
		detailError(w, rag.ErrEmptyQuestion.Error(), http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// isClientError reports failures caused by the request or the service's
// configuration rather than by an upstream or internal fault.
func isClientError(err error) bool {
	return errors.Is(err, rag.ErrEmptyQuestion) || errors.Is(err, llm.ErrMissingAPIKey)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuery(w, r)
	if !ok {
		return
	}

	answer, err := s.engine.Ask(r.Context(), req.Question, req.ConversationID)
	if err != nil {
		if isClientError(err) {
			detailError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.log.Error("query failed", "error", err)
		detailError(w, "Internal server error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

type streamEvent struct {
	Type           string `json:"type"`
	Content        string `json:"content,omitempty"`
	Metadata       any    `json:"metadata,omitempty"`
	Sources        any    `json:"sources,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// handleQueryStream answers over Server-Sent Events: one "token" event per
// text delta, then a "done" event carrying metadata and sources, or an
// "error" event that ends the stream.
func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQuery(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		detailError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(ev streamEvent) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	answer, err := s.engine.AskStream(r.Context(), req.Question, req.ConversationID, func(tok string) error {
		return send(streamEvent{Type: "token", Content: tok})
	})
	if err != nil {
		if r.Context().Err() == nil {
			s.log.Error("stream query failed", "error", err)
		}
		_ = send(streamEvent{Type: "error", Content: err.Error()})
		return
	}
	_ = send(streamEvent{
		Type:           "done",
		Metadata:       answer.Metadata,
		Sources:        answer.Sources,
		ConversationID: answer.ConversationID,
	})
}
