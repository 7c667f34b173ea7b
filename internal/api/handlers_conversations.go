package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	list, err := s.engine.Conversations().List(r.Context())
	if err != nil {
		s.log.Error("list conversations", "error", err)
		detailError(w, "Internal server error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleConversationMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	msgs, ok, err := s.engine.Conversations().Messages(r.Context(), id)
	if err != nil {
		s.log.Error("read conversation", "conversation_id", id, "error", err)
		detailError(w, "Internal server error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		detailError(w, "Conversation not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"messages":        msgs,
	})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	if err := s.engine.Conversations().Clear(r.Context(), id); err != nil {
		s.log.Error("delete conversation", "conversation_id", id, "error", err)
		detailError(w, "Internal server error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
