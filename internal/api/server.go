package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dgallion1/clearpath/internal/config"
	"github.com/dgallion1/clearpath/internal/llm"
	"github.com/dgallion1/clearpath/internal/pipeline"
	"github.com/dgallion1/clearpath/internal/rag"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for clearpath.
type Server struct {
	router       chi.Router
	engine       *rag.Engine
	orchestrator *pipeline.Orchestrator
	stats        *llm.Stats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. Admin routes are only
// mounted when cfg.AdminAPIKey is set.
func NewServer(engine *rag.Engine, orch *pipeline.Orchestrator, stats *llm.Stats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		engine:       engine,
		orchestrator: orch,
		stats:        stats,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(CORSMiddleware(s.cfg.CORSOrigins))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Post("/query", s.handleQuery)
	r.Post("/query/stream", s.handleQueryStream)
	r.Get("/conversations", s.handleListConversations)
	r.Get("/conversations/{conversationID}/messages", s.handleConversationMessages)
	r.Delete("/conversations/{conversationID}", s.handleDeleteConversation)

	// Authenticated endpoints.
	if s.cfg.AdminAPIKey != "" {
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(s.cfg.AdminAPIKey, s.log))

			r.Post("/api/index/rebuild", s.handleRebuild)
			r.Get("/api/index/jobs/{jobID}", s.handleJobStatus)
			r.Get("/api/stats/llm", s.handleLLMStats)

			r.Get("/api/documents", s.handleListDocuments)
			r.Post("/api/documents", s.handleUploadDocument)
			r.Delete("/api/documents/{name}", s.handleDeleteDocument)
		})
	}

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"index_loaded": st.IndexLoaded,
		"chunks_count": st.Chunks,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// detailError reports query-path failures as {"detail": msg}.
func detailError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"detail": msg})
}
