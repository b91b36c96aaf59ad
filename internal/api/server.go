package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/redraft/internal/config"
	"github.com/dgallion1/redraft/internal/editor"
	"github.com/dgallion1/redraft/internal/pipeline"
)

// Server is the HTTP API server for redraft.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	dispatcher   *editor.Dispatcher
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, dispatcher *editor.Dispatcher, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		dispatcher:   dispatcher,
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

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.RedraftAPIKey, s.log))

		r.Post("/api/edit", s.handleEdit)
		r.Post("/api/variations", s.handleVariations)

		r.Route("/api/edit/{jobID}", func(r chi.Router) {
			r.Get("/status", s.handleEditStatus)
			r.Get("/changes", s.handleListChanges)
			r.Post("/changes/accept_all", s.handleAcceptAll)
			r.Post("/changes/reject_all", s.handleRejectAll)
			r.Post("/changes/{groupID}/accept", s.handleAccept)
			r.Post("/changes/{groupID}/reject", s.handleReject)
			r.Get("/clean", s.handleCleanText)
			r.Post("/save", s.handleSave)
		})

		r.Get("/api/documents", s.handleListDocuments)
		r.Delete("/api/documents/{docID}", s.handleDeleteDocument)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
