// Package api provides the HTTP API server for flowtree.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/dvalderas/flowtree/pkg/config"
	"github.com/dvalderas/flowtree/pkg/logging"
	"github.com/dvalderas/flowtree/pkg/middleware"
	"github.com/dvalderas/flowtree/pkg/registry"
)

// Server represents the HTTP API server
type Server struct {
	config     *config.Config
	router     *mux.Router
	server     *http.Server
	projects   registry.ProjectRegistry
	logger     logging.Logger
	pathLimits config.ValidationConfig
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, projects registry.ProjectRegistry, logger logging.Logger) *Server {
	s := &Server{
		config:     cfg,
		router:     mux.NewRouter(),
		projects:   projects,
		logger:     logger,
		pathLimits: cfg.Validation,
	}

	s.setupRoutes()
	return s
}

// Handler returns the configured root handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", logging.F("addr", addr))

	var err error
	if s.config.Server.TLS.Enabled {
		err = s.server.ListenAndServeTLS(
			s.config.Server.TLS.CertFile,
			s.config.Server.TLS.KeyFile,
		)
	} else {
		err = s.server.ListenAndServe()
	}

	// If the server was shut down gracefully, this error is expected
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)

	// Stateless flow tooling: validation and the two codec directions.
	flows := api.PathPrefix("/flows").Subrouter()
	flows.HandleFunc("/validate", s.handleValidateFlow).Methods(http.MethodPost, http.MethodOptions)
	flows.HandleFunc("/export", s.handleExportFlow).Methods(http.MethodPost, http.MethodOptions)
	flows.HandleFunc("/import", s.handleImportFlow).Methods(http.MethodPost, http.MethodOptions)

	// Project and stored-flow management.
	projects := api.PathPrefix("/projects").Subrouter()
	projects.HandleFunc("", s.handleListProjects).Methods(http.MethodGet, http.MethodOptions)
	projects.HandleFunc("", s.handleCreateProject).Methods(http.MethodPost, http.MethodOptions)
	projects.HandleFunc("/{project}", s.handleRenameProject).Methods(http.MethodPut, http.MethodOptions)
	projects.HandleFunc("/{project}", s.handleDeleteProject).Methods(http.MethodDelete, http.MethodOptions)
	projects.HandleFunc("/{project}/flows", s.handleCreateFlow).Methods(http.MethodPost, http.MethodOptions)
	projects.HandleFunc("/{project}/flows/{flow}", s.handleGetFlow).Methods(http.MethodGet, http.MethodOptions)
	projects.HandleFunc("/{project}/flows/{flow}", s.handleRenameFlow).Methods(http.MethodPut, http.MethodOptions)
	projects.HandleFunc("/{project}/flows/{flow}", s.handleDeleteFlow).Methods(http.MethodDelete, http.MethodOptions)
	projects.HandleFunc("/{project}/flows/{flow}/save", s.handleSaveFlow).Methods(http.MethodPost, http.MethodOptions)
	projects.HandleFunc("/{project}/flows/{flow}/export", s.handleExportStoredFlow).Methods(http.MethodGet, http.MethodOptions)
	projects.HandleFunc("/{project}/flows/{flow}/paths", s.handleFlowPaths).Methods(http.MethodGet, http.MethodOptions)

	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(middleware.NoCache)
	s.router.Use(middleware.CORS)
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// respondJSON writes a JSON response with the given status code.
func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.F("error", err.Error()))
	}
}

// respondError writes a JSON error payload.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
