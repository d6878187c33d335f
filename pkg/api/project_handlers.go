package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dvalderas/flowtree/pkg/registry"
)

// handleListProjects returns every project with its flows.
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.projects.ListProjects()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"projects": summaries,
	})
}

// handleCreateProject creates a project.
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "project name is required")
		return
	}

	projectID, err := s.projects.CreateProject(req.Name, req.Description)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to create project")
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"id":      projectID,
	})
}

// handleRenameProject updates a project's display name.
func (s *Server) handleRenameProject(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["project"]

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "project name is required")
		return
	}

	if err := s.projects.RenameProject(projectID, req.Name); err != nil {
		if errors.Is(err, registry.ErrProjectNotFound) {
			s.respondError(w, http.StatusNotFound, "project not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to rename project")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// handleDeleteProject removes a project and all of its flows.
func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["project"]

	if err := s.projects.DeleteProject(projectID); err != nil {
		if errors.Is(err, registry.ErrProjectNotFound) {
			s.respondError(w, http.StatusNotFound, "project not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to delete project")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
