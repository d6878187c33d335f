package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/dvalderas/flowtree/pkg/codec"
	"github.com/dvalderas/flowtree/pkg/flow"
	"github.com/dvalderas/flowtree/pkg/graph"
	"github.com/dvalderas/flowtree/pkg/registry"
	"github.com/dvalderas/flowtree/pkg/validator"
)

// handleCreateFlow creates an empty flow in a project.
func (s *Server) handleCreateFlow(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["project"]

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flowID, err := s.projects.CreateFlow(projectID, req.Name)
	if err != nil {
		if errors.Is(err, registry.ErrProjectNotFound) {
			s.respondError(w, http.StatusNotFound, "project not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to create flow")
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"id":      flowID,
	})
}

// handleGetFlow returns the stored flow definition, or an empty skeleton
// when none has been saved yet.
func (s *Server) handleGetFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	definition, err := s.projects.GetFlow(vars["project"], vars["flow"])
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to get flow")
		return
	}
	s.respondJSON(w, http.StatusOK, definition)
}

// handleSaveFlow persists a flow definition together with its exported
// tree document.
func (s *Server) handleSaveFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var definition flow.Flow
	if err := json.NewDecoder(r.Body).Decode(&definition); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid flow definition")
		return
	}

	if err := s.projects.SaveFlow(vars["project"], vars["flow"], &definition); err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to save flow")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// handleRenameFlow renames a flow, returning its new id.
func (s *Server) handleRenameFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "flow name is required")
		return
	}

	newID, err := s.projects.RenameFlow(vars["project"], vars["flow"], req.Name)
	if err != nil {
		if errors.Is(err, registry.ErrFlowNotFound) {
			s.respondError(w, http.StatusNotFound, "flow not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to rename flow")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"id":      newID,
	})
}

// handleDeleteFlow removes a flow.
func (s *Server) handleDeleteFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := s.projects.DeleteFlow(vars["project"], vars["flow"]); err != nil {
		if errors.Is(err, registry.ErrFlowNotFound) {
			s.respondError(w, http.StatusNotFound, "flow not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to delete flow")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// handleValidateFlow runs structural validation on the posted definition.
func (s *Server) handleValidateFlow(w http.ResponseWriter, r *http.Request) {
	var definition flow.Flow
	if err := json.NewDecoder(r.Body).Decode(&definition); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid flow definition")
		return
	}

	s.respondJSON(w, http.StatusOK, validator.Validate(&definition))
}

// handleExportFlow converts the posted definition into its tree document.
func (s *Server) handleExportFlow(w http.ResponseWriter, r *http.Request) {
	var definition flow.Flow
	if err := json.NewDecoder(r.Body).Decode(&definition); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid flow definition")
		return
	}

	text, doc := codec.Export(&definition)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"yaml":      text,
		"structure": doc.Interface(),
	})
}

// handleImportFlow parses a posted tree document back into a flow.
func (s *Server) handleImportFlow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		YAML string `json:"yaml"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	definition, err := codec.Import(req.YAML)
	if err != nil {
		var importErr *codec.ImportError
		if errors.As(err, &importErr) {
			s.respondError(w, http.StatusBadRequest, importErr.Message)
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to import document")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"flow_data": definition,
	})
}

// handleExportStoredFlow exports a stored flow by id.
func (s *Server) handleExportStoredFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	definition, err := s.projects.GetFlow(vars["project"], vars["flow"])
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to get flow")
		return
	}

	text, doc := codec.Export(definition)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"yaml":      text,
		"structure": doc.Interface(),
	})
}

// handleFlowPaths enumerates the root-to-terminal paths of a stored flow.
func (s *Server) handleFlowPaths(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	definition, err := s.projects.GetFlow(vars["project"], vars["flow"])
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to get flow")
		return
	}

	opts := s.pathOptions(r)
	paths := graph.EnumeratePaths(definition, opts...)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"paths":   paths,
	})
}

// pathOptions builds the enumeration limits from the configuration and the
// request's query parameters, the query winning.
func (s *Server) pathOptions(r *http.Request) []graph.PathOption {
	maxPaths := s.pathLimits.MaxPaths
	maxDepth := s.pathLimits.MaxDepth

	if raw := r.URL.Query().Get("max_paths"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			maxPaths = value
		}
	}
	if raw := r.URL.Query().Get("max_depth"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			maxDepth = value
		}
	}

	var opts []graph.PathOption
	if maxPaths > 0 {
		opts = append(opts, graph.WithMaxPaths(maxPaths))
	}
	if maxDepth > 0 {
		opts = append(opts, graph.WithMaxDepth(maxDepth))
	}
	return opts
}
