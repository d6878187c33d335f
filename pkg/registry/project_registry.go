package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dvalderas/flowtree/pkg/codec"
	"github.com/dvalderas/flowtree/pkg/flow"
	"github.com/dvalderas/flowtree/pkg/logging"
	"github.com/dvalderas/flowtree/pkg/storage"
)

// Errors returned by the project registry
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrFlowNotFound    = errors.New("flow not found")
)

// DefaultFlowName is the display name given to flows created without one.
const DefaultFlowName = "Nuevo flujo"

// ProjectRegistryService implements the ProjectRegistry interface on top of
// a storage provider.
type ProjectRegistryService struct {
	projectStore storage.ProjectStore
	flowStore    storage.FlowStore
	logger       logging.Logger
}

// NewProjectRegistry creates a new project registry service.
func NewProjectRegistry(provider storage.StorageProvider, logger logging.Logger) *ProjectRegistryService {
	return &ProjectRegistryService{
		projectStore: provider.GetProjectStore(),
		flowStore:    provider.GetFlowStore(),
		logger:       logger,
	}
}

// CreateProject creates a project and returns its generated id.
func (r *ProjectRegistryService) CreateProject(name, description string) (string, error) {
	projectID := UniqueSlug(Slugify(name, "proyecto"), func(candidate string) bool {
		_, err := r.projectStore.GetProject(candidate)
		return err == nil
	})

	now := time.Now().Unix()
	err := r.projectStore.SaveProject(storage.Project{
		ID:          projectID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create project: %w", err)
	}

	r.logger.Info("project created", logging.F("project_id", projectID))
	return projectID, nil
}

// RenameProject updates a project's display name.
func (r *ProjectRegistryService) RenameProject(projectID, name string) error {
	project, err := r.projectStore.GetProject(projectID)
	if errors.Is(err, storage.ErrProjectNotFound) {
		return ErrProjectNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get project: %w", err)
	}

	project.Name = name
	project.UpdatedAt = time.Now().Unix()
	if err := r.projectStore.SaveProject(project); err != nil {
		return fmt.Errorf("failed to rename project: %w", err)
	}
	return nil
}

// DeleteProject removes a project and all of its flows.
func (r *ProjectRegistryService) DeleteProject(projectID string) error {
	if _, err := r.projectStore.GetProject(projectID); err != nil {
		if errors.Is(err, storage.ErrProjectNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("failed to get project: %w", err)
	}

	if err := r.flowStore.DeleteProjectFlows(projectID); err != nil {
		return fmt.Errorf("failed to delete project flows: %w", err)
	}
	if err := r.projectStore.DeleteProject(projectID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	r.logger.Info("project deleted", logging.F("project_id", projectID))
	return nil
}

// ListProjects returns summaries of every project with its flows.
func (r *ProjectRegistryService) ListProjects() ([]ProjectSummary, error) {
	projects, err := r.projectStore.ListProjects()
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	summaries := make([]ProjectSummary, 0, len(projects))
	for _, project := range projects {
		flows, err := r.listFlows(project.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, ProjectSummary{
			ID:          project.ID,
			Name:        project.Name,
			Description: project.Description,
			CreatedAt:   project.CreatedAt,
			UpdatedAt:   project.UpdatedAt,
			Flows:       flows,
		})
	}
	return summaries, nil
}

// listFlows builds the flow summaries of one project. Stored definitions
// whose embedded id differs from the storage key are deduplicated, with
// the entry stored under its own id winning.
func (r *ProjectRegistryService) listFlows(projectID string) ([]FlowSummary, error) {
	stored, err := r.flowStore.ListFlows(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	byID := make(map[string]FlowSummary)
	var order []string
	for _, item := range stored {
		var definition flow.Flow
		if err := json.Unmarshal(item.Definition, &definition); err != nil {
			r.logger.Warn("skipping unreadable flow definition",
				logging.F("project_id", projectID),
				logging.F("flow_id", item.FlowID),
				logging.F("error", err.Error()))
			continue
		}

		dedupeKey := definition.ID
		if dedupeKey == "" {
			dedupeKey = item.FlowID
		}

		name := definition.Name
		if name == "" {
			name = item.FlowID
		}

		if existing, ok := byID[dedupeKey]; ok {
			// Prefer the copy stored under its own embedded id.
			if existing.ID == dedupeKey {
				continue
			}
		} else {
			order = append(order, dedupeKey)
		}
		byID[dedupeKey] = FlowSummary{ID: item.FlowID, Name: name}
	}

	flows := make([]FlowSummary, 0, len(order))
	for _, key := range order {
		flows = append(flows, byID[key])
	}
	return flows, nil
}

// CreateFlow creates an empty flow in a project and returns its id.
func (r *ProjectRegistryService) CreateFlow(projectID, name string) (string, error) {
	if _, err := r.projectStore.GetProject(projectID); err != nil {
		if errors.Is(err, storage.ErrProjectNotFound) {
			return "", ErrProjectNotFound
		}
		return "", fmt.Errorf("failed to get project: %w", err)
	}

	if name == "" {
		name = DefaultFlowName
	}

	flowID := UniqueSlug(Slugify(name, "flujo"), func(candidate string) bool {
		_, err := r.flowStore.GetFlow(projectID, candidate)
		return err == nil
	})

	definition := &flow.Flow{ID: flowID, Name: name, Nodes: []flow.Node{}, Edges: []flow.Edge{}}
	if err := r.SaveFlow(projectID, flowID, definition); err != nil {
		return "", err
	}

	r.logger.Info("flow created",
		logging.F("project_id", projectID),
		logging.F("flow_id", flowID))
	return flowID, nil
}

// GetFlow retrieves a flow definition. Missing flows yield an empty
// skeleton so the editor can start from a blank canvas.
func (r *ProjectRegistryService) GetFlow(projectID, flowID string) (*flow.Flow, error) {
	data, err := r.flowStore.GetFlow(projectID, flowID)
	if errors.Is(err, storage.ErrFlowNotFound) {
		return &flow.Flow{ID: flowID, Name: flowID, Nodes: []flow.Node{}, Edges: []flow.Edge{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flow: %w", err)
	}

	var definition flow.Flow
	if err := json.Unmarshal(data, &definition); err != nil {
		return nil, fmt.Errorf("failed to parse flow definition: %w", err)
	}
	return &definition, nil
}

// SaveFlow persists a flow definition together with its exported tree
// document, so both artifacts always describe the same revision.
func (r *ProjectRegistryService) SaveFlow(projectID, flowID string, definition *flow.Flow) error {
	data, err := json.MarshalIndent(definition, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal flow definition: %w", err)
	}

	document, _ := codec.Export(definition)
	if err := r.flowStore.SaveFlow(projectID, flowID, data, []byte(document)); err != nil {
		return fmt.Errorf("failed to save flow: %w", err)
	}

	if err := r.touchProject(projectID); err != nil {
		return err
	}
	return nil
}

// GetFlowDocument returns the exported tree document text.
func (r *ProjectRegistryService) GetFlowDocument(projectID, flowID string) (string, error) {
	document, err := r.flowStore.GetFlowDocument(projectID, flowID)
	if errors.Is(err, storage.ErrFlowNotFound) {
		return "", ErrFlowNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get flow document: %w", err)
	}
	return string(document), nil
}

// RenameFlow gives a flow a new display name and a matching new id. The
// stored definition is rewritten so its embedded id and name follow.
func (r *ProjectRegistryService) RenameFlow(projectID, flowID, name string) (string, error) {
	definition, err := r.loadExistingFlow(projectID, flowID)
	if err != nil {
		return "", err
	}

	newID := flowID
	slug := Slugify(name, "flujo")
	if slug != flowID {
		newID = UniqueSlug(slug, func(candidate string) bool {
			_, err := r.flowStore.GetFlow(projectID, candidate)
			return err == nil
		})
	}

	definition.ID = newID
	definition.Name = name
	if err := r.SaveFlow(projectID, newID, definition); err != nil {
		return "", err
	}
	if newID != flowID {
		if err := r.flowStore.DeleteFlow(projectID, flowID); err != nil {
			return "", fmt.Errorf("failed to remove old flow id: %w", err)
		}
	}

	r.logger.Info("flow renamed",
		logging.F("project_id", projectID),
		logging.F("old_id", flowID),
		logging.F("new_id", newID))
	return newID, nil
}

// DeleteFlow removes a flow.
func (r *ProjectRegistryService) DeleteFlow(projectID, flowID string) error {
	if _, err := r.loadExistingFlow(projectID, flowID); err != nil {
		return err
	}
	if err := r.flowStore.DeleteFlow(projectID, flowID); err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}
	return r.touchProject(projectID)
}

// loadExistingFlow is GetFlow without the blank-canvas fallback.
func (r *ProjectRegistryService) loadExistingFlow(projectID, flowID string) (*flow.Flow, error) {
	data, err := r.flowStore.GetFlow(projectID, flowID)
	if errors.Is(err, storage.ErrFlowNotFound) {
		return nil, ErrFlowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flow: %w", err)
	}

	var definition flow.Flow
	if err := json.Unmarshal(data, &definition); err != nil {
		return nil, fmt.Errorf("failed to parse flow definition: %w", err)
	}
	return &definition, nil
}

// touchProject bumps the project's updated timestamp, ignoring projects
// that were deleted concurrently.
func (r *ProjectRegistryService) touchProject(projectID string) error {
	project, err := r.projectStore.GetProject(projectID)
	if errors.Is(err, storage.ErrProjectNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get project: %w", err)
	}

	project.UpdatedAt = time.Now().Unix()
	if err := r.projectStore.SaveProject(project); err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return nil
}
