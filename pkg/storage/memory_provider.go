package storage

import (
	"sort"
	"sync"
)

// MemoryProvider implements the StorageProvider interface using in-memory
// storage. It is the default backend for local editing sessions and tests.
type MemoryProvider struct {
	projectStore *MemoryProjectStore
	flowStore    *MemoryFlowStore
}

// NewMemoryProvider creates a new in-memory storage provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		projectStore: NewMemoryProjectStore(),
		flowStore:    NewMemoryFlowStore(),
	}
}

// Initialize sets up the storage backend.
func (p *MemoryProvider) Initialize() error {
	// Nothing to initialize for in-memory storage
	return nil
}

// Close cleans up resources.
func (p *MemoryProvider) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

// GetProjectStore returns a store for project records.
func (p *MemoryProvider) GetProjectStore() ProjectStore {
	return p.projectStore
}

// GetFlowStore returns a store for flow definitions.
func (p *MemoryProvider) GetFlowStore() FlowStore {
	return p.flowStore
}

// MemoryProjectStore implements the ProjectStore interface in memory.
type MemoryProjectStore struct {
	projects map[string]Project
	order    []string
	mu       sync.RWMutex
}

// NewMemoryProjectStore creates a new in-memory project store.
func NewMemoryProjectStore() *MemoryProjectStore {
	return &MemoryProjectStore{
		projects: make(map[string]Project),
	}
}

// SaveProject persists a project record.
func (s *MemoryProjectStore) SaveProject(project Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[project.ID]; !ok {
		s.order = append(s.order, project.ID)
	}
	s.projects[project.ID] = project
	return nil
}

// GetProject retrieves a project record.
func (s *MemoryProjectStore) GetProject(projectID string) (Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	project, ok := s.projects[projectID]
	if !ok {
		return Project{}, ErrProjectNotFound
	}
	return project, nil
}

// ListProjects returns all project records in creation order.
func (s *MemoryProjectStore) ListProjects() ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	projects := make([]Project, 0, len(s.order))
	for _, id := range s.order {
		projects = append(projects, s.projects[id])
	}
	return projects, nil
}

// DeleteProject removes a project record.
func (s *MemoryProjectStore) DeleteProject(projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.projects, projectID)
	for i, id := range s.order {
		if id == projectID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// memoryFlow keeps both flow artifacts together.
type memoryFlow struct {
	definition []byte
	document   []byte
}

// MemoryFlowStore implements the FlowStore interface in memory.
type MemoryFlowStore struct {
	flows map[string]map[string]memoryFlow
	mu    sync.RWMutex
}

// NewMemoryFlowStore creates a new in-memory flow store.
func NewMemoryFlowStore() *MemoryFlowStore {
	return &MemoryFlowStore{
		flows: make(map[string]map[string]memoryFlow),
	}
}

// SaveFlow persists the JSON definition and the exported document.
func (s *MemoryFlowStore) SaveFlow(projectID, flowID string, definition, document []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flows[projectID]; !ok {
		s.flows[projectID] = make(map[string]memoryFlow)
	}
	s.flows[projectID][flowID] = memoryFlow{
		definition: append([]byte(nil), definition...),
		document:   append([]byte(nil), document...),
	}
	return nil
}

// GetFlow retrieves the JSON definition.
func (s *MemoryFlowStore) GetFlow(projectID, flowID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.flows[projectID][flowID]
	if !ok {
		return nil, ErrFlowNotFound
	}
	return append([]byte(nil), stored.definition...), nil
}

// GetFlowDocument retrieves the exported tree document.
func (s *MemoryFlowStore) GetFlowDocument(projectID, flowID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.flows[projectID][flowID]
	if !ok {
		return nil, ErrFlowNotFound
	}
	return append([]byte(nil), stored.document...), nil
}

// ListFlows returns all stored flows of a project, sorted by flow id.
func (s *MemoryFlowStore) ListFlows(projectID string) ([]StoredFlow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	projectFlows := s.flows[projectID]
	ids := make([]string, 0, len(projectFlows))
	for id := range projectFlows {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	flows := make([]StoredFlow, 0, len(ids))
	for _, id := range ids {
		flows = append(flows, StoredFlow{
			FlowID:     id,
			Definition: append([]byte(nil), projectFlows[id].definition...),
		})
	}
	return flows, nil
}

// RenameFlow moves both artifacts under a new flow id.
func (s *MemoryFlowStore) RenameFlow(projectID, oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.flows[projectID][oldID]
	if !ok {
		return ErrFlowNotFound
	}
	s.flows[projectID][newID] = stored
	delete(s.flows[projectID], oldID)
	return nil
}

// DeleteFlow removes both artifacts.
func (s *MemoryFlowStore) DeleteFlow(projectID, flowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.flows[projectID], flowID)
	return nil
}

// DeleteProjectFlows removes every flow of a project.
func (s *MemoryFlowStore) DeleteProjectFlows(projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.flows, projectID)
	return nil
}
