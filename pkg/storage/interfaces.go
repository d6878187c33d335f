// Package storage provides interfaces for persisting projects and their
// flows across pluggable backends.
package storage

import (
	"errors"
	"sort"
)

// Errors returned by storage providers.
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrFlowNotFound    = errors.New("flow not found")
)

// StorageProvider defines the interface for persistence backends.
type StorageProvider interface {
	// Initialize sets up the storage backend
	Initialize() error

	// Close cleans up resources
	Close() error

	// GetProjectStore returns a store for project records
	GetProjectStore() ProjectStore

	// GetFlowStore returns a store for flow definitions
	GetFlowStore() FlowStore
}

// Project is a stored project record.
type Project struct {
	// ID is the project slug
	ID string `json:"id"`

	// Name is the display name
	Name string `json:"name"`

	// Description of the project
	Description string `json:"description"`

	// CreatedAt is when the project was created (unix seconds)
	CreatedAt int64 `json:"created_at"`

	// UpdatedAt is when the project was last updated (unix seconds)
	UpdatedAt int64 `json:"updated_at"`
}

// StoredFlow couples a flow id with its canonical JSON definition.
type StoredFlow struct {
	// FlowID is the id the flow is stored under
	FlowID string `json:"flow_id"`

	// Definition is the canonical JSON definition
	Definition []byte `json:"definition"`
}

// sortProjects orders project records by creation time, then id, so every
// backend lists them the same way.
func sortProjects(projects []Project) {
	sort.SliceStable(projects, func(i, j int) bool {
		if projects[i].CreatedAt != projects[j].CreatedAt {
			return projects[i].CreatedAt < projects[j].CreatedAt
		}
		return projects[i].ID < projects[j].ID
	})
}

// ProjectStore manages project record persistence.
type ProjectStore interface {
	// SaveProject persists a project record, creating or updating it
	SaveProject(project Project) error

	// GetProject retrieves a project record
	GetProject(projectID string) (Project, error)

	// ListProjects returns all project records
	ListProjects() ([]Project, error)

	// DeleteProject removes a project record
	DeleteProject(projectID string) error
}

// FlowStore manages flow persistence. Each flow keeps two artifacts side
// by side: the canonical JSON definition the editor works on, and the
// exported tree document mirror.
type FlowStore interface {
	// SaveFlow persists the JSON definition and the exported document
	SaveFlow(projectID, flowID string, definition, document []byte) error

	// GetFlow retrieves the JSON definition
	GetFlow(projectID, flowID string) ([]byte, error)

	// GetFlowDocument retrieves the exported tree document
	GetFlowDocument(projectID, flowID string) ([]byte, error)

	// ListFlows returns all stored flows of a project with definitions
	ListFlows(projectID string) ([]StoredFlow, error)

	// RenameFlow moves both artifacts under a new flow id
	RenameFlow(projectID, oldID, newID string) error

	// DeleteFlow removes both artifacts
	DeleteFlow(projectID, flowID string) error

	// DeleteProjectFlows removes every flow of a project
	DeleteProjectFlows(projectID string) error
}
