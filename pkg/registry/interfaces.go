// Package registry provides management of projects and the flows stored
// inside them.
package registry

import (
	"github.com/dvalderas/flowtree/pkg/flow"
)

// ProjectSummary describes a project and its flows for listings.
type ProjectSummary struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	CreatedAt   int64         `json:"created_at"`
	UpdatedAt   int64         `json:"updated_at"`
	Flows       []FlowSummary `json:"flows"`
}

// FlowSummary describes one flow of a project.
type FlowSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProjectRegistry manages projects and their flows.
type ProjectRegistry interface {
	// CreateProject creates a project and returns its generated id
	CreateProject(name, description string) (string, error)

	// RenameProject updates a project's display name
	RenameProject(projectID, name string) error

	// DeleteProject removes a project and all of its flows
	DeleteProject(projectID string) error

	// ListProjects returns summaries of every project with its flows
	ListProjects() ([]ProjectSummary, error)

	// CreateFlow creates an empty flow in a project and returns its id
	CreateFlow(projectID, name string) (string, error)

	// GetFlow retrieves a flow definition; missing flows yield an empty
	// skeleton so the editor can start from a blank canvas
	GetFlow(projectID, flowID string) (*flow.Flow, error)

	// SaveFlow persists a flow definition together with its exported
	// tree document
	SaveFlow(projectID, flowID string, definition *flow.Flow) error

	// GetFlowDocument returns the exported tree document text
	GetFlowDocument(projectID, flowID string) (string, error)

	// RenameFlow gives a flow a new display name and a matching new id,
	// returning the new id
	RenameFlow(projectID, flowID, name string) (string, error)

	// DeleteFlow removes a flow
	DeleteFlow(projectID, flowID string) error
}
