package storage

import (
	"database/sql"
	"fmt"
	"time"

	// PostgreSQL driver
	_ "github.com/lib/pq"
)

// PostgreSQLProviderConfig holds configuration for the PostgreSQL provider.
type PostgreSQLProviderConfig struct {
	// Host is the database host
	Host string `json:"host"`

	// Port is the database port
	Port int `json:"port"`

	// User is the database user
	User string `json:"user"`

	// Password is the database password
	Password string `json:"password"`

	// Database is the database name
	Database string `json:"database"`

	// SSLMode is the SSL mode (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode"`
}

// PostgreSQLProvider implements the StorageProvider interface using
// PostgreSQL.
type PostgreSQLProvider struct {
	db           *sql.DB
	config       PostgreSQLProviderConfig
	projectStore *PostgreSQLProjectStore
	flowStore    *PostgreSQLFlowStore
}

// NewPostgreSQLProvider creates a new PostgreSQL storage provider.
func NewPostgreSQLProvider(config PostgreSQLProviderConfig) *PostgreSQLProvider {
	return &PostgreSQLProvider{config: config}
}

// Initialize connects to the database and creates the tables if needed.
func (p *PostgreSQLProvider) Initialize() error {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.config.Host, p.config.Port, p.config.User, p.config.Password,
		p.config.Database, p.config.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	p.db = db

	if err := p.createTables(); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	p.projectStore = &PostgreSQLProjectStore{db: db}
	p.flowStore = &PostgreSQLFlowStore{db: db}
	return nil
}

// Close closes the database connection.
func (p *PostgreSQLProvider) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetProjectStore returns a store for project records.
func (p *PostgreSQLProvider) GetProjectStore() ProjectStore {
	return p.projectStore
}

// GetFlowStore returns a store for flow definitions.
func (p *PostgreSQLProvider) GetFlowStore() FlowStore {
	return p.flowStore
}

// createTables creates the database tables if they don't exist.
func (p *PostgreSQLProvider) createTables() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS flows (
			project_id TEXT NOT NULL,
			flow_id TEXT NOT NULL,
			definition BYTEA NOT NULL,
			document BYTEA NOT NULL,
			PRIMARY KEY (project_id, flow_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := p.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// PostgreSQLProjectStore implements the ProjectStore interface using
// PostgreSQL.
type PostgreSQLProjectStore struct {
	db *sql.DB
}

// SaveProject persists a project record.
func (s *PostgreSQLProjectStore) SaveProject(project Project) error {
	_, err := s.db.Exec(
		`INSERT INTO projects (id, name, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			updated_at = EXCLUDED.updated_at`,
		project.ID, project.Name, project.Description,
		project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

// GetProject retrieves a project record.
func (s *PostgreSQLProjectStore) GetProject(projectID string) (Project, error) {
	var project Project
	err := s.db.QueryRow(
		`SELECT id, name, description, created_at, updated_at
		 FROM projects WHERE id = $1`,
		projectID,
	).Scan(&project.ID, &project.Name, &project.Description,
		&project.CreatedAt, &project.UpdatedAt)
	if err == sql.ErrNoRows {
		return Project{}, ErrProjectNotFound
	}
	if err != nil {
		return Project{}, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// ListProjects returns all project records in creation order.
func (s *PostgreSQLProjectStore) ListProjects() ([]Project, error) {
	rows, err := s.db.Query(
		`SELECT id, name, description, created_at, updated_at
		 FROM projects ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var project Project
		if err := rows.Scan(&project.ID, &project.Name, &project.Description,
			&project.CreatedAt, &project.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project record.
func (s *PostgreSQLProjectStore) DeleteProject(projectID string) error {
	_, err := s.db.Exec(`DELETE FROM projects WHERE id = $1`, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

// PostgreSQLFlowStore implements the FlowStore interface using PostgreSQL.
type PostgreSQLFlowStore struct {
	db *sql.DB
}

// SaveFlow persists the JSON definition and the exported document.
func (s *PostgreSQLFlowStore) SaveFlow(projectID, flowID string, definition, document []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO flows (project_id, flow_id, definition, document)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (project_id, flow_id) DO UPDATE SET
			definition = EXCLUDED.definition,
			document = EXCLUDED.document`,
		projectID, flowID, definition, document,
	)
	if err != nil {
		return fmt.Errorf("failed to save flow: %w", err)
	}
	return nil
}

// GetFlow retrieves the JSON definition.
func (s *PostgreSQLFlowStore) GetFlow(projectID, flowID string) ([]byte, error) {
	var definition []byte
	err := s.db.QueryRow(
		`SELECT definition FROM flows WHERE project_id = $1 AND flow_id = $2`,
		projectID, flowID,
	).Scan(&definition)
	if err == sql.ErrNoRows {
		return nil, ErrFlowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flow: %w", err)
	}
	return definition, nil
}

// GetFlowDocument retrieves the exported tree document.
func (s *PostgreSQLFlowStore) GetFlowDocument(projectID, flowID string) ([]byte, error) {
	var document []byte
	err := s.db.QueryRow(
		`SELECT document FROM flows WHERE project_id = $1 AND flow_id = $2`,
		projectID, flowID,
	).Scan(&document)
	if err == sql.ErrNoRows {
		return nil, ErrFlowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flow document: %w", err)
	}
	return document, nil
}

// ListFlows returns all stored flows of a project, sorted by flow id.
func (s *PostgreSQLFlowStore) ListFlows(projectID string) ([]StoredFlow, error) {
	rows, err := s.db.Query(
		`SELECT flow_id, definition FROM flows
		 WHERE project_id = $1 ORDER BY flow_id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	defer rows.Close()

	var flows []StoredFlow
	for rows.Next() {
		var stored StoredFlow
		if err := rows.Scan(&stored.FlowID, &stored.Definition); err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}
		flows = append(flows, stored)
	}
	return flows, rows.Err()
}

// RenameFlow moves both artifacts under a new flow id.
func (s *PostgreSQLFlowStore) RenameFlow(projectID, oldID, newID string) error {
	result, err := s.db.Exec(
		`UPDATE flows SET flow_id = $3 WHERE project_id = $1 AND flow_id = $2`,
		projectID, oldID, newID,
	)
	if err != nil {
		return fmt.Errorf("failed to rename flow: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to rename flow: %w", err)
	}
	if affected == 0 {
		return ErrFlowNotFound
	}
	return nil
}

// DeleteFlow removes both artifacts.
func (s *PostgreSQLFlowStore) DeleteFlow(projectID, flowID string) error {
	_, err := s.db.Exec(
		`DELETE FROM flows WHERE project_id = $1 AND flow_id = $2`,
		projectID, flowID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}
	return nil
}

// DeleteProjectFlows removes every flow of a project.
func (s *PostgreSQLFlowStore) DeleteProjectFlows(projectID string) error {
	_, err := s.db.Exec(`DELETE FROM flows WHERE project_id = $1`, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete project flows: %w", err)
	}
	return nil
}
