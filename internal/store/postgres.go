// Package store provides storage backends for alfcoach.
//
// This file implements a PostgreSQL-backed store for project records and
// per-step conversation flow state.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/kjbranchesi/alfcoach/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run PostgreSQL migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// SaveProject inserts or updates a project record. CreatedAt is preserved on
// update; UpdatedAt is always refreshed.
func (s *PostgresStore) SaveProject(p models.ProjectRecord) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	foundation, journey, deliverables, cachedStatus, err := marshalProjectColumns(p)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`INSERT INTO projects (id, title, foundation, journey, deliverables, cached_status, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			foundation = EXCLUDED.foundation,
			journey = EXCLUDED.journey,
			deliverables = EXCLUDED.deliverables,
			cached_status = EXCLUDED.cached_status,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at`,
		p.ID, p.Title, foundation, journey, deliverables, cachedStatus, nullableTime(p.CompletedAt), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveProject failed", "error", err, "projectID", p.ID)
		return fmt.Errorf("failed to save project %s: %w", p.ID, err)
	}
	slog.Debug("PostgresStore SaveProject succeeded", "projectID", p.ID)
	return nil
}

// GetProject returns the project with the given ID, or nil if none exists.
func (s *PostgresStore) GetProject(id string) (*models.ProjectRecord, error) {
	row := s.db.QueryRow(`SELECT id, title, foundation, journey, deliverables, cached_status, completed_at, created_at, updated_at
		FROM projects WHERE id = $1`, id)
	p, err := scanProjectRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetProject failed", "error", err, "projectID", id)
		return nil, fmt.Errorf("failed to get project %s: %w", id, err)
	}
	return &p, nil
}

func (s *PostgresStore) ListProjects() ([]models.ProjectRecord, error) {
	rows, err := s.db.Query(`SELECT id, title, foundation, journey, deliverables, cached_status, completed_at, created_at, updated_at
		FROM projects ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore ListProjects query failed", "error", err)
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.ProjectRecord
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project and all of its flow states.
func (s *PostgresStore) DeleteProject(id string) error {
	if _, err := s.db.Exec(`DELETE FROM flow_states WHERE project_id = $1`, id); err != nil {
		slog.Error("PostgresStore DeleteProject flow state cleanup failed", "error", err, "projectID", id)
		return fmt.Errorf("failed to delete flow states for project %s: %w", id, err)
	}
	if _, err := s.db.Exec(`DELETE FROM projects WHERE id = $1`, id); err != nil {
		slog.Error("PostgresStore DeleteProject failed", "error", err, "projectID", id)
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	return nil
}

// GetFlowState returns the flow state for the given project step, or nil if
// none has been saved yet.
func (s *PostgresStore) GetFlowState(projectID string, stage models.StageID, step models.StepID) (*models.FlowState, error) {
	row := s.db.QueryRow(`SELECT project_id, stage, step, current_state, state_data, created_at, updated_at
		FROM flow_states WHERE project_id = $1 AND stage = $2 AND step = $3`, projectID, string(stage), string(step))
	fs, err := scanFlowStateRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetFlowState failed", "error", err, "projectID", projectID, "stage", stage, "step", step)
		return nil, fmt.Errorf("failed to get flow state for project %s: %w", projectID, err)
	}
	return &fs, nil
}

func (s *PostgresStore) SaveFlowState(fs models.FlowState) error {
	now := time.Now().UTC()
	if fs.CreatedAt.IsZero() {
		fs.CreatedAt = now
	}
	fs.UpdatedAt = now

	stateData, err := marshalStateData(fs.StateData)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`INSERT INTO flow_states (project_id, stage, step, current_state, state_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (project_id, stage, step) DO UPDATE SET
			current_state = EXCLUDED.current_state,
			state_data = EXCLUDED.state_data,
			updated_at = EXCLUDED.updated_at`,
		fs.ProjectID, string(fs.Stage), string(fs.Step), string(fs.CurrentState), stateData, fs.CreatedAt, fs.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveFlowState failed", "error", err, "projectID", fs.ProjectID, "stage", fs.Stage, "step", fs.Step)
		return fmt.Errorf("failed to save flow state for project %s: %w", fs.ProjectID, err)
	}
	return nil
}

func (s *PostgresStore) DeleteFlowState(projectID string, stage models.StageID, step models.StepID) error {
	_, err := s.db.Exec(`DELETE FROM flow_states WHERE project_id = $1 AND stage = $2 AND step = $3`,
		projectID, string(stage), string(step))
	if err != nil {
		slog.Error("PostgresStore DeleteFlowState failed", "error", err, "projectID", projectID)
		return fmt.Errorf("failed to delete flow state for project %s: %w", projectID, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
