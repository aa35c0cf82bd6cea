// Package store provides storage backends for alfcoach.
//
// This file implements an SQLite-backed store for project records and
// per-step conversation flow state.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/kjbranchesi/alfcoach/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// SaveProject inserts or updates a project record. CreatedAt is preserved on
// update; UpdatedAt is always refreshed.
func (s *SQLiteStore) SaveProject(p models.ProjectRecord) error {
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			foundation = excluded.foundation,
			journey = excluded.journey,
			deliverables = excluded.deliverables,
			cached_status = excluded.cached_status,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at`,
		p.ID, p.Title, foundation, journey, deliverables, cachedStatus, nullableTime(p.CompletedAt), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveProject failed", "error", err, "projectID", p.ID)
		return fmt.Errorf("failed to save project %s: %w", p.ID, err)
	}
	slog.Debug("SQLiteStore SaveProject succeeded", "projectID", p.ID)
	return nil
}

// GetProject returns the project with the given ID, or nil if none exists.
func (s *SQLiteStore) GetProject(id string) (*models.ProjectRecord, error) {
	row := s.db.QueryRow(`SELECT id, title, foundation, journey, deliverables, cached_status, completed_at, created_at, updated_at
		FROM projects WHERE id = ?`, id)
	p, err := scanProjectRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetProject failed", "error", err, "projectID", id)
		return nil, fmt.Errorf("failed to get project %s: %w", id, err)
	}
	return &p, nil
}

func (s *SQLiteStore) ListProjects() ([]models.ProjectRecord, error) {
	rows, err := s.db.Query(`SELECT id, title, foundation, journey, deliverables, cached_status, completed_at, created_at, updated_at
		FROM projects ORDER BY created_at`)
	if err != nil {
		slog.Error("SQLiteStore ListProjects query failed", "error", err)
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
func (s *SQLiteStore) DeleteProject(id string) error {
	if _, err := s.db.Exec(`DELETE FROM flow_states WHERE project_id = ?`, id); err != nil {
		slog.Error("SQLiteStore DeleteProject flow state cleanup failed", "error", err, "projectID", id)
		return fmt.Errorf("failed to delete flow states for project %s: %w", id, err)
	}
	if _, err := s.db.Exec(`DELETE FROM projects WHERE id = ?`, id); err != nil {
		slog.Error("SQLiteStore DeleteProject failed", "error", err, "projectID", id)
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	slog.Debug("SQLiteStore DeleteProject succeeded", "projectID", id)
	return nil
}

// GetFlowState returns the flow state for the given project step, or nil if
// none has been saved yet.
func (s *SQLiteStore) GetFlowState(projectID string, stage models.StageID, step models.StepID) (*models.FlowState, error) {
	row := s.db.QueryRow(`SELECT project_id, stage, step, current_state, state_data, created_at, updated_at
		FROM flow_states WHERE project_id = ? AND stage = ? AND step = ?`, projectID, string(stage), string(step))
	fs, err := scanFlowStateRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetFlowState failed", "error", err, "projectID", projectID, "stage", stage, "step", step)
		return nil, fmt.Errorf("failed to get flow state for project %s: %w", projectID, err)
	}
	return &fs, nil
}

func (s *SQLiteStore) SaveFlowState(fs models.FlowState) error {
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
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, stage, step) DO UPDATE SET
			current_state = excluded.current_state,
			state_data = excluded.state_data,
			updated_at = excluded.updated_at`,
		fs.ProjectID, string(fs.Stage), string(fs.Step), string(fs.CurrentState), stateData, fs.CreatedAt, fs.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveFlowState failed", "error", err, "projectID", fs.ProjectID, "stage", fs.Stage, "step", fs.Step)
		return fmt.Errorf("failed to save flow state for project %s: %w", fs.ProjectID, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteFlowState(projectID string, stage models.StageID, step models.StepID) error {
	_, err := s.db.Exec(`DELETE FROM flow_states WHERE project_id = ? AND stage = ? AND step = ?`,
		projectID, string(stage), string(step))
	if err != nil {
		slog.Error("SQLiteStore DeleteFlowState failed", "error", err, "projectID", projectID)
		return fmt.Errorf("failed to delete flow state for project %s: %w", projectID, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
