// Package store provides storage backends for project records and
// conversation flow state.
//
// It includes an in-memory store for tests and SQLite/PostgreSQL backends for
// deployments. The store is the only synchronization point between concurrent
// editors of the same project; writes are last-write-wins at the record level.
package store

import (
	"sync"
	"time"

	"github.com/kjbranchesi/alfcoach/internal/models"
)

// Store defines persistence for project records and flow state.
type Store interface {
	SaveProject(p models.ProjectRecord) error
	GetProject(id string) (*models.ProjectRecord, error)
	ListProjects() ([]models.ProjectRecord, error)
	DeleteProject(id string) error

	GetFlowState(projectID string, stage models.StageID, step models.StepID) (*models.FlowState, error)
	SaveFlowState(fs models.FlowState) error
	DeleteFlowState(projectID string, stage models.StageID, step models.StepID) error

	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option configures a store backend.
type Option func(*Opts)

// WithDSN sets the database connection string or file path.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

type flowStateKey struct {
	projectID string
	stage     models.StageID
	step      models.StepID
}

// InMemoryStore is a mutex-guarded map store used in tests and as the mock
// state backend.
type InMemoryStore struct {
	mu         sync.RWMutex
	projects   map[string]models.ProjectRecord
	flowStates map[flowStateKey]models.FlowState
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		projects:   make(map[string]models.ProjectRecord),
		flowStates: make(map[flowStateKey]models.FlowState),
	}
}

// SaveProject inserts or replaces a project record.
func (s *InMemoryStore) SaveProject(p models.ProjectRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.UpdatedAt = time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}
	s.projects[p.ID] = p
	return nil
}

// GetProject returns a project record, or nil when not found.
func (s *InMemoryStore) GetProject(id string) (*models.ProjectRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// ListProjects returns all project records.
func (s *InMemoryStore) ListProjects() ([]models.ProjectRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ProjectRecord, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	return out, nil
}

// DeleteProject removes a project record and its flow states.
func (s *InMemoryStore) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, id)
	for k := range s.flowStates {
		if k.projectID == id {
			delete(s.flowStates, k)
		}
	}
	return nil
}

// GetFlowState returns the flow state for a (project, stage, step), or nil
// when none exists.
func (s *InMemoryStore) GetFlowState(projectID string, stage models.StageID, step models.StepID) (*models.FlowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fs, ok := s.flowStates[flowStateKey{projectID, stage, step}]
	if !ok {
		return nil, nil
	}
	return &fs, nil
}

// SaveFlowState inserts or replaces a flow state.
func (s *InMemoryStore) SaveFlowState(fs models.FlowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fs.UpdatedAt = time.Now()
	if fs.CreatedAt.IsZero() {
		fs.CreatedAt = fs.UpdatedAt
	}
	s.flowStates[flowStateKey{fs.ProjectID, fs.Stage, fs.Step}] = fs
	return nil
}

// DeleteFlowState removes the flow state for a (project, stage, step).
func (s *InMemoryStore) DeleteFlowState(projectID string, stage models.StageID, step models.StepID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flowStates, flowStateKey{projectID, stage, step})
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
