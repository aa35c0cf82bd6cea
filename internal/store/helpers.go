package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kjbranchesi/alfcoach/internal/models"
)

// nullableTime returns nil if t is nil, otherwise the dereferenced time.
// Used for nullable database columns.
func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// marshalProjectColumns serializes the JSON columns of a project record.
// The cached status column is nil when no status has been cached.
func marshalProjectColumns(p models.ProjectRecord) (foundation, journey, deliverables string, cachedStatus interface{}, err error) {
	fb, err := json.Marshal(p.Foundation)
	if err != nil {
		return "", "", "", nil, fmt.Errorf("failed to marshal foundation for project %s: %w", p.ID, err)
	}
	jb, err := json.Marshal(p.Journey)
	if err != nil {
		return "", "", "", nil, fmt.Errorf("failed to marshal journey for project %s: %w", p.ID, err)
	}
	db, err := json.Marshal(p.Deliverables)
	if err != nil {
		return "", "", "", nil, fmt.Errorf("failed to marshal deliverables for project %s: %w", p.ID, err)
	}
	if p.CachedStatus != nil {
		sb, err := json.Marshal(p.CachedStatus)
		if err != nil {
			return "", "", "", nil, fmt.Errorf("failed to marshal cached status for project %s: %w", p.ID, err)
		}
		cachedStatus = string(sb)
	}
	return string(fb), string(jb), string(db), cachedStatus, nil
}

// marshalStateData serializes a flow state's data map, writing an empty
// object for a nil map.
func marshalStateData(data map[models.DataKey]string) (string, error) {
	if data == nil {
		return "{}", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state data: %w", err)
	}
	return string(b), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProjectFrom(r rowScanner) (models.ProjectRecord, error) {
	var p models.ProjectRecord
	var foundation, journey, deliverables string
	var cachedStatus sql.NullString
	var completedAt sql.NullTime
	err := r.Scan(&p.ID, &p.Title, &foundation, &journey, &deliverables, &cachedStatus, &completedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(foundation), &p.Foundation); err != nil {
		return p, fmt.Errorf("failed to unmarshal foundation for project %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(journey), &p.Journey); err != nil {
		return p, fmt.Errorf("failed to unmarshal journey for project %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(deliverables), &p.Deliverables); err != nil {
		return p, fmt.Errorf("failed to unmarshal deliverables for project %s: %w", p.ID, err)
	}
	if cachedStatus.Valid && cachedStatus.String != "" {
		var status models.DerivedStatus
		if err := json.Unmarshal([]byte(cachedStatus.String), &status); err != nil {
			return p, fmt.Errorf("failed to unmarshal cached status for project %s: %w", p.ID, err)
		}
		p.CachedStatus = &status
	}
	if completedAt.Valid {
		p.CompletedAt = &completedAt.Time
	}
	return p, nil
}

// scanProject scans a ProjectRecord from sql.Rows.
func scanProject(rows *sql.Rows) (models.ProjectRecord, error) {
	return scanProjectFrom(rows)
}

// scanProjectRow scans a ProjectRecord from a single sql.Row.
func scanProjectRow(row *sql.Row) (models.ProjectRecord, error) {
	return scanProjectFrom(row)
}

func scanFlowStateFrom(r rowScanner) (models.FlowState, error) {
	var fs models.FlowState
	var stage, step, current, stateData string
	err := r.Scan(&fs.ProjectID, &stage, &step, &current, &stateData, &fs.CreatedAt, &fs.UpdatedAt)
	if err != nil {
		return fs, err
	}
	fs.Stage = models.StageID(stage)
	fs.Step = models.StepID(step)
	fs.CurrentState = models.TransitionState(current)
	fs.StateData = make(map[models.DataKey]string)
	if stateData != "" {
		if err := json.Unmarshal([]byte(stateData), &fs.StateData); err != nil {
			return fs, fmt.Errorf("failed to unmarshal state data for project %s: %w", fs.ProjectID, err)
		}
	}
	return fs, nil
}

// scanFlowStateRow scans a FlowState from a single sql.Row.
func scanFlowStateRow(row *sql.Row) (models.FlowState, error) {
	return scanFlowStateFrom(row)
}
