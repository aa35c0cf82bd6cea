// Package flow defines state management interfaces for the guided
// conversation and hosts the engine that drives it.
package flow

import (
	"context"

	"github.com/kjbranchesi/alfcoach/internal/models"
)

// StateManager defines the interface for managing per-step conversation state.
type StateManager interface {
	// GetCurrentState retrieves the current state for a project's (stage, step)
	GetCurrentState(ctx context.Context, projectID string, stage models.StageID, step models.StepID) (models.TransitionState, error)

	// SetCurrentState updates the current state for a project's (stage, step)
	SetCurrentState(ctx context.Context, projectID string, stage models.StageID, step models.StepID, state models.TransitionState) error

	// GetStateData retrieves additional data associated with the step's state
	GetStateData(ctx context.Context, projectID string, stage models.StageID, step models.StepID, key models.DataKey) (string, error)

	// SetStateData stores additional data associated with the step's state
	SetStateData(ctx context.Context, projectID string, stage models.StageID, step models.StepID, key models.DataKey, value string) error

	// ResetState removes all state data for a project's (stage, step)
	ResetState(ctx context.Context, projectID string, stage models.StageID, step models.StepID) error
}
