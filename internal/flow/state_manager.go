// Package flow provides concrete implementations of state management.
package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/kjbranchesi/alfcoach/internal/models"
	"github.com/kjbranchesi/alfcoach/internal/store"
)

// StoreBasedStateManager implements StateManager using a Store backend.
type StoreBasedStateManager struct {
	store store.Store
}

// NewStoreBasedStateManager creates a new StateManager backed by a Store.
func NewStoreBasedStateManager(st store.Store) *StoreBasedStateManager {
	slog.Debug("Creating StoreBasedStateManager")
	return &StoreBasedStateManager{store: st}
}

// GetCurrentState retrieves the current state for a project's (stage, step).
func (sm *StoreBasedStateManager) GetCurrentState(ctx context.Context, projectID string, stage models.StageID, step models.StepID) (models.TransitionState, error) {
	flowState, err := sm.store.GetFlowState(projectID, stage, step)
	if err != nil {
		slog.Error("StateManager GetCurrentState error", "error", err, "projectID", projectID, "stage", stage, "step", step)
		return "", err
	}
	if flowState == nil {
		slog.Debug("StateManager GetCurrentState not found", "projectID", projectID, "stage", stage, "step", step)
		return "", nil
	}
	return flowState.CurrentState, nil
}

// SetCurrentState updates the current state for a project's (stage, step).
func (sm *StoreBasedStateManager) SetCurrentState(ctx context.Context, projectID string, stage models.StageID, step models.StepID, state models.TransitionState) error {
	slog.Debug("StateManager SetCurrentState", "projectID", projectID, "stage", stage, "step", step, "state", state)

	// Get existing state or create new one
	flowState, err := sm.store.GetFlowState(projectID, stage, step)
	if err != nil {
		slog.Error("StateManager SetCurrentState get error", "error", err, "projectID", projectID, "stage", stage, "step", step)
		return err
	}

	now := time.Now()
	if flowState == nil {
		flowState = &models.FlowState{
			ProjectID:    projectID,
			Stage:        stage,
			Step:         step,
			CurrentState: state,
			StateData:    make(map[models.DataKey]string),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	} else {
		flowState.CurrentState = state
		flowState.UpdatedAt = now
	}

	if err := sm.store.SaveFlowState(*flowState); err != nil {
		slog.Error("StateManager SetCurrentState save error", "error", err, "projectID", projectID, "stage", stage, "step", step, "state", state)
		return err
	}
	return nil
}

// GetStateData retrieves additional data associated with the step's state.
func (sm *StoreBasedStateManager) GetStateData(ctx context.Context, projectID string, stage models.StageID, step models.StepID, key models.DataKey) (string, error) {
	flowState, err := sm.store.GetFlowState(projectID, stage, step)
	if err != nil {
		slog.Error("StateManager GetStateData error", "error", err, "projectID", projectID, "stage", stage, "step", step, "key", key)
		return "", err
	}
	if flowState == nil || flowState.StateData == nil {
		return "", nil
	}
	return flowState.StateData[key], nil
}

// SetStateData stores additional data associated with the step's state.
func (sm *StoreBasedStateManager) SetStateData(ctx context.Context, projectID string, stage models.StageID, step models.StepID, key models.DataKey, value string) error {
	slog.Debug("StateManager SetStateData", "projectID", projectID, "stage", stage, "step", step, "key", key)

	// Get existing state or create new one
	flowState, err := sm.store.GetFlowState(projectID, stage, step)
	if err != nil {
		slog.Error("StateManager SetStateData get error", "error", err, "projectID", projectID, "stage", stage, "step", step, "key", key)
		return err
	}

	now := time.Now()
	if flowState == nil {
		flowState = &models.FlowState{
			ProjectID:    projectID,
			Stage:        stage,
			Step:         step,
			CurrentState: models.StateInitial,
			StateData:    map[models.DataKey]string{key: value},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	} else {
		if flowState.StateData == nil {
			flowState.StateData = make(map[models.DataKey]string)
		}
		flowState.StateData[key] = value
		flowState.UpdatedAt = now
	}

	if err := sm.store.SaveFlowState(*flowState); err != nil {
		slog.Error("StateManager SetStateData save error", "error", err, "projectID", projectID, "stage", stage, "step", step, "key", key)
		return err
	}
	return nil
}

// ResetState removes all state data for a project's (stage, step).
func (sm *StoreBasedStateManager) ResetState(ctx context.Context, projectID string, stage models.StageID, step models.StepID) error {
	if err := sm.store.DeleteFlowState(projectID, stage, step); err != nil {
		slog.Error("StateManager ResetState error", "error", err, "projectID", projectID, "stage", stage, "step", step)
		return err
	}
	slog.Info("StateManager ResetState succeeded", "projectID", projectID, "stage", stage, "step", step)
	return nil
}
