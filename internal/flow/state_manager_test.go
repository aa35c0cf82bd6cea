package flow

import (
	"context"
	"testing"

	"github.com/kjbranchesi/alfcoach/internal/models"
	"github.com/kjbranchesi/alfcoach/internal/store"
)

func TestStoreBasedStateManager(t *testing.T) {
	sm := NewStoreBasedStateManager(store.NewInMemoryStore())
	ctx := context.Background()

	// No state yet.
	state, err := sm.GetCurrentState(ctx, "p1", models.StageFoundation, models.StepTheme)
	if err != nil {
		t.Fatalf("GetCurrentState failed: %v", err)
	}
	if state != "" {
		t.Errorf("expected empty state, got %s", state)
	}

	if err := sm.SetCurrentState(ctx, "p1", models.StageFoundation, models.StepTheme, models.StateCoaching); err != nil {
		t.Fatalf("SetCurrentState failed: %v", err)
	}
	state, err = sm.GetCurrentState(ctx, "p1", models.StageFoundation, models.StepTheme)
	if err != nil {
		t.Fatalf("GetCurrentState failed: %v", err)
	}
	if state != models.StateCoaching {
		t.Errorf("expected COACHING, got %s", state)
	}

	// State data survives alongside the current state.
	if err := sm.SetStateData(ctx, "p1", models.StageFoundation, models.StepTheme, models.DataKeyPendingValue, "a theme"); err != nil {
		t.Fatalf("SetStateData failed: %v", err)
	}
	value, err := sm.GetStateData(ctx, "p1", models.StageFoundation, models.StepTheme, models.DataKeyPendingValue)
	if err != nil {
		t.Fatalf("GetStateData failed: %v", err)
	}
	if value != "a theme" {
		t.Errorf("expected pending value, got %q", value)
	}
	state, _ = sm.GetCurrentState(ctx, "p1", models.StageFoundation, models.StepTheme)
	if state != models.StateCoaching {
		t.Errorf("SetStateData must not clobber current state, got %s", state)
	}

	// Steps are isolated from each other.
	other, err := sm.GetStateData(ctx, "p1", models.StageFoundation, models.StepChallenge, models.DataKeyPendingValue)
	if err != nil {
		t.Fatalf("GetStateData failed: %v", err)
	}
	if other != "" {
		t.Errorf("expected no data for other step, got %q", other)
	}

	// SetStateData on a fresh step initializes the state to INITIAL.
	if err := sm.SetStateData(ctx, "p2", models.StageJourney, models.StepPhases, models.DataKeyAttemptCounters, "{}"); err != nil {
		t.Fatalf("SetStateData failed: %v", err)
	}
	state, err = sm.GetCurrentState(ctx, "p2", models.StageJourney, models.StepPhases)
	if err != nil {
		t.Fatalf("GetCurrentState failed: %v", err)
	}
	if state != models.StateInitial {
		t.Errorf("expected INITIAL for fresh step, got %s", state)
	}

	if err := sm.ResetState(ctx, "p1", models.StageFoundation, models.StepTheme); err != nil {
		t.Fatalf("ResetState failed: %v", err)
	}
	state, _ = sm.GetCurrentState(ctx, "p1", models.StageFoundation, models.StepTheme)
	if state != "" {
		t.Errorf("expected cleared state, got %s", state)
	}
}
