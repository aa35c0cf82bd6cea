package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kjbranchesi/alfcoach/internal/models"
)

func sampleProject(id string) models.ProjectRecord {
	return models.ProjectRecord{
		ID:    id,
		Title: "Urban Gardens",
		Foundation: models.FoundationData{
			Theme: "Sustainability",
		},
	}
}

func getenvOrSkip(t *testing.T, key string) string {
	t.Helper()
	v := os.Getenv(key)
	if v == "" {
		t.Skipf("%s not set", key)
	}
	return v
}

// exerciseStore runs the shared persistence contract against any backend.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()

	p := sampleProject("proj-1")
	if err := s.SaveProject(p); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}

	got, err := s.GetProject("proj-1")
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetProject returned nil for saved project")
	}
	if got.Title != "Urban Gardens" || got.Foundation.Theme != "Sustainability" {
		t.Errorf("project fields not persisted: %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set on save")
	}

	missing, err := s.GetProject("no-such-project")
	if err != nil {
		t.Fatalf("GetProject for missing id failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing project, got %+v", missing)
	}

	// Update preserves CreatedAt.
	created := got.CreatedAt
	got.Journey.Phases = []models.JourneyPhase{{Name: "Investigate"}}
	completed := time.Now().UTC().Truncate(time.Second)
	got.CompletedAt = &completed
	if err := s.SaveProject(*got); err != nil {
		t.Fatalf("SaveProject update failed: %v", err)
	}
	updated, err := s.GetProject("proj-1")
	if err != nil {
		t.Fatalf("GetProject after update failed: %v", err)
	}
	if len(updated.Journey.Phases) != 1 || updated.Journey.Phases[0].Name != "Investigate" {
		t.Errorf("journey not persisted: %+v", updated.Journey)
	}
	if updated.CompletedAt == nil {
		t.Error("CompletedAt not persisted")
	}
	if !updated.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed on update: %v != %v", updated.CreatedAt, created)
	}

	list, err := s.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 project, got %d", len(list))
	}

	// Flow state roundtrip.
	fs := models.FlowState{
		ProjectID:    "proj-1",
		Stage:        models.StageFoundation,
		Step:         models.StepTheme,
		CurrentState: models.StateCoaching,
		StateData: map[models.DataKey]string{
			models.DataKeyAttemptCounters: `{"coaching":1}`,
		},
	}
	if err := s.SaveFlowState(fs); err != nil {
		t.Fatalf("SaveFlowState failed: %v", err)
	}
	gotFS, err := s.GetFlowState("proj-1", models.StageFoundation, models.StepTheme)
	if err != nil {
		t.Fatalf("GetFlowState failed: %v", err)
	}
	if gotFS == nil {
		t.Fatal("GetFlowState returned nil for saved state")
	}
	if gotFS.CurrentState != models.StateCoaching {
		t.Errorf("expected state %s, got %s", models.StateCoaching, gotFS.CurrentState)
	}
	if gotFS.StateData[models.DataKeyAttemptCounters] != `{"coaching":1}` {
		t.Errorf("state data not persisted: %+v", gotFS.StateData)
	}

	noFS, err := s.GetFlowState("proj-1", models.StageFoundation, models.StepChallenge)
	if err != nil {
		t.Fatalf("GetFlowState for missing step failed: %v", err)
	}
	if noFS != nil {
		t.Errorf("expected nil for missing flow state, got %+v", noFS)
	}

	if err := s.DeleteFlowState("proj-1", models.StageFoundation, models.StepTheme); err != nil {
		t.Fatalf("DeleteFlowState failed: %v", err)
	}
	deletedFS, err := s.GetFlowState("proj-1", models.StageFoundation, models.StepTheme)
	if err != nil {
		t.Fatalf("GetFlowState after delete failed: %v", err)
	}
	if deletedFS != nil {
		t.Error("flow state not deleted")
	}

	// Deleting a project clears its flow states too.
	if err := s.SaveFlowState(fs); err != nil {
		t.Fatalf("SaveFlowState failed: %v", err)
	}
	if err := s.DeleteProject("proj-1"); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}
	goneProject, err := s.GetProject("proj-1")
	if err != nil {
		t.Fatalf("GetProject after delete failed: %v", err)
	}
	if goneProject != nil {
		t.Error("project not deleted")
	}
	goneFS, err := s.GetFlowState("proj-1", models.StageFoundation, models.StepTheme)
	if err != nil {
		t.Fatalf("GetFlowState after project delete failed: %v", err)
	}
	if goneFS != nil {
		t.Error("flow state not removed with project")
	}
}

func TestInMemoryStore(t *testing.T) {
	exerciseStore(t, NewInMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "data", "alfcoach.db")
	s, err := NewSQLiteStore(WithDSN(dsn))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestPostgresStore(t *testing.T) {
	// This test requires a running PostgreSQL instance.
	// Set the DATABASE_URL environment variable for the connection string.
	connStr := getenvOrSkip(t, "DATABASE_URL")
	s, err := NewPostgresStore(WithDSN(connStr))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer s.Close()
	s.db.Exec("DELETE FROM flow_states")
	s.db.Exec("DELETE FROM projects")
	exerciseStore(t, s)
}
