package flow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kjbranchesi/alfcoach/internal/catalog"
	"github.com/kjbranchesi/alfcoach/internal/models"
	"github.com/kjbranchesi/alfcoach/internal/progression"
	"github.com/kjbranchesi/alfcoach/internal/store"
)

// newTestEngine wires an engine over an in-memory store with a project
// already past the grounding stage, so the active step is foundation/theme.
func newTestEngine(t *testing.T, gen *mockGenAIClient) (*Engine, *store.InMemoryStore, string) {
	t.Helper()
	st := store.NewInMemoryStore()
	record := models.ProjectRecord{ID: "proj-1", Title: "Urban Gardens"}
	if err := st.SaveProject(record); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}
	sm := NewStoreBasedStateManager(st)
	eng := NewEngine(st, sm, gen, catalog.Default(), progression.DefaultConfig())
	return eng, st, "proj-1"
}

func TestProcessTurnMissingProject(t *testing.T) {
	eng, _, _ := newTestEngine(t, newMockGenAIClient("hi"))
	_, err := eng.ProcessTurn(context.Background(), "no-such-project", models.TurnRequest{Input: "hello"})
	if !errors.Is(err, models.ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestProcessTurnValidation(t *testing.T) {
	eng, _, id := newTestEngine(t, newMockGenAIClient("hi"))
	_, err := eng.ProcessTurn(context.Background(), id, models.TurnRequest{Input: ""})
	if !errors.Is(err, models.ErrEmptyTurnInput) {
		t.Errorf("expected ErrEmptyTurnInput, got %v", err)
	}
	_, err = eng.ProcessTurn(context.Background(), id, models.TurnRequest{Input: strings.Repeat("x", models.MaxTurnInputLength+1)})
	if !errors.Is(err, models.ErrTurnInputTooLong) {
		t.Errorf("expected ErrTurnInputTooLong, got %v", err)
	}
}

func TestProcessTurnHighQualityThenConfirm(t *testing.T) {
	gen := newMockGenAIClient("That theme has real depth. Want to refine it?")
	eng, st, id := newTestEngine(t, gen)
	ctx := context.Background()

	answer := "Sustainability in our local food system"
	res, err := eng.ProcessTurn(ctx, id, models.TurnRequest{
		Input:   answer,
		Kind:    models.InteractionFreeText,
		Quality: models.QualityHigh,
	})
	if err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}
	if res.Action.Kind != models.ActionOfferRefinement {
		t.Errorf("expected offer_refinement, got %s", res.Action.Kind)
	}
	if res.Action.ShouldAdvance {
		t.Error("high-quality answer should not advance before confirmation")
	}
	if res.Status.CurrentStage != models.StageFoundation {
		t.Errorf("expected foundation stage, got %s", res.Status.CurrentStage)
	}
	if gen.calls != 1 {
		t.Errorf("expected 1 generation call, got %d", gen.calls)
	}

	// The free-text answer is parked as the pending value.
	fs, err := st.GetFlowState(id, models.StageFoundation, models.StepTheme)
	if err != nil || fs == nil {
		t.Fatalf("expected persisted flow state, got %v, %v", fs, err)
	}
	if fs.CurrentState != models.StateRefining {
		t.Errorf("expected REFINING, got %s", fs.CurrentState)
	}
	if fs.StateData[models.DataKeyPendingValue] != answer {
		t.Errorf("pending value not persisted: %q", fs.StateData[models.DataKeyPendingValue])
	}

	// Confirming commits the pending value and clears the step's state.
	res, err = eng.ProcessTurn(ctx, id, models.TurnRequest{Input: "Keep it as-is", Kind: models.InteractionConfirm})
	if err != nil {
		t.Fatalf("ProcessTurn confirm failed: %v", err)
	}
	if res.Action.Kind != models.ActionCompleteStep || !res.Action.ShouldAdvance {
		t.Errorf("expected advancing complete_step, got %+v", res.Action)
	}
	if !res.Turn.StepComplete {
		t.Error("expected StepComplete on committed turn")
	}

	record, err := st.GetProject(id)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if record.Foundation.Theme != answer {
		t.Errorf("theme not committed: %q", record.Foundation.Theme)
	}
	if record.CachedStatus == nil {
		t.Fatal("expected cached status after advance")
	}
	fs, err = st.GetFlowState(id, models.StageFoundation, models.StepTheme)
	if err != nil {
		t.Fatalf("GetFlowState failed: %v", err)
	}
	if fs != nil {
		t.Error("flow state should be cleared after advance")
	}
}

func TestProcessTurnLowQualityCoaches(t *testing.T) {
	gen := newMockGenAIClient("Tell me more about what excites your students.")
	eng, _, id := newTestEngine(t, gen)

	res, err := eng.ProcessTurn(context.Background(), id, models.TurnRequest{
		Input:   "stuff",
		Kind:    models.InteractionFreeText,
		Quality: models.QualityLow,
	})
	if err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}
	if res.Action.Kind != models.ActionCoach {
		t.Errorf("expected coach action, got %s", res.Action.Kind)
	}
	if res.Action.Attempts.Coaching != 1 {
		t.Errorf("expected 1 coaching attempt, got %d", res.Action.Attempts.Coaching)
	}
	if res.Turn.Text == "" {
		t.Error("expected non-empty turn text")
	}
}

func TestProcessTurnExampleSelect(t *testing.T) {
	gen := newMockGenAIClient("unused")
	eng, st, id := newTestEngine(t, gen)
	ctx := context.Background()

	// Asking for examples is answered from the catalog, not the LLM.
	res, err := eng.ProcessTurn(ctx, id, models.TurnRequest{Input: "show me examples", Kind: models.InteractionExamples})
	if err != nil {
		t.Fatalf("ProcessTurn examples failed: %v", err)
	}
	if res.Action.Kind != models.ActionProvideExamples {
		t.Errorf("expected provide_examples, got %s", res.Action.Kind)
	}
	if len(res.Turn.Suggestions) == 0 {
		t.Fatal("expected example suggestions from the catalog")
	}
	if gen.calls != 0 {
		t.Errorf("menu interaction should not call the generation service, got %d calls", gen.calls)
	}

	picked := res.Turn.Suggestions[0]
	res, err = eng.ProcessTurn(ctx, id, models.TurnRequest{Input: picked, Kind: models.InteractionExampleSelect})
	if err != nil {
		t.Fatalf("ProcessTurn example_select failed: %v", err)
	}
	if !res.Action.ShouldAdvance {
		t.Error("picking an example should complete the step")
	}
	record, _ := st.GetProject(id)
	if record.Foundation.Theme != picked {
		t.Errorf("expected picked example as theme, got %q", record.Foundation.Theme)
	}
}

func TestProcessTurnGenerationFailureFallsBack(t *testing.T) {
	gen := newMockGenAIClient()
	gen.err = errors.New("upstream down")
	eng, _, id := newTestEngine(t, gen)

	res, err := eng.ProcessTurn(context.Background(), id, models.TurnRequest{
		Input:   "A theme about water",
		Kind:    models.InteractionFreeText,
		Quality: models.QualityLow,
	})
	if err != nil {
		t.Fatalf("generation failure should not fail the turn: %v", err)
	}
	if res.Turn.Text == "" {
		t.Error("expected fallback turn text")
	}
	if !res.Turn.Kind.IsValid() {
		t.Errorf("expected recognized turn kind, got %s", res.Turn.Kind)
	}
}

func TestProcessTurnForcedAdvance(t *testing.T) {
	gen := newMockGenAIClient("Keep going!")
	eng, st, id := newTestEngine(t, gen)
	ctx := context.Background()

	// Exhaust the total budget with help-menu interactions, then coaching.
	var last *models.TurnResult
	for i := 0; i < 9; i++ {
		res, err := eng.ProcessTurn(ctx, id, models.TurnRequest{Input: "help", Kind: models.InteractionHelp})
		if err != nil {
			t.Fatalf("ProcessTurn %d failed: %v", i, err)
		}
		last = res
	}
	if last.Action.Kind != models.ActionForceAdvance {
		t.Errorf("expected force_advance on the 9th interaction, got %s", last.Action.Kind)
	}
	if !last.Action.ShouldAdvance {
		t.Error("forced advance must advance")
	}

	record, _ := st.GetProject(id)
	if record.Foundation.Theme == "" {
		t.Error("forced advance should still record a value")
	}
}

func TestProcessTurnExtractedDataMerge(t *testing.T) {
	// The reply carries labeled values; committing the step fills only the
	// empty foundation fields.
	reply := "Great work. Let's lock it in.\n**Theme**: Ocean stewardship\n**Driving Question**: How can our town protect its coastline?"
	gen := newMockGenAIClient(reply, reply, reply)
	eng, st, id := newTestEngine(t, gen)
	ctx := context.Background()

	// Medium quality twice burns the refinement budget so the second good
	// answer commits directly.
	if _, err := eng.ProcessTurn(ctx, id, models.TurnRequest{Input: "Ocean stewardship", Kind: models.InteractionFreeText, Quality: models.QualityMedium}); err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
	res, err := eng.ProcessTurn(ctx, id, models.TurnRequest{Input: "Ocean stewardship and coastal care", Kind: models.InteractionFreeText, Quality: models.QualityMedium})
	if err != nil {
		t.Fatalf("second turn failed: %v", err)
	}
	if !res.Action.ShouldAdvance {
		t.Fatalf("expected advance once refinement budget is spent, got %+v", res.Action)
	}

	record, _ := st.GetProject(id)
	if record.Foundation.Theme == "" {
		t.Error("theme not committed")
	}
	// The extracted driving question lands in the still-empty field.
	if record.Foundation.DrivingQuestion != "How can our town protect its coastline?" {
		t.Errorf("extracted driving question not merged: %q", record.Foundation.DrivingQuestion)
	}
}

func TestProgress(t *testing.T) {
	gen := newMockGenAIClient("Tell me more.")
	eng, _, id := newTestEngine(t, gen)
	ctx := context.Background()

	summary, err := eng.Progress(ctx, id)
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if summary.Stage != models.StageFoundation || summary.Step != models.StepTheme {
		t.Errorf("unexpected active step: %s/%s", summary.Stage, summary.Step)
	}
	if summary.PercentToForcedAdvance != 0 {
		t.Errorf("fresh step should be at 0%%, got %f", summary.PercentToForcedAdvance)
	}

	if _, err := eng.ProcessTurn(ctx, id, models.TurnRequest{Input: "stuff", Quality: models.QualityLow, Kind: models.InteractionFreeText}); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}
	summary, err = eng.Progress(ctx, id)
	if err != nil {
		t.Fatalf("Progress after turn failed: %v", err)
	}
	if summary.Attempts.Coaching != 1 || summary.Attempts.Total != 1 {
		t.Errorf("attempts not restored: %+v", summary.Attempts)
	}
	if summary.PercentToForcedAdvance <= 0 {
		t.Error("expected progress toward forced advance after a coached attempt")
	}
}

func TestProcessTurnPersistsHistory(t *testing.T) {
	gen := newMockGenAIClient("What makes that theme matter to your students?")
	eng, st, id := newTestEngine(t, gen)

	if _, err := eng.ProcessTurn(context.Background(), id, models.TurnRequest{Input: "recycling", Kind: models.InteractionFreeText, Quality: models.QualityLow}); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}

	fs, err := st.GetFlowState(id, models.StageFoundation, models.StepTheme)
	if err != nil || fs == nil {
		t.Fatalf("expected flow state, got %v, %v", fs, err)
	}
	historyJSON := fs.StateData[models.DataKeyConversationHistory]
	if !strings.Contains(historyJSON, "recycling") {
		t.Errorf("user message missing from history: %s", historyJSON)
	}
	if !strings.Contains(historyJSON, "assistant") {
		t.Errorf("assistant reply missing from history: %s", historyJSON)
	}
}
