package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/kjbranchesi/alfcoach/internal/catalog"
	"github.com/kjbranchesi/alfcoach/internal/genai"
	"github.com/kjbranchesi/alfcoach/internal/models"
	"github.com/kjbranchesi/alfcoach/internal/normalize"
	"github.com/kjbranchesi/alfcoach/internal/progression"
	"github.com/kjbranchesi/alfcoach/internal/status"
	"github.com/kjbranchesi/alfcoach/internal/store"
)

// ConversationMessage represents a single message in the conversation history.
type ConversationMessage struct {
	Role      string    `json:"role"`      // "user" or "assistant"
	Content   string    `json:"content"`   // message content
	Timestamp time.Time `json:"timestamp"` // when the message was sent
}

// ConversationHistory represents the per-step conversation history.
type ConversationHistory struct {
	Messages []ConversationMessage `json:"messages"`
}

const (
	// maxHistoryLength bounds how many messages are persisted per step.
	maxHistoryLength = 50
	// maxHistorySent bounds how many history messages accompany a generation request.
	maxHistorySent = 30
)

// Engine drives the guided conversation. It loads the project record,
// restores the step's progression machine, routes the interaction, generates
// or synthesizes the assistant turn, and persists whatever changed.
type Engine struct {
	store        store.Store
	stateManager StateManager
	genaiClient  genai.ClientInterface
	cat          *catalog.Catalog
	norm         *normalize.Normalizer
	deriver      *status.Deriver
	cfg          progression.Config
}

// NewEngine creates a conversation engine with its dependencies.
func NewEngine(st store.Store, sm StateManager, genaiClient genai.ClientInterface, cat *catalog.Catalog, cfg progression.Config) *Engine {
	slog.Debug("Engine.NewEngine: creating engine with dependencies")
	return &Engine{
		store:        st,
		stateManager: sm,
		genaiClient:  genaiClient,
		cat:          cat,
		norm:         normalize.New(cat),
		deriver:      status.New(cat),
		cfg:          cfg,
	}
}

// ProcessTurn handles one conversational exchange for a project. It never
// returns an error for malformed upstream output; only storage failures,
// validation failures, and a missing project surface as errors.
func (e *Engine) ProcessTurn(ctx context.Context, projectID string, req models.TurnRequest) (*models.TurnResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	record, err := e.store.GetProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", projectID, err)
	}
	if record == nil {
		return nil, models.ErrProjectNotFound
	}

	derived := e.deriver.Derive(record)
	stage := derived.CurrentStage
	step := e.cat.ActiveStep(stage, record)

	machine, err := e.restoreMachine(ctx, projectID, stage, step)
	if err != nil {
		return nil, err
	}

	action := machine.Route(req.Kind, req.Input, req.Quality.Normalize())
	slog.Debug("Engine.ProcessTurn: routed interaction", "projectID", projectID, "stage", stage, "step", step.ID, "kind", req.Kind, "action", action.Kind)

	history, err := e.loadHistory(ctx, projectID, stage, step.ID)
	if err != nil {
		return nil, err
	}

	var turn models.ConversationTurn
	if req.Kind == models.InteractionFreeText || !req.Kind.IsValid() {
		turn = e.generateTurn(ctx, stage, step, history, req.Input)
	} else {
		turn = turnFromAction(stage, step, action)
	}

	if action.ShouldAdvance {
		if err := e.advanceStep(ctx, record, stage, step, action, req.Input, &turn); err != nil {
			return nil, err
		}
		derived = e.deriver.Derive(record)
	} else {
		if err := e.persistProgress(ctx, projectID, stage, step.ID, machine, action, req.Input, history, turn.Text); err != nil {
			return nil, err
		}
	}

	return &models.TurnResult{Turn: turn, Action: action, Status: derived}, nil
}

// Progress reports the progression summary for a project's active step.
func (e *Engine) Progress(ctx context.Context, projectID string) (*models.ProgressSummary, error) {
	record, err := e.store.GetProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", projectID, err)
	}
	if record == nil {
		return nil, models.ErrProjectNotFound
	}

	derived := e.deriver.Derive(record)
	step := e.cat.ActiveStep(derived.CurrentStage, record)
	machine, err := e.restoreMachine(ctx, projectID, derived.CurrentStage, step)
	if err != nil {
		return nil, err
	}
	summary := machine.GetProgressSummary()
	return &summary, nil
}

// restoreMachine rebuilds the progression machine from persisted state.
// Unparseable counters restart the step from zero rather than failing.
func (e *Engine) restoreMachine(ctx context.Context, projectID string, stage models.StageID, step catalog.Step) (*progression.Machine, error) {
	current, err := e.stateManager.GetCurrentState(ctx, projectID, stage, step.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow state for project %s: %w", projectID, err)
	}
	if current == "" {
		return progression.NewMachine(stage, step, e.cfg), nil
	}

	var attempts models.AttemptCounters
	countersJSON, err := e.stateManager.GetStateData(ctx, projectID, stage, step.ID, models.DataKeyAttemptCounters)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt counters for project %s: %w", projectID, err)
	}
	if countersJSON != "" {
		if err := json.Unmarshal([]byte(countersJSON), &attempts); err != nil {
			slog.Warn("Engine.restoreMachine: unparseable attempt counters, restarting step", "error", err, "projectID", projectID, "stage", stage, "step", step.ID)
			attempts = models.AttemptCounters{}
		}
	}
	return progression.Restore(stage, step, e.cfg, current, attempts), nil
}

// generateTurn asks the generation service for a reply and normalizes it.
// Generation failures degrade to the normalizer's fallback turn so one
// flaky upstream call never breaks the conversation.
func (e *Engine) generateTurn(ctx context.Context, stage models.StageID, step catalog.Step, history *ConversationHistory, userInput string) models.ConversationTurn {
	messages := e.buildMessages(stage, step, history, userInput)
	raw, err := e.genaiClient.GenerateWithMessages(ctx, messages)
	if err != nil {
		slog.Error("Engine.generateTurn: generation failed", "error", err, "stage", stage, "step", step.ID)
		return e.norm.Normalize(nil, stage, userInput)
	}

	// Replies may be plain prose or a JSON envelope; hand both to the
	// normalizer as-is.
	var payload interface{} = raw
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		payload = json.RawMessage(trimmed)
	}
	return e.norm.Normalize(payload, stage, userInput)
}

// buildMessages assembles the generation request: system prompt, bounded
// history, then the current user input.
func (e *Engine) buildMessages(stage models.StageID, step catalog.Step, history *ConversationHistory, userInput string) []openai.ChatCompletionMessageParamUnion {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(e.systemPrompt(stage, step)),
	}

	msgs := history.Messages
	if len(msgs) > maxHistorySent {
		msgs = msgs[len(msgs)-maxHistorySent:]
	}
	for _, m := range msgs {
		if m.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(m.Content))
		} else {
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	return append(messages, openai.UserMessage(userInput))
}

func (e *Engine) systemPrompt(stageID models.StageID, step catalog.Step) string {
	var b strings.Builder
	b.WriteString("You are a curriculum-design coach guiding an educator through building a project-based learning unit.\n")
	if st, ok := e.cat.Stage(stageID); ok {
		fmt.Fprintf(&b, "Current stage: %s.\n", st.Title)
	}
	fmt.Fprintf(&b, "Current goal: %s.\n", step.Title)
	if step.Guidance != "" {
		b.WriteString(step.Guidance)
		b.WriteString("\n")
	}
	b.WriteString("Keep replies short and conversational. When offering choices, list them as bullet points.")
	return b.String()
}

// turnFromAction synthesizes the assistant turn for menu-driven interactions
// that never reach the generation service.
func turnFromAction(stage models.StageID, step catalog.Step, action models.Action) models.ConversationTurn {
	text := action.Message
	if text == "" {
		text = step.Guidance
	}
	kind := models.TurnGuide
	if stage == models.StageFoundation {
		kind = models.TurnConversationalFoundation
	}
	return models.ConversationTurn{
		Text:         text,
		Kind:         kind,
		Stage:        stage,
		Step:         step.ID,
		Suggestions:  action.Suggestions,
		StepComplete: action.ShouldAdvance,
	}
}

// advanceStep commits the step's value to the project record, refreshes the
// cached status, and clears the step's conversation state.
func (e *Engine) advanceStep(ctx context.Context, record *models.ProjectRecord, stage models.StageID, step catalog.Step, action models.Action, input string, turn *models.ConversationTurn) error {
	value, err := e.resolveStepValue(ctx, record.ID, stage, step.ID, action, input)
	if err != nil {
		return err
	}

	applyStepValue(record, step.ID, value)
	mergeExtracted(record, turn.Extracted)

	fresh := e.deriver.DeriveFresh(record)
	record.CachedStatus = &fresh

	if err := e.store.SaveProject(*record); err != nil {
		return fmt.Errorf("failed to save project %s: %w", record.ID, err)
	}
	if err := e.stateManager.ResetState(ctx, record.ID, stage, step.ID); err != nil {
		return err
	}

	turn.StepComplete = true
	slog.Info("Engine.advanceStep: step committed", "projectID", record.ID, "stage", stage, "step", step.ID, "action", action.Kind)
	return nil
}

// resolveStepValue picks the value an advancing step records: an explicit
// selection from the action, then the pending free-text answer, then the
// current input.
func (e *Engine) resolveStepValue(ctx context.Context, projectID string, stage models.StageID, step models.StepID, action models.Action, input string) (string, error) {
	if action.Kind == models.ActionCompleteStep && action.Message != "" {
		return action.Message, nil
	}
	pending, err := e.stateManager.GetStateData(ctx, projectID, stage, step, models.DataKeyPendingValue)
	if err != nil {
		return "", fmt.Errorf("failed to load pending value for project %s: %w", projectID, err)
	}
	if pending != "" {
		return pending, nil
	}
	return input, nil
}

// applyStepValue writes a confirmed step value into the record field that
// stage's completion predicate reads.
func applyStepValue(record *models.ProjectRecord, step models.StepID, value string) {
	switch step {
	case models.StepOrientation:
		if record.Title == "" {
			record.Title = value
		}
	case models.StepTheme:
		record.Foundation.Theme = value
	case models.StepDrivingQuestion:
		record.Foundation.DrivingQuestion = value
	case models.StepChallenge:
		record.Foundation.Challenge = value
	case models.StepPhases:
		record.Journey.Phases = append(record.Journey.Phases, models.JourneyPhase{Name: value})
	case models.StepMilestones:
		record.Deliverables.Milestones = append(record.Deliverables.Milestones, models.Milestone{Name: value})
	case models.StepReflection:
		now := time.Now().UTC()
		record.CompletedAt = &now
	}
}

// mergeExtracted fills empty foundation fields from extracted labels.
// Confirmed values are never overwritten.
func mergeExtracted(record *models.ProjectRecord, extracted *models.ExtractedData) {
	if extracted.IsEmpty() {
		return
	}
	if extracted.Theme != nil && record.Foundation.Theme == "" {
		record.Foundation.Theme = *extracted.Theme
	}
	if extracted.DrivingQuestion != nil && record.Foundation.DrivingQuestion == "" {
		record.Foundation.DrivingQuestion = *extracted.DrivingQuestion
	}
	if extracted.Challenge != nil && record.Foundation.Challenge == "" {
		record.Foundation.Challenge = *extracted.Challenge
	}
}

// persistProgress saves the machine snapshot and the updated conversation
// history for a step that is still in progress.
func (e *Engine) persistProgress(ctx context.Context, projectID string, stage models.StageID, step models.StepID, machine *progression.Machine, action models.Action, input string, history *ConversationHistory, reply string) error {
	if err := e.stateManager.SetCurrentState(ctx, projectID, stage, step, machine.State()); err != nil {
		return fmt.Errorf("failed to save flow state for project %s: %w", projectID, err)
	}

	countersJSON, err := json.Marshal(machine.Attempts())
	if err != nil {
		return fmt.Errorf("failed to marshal attempt counters: %w", err)
	}
	if err := e.stateManager.SetStateData(ctx, projectID, stage, step, models.DataKeyAttemptCounters, string(countersJSON)); err != nil {
		return fmt.Errorf("failed to save attempt counters for project %s: %w", projectID, err)
	}

	// A good free-text answer awaiting refinement becomes the pending value.
	if action.Kind == models.ActionOfferRefinement {
		if err := e.stateManager.SetStateData(ctx, projectID, stage, step, models.DataKeyPendingValue, input); err != nil {
			return fmt.Errorf("failed to save pending value for project %s: %w", projectID, err)
		}
	}

	now := time.Now()
	history.Messages = append(history.Messages,
		ConversationMessage{Role: "user", Content: input, Timestamp: now},
		ConversationMessage{Role: "assistant", Content: reply, Timestamp: now},
	)
	return e.saveHistory(ctx, projectID, stage, step, history)
}

// loadHistory reads the step's conversation history from state storage.
// Missing or unparseable history yields an empty one.
func (e *Engine) loadHistory(ctx context.Context, projectID string, stage models.StageID, step models.StepID) (*ConversationHistory, error) {
	historyJSON, err := e.stateManager.GetStateData(ctx, projectID, stage, step, models.DataKeyConversationHistory)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	if historyJSON == "" {
		return &ConversationHistory{Messages: []ConversationMessage{}}, nil
	}

	var history ConversationHistory
	if err := json.Unmarshal([]byte(historyJSON), &history); err != nil {
		slog.Error("Engine.loadHistory: failed to parse conversation history", "error", err, "projectID", projectID)
		return &ConversationHistory{Messages: []ConversationMessage{}}, nil
	}
	return &history, nil
}

// saveHistory persists conversation history, trimming to the retention bound.
func (e *Engine) saveHistory(ctx context.Context, projectID string, stage models.StageID, step models.StepID, history *ConversationHistory) error {
	if len(history.Messages) > maxHistoryLength {
		history.Messages = history.Messages[len(history.Messages)-maxHistoryLength:]
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation history: %w", err)
	}
	if err := e.stateManager.SetStateData(ctx, projectID, stage, step, models.DataKeyConversationHistory, string(historyJSON)); err != nil {
		return fmt.Errorf("failed to save conversation history: %w", err)
	}
	return nil
}
