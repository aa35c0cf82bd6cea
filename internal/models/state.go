// Package models defines state management structures for conversation flows.
package models

import "time"

// TransitionState identifies where a (stage, step) conversation sits in its
// coaching lifecycle. Exactly one is active per (stage, step) at a time and
// transitions happen only through the progression state machine.
type TransitionState string

const (
	StateInitial           TransitionState = "INITIAL"
	StateCoaching          TransitionState = "COACHING"
	StateRefining          TransitionState = "REFINING"
	StateProvidingExamples TransitionState = "PROVIDING_EXAMPLES"
	StateDevelopingConcept TransitionState = "DEVELOPING_CONCEPT"
	StateForcedAdvance     TransitionState = "FORCED_ADVANCE"
	StateComplete          TransitionState = "COMPLETE"
)

// IsValid reports whether the transition state is recognized.
func (s TransitionState) IsValid() bool {
	switch s {
	case StateInitial, StateCoaching, StateRefining, StateProvidingExamples,
		StateDevelopingConcept, StateForcedAdvance, StateComplete:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the state ends the step's lifetime.
func (s TransitionState) IsTerminal() bool {
	return s == StateForcedAdvance || s == StateComplete
}

// InteractionKind classifies the user side of one exchange for routing.
type InteractionKind string

const (
	// InteractionFreeText is a free-form text response, quality-scored by the caller.
	InteractionFreeText InteractionKind = "text"
	// InteractionIdeas asks for brainstorming prompts.
	InteractionIdeas InteractionKind = "ideas"
	// InteractionExamples asks for worked examples.
	InteractionExamples InteractionKind = "examples"
	// InteractionHelp asks for the guidance menu.
	InteractionHelp InteractionKind = "help"
	// InteractionRefinement selects a refinement option for the pending value.
	InteractionRefinement InteractionKind = "refinement"
	// InteractionWhatIf selects a hypothetical "what if" scenario.
	InteractionWhatIf InteractionKind = "whatif"
	// InteractionExampleSelect picks a worked example as the step's value.
	InteractionExampleSelect InteractionKind = "example_select"
	// InteractionConfirm explicitly confirms the pending value.
	InteractionConfirm InteractionKind = "confirm"
)

// IsValid reports whether the interaction kind is recognized. Unrecognized
// kinds route as low-quality free text, the most conservative fallback.
func (k InteractionKind) IsValid() bool {
	switch k {
	case InteractionFreeText, InteractionIdeas, InteractionExamples, InteractionHelp,
		InteractionRefinement, InteractionWhatIf, InteractionExampleSelect, InteractionConfirm:
		return true
	default:
		return false
	}
}

// QualityLevel is the caller's classification of a free-text response.
type QualityLevel string

const (
	QualityHigh   QualityLevel = "high"
	QualityMedium QualityLevel = "medium"
	QualityLow    QualityLevel = "low"
)

// Normalize maps any unrecognized quality to low.
func (q QualityLevel) Normalize() QualityLevel {
	switch q {
	case QualityHigh, QualityMedium, QualityLow:
		return q
	default:
		return QualityLow
	}
}

// AttemptCounters tracks session-scoped attempts per (stage, step). Counters
// only ever increase within a step's lifetime; a step reset zeroes them.
type AttemptCounters struct {
	Coaching   int `json:"coaching"`
	Refinement int `json:"refinement"`
	Help       int `json:"help"`
	Total      int `json:"total"`
}

// ActionKind names what the caller should do with a routed interaction.
type ActionKind string

const (
	// ActionCoach emits Socratic prompts to push the response deeper.
	ActionCoach ActionKind = "coach"
	// ActionOfferRefinement offers an optional refinement choice for a good response.
	ActionOfferRefinement ActionKind = "offer_refinement"
	// ActionRequestRefinement asks for refined free text after a refinement selection.
	ActionRequestRefinement ActionKind = "request_refinement"
	// ActionProvideExamples shows worked examples from the step's example bank.
	ActionProvideExamples ActionKind = "provide_examples"
	// ActionBrainstorm shows hypothetical brainstorming prompts.
	ActionBrainstorm ActionKind = "brainstorm"
	// ActionGuidanceMenu shows the step's guidance and the available help options.
	ActionGuidanceMenu ActionKind = "guidance_menu"
	// ActionDevelopConcept asks the user to phrase a hypothetical as a final answer.
	ActionDevelopConcept ActionKind = "develop_concept"
	// ActionCompleteStep records the step's value and moves on.
	ActionCompleteStep ActionKind = "complete_step"
	// ActionForceAdvance moves on because attempt budgets are exhausted.
	ActionForceAdvance ActionKind = "force_advance"
)

// Action is the progression state machine's decision for one interaction.
type Action struct {
	Kind          ActionKind      `json:"kind"`
	Message       string          `json:"message,omitempty"`
	Suggestions   []string        `json:"suggestions,omitempty"`
	ShouldAdvance bool            `json:"should_advance"`
	Attempts      AttemptCounters `json:"attempts"`
	State         TransitionState `json:"state"`
}

// ProgressSummary is a read-only view of a step's progression for observability.
type ProgressSummary struct {
	Stage                  StageID         `json:"stage"`
	Step                   StepID          `json:"step"`
	State                  TransitionState `json:"state"`
	Attempts               AttemptCounters `json:"attempts"`
	PercentToForcedAdvance float64         `json:"percent_to_forced_advance"`
}

// DataKey represents a key for storing state-specific data
type DataKey string

// Data key constants for conversation flow state.
const (
	DataKeyConversationHistory DataKey = "conversationHistory"
	DataKeyAttemptCounters     DataKey = "attemptCounters"
	DataKeyPendingValue        DataKey = "pendingValue" // last free-text answer awaiting refinement or confirmation
)

// FlowState represents the persisted conversation state for a project's
// active (stage, step).
type FlowState struct {
	ProjectID    string             `json:"project_id"`
	Stage        StageID            `json:"stage"`
	Step         StepID             `json:"step"`
	CurrentState TransitionState    `json:"current_state"`
	StateData    map[DataKey]string `json:"state_data,omitempty"` // Additional state-specific data
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}
