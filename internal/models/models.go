// Package models defines the core data structures for the curriculum-design
// conversation service.
//
// It includes stage and step identifiers, the canonical conversation turn
// envelope, the persisted project record, and API response types shared
// across modules.
package models

import (
	"errors"
	"time"
)

// StageID identifies a top-level phase of the guided conversation.
type StageID string

const (
	// StageGrounding orients the educator and collects basic project context.
	StageGrounding StageID = "grounding"
	// StageFoundation builds the conceptual foundation: theme, driving question, challenge.
	StageFoundation StageID = "foundation"
	// StageJourney designs the learning pathway as ordered phases.
	StageJourney StageID = "journey"
	// StageDeliverables defines assessment artifacts and milestones.
	StageDeliverables StageID = "deliverables"
	// StageReview is the terminal stage once everything else is complete.
	StageReview StageID = "review"
)

// StageOrder returns the fixed, total order of stages.
func StageOrder() []StageID {
	return []StageID{StageGrounding, StageFoundation, StageJourney, StageDeliverables, StageReview}
}

// IsValid reports whether the stage is one of the recognized stages.
func (s StageID) IsValid() bool {
	switch s {
	case StageGrounding, StageFoundation, StageJourney, StageDeliverables, StageReview:
		return true
	default:
		return false
	}
}

// String returns the string representation of the stage.
func (s StageID) String() string { return string(s) }

// StepID identifies a sub-goal within a stage.
type StepID string

const (
	// StepOrientation is the single grounding step.
	StepOrientation StepID = "orientation"
	// StepTheme collects the project's unifying theme.
	StepTheme StepID = "theme"
	// StepDrivingQuestion collects the open question that drives inquiry.
	StepDrivingQuestion StepID = "drivingQuestion"
	// StepChallenge collects the concrete task students will take on.
	StepChallenge StepID = "challenge"
	// StepPhases collects the ordered pathway phases.
	StepPhases StepID = "phases"
	// StepMilestones collects deliverable milestones.
	StepMilestones StepID = "milestones"
	// StepReflection closes out the review stage.
	StepReflection StepID = "reflection"
)

// StageCompletion is the derived per-stage progress status.
type StageCompletion string

const (
	StageNotStarted StageCompletion = "not_started"
	StageInProgress StageCompletion = "in_progress"
	StageComplete   StageCompletion = "complete"
)

// DerivedStatus is the read-model computed from a project record. It names
// the stage an editor should land on and the completion status per stage.
type DerivedStatus struct {
	CurrentStage StageID                     `json:"current_stage"`
	StageStatus  map[StageID]StageCompletion `json:"stage_status"`
}

// FoundationData holds the conceptual foundation collected during the
// foundation stage. Empty strings mean the value has not been confirmed yet.
type FoundationData struct {
	Theme           string `json:"theme,omitempty"`
	DrivingQuestion string `json:"driving_question,omitempty"`
	Challenge       string `json:"challenge,omitempty"`
}

// JourneyPhase is one phase of the learning pathway.
type JourneyPhase struct {
	Name    string `json:"name"`
	Summary string `json:"summary,omitempty"`
}

// JourneyData holds the learning pathway.
type JourneyData struct {
	Phases []JourneyPhase `json:"phases,omitempty"`
}

// Milestone is one assessment artifact in the deliverables stage.
type Milestone struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// DeliverablesData holds the assessment artifacts.
type DeliverablesData struct {
	Milestones []Milestone `json:"milestones,omitempty"`
}

// ProjectRecord is the persisted document the service reads and derives
// navigational state from. The store owns its lifecycle; the conversation
// core only reads it and proposes updates for the caller to persist.
type ProjectRecord struct {
	ID           string           `json:"id"`
	Title        string           `json:"title,omitempty"`
	Foundation   FoundationData   `json:"foundation"`
	Journey      JourneyData      `json:"journey"`
	Deliverables DeliverablesData `json:"deliverables"`
	// CachedStatus short-circuits derivation when present.
	CachedStatus *DerivedStatus `json:"cached_status,omitempty"`
	// CompletedAt marks the whole project finished; forces the review stage.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Validation constants for input validation
const (
	// MaxTitleLength defines the maximum allowed length for project titles
	MaxTitleLength = 200
	// MaxTurnInputLength defines the maximum allowed length for a single turn input
	MaxTurnInputLength = 4096
)

// Error variables for better error handling and testability
var (
	ErrEmptyTitle       = errors.New("title cannot be empty")
	ErrTitleTooLong     = errors.New("title exceeds maximum length")
	ErrEmptyTurnInput   = errors.New("turn input cannot be empty")
	ErrTurnInputTooLong = errors.New("turn input exceeds maximum length")
	ErrProjectNotFound  = errors.New("project not found")
)

// CreateProjectRequest is the payload for creating a new project.
type CreateProjectRequest struct {
	Title string `json:"title"`
}

// Validate performs validation on a CreateProjectRequest.
func (r *CreateProjectRequest) Validate() error {
	if r.Title == "" {
		return ErrEmptyTitle
	}
	if len(r.Title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	return nil
}

// TurnRequest is the payload for submitting one conversational exchange.
// Kind defaults to free text; Quality is the caller's classification of a
// free-text response and anything unrecognized is treated as low quality.
type TurnRequest struct {
	Input   string          `json:"input"`
	Kind    InteractionKind `json:"kind,omitempty"`
	Quality QualityLevel    `json:"quality,omitempty"`
}

// Validate performs validation on a TurnRequest.
func (r *TurnRequest) Validate() error {
	if r.Input == "" {
		return ErrEmptyTurnInput
	}
	if len(r.Input) > MaxTurnInputLength {
		return ErrTurnInputTooLong
	}
	return nil
}

// TurnResult bundles everything one processed exchange produces.
type TurnResult struct {
	Turn   ConversationTurn `json:"turn"`
	Action Action           `json:"action"`
	Status DerivedStatus    `json:"status"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusCreated indicates a resource was created via API.
	APIStatusCreated APIStatus = "created"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{response: APIResponse{}}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// Created creates a created API response with result data.
func Created(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusCreated).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
