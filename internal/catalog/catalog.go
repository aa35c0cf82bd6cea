// Package catalog holds the static stage and step configuration for the
// guided conversation: stage order, recognized steps, completion predicates,
// guidance templates, and example banks.
//
// The catalog is pure data plus lookups; it never mutates a project record.
package catalog

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/kjbranchesi/alfcoach/internal/models"
)

// Predicate reports whether a project record satisfies a step or stage goal.
type Predicate func(r *models.ProjectRecord) bool

// Step describes one sub-goal within a stage.
type Step struct {
	ID       models.StepID
	Title    string
	Guidance string   // guidance template shown to the user and fed to the generation service
	Keywords []string // step-identifying keywords, scanned in priority order
	Examples []string // last-resort suggestion bank
	Complete Predicate
}

// Stage describes one top-level phase of the conversation.
type Stage struct {
	ID       models.StageID
	Title    string
	Steps    []Step
	Complete Predicate // all required data collected
	Started  Predicate // at least some data collected
}

// Catalog is an ordered collection of stages with index lookups.
type Catalog struct {
	stages []Stage
	index  map[models.StageID]int
}

// New builds a catalog from the given stages, preserving order.
func New(stages []Stage) *Catalog {
	c := &Catalog{stages: stages, index: make(map[models.StageID]int, len(stages))}
	for i, s := range stages {
		c.index[s.ID] = i
	}
	return c
}

// Stages returns the stages in their fixed order.
func (c *Catalog) Stages() []Stage { return c.stages }

// Stage looks up a stage by ID.
func (c *Catalog) Stage(id models.StageID) (Stage, bool) {
	i, ok := c.index[id]
	if !ok {
		return Stage{}, false
	}
	return c.stages[i], true
}

// Step looks up a step within a stage.
func (c *Catalog) Step(stage models.StageID, step models.StepID) (Step, bool) {
	s, ok := c.Stage(stage)
	if !ok {
		return Step{}, false
	}
	for _, st := range s.Steps {
		if st.ID == step {
			return st, true
		}
	}
	return Step{}, false
}

// FirstStep returns the first step of a stage. The zero Step is returned for
// an unknown stage or a stage with no steps.
func (c *Catalog) FirstStep(stage models.StageID) Step {
	s, ok := c.Stage(stage)
	if !ok || len(s.Steps) == 0 {
		return Step{}
	}
	return s.Steps[0]
}

// ActiveStep returns the earliest step of the stage whose completion
// predicate is not yet satisfied, falling back to the last step once all are.
func (c *Catalog) ActiveStep(stage models.StageID, r *models.ProjectRecord) Step {
	s, ok := c.Stage(stage)
	if !ok || len(s.Steps) == 0 {
		return Step{}
	}
	for _, st := range s.Steps {
		if st.Complete == nil || !st.Complete(r) {
			return st
		}
	}
	return s.Steps[len(s.Steps)-1]
}

// Validate checks the catalog for structural problems: unknown stage IDs,
// duplicate steps, and missing guidance.
func (c *Catalog) Validate() error {
	if len(c.stages) == 0 {
		return fmt.Errorf("catalog has no stages")
	}
	for _, s := range c.stages {
		if !s.ID.IsValid() {
			return fmt.Errorf("unknown stage id %q", s.ID)
		}
		seen := make(map[models.StepID]bool, len(s.Steps))
		for _, st := range s.Steps {
			if st.ID == "" {
				return fmt.Errorf("stage %s has a step with no id", s.ID)
			}
			if seen[st.ID] {
				return fmt.Errorf("stage %s has duplicate step %q", s.ID, st.ID)
			}
			seen[st.ID] = true
			if strings.TrimSpace(st.Guidance) == "" {
				return fmt.Errorf("stage %s step %s has no guidance", s.ID, st.ID)
			}
		}
	}
	return nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	slog.Debug("catalog.Default: building built-in stage catalog")
	return New([]Stage{
		{
			ID:    models.StageGrounding,
			Title: "Grounding",
			Steps: []Step{
				{
					ID:       models.StepOrientation,
					Title:    "Orientation",
					Guidance: "Welcome! Together we will design a learning project in a few guided stages. Tell me a little about your class and what you hope students will get out of this project.",
					Keywords: []string{"orientation", "welcome"},
					Examples: []string{
						"A 7th grade science class curious about the natural world",
						"A high school civics class preparing for a community forum",
					},
					Complete: func(r *models.ProjectRecord) bool { return r != nil && r.Title != "" },
				},
			},
			Complete: func(r *models.ProjectRecord) bool { return r != nil && r.Title != "" },
			Started:  func(r *models.ProjectRecord) bool { return r != nil && r.Title != "" },
		},
		{
			ID:    models.StageFoundation,
			Title: "Conceptual Foundation",
			Steps: []Step{
				{
					ID:       models.StepTheme,
					Title:    "Theme",
					Guidance: "Every strong project starts from a theme: a broad concept that connects your subject to the wider world. What theme could anchor this project?",
					Keywords: []string{"theme", "big idea"},
					Examples: []string{
						"Sustainability in our local community",
						"Systems and how small changes ripple outward",
						"Identity and the stories we tell about ourselves",
					},
					Complete: func(r *models.ProjectRecord) bool { return r != nil && r.Foundation.Theme != "" },
				},
				{
					ID:       models.StepDrivingQuestion,
					Title:    "Driving Question",
					Guidance: "A driving question is open-ended and keeps students asking why. What question could sustain inquiry across your whole project?",
					Keywords: []string{"driving question", "essential question"},
					Examples: []string{
						"How might we reduce waste in our school without spending money?",
						"Why do some communities recover from disasters faster than others?",
						"What does it take for a story to change someone's mind?",
					},
					Complete: func(r *models.ProjectRecord) bool { return r != nil && r.Foundation.DrivingQuestion != "" },
				},
				{
					ID:       models.StepChallenge,
					Title:    "Challenge",
					Guidance: "Now make it concrete: a challenge is the real task students take on and share with an audience. What will your students actually make or do?",
					Keywords: []string{"challenge", "task"},
					Examples: []string{
						"Design and pitch a zero waste plan to the school board",
						"Produce a podcast episode interviewing local experts",
						"Build a working prototype and demo it at a community fair",
					},
					Complete: func(r *models.ProjectRecord) bool { return r != nil && r.Foundation.Challenge != "" },
				},
			},
			Complete: func(r *models.ProjectRecord) bool {
				return r != nil && r.Foundation.Theme != "" && r.Foundation.DrivingQuestion != "" && r.Foundation.Challenge != ""
			},
			Started: func(r *models.ProjectRecord) bool {
				return r != nil && (r.Foundation.Theme != "" || r.Foundation.DrivingQuestion != "" || r.Foundation.Challenge != "")
			},
		},
		{
			ID:    models.StageJourney,
			Title: "Learning Pathway",
			Steps: []Step{
				{
					ID:       models.StepPhases,
					Title:    "Phases",
					Guidance: "Sketch the learning pathway as a few ordered phases, from first exposure to final work. What phases will your students move through?",
					Keywords: []string{"phase", "pathway", "journey"},
					Examples: []string{
						"Investigate, prototype, refine, exhibit",
						"Wonder, research, create, share",
					},
					Complete: func(r *models.ProjectRecord) bool { return r != nil && len(r.Journey.Phases) > 0 },
				},
			},
			Complete: func(r *models.ProjectRecord) bool { return r != nil && len(r.Journey.Phases) > 0 },
			Started:  func(r *models.ProjectRecord) bool { return r != nil && len(r.Journey.Phases) > 0 },
		},
		{
			ID:    models.StageDeliverables,
			Title: "Deliverables",
			Steps: []Step{
				{
					ID:       models.StepMilestones,
					Title:    "Milestones",
					Guidance: "Define the artifacts that show learning happened: drafts, checkpoints, and the final product. What milestones will you assess?",
					Keywords: []string{"milestone", "deliverable", "artifact"},
					Examples: []string{
						"Research notebook check at the end of week two",
						"Peer-reviewed draft before the final exhibition",
					},
					Complete: func(r *models.ProjectRecord) bool { return r != nil && len(r.Deliverables.Milestones) > 0 },
				},
			},
			Complete: func(r *models.ProjectRecord) bool { return r != nil && len(r.Deliverables.Milestones) > 0 },
			Started:  func(r *models.ProjectRecord) bool { return r != nil && len(r.Deliverables.Milestones) > 0 },
		},
		{
			ID:    models.StageReview,
			Title: "Review",
			Steps: []Step{
				{
					ID:       models.StepReflection,
					Title:    "Reflection",
					Guidance: "Your project design is complete. Review each stage and adjust anything that no longer fits.",
					Keywords: []string{"review", "reflect"},
					Examples: []string{},
					Complete: func(r *models.ProjectRecord) bool { return r != nil && r.CompletedAt != nil },
				},
			},
			Complete: func(r *models.ProjectRecord) bool { return r != nil && r.CompletedAt != nil },
			Started:  func(r *models.ProjectRecord) bool { return r != nil && r.CompletedAt != nil },
		},
	})
}
