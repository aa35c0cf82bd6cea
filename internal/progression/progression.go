// Package progression implements the per-step state machine that routes
// classified interactions and guarantees the conversation can never get stuck.
//
// A Machine is a single-owner value object scoped to one (stage, step): it
// holds only attempt counters and a transition state, starts at Initial with
// zero counters, and shares nothing across steps or sessions. The forced
// advancement guard runs before any routing, so no input sequence can hold a
// step longer than the configured budgets allow.
package progression

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kjbranchesi/alfcoach/internal/catalog"
	"github.com/kjbranchesi/alfcoach/internal/models"
)

// Config holds the attempt budgets. Budgets are tuned per deployment, never
// per step.
type Config struct {
	MaxCoaching   int `json:"max_coaching"`
	MaxRefinement int `json:"max_refinement"`
	MaxTotal      int `json:"max_total"`
}

// DefaultConfig returns the standard attempt budgets.
func DefaultConfig() Config {
	return Config{MaxCoaching: 3, MaxRefinement: 2, MaxTotal: 8}
}

// KeepAsIsOption is the refinement selection that accepts the pending value.
const KeepAsIsOption = "Keep it as-is"

// refinementOptions are offered after a high or medium quality response.
var refinementOptions = []string{
	KeepAsIsOption,
	"Make it more specific",
	"Make it more ambitious",
	"Simplify the wording",
}

// coachingPrompts are rotated through as Socratic follow-ups to a low
// quality response.
var coachingPrompts = []string{
	"What would make this matter to your students beyond the classroom?",
	"Who outside your school would care about this, and why?",
	"How would a student describe what this is really about, in their own words?",
}

// guidanceMenuOptions are presented for a plain help request.
var guidanceMenuOptions = []string{
	"Get some ideas",
	"See examples",
	"Keep writing my own",
}

// whatIfQuotedRe pulls the concept embedded in a hypothetical selection:
// the quoted span following "what if", else everything after the template
// phrasing.
var (
	whatIfQuotedRe = regexp.MustCompile(`(?i)what if\b[^"]*"([^"]+)"`)
	whatIfPlainRe  = regexp.MustCompile(`(?i)^\s*what if\b\s*(?:your project\s+)?(?:explored\s+|focused on\s+)?`)
)

// Machine is the progression state machine for one (stage, step).
type Machine struct {
	stage    models.StageID
	step     catalog.Step
	cfg      Config
	state    models.TransitionState
	attempts models.AttemptCounters
}

// NewMachine creates a machine at Initial with zero counters.
func NewMachine(stage models.StageID, step catalog.Step, cfg Config) *Machine {
	return &Machine{stage: stage, step: step, cfg: cfg, state: models.StateInitial}
}

// Restore rebuilds a machine from persisted state and counters, for example
// after a process restart. An unrecognized state falls back to Initial;
// counters are taken as-is.
func Restore(stage models.StageID, step catalog.Step, cfg Config, state models.TransitionState, attempts models.AttemptCounters) *Machine {
	if !state.IsValid() {
		state = models.StateInitial
	}
	return &Machine{stage: stage, step: step, cfg: cfg, state: state, attempts: attempts}
}

// State returns the current transition state.
func (m *Machine) State() models.TransitionState { return m.state }

// Attempts returns a copy of the current counters.
func (m *Machine) Attempts() models.AttemptCounters { return m.attempts }

// Reset returns the machine to Initial with zero counters, as happens when a
// step completes or the conversation restarts.
func (m *Machine) Reset() {
	m.state = models.StateInitial
	m.attempts = models.AttemptCounters{}
}

// Route decides the next action for one classified interaction.
//
// The forced-advancement guard runs first, unconditionally: once any budget
// is spent, every further interaction advances the step. This is the
// liveness guarantee for the whole conversation.
func (m *Machine) Route(kind models.InteractionKind, input string, quality models.QualityLevel) models.Action {
	if m.attempts.Coaching >= m.cfg.MaxCoaching ||
		m.attempts.Refinement >= m.cfg.MaxRefinement ||
		m.attempts.Total >= m.cfg.MaxTotal {
		slog.Info("progression.Route: attempt budget exhausted, forcing advancement",
			"stage", m.stage, "step", m.step.ID, "attempts", m.attempts)
		m.state = models.StateForcedAdvance
		return m.action(models.ActionForceAdvance,
			"Let's move forward with what you have. You can always come back and revise this later.",
			nil, true)
	}

	m.attempts.Total++

	switch kind {
	case models.InteractionFreeText:
		return m.routeFreeText(quality)
	case models.InteractionIdeas:
		m.attempts.Help++
		return m.action(models.ActionBrainstorm,
			"Here are a few directions to spark your thinking.",
			m.brainstormPrompts(), false)
	case models.InteractionExamples:
		m.attempts.Help++
		return m.action(models.ActionProvideExamples,
			fmt.Sprintf("Here are some examples of a strong %s.", strings.ToLower(m.step.Title)),
			m.step.Examples, false)
	case models.InteractionHelp:
		m.attempts.Help++
		return m.action(models.ActionGuidanceMenu, m.step.Guidance, guidanceMenuOptions, false)
	case models.InteractionRefinement:
		return m.routeRefinement(input)
	case models.InteractionWhatIf:
		return m.routeWhatIf(input)
	case models.InteractionExampleSelect:
		m.state = models.StateComplete
		return m.action(models.ActionCompleteStep, input, nil, true)
	case models.InteractionConfirm:
		m.state = models.StateComplete
		return m.action(models.ActionCompleteStep, "", nil, true)
	default:
		// Unrecognized classification routes as low-quality free text, the
		// most conservative fallback.
		slog.Warn("progression.Route: unrecognized interaction kind, treating as low-quality text",
			"kind", kind, "stage", m.stage, "step", m.step.ID)
		return m.routeFreeText(models.QualityLow)
	}
}

func (m *Machine) routeFreeText(quality models.QualityLevel) models.Action {
	switch quality.Normalize() {
	case models.QualityHigh:
		return m.routeGoodResponse()
	case models.QualityMedium:
		// Medium consumes a refinement attempt before behaving like high.
		m.attempts.Refinement++
		return m.routeGoodResponse()
	default:
		if m.attempts.Coaching < m.cfg.MaxCoaching {
			m.attempts.Coaching++
			m.state = models.StateCoaching
			prompt := coachingPrompts[(m.attempts.Coaching-1)%len(coachingPrompts)]
			return m.action(models.ActionCoach, prompt, nil, false)
		}
		// Coaching budget spent: fall back to worked examples. The user may
		// still pick one; this is not a forced advance.
		m.state = models.StateProvidingExamples
		return m.action(models.ActionProvideExamples,
			fmt.Sprintf("Let's try it another way. Here are some examples of a strong %s; pick one or use it as a starting point.", strings.ToLower(m.step.Title)),
			m.step.Examples, false)
	}
}

func (m *Machine) routeGoodResponse() models.Action {
	if m.attempts.Refinement < m.cfg.MaxRefinement {
		m.state = models.StateRefining
		return m.action(models.ActionOfferRefinement,
			"That's a strong answer. Want to refine it, or keep it as-is?",
			refinementOptions, false)
	}
	m.state = models.StateComplete
	return m.action(models.ActionCompleteStep, "", nil, true)
}

func (m *Machine) routeRefinement(selection string) models.Action {
	if isKeepAsIs(selection) {
		m.state = models.StateComplete
		return m.action(models.ActionCompleteStep, "", nil, true)
	}
	m.attempts.Refinement++
	m.state = models.StateRefining
	return m.action(models.ActionRequestRefinement,
		fmt.Sprintf("Good choice. Rewrite your %s with that in mind and send the new version.", strings.ToLower(m.step.Title)),
		nil, false)
}

func (m *Machine) routeWhatIf(selection string) models.Action {
	concept := extractWhatIfConcept(selection)
	m.state = models.StateDevelopingConcept
	message := "Interesting direction. Put it in your own words as your final answer."
	if concept != "" {
		message = fmt.Sprintf("Interesting direction: %q. Put it in your own words as your final answer.", concept)
	}
	return m.action(models.ActionDevelopConcept, message, nil, false)
}

// GetProgressSummary returns a read-only view of the step's progression,
// including how close the step is to forced advancement.
func (m *Machine) GetProgressSummary() models.ProgressSummary {
	return models.ProgressSummary{
		Stage:                  m.stage,
		Step:                   m.step.ID,
		State:                  m.state,
		Attempts:               m.attempts,
		PercentToForcedAdvance: m.percentToForcedAdvance(),
	}
}

func (m *Machine) percentToForcedAdvance() float64 {
	pct := 0.0
	for _, r := range []struct{ used, max int }{
		{m.attempts.Coaching, m.cfg.MaxCoaching},
		{m.attempts.Refinement, m.cfg.MaxRefinement},
		{m.attempts.Total, m.cfg.MaxTotal},
	} {
		if r.max <= 0 {
			return 100
		}
		if p := float64(r.used) / float64(r.max) * 100; p > pct {
			pct = p
		}
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

func (m *Machine) action(kind models.ActionKind, message string, suggestions []string, advance bool) models.Action {
	return models.Action{
		Kind:          kind,
		Message:       message,
		Suggestions:   suggestions,
		ShouldAdvance: advance,
		Attempts:      m.attempts,
		State:         m.state,
	}
}

// brainstormPrompts builds hypothetical prompts from the step's example bank.
func (m *Machine) brainstormPrompts() []string {
	if len(m.step.Examples) == 0 {
		return nil
	}
	out := make([]string, 0, len(m.step.Examples))
	for _, ex := range m.step.Examples {
		out = append(out, fmt.Sprintf("What if your project explored %q?", ex))
	}
	return out
}

// isKeepAsIs recognizes the literal keep-as-is refinement selection,
// tolerating casing and hyphenation.
func isKeepAsIs(selection string) bool {
	s := strings.ToLower(strings.TrimSpace(selection))
	s = strings.ReplaceAll(s, "-", " ")
	return strings.Contains(s, "keep") && strings.Contains(s, "as is")
}

// extractWhatIfConcept pulls the embedded concept out of a hypothetical
// selection: the quoted span after "what if", else the text left after
// stripping the template phrasing.
func extractWhatIfConcept(selection string) string {
	if m := whatIfQuotedRe.FindStringSubmatch(selection); m != nil {
		return strings.TrimSpace(m[1])
	}
	loc := whatIfPlainRe.FindStringIndex(selection)
	if loc == nil {
		// No template phrasing found; nothing reliable to extract.
		return ""
	}
	stripped := strings.TrimSpace(selection[loc[1]:])
	return strings.TrimSpace(strings.TrimSuffix(stripped, "?"))
}
