// Package normalize converts arbitrary generation-service payloads into the
// canonical conversation turn envelope.
//
// The upstream service's output shape is not contractually fixed, so this
// package is the one place untrusted shapes are absorbed: every extractor
// degrades to a default and Normalize never panics. Nothing here holds state;
// the result is a pure function of (raw payload, expected stage, last user
// input).
package normalize

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/kjbranchesi/alfcoach/internal/catalog"
	"github.com/kjbranchesi/alfcoach/internal/models"
)

// fallbackText is used when no content can be extracted from the payload.
// The canonical turn's text must never be empty.
const fallbackText = "Let's keep building on your project. Tell me more about what you have in mind."

// textFieldAliases is the compatibility surface with the upstream service:
// plausible names for the response-text field, probed in priority order.
var textFieldAliases = []string{
	"chatResponse",
	"response",
	"message",
	"text",
	"content",
	"reply",
	"answer",
	"output",
}

// maxProbeDepth bounds recursion into nested objects during content probing.
const maxProbeDepth = 3

// completionVocabulary marks a step as done when present in the turn text.
var completionVocabulary = []string{
	"complete",
	"finished",
	"ready to move on",
}

// readinessVocabulary marks a step as done only when no suggestions remain.
var readinessVocabulary = []string{
	"ready",
	"move on",
	"next step",
	"next stage",
}

// Normalizer turns raw payloads into canonical conversation turns using the
// stage catalog for step inference.
type Normalizer struct {
	cat *catalog.Catalog
}

// New creates a Normalizer over the given catalog.
func New(cat *catalog.Catalog) *Normalizer {
	return &Normalizer{cat: cat}
}

// Normalize converts a raw payload into a canonical turn. It is total: any
// input, including nil, produces a turn with non-empty text and a recognized
// kind.
func (n *Normalizer) Normalize(raw interface{}, expectedStage models.StageID, lastUserInput string) models.ConversationTurn {
	fields := asFieldMap(raw)
	text := extractText(raw, fields)

	turn := models.ConversationTurn{
		Text:  text,
		Kind:  inferKind(fields, expectedStage, text),
		Stage: expectedStage,
	}

	turn.Suggestions = extractSuggestions(fields, text)
	turn.Step = n.inferStep(expectedStage, text)
	turn.StepComplete = inferCompletion(text, turn.Suggestions)
	turn.Extracted = extractLabeled(text)

	slog.Debug("Normalizer.Normalize: normalized turn",
		"stage", expectedStage,
		"step", turn.Step,
		"kind", turn.Kind,
		"suggestionCount", len(turn.Suggestions),
		"stepComplete", turn.StepComplete,
		"extracted", !turn.Extracted.IsEmpty(),
		"lastUserInputLength", len(lastUserInput))
	return turn
}

// asFieldMap exposes the payload's fields when it is object-shaped.
// Raw JSON bytes are decoded; anything else yields nil.
func asFieldMap(raw interface{}) map[string]interface{} {
	switch v := raw.(type) {
	case map[string]interface{}:
		return v
	case json.RawMessage:
		return decodeFieldMap([]byte(v))
	case []byte:
		return decodeFieldMap(v)
	default:
		return nil
	}
}

func decodeFieldMap(data []byte) map[string]interface{} {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

// extractText takes a bare string verbatim, probes the alias list on
// object-shaped payloads, and falls back to a generic continuation message.
func extractText(raw interface{}, fields map[string]interface{}) string {
	if s, ok := raw.(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	if text := probeText(fields, maxProbeDepth); text != "" {
		return text
	}
	return fallbackText
}

// probeText walks the alias list, descending into nested objects up to the
// depth limit so shapes like {"message": {"content": "..."}} still resolve.
func probeText(fields map[string]interface{}, depth int) string {
	if fields == nil || depth <= 0 {
		return ""
	}
	for _, alias := range textFieldAliases {
		val, ok := fields[alias]
		if !ok {
			continue
		}
		switch v := val.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		case map[string]interface{}:
			if text := probeText(v, depth-1); text != "" {
				return text
			}
		}
	}
	return ""
}

// inferKind trusts an explicit, recognized kind field, then falls back to the
// expected stage, then lexical cues in the text, then the generic kind.
func inferKind(fields map[string]interface{}, expectedStage models.StageID, text string) models.TurnKind {
	if fields != nil {
		for _, key := range []string{"interactionType", "interaction_kind", "kind", "type"} {
			if v, ok := fields[key].(string); ok {
				if k := models.TurnKind(v); k.IsValid() {
					return k
				}
			}
		}
	}

	if expectedStage == models.StageFoundation {
		return models.TurnConversationalFoundation
	}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "welcome"):
		return models.TurnWelcome
	case strings.Contains(lower, "framework"):
		return models.TurnFramework
	case strings.Contains(lower, "guide"):
		return models.TurnGuide
	}
	return models.TurnStandard
}

// inferStep scans the text for step-identifying keywords in catalog priority
// order. Only the foundation stage carries enough lexical signal to infer a
// step; other stages have a single active step anyway.
func (n *Normalizer) inferStep(stage models.StageID, text string) models.StepID {
	if stage != models.StageFoundation {
		return ""
	}
	s, ok := n.cat.Stage(stage)
	if !ok || len(s.Steps) == 0 {
		return ""
	}
	lower := strings.ToLower(text)
	for _, step := range s.Steps {
		for _, kw := range step.Keywords {
			if strings.Contains(lower, kw) {
				return step.ID
			}
		}
	}
	return s.Steps[0].ID
}

// inferCompletion marks the step done on completion vocabulary, or on
// readiness vocabulary once no suggestions remain open.
func inferCompletion(text string, suggestions []string) bool {
	lower := strings.ToLower(text)
	for _, word := range completionVocabulary {
		if strings.Contains(lower, word) {
			return true
		}
	}
	if suggestions == nil {
		for _, word := range readinessVocabulary {
			if strings.Contains(lower, word) {
				return true
			}
		}
	}
	return false
}
