// Package models defines the canonical conversation turn envelope.
package models

// TurnKind classifies the assistant side of one exchange. The normalizer
// always produces a recognized value even when the upstream payload names
// none.
type TurnKind string

const (
	// TurnWelcome greets the user at the start of a stage.
	TurnWelcome TurnKind = "welcome"
	// TurnFramework explains the pedagogical framework being applied.
	TurnFramework TurnKind = "framework"
	// TurnGuide walks the user through what to do next.
	TurnGuide TurnKind = "guide"
	// TurnConversationalFoundation is the conversational sub-kind used
	// throughout the foundation-building stage.
	TurnConversationalFoundation TurnKind = "conversationalFoundation"
	// TurnStandard is the generic fallback kind.
	TurnStandard TurnKind = "standard"
)

// IsValid reports whether the turn kind is recognized.
func (k TurnKind) IsValid() bool {
	switch k {
	case TurnWelcome, TurnFramework, TurnGuide, TurnConversationalFoundation, TurnStandard:
		return true
	default:
		return false
	}
}

// ExtractedData carries "Label: value" pairs pulled from a turn's text.
// Pointers distinguish "label absent" from "label present but empty";
// absent labels are never defaulted to empty strings.
type ExtractedData struct {
	Theme           *string `json:"theme,omitempty"`
	DrivingQuestion *string `json:"driving_question,omitempty"`
	Challenge       *string `json:"challenge,omitempty"`
}

// IsEmpty reports whether no label was extracted at all.
func (d *ExtractedData) IsEmpty() bool {
	return d == nil || (d.Theme == nil && d.DrivingQuestion == nil && d.Challenge == nil)
}

// ConversationTurn is the normalized result of one exchange, independent of
// the upstream payload format. Text is always non-empty and Kind is always a
// recognized value.
type ConversationTurn struct {
	Text         string         `json:"text"`
	Kind         TurnKind       `json:"interaction_kind"`
	Stage        StageID        `json:"stage"`
	Step         StepID         `json:"step,omitempty"`
	Suggestions  []string       `json:"suggestions,omitempty"`
	StepComplete bool           `json:"step_complete"`
	Extracted    *ExtractedData `json:"extracted_data,omitempty"`
}
