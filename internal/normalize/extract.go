package normalize

import (
	"regexp"
	"strings"

	"github.com/kjbranchesi/alfcoach/internal/models"
)

// Label extraction is best-effort pattern matching over free text, not an
// authoritative parse. Absent labels leave the field unset; nothing here ever
// produces an empty-string value.
var (
	themeLabelRe     = regexp.MustCompile(`(?im)^\s*(?:\*\*)?theme(?:\*\*)?\s*:\s*(.+)$`)
	questionLabelRe  = regexp.MustCompile(`(?im)^\s*(?:\*\*)?(?:driving|essential) question(?:\*\*)?\s*:\s*(.+)$`)
	challengeLabelRe = regexp.MustCompile(`(?im)^\s*(?:\*\*)?(?:challenge|task)(?:\*\*)?\s*:\s*(.+)$`)
)

// extractLabeled pulls "Label: value" pairs for the known foundation labels.
// Returns nil when no label is present.
func extractLabeled(text string) *models.ExtractedData {
	var data models.ExtractedData

	if v := firstLabelValue(themeLabelRe, text); v != "" {
		data.Theme = &v
	}
	if v := firstLabelValue(questionLabelRe, text); v != "" {
		data.DrivingQuestion = &v
	}
	if v := firstLabelValue(challengeLabelRe, text); v != "" {
		data.Challenge = &v
	}

	if data.IsEmpty() {
		return nil
	}
	return &data
}

func firstLabelValue(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return cleanLabelValue(m[1])
}

// cleanLabelValue strips markdown emphasis and wrapping quotes the model
// tends to decorate values with.
func cleanLabelValue(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Trim(v, "*_")
	v = strings.Trim(v, `"'`)
	return strings.TrimSpace(v)
}
