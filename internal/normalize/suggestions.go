package normalize

import (
	"regexp"
	"strings"
)

// Quoted substrings are only treated as suggestions within this length band;
// shorter ones are usually emphasis, longer ones are prose.
const (
	minQuotedSuggestionLen = 10
	maxQuotedSuggestionLen = 100
)

var (
	whatIfLineRe = regexp.MustCompile(`(?im)^\s*(?:[-*•]\s*)?(what if\b.*\?)\s*$`)
	bulletLineRe = regexp.MustCompile(`(?m)^\s*[-*•]\s+(.+?)\s*$`)
	quotedRe     = regexp.MustCompile(`"([^"\n]+)"`)
	// Bullet lines that merely restate field labels are not suggestions.
	labelBulletRe = regexp.MustCompile(`(?i)^(?:\*\*)?\s*(?:theme|driving question|essential question|challenge|task|big idea)\b\s*\d*\s*(?:\*\*)?\s*:`)
)

// extractSuggestions prefers an explicit well-formed suggestions list, then
// applies the text extractors in priority order: "what if" lines, bullet
// lines, and finally quoted substrings when no bullets were found. Returns
// nil when nothing matches.
func extractSuggestions(fields map[string]interface{}, text string) []string {
	if explicit := explicitSuggestions(fields); explicit != nil {
		return explicit
	}

	if whatIfs := extractWhatIfLines(text); len(whatIfs) > 0 {
		return whatIfs
	}

	bullets, sawBullet := extractBulletLines(text)
	if len(bullets) > 0 {
		return bullets
	}
	if sawBullet {
		// Bullets existed but were all label restatements; do not fall
		// through to quote scanning over the same lines.
		return nil
	}

	if quoted := extractQuoted(text); len(quoted) > 0 {
		return quoted
	}
	return nil
}

// explicitSuggestions accepts a suggestions field only when it is an array of
// non-empty strings. A malformed list is ignored rather than partially used.
func explicitSuggestions(fields map[string]interface{}) []string {
	if fields == nil {
		return nil
	}
	raw, ok := fields["suggestions"].([]interface{})
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil
		}
		out = append(out, s)
	}
	return out
}

func extractWhatIfLines(text string) []string {
	var out []string
	for _, m := range whatIfLineRe.FindAllStringSubmatch(text, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// extractBulletLines returns the bullet-prefixed lines that look like real
// suggestions, and whether any bullet line existed at all.
func extractBulletLines(text string) ([]string, bool) {
	var out []string
	matches := bulletLineRe.FindAllStringSubmatch(text, -1)
	for _, m := range matches {
		line := strings.TrimSpace(m[1])
		if labelBulletRe.MatchString(line) {
			continue
		}
		out = append(out, line)
	}
	return out, len(matches) > 0
}

func extractQuoted(text string) []string {
	var out []string
	for _, m := range quotedRe.FindAllStringSubmatch(text, -1) {
		candidate := strings.TrimSpace(m[1])
		if len(candidate) >= minQuotedSuggestionLen && len(candidate) <= maxQuotedSuggestionLen {
			out = append(out, candidate)
		}
	}
	return out
}
