package review

import (
	"regexp"
	"strings"
)

// Scores for the closed label set.
const (
	ScoreNo    = 0
	ScoreMaybe = 1
	ScoreYes   = 2
)

var (
	answerPattern = regexp.MustCompile(`(?mi)^\s*answer:\s*(.+?)\s*$`)
	reasonPattern = regexp.MustCompile(`(?mi)^\s*reason:\s*(.+?)\s*$`)
)

// parseResponse extracts the label and reasoning from a model response.
// Only responses with a recognizable Answer: line count as parsed; an
// unparseable response is indistinguishable from "-1" for the caller.
func parseResponse(raw string) (label, reason string, ok bool) {
	m := answerPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", "", false
	}
	label = normalizeLabel(m[1])
	if label == "" {
		return "", "", false
	}

	if r := reasonPattern.FindStringSubmatch(raw); r != nil {
		reason = r[1]
	}
	return label, reason, true
}

// normalizeLabel maps a raw answer token onto the closed set, tolerating
// trailing punctuation and markdown emphasis. Returns "" for anything else.
func normalizeLabel(raw string) string {
	token := strings.ToLower(strings.Trim(strings.TrimSpace(raw), `*_."'`))
	token = strings.TrimSuffix(token, ".")
	switch token {
	case "yes":
		return "yes"
	case "maybe":
		return "maybe"
	case "no":
		return "no"
	case "-1":
		return "-1"
	default:
		return ""
	}
}

// scoreForLabel maps a normalized label to its score. The second return is
// false for "-1", which is not a score.
func scoreForLabel(label string) (int, bool) {
	switch label {
	case "yes":
		return ScoreYes, true
	case "maybe":
		return ScoreMaybe, true
	case "no":
		return ScoreNo, true
	default:
		return 0, false
	}
}
