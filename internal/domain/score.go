package domain

// Canonical proof score labels.
const (
	LabelStrong = "Strong"
	LabelOK     = "OK"
	LabelWeak   = "Weak"
)

// ScoreResult is the common payload returned by the link validator, the
// screenshot pipeline, and persisted into proof submissions.
type ScoreResult struct {
	Score   int            `json:"score"`
	Label   string         `json:"label"`
	Tips    []string       `json:"tips"`
	Signals []string       `json:"signals"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// ClampScore bounds a raw score to [0,100].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// LabelFor derives the canonical label from a clamped score.
func LabelFor(score int) string {
	switch {
	case score >= 80:
		return LabelStrong
	case score >= 60:
		return LabelOK
	default:
		return LabelWeak
	}
}

// CanonicalLabel returns the label unchanged when canonical, otherwise
// re-derives it from the score.
func CanonicalLabel(label string, score int) string {
	switch label {
	case LabelStrong, LabelOK, LabelWeak:
		return label
	}
	return LabelFor(score)
}
