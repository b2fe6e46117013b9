package proof

import (
	"regexp"
	"strings"

	"example.com/quest/internal/domain"
)

var (
	digitPattern = regexp.MustCompile(`\d`)
	// Matches 12/03/2026, 2026-03-12, 12.03.26 and similar.
	datePattern = regexp.MustCompile(`\b\d{1,4}[./-]\d{1,2}[./-]\d{1,4}\b`)
	linkPattern = regexp.MustCompile(`https?://\S+|www\.\S+`)
)

const largeImageBytes = 50 * 1024

// heuristicScore computes the deterministic baseline from observable signals
// only. It needs no provider and can never fail.
func heuristicScore(shot Screenshot, combinedText string) domain.ScoreResult {
	total := 35
	var tips, signals []string

	if len(shot.Data) >= largeImageBytes {
		total += 10
		signals = append(signals, "image:large")
	} else {
		tips = append(tips, "Send a full-resolution screenshot so details stay readable.")
	}

	text := strings.TrimSpace(combinedText)
	if digitPattern.MatchString(text) {
		total += 10
		signals = append(signals, "text:digits")
	}
	if datePattern.MatchString(text) {
		total += 15
		signals = append(signals, "text:date")
	} else {
		tips = append(tips, "Include a visible date in the screenshot to anchor when you did this.")
	}
	if linkPattern.MatchString(text) {
		total += 15
		signals = append(signals, "text:link")
	}
	if len(text) >= 80 {
		total += 10
		signals = append(signals, "text:rich")
	} else {
		tips = append(tips, "Add a short note describing what the screenshot shows.")
	}

	clamped := domain.ClampScore(total)
	return domain.ScoreResult{
		Score:   clamped,
		Label:   domain.LabelFor(clamped),
		Tips:    tips,
		Signals: signals,
		Meta: map[string]any{
			"image_mime":  shot.MIME,
			"image_bytes": len(shot.Data),
			"text_chars":  len(text),
		},
	}
}
