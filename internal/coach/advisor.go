// Package coach generates profile-aware coaching advice cards, backed by the
// AI provider chain with a deterministic static fallback.
package coach

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"example.com/quest/internal/domain"
	"example.com/quest/internal/jsonx"
	"example.com/quest/internal/llm"
)

// Engine names reported in the advice payload.
const (
	EngineAI     = "ai"
	EngineStatic = "static"
)

// Card is one structured advice unit.
type Card struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Items []string `json:"items,omitempty"`
}

// Advice is the coach response.
type Advice struct {
	Engine string `json:"engine"`
	Cards  []Card `json:"cards"`
}

// ProgressSummary condenses the progress record for prompting.
type ProgressSummary struct {
	Level          int
	XP             int
	CompletedCount int
	Recent         []domain.ProofSubmission
}

// Summarize derives the coaching summary from a progress document: level,
// experience, completed count, and up to the 3 most recent proof submissions.
func Summarize(doc domain.ProgressDoc) ProgressSummary {
	summary := ProgressSummary{
		Level:          doc.Level,
		XP:             doc.XP,
		CompletedCount: len(doc.CompletedTasks),
	}

	recent := make([]domain.ProofSubmission, 0, len(doc.Proofs))
	for _, proof := range doc.Proofs {
		recent = append(recent, proof)
	}
	sort.Slice(recent, func(i, j int) bool {
		return recent[i].SubmittedAt.After(recent[j].SubmittedAt)
	})
	if len(recent) > 3 {
		recent = recent[:3]
	}
	summary.Recent = recent
	return summary
}

// Advisor generates advice cards.
type Advisor struct {
	chain   *llm.Chain
	timeout time.Duration
	logger  *zap.Logger
}

// NewAdvisor builds an Advisor. The chain may be empty; every request then
// takes the static path.
func NewAdvisor(chain *llm.Chain, timeout time.Duration, logger *zap.Logger) *Advisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Advisor{chain: chain, timeout: timeout, logger: logger}
}

// Coach returns 3-6 AI-generated cards grounded in the profile and mission,
// or 2 static cards when no provider delivers a usable card set.
func (a *Advisor) Coach(ctx context.Context, profile domain.Profile, mission domain.MissionContext, summary ProgressSummary) Advice {
	if a.chain != nil && !a.chain.Empty() {
		if cards, ok := a.generate(ctx, profile, mission, summary); ok {
			return Advice{Engine: EngineAI, Cards: cards}
		}
	}
	return Advice{Engine: EngineStatic, Cards: staticCards(summary)}
}

func (a *Advisor) generate(ctx context.Context, profile domain.Profile, mission domain.MissionContext, summary ProgressSummary) ([]Card, bool) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, provider, err := a.chain.Generate(ctx, llm.Request{
		System:    coachSystemPrompt,
		Prompt:    coachPrompt(profile, mission, summary),
		MaxTokens: 1536,
	})
	if err != nil {
		a.logger.Debug("coach generation failed", zap.Error(err))
		return nil, false
	}

	var payload struct {
		Cards []Card `json:"cards"`
	}
	if !jsonx.DecodeObject(raw, &payload) {
		a.logger.Debug("coach output unparseable", zap.String("provider", provider))
		return nil, false
	}

	cards := make([]Card, 0, len(payload.Cards))
	for _, card := range payload.Cards {
		if card.Title == "" || card.Body == "" {
			continue
		}
		if card.ID == "" {
			card.ID = "card"
		}
		cards = append(cards, card)
	}
	if len(cards) == 0 {
		return nil, false
	}
	if len(cards) > 6 {
		cards = cards[:6]
	}
	return cards, true
}
