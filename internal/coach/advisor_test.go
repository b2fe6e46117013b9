package coach

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/quest/internal/domain"
	"example.com/quest/internal/llm"
)

var coachProfile = domain.Profile{
	DeclaredRole: "designer",
	RealRole:     "product designer",
	Maturity:     "mid",
	Strengths:    []string{"visual craft"},
	Weaknesses:   []string{"self promotion", "networking"},
}

var coachMission = domain.MissionContext{
	PhaseID:   "phase-1",
	TaskID:    "task-3",
	Title:     "Publish a case study",
	Objective: "Put one project online with your name on it",
}

func newAdvisor(providers ...llm.Provider) *Advisor {
	return NewAdvisor(llm.NewChain(providers), time.Second, nil)
}

func TestCoachUsesAICards(t *testing.T) {
	provider := llm.NewMockProvider(llm.MockResponse{
		Text: `Here are your cards: {"cards": [
			{"id": "show-up", "title": "Show your work", "body": "Post the case study draft today.", "items": ["outline", "publish"]},
			{"id": "network", "title": "Tell three people", "body": "Share the link with three peers."},
			{"id": "iterate", "title": "Collect feedback", "body": "Ask one specific question per reader."}
		]}`,
	})

	advisor := newAdvisor(provider)
	advice := advisor.Coach(context.Background(), coachProfile, coachMission, ProgressSummary{Level: 2})

	require.Equal(t, EngineAI, advice.Engine)
	require.Len(t, advice.Cards, 3)
	require.Equal(t, "show-up", advice.Cards[0].ID)

	// The prompt is grounded in weaknesses and the mission.
	require.Len(t, provider.Calls, 1)
	require.Contains(t, provider.Calls[0].Prompt, "self promotion")
	require.Contains(t, provider.Calls[0].Prompt, "Publish a case study")
}

func TestCoachDropsMalformedCardsAndFallsBack(t *testing.T) {
	// Cards missing title/body are dropped; zero usable cards means fallback.
	provider := llm.NewMockProvider(llm.MockResponse{
		Text: `{"cards": [{"id": "x"}, {"title": "no body"}]}`,
	})

	advisor := newAdvisor(provider)
	advice := advisor.Coach(context.Background(), coachProfile, coachMission, ProgressSummary{})

	require.Equal(t, EngineStatic, advice.Engine)
	require.Len(t, advice.Cards, 2)
}

func TestCoachFallsBackWhenChainExhausted(t *testing.T) {
	advisor := newAdvisor(llm.NewMockProvider())
	advice := advisor.Coach(context.Background(), coachProfile, coachMission, ProgressSummary{})

	require.Equal(t, EngineStatic, advice.Engine)
	require.Len(t, advice.Cards, 2)
	require.Equal(t, "current-focus", advice.Cards[0].ID)
	require.Equal(t, "proof-quality", advice.Cards[1].ID)
	require.NotEmpty(t, advice.Cards[1].Items)
}

func TestCoachStaticPathWithNoChain(t *testing.T) {
	advisor := NewAdvisor(llm.NewChain(nil), time.Second, nil)
	advice := advisor.Coach(context.Background(), coachProfile, coachMission, ProgressSummary{})

	require.Equal(t, EngineStatic, advice.Engine)
}

func TestStaticCardsMentionLastProof(t *testing.T) {
	summary := ProgressSummary{
		Recent: []domain.ProofSubmission{
			{TaskID: "task-9", Score: 72, Label: domain.LabelOK, SubmittedAt: time.Now()},
		},
	}

	cards := staticCards(summary)
	require.Len(t, cards, 2)
	require.Contains(t, cards[0].Body, "task-9")
	require.Contains(t, cards[0].Body, "72")
}

func TestCoachCapsCardsAtSix(t *testing.T) {
	provider := llm.NewMockProvider(llm.MockResponse{
		Text: `{"cards": [
			{"title": "a", "body": "b"}, {"title": "a", "body": "b"},
			{"title": "a", "body": "b"}, {"title": "a", "body": "b"},
			{"title": "a", "body": "b"}, {"title": "a", "body": "b"},
			{"title": "a", "body": "b"}, {"title": "a", "body": "b"}
		]}`,
	})

	advisor := newAdvisor(provider)
	advice := advisor.Coach(context.Background(), coachProfile, coachMission, ProgressSummary{})

	require.Equal(t, EngineAI, advice.Engine)
	require.Len(t, advice.Cards, 6)
}

func TestSummarizeTakesThreeMostRecent(t *testing.T) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	doc := domain.ProgressDoc{
		Level:          3,
		XP:             450,
		CompletedTasks: []string{"t1", "t2", "t3", "t4"},
		Proofs: map[string]domain.ProofSubmission{
			"t1": {TaskID: "t1", SubmittedAt: base},
			"t2": {TaskID: "t2", SubmittedAt: base.Add(time.Hour)},
			"t3": {TaskID: "t3", SubmittedAt: base.Add(2 * time.Hour)},
			"t4": {TaskID: "t4", SubmittedAt: base.Add(3 * time.Hour)},
		},
	}

	summary := Summarize(doc)
	require.Equal(t, 3, summary.Level)
	require.Equal(t, 450, summary.XP)
	require.Equal(t, 4, summary.CompletedCount)
	require.Len(t, summary.Recent, 3)
	require.Equal(t, "t4", summary.Recent[0].TaskID)
	require.Equal(t, "t3", summary.Recent[1].TaskID)
	require.Equal(t, "t2", summary.Recent[2].TaskID)
}
