// Package proof scores screenshot proof submissions through a degrading
// chain of stages: OCR extraction, text-model scoring, vision-model scoring,
// and a deterministic heuristic baseline. The pipeline always returns a
// result; provider failures only lower the sophistication of the answer.
package proof

import (
	"context"
	"time"

	"go.uber.org/zap"

	"example.com/quest/internal/domain"
	"example.com/quest/internal/jsonx"
	"example.com/quest/internal/llm"
	"example.com/quest/internal/observability"
)

// Engine names reported in the result metadata.
const (
	EngineText      = "text"
	EngineVision    = "vision"
	EngineHeuristic = "heuristic"
)

// minTextForScoring is the combined (hint + OCR) length required before the
// text evaluator is worth asking.
const minTextForScoring = 20

// Screenshot is a submitted image proof.
type Screenshot struct {
	Data []byte
	MIME string
	Hint string
}

// Pipeline orchestrates the scoring stages.
type Pipeline struct {
	ocr           TextExtractor
	textChain     *llm.Chain
	visionChain   *llm.Chain
	textTimeout   time.Duration
	visionTimeout time.Duration
	logger        *zap.Logger
}

// NewPipeline builds a Pipeline. ocr may be nil and either chain may be
// empty; the pipeline degrades accordingly.
func NewPipeline(ocr TextExtractor, textChain, visionChain *llm.Chain, textTimeout, visionTimeout time.Duration, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		ocr:           ocr,
		textChain:     textChain,
		visionChain:   visionChain,
		textTimeout:   textTimeout,
		visionTimeout: visionTimeout,
		logger:        logger,
	}
}

// Score evaluates a screenshot against the mission. It never returns an
// error: the heuristic baseline is the floor.
func (p *Pipeline) Score(ctx context.Context, shot Screenshot, mission domain.MissionContext) domain.ScoreResult {
	extracted := p.extractText(ctx, shot)
	combined := shot.Hint
	if extracted != "" {
		if combined != "" {
			combined += "\n"
		}
		combined += extracted
	}

	baseline := heuristicScore(shot, combined)

	if result, ok := p.scoreWithText(ctx, mission, shot.Hint, extracted, combined); ok {
		return merge(result, baseline, EngineText)
	}
	if result, ok := p.scoreWithVision(ctx, mission, shot); ok {
		return merge(result, baseline, EngineVision)
	}

	observability.RecordProofScored(EngineHeuristic)
	baseline.Meta["engine"] = EngineHeuristic
	return baseline
}

func (p *Pipeline) extractText(ctx context.Context, shot Screenshot) string {
	if p.ocr == nil {
		return ""
	}
	text, err := p.ocr.Extract(ctx, llm.Image{MIME: shot.MIME, Data: shot.Data})
	if err != nil {
		p.logger.Debug("ocr stage failed", zap.Error(err))
		return ""
	}
	return text
}

func (p *Pipeline) scoreWithText(ctx context.Context, mission domain.MissionContext, hint, extracted, combined string) (domain.ScoreResult, bool) {
	if p.textChain == nil || p.textChain.Empty() || len(combined) < minTextForScoring {
		return domain.ScoreResult{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, p.textTimeout)
	defer cancel()

	raw, provider, err := p.textChain.Generate(ctx, llm.Request{
		System:    scoringSystemPrompt,
		Prompt:    textScoringPrompt(mission, hint, extracted),
		MaxTokens: 1024,
	})
	if err != nil {
		p.logger.Debug("text scoring stage failed", zap.Error(err))
		return domain.ScoreResult{}, false
	}
	result, ok := parseAIResult(raw)
	if !ok {
		p.logger.Debug("text scoring returned unusable output", zap.String("provider", provider))
	}
	return result, ok
}

func (p *Pipeline) scoreWithVision(ctx context.Context, mission domain.MissionContext, shot Screenshot) (domain.ScoreResult, bool) {
	if p.visionChain == nil || p.visionChain.Empty() || len(shot.Data) == 0 {
		return domain.ScoreResult{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, p.visionTimeout)
	defer cancel()

	raw, provider, err := p.visionChain.Generate(ctx, llm.Request{
		System:    scoringSystemPrompt,
		Prompt:    visionScoringPrompt(mission, shot.Hint),
		Images:    []llm.Image{{MIME: shot.MIME, Data: shot.Data}},
		MaxTokens: 1024,
	})
	if err != nil {
		p.logger.Debug("vision scoring stage failed", zap.Error(err))
		return domain.ScoreResult{}, false
	}
	result, ok := parseAIResult(raw)
	if !ok {
		p.logger.Debug("vision scoring returned unusable output", zap.String("provider", provider))
	}
	return result, ok
}

// parseAIResult defensively extracts the scoring object from raw model text.
// A missing score is a stage failure, not an exception.
func parseAIResult(raw string) (domain.ScoreResult, bool) {
	var payload struct {
		Score   *int     `json:"score"`
		Label   string   `json:"label"`
		Tips    []string `json:"tips"`
		Signals []string `json:"signals"`
	}
	if !jsonx.DecodeObject(raw, &payload) || payload.Score == nil {
		return domain.ScoreResult{}, false
	}

	score := domain.ClampScore(*payload.Score)
	return domain.ScoreResult{
		Score:   score,
		Label:   domain.CanonicalLabel(payload.Label, score),
		Tips:    payload.Tips,
		Signals: payload.Signals,
	}, true
}

// merge keeps the AI stage's verdict while preserving heuristic metadata for
// observability.
func merge(ai, baseline domain.ScoreResult, engine string) domain.ScoreResult {
	observability.RecordProofScored(engine)
	meta := baseline.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	meta["engine"] = engine
	meta["heuristic_score"] = baseline.Score
	ai.Meta = meta
	return ai
}
