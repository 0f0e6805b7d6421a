// Package enrichment annotates articles with AI summaries, highlight bullets and a
// political-bias label, falling back to local values whenever the AI service fails.
package enrichment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shDupont/merculy/internal/aitext"
	"github.com/shDupont/merculy/internal/models"
	"github.com/shDupont/merculy/internal/processing"
)

// NoSummary is the summary used when neither the AI service nor the excerpt can provide one.
const NoSummary = "Resumo não disponível no momento"

const (
	maxHighlights   = 3
	fallbackRunes   = 200
	promptBodyRunes = 1000
)

// Confidence values attached to bias labels.
const (
	ConfidenceMatched = 1.0
	ConfidenceCoerced = 0.5
	ConfidenceNone    = 0.0
)

// Pipeline runs the enrichment steps against an AI text generator.
type Pipeline struct {
	ai    aitext.Generator
	delay time.Duration
	log   *slog.Logger
}

// New builds a Pipeline. delay is the pause inserted between articles in EnrichAll.
func New(ai aitext.Generator, delay time.Duration, logger *slog.Logger) *Pipeline {
	if ai == nil {
		ai = aitext.Unavailable{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{ai: ai, delay: delay, log: logger.With("component", "enrichment")}
}

// Enrich fills summary, highlights and bias. It never fails: every returned article has
// a non-empty summary and a canonical bias label.
func (p *Pipeline) Enrich(ctx context.Context, a models.Article) models.Article {
	a.Summary = p.Summarize(ctx, a)
	a.Highlights = p.Highlights(ctx, a)
	a.Bias, a.BiasConfidence = p.ClassifyBias(ctx, a.Title, a.Content)
	return a
}

// EnrichAll enriches articles one at a time, pausing between AI-backed calls. Once ctx is
// done the remaining articles only get local fallbacks.
func (p *Pipeline) EnrichAll(ctx context.Context, articles []models.Article) []models.Article {
	out := make([]models.Article, len(articles))
	for i, a := range articles {
		if i > 0 && !sleep(ctx, p.delay) {
			out[i] = Fallback(a)
			continue
		}
		if ctx.Err() != nil {
			out[i] = Fallback(a)
			continue
		}
		out[i] = p.Enrich(ctx, a)
	}
	return out
}

// Fallback applies the values used when the AI service is unavailable.
func Fallback(a models.Article) models.Article {
	a.Summary = fallbackSummary(a.Excerpt)
	a.Highlights = nil
	a.Bias = models.BiasCenter
	a.BiasConfidence = ConfidenceNone
	return a
}

// Summarize asks for a short summary and falls back to the excerpt.
func (p *Pipeline) Summarize(ctx context.Context, a models.Article) string {
	out, err := p.ai.Generate(ctx, buildPrompt(summaryPrompt, a.Title, promptBody(a)))
	if err != nil {
		p.logFailure("summarize", a, err)
		return fallbackSummary(a.Excerpt)
	}
	if summary := strings.TrimSpace(out); summary != "" {
		return summary
	}
	return fallbackSummary(a.Excerpt)
}

// Highlights asks for three key sentences. Fewer parsed lines are kept as-is; a failed
// call leaves the article without highlights.
func (p *Pipeline) Highlights(ctx context.Context, a models.Article) []string {
	out, err := p.ai.Generate(ctx, buildPrompt(highlightsPrompt, a.Title, promptBody(a)))
	if err != nil {
		p.logFailure("highlights", a, err)
		return nil
	}
	return ParseHighlights(out)
}

// ClassifyBias asks for a bias label. Recognised answers get full confidence, anything
// else is coerced to center, and a failed call yields center with zero confidence.
func (p *Pipeline) ClassifyBias(ctx context.Context, title, body string) (models.Bias, float64) {
	out, err := p.ai.Generate(ctx, buildPrompt(biasPrompt, title, processing.Truncate(body, promptBodyRunes)))
	if err != nil {
		p.log.Debug("bias classification failed", slog.String("title", title), slog.Any("err", err))
		return models.BiasCenter, ConfidenceNone
	}
	bias, matched := NormalizeBias(out)
	if matched {
		return bias, ConfidenceMatched
	}
	return bias, ConfidenceCoerced
}

// NormalizeBias maps free-form model output to a canonical label by substring. Left
// markers win over right markers; anything unrecognised is center. matched is false when
// no known marker was present.
func NormalizeBias(text string) (bias models.Bias, matched bool) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "esquerda") || strings.Contains(lower, "left"):
		return models.BiasLeft, true
	case strings.Contains(lower, "direita") || strings.Contains(lower, "right"):
		return models.BiasRight, true
	default:
		return models.BiasCenter, strings.Contains(lower, "centro") || strings.Contains(lower, "center") ||
			strings.Contains(lower, "centre")
	}
}

// ParseHighlights turns line-oriented output into at most three bullet-free sentences.
func ParseHighlights(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Trim(processing.StripBullet(line), "*_ ")
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == maxHighlights {
			break
		}
	}
	return out
}

func fallbackSummary(excerpt string) string {
	excerpt = strings.TrimSpace(excerpt)
	if excerpt == "" {
		return NoSummary
	}
	return processing.Truncate(excerpt, fallbackRunes)
}

func promptBody(a models.Article) string {
	body := a.Content
	if body == "" {
		body = a.Excerpt
	}
	return processing.Truncate(body, promptBodyRunes)
}

func (p *Pipeline) logFailure(step string, a models.Article, err error) {
	level := slog.LevelWarn
	if errors.Is(err, aitext.ErrUnavailable) {
		level = slog.LevelDebug
	}
	p.log.Log(context.Background(), level, "enrichment step failed",
		slog.String("step", step),
		slog.String("url", a.URL),
		slog.Any("err", err),
	)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
