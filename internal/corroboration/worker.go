// Package corroboration looks for coverage of an article by other outlets and records
// each outlet's bias, moving the article through not_started, generating and then
// available or error.
package corroboration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/shDupont/merculy/internal/dedupe"
	"github.com/shDupont/merculy/internal/models"
	"github.com/shDupont/merculy/internal/processing"
)

const (
	queryWords    = 4
	searchLimit   = 20
	maxCandidates = 8
	quoteRunes    = 200
)

var errNoCandidates = errors.New("no related coverage from other sources")

type articleStore interface {
	UpdateCorroborationStatus(ctx context.Context, id string, status models.CorroborationStatus) error
	IndexRelatedSource(ctx context.Context, rs models.RelatedSource) (models.RelatedSource, error)
}

type relatedSearcher interface {
	Search(ctx context.Context, query string, limit int, domains []string) ([]models.Article, error)
}

type biasClassifier interface {
	ClassifyBias(ctx context.Context, title, body string) (models.Bias, float64)
}

// Worker corroborates one article at a time.
type Worker struct {
	store   articleStore
	search  relatedSearcher
	bias    biasClassifier
	domains []string
	log     *slog.Logger
}

// NewWorker wires a Worker. domains limits where related coverage is searched.
func NewWorker(store articleStore, search relatedSearcher, bias biasClassifier, domains []string, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Worker{
		store:   store,
		search:  search,
		bias:    bias,
		domains: append([]string(nil), domains...),
		log:     logger.With("component", "corroboration"),
	}
}

// Run corroborates a persisted article and returns the terminal status it recorded.
// Failures, panics included, end in StatusError and are never returned to the caller.
func (w *Worker) Run(ctx context.Context, a models.Article) (status models.CorroborationStatus) {
	log := w.log.With(slog.String("article_id", a.ID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("corroboration panicked", slog.Any("panic", r))
			status = models.StatusError
			w.setStatus(ctx, a.ID, status, log)
		}
	}()

	if a.ID == "" {
		log.Warn("corroboration skipped, article not persisted")
		return models.StatusError
	}

	if err := w.store.UpdateCorroborationStatus(ctx, a.ID, models.StatusGenerating); err != nil {
		log.Warn("mark generating failed", slog.Any("err", err))
		w.setStatus(ctx, a.ID, models.StatusError, log)
		return models.StatusError
	}

	created, err := w.corroborate(ctx, a, log)
	switch {
	case err != nil:
		log.Warn("corroboration failed", slog.Any("err", err))
		status = models.StatusError
	case created == 0:
		log.Info("corroboration found no usable sources")
		status = models.StatusError
	default:
		log.Info("corroboration completed", slog.Int("related_sources", created))
		status = models.StatusAvailable
	}

	w.setStatus(ctx, a.ID, status, log)
	return status
}

func (w *Worker) corroborate(ctx context.Context, a models.Article, log *slog.Logger) (int, error) {
	query := processing.FirstWords(a.Title, queryWords)
	if query == "" {
		return 0, fmt.Errorf("article has no title")
	}

	results, err := w.search.Search(ctx, query, searchLimit, w.domains)
	if err != nil {
		return 0, fmt.Errorf("search related coverage: %w", err)
	}

	candidates := Diverse(a, results, maxCandidates)
	if len(candidates) == 0 {
		return 0, errNoCandidates
	}

	created := 0
	for _, c := range candidates {
		bias, _ := w.bias.ClassifyBias(ctx, c.Title, c.Content)
		rs := models.RelatedSource{
			ArticleID:   a.ID,
			Title:       c.Title,
			URL:         c.URL,
			Bias:        bias,
			PublishedAt: c.PublishedAt,
			Quote:       processing.ExtractQuote(c.Content, quoteRunes),
			Source:      c.Source,
		}
		if _, err := w.store.IndexRelatedSource(ctx, rs); err != nil {
			log.Warn("store related source failed", slog.String("url", c.URL), slog.Any("err", err))
			continue
		}
		created++
	}
	return created, nil
}

func (w *Worker) setStatus(ctx context.Context, id string, status models.CorroborationStatus, log *slog.Logger) {
	if id == "" {
		return
	}
	if err := w.store.UpdateCorroborationStatus(ctx, id, status); err != nil {
		log.Error("record corroboration status failed",
			slog.String("status", string(status)),
			slog.Any("err", err),
		)
	}
}

// Diverse drops results from the article's own outlet, the article itself and repeated
// URLs, keeping at most limit candidates in their original order.
func Diverse(a models.Article, results []models.Article, limit int) []models.Article {
	source := strings.TrimSpace(a.Source)
	self := dedupe.CanonicalURL(a.URL)
	run := dedupe.NewRun()

	out := make([]models.Article, 0, min(limit, len(results)))
	for _, r := range results {
		if len(out) == limit {
			break
		}
		if strings.EqualFold(strings.TrimSpace(r.Source), source) {
			continue
		}
		if self != "" && dedupe.CanonicalURL(r.URL) == self {
			continue
		}
		if !run.Keep(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}
