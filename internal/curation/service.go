// Package curation composes source resolution, fetching, deduplication, enrichment and
// persistence into the operations exposed to the API and the newsletter builder.
package curation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shDupont/merculy/internal/allocator"
	"github.com/shDupont/merculy/internal/dedupe"
	"github.com/shDupont/merculy/internal/models"
)

var (
	// ErrNotPersisted is returned when corroboration is requested for an article without ID.
	ErrNotPersisted = errors.New("article has not been persisted")
	// ErrAlreadyGenerating is returned when corroboration is already in progress.
	ErrAlreadyGenerating = errors.New("corroboration already in progress")
)

type domainResolver interface {
	ResolveDomains(ctx context.Context, ids []string) []string
	Defaults() []string
}

type newsFetcher interface {
	FetchTopic(ctx context.Context, topic string, limit int, domains []string) []models.Article
	Search(ctx context.Context, query string, limit int, domains []string) ([]models.Article, error)
	Trending(ctx context.Context, limit int) ([]models.Article, error)
}

type enricher interface {
	EnrichAll(ctx context.Context, articles []models.Article) []models.Article
}

type articleStore interface {
	IndexArticle(ctx context.Context, a models.Article) (models.Article, error)
	GetArticle(ctx context.Context, id string) (models.Article, error)
	UpdateCorroborationStatus(ctx context.Context, id string, status models.CorroborationStatus) error
}

type dispatcher interface {
	Dispatch(ctx context.Context, a models.Article) error
}

// Deps collects the collaborators of a Service. Store and Dispatcher are optional.
type Deps struct {
	Resolver   domainResolver
	Fetcher    newsFetcher
	Enricher   enricher
	Store      articleStore
	Dispatcher dispatcher
	Logger     *slog.Logger
}

// Limits bound the requested result counts.
type Limits struct {
	DefaultSingle int
	MaxSingle     int
	DefaultMulti  int
	MaxMulti      int
	MaxSearch     int
}

// DefaultLimits mirrors the public API caps.
func DefaultLimits() Limits {
	return Limits{DefaultSingle: 20, MaxSingle: 100, DefaultMulti: 20, MaxMulti: 40, MaxSearch: 50}
}

// Result is the outcome of a multi-topic curation run. Topics lists, in request order,
// only the topics that ended up with articles.
type Result struct {
	Topics     []string                    `json:"topics"`
	News       map[string][]models.Article `json:"news"`
	Allocation map[string]int              `json:"allocation"`
	Total      int                         `json:"total_articles"`
}

// Service runs curation requests.
type Service struct {
	deps     Deps
	limits   Limits
	log      *slog.Logger
	triggers *dedupe.Cache
}

// NewService builds a Service.
func NewService(deps Deps, limits Limits) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		deps:     deps,
		limits:   limits,
		log:      logger.With("component", "curation"),
		triggers: dedupe.NewCache(1024, time.Minute),
	}
}

// GetNewsByTopic fetches, deduplicates, enriches and persists articles for one topic.
func (s *Service) GetNewsByTopic(ctx context.Context, topic string, limit int, sourceIDs []string) []models.Article {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil
	}
	limit = clamp(limit, s.limits.DefaultSingle, s.limits.MaxSingle)
	domains := s.deps.Resolver.ResolveDomains(ctx, sourceIDs)

	articles := dedupe.ByURL(s.deps.Fetcher.FetchTopic(ctx, topic, limit, domains))
	articles = s.deps.Enricher.EnrichAll(ctx, articles)
	articles = s.persist(ctx, articles)

	s.log.Info("topic curated",
		slog.String("topic", topic),
		slog.Int("limit", limit),
		slog.Int("articles", len(articles)),
	)
	return articles
}

// GetNewsByTopics splits limit across topics, fetches each topic with its share and drops
// URLs already returned for an earlier topic in the same run.
func (s *Service) GetNewsByTopics(ctx context.Context, topics []string, limit int, sourceIDs []string) Result {
	limit = clamp(limit, s.limits.DefaultMulti, s.limits.MaxMulti)
	alloc := allocator.Allocate(topics, limit)

	result := Result{
		Topics:     make([]string, 0, len(alloc.Topics)),
		News:       make(map[string][]models.Article, len(alloc.Topics)),
		Allocation: alloc.Units,
	}
	if len(alloc.Topics) == 0 {
		return result
	}

	domains := s.deps.Resolver.ResolveDomains(ctx, sourceIDs)
	run := dedupe.NewRun()

	var batch []models.Article
	for _, topic := range alloc.Topics {
		units := alloc.Units[topic]
		if units == 0 {
			continue
		}
		batch = append(batch, run.Filter(s.deps.Fetcher.FetchTopic(ctx, topic, units, domains))...)
	}

	batch = s.deps.Enricher.EnrichAll(ctx, batch)
	batch = s.persist(ctx, batch)

	for _, a := range batch {
		result.News[a.Topic] = append(result.News[a.Topic], a)
	}
	for _, topic := range alloc.Topics {
		if n := len(result.News[topic]); n > 0 {
			result.Topics = append(result.Topics, topic)
			result.Total += n
		}
	}

	s.log.Info("topics curated",
		slog.Int("requested_topics", len(alloc.Topics)),
		slog.Int("topics_with_news", len(result.Topics)),
		slog.Int("limit", limit),
		slog.Int("articles", result.Total),
	)
	return result
}

// SearchNews runs a free-text search over the default outlets without enrichment.
func (s *Service) SearchNews(ctx context.Context, query string, limit int) []models.Article {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	limit = clamp(limit, s.limits.DefaultSingle, s.limits.MaxSearch)

	articles, err := s.deps.Fetcher.Search(ctx, query, limit, s.deps.Resolver.Defaults())
	if err != nil {
		s.log.Warn("search failed", slog.String("query", query), slog.Any("err", err))
		return nil
	}
	return dedupe.ByURL(articles)
}

// Trending returns the current top headlines without enrichment.
func (s *Service) Trending(ctx context.Context, limit int) []models.Article {
	limit = clamp(limit, s.limits.DefaultSingle, s.limits.MaxSingle)

	articles, err := s.deps.Fetcher.Trending(ctx, limit)
	if err != nil {
		s.log.Warn("trending failed", slog.Any("err", err))
		return nil
	}
	return dedupe.ByURL(articles)
}

// TriggerBiasCorroboration hands a persisted article to the dispatcher and returns without
// waiting for the outcome. Terminal statuses may be re-triggered; an article already
// generating is left alone. With a store configured, the stored status is re-read and
// set to generating before dispatch, so a second trigger answers ErrAlreadyGenerating.
func (s *Service) TriggerBiasCorroboration(ctx context.Context, a models.Article) error {
	if a.ID == "" {
		return ErrNotPersisted
	}
	if s.deps.Dispatcher == nil {
		return errors.New("corroboration dispatcher not configured")
	}
	if !s.triggers.Claim(a.ID) {
		return ErrAlreadyGenerating
	}
	defer s.triggers.Forget(a.ID)

	previous := a.CorroborationStatus
	if s.deps.Store != nil {
		current, err := s.deps.Store.GetArticle(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("load article %s: %w", a.ID, err)
		}
		previous = current.CorroborationStatus
	}
	if previous == models.StatusGenerating {
		return ErrAlreadyGenerating
	}

	if s.deps.Store != nil {
		if err := s.deps.Store.UpdateCorroborationStatus(ctx, a.ID, models.StatusGenerating); err != nil {
			return fmt.Errorf("mark generating: %w", err)
		}
		a.CorroborationStatus = models.StatusGenerating
	}

	if err := s.deps.Dispatcher.Dispatch(ctx, a); err != nil {
		s.log.Warn("dispatch corroboration failed", slog.String("article_id", a.ID), slog.Any("err", err))
		s.restoreStatus(ctx, a.ID, previous)
		return err
	}
	s.log.Info("corroboration triggered", slog.String("article_id", a.ID))
	return nil
}

// restoreStatus undoes the generating mark after a failed dispatch.
func (s *Service) restoreStatus(ctx context.Context, id string, status models.CorroborationStatus) {
	if s.deps.Store == nil {
		return
	}
	if status == "" {
		status = models.StatusNotStarted
	}
	if err := s.deps.Store.UpdateCorroborationStatus(ctx, id, status); err != nil {
		s.log.Warn("restore corroboration status failed", slog.String("article_id", id), slog.Any("err", err))
	}
}

// persist stores each article. Failures are logged and leave the article without an ID.
func (s *Service) persist(ctx context.Context, articles []models.Article) []models.Article {
	if s.deps.Store == nil {
		return articles
	}
	for i, a := range articles {
		stored, err := s.deps.Store.IndexArticle(ctx, a)
		if err != nil {
			s.log.Warn("persist article failed", slog.String("url", a.URL), slog.Any("err", err))
			continue
		}
		articles[i] = stored
	}
	return articles
}

func clamp(value, fallback, max int) int {
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}
