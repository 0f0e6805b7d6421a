package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shDupont/merculy/internal/accounts"
	"github.com/shDupont/merculy/internal/curation"
	"github.com/shDupont/merculy/internal/elasticsearch"
	"github.com/shDupont/merculy/internal/models"
)

const (
	defaultPage = 20
	maxPage     = 100
)

type curator interface {
	GetNewsByTopic(ctx context.Context, topic string, limit int, sourceIDs []string) []models.Article
	GetNewsByTopics(ctx context.Context, topics []string, limit int, sourceIDs []string) curation.Result
	SearchNews(ctx context.Context, query string, limit int) []models.Article
	Trending(ctx context.Context, limit int) []models.Article
	TriggerBiasCorroboration(ctx context.Context, a models.Article) error
}

type documentStore interface {
	Health(ctx context.Context) error
	GetArticle(ctx context.Context, id string) (models.Article, error)
	SearchArticles(ctx context.Context, params elasticsearch.SearchParams) (*elasticsearch.SearchResult, error)
	ListRelatedSources(ctx context.Context, articleID string) ([]models.RelatedSource, error)
	ListNewsletters(ctx context.Context, userID string, limit int) ([]models.Newsletter, error)
}

type sourceCatalog interface {
	Sources(ctx context.Context) []models.SourceChannel
}

type userLookup interface {
	GetUser(ctx context.Context, id string) (models.User, error)
}

type server struct {
	log     *slog.Logger
	curator curator
	store   documentStore
	sources sourceCatalog
	users   userLookup
	topics  []string
	// curationTimeout bounds requests that fetch and enrich live news.
	curationTimeout time.Duration
}

type errorResponse struct {
	Error string `json:"error"`
}

type newsResponse struct {
	Topic    string           `json:"topic,omitempty"`
	Query    string           `json:"query,omitempty"`
	Articles []models.Article `json:"articles"`
	Total    int              `json:"total"`
}

type multiTopicRequest struct {
	Topics  []string `json:"topics"`
	Limit   int      `json:"limit"`
	Sources []string `json:"sources"`
	User    string   `json:"user"`
}

type relatedResponse struct {
	ArticleID string                     `json:"article_id"`
	Status    models.CorroborationStatus `json:"bias_corroboration_status"`
	Related   []models.RelatedSource     `json:"related_sources"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/topics", s.handleTopics)
	r.Get("/sources", s.handleSources)

	r.Get("/news/trending", s.handleTrending)
	r.Get("/news/{topic}", s.handleTopicNews)
	r.Post("/news/multiple-topics", s.handleMultipleTopics)
	r.Get("/search", s.handleSearch)

	r.Get("/articles", s.handleArticles)
	r.Get("/articles/{id}", s.handleArticle)
	r.Get("/articles/{id}/related", s.handleRelated)
	r.Post("/articles/{id}/corroborate", s.handleCorroborate)

	r.Get("/users/{id}/newsletters", s.handleNewsletters)
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleTopics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"topics": s.topics})
}

func (s *server) handleSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]models.SourceChannel{"sources": s.sources.Sources(r.Context())})
}

func (s *server) handleTopicNews(w http.ResponseWriter, r *http.Request) {
	topic := strings.TrimSpace(chi.URLParam(r, "topic"))
	if topic == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "topic is required"})
		return
	}

	q := r.URL.Query()
	sourceIDs, status, err := s.followedSources(r.Context(), parseCSV(q.Get("sources")), q.Get("user"))
	if err != nil {
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.curationTimeout)
	defer cancel()

	articles := s.curator.GetNewsByTopic(ctx, topic, clampInt(q.Get("limit"), defaultPage, maxPage), sourceIDs)
	writeJSON(w, http.StatusOK, newsResponse{Topic: topic, Articles: nonNilArticles(articles), Total: len(articles)})
}

func (s *server) handleMultipleTopics(w http.ResponseWriter, r *http.Request) {
	var req multiTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	topicsList := make([]string, 0, len(req.Topics))
	for _, t := range req.Topics {
		if t = strings.TrimSpace(t); t != "" {
			topicsList = append(topicsList, t)
		}
	}
	if len(topicsList) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "topics must not be empty"})
		return
	}

	sourceIDs, status, err := s.followedSources(r.Context(), req.Sources, req.User)
	if err != nil {
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.curationTimeout)
	defer cancel()

	writeJSON(w, http.StatusOK, s.curator.GetNewsByTopics(ctx, topicsList, req.Limit, sourceIDs))
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "q is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.curationTimeout)
	defer cancel()

	articles := s.curator.SearchNews(ctx, query, clampInt(r.URL.Query().Get("limit"), defaultPage, 50))
	writeJSON(w, http.StatusOK, newsResponse{Query: query, Articles: nonNilArticles(articles), Total: len(articles)})
}

func (s *server) handleTrending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.curationTimeout)
	defer cancel()

	articles := s.curator.Trending(ctx, clampInt(r.URL.Query().Get("limit"), defaultPage, maxPage))
	writeJSON(w, http.StatusOK, newsResponse{Topic: "trending", Articles: nonNilArticles(articles), Total: len(articles)})
}

// handleArticles searches articles already stored, unlike /search which queries the news API.
func (s *server) handleArticles(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	params := elasticsearch.SearchParams{
		Query:  strings.TrimSpace(q.Get("q")),
		Topic:  strings.TrimSpace(q.Get("topic")),
		Source: strings.TrimSpace(q.Get("source")),
		From:   clampInt(q.Get("from"), 0, 10_000),
		Size:   clampInt(q.Get("size"), defaultPage, maxPage),
		Sort:   strings.TrimSpace(q.Get("sort")),
		Start:  parseTime(q.Get("start")),
		End:    parseTime(q.Get("end")),
	}
	if raw := strings.TrimSpace(q.Get("bias")); raw != "" {
		bias := models.Bias(strings.ToLower(raw))
		if !bias.Valid() {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bias must be left, center or right"})
			return
		}
		params.Bias = bias
	}

	result, err := s.store.SearchArticles(ctx, params)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleArticle(w http.ResponseWriter, r *http.Request) {
	a, ok := s.loadArticle(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *server) handleRelated(w http.ResponseWriter, r *http.Request) {
	a, ok := s.loadArticle(w, r)
	if !ok {
		return
	}

	related, err := s.store.ListRelatedSources(r.Context(), a.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if related == nil {
		related = []models.RelatedSource{}
	}
	writeJSON(w, http.StatusOK, relatedResponse{ArticleID: a.ID, Status: a.CorroborationStatus, Related: related})
}

func (s *server) handleCorroborate(w http.ResponseWriter, r *http.Request) {
	a, ok := s.loadArticle(w, r)
	if !ok {
		return
	}

	err := s.curator.TriggerBiasCorroboration(r.Context(), a)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"article_id": a.ID, "status": "accepted"})
	case errors.Is(err, curation.ErrAlreadyGenerating):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		s.log.Warn("trigger corroboration", slog.String("article_id", a.ID), slog.Any("err", err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	}
}

func (s *server) handleNewsletters(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "id"))
	newsletters, err := s.store.ListNewsletters(r.Context(), userID, clampInt(r.URL.Query().Get("limit"), defaultPage, maxPage))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if newsletters == nil {
		newsletters = []models.Newsletter{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "newsletters": newsletters})
}

func (s *server) loadArticle(w http.ResponseWriter, r *http.Request) (models.Article, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	a, err := s.store.GetArticle(r.Context(), id)
	if errors.Is(err, elasticsearch.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "article not found"})
		return models.Article{}, false
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return models.Article{}, false
	}
	return a, true
}

// followedSources returns explicit source IDs, or the followed channels of userID when
// none are given.
func (s *server) followedSources(ctx context.Context, explicit []string, userID string) ([]string, int, error) {
	userID = strings.TrimSpace(userID)
	if len(explicit) > 0 || userID == "" || s.users == nil {
		return explicit, http.StatusOK, nil
	}

	u, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, accounts.ErrNotFound) {
		return nil, http.StatusNotFound, err
	}
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return u.FollowedChannels, http.StatusOK, nil
}

func nonNilArticles(in []models.Article) []models.Article {
	if in == nil {
		return []models.Article{}
	}
	return in
}

func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts
	}
	return nil
}

func parseCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
