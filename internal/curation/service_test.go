package curation_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shDupont/merculy/internal/curation"
	"github.com/shDupont/merculy/internal/enrichment"
	"github.com/shDupont/merculy/internal/models"
)

type stubResolver struct {
	gotIDs []string
}

func (s *stubResolver) ResolveDomains(_ context.Context, ids []string) []string {
	s.gotIDs = ids
	return []string{"a.com"}
}

func (s *stubResolver) Defaults() []string { return []string{"a.com", "b.com"} }

type fetchCall struct {
	topic string
	limit int
}

type stubFetcher struct {
	calls    []fetchCall
	byTopic  map[string][]models.Article
	search   []models.Article
	err      error
	trending []models.Article
}

func (s *stubFetcher) FetchTopic(_ context.Context, topic string, limit int, _ []string) []models.Article {
	s.calls = append(s.calls, fetchCall{topic: topic, limit: limit})
	items := s.byTopic[topic]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

func (s *stubFetcher) Search(context.Context, string, int, []string) ([]models.Article, error) {
	return s.search, s.err
}

func (s *stubFetcher) Trending(context.Context, int) ([]models.Article, error) {
	return s.trending, s.err
}

type fallbackEnricher struct{}

func (fallbackEnricher) EnrichAll(_ context.Context, in []models.Article) []models.Article {
	out := make([]models.Article, 0, len(in))
	for _, a := range in {
		out = append(out, enrichment.Fallback(a))
	}
	return out
}

type stubStore struct {
	mu       sync.Mutex
	stored   int
	failURL  string
	statuses map[string]models.CorroborationStatus
	history  []models.CorroborationStatus
}

func (s *stubStore) IndexArticle(_ context.Context, a models.Article) (models.Article, error) {
	if a.URL == s.failURL {
		return models.Article{}, errors.New("es down")
	}
	s.stored++
	a.ID = fmt.Sprintf("id-%d", s.stored)
	a.CorroborationStatus = models.StatusNotStarted
	return a, nil
}

func (s *stubStore) GetArticle(_ context.Context, id string) (models.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.statuses[id]
	if !ok {
		status = models.StatusNotStarted
	}
	return models.Article{ID: id, CorroborationStatus: status}, nil
}

func (s *stubStore) UpdateCorroborationStatus(_ context.Context, id string, status models.CorroborationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statuses == nil {
		s.statuses = map[string]models.CorroborationStatus{}
	}
	s.statuses[id] = status
	s.history = append(s.history, status)
	return nil
}

type stubDispatcher struct {
	mu      sync.Mutex
	got     []models.Article
	err     error
	entered chan struct{}
	release chan struct{}
}

func (s *stubDispatcher) Dispatch(_ context.Context, a models.Article) error {
	if s.entered != nil {
		s.entered <- struct{}{}
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, a)
	return s.err
}

func articles(topic string, urls ...string) []models.Article {
	out := make([]models.Article, 0, len(urls))
	for _, u := range urls {
		out = append(out, models.Article{Title: topic + " " + u, URL: "https://a.com/" + u, Excerpt: "excerto " + u, Topic: topic})
	}
	return out
}

func TestGetNewsByTopic(t *testing.T) {
	resolver := &stubResolver{}
	fetcher := &stubFetcher{byTopic: map[string][]models.Article{
		"tecnologia": articles("tecnologia", "1", "2", "1", "3"),
	}}
	store := &stubStore{failURL: "https://a.com/3"}
	svc := curation.NewService(curation.Deps{
		Resolver: resolver,
		Fetcher:  fetcher,
		Enricher: fallbackEnricher{},
		Store:    store,
	}, curation.DefaultLimits())

	got := svc.GetNewsByTopic(context.Background(), "tecnologia", 500, []string{"folha"})

	require.Equal(t, []fetchCall{{topic: "tecnologia", limit: 100}}, fetcher.calls)
	require.Equal(t, []string{"folha"}, resolver.gotIDs)
	require.Len(t, got, 3)
	require.Equal(t, "id-1", got[0].ID)
	require.Equal(t, "id-2", got[1].ID)
	require.Empty(t, got[2].ID)
	for _, a := range got {
		require.NotEmpty(t, a.Summary)
		require.Equal(t, models.BiasCenter, a.Bias)
	}
}

func TestGetNewsByTopicDefaultLimit(t *testing.T) {
	fetcher := &stubFetcher{}
	svc := curation.NewService(curation.Deps{Resolver: &stubResolver{}, Fetcher: fetcher, Enricher: fallbackEnricher{}}, curation.DefaultLimits())

	require.Empty(t, svc.GetNewsByTopic(context.Background(), "x", 0, nil))
	require.Equal(t, 20, fetcher.calls[0].limit)
	require.Empty(t, svc.GetNewsByTopic(context.Background(), "  ", 5, nil))
	require.Len(t, fetcher.calls, 1)
}

func TestGetNewsByTopicsAllocatesAndDedupesAcrossTopics(t *testing.T) {
	fetcher := &stubFetcher{byTopic: map[string][]models.Article{
		"tecnologia": articles("tecnologia", "1", "2", "3", "4", "5"),
		"economia":   articles("economia", "2", "6", "7", "8", "9"),
		"esportes":   nil,
	}}
	svc := curation.NewService(curation.Deps{
		Resolver: &stubResolver{},
		Fetcher:  fetcher,
		Enricher: fallbackEnricher{},
		Store:    &stubStore{},
	}, curation.DefaultLimits())

	res := svc.GetNewsByTopics(context.Background(), []string{"tecnologia", "economia", "esportes"}, 10, nil)

	require.Equal(t, map[string]int{"tecnologia": 4, "economia": 3, "esportes": 3}, res.Allocation)
	require.Equal(t, []fetchCall{{"tecnologia", 4}, {"economia", 3}, {"esportes", 3}}, fetcher.calls)

	require.Equal(t, []string{"tecnologia", "economia"}, res.Topics)
	require.NotContains(t, res.News, "esportes")
	require.Len(t, res.News["tecnologia"], 4)
	require.Len(t, res.News["economia"], 2)
	require.Equal(t, "https://a.com/6", res.News["economia"][0].URL)
	require.Equal(t, 6, res.Total)

	seen := map[string]bool{}
	for _, topic := range res.Topics {
		for _, a := range res.News[topic] {
			require.False(t, seen[a.URL], a.URL)
			seen[a.URL] = true
			require.NotEmpty(t, a.ID)
		}
	}
}

func TestGetNewsByTopicsCapsLimit(t *testing.T) {
	fetcher := &stubFetcher{}
	svc := curation.NewService(curation.Deps{Resolver: &stubResolver{}, Fetcher: fetcher, Enricher: fallbackEnricher{}}, curation.DefaultLimits())

	res := svc.GetNewsByTopics(context.Background(), []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}, 1000, nil)
	require.Equal(t, 40, total(res.Allocation))
	require.Empty(t, res.Topics)
	require.Zero(t, res.Total)

	empty := svc.GetNewsByTopics(context.Background(), nil, 10, nil)
	require.Empty(t, empty.Topics)
	require.Empty(t, empty.Allocation)
}

func TestSearchNews(t *testing.T) {
	fetcher := &stubFetcher{search: articles("geral", "1", "1", "2")}
	svc := curation.NewService(curation.Deps{Resolver: &stubResolver{}, Fetcher: fetcher, Enricher: fallbackEnricher{}}, curation.DefaultLimits())

	require.Len(t, svc.SearchNews(context.Background(), "juros", 10), 2)
	require.Nil(t, svc.SearchNews(context.Background(), " ", 10))

	fetcher.err = errors.New("down")
	require.Nil(t, svc.SearchNews(context.Background(), "juros", 10))
}

func TestTrending(t *testing.T) {
	fetcher := &stubFetcher{trending: articles("trending", "1", "2")}
	svc := curation.NewService(curation.Deps{Resolver: &stubResolver{}, Fetcher: fetcher, Enricher: fallbackEnricher{}}, curation.DefaultLimits())

	require.Len(t, svc.Trending(context.Background(), 5), 2)
}

func TestTriggerBiasCorroboration(t *testing.T) {
	d := &stubDispatcher{}
	svc := curation.NewService(curation.Deps{Resolver: &stubResolver{}, Fetcher: &stubFetcher{}, Enricher: fallbackEnricher{}, Dispatcher: d}, curation.DefaultLimits())

	require.ErrorIs(t, svc.TriggerBiasCorroboration(context.Background(), models.Article{}), curation.ErrNotPersisted)
	require.ErrorIs(t, svc.TriggerBiasCorroboration(context.Background(), models.Article{ID: "a", CorroborationStatus: models.StatusGenerating}), curation.ErrAlreadyGenerating)
	require.Empty(t, d.got)

	require.NoError(t, svc.TriggerBiasCorroboration(context.Background(), models.Article{ID: "a", CorroborationStatus: models.StatusError}))
	require.Len(t, d.got, 1)

	d.err = errors.New("queue down")
	require.Error(t, svc.TriggerBiasCorroboration(context.Background(), models.Article{ID: "b"}))
}

func TestTriggerMarksGeneratingBeforeDispatch(t *testing.T) {
	store := &stubStore{}
	d := &stubDispatcher{}
	svc := curation.NewService(curation.Deps{Resolver: &stubResolver{}, Fetcher: &stubFetcher{}, Enricher: fallbackEnricher{}, Store: store, Dispatcher: d}, curation.DefaultLimits())

	stale := models.Article{ID: "a", CorroborationStatus: models.StatusNotStarted}
	require.NoError(t, svc.TriggerBiasCorroboration(context.Background(), stale))
	require.Equal(t, models.StatusGenerating, store.statuses["a"])
	require.Equal(t, models.StatusGenerating, d.got[0].CorroborationStatus)

	// The caller's copy is stale; the stored status wins.
	require.ErrorIs(t, svc.TriggerBiasCorroboration(context.Background(), stale), curation.ErrAlreadyGenerating)
	require.Len(t, d.got, 1)

	store.statuses["a"] = models.StatusAvailable
	require.NoError(t, svc.TriggerBiasCorroboration(context.Background(), stale))
	require.Len(t, d.got, 2)
}

func TestTriggerRestoresStatusWhenDispatchFails(t *testing.T) {
	store := &stubStore{statuses: map[string]models.CorroborationStatus{"a": models.StatusError}}
	d := &stubDispatcher{err: errors.New("queue down")}
	svc := curation.NewService(curation.Deps{Resolver: &stubResolver{}, Fetcher: &stubFetcher{}, Enricher: fallbackEnricher{}, Store: store, Dispatcher: d}, curation.DefaultLimits())

	require.Error(t, svc.TriggerBiasCorroboration(context.Background(), models.Article{ID: "a"}))
	require.Equal(t, []models.CorroborationStatus{models.StatusGenerating, models.StatusError}, store.history)
	require.Equal(t, models.StatusError, store.statuses["a"])
}

func TestConcurrentTriggersDispatchOnce(t *testing.T) {
	store := &stubStore{}
	d := &stubDispatcher{entered: make(chan struct{}), release: make(chan struct{})}
	svc := curation.NewService(curation.Deps{Resolver: &stubResolver{}, Fetcher: &stubFetcher{}, Enricher: fallbackEnricher{}, Store: store, Dispatcher: d}, curation.DefaultLimits())

	first := make(chan error, 1)
	go func() {
		first <- svc.TriggerBiasCorroboration(context.Background(), models.Article{ID: "a"})
	}()
	<-d.entered

	require.ErrorIs(t, svc.TriggerBiasCorroboration(context.Background(), models.Article{ID: "a"}), curation.ErrAlreadyGenerating)

	close(d.release)
	require.NoError(t, <-first)
	require.Len(t, d.got, 1)
}

func total(m map[string]int) int {
	sum := 0
	for _, v := range m {
		sum += v
	}
	return sum
}
