package elasticsearch_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shDupont/merculy/internal/elasticsearch"
	"github.com/shDupont/merculy/internal/models"
)

type recorded struct {
	method string
	path   string
	body   string
}

type fakeES struct {
	mu       sync.Mutex
	requests []recorded
	respond  func(r *http.Request) (int, string)
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recorded{method: r.Method, path: r.URL.Path, body: string(data)})
	f.mu.Unlock()

	status, body := http.StatusOK, `{}`
	if f.respond != nil {
		status, body = f.respond(r)
	}
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (f *fakeES) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newClient(t *testing.T, fake *fakeES) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := elasticsearch.New(srv.URL, "test", nil)
	require.NoError(t, err)
	return c
}

func TestIndicesFor(t *testing.T) {
	idx := elasticsearch.IndicesFor("")
	require.Equal(t, "merculy_articles", idx.Articles)
	require.Equal(t, "merculy_related_sources", idx.Related)
	require.Equal(t, "merculy_sources", idx.Sources)
	require.Equal(t, "merculy_newsletters", idx.Newsletters)
}

func TestIndexArticleAssignsDefaults(t *testing.T) {
	fake := &fakeES{respond: func(*http.Request) (int, string) {
		return http.StatusCreated, `{"result":"created"}`
	}}
	c := newClient(t, fake)

	stored, err := c.IndexArticle(context.Background(), models.Article{Title: "Título", URL: "https://a.com/1"})
	require.NoError(t, err)
	require.NotEmpty(t, stored.ID)
	require.False(t, stored.CreatedAt.IsZero())
	require.Equal(t, models.StatusNotStarted, stored.CorroborationStatus)

	req := fake.last()
	require.Equal(t, http.MethodPut, req.method)
	require.Equal(t, "/test_articles/_doc/"+stored.ID, req.path)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(req.body), &doc))
	require.Equal(t, "not_started", doc["bias_corroboration_status"])
	require.Equal(t, "https://a.com/1", doc["url"])
}

func TestGetArticleNotFound(t *testing.T) {
	fake := &fakeES{respond: func(*http.Request) (int, string) {
		return http.StatusNotFound, `{"found":false}`
	}}
	c := newClient(t, fake)

	_, err := c.GetArticle(context.Background(), "missing")
	require.ErrorIs(t, err, elasticsearch.ErrNotFound)
}

func TestGetArticleDecodesSource(t *testing.T) {
	fake := &fakeES{respond: func(*http.Request) (int, string) {
		return http.StatusOK, `{"found":true,"_source":{"id":"a1","title":"T","political_bias":"left","bias_corroboration_status":"available"}}`
	}}
	c := newClient(t, fake)

	a, err := c.GetArticle(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, "a1", a.ID)
	require.Equal(t, models.BiasLeft, a.Bias)
	require.Equal(t, models.StatusAvailable, a.CorroborationStatus)
}

func TestUpdateCorroborationStatus(t *testing.T) {
	fake := &fakeES{respond: func(*http.Request) (int, string) {
		return http.StatusOK, `{"result":"updated"}`
	}}
	c := newClient(t, fake)

	require.NoError(t, c.UpdateCorroborationStatus(context.Background(), "a1", models.StatusGenerating))

	req := fake.last()
	require.Equal(t, "/test_articles/_update/a1", req.path)
	require.JSONEq(t, `{"doc":{"bias_corroboration_status":"generating"}}`, req.body)
}

func TestSearchArticlesBuildsQuery(t *testing.T) {
	fake := &fakeES{respond: func(*http.Request) (int, string) {
		return http.StatusOK, `{"hits":{"total":{"value":1},"hits":[{"_id":"a1","_source":{"id":"a1","title":"Juros"}}]}}`
	}}
	c := newClient(t, fake)

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	res, err := c.SearchArticles(context.Background(), elasticsearch.SearchParams{
		Query: "juros",
		Topic: "economia",
		Size:  500,
		Sort:  "published_at:asc",
		Start: &start,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Total)
	require.Len(t, res.Items, 1)
	require.Equal(t, "Juros", res.Items[0].Title)

	req := fake.last()
	require.Equal(t, "/test_articles/_search", req.path)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(req.body), &body))
	require.EqualValues(t, 200, body["size"])
	require.Contains(t, req.body, `"multi_match"`)
	require.Contains(t, req.body, `"topic":"economia"`)
	require.Contains(t, req.body, `"gte":"2024-05-01T00:00:00Z"`)
	require.Contains(t, req.body, `"published_at":{"order":"asc"}`)
}

func TestDeleteOlderThanCascades(t *testing.T) {
	searches := 0
	fake := &fakeES{respond: func(r *http.Request) (int, string) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/_search"):
			searches++
			if searches == 1 {
				return http.StatusOK, `{"hits":{"total":{"value":2},"hits":[{"_source":{"id":"a1"}},{"_source":{"id":"a2"}}]}}`
			}
			return http.StatusOK, `{"hits":{"total":{"value":0},"hits":[]}}`
		case strings.Contains(r.URL.Path, "related_sources/_delete_by_query"):
			return http.StatusOK, `{"deleted":3}`
		default:
			return http.StatusOK, `{"deleted":2}`
		}
	}}
	c := newClient(t, fake)

	articles, related, err := c.DeleteOlderThan(context.Background(), 24*time.Hour, 2)
	require.NoError(t, err)
	require.Equal(t, int64(2), articles)
	require.Equal(t, int64(3), related)
	require.Equal(t, 2, searches)
}

func TestListRelatedSourcesMissingIndex(t *testing.T) {
	fake := &fakeES{respond: func(*http.Request) (int, string) {
		return http.StatusNotFound, `{"error":{"type":"index_not_found_exception"}}`
	}}
	c := newClient(t, fake)

	got, err := c.ListRelatedSources(context.Background(), "a1")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestWaitReady(t *testing.T) {
	var mu sync.Mutex
	pings := 0
	fake := &fakeES{respond: func(*http.Request) (int, string) {
		mu.Lock()
		defer mu.Unlock()
		pings++
		if pings < 3 {
			return http.StatusInternalServerError, `{}`
		}
		return http.StatusOK, `{}`
	}}
	c := newClient(t, fake)

	require.NoError(t, c.WaitReady(context.Background(), 5, time.Millisecond))
	require.Equal(t, 3, pings)
}

func TestWaitReadyGivesUp(t *testing.T) {
	fake := &fakeES{respond: func(*http.Request) (int, string) { return http.StatusInternalServerError, `{}` }}
	c := newClient(t, fake)

	err := c.WaitReady(context.Background(), 2, time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "after 2 attempts")
}
