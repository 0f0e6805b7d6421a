package newsapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shDupont/merculy/internal/newsapi"
)

func TestSearchBuildsQuery(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","totalResults":1,"articles":[{"source":{"name":"G1"},"title":"Título","description":"Resumo","url":"https://g1.globo.com/a","publishedAt":"2024-05-01T10:00:00Z"}]}`))
	}))
	defer srv.Close()

	client := newsapi.New(newsapi.Config{BaseURL: srv.URL, APIKey: "k", Language: "pt"})
	from := time.Date(2024, 4, 24, 0, 0, 0, 0, time.UTC)

	items, err := client.Search(context.Background(), newsapi.Query{
		Q:        "tecnologia OR startup",
		Domains:  []string{"g1.globo.com", "exame.com"},
		From:     from,
		PageSize: 500,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "G1", items[0].Source.Name)
	require.Equal(t, "Título", items[0].Title)

	require.Equal(t, "/everything", got.URL.Path)
	q := got.URL.Query()
	require.Equal(t, "tecnologia OR startup", q.Get("q"))
	require.Equal(t, "g1.globo.com,exame.com", q.Get("domains"))
	require.Equal(t, "2024-04-24T00:00:00Z", q.Get("from"))
	require.Equal(t, "100", q.Get("pageSize"))
	require.Equal(t, "pt", q.Get("language"))
	require.Equal(t, "publishedAt", q.Get("sortBy"))
	require.Equal(t, "k", got.Header.Get("X-Api-Key"))
}

func TestSearchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"status":"error","code":"rateLimited","message":"slow down"}`))
	}))
	defer srv.Close()

	client := newsapi.New(newsapi.Config{BaseURL: srv.URL, APIKey: "k"})
	_, err := client.Search(context.Background(), newsapi.Query{Q: "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "rateLimited")
}

func TestSearchWithoutKey(t *testing.T) {
	client := newsapi.New(newsapi.Config{})
	require.False(t, client.Available())

	_, err := client.Search(context.Background(), newsapi.Query{Q: "x"})
	require.ErrorIs(t, err, newsapi.ErrUnavailable)
}

func TestTopHeadlines(t *testing.T) {
	var path, country string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		country = r.URL.Query().Get("country")
		_, _ = w.Write([]byte(`{"status":"ok","articles":[]}`))
	}))
	defer srv.Close()

	client := newsapi.New(newsapi.Config{BaseURL: srv.URL, APIKey: "k", Country: "br"})
	items, err := client.TopHeadlines(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, items)
	require.Equal(t, "/top-headlines", path)
	require.Equal(t, "br", country)
}
