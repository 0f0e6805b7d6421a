package app_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shDupont/merculy/internal/aitext"
	"github.com/shDupont/merculy/internal/app"
	"github.com/shDupont/merculy/internal/config"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildWithDefaults(t *testing.T) {
	c, err := app.Build(config.Common{ElasticsearchAddr: "http://127.0.0.1:1"}, config.Curation{}, discard())
	require.NoError(t, err)

	require.Equal(t, "merculy_articles", c.Store.Indices().Articles)
	require.NotEmpty(t, c.Resolver.Defaults())
	require.Contains(t, c.Fetcher.Topics(), "tecnologia")
	require.NotNil(t, c.Curation(nil))
	require.NotNil(t, c.CorroborationWorker())
}

func TestBuildLoadsTopicsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topics.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keywords:\n  Clima: [chuva, seca]\ndefault_domains: [g1.globo.com]\n"), 0o600))

	c, err := app.Build(config.Common{ElasticsearchAddr: "http://127.0.0.1:1", TopicsFile: path}, config.Curation{}, discard())
	require.NoError(t, err)
	require.Equal(t, []string{"clima"}, c.Fetcher.Topics())
	require.Equal(t, []string{"g1.globo.com"}, c.Resolver.Defaults())
}

func TestBuildErrors(t *testing.T) {
	_, err := app.Build(config.Common{TopicsFile: "/does/not/exist.yaml"}, config.Curation{}, discard())
	require.Error(t, err)

	_, err = app.Build(config.Common{ElasticsearchAddr: "http://127.0.0.1:1"}, config.Curation{AI: aitext.Config{Provider: "bard", APIKey: "k"}}, discard())
	require.Error(t, err)
}
