// Package app wires configuration into the curation components shared by every binary.
package app

import (
	"fmt"
	"log/slog"

	"github.com/shDupont/merculy/internal/aitext"
	"github.com/shDupont/merculy/internal/catalog"
	"github.com/shDupont/merculy/internal/config"
	"github.com/shDupont/merculy/internal/corroboration"
	"github.com/shDupont/merculy/internal/curation"
	"github.com/shDupont/merculy/internal/elasticsearch"
	"github.com/shDupont/merculy/internal/enrichment"
	"github.com/shDupont/merculy/internal/fetcher"
	"github.com/shDupont/merculy/internal/newsapi"
	"github.com/shDupont/merculy/internal/topics"
)

// Components are the long-lived collaborators built from configuration.
type Components struct {
	Store    *elasticsearch.Client
	Topics   *topics.Table
	Resolver *catalog.Resolver
	Fetcher  *fetcher.Fetcher
	Enricher *enrichment.Pipeline
	log      *slog.Logger
}

// Build creates the document store client, loads the topic table and assembles the
// fetch and enrichment pipeline.
func Build(common config.Common, cur config.Curation, log *slog.Logger) (*Components, error) {
	store, err := elasticsearch.New(common.ElasticsearchAddr, common.IndexPrefix, log)
	if err != nil {
		return nil, fmt.Errorf("init elasticsearch: %w", err)
	}

	table, err := topics.Load(common.TopicsFile)
	if err != nil {
		return nil, err
	}

	news := newsapi.New(cur.News)
	if !news.Available() {
		log.Warn("NEWS_API_KEY not set, news fetching disabled")
	}

	ai, err := aitext.New(cur.AI, log)
	if err != nil {
		return nil, fmt.Errorf("init ai client: %w", err)
	}
	if _, off := ai.(aitext.Unavailable); off {
		log.Warn("AI_API_KEY not set, enrichment uses fallbacks")
	}

	return &Components{
		Store:    store,
		Topics:   table,
		Resolver: catalog.NewResolver(store, table.Domains(), log),
		Fetcher:  fetcher.New(news, table, fetcher.Options{TopicWindow: cur.TopicWindow, SearchWindow: cur.SearchWindow}, log),
		Enricher: enrichment.New(ai, cur.EnrichDelay, log),
		log:      log,
	}, nil
}

// Curation builds the curation service. dispatcher may be nil when corroboration is not
// offered by the caller.
func (c *Components) Curation(dispatcher corroboration.Dispatcher) *curation.Service {
	deps := curation.Deps{
		Resolver: c.Resolver,
		Fetcher:  c.Fetcher,
		Enricher: c.Enricher,
		Store:    c.Store,
		Logger:   c.log,
	}
	if dispatcher != nil {
		deps.Dispatcher = dispatcher
	}
	return curation.NewService(deps, curation.DefaultLimits())
}

// CorroborationWorker builds a worker that searches the default outlets.
func (c *Components) CorroborationWorker() *corroboration.Worker {
	return corroboration.NewWorker(c.Store, c.Fetcher, c.Enricher, c.Resolver.Defaults(), c.log)
}
