// Package fetcher turns topics and free-text queries into normalized articles
// by querying the news API once per outlet domain.
package fetcher

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shDupont/merculy/internal/dedupe"
	"github.com/shDupont/merculy/internal/models"
	"github.com/shDupont/merculy/internal/newsapi"
	"github.com/shDupont/merculy/internal/processing"
	"github.com/shDupont/merculy/internal/topics"
)

const unknownSource = "Unknown"

type newsSearcher interface {
	Search(ctx context.Context, q newsapi.Query) ([]newsapi.RawArticle, error)
	TopHeadlines(ctx context.Context, pageSize int) ([]newsapi.RawArticle, error)
}

// Options tune the look-back windows.
type Options struct {
	TopicWindow  time.Duration
	SearchWindow time.Duration
}

// Fetcher queries the news API and normalizes what comes back.
type Fetcher struct {
	news  newsSearcher
	table *topics.Table
	opts  Options
	log   *slog.Logger
	now   func() time.Time
}

// New builds a Fetcher. Zero windows default to 7 days for topics and 30 days for searches.
func New(news newsSearcher, table *topics.Table, opts Options, logger *slog.Logger) *Fetcher {
	if table == nil {
		table = topics.Default()
	}
	if opts.TopicWindow <= 0 {
		opts.TopicWindow = 7 * 24 * time.Hour
	}
	if opts.SearchWindow <= 0 {
		opts.SearchWindow = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Fetcher{
		news:  news,
		table: table,
		opts:  opts,
		log:   logger.With("component", "fetcher"),
		now:   time.Now,
	}
}

// Split distributes limit across n domains: every domain gets max(1, limit/n) and the
// first limit%n domains get one more.
func Split(limit, n int) []int {
	if n <= 0 || limit <= 0 {
		return nil
	}
	base := max(1, limit/n)
	remainder := limit % n

	out := make([]int, n)
	for i := range out {
		out[i] = base
		if i < remainder {
			out[i]++
		}
	}
	return out
}

// FetchTopic returns at most limit articles about topic from the given domains, in domain
// order. A failing domain contributes nothing; the error is only logged.
func (f *Fetcher) FetchTopic(ctx context.Context, topic string, limit int, domains []string) []models.Article {
	subLimits := Split(limit, len(domains))
	if len(subLimits) == 0 {
		return nil
	}

	query := f.table.Query(topic)
	from := f.now().Add(-f.opts.TopicWindow)
	perDomain := make([][]models.Article, len(domains))

	var wg sync.WaitGroup
	for i, domain := range domains {
		wg.Add(1)
		go func(i int, domain string) {
			defer wg.Done()

			raw, err := f.news.Search(ctx, newsapi.Query{
				Q:        query,
				Domains:  []string{domain},
				From:     from,
				PageSize: subLimits[i],
			})
			if err != nil {
				f.log.Warn("domain fetch failed",
					slog.String("topic", topic),
					slog.String("domain", domain),
					slog.Any("err", err),
				)
				return
			}
			perDomain[i] = f.normalize(raw, topic, subLimits[i])
		}(i, domain)
	}
	wg.Wait()

	out := make([]models.Article, 0, limit)
	for _, items := range perDomain {
		for _, a := range items {
			if len(out) == limit {
				return out
			}
			out = append(out, a)
		}
	}

	f.log.Debug("topic fetched",
		slog.String("topic", topic),
		slog.Int("domains", len(domains)),
		slog.Int("articles", len(out)),
	)
	return out
}

// Search looks for query across all given domains over the search window. Results are
// labelled with their best matching topic.
func (f *Fetcher) Search(ctx context.Context, query string, limit int, domains []string) ([]models.Article, error) {
	if limit <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	raw, err := f.news.Search(ctx, newsapi.Query{
		Q:        query,
		Domains:  domains,
		From:     f.now().Add(-f.opts.SearchWindow),
		PageSize: limit,
	})
	if err != nil {
		return nil, err
	}

	items := f.normalize(raw, "", limit)
	for i := range items {
		items[i].Topic = f.table.Categorize(items[i].Title, items[i].Content)
	}
	return items, nil
}

// Trending returns the current top headlines.
func (f *Fetcher) Trending(ctx context.Context, limit int) ([]models.Article, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := f.news.TopHeadlines(ctx, limit)
	if err != nil {
		return nil, err
	}
	return f.normalize(raw, "trending", limit), nil
}

// Topics lists the topics the keyword table knows about.
func (f *Fetcher) Topics() []string {
	return f.table.Names()
}

func (f *Fetcher) normalize(raw []newsapi.RawArticle, topic string, limit int) []models.Article {
	out := make([]models.Article, 0, min(len(raw), limit))
	for _, item := range raw {
		if len(out) == limit {
			break
		}
		a, ok := f.toArticle(item, topic)
		if !ok {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (f *Fetcher) toArticle(raw newsapi.RawArticle, topic string) (models.Article, bool) {
	title := processing.CleanText(raw.Title)
	excerpt := processing.NormalizeText(raw.Description)
	link := dedupe.CanonicalURL(raw.URL)
	if title == "" || title == "[Removed]" || excerpt == "" || link == "" {
		return models.Article{}, false
	}

	published := f.now().UTC()
	if strings.TrimSpace(raw.PublishedAt) != "" {
		ts, ok := parseTimestamp(raw.PublishedAt)
		if !ok {
			return models.Article{}, false
		}
		published = ts
	}

	content := excerpt
	if body := processing.NormalizeText(raw.Content); body != "" && !strings.HasPrefix(excerpt, body) {
		content = excerpt + "\n\n" + body
	}

	source := strings.TrimSpace(raw.Source.Name)
	if source == "" {
		source = unknownSource
	}

	return models.Article{
		Title:       title,
		URL:         link,
		Excerpt:     excerpt,
		Content:     content,
		Source:      source,
		Topic:       topic,
		PublishedAt: published,
		ImageURL:    strings.TrimSpace(raw.URLToImage),
	}, true
}

func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	for _, layout := range formats {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
