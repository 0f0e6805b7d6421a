package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shDupont/merculy/internal/models"
)

// SearchParams narrow an article search.
type SearchParams struct {
	Query  string
	Topic  string
	Source string
	Bias   models.Bias
	From   int
	Size   int
	Sort   string
	Start  *time.Time
	End    *time.Time
}

// SearchResult bundles hits and total count.
type SearchResult struct {
	Total int64            `json:"total"`
	Items []models.Article `json:"items"`
}

// IndexArticle stores a new article and returns it with its assigned ID. New articles
// start with corroboration status not_started.
func (c *Client) IndexArticle(ctx context.Context, a models.Article) (models.Article, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.CorroborationStatus == "" {
		a.CorroborationStatus = models.StatusNotStarted
	}

	if err := c.indexDoc(ctx, c.indices.Articles, a.ID, a); err != nil {
		return models.Article{}, fmt.Errorf("index article: %w", err)
	}
	return a, nil
}

// GetArticle loads one article by ID.
func (c *Client) GetArticle(ctx context.Context, id string) (models.Article, error) {
	var a models.Article
	if err := c.getDoc(ctx, c.indices.Articles, id, &a); err != nil {
		return models.Article{}, fmt.Errorf("get article %s: %w", id, err)
	}
	return a, nil
}

// UpdateCorroborationStatus replaces the article's corroboration status.
func (c *Client) UpdateCorroborationStatus(ctx context.Context, id string, status models.CorroborationStatus) error {
	payload, err := json.Marshal(map[string]any{
		"doc": map[string]any{"bias_corroboration_status": status},
	})
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}

	res, err := c.es.Update(c.indices.Articles, id, bytes.NewReader(payload),
		c.es.Update.WithContext(ctx),
		c.es.Update.WithRetryOnConflict(3),
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if res.StatusCode == http.StatusNotFound {
		res.Body.Close()
		return fmt.Errorf("update status %s: %w", id, ErrNotFound)
	}
	return responseError(res, "update status")
}

// SearchArticles executes a bool query over stored articles with optional filters.
func (c *Client) SearchArticles(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if params.Size <= 0 {
		params.Size = 20
	}
	if params.Size > 200 {
		params.Size = 200
	}
	if params.From < 0 {
		params.From = 0
	}

	must := make([]map[string]any, 0, 1)
	filters := make([]map[string]any, 0, 4)

	if params.Query != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":  params.Query,
				"fields": []string{"title^2", "summary", "excerpt", "content"},
			},
		})
	}
	for field, value := range map[string]string{
		"topic":          params.Topic,
		"source":         params.Source,
		"political_bias": string(params.Bias),
	} {
		if value != "" {
			filters = append(filters, map[string]any{"term": map[string]any{field: value}})
		}
	}

	if params.Start != nil || params.End != nil {
		rangeQuery := map[string]any{}
		if params.Start != nil {
			rangeQuery["gte"] = params.Start.UTC().Format(time.RFC3339)
		}
		if params.End != nil {
			rangeQuery["lte"] = params.End.UTC().Format(time.RFC3339)
		}
		filters = append(filters, map[string]any{
			"range": map[string]any{"published_at": rangeQuery},
		})
	}

	body := map[string]any{
		"from":             params.From,
		"size":             params.Size,
		"track_total_hits": true,
		"query":            map[string]any{"bool": boolQuery(must, filters)},
		"sort":             sortClause(params.Sort, "published_at"),
	}

	hits, total, err := c.search(ctx, c.indices.Articles, body)
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}
	items, err := decodeAll[models.Article](hits)
	if err != nil {
		return nil, err
	}

	return &SearchResult{Total: total, Items: items}, nil
}

func boolQuery(must, filters []map[string]any) map[string]any {
	q := map[string]any{}
	if len(must) > 0 {
		q["must"] = must
	}
	if len(filters) > 0 {
		q["filter"] = filters
	}
	if len(must) == 0 && len(filters) == 0 {
		q["must"] = []map[string]any{{"match_all": map[string]any{}}}
	}
	return q
}

// sortClause parses "field:order", defaulting to field desc.
func sortClause(raw, defaultField string) []map[string]any {
	field, order := defaultField, "desc"
	if raw != "" {
		parts := strings.Split(raw, ":")
		if parts[0] != "" {
			field = parts[0]
		}
		if len(parts) > 1 && (parts[1] == "asc" || parts[1] == "desc") {
			order = parts[1]
		}
	}
	return []map[string]any{{field: map[string]any{"order": order}}}
}
