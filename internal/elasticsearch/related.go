package elasticsearch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shDupont/merculy/internal/models"
)

const maxRelatedPerArticle = 50

// IndexRelatedSource stores a corroborating source and returns it with its ID.
func (c *Client) IndexRelatedSource(ctx context.Context, rs models.RelatedSource) (models.RelatedSource, error) {
	if rs.ArticleID == "" {
		return models.RelatedSource{}, fmt.Errorf("index related source: missing article id")
	}
	if rs.ID == "" {
		rs.ID = uuid.NewString()
	}
	if rs.CreatedAt.IsZero() {
		rs.CreatedAt = time.Now().UTC()
	}

	if err := c.indexDoc(ctx, c.indices.Related, rs.ID, rs); err != nil {
		return models.RelatedSource{}, fmt.Errorf("index related source: %w", err)
	}
	return rs, nil
}

// ListRelatedSources returns the sources recorded for an article, newest first.
func (c *Client) ListRelatedSources(ctx context.Context, articleID string) ([]models.RelatedSource, error) {
	body := map[string]any{
		"size": maxRelatedPerArticle,
		"query": map[string]any{
			"term": map[string]any{"article_id": articleID},
		},
		"sort": sortClause("", "published_at"),
	}

	hits, _, err := c.search(ctx, c.indices.Related, body)
	if err != nil {
		return nil, fmt.Errorf("list related sources: %w", err)
	}
	return decodeAll[models.RelatedSource](hits)
}
