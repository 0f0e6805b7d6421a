package elasticsearch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shDupont/merculy/internal/models"
)

const maxCatalogSize = 1000

// ListSources returns every entry of the source catalog, active or not.
func (c *Client) ListSources(ctx context.Context) ([]models.SourceChannel, error) {
	body := map[string]any{
		"size":  maxCatalogSize,
		"query": map[string]any{"match_all": map[string]any{}},
	}

	hits, _, err := c.search(ctx, c.indices.Sources, body)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return decodeAll[models.SourceChannel](hits)
}

// IndexSource adds or replaces a catalog entry.
func (c *Client) IndexSource(ctx context.Context, ch models.SourceChannel) error {
	if ch.ID == "" {
		return fmt.Errorf("index source: missing id")
	}
	if err := c.indexDoc(ctx, c.indices.Sources, ch.ID, ch); err != nil {
		return fmt.Errorf("index source: %w", err)
	}
	return nil
}

// IndexNewsletter stores a newsletter record and returns it with its ID.
func (c *Client) IndexNewsletter(ctx context.Context, n models.Newsletter) (models.Newsletter, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if err := c.indexDoc(ctx, c.indices.Newsletters, n.ID, n); err != nil {
		return models.Newsletter{}, fmt.Errorf("index newsletter: %w", err)
	}
	return n, nil
}

// ListNewsletters returns a user's newsletters, newest first.
func (c *Client) ListNewsletters(ctx context.Context, userID string, limit int) ([]models.Newsletter, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	body := map[string]any{
		"size":  limit,
		"query": map[string]any{"term": map[string]any{"user_id": userID}},
		"sort":  sortClause("", "created_at"),
	}

	hits, _, err := c.search(ctx, c.indices.Newsletters, body)
	if err != nil {
		return nil, fmt.Errorf("list newsletters: %w", err)
	}
	return decodeAll[models.Newsletter](hits)
}
