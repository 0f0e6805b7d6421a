package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

type docRef struct {
	ID string `json:"id"`
}

// DeleteOlderThan removes articles created more than maxAge ago together with their related
// sources. It deletes in batches of batchSize and stops once a batch comes back short.
func (c *Client) DeleteOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (articles, related int64, err error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	cutoff := time.Now().Add(-maxAge).UTC().Format(time.RFC3339)

	for {
		hits, _, err := c.search(ctx, c.indices.Articles, map[string]any{
			"size":    batchSize,
			"_source": []string{"id"},
			"query": map[string]any{
				"range": map[string]any{"created_at": map[string]any{"lte": cutoff}},
			},
		})
		if err != nil {
			return articles, related, fmt.Errorf("find expired articles: %w", err)
		}
		refs, err := decodeAll[docRef](hits)
		if err != nil {
			return articles, related, err
		}
		if len(refs) == 0 {
			break
		}

		ids := make([]string, 0, len(refs))
		for _, r := range refs {
			ids = append(ids, r.ID)
		}

		n, err := c.deleteByQuery(ctx, c.indices.Related, map[string]any{
			"terms": map[string]any{"article_id": ids},
		}, batchSize)
		if err != nil {
			return articles, related, err
		}
		related += n

		n, err = c.deleteByQuery(ctx, c.indices.Articles, map[string]any{
			"terms": map[string]any{"id": ids},
		}, batchSize)
		if err != nil {
			return articles, related, err
		}
		articles += n

		if len(refs) < batchSize || n == 0 {
			break
		}
	}

	return articles, related, nil
}

func (c *Client) deleteByQuery(ctx context.Context, index string, query map[string]any, batchSize int) (int64, error) {
	payload, err := json.Marshal(map[string]any{"query": query})
	if err != nil {
		return 0, fmt.Errorf("marshal delete body: %w", err)
	}

	res, err := c.es.DeleteByQuery(
		[]string{index},
		bytes.NewReader(payload),
		c.es.DeleteByQuery.WithContext(ctx),
		c.es.DeleteByQuery.WithWaitForCompletion(true),
		c.es.DeleteByQuery.WithConflicts("proceed"),
		c.es.DeleteByQuery.WithScrollSize(batchSize),
		c.es.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return 0, fmt.Errorf("delete by query: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return 0, fmt.Errorf("delete by query failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode delete response: %w", err)
	}
	return parsed.Deleted, nil
}
