package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Client wraps go-elasticsearch with the document collections this project stores.
type Client struct {
	es      *elasticsearch.Client
	indices Indices
	log     *slog.Logger
}

// Indices names the index of every collection.
type Indices struct {
	Articles    string
	Related     string
	Sources     string
	Newsletters string
}

// IndicesFor derives collection index names from a shared prefix.
func IndicesFor(prefix string) Indices {
	if prefix == "" {
		prefix = "merculy"
	}
	return Indices{
		Articles:    prefix + "_articles",
		Related:     prefix + "_related_sources",
		Sources:     prefix + "_sources",
		Newsletters: prefix + "_newsletters",
	}
}

// New instantiates the Elasticsearch client.
func New(addr, indexPrefix string, logger *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{es: es, indices: IndicesFor(indexPrefix), log: logger.With("component", "elasticsearch")}, nil
}

// Indices returns the index names in use.
func (c *Client) Indices() Indices {
	return c.indices
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// WaitReady pings until Elasticsearch answers, doubling the delay between attempts up to
// 30s. It gives up after attempts pings or when ctx is done.
func (c *Client) WaitReady(ctx context.Context, attempts int, delay time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := range attempts {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = c.Ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}

		c.log.Warn("elasticsearch not ready, retrying",
			slog.Any("err", err),
			slog.Int("attempt", i+1),
			slog.Int("max_attempts", attempts),
			slog.Duration("retry_in", delay),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, 30*time.Second)
	}
	return fmt.Errorf("elasticsearch not ready after %d attempts: %w", attempts, err)
}

// Health pings Elasticsearch to ensure connectivity.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}

// EnsureIndices creates missing indices with their mappings.
func (c *Client) EnsureIndices(ctx context.Context) error {
	for name, mapping := range map[string]map[string]any{
		c.indices.Articles:    articleMapping,
		c.indices.Related:     relatedMapping,
		c.indices.Sources:     sourceMapping,
		c.indices.Newsletters: newsletterMapping,
	} {
		res, err := c.es.Indices.Exists([]string{name}, c.es.Indices.Exists.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("check index %s: %w", name, err)
		}
		res.Body.Close()
		if res.StatusCode == http.StatusOK {
			continue
		}

		payload, err := json.Marshal(map[string]any{"mappings": mapping})
		if err != nil {
			return fmt.Errorf("marshal mapping: %w", err)
		}

		res, err = c.es.Indices.Create(name,
			c.es.Indices.Create.WithContext(ctx),
			c.es.Indices.Create.WithBody(bytes.NewReader(payload)),
		)
		if err != nil {
			return fmt.Errorf("create index %s: %w", name, err)
		}
		if err := responseError(res, "create index "+name); err != nil && !strings.Contains(err.Error(), "resource_already_exists_exception") {
			return err
		}
		c.log.Info("index created", slog.String("index", name))
	}
	return nil
}

func (c *Client) indexDoc(ctx context.Context, index, id string, doc any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: id,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index doc: %w", err)
	}
	return responseError(res, "index doc")
}

func (c *Client) getDoc(ctx context.Context, index, id string, out any) error {
	res, err := c.es.Get(index, id, c.es.Get.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("get doc: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("get doc failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Source json.RawMessage `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode get response: %w", err)
	}
	if err := json.Unmarshal(parsed.Source, out); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// search runs body against index and returns the raw _source of each hit plus the total.
func (c *Client) search(ctx context.Context, index string, body map[string]any) ([]json.RawMessage, int64, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, 0, nil
	}
	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, 0, fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string          `json:"_id"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, 0, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]json.RawMessage, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		out = append(out, hit.Source)
	}
	return out, parsed.Hits.Total.Value, nil
}

func responseError(res *esapi.Response, op string) error {
	defer res.Body.Close()
	if !res.IsError() {
		return nil
	}
	body, _ := io.ReadAll(res.Body)
	return fmt.Errorf("%s failed: %s", op, strings.TrimSpace(string(body)))
}

func decodeAll[T any](raw []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, fmt.Errorf("decode hit: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}
