// Package newsapi queries a NewsAPI-compatible HTTP endpoint.
package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrUnavailable is returned when no API key is configured.
var ErrUnavailable = errors.New("news api unavailable")

// MaxPageSize is the largest page the upstream accepts.
const MaxPageSize = 100

// Config wires the HTTP client.
type Config struct {
	BaseURL  string
	APIKey   string
	Language string
	Country  string
	Timeout  time.Duration
}

// Query narrows a search on the "everything" endpoint.
type Query struct {
	Q        string
	Domains  []string
	From     time.Time
	PageSize int
}

// RawArticle is one upstream item before validation.
type RawArticle struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

type response struct {
	Status       string       `json:"status"`
	Code         string       `json:"code"`
	Message      string       `json:"message"`
	TotalResults int          `json:"totalResults"`
	Articles     []RawArticle `json:"articles"`
}

// Client talks to the news API.
type Client struct {
	cfg  Config
	http *http.Client
}

// New builds a client. An empty API key yields a client whose calls return ErrUnavailable.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://newsapi.org/v2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// Available reports whether an API key is configured.
func (c *Client) Available() bool {
	return c.cfg.APIKey != ""
}

// Search queries the "everything" endpoint, newest first.
func (c *Client) Search(ctx context.Context, q Query) ([]RawArticle, error) {
	params := url.Values{}
	if q.Q != "" {
		params.Set("q", q.Q)
	}
	if len(q.Domains) > 0 {
		params.Set("domains", strings.Join(q.Domains, ","))
	}
	if !q.From.IsZero() {
		params.Set("from", q.From.UTC().Format(time.RFC3339))
	}
	params.Set("pageSize", strconv.Itoa(clampPage(q.PageSize)))
	params.Set("sortBy", "publishedAt")
	if c.cfg.Language != "" {
		params.Set("language", c.cfg.Language)
	}

	return c.get(ctx, "/everything", params)
}

// TopHeadlines fetches the current headlines for the configured country.
func (c *Client) TopHeadlines(ctx context.Context, pageSize int) ([]RawArticle, error) {
	params := url.Values{}
	if c.cfg.Country != "" {
		params.Set("country", c.cfg.Country)
	}
	params.Set("pageSize", strconv.Itoa(clampPage(pageSize)))

	return c.get(ctx, "/top-headlines", params)
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]RawArticle, error) {
	if !c.Available() {
		return nil, ErrUnavailable
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("User-Agent", "merculy/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || parsed.Status == "error" {
		return nil, fmt.Errorf("news api error (%d %s): %s", resp.StatusCode, parsed.Code, parsed.Message)
	}

	return parsed.Articles, nil
}

func clampPage(n int) int {
	if n <= 0 {
		return 20
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}
