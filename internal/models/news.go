package models

import (
	"strings"
	"time"
)

// Bias is the canonical political-lean label attached to articles.
type Bias string

const (
	BiasLeft   Bias = "left"
	BiasCenter Bias = "center"
	BiasRight  Bias = "right"
)

// Valid reports whether b is one of the canonical labels.
func (b Bias) Valid() bool {
	switch b {
	case BiasLeft, BiasCenter, BiasRight:
		return true
	}
	return false
}

// ParseBias maps a stored label back to its canonical form; anything unknown is center.
func ParseBias(raw string) Bias {
	b := Bias(strings.ToLower(strings.TrimSpace(raw)))
	if b.Valid() {
		return b
	}
	return BiasCenter
}

// CorroborationStatus tracks the cross-source bias corroboration of one article.
type CorroborationStatus string

const (
	StatusNotStarted CorroborationStatus = "not_started"
	StatusGenerating CorroborationStatus = "generating"
	StatusAvailable  CorroborationStatus = "available"
	StatusError      CorroborationStatus = "error"
)

// Terminal reports whether the status is a final one.
func (s CorroborationStatus) Terminal() bool {
	return s == StatusAvailable || s == StatusError
}

// Article is a normalized news item, optionally enriched and persisted.
// Empty optional fields mean the value is absent.
type Article struct {
	ID                  string              `json:"id,omitempty"`
	Title               string              `json:"title"`
	URL                 string              `json:"url"`
	Excerpt             string              `json:"excerpt"`
	Content             string              `json:"content"`
	Source              string              `json:"source"`
	Topic               string              `json:"topic"`
	PublishedAt         time.Time           `json:"published_at"`
	ImageURL            string              `json:"image_url,omitempty"`
	Summary             string              `json:"summary,omitempty"`
	Highlights          []string            `json:"bullet_point_highlights,omitempty"`
	Bias                Bias                `json:"political_bias,omitempty"`
	BiasConfidence      float64             `json:"bias_confidence"`
	CorroborationStatus CorroborationStatus `json:"bias_corroboration_status,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
}

// RelatedSource is one piece of coverage from another outlet found while corroborating an article.
type RelatedSource struct {
	ID          string    `json:"id"`
	ArticleID   string    `json:"article_id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Bias        Bias      `json:"political_bias"`
	PublishedAt time.Time `json:"published_at"`
	Quote       string    `json:"quote"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
}
