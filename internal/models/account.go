package models

import "time"

// Newsletter formats a user may choose.
const (
	FormatSingle  = "single"
	FormatByTopic = "by_topic"
)

// SourceChannel is a catalog entry a user can follow.
type SourceChannel struct {
	ID     string `json:"id"`
	Domain string `json:"domain"`
	Name   string `json:"name"`
	Active bool   `json:"is_active"`
}

// User is the read-only view of an account the curation engine needs.
type User struct {
	ID               string   `json:"id"`
	Email            string   `json:"email"`
	Name             string   `json:"name"`
	Interests        []string `json:"interests"`
	FollowedChannels []string `json:"followed_channels"`
	NewsletterFormat string   `json:"newsletter_format"`
	Active           bool     `json:"is_active"`
}

// Newsletter references the articles curated for one user at one point in time.
type Newsletter struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	Topic      string    `json:"topic"`
	ArticleIDs []string  `json:"articles"`
	CreatedAt  time.Time `json:"created_at"`
}

// CorroborationJob is the queued request to corroborate one persisted article.
type CorroborationJob struct {
	ArticleID   string    `json:"article_id"`
	RequestedAt time.Time `json:"requested_at"`
}
