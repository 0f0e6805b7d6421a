// Package newsletter turns a user's interests into stored newsletter records.
package newsletter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shDupont/merculy/internal/curation"
	"github.com/shDupont/merculy/internal/models"
)

// ArticlesPerNewsletter is the total article budget of one build.
const ArticlesPerNewsletter = 25

// PersonalTopic tags the single-format newsletter.
const PersonalTopic = "personalizada"

// DefaultInterests apply to users who never picked any.
var DefaultInterests = []string{"tecnologia", "política", "economia"}

type curator interface {
	GetNewsByTopics(ctx context.Context, topics []string, limit int, sourceIDs []string) curation.Result
}

type newsletterStore interface {
	IndexNewsletter(ctx context.Context, n models.Newsletter) (models.Newsletter, error)
}

// Builder curates and stores newsletters.
type Builder struct {
	curator curator
	store   newsletterStore
	log     *slog.Logger
	now     func() time.Time
}

// NewBuilder wires a Builder.
func NewBuilder(c curator, store newsletterStore, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Builder{curator: c, store: store, log: logger.With("component", "newsletter"), now: time.Now}
}

// Build curates news for the user and stores one newsletter (single format) or one per
// topic (by_topic format). Only persisted articles are referenced.
func (b *Builder) Build(ctx context.Context, user models.User) ([]models.Newsletter, error) {
	interests := user.Interests
	if len(interests) == 0 {
		interests = DefaultInterests
	}

	res := b.curator.GetNewsByTopics(ctx, interests, ArticlesPerNewsletter, user.FollowedChannels)
	if res.Total == 0 {
		b.log.Info("no news for user", slog.String("user_id", user.ID))
		return nil, nil
	}

	date := b.now().Format("02/01/2006")
	var drafts []models.Newsletter
	if user.NewsletterFormat == models.FormatByTopic {
		for _, topic := range res.Topics {
			ids := persistedIDs(res.News[topic])
			if len(ids) == 0 {
				continue
			}
			drafts = append(drafts, models.Newsletter{
				UserID:     user.ID,
				Title:      fmt.Sprintf("Newsletter %s - %s", titleCase(topic), date),
				Topic:      topic,
				ArticleIDs: ids,
			})
		}
	} else {
		var ids []string
		for _, topic := range res.Topics {
			ids = append(ids, persistedIDs(res.News[topic])...)
		}
		if len(ids) > 0 {
			drafts = append(drafts, models.Newsletter{
				UserID:     user.ID,
				Title:      "Newsletter Personalizada - " + date,
				Topic:      PersonalTopic,
				ArticleIDs: ids,
			})
		}
	}

	stored := make([]models.Newsletter, 0, len(drafts))
	for _, n := range drafts {
		saved, err := b.store.IndexNewsletter(ctx, n)
		if err != nil {
			return stored, fmt.Errorf("store newsletter for %s: %w", user.ID, err)
		}
		stored = append(stored, saved)
	}

	b.log.Info("newsletters built",
		slog.String("user_id", user.ID),
		slog.String("format", formatOf(user)),
		slog.Int("newsletters", len(stored)),
		slog.Int("articles", res.Total),
	)
	return stored, nil
}

// BuildAll runs Build for every user and keeps going past individual failures.
func (b *Builder) BuildAll(ctx context.Context, users []models.User) (built int, failed int) {
	for _, u := range users {
		if ctx.Err() != nil {
			break
		}
		out, err := b.Build(ctx, u)
		if err != nil {
			failed++
			b.log.Warn("build newsletter failed", slog.String("user_id", u.ID), slog.Any("err", err))
		}
		built += len(out)
	}
	return built, failed
}

func persistedIDs(articles []models.Article) []string {
	ids := make([]string, 0, len(articles))
	for _, a := range articles {
		if a.ID != "" {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func formatOf(u models.User) string {
	if u.NewsletterFormat == models.FormatByTopic {
		return models.FormatByTopic
	}
	return models.FormatSingle
}

// titleCase upper-cases the first letter of every word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
