// Package catalog maps followed source identifiers to outlet domains.
package catalog

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/shDupont/merculy/internal/models"
)

type sourceLister interface {
	ListSources(ctx context.Context) ([]models.SourceChannel, error)
}

// Resolver reads the source catalog and falls back to a default domain list.
type Resolver struct {
	store    sourceLister
	defaults []string
	log      *slog.Logger
}

// NewResolver builds a Resolver. store may be nil, in which case only defaults are used.
func NewResolver(store sourceLister, defaults []string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{
		store:    store,
		defaults: append([]string(nil), defaults...),
		log:      logger.With("component", "catalog"),
	}
}

// Defaults returns a copy of the fallback domain list.
func (r *Resolver) Defaults() []string {
	return append([]string(nil), r.defaults...)
}

// ResolveDomains returns the domains of the active catalog entries matching ids, in input
// order without repeats. Unknown and inactive ids are skipped. When nothing resolves, or
// the catalog cannot be read, the default list is returned.
func (r *Resolver) ResolveDomains(ctx context.Context, ids []string) []string {
	if len(ids) == 0 || r.store == nil {
		return r.Defaults()
	}

	channels, err := r.store.ListSources(ctx)
	if err != nil {
		r.log.Warn("source catalog unavailable, using defaults", slog.Any("err", err))
		return r.Defaults()
	}

	byID := make(map[string]models.SourceChannel, len(channels))
	for _, ch := range channels {
		byID[ch.ID] = ch
	}

	seen := make(map[string]struct{}, len(ids))
	domains := make([]string, 0, len(ids))
	for _, id := range ids {
		ch, ok := byID[strings.TrimSpace(id)]
		if !ok || !ch.Active {
			continue
		}
		domain := strings.ToLower(strings.TrimSpace(ch.Domain))
		if domain == "" {
			continue
		}
		if _, dup := seen[domain]; dup {
			continue
		}
		seen[domain] = struct{}{}
		domains = append(domains, domain)
	}

	if len(domains) == 0 {
		return r.Defaults()
	}
	return domains
}

// Sources lists active catalog entries. When the catalog is empty or unreadable it
// describes the default domains instead.
func (r *Resolver) Sources(ctx context.Context) []models.SourceChannel {
	if r.store != nil {
		channels, err := r.store.ListSources(ctx)
		if err != nil {
			r.log.Warn("list sources failed, using defaults", slog.Any("err", err))
		} else {
			active := make([]models.SourceChannel, 0, len(channels))
			for _, ch := range channels {
				if ch.Active {
					active = append(active, ch)
				}
			}
			if len(active) > 0 {
				return active
			}
		}
	}

	out := make([]models.SourceChannel, 0, len(r.defaults))
	for _, d := range r.defaults {
		out = append(out, models.SourceChannel{ID: d, Domain: d, Name: DisplayName(d), Active: true})
	}
	return out
}

// DisplayName derives a readable outlet name from its domain, e.g. "folha.uol.com.br" -> "Folha.Uol".
func DisplayName(domain string) string {
	name := strings.TrimPrefix(strings.ToLower(domain), "www.")
	if i := strings.Index(name, "/"); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSuffix(name, ".com.br")
	name = strings.TrimSuffix(name, ".com")

	parts := strings.Split(name, ".")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, ".")
}
