package dedupe

import (
	"net/url"
	"strings"

	"github.com/shDupont/merculy/internal/models"
)

// CanonicalURL normalizes a link so trivially different spellings of the same article
// compare equal: scheme and host are lower-cased, fragments, utm_* parameters and a
// trailing slash are dropped. Unparsable input is only trimmed.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if strings.HasPrefix(strings.ToLower(key), "utm_") {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}

	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	} else if u.Path == "/" {
		u.Path = ""
	}

	return u.String()
}

// Run tracks which canonical URLs were already kept during one curation run.
// It is not safe for concurrent use.
type Run struct {
	seen map[string]struct{}
}

// NewRun starts an empty run.
func NewRun() *Run {
	return &Run{seen: make(map[string]struct{})}
}

// Keep reports whether the article is the first one seen with its URL and records it.
func (r *Run) Keep(a models.Article) bool {
	key := CanonicalURL(a.URL)
	if key == "" {
		return false
	}
	if _, ok := r.seen[key]; ok {
		return false
	}
	r.seen[key] = struct{}{}
	return true
}

// Filter returns the articles whose URLs were not seen earlier in the run, keeping order.
func (r *Run) Filter(articles []models.Article) []models.Article {
	out := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		if r.Keep(a) {
			out = append(out, a)
		}
	}
	return out
}

// ByURL keeps the first article per canonical URL, preserving order.
func ByURL(articles []models.Article) []models.Article {
	return NewRun().Filter(articles)
}
