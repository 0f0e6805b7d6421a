package elasticsearch

var (
	keyword = map[string]any{"type": "keyword"}
	text    = map[string]any{"type": "text"}
	date    = map[string]any{"type": "date"}
)

var articleMapping = map[string]any{
	"properties": map[string]any{
		"id":                        keyword,
		"title":                     text,
		"url":                       keyword,
		"excerpt":                   text,
		"content":                   text,
		"source":                    keyword,
		"topic":                     keyword,
		"published_at":              date,
		"image_url":                 map[string]any{"type": "keyword", "index": false},
		"summary":                   text,
		"bullet_point_highlights":   text,
		"political_bias":            keyword,
		"bias_confidence":           map[string]any{"type": "float"},
		"bias_corroboration_status": keyword,
		"created_at":                date,
	},
}

var relatedMapping = map[string]any{
	"properties": map[string]any{
		"id":             keyword,
		"article_id":     keyword,
		"title":          text,
		"url":            keyword,
		"political_bias": keyword,
		"published_at":   date,
		"quote":          text,
		"source":         keyword,
		"created_at":     date,
	},
}

var sourceMapping = map[string]any{
	"properties": map[string]any{
		"id":        keyword,
		"domain":    keyword,
		"name":      text,
		"is_active": map[string]any{"type": "boolean"},
	},
}

var newsletterMapping = map[string]any{
	"properties": map[string]any{
		"id":         keyword,
		"user_id":    keyword,
		"title":      text,
		"topic":      keyword,
		"articles":   keyword,
		"created_at": date,
	},
}
