package news

import "sjsage522/newsworker/internal/pubdate"

// Engines
const (
	EngineGoogle = "Google"
	EngineYahoo  = "Yahoo"
	EngineMSN    = "MSN"
)

// Article represents one discovered news item; URL is its identity
type Article struct {
	Title       string            `json:"title"`
	URL         string            `json:"url"`
	Source      string            `json:"source"`
	Engine      string            `json:"engine"`
	PublishedAt pubdate.Timestamp `json:"-"`
}

// SourceName returns the publisher name, falling back to the engine it was found on
func (a Article) SourceName() string {
	if a.Source != "" {
		return a.Source
	}
	return a.Engine
}

// EnrichedArticle is an article with its body pages and comment thread
type EnrichedArticle struct {
	Article
	BodyPages []string `json:"body_pages"`
	Comments  []string `json:"comments"`
}

// CommentCount is always the number of comments actually materialized
func (e EnrichedArticle) CommentCount() int {
	return len(e.Comments)
}

// Plain wraps articles that are not enriched
func Plain(articles []Article) []EnrichedArticle {
	out := make([]EnrichedArticle, len(articles))
	for i, a := range articles {
		out[i] = EnrichedArticle{Article: a}
	}
	return out
}
