package crawler

import (
	"context"

	"sjsage522/newsworker/internal/news"
)

// DefaultMaxPages bounds a listing traversal when no ceiling is configured
const DefaultMaxPages = 50

// StopReason tells why a traversal ended
type StopReason string

const (
	StopNoNext      StopReason = "no_next"
	StopMaxPages    StopReason = "max_pages"
	StopNoNewLinks  StopReason = "no_new_links"
	StopFetchFailed StopReason = "fetch_failed"
)

// Result is the outcome of one traversal. Err is only informational: a failed
// fetch ends the traversal with whatever was collected before it.
type Result struct {
	Articles []news.Article
	Pages    int
	Stop     StopReason
	Err      error
}

// Paginator drives an extractor across linked result pages
type Paginator struct {
	Renderer Renderer
	Observer news.Observer
}

// NewPaginator creates a paginator
func NewPaginator(renderer Renderer, observer news.Observer) *Paginator {
	return &Paginator{Renderer: renderer, Observer: news.OrNop(observer)}
}

// Collect walks from seedURL until no next page exists, maxPages pages were read or a
// page adds no article unseen in this session. Articles are deduplicated by URL and
// returned in first-seen order.
func (p *Paginator) Collect(ctx context.Context, seedURL string, extractor Extractor, strategy NextPageStrategy, maxPages int) Result {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	observer := news.OrNop(p.Observer)

	seen := make(map[string]struct{})
	visited := map[string]struct{}{seedURL: {}}
	result := Result{}
	pageURL := seedURL

	for {
		if err := ctx.Err(); err != nil {
			result.Stop = StopFetchFailed
			result.Err = err
			return result
		}

		html, err := p.Renderer.Render(ctx, pageURL)
		if err != nil {
			result.Stop = StopFetchFailed
			result.Err = err
			return result
		}
		doc, err := createDocument(html)
		if err != nil {
			result.Stop = StopFetchFailed
			result.Err = err
			return result
		}
		result.Pages++

		found := extractor.Extract(ctx, doc, pageURL)
		fresh := 0
		for _, article := range found {
			if article.URL == "" {
				continue
			}
			if _, ok := seen[article.URL]; ok {
				continue
			}
			seen[article.URL] = struct{}{}
			result.Articles = append(result.Articles, article)
			fresh++
		}
		observer.PageCollected(extractor.Name(), result.Pages, len(found), fresh)

		if fresh == 0 {
			result.Stop = StopNoNewLinks
			return result
		}
		if result.Pages >= maxPages {
			result.Stop = StopMaxPages
			return result
		}
		if strategy == nil {
			result.Stop = StopNoNext
			return result
		}

		next, ok := strategy.Next(doc, pageURL, result.Pages)
		if !ok || next == "" {
			result.Stop = StopNoNext
			return result
		}
		if _, ok := visited[next]; ok {
			result.Stop = StopNoNext
			return result
		}
		visited[next] = struct{}{}
		pageURL = next
	}
}
