// Package enricher attaches the full body text and the comment thread to articles.
package enricher

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"sjsage522/newsworker/helpers"
	"sjsage522/newsworker/internal/crawler"
	"sjsage522/newsworker/internal/news"
	"sjsage522/newsworker/logger"
	"sjsage522/newsworker/pkg/errors"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxBodyPages bounds the body traversal of one article
const DefaultMaxBodyPages = 10

// DefaultBodySelectors are tried in order; the first one yielding text wins
var DefaultBodySelectors = []string{
	"div.article_body p",
	"div[class*='article_body']",
	"div.articleBody p",
	"section[class*='articleBody'] p",
	"article p",
}

// CommentCollector returns the comments of an article id
type CommentCollector interface {
	Collect(ctx context.Context, articleID string) []string
}

// Enricher fetches body pages and comments for articles
type Enricher struct {
	Fetcher       crawler.PageFetcher
	Comments      CommentCollector
	MaxBodyPages  int
	BodySelectors []string
	Observer      news.Observer
}

// New creates an enricher with the default body selectors
func New(fetcher crawler.PageFetcher, comments CommentCollector, maxBodyPages int, observer news.Observer) *Enricher {
	if maxBodyPages <= 0 {
		maxBodyPages = DefaultMaxBodyPages
	}
	return &Enricher{
		Fetcher:       fetcher,
		Comments:      comments,
		MaxBodyPages:  maxBodyPages,
		BodySelectors: DefaultBodySelectors,
		Observer:      news.OrNop(observer),
	}
}

// EnrichAll enriches articles on a pool of at most workers goroutines. The result
// has the order of the input; a failed article comes back with empty body and comments.
func (e *Enricher) EnrichAll(ctx context.Context, articles []news.Article, workers int) []news.EnrichedArticle {
	if workers <= 0 {
		workers = 1
	}
	out := make([]news.EnrichedArticle, len(articles))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, article := range articles {
		i, article := i, article
		g.Go(func() error {
			out[i] = e.Enrich(ctx, article)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// Enrich returns article with its body pages and comments. It never fails; any
// error degrades the affected part to empty.
func (e *Enricher) Enrich(ctx context.Context, article news.Article) news.EnrichedArticle {
	observer := news.OrNop(e.Observer)
	enriched := news.EnrichedArticle{Article: article}

	target, err := e.resolveArticleURL(ctx, article.URL)
	if err != nil {
		observer.ArticleFailed(article.URL, err)
		return enriched
	}

	bodyPages, bodyErr := e.collectBody(ctx, target)
	enriched.BodyPages = bodyPages

	if e.Comments != nil {
		if id, err := helpers.PathSegmentAfter(target, "articles"); err == nil {
			enriched.Comments = e.Comments.Collect(ctx, id)
		}
	}

	if bodyErr != nil && len(bodyPages) == 0 {
		observer.ArticleFailed(article.URL, bodyErr)
		return enriched
	}
	observer.ArticleEnriched(article.URL, len(enriched.BodyPages), enriched.CommentCount())
	return enriched
}

// collectBody reads pages 1..MaxBodyPages in order. It stops on an empty page or a
// page identical to the one before it, which the site serves past the last page.
func (e *Enricher) collectBody(ctx context.Context, articleURL string) ([]string, error) {
	maxPages := e.MaxBodyPages
	if maxPages <= 0 {
		maxPages = DefaultMaxBodyPages
	}

	var (
		pages []string
		prev  string
	)
	for n := 1; n <= maxPages; n++ {
		var params url.Values
		if n > 1 {
			params = url.Values{"page": {strconv.Itoa(n)}}
		}

		body, err := e.Fetcher.Fetch(ctx, articleURL, nil, params)
		if err != nil {
			if n > 1 {
				logger.ForEnricher().Debug().Err(err).Str("url", articleURL).Int("page", n).Msg("Body page fetch failed")
			}
			return pages, err
		}

		text, err := e.extractText(string(body), articleURL)
		if err != nil {
			return pages, err
		}
		if text == "" || text == prev {
			break
		}
		pages = append(pages, text)
		prev = text
	}
	return pages, nil
}

// extractText tries the body selectors, then falls back to readability
func (e *Enricher) extractText(html, pageURL string) (string, error) {
	doc, err := crawler.ParseDocument(html)
	if err != nil {
		return "", errors.NewParsing(pageURL, "failed to parse article page", err)
	}

	selectors := e.BodySelectors
	if len(selectors) == 0 {
		selectors = DefaultBodySelectors
	}
	for _, sel := range selectors {
		var parts []string
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				parts = append(parts, text)
			}
		})
		if len(parts) > 0 {
			return strings.Join(parts, "\n"), nil
		}
	}

	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	if err != nil {
		return "", nil
	}
	return strings.TrimSpace(article.TextContent), nil
}

// resolveArticleURL maps a pickup digest link to the article it points at
func (e *Enricher) resolveArticleURL(ctx context.Context, rawURL string) (string, error) {
	if !strings.Contains(rawURL, "/pickup/") {
		return rawURL, nil
	}

	body, err := e.Fetcher.Fetch(ctx, rawURL, nil, nil)
	if err != nil {
		return "", err
	}
	doc, err := crawler.ParseDocument(string(body))
	if err != nil {
		return "", errors.NewParsing(rawURL, "failed to parse pickup page", err)
	}

	var target string
	doc.Find("a[href*='/articles/']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		target = crawler.ResolveURL(rawURL, s.AttrOr("href", ""))
		return target == ""
	})
	if target == "" {
		return "", errors.NewParsing(rawURL, "pickup page has no article link", nil)
	}
	return target, nil
}
