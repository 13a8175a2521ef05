package crawler

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"sjsage522/newsworker/config"
	"sjsage522/newsworker/internal/news"
	"sjsage522/newsworker/internal/pubdate"
	"sjsage522/newsworker/logger"

	"github.com/PuerkitoBio/goquery"
)

// Source is one search engine wired to its extractor, renderer and next page strategy
type Source struct {
	Config    SourceConfig
	Extractor Extractor
	Renderer  Renderer
	MaxPages  int
}

// Name returns the engine name
func (s *Source) Name() string {
	return s.Config.Name
}

// SeedURL returns the first result page for keyword
func (s *Source) SeedURL(keyword string) string {
	return fmt.Sprintf(s.Config.SearchURL, url.QueryEscape(keyword))
}

// Crawl collects every article the source lists for keyword
func (s *Source) Crawl(ctx context.Context, keyword string, observer news.Observer) Result {
	observer = news.OrNop(observer)
	paginator := NewPaginator(s.Renderer, observer)

	result := paginator.Collect(ctx, s.SeedURL(keyword), s.Extractor, s.Config.NextPage, s.MaxPages)

	log := logger.ForSource(s.Config.Name).Info().
		Int("pages", result.Pages).
		Int("articles", len(result.Articles)).
		Str("stop", string(result.Stop))
	if result.Err != nil {
		log = log.Err(result.Err)
	}
	log.Msg("Listing traversal finished")

	observer.SourceDone(s.Config.Name, len(result.Articles))
	return result
}

// CreateSources creates the enabled sources. MSN is rendered with chrome when one is
// given; otherwise every source uses the plain HTTP renderer.
func CreateSources(cfg *config.Config, normalizer *pubdate.Normalizer, httpRenderer, chromeRenderer Renderer) []*Source {
	var sources []*Source
	for _, sc := range SourceConfigs() {
		if !slices.Contains(cfg.Sources, strings.ToLower(sc.Name)) {
			continue
		}

		renderer := httpRenderer
		if sc.UseChrome && cfg.UseChrome && chromeRenderer != nil {
			renderer = chromeRenderer
		}

		sources = append(sources, &Source{
			Config:    sc,
			Extractor: NewSelectorExtractor(sc, normalizer),
			Renderer:  renderer,
			MaxPages:  cfg.MaxListPages,
		})
	}

	logger.Info("Created %d sources", len(sources))
	return sources
}

// SourceConfigs returns the configurations of every supported engine
func SourceConfigs() []SourceConfig {
	return []SourceConfig{
		{
			// Google News tab
			Name:      news.EngineGoogle,
			SearchURL: "https://www.google.com/search?q=%s&tbm=nws&hl=ja&gl=jp",
			BaseURL:   "https://www.google.com",
			Selectors: Selectors{
				Items:    []string{"div.SoaBEf", "div.dbsr", "div.Gx5Zad"},
				Title:    []string{"div[role='heading']", "div.n0jPhd", "h3"},
				Link:     []string{"a.WlydOe", "a"},
				Source:   []string{"div.MgUUmf span", "div.CEMjEf span", "div.BNeawe.UPmit"},
				PostedAt: []string{"div.OSrXXb span", "span.WG9SHc span", "span.r0bn4c"},
			},
			LinkFilter: func(link string) bool {
				u, err := url.Parse(link)
				return err == nil && strings.HasPrefix(u.Scheme, "http") && !strings.HasSuffix(u.Hostname(), "google.com")
			},
			NextPage: NextLinkStrategy{
				Selectors: []string{"a#pnnext", "a[aria-label='次のページ']", "a[aria-label='Next page']"},
			},
		},
		{
			// Yahoo! News Japan search
			Name:      news.EngineYahoo,
			SearchURL: "https://news.yahoo.co.jp/search?p=%s&ei=utf-8",
			BaseURL:   "https://news.yahoo.co.jp",
			Selectors: Selectors{
				Items: []string{"li.newsFeed_item", "div.newsFeed li", "li:has(a[href*='news.yahoo.co.jp'])"},
				Title: []string{"div.newsFeed_item_title", "h2", "a"},
				Link: []string{
					"a[href*='news.yahoo.co.jp/articles/']",
					"a[href*='news.yahoo.co.jp/pickup/']",
					"a",
				},
				Source:   []string{"div.newsFeed_item_media", "span.newsFeed_item_media"},
				PostedAt: []string{"time", "div.newsFeed_item_date"},
				RemoveElements: []ElementRemoval{
					{Selector: "span.newsFeed_item_new", ApplyToPath: "title"},
				},
			},
			LinkFilter: isYahooArticle,
			NextPage: ChainStrategy{
				NextLinkStrategy{Selectors: []string{"li.Pagination__next a", "a:contains('次へ')"}},
				OffsetStrategy{
					Param:      "b",
					Start:      1,
					Step:       10,
					Affordance: []string{"div.Pagination", "ul.Pagination", "[class*='Pagination']"},
				},
			},
		},
		{
			// MSN Japan news search, rendered client side
			Name:      news.EngineMSN,
			SearchURL: "https://www.msn.com/ja-jp/news/search?q=%s",
			BaseURL:   "https://www.msn.com",
			Selectors: Selectors{
				Items:    []string{"a[href*='/ar-']"},
				Title:    []string{"h3", "[class*='title']", ""},
				Link:     []string{""},
				Source:   []string{"[class*='provider']", "[class*='source']"},
				PostedAt: []string{"time", "[class*='time']"},
				SourceHandlers: []ElementHandler{
					func(s *goquery.Selection) string {
						return s.AttrOr("data-provider", "")
					},
				},
			},
			LinkFilter: func(link string) bool {
				return strings.Contains(link, "/ar-")
			},
			UseChrome: true,
		},
	}
}

func isYahooArticle(link string) bool {
	return strings.Contains(link, "news.yahoo.co.jp/articles/") ||
		strings.Contains(link, "news.yahoo.co.jp/pickup/")
}
