package crawler

import (
	"context"
	"strings"
	"time"

	"sjsage522/newsworker/internal/news"
	"sjsage522/newsworker/internal/pubdate"

	"github.com/PuerkitoBio/goquery"
)

// SelectorExtractor is an Extractor driven by candidate selectors
type SelectorExtractor struct {
	Config     SourceConfig
	Normalizer *pubdate.Normalizer
	Now        func() time.Time
}

// NewSelectorExtractor creates an extractor for a source configuration
func NewSelectorExtractor(config SourceConfig, normalizer *pubdate.Normalizer) *SelectorExtractor {
	if normalizer == nil {
		normalizer = pubdate.NewNormalizer(nil)
	}
	return &SelectorExtractor{
		Config:     config,
		Normalizer: normalizer,
		Now:        func() time.Time { return time.Now().In(pubdate.JST) },
	}
}

// Name returns the engine name
func (e *SelectorExtractor) Name() string {
	return e.Config.Name
}

// Extract returns the articles on a result page in document order. A label that does
// not parse is dated by the article's Last-Modified header when the normalizer can.
func (e *SelectorExtractor) Extract(ctx context.Context, doc *goquery.Document, pageURL string) []news.Article {
	items := e.findItems(doc)
	if items == nil {
		return nil
	}

	ref := e.Now()
	var articles []news.Article
	items.Each(func(_ int, s *goquery.Selection) {
		if a, ok := e.processItem(ctx, s, pageURL, ref); ok {
			articles = append(articles, a)
		}
	})
	return articles
}

// findItems returns the matches of the first item selector that matches anything
func (e *SelectorExtractor) findItems(doc *goquery.Document) *goquery.Selection {
	for _, sel := range e.Config.Selectors.Items {
		if items := doc.Find(sel); items.Length() > 0 {
			return items
		}
	}
	return nil
}

func (e *SelectorExtractor) processItem(ctx context.Context, s *goquery.Selection, pageURL string, ref time.Time) (news.Article, bool) {
	link := e.extractLink(s, pageURL)
	if link == "" {
		return news.Article{}, false
	}
	if e.Config.LinkFilter != nil && !e.Config.LinkFilter(link) {
		return news.Article{}, false
	}

	title := e.applyHandlers(s, e.Config.Selectors.TitleHandlers)
	if title == "" {
		title = e.firstText(s, e.Config.Selectors.Title, "title", true)
	}
	if title == "" {
		return news.Article{}, false
	}

	source := e.applyHandlers(s, e.Config.Selectors.SourceHandlers)
	if source == "" {
		source = e.firstText(s, e.Config.Selectors.Source, "source", false)
	}

	postedAt := e.applyHandlers(s, e.Config.Selectors.PostedAtHandlers)
	if postedAt == "" {
		postedAt = e.firstDate(s)
	}

	return news.Article{
		Title:       title,
		URL:         link,
		Source:      source,
		Engine:      e.Config.Name,
		PublishedAt: e.Normalizer.Normalize(ctx, postedAt, ref, link),
	}, true
}

func (e *SelectorExtractor) extractLink(s *goquery.Selection, pageURL string) string {
	base := pageURL
	if base == "" {
		base = e.Config.BaseURL
	}
	for _, sel := range e.Config.Selectors.Link {
		found := find(s, sel)
		if found.Length() == 0 {
			continue
		}
		var link string
		found.EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, ok := a.Attr("href")
			if !ok {
				return true
			}
			resolved := ResolveURL(base, href)
			if resolved == "" || (e.Config.LinkFilter != nil && !e.Config.LinkFilter(resolved)) {
				return true
			}
			link = resolved
			return false
		})
		if link != "" {
			return link
		}
	}
	return ""
}

// firstText returns the trimmed text of the first candidate with content. For titles
// the title attribute wins over the text, as on truncated headlines.
func (e *SelectorExtractor) firstText(s *goquery.Selection, candidates []string, path string, preferTitleAttr bool) string {
	for _, sel := range candidates {
		found := find(s, sel)
		if found.Length() == 0 {
			continue
		}
		found = e.cleanSelection(found.First(), path)
		if preferTitleAttr {
			if attr, ok := found.Attr("title"); ok && strings.TrimSpace(attr) != "" {
				return collapse(attr)
			}
		}
		if text := collapse(found.Text()); text != "" {
			return text
		}
	}
	return ""
}

// firstDate prefers a machine readable datetime attribute over the visible label
func (e *SelectorExtractor) firstDate(s *goquery.Selection) string {
	for _, sel := range e.Config.Selectors.PostedAt {
		found := find(s, sel)
		if found.Length() == 0 {
			continue
		}
		found = e.cleanSelection(found.First(), "postedAt")
		if text := collapse(found.Text()); text != "" {
			return text
		}
		if dt, ok := found.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
			return strings.TrimSpace(dt)
		}
	}
	return ""
}

// applyHandlers applies a series of handlers, stopping at the first non-empty result
func (e *SelectorExtractor) applyHandlers(s *goquery.Selection, handlers []ElementHandler) string {
	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		if result := strings.TrimSpace(handler(s)); result != "" {
			return result
		}
	}
	return ""
}

// cleanSelection removes configured elements from a clone of sel
func (e *SelectorExtractor) cleanSelection(sel *goquery.Selection, path string) *goquery.Selection {
	if sel.Length() == 0 || len(e.Config.Selectors.RemoveElements) == 0 {
		return sel
	}

	// Clone the selection to avoid modifying the original
	clone := sel.Clone()
	for _, removal := range e.Config.Selectors.RemoveElements {
		if removal.ApplyToPath == path {
			clone.Find(removal.Selector).Remove()
		}
	}
	return clone
}

func find(s *goquery.Selection, sel string) *goquery.Selection {
	if sel == "" {
		return s
	}
	return s.Find(sel)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
