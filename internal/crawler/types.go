package crawler

import (
	"context"

	"sjsage522/newsworker/internal/news"

	"github.com/PuerkitoBio/goquery"
)

// Extractor turns one rendered search result page into articles
type Extractor interface {
	// Name returns the engine name for logging and identification
	Name() string

	// Extract returns the page's articles in document order. ctx bounds any metadata
	// request made to date an article.
	Extract(ctx context.Context, doc *goquery.Document, pageURL string) []news.Article
}

// Renderer returns the HTML of a page
type Renderer interface {
	Render(ctx context.Context, rawURL string) (string, error)
}

// ElementHandler extracts a value from an item selection
type ElementHandler func(*goquery.Selection) string

// LinkFilterFunc decides whether a resolved link is an article of the source
type LinkFilterFunc func(string) bool

// ElementRemoval defines elements to remove from a selection before extracting text
type ElementRemoval struct {
	Selector    string // Selector to find elements to remove
	ApplyToPath string // The path to apply this to (e.g., "title", "postedAt")
}

// Selectors holds ordered candidate selectors per field. The first candidate that
// yields a non-empty value wins, so markup drift degrades instead of failing.
// An empty selector means the item element itself.
type Selectors struct {
	Items    []string
	Title    []string
	Link     []string
	Source   []string
	PostedAt []string

	TitleHandlers    []ElementHandler
	SourceHandlers   []ElementHandler
	PostedAtHandlers []ElementHandler

	RemoveElements []ElementRemoval
}

// SourceConfig contains configuration for one news source
type SourceConfig struct {
	Name       string
	SearchURL  string // %s is replaced by the escaped keyword
	BaseURL    string
	Selectors  Selectors
	LinkFilter LinkFilterFunc
	NextPage   NextPageStrategy
	UseChrome  bool
}
