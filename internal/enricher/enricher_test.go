package enricher

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"

	"sjsage522/newsworker/internal/news"
	"sjsage522/newsworker/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pageFetcher serves article pages keyed by url and page parameter
type pageFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func (f *pageFetcher) Fetch(_ context.Context, rawURL string, _ map[string]string, params url.Values) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := rawURL
	if p := params.Get("page"); p != "" {
		key += "#" + p
	}
	f.calls = append(f.calls, key)

	html, ok := f.pages[key]
	if !ok {
		return nil, errors.NewNetwork("test", "not found "+key, nil)
	}
	return []byte(html), nil
}

type stubComments struct {
	mu  sync.Mutex
	ids []string
	out []string
}

func (s *stubComments) Collect(_ context.Context, id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, id)
	return s.out
}

type recordingObserver struct {
	news.NopObserver
	mu       sync.Mutex
	enriched []string
	failed   []string
}

func (o *recordingObserver) ArticleEnriched(u string, _, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.enriched = append(o.enriched, u)
}

func (o *recordingObserver) ArticleFailed(u string, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed = append(o.failed, u)
}

func bodyPage(text string) string {
	return fmt.Sprintf(`<html><body><div class="article_body"><p>%s</p></div></body></html>`, text)
}

const articleURL = "https://news.yahoo.co.jp/articles/abc123"

func TestEnrich_StopsAtRepeatedPage(t *testing.T) {
	fetcher := &pageFetcher{pages: map[string]string{
		articleURL:        bodyPage("A"),
		articleURL + "#2": bodyPage("B"),
		articleURL + "#3": bodyPage("B"),
		articleURL + "#4": bodyPage("C"),
	}}
	comments := &stubComments{out: []string{"x", "y"}}
	observer := &recordingObserver{}

	e := New(fetcher, comments, 10, observer)
	got := e.Enrich(context.Background(), news.Article{URL: articleURL, Title: "t"})

	assert.Equal(t, []string{"A", "B"}, got.BodyPages)
	assert.Equal(t, []string{"x", "y"}, got.Comments)
	assert.Equal(t, 2, got.CommentCount())
	assert.Equal(t, []string{"abc123"}, comments.ids)
	assert.NotContains(t, fetcher.calls, articleURL+"#4")
	assert.Equal(t, []string{articleURL}, observer.enriched)
}

func TestEnrich_OnlyComparesImmediatelyPreviousPage(t *testing.T) {
	fetcher := &pageFetcher{pages: map[string]string{
		articleURL:        bodyPage("A"),
		articleURL + "#2": bodyPage("B"),
		articleURL + "#3": bodyPage("A"),
		articleURL + "#4": bodyPage(""),
	}}

	got := New(fetcher, nil, 10, nil).Enrich(context.Background(), news.Article{URL: articleURL})

	assert.Equal(t, []string{"A", "B", "A"}, got.BodyPages)
	assert.Empty(t, got.Comments)
}

func TestEnrich_MaxBodyPages(t *testing.T) {
	pages := map[string]string{articleURL: bodyPage("p1")}
	for i := 2; i <= 5; i++ {
		pages[fmt.Sprintf("%s#%d", articleURL, i)] = bodyPage(fmt.Sprintf("p%d", i))
	}
	fetcher := &pageFetcher{pages: pages}

	got := New(fetcher, nil, 3, nil).Enrich(context.Background(), news.Article{URL: articleURL})

	assert.Equal(t, []string{"p1", "p2", "p3"}, got.BodyPages)
	assert.Len(t, fetcher.calls, 3)
}

func TestEnrich_UnreachableArticleDegrades(t *testing.T) {
	fetcher := &pageFetcher{pages: map[string]string{}}
	comments := &stubComments{}
	observer := &recordingObserver{}

	got := New(fetcher, comments, 10, observer).Enrich(context.Background(), news.Article{URL: articleURL, Title: "kept"})

	assert.Equal(t, "kept", got.Title)
	assert.Empty(t, got.BodyPages)
	assert.Empty(t, got.Comments)
	assert.Equal(t, []string{articleURL}, observer.failed)
}

func TestEnrich_LaterPageFailureKeepsEarlierPages(t *testing.T) {
	fetcher := &pageFetcher{pages: map[string]string{
		articleURL: bodyPage("A"),
	}}
	observer := &recordingObserver{}

	got := New(fetcher, nil, 10, observer).Enrich(context.Background(), news.Article{URL: articleURL})

	assert.Equal(t, []string{"A"}, got.BodyPages)
	assert.Equal(t, []string{articleURL}, observer.enriched)
}

func TestEnrich_ResolvesPickupLink(t *testing.T) {
	pickup := "https://news.yahoo.co.jp/pickup/6400000"
	fetcher := &pageFetcher{pages: map[string]string{
		pickup:     `<html><body><a href="https://news.yahoo.co.jp/articles/abc123">記事全文を読む</a></body></html>`,
		articleURL: bodyPage("A"),
	}}
	comments := &stubComments{}

	got := New(fetcher, comments, 10, nil).Enrich(context.Background(), news.Article{URL: pickup})

	assert.Equal(t, pickup, got.URL)
	assert.Equal(t, []string{"A"}, got.BodyPages)
	assert.Equal(t, []string{"abc123"}, comments.ids)
}

func TestEnrich_SelectorCandidates(t *testing.T) {
	fetcher := &pageFetcher{pages: map[string]string{
		articleURL: `<html><body><article><p>first</p><p>second</p></article></body></html>`,
	}}

	got := New(fetcher, nil, 1, nil).Enrich(context.Background(), news.Article{URL: articleURL})

	require.Len(t, got.BodyPages, 1)
	assert.Equal(t, "first\nsecond", got.BodyPages[0])
}

func TestEnrichAll_PreservesOrder(t *testing.T) {
	pages := map[string]string{}
	var articles []news.Article
	for i := 0; i < 20; i++ {
		u := fmt.Sprintf("https://news.yahoo.co.jp/articles/id%d", i)
		pages[u] = bodyPage(fmt.Sprintf("body %d", i))
		articles = append(articles, news.Article{URL: u})
	}
	articles = append(articles, news.Article{URL: "https://news.yahoo.co.jp/articles/missing"})

	got := New(&pageFetcher{pages: pages}, nil, 1, nil).EnrichAll(context.Background(), articles, 4)

	require.Len(t, got, 21)
	for i := 0; i < 20; i++ {
		assert.Equal(t, articles[i].URL, got[i].URL)
		assert.Equal(t, []string{fmt.Sprintf("body %d", i)}, got[i].BodyPages)
	}
	assert.Empty(t, got[20].BodyPages)
}
