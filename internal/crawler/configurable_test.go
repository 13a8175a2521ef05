package crawler

import (
	"context"
	"testing"
	"time"

	"sjsage522/newsworker/internal/news"
	"sjsage522/newsworker/internal/pubdate"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedExtractor(cfg SourceConfig) *SelectorExtractor {
	e := NewSelectorExtractor(cfg, nil)
	e.Now = func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, pubdate.JST) }
	return e
}

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := ParseDocument(html)
	require.NoError(t, err)
	return doc
}

func TestSelectorExtractor_Extract(t *testing.T) {
	e := fixedExtractor(testSourceConfig())
	doc := mustDoc(t, listingPage([]int{1, 2}, ""))

	articles := e.Extract(context.Background(), doc, "https://news.example.com/search")

	require.Len(t, articles, 2)
	assert.Equal(t, "Article 1", articles[0].Title)
	assert.Equal(t, "https://news.example.com/articles/1", articles[0].URL)
	assert.Equal(t, "Media", articles[0].Source)
	assert.Equal(t, "Test", articles[0].Engine)
	assert.Equal(t, time.Date(2024, 1, 10, 9, 0, 0, 0, pubdate.JST), articles[0].PublishedAt.Time)
}

func TestSelectorExtractor_FallsBackThroughCandidates(t *testing.T) {
	cfg := testSourceConfig()
	cfg.Selectors.Items = []string{"div.missing", "article"}
	cfg.Selectors.Title = []string{"h2.missing", "h3"}
	cfg.Selectors.Link = []string{"a.missing", "a"}
	cfg.Selectors.Source = []string{"span.missing", "span.provider"}
	cfg.Selectors.PostedAt = []string{"time"}

	html := `<html><body>
		<article><h3>  Drifted   headline </h3><a href="https://other.example.com/x/1">read</a>
			<span class="provider">Wire</span><time datetime="2024-01-10T01:00:00Z"></time></article>
	</body></html>`
	articles := fixedExtractor(cfg).Extract(context.Background(), mustDoc(t, html), "https://news.example.com/")

	require.Len(t, articles, 1)
	assert.Equal(t, "Drifted headline", articles[0].Title)
	assert.Equal(t, "https://other.example.com/x/1", articles[0].URL)
	assert.Equal(t, "Wire", articles[0].Source)
	assert.Equal(t, "2024/01/10 10:00", articles[0].PublishedAt.String())
}

func TestSelectorExtractor_SkipsItemsWithoutLinkOrTitle(t *testing.T) {
	html := `<html><body><ul>
		<li class="item"><span class="media">No link</span></li>
		<li class="item"><a class="link" href="javascript:void(0)">Script</a></li>
		<li class="item"><a class="link" href="/articles/5"></a></li>
		<li class="item"><a class="link" href="/articles/6">Kept</a></li>
	</ul></body></html>`

	articles := fixedExtractor(testSourceConfig()).Extract(context.Background(), mustDoc(t, html), "https://news.example.com/search")

	require.Len(t, articles, 1)
	assert.Equal(t, "Kept", articles[0].Title)
}

func TestSelectorExtractor_NoItems(t *testing.T) {
	articles := fixedExtractor(testSourceConfig()).Extract(context.Background(), mustDoc(t, "<html><body><p>empty</p></body></html>"), "https://news.example.com/")
	assert.Empty(t, articles)
}

func TestSelectorExtractor_UnparsedDateKeepsLabel(t *testing.T) {
	html := `<ul><li class="item"><a class="link" href="/articles/1">A</a><time>不明</time></li></ul>`

	articles := fixedExtractor(testSourceConfig()).Extract(context.Background(), mustDoc(t, html), "https://news.example.com/")

	require.Len(t, articles, 1)
	assert.False(t, articles[0].PublishedAt.Parsed())
	assert.Equal(t, "不明", articles[0].PublishedAt.String())
}

func TestSelectorExtractor_RemoveElementsAndHandlers(t *testing.T) {
	cfg := testSourceConfig()
	cfg.Selectors.RemoveElements = []ElementRemoval{{Selector: "span.badge", ApplyToPath: "title"}}
	cfg.Selectors.SourceHandlers = []ElementHandler{
		func(s *goquery.Selection) string { return s.AttrOr("data-provider", "") },
	}

	html := `<ul><li class="item" data-provider="Handled"><a class="link" href="/articles/1">Title<span class="badge">NEW</span></a><span class="media">Ignored</span></li></ul>`

	articles := fixedExtractor(cfg).Extract(context.Background(), mustDoc(t, html), "https://news.example.com/")

	require.Len(t, articles, 1)
	assert.Equal(t, "Title", articles[0].Title)
	assert.Equal(t, "Handled", articles[0].Source)
}

func TestSourceConfigs_Yahoo(t *testing.T) {
	var yahoo SourceConfig
	for _, sc := range SourceConfigs() {
		if sc.Name == news.EngineYahoo {
			yahoo = sc
		}
	}
	require.Equal(t, news.EngineYahoo, yahoo.Name)

	html := `<html><body><ol>
		<li class="newsFeed_item">
			<a href="https://news.yahoo.co.jp/articles/abc123">
				<div class="newsFeed_item_title">トヨタ、新型車を発表<span class="newsFeed_item_new">NEW</span></div>
				<div class="newsFeed_item_sub"><div class="newsFeed_item_media">共同通信</div><time>1/10(水) 8:30</time></div>
			</a>
		</li>
		<li class="newsFeed_item"><a href="https://example.com/ad">広告</a></li>
	</ol>
	<div class="Pagination"><span>1</span></div>
	</body></html>`
	doc := mustDoc(t, html)

	articles := fixedExtractor(yahoo).Extract(context.Background(), doc, "https://news.yahoo.co.jp/search?p=x&ei=utf-8")
	require.Len(t, articles, 1)
	assert.Equal(t, "トヨタ、新型車を発表", articles[0].Title)
	assert.Equal(t, "https://news.yahoo.co.jp/articles/abc123", articles[0].URL)
	assert.Equal(t, "共同通信", articles[0].Source)
	assert.Equal(t, "2024/01/10 08:30", articles[0].PublishedAt.String())

	next, ok := yahoo.NextPage.Next(doc, "https://news.yahoo.co.jp/search?p=x&ei=utf-8", 1)
	assert.True(t, ok)
	assert.Contains(t, next, "b=11")
}

func TestSourceConfigs_GoogleLinkFilter(t *testing.T) {
	var google SourceConfig
	for _, sc := range SourceConfigs() {
		if sc.Name == news.EngineGoogle {
			google = sc
		}
	}

	html := `<div class="SoaBEf"><a class="WlydOe" href="/url?q=https://www.nikkei.com/article/1&amp;sa=U">
		<div role="heading">日経の記事</div><div class="MgUUmf"><span>日本経済新聞</span></div>
		<div class="OSrXXb"><span>2 日前</span></div></a></div>
		<div class="SoaBEf"><a class="WlydOe" href="https://www.google.com/preferences"><div role="heading">settings</div></a></div>`

	articles := fixedExtractor(google).Extract(context.Background(), mustDoc(t, html), "https://www.google.com/search?q=x&tbm=nws")

	require.Len(t, articles, 1)
	assert.Equal(t, "https://www.nikkei.com/article/1", articles[0].URL)
	assert.Equal(t, "日経の記事", articles[0].Title)
	assert.Equal(t, "日本経済新聞", articles[0].Source)
	assert.Equal(t, "2024/01/08 12:00", articles[0].PublishedAt.String())
}
