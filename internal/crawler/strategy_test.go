package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextLinkStrategy(t *testing.T) {
	doc := mustDoc(t, `<a class="prev" href="/p/1">前へ</a><li class="Pagination__next"><a href="/search?b=11">次へ</a></li>`)

	s := NextLinkStrategy{Selectors: []string{"a#pnnext", "li.Pagination__next a"}}
	next, ok := s.Next(doc, "https://news.yahoo.co.jp/search?p=x", 1)
	assert.True(t, ok)
	assert.Equal(t, "https://news.yahoo.co.jp/search?b=11", next)

	_, ok = NextLinkStrategy{Selectors: []string{"a#pnnext"}}.Next(doc, "https://news.yahoo.co.jp/", 1)
	assert.False(t, ok)
}

func TestOffsetStrategy(t *testing.T) {
	withPager := mustDoc(t, `<div class="Pagination"></div>`)
	withoutPager := mustDoc(t, `<p></p>`)

	s := OffsetStrategy{Param: "b", Start: 1, Step: 10, Affordance: []string{"div.Pagination"}}

	next, ok := s.Next(withPager, "https://news.yahoo.co.jp/search?p=x&b=1", 2)
	assert.True(t, ok)
	assert.Equal(t, "https://news.yahoo.co.jp/search?b=21&p=x", next)

	_, ok = s.Next(withoutPager, "https://news.yahoo.co.jp/search?p=x", 1)
	assert.False(t, ok)

	_, ok = OffsetStrategy{Param: "b"}.Next(withPager, "https://news.yahoo.co.jp/search", 1)
	assert.False(t, ok)
}

func TestChainStrategy(t *testing.T) {
	doc := mustDoc(t, `<div class="Pagination"></div>`)

	chain := ChainStrategy{
		nil,
		NextLinkStrategy{Selectors: []string{"a.next"}},
		OffsetStrategy{Param: "start", Step: 10},
	}

	next, ok := chain.Next(doc, "https://example.com/s?q=x", 1)
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/s?q=x&start=10", next)

	_, ok = ChainStrategy{}.Next(doc, "https://example.com/s", 1)
	assert.False(t, ok)
}
