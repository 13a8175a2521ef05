package crawler

import (
	"net/url"
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

// NextPageStrategy finds the URL of the page after pageURL. page is the 1-based index
// of the page just extracted. ok is false when there is no next page affordance.
type NextPageStrategy interface {
	Next(doc *goquery.Document, pageURL string, page int) (next string, ok bool)
}

// NextLinkStrategy follows the first "next" anchor matched by any candidate selector
type NextLinkStrategy struct {
	Selectors []string
}

func (s NextLinkStrategy) Next(doc *goquery.Document, pageURL string, _ int) (string, bool) {
	for _, sel := range s.Selectors {
		var next string
		doc.Find(sel).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, ok := a.Attr("href")
			if !ok {
				return true
			}
			next = ResolveURL(pageURL, href)
			return next == ""
		})
		if next != "" {
			return next, true
		}
	}
	return "", false
}

// OffsetStrategy advances a numeric query parameter: page n+1 starts at Start + n*Step.
// When Affordance selectors are set, at least one must match for a next page to exist.
type OffsetStrategy struct {
	Param      string
	Start      int
	Step       int
	Affordance []string
}

func (s OffsetStrategy) Next(doc *goquery.Document, pageURL string, page int) (string, bool) {
	if s.Param == "" || s.Step <= 0 {
		return "", false
	}
	if len(s.Affordance) > 0 && !anyMatch(doc, s.Affordance) {
		return "", false
	}

	u, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	q := u.Query()
	q.Set(s.Param, strconv.Itoa(s.Start+page*s.Step))
	u.RawQuery = q.Encode()
	return u.String(), true
}

// ChainStrategy returns the first URL any of its strategies yields
type ChainStrategy []NextPageStrategy

func (c ChainStrategy) Next(doc *goquery.Document, pageURL string, page int) (string, bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if next, ok := s.Next(doc, pageURL, page); ok {
			return next, true
		}
	}
	return "", false
}

func anyMatch(doc *goquery.Document, selectors []string) bool {
	for _, sel := range selectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}
