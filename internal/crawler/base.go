package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageFetcher is the plain HTTP page fetching capability
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string, headers map[string]string, params url.Values) ([]byte, error)
}

// HTTPRenderer renders pages with a plain GET; enough for server-rendered listings
type HTTPRenderer struct {
	Fetcher PageFetcher
}

// NewHTTPRenderer creates a renderer backed by fetcher
func NewHTTPRenderer(fetcher PageFetcher) *HTTPRenderer {
	return &HTTPRenderer{Fetcher: fetcher}
}

// Render fetches rawURL and returns its body
func (r *HTTPRenderer) Render(ctx context.Context, rawURL string) (string, error) {
	body, err := r.Fetcher.Fetch(ctx, rawURL, nil, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// createDocument creates a goquery document from rendered HTML
func createDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("HTML parsing error: %v", err)
	}
	return doc, nil
}

// ParseDocument exposes document creation to the enricher and tests
func ParseDocument(html string) (*goquery.Document, error) {
	return createDocument(html)
}

// ResolveURL resolves href against base and unwraps Google's /url?q= redirects
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if b, err := url.Parse(base); err == nil && !ref.IsAbs() {
		ref = b.ResolveReference(ref)
	}

	if ref.Path == "/url" {
		for _, key := range []string{"q", "url"} {
			if target := ref.Query().Get(key); strings.HasPrefix(target, "http") {
				return target
			}
		}
	}

	ref.Fragment = ""
	return ref.String()
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
