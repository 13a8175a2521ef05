package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// mockRenderer serves canned pages by URL and records every request
type mockRenderer struct {
	mu       sync.Mutex
	pages    map[string]string
	fallback func(rawURL string) (string, error)
	calls    []string
}

func newMockRenderer(pages map[string]string) *mockRenderer {
	return &mockRenderer{pages: pages}
}

func (m *mockRenderer) Render(_ context.Context, rawURL string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, rawURL)

	if html, ok := m.pages[rawURL]; ok {
		return html, nil
	}
	if m.fallback != nil {
		return m.fallback(rawURL)
	}
	return "", &mockError{message: "no page for " + rawURL}
}

func (m *mockRenderer) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type mockError struct {
	message string
}

func (e *mockError) Error() string {
	return e.message
}

// recordingObserver keeps page progress for assertions
type recordingObserver struct {
	mu    sync.Mutex
	pages []int
	done  map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{done: make(map[string]int)}
}

func (o *recordingObserver) PageCollected(_ string, page, _, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pages = append(o.pages, page)
}

func (o *recordingObserver) SourceDone(engine string, discovered int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.done[engine] = discovered
}

func (o *recordingObserver) ArticleEnriched(string, int, int) {}
func (o *recordingObserver) ArticleFailed(string, error)      {}
func (o *recordingObserver) ChunkWritten(string, int, int)    {}

// listingPage renders a minimal result page with the given article ids and an
// optional next link
func listingPage(ids []int, next string) string {
	var b strings.Builder
	b.WriteString("<html><body><ul>")
	for _, id := range ids {
		fmt.Fprintf(&b, `<li class="item"><a class="link" href="/articles/%d">Article %d</a><span class="media">Media</span><time>3時間前</time></li>`, id, id)
	}
	b.WriteString("</ul>")
	if next != "" {
		fmt.Fprintf(&b, `<a class="next" href="%s">次へ</a>`, next)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func testSourceConfig() SourceConfig {
	return SourceConfig{
		Name:    "Test",
		BaseURL: "https://news.example.com",
		Selectors: Selectors{
			Items:    []string{"li.item"},
			Title:    []string{"a.link"},
			Link:     []string{"a.link"},
			Source:   []string{"span.media"},
			PostedAt: []string{"time"},
		},
		NextPage: NextLinkStrategy{Selectors: []string{"a.next"}},
	}
}

// mockLastModifier answers metadata requests with a fixed time
type mockLastModifier struct {
	mu       sync.Mutex
	modified time.Time
	urls     []string
}

func (m *mockLastModifier) LastModified(_ context.Context, rawURL string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls = append(m.urls, rawURL)
	return m.modified, nil
}
