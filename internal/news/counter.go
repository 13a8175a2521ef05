package news

import "sync"

// Counter tallies progress and forwards every event to Next
type Counter struct {
	Next Observer

	mu         sync.Mutex
	pages      map[string]int
	discovered map[string]int
	enriched   int
	failed     []string
	written    int
	chunks     int
}

// NewCounter creates a counter forwarding to next (which may be nil)
func NewCounter(next Observer) *Counter {
	return &Counter{
		Next:       OrNop(next),
		pages:      make(map[string]int),
		discovered: make(map[string]int),
	}
}

func (c *Counter) PageCollected(engine string, page, found, fresh int) {
	c.mu.Lock()
	c.pages[engine]++
	c.mu.Unlock()
	c.Next.PageCollected(engine, page, found, fresh)
}

func (c *Counter) SourceDone(engine string, discovered int) {
	c.mu.Lock()
	c.discovered[engine] += discovered
	c.mu.Unlock()
	c.Next.SourceDone(engine, discovered)
}

func (c *Counter) ArticleEnriched(url string, bodyPages, comments int) {
	c.mu.Lock()
	c.enriched++
	c.mu.Unlock()
	c.Next.ArticleEnriched(url, bodyPages, comments)
}

func (c *Counter) ArticleFailed(url string, err error) {
	c.mu.Lock()
	c.failed = append(c.failed, url)
	c.mu.Unlock()
	c.Next.ArticleFailed(url, err)
}

func (c *Counter) ChunkWritten(sheet string, chunk, rows int) {
	c.mu.Lock()
	c.chunks++
	c.written += rows
	c.mu.Unlock()
	c.Next.ChunkWritten(sheet, chunk, rows)
}

// Pages returns the number of list pages collected for engine
func (c *Counter) Pages(engine string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pages[engine]
}

// Discovered returns a copy of the per-engine discovered counts
func (c *Counter) Discovered() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.discovered))
	for k, v := range c.discovered {
		out[k] = v
	}
	return out
}

// Enriched returns how many articles were enriched without failure
func (c *Counter) Enriched() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enriched
}

// Failed returns the urls of degraded articles
func (c *Counter) Failed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.failed...)
}

// Written returns the rows written and the number of chunks used
func (c *Counter) Written() (rows, chunks int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written, c.chunks
}
