package worker

import (
	"context"
	"strings"
	"time"

	"sjsage522/newsworker/config"
	"sjsage522/newsworker/internal/crawler"
	"sjsage522/newsworker/internal/news"
	"sjsage522/newsworker/internal/syncer"
	"sjsage522/newsworker/logger"
	"sjsage522/newsworker/services/publisher"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Crawler lists the articles one engine returns for a keyword
type Crawler interface {
	Name() string
	Crawl(ctx context.Context, keyword string, observer news.Observer) crawler.Result
}

// ArticleEnricher attaches body pages and comments to articles
type ArticleEnricher interface {
	EnrichAll(ctx context.Context, articles []news.Article, workers int) []news.EnrichedArticle
}

// SheetWriter runs jobs against the writer owning a sheet
type SheetWriter interface {
	Submit(ctx context.Context, sheet string, fn syncer.JobFunc) (int, error)
	EnrichColumns(ctx context.Context, sheet string, plan syncer.ColumnEnrichment) (int, error)
}

// Report summarises one run
type Report struct {
	Discovered map[string]int
	Pages      map[string]int
	Stops      map[string]crawler.StopReason
	Articles   int
	Written    int
	Enriched   int
	Published  int
	Elapsed    time.Duration
}

// Worker handles the crawl, enrich and sync process for one keyword
type Worker struct {
	cfg       *config.Config
	crawlers  []Crawler
	enricher  ArticleEnricher
	sheets    SheetWriter
	publisher publisher.Publisher
	observer  news.Observer
}

// NewWorker creates a new worker. pub may be nil to disable notifications.
func NewWorker(
	cfg *config.Config,
	crawlers []Crawler,
	enricher ArticleEnricher,
	sheets SheetWriter,
	pub publisher.Publisher,
	observer news.Observer,
) *Worker {
	return &Worker{
		cfg:       cfg,
		crawlers:  crawlers,
		enricher:  enricher,
		sheets:    sheets,
		publisher: pub,
		observer:  news.OrNop(observer),
	}
}

// Start runs once, or on the configured cron schedule until ctx is cancelled
func (w *Worker) Start(ctx context.Context) error {
	log := logger.ForWorker()

	if w.cfg.CrawlSchedule == "" {
		_, err := w.RunOnce(ctx)
		return err
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{})))
	if _, err := c.AddFunc(w.cfg.CrawlSchedule, func() {
		if _, err := w.RunOnce(ctx); err != nil {
			logger.LogError("worker", err, "Scheduled run for %q failed", w.cfg.Keyword)
		}
	}); err != nil {
		return err
	}

	log.Info().Str("schedule", w.cfg.CrawlSchedule).Msg("Worker scheduled")
	if _, err := w.RunOnce(ctx); err != nil {
		logger.LogError("worker", err, "Initial run for %q failed", w.cfg.Keyword)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	log.Info().Msg("Worker stopped")
	return nil
}

// RunOnce crawls every source, enriches Yahoo articles and synchronises the rows
// into the destination sheet. Only store failures are returned; a run that finds
// nothing new succeeds.
func (w *Worker) RunOnce(ctx context.Context) (Report, error) {
	start := time.Now()
	log := logger.ForWorker().WithField("keyword", w.cfg.Keyword)

	report := Report{
		Discovered: make(map[string]int),
		Pages:      make(map[string]int),
		Stops:      make(map[string]crawler.StopReason),
	}

	articles := w.crawl(ctx, &report)
	report.Articles = len(articles)

	var err error
	if w.cfg.SyncMode == config.SyncEnrichColumns {
		err = w.syncThenEnrichColumns(ctx, articles, &report)
	} else {
		err = w.syncAppend(ctx, articles, &report)
	}
	report.Elapsed = time.Since(start)

	event := log.Info()
	if err != nil {
		event = log.Error().Err(err)
	}
	event.
		Interface("discovered", report.Discovered).
		Interface("pages", report.Pages).
		Int("articles", report.Articles).
		Int("written", report.Written).
		Int("enriched", report.Enriched).
		Int("published", report.Published).
		Dur("elapsed", report.Elapsed).
		Msg("Run finished")
	return report, err
}

// crawl runs all crawlers in parallel and merges their articles in crawler order,
// keeping the first occurrence of each URL
func (w *Worker) crawl(ctx context.Context, report *Report) []news.Article {
	results := make([]crawler.Result, len(w.crawlers))
	counter := news.NewCounter(w.observer)

	var g errgroup.Group
	for i, c := range w.crawlers {
		i, c := i, c
		g.Go(func() error {
			results[i] = c.Crawl(ctx, w.cfg.Keyword, counter)
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]struct{})
	var merged []news.Article
	for i, r := range results {
		name := w.crawlers[i].Name()
		report.Discovered[name] = len(r.Articles)
		report.Pages[name] = counter.Pages(name)
		report.Stops[name] = r.Stop
		for _, a := range r.Articles {
			if _, ok := seen[a.URL]; ok {
				continue
			}
			seen[a.URL] = struct{}{}
			merged = append(merged, a)
		}
	}
	return merged
}

// enrich enriches the Yahoo articles and passes the rest through unchanged
func (w *Worker) enrich(ctx context.Context, articles []news.Article) []news.EnrichedArticle {
	out := news.Plain(articles)
	if w.enricher == nil {
		return out
	}

	var (
		targets []news.Article
		index   []int
	)
	for i, a := range articles {
		if a.Engine == news.EngineYahoo {
			targets = append(targets, a)
			index = append(index, i)
		}
	}
	if len(targets) == 0 {
		return out
	}

	for i, e := range w.enricher.EnrichAll(ctx, targets, w.cfg.EnrichWorkers) {
		out[index[i]] = e
	}
	return out
}

func (w *Worker) syncAppend(ctx context.Context, articles []news.Article, report *Report) error {
	layout, err := syncer.ParseLayout(w.cfg.Layout)
	if err != nil {
		return err
	}

	enriched := w.enrich(ctx, articles)
	table := syncer.BuildTable(layout, enriched, layout == syncer.LayoutList, w.cfg.MaxBodyPages)

	rows, err := w.syncRows(ctx, table)
	report.Written = len(rows)
	report.Published = w.publish(ctx, rows, enriched)
	return err
}

// syncThenEnrichColumns appends the plain list rows, then fills the enrichment block
// of every stored row that lacks one
func (w *Worker) syncThenEnrichColumns(ctx context.Context, articles []news.Article, report *Report) error {
	plain := news.Plain(articles)
	table := syncer.BuildTable(syncer.LayoutList, plain, false, 0)

	rows, err := w.syncRows(ctx, table)
	report.Written = len(rows)
	report.Published = w.publish(ctx, rows, plain)
	if err != nil {
		return err
	}

	maxBodyPages := w.cfg.MaxBodyPages
	n, err := w.sheets.EnrichColumns(ctx, w.cfg.SheetName, syncer.ColumnEnrichment{
		BaseWidth:  syncer.ListBaseWidth,
		BaseHeader: syncer.ListHeader(),
		BlockHeader: func(width int) []string {
			return syncer.EnrichmentHeader(maxBodyPages, width)
		},
		Enrich: w.enrichRows,
	})
	report.Enriched = n
	return err
}

// enrichRows returns the enrichment cells of stored list rows. Rows that are not
// Yahoo articles, or whose enrichment fetched nothing, get no cells and stay untouched.
func (w *Worker) enrichRows(ctx context.Context, rows [][]string) [][]string {
	cells := make([][]string, len(rows))
	if w.enricher == nil {
		return cells
	}

	var (
		targets []news.Article
		index   []int
	)
	for i, row := range rows {
		u := syncer.RowURL(row)
		if !isYahooURL(u) {
			continue
		}
		title := ""
		if len(row) > 0 {
			title = row[0]
		}
		targets = append(targets, news.Article{Title: title, URL: u, Engine: news.EngineYahoo})
		index = append(index, i)
	}

	for i, e := range w.enricher.EnrichAll(ctx, targets, w.cfg.EnrichWorkers) {
		// Nothing fetched: leave the block empty so the next run retries the row
		if len(e.BodyPages) == 0 && len(e.Comments) == 0 {
			continue
		}
		cells[index[i]] = syncer.EnrichmentCells(e, w.cfg.MaxBodyPages)
	}
	return cells
}

func (w *Worker) syncRows(ctx context.Context, table syncer.Table) ([][]string, error) {
	var rows [][]string
	_, err := w.sheets.Submit(ctx, w.cfg.SheetName, func(ctx context.Context, sw *syncer.Writer) (int, error) {
		var err error
		rows, err = sw.SyncRows(ctx, w.cfg.SheetName, table)
		return len(rows), err
	})
	return rows, err
}

// publish announces each article behind the written rows once. Failures are logged;
// the rows are already stored.
func (w *Worker) publish(ctx context.Context, rows [][]string, articles []news.EnrichedArticle) int {
	if w.publisher == nil || len(rows) == 0 {
		return 0
	}
	log := logger.ForPublisher()

	byURL := make(map[string]news.EnrichedArticle, len(articles))
	for _, a := range articles {
		byURL[a.URL] = a
	}

	var fresh []news.EnrichedArticle
	seen := make(map[string]struct{})
	for _, row := range rows {
		u := syncer.RowURL(row)
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		if a, ok := byURL[u]; ok {
			fresh = append(fresh, a)
		}
	}

	n, err := publisher.PublishArticles(ctx, w.publisher, w.cfg.SheetName, fresh)
	if err != nil {
		log.Error().Err(err).Int("published", n).Msg("Publishing new articles failed")
	}
	if err := w.publisher.TrimStreams(ctx); err != nil {
		log.Warn().Err(err).Msg("Stream trimming failed")
	}
	return n
}

func isYahooURL(u string) bool {
	return strings.Contains(u, "news.yahoo.co.jp/articles/") ||
		strings.Contains(u, "news.yahoo.co.jp/pickup/")
}

// cronLogger routes cron's own messages through the worker logger
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.ForWorker().Debug().Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.ForWorker().Error().Err(err).Fields(keysAndValues).Msg(msg)
}
