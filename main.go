package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sjsage522/newsworker/config"
	"sjsage522/newsworker/helpers"
	"sjsage522/newsworker/internal/comments"
	"sjsage522/newsworker/internal/crawler"
	"sjsage522/newsworker/internal/enricher"
	"sjsage522/newsworker/internal/news"
	"sjsage522/newsworker/internal/pubdate"
	"sjsage522/newsworker/internal/syncer"
	"sjsage522/newsworker/logger"
	"sjsage522/newsworker/pkg/errors"
	"sjsage522/newsworker/services/cache"
	"sjsage522/newsworker/services/publisher"
	"sjsage522/newsworker/services/store"
	"sjsage522/newsworker/services/worker"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("keyword", cfg.Keyword).
		Str("sheet", cfg.SheetName).
		Strs("sources", cfg.Sources).
		Str("store", cfg.StoreBackend).
		Str("layout", cfg.Layout).
		Str("sync_mode", cfg.SyncMode).
		Str("schedule", cfg.CrawlSchedule).
		Msg("Starting application")

	// Cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize services
	services, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	// Process-wide totals, logged on shutdown
	observer := news.NewCounter(news.LogObserver{})

	// Fetching and parsing
	fetcher := helpers.NewFetcher(helpers.FetcherOptions{
		Timeout:           cfg.FetchTimeout,
		Retries:           cfg.FetchRetries,
		Backoff:           cfg.FetchBackoff,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Cache:             services.Cache,
		BlockTime:         cfg.RateLimitBlock,
	})
	normalizer := pubdate.NewNormalizer(fetcher)

	var chrome crawler.Renderer
	if cfg.UseChrome {
		cr := crawler.NewChromeRenderer(cfg.FetchTimeout)
		defer cr.Close()
		chrome = cr
	}

	sources := crawler.CreateSources(cfg, normalizer, crawler.NewHTTPRenderer(fetcher), chrome)
	if len(sources) == 0 {
		log.Fatal().Msg("No sources were created")
	}
	crawlers := make([]worker.Crawler, len(sources))
	for i, s := range sources {
		crawlers[i] = s
	}

	commentClient := comments.NewClient(fetcher, cfg.CommentEndpoint)
	articleEnricher := enricher.New(fetcher, commentClient, cfg.MaxBodyPages, observer)

	// Single writer per sheet
	writer := syncer.NewWriter(services.Store, cfg.WriteChunkRows, cfg.WriteCellBudget, observer)
	writer.ByteBudget = cfg.WriteByteBudget
	dispatcher := syncer.NewDispatcher(writer)
	defer dispatcher.Close()

	w := worker.NewWorker(cfg, crawlers, articleEnricher, dispatcher, services.Publisher, observer)

	log.Info().Int("source_count", len(sources)).Msg("Starting news worker")
	if err := w.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Worker exited with error")
		services.Cleanup()
		os.Exit(1)
	}

	rows, chunks := observer.Written()
	log.Info().
		Interface("discovered", observer.Discovered()).
		Int("enriched", observer.Enriched()).
		Int("failed", len(observer.Failed())).
		Int("rows_written", rows).
		Int("chunks", chunks).
		Msg("Shutting down gracefully...")
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Store     store.Store
	Publisher publisher.Publisher

	closers []func() error
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			logger.Default.Warn().Err(err).Msg("Cleanup failed")
		}
	}
	s.closers = nil
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	// Initialize cache service
	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err != nil {
			logger.ForCache().Warn().Err(err).Msg("Memcache unreachable, host blocks stay in memory")
			services.Cache = cache.NewMemoryCache()
		} else {
			services.Cache = mc
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	} else {
		services.Cache = cache.NewMemoryCache()
	}

	// Initialize store
	switch cfg.StoreBackend {
	case config.StoreSheets:
		s, err := store.NewSheetsStore(ctx, cfg.SpreadsheetID, cfg.ServiceAccountKey)
		if err != nil {
			return nil, err
		}
		services.Store = s
		logger.Info("Using spreadsheet %s", cfg.SpreadsheetID)
	case config.StoreXLSX:
		s, err := store.OpenXLSXStore(cfg.XLSXPath)
		if err != nil {
			return nil, err
		}
		services.Store = s
		services.closers = append(services.closers, s.Close)
		logger.Info("Using workbook %s", cfg.XLSXPath)
	case config.StoreMemory:
		services.Store = store.NewMemoryStore()
		logger.Info("Using in-memory store, nothing is persisted")
	default:
		return nil, errors.NewConfiguration("unknown store backend "+cfg.StoreBackend, nil)
	}

	// Initialize publisher
	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(ctx); err != nil {
			redisPublisher.Close()
			return nil, err
		}
		services.Publisher = redisPublisher
		services.closers = append(services.closers, redisPublisher.Close)

		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	return services, nil
}
