package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sjsage522/newsworker/pkg/errors"

	"github.com/robfig/cron/v3"
)

// Store backends
const (
	StoreSheets = "sheets"
	StoreXLSX   = "xlsx"
	StoreMemory = "memory"
)

// Sync modes
const (
	SyncAppend        = "append"
	SyncEnrichColumns = "enrich-columns"
)

// DefaultCommentEndpoint is the Yahoo! News comment batch API; %s is the article id
const DefaultCommentEndpoint = "https://news.yahoo.co.jp/comment/plugin/v1/full/articles/%s/comments"

// Config represents the application configuration
type Config struct {
	// Search
	Keyword   string
	SheetName string
	Sources   []string

	// Store configuration
	StoreBackend      string
	SpreadsheetID     string
	ServiceAccountKey string
	XLSXPath          string
	Layout            string
	SyncMode          string
	WriteChunkRows    int
	WriteCellBudget   int
	WriteByteBudget   int

	// Crawler configuration
	MaxListPages      int
	MaxBodyPages      int
	EnrichWorkers     int
	FetchTimeout      time.Duration
	FetchRetries      int
	FetchBackoff      time.Duration
	RequestsPerSecond float64
	RateLimitBlock    time.Duration
	UseChrome         bool
	CommentEndpoint   string
	CrawlSchedule     string

	// Memcache configuration
	MemcacheAddr string

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	keyword := getEnv("KEYWORD", "トヨタ")

	return &Config{
		Keyword:              keyword,
		SheetName:            getEnv("SHEET_NAME", keyword),
		Sources:              getEnvList("SOURCES", "google,yahoo,msn"),
		StoreBackend:         getEnv("STORE_BACKEND", StoreSheets),
		SpreadsheetID:        getEnv("SPREADSHEET_ID", ""),
		ServiceAccountKey:    getEnv("GCP_SERVICE_ACCOUNT_KEY", ""),
		XLSXPath:             getEnv("XLSX_PATH", "news.xlsx"),
		Layout:               getEnv("LAYOUT", "exploded"),
		SyncMode:             getEnv("SYNC_MODE", SyncAppend),
		WriteChunkRows:       getEnvInt("WRITE_CHUNK_ROWS", 5000),
		WriteCellBudget:      getEnvInt("WRITE_CELL_BUDGET", 100000),
		WriteByteBudget:      getEnvInt("WRITE_BYTE_BUDGET", 2000000),
		MaxListPages:         getEnvInt("MAX_LIST_PAGES", 50),
		MaxBodyPages:         getEnvInt("MAX_BODY_PAGES", 10),
		EnrichWorkers:        getEnvInt("ENRICH_WORKERS", 4),
		FetchTimeout:         time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 15)) * time.Second,
		FetchRetries:         getEnvInt("FETCH_RETRIES", 3),
		FetchBackoff:         time.Duration(getEnvInt("FETCH_BACKOFF_MS", 1000)) * time.Millisecond,
		RequestsPerSecond:    getEnvFloat("REQUESTS_PER_SECOND", 2),
		RateLimitBlock:       time.Duration(getEnvInt("RATE_LIMIT_BLOCK_SECONDS", 300)) * time.Second,
		UseChrome:            getEnvBool("USE_CHROME", false),
		CommentEndpoint:      getEnv("COMMENT_ENDPOINT", DefaultCommentEndpoint),
		CrawlSchedule:        getEnv("CRAWL_SCHEDULE", ""),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "newsrows"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000),
		Environment:          getEnv("NEWS_ENVIRONMENT", "development"),
	}
}

// Validate checks that the configuration can start a run
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Keyword) == "" {
		return errors.NewConfiguration("KEYWORD is required", nil)
	}
	if len(c.Sources) == 0 {
		return errors.NewConfiguration("SOURCES must name at least one source", nil)
	}
	for _, s := range c.Sources {
		switch s {
		case "google", "yahoo", "msn":
		default:
			return errors.NewConfiguration(fmt.Sprintf("unknown source %q", s), nil)
		}
	}

	switch c.StoreBackend {
	case StoreSheets:
		if c.SpreadsheetID == "" {
			return errors.NewConfiguration("SPREADSHEET_ID is required for the sheets backend", nil)
		}
		if c.ServiceAccountKey == "" {
			return errors.NewConfiguration("GCP_SERVICE_ACCOUNT_KEY is required for the sheets backend", nil)
		}
	case StoreXLSX:
		if c.XLSXPath == "" {
			return errors.NewConfiguration("XLSX_PATH is required for the xlsx backend", nil)
		}
	case StoreMemory:
	default:
		return errors.NewConfiguration(fmt.Sprintf("unknown STORE_BACKEND %q", c.StoreBackend), nil)
	}

	if c.Layout != "list" && c.Layout != "exploded" {
		return errors.NewConfiguration(fmt.Sprintf("unknown LAYOUT %q", c.Layout), nil)
	}
	if c.SyncMode != SyncAppend && c.SyncMode != SyncEnrichColumns {
		return errors.NewConfiguration(fmt.Sprintf("unknown SYNC_MODE %q", c.SyncMode), nil)
	}
	if c.SyncMode == SyncEnrichColumns && c.Layout != "list" {
		return errors.NewConfiguration("SYNC_MODE enrich-columns requires LAYOUT list", nil)
	}

	if c.MaxListPages <= 0 || c.MaxBodyPages <= 0 || c.EnrichWorkers <= 0 {
		return errors.NewConfiguration("page limits and worker count must be positive", nil)
	}
	if c.WriteChunkRows <= 0 || c.WriteCellBudget <= 0 || c.WriteByteBudget <= 0 {
		return errors.NewConfiguration("write chunk limits must be positive", nil)
	}
	if c.FetchTimeout <= 0 || c.FetchRetries <= 0 {
		return errors.NewConfiguration("fetch timeout and retries must be positive", nil)
	}
	if !strings.Contains(c.CommentEndpoint, "%s") {
		return errors.NewConfiguration("COMMENT_ENDPOINT must contain %s for the article id", nil)
	}

	if c.CrawlSchedule != "" {
		if _, err := cron.ParseStandard(c.CrawlSchedule); err != nil {
			return errors.NewConfiguration("invalid CRAWL_SCHEDULE", err)
		}
	}

	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

// getEnvList splits a comma separated variable, dropping blanks
func getEnvList(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
