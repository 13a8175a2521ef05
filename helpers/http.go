package helpers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"sjsage522/newsworker/pkg/errors"
	"sjsage522/newsworker/services/cache"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// HTTP header configurations
var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	}

	referers = []string{
		"https://www.google.co.jp/",
		"https://www.yahoo.co.jp/",
		"https://www.bing.com/",
	}
)

// FetcherOptions configures a Fetcher
type FetcherOptions struct {
	Timeout           time.Duration
	Retries           int
	Backoff           time.Duration
	RequestsPerSecond float64
	Cache             cache.CacheService
	BlockTime         time.Duration
	Client            *http.Client
}

// Fetcher performs GET and HEAD requests with browser-like headers, a per-request
// timeout, an outbound rate limit and bounded retries with linear backoff.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	retries   int
	backoff   time.Duration
	limiter   *rate.Limiter
	cache     cache.CacheService
	blockTime time.Duration
}

// NewFetcher creates a new fetcher
func NewFetcher(opts FetcherOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Retries <= 0 {
		opts.Retries = 1
	}
	if opts.BlockTime <= 0 {
		opts.BlockTime = 5 * time.Minute
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Fetcher{
		client:    client,
		timeout:   opts.Timeout,
		retries:   opts.Retries,
		backoff:   opts.Backoff,
		limiter:   limiter,
		cache:     opts.Cache,
		blockTime: opts.BlockTime,
	}
}

// Fetch sends a GET request for rawURL with params merged into its query and returns
// the body converted to UTF-8. Retryable failures are retried up to the configured
// number of attempts.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, headers map[string]string, params url.Values) ([]byte, error) {
	target, err := withParams(rawURL, params)
	if err != nil {
		return nil, errors.NewValidation(rawURL, "invalid url")
	}

	var lastErr error
	for attempt := 1; attempt <= f.retries; attempt++ {
		body, err := f.fetchOnce(ctx, target, headers)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !errors.IsRetryable(err) || attempt == f.retries {
			break
		}

		wait := f.backoff * time.Duration(attempt)
		select {
		case <-ctx.Done():
			return nil, errors.NewNetwork(hostOf(target), "cancelled while backing off", ctx.Err())
		case <-time.After(wait):
		}
	}

	return nil, lastErr
}

// LastModified issues a HEAD request and returns the resource's Last-Modified time
func (f *Fetcher) LastModified(ctx context.Context, rawURL string) (time.Time, error) {
	host := hostOf(rawURL)
	if err := f.wait(ctx, host); err != nil {
		return time.Time{}, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, rawURL, nil)
	if err != nil {
		return time.Time{}, errors.NewValidation(host, "invalid url")
	}
	req.Header.Set("User-Agent", userAgents[0])

	resp, err := f.client.Do(req)
	if err != nil {
		return time.Time{}, errors.NewNetwork(host, "head request failed", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, errors.NewNetwork(host, fmt.Sprintf("head unexpected status code: %d", resp.StatusCode), nil)
	}

	lastModified := resp.Header.Get("Last-Modified")
	if lastModified == "" {
		return time.Time{}, errors.NewParsing(host, "no Last-Modified header", nil)
	}
	t, err := http.ParseTime(lastModified)
	if err != nil {
		return time.Time{}, errors.NewParsing(host, "invalid Last-Modified header", err)
	}
	return t, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, target string, headers map[string]string) ([]byte, error) {
	host := hostOf(target)
	if err := f.wait(ctx, host); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.NewValidation(host, "failed to create request")
	}
	setBrowserHeaders(req)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.NewNetwork(host, "failed to fetch URL", err)
	}
	defer resp.Body.Close()

	// Check for rate limiting
	if slices.Contains([]int{http.StatusTooManyRequests, 430}, resp.StatusCode) {
		f.block(host, resp.Header.Get("Retry-After"))
		return nil, errors.NewRateLimit(host, f.blockTime)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, errors.NewNetwork(host, fmt.Sprintf("fetch %s unexpected status code: %d", target, resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewValidation(host, fmt.Sprintf("fetch %s unexpected status code: %d", target, resp.StatusCode))
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetwork(host, "failed to read response body", err)
	}

	return toUTF8(bodyBytes, resp.Header.Get("Content-Type"))
}

// wait honours the host block set after a 429 and the outbound rate limit
func (f *Fetcher) wait(ctx context.Context, host string) error {
	if f.cache != nil {
		if _, err := f.cache.Get(blockKey(host)); err == nil {
			return errors.NewRateLimit(host, f.blockTime)
		}
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return errors.NewNetwork(host, "rate limiter wait failed", err)
		}
	}
	return nil
}

func (f *Fetcher) block(host, retryAfter string) {
	if f.cache == nil {
		return
	}
	blockTime := f.blockTime
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
		blockTime = time.Duration(secs) * time.Second
	}
	f.cache.Set(blockKey(host), []byte(strconv.Itoa(int(blockTime/time.Second))), blockTime)
}

func blockKey(host string) string {
	return "rate_limited:" + host
}

func setBrowserHeaders(req *http.Request) {
	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))

	req.Header.Set("User-Agent", userAgents[rnd.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ja-JP,ja;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("referer", referers[rnd.Intn(len(referers))])
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("upgrade-insecure-requests", "1")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
}

// toUTF8 converts body to UTF-8 based on the Content-Type header and body content
func toUTF8(body []byte, contentType string) ([]byte, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || name == "UTF-8" {
		return body, nil
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, encoding.NewDecoder().Reader(bytes.NewReader(body))); err != nil {
		return nil, errors.NewParsing(name, "failed to read converted UTF-8 body", err)
	}
	return buf.Bytes(), nil
}

func withParams(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if len(params) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for k, vs := range params {
		q.Del(k)
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
