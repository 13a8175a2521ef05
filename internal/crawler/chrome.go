package crawler

import (
	"context"
	"sync"
	"time"

	"sjsage522/newsworker/logger"
	"sjsage522/newsworker/pkg/errors"

	"github.com/chromedp/chromedp"
)

// ChromeRenderer renders JavaScript driven pages in one shared headless Chrome.
// Every Render opens its own tab, so concurrent sources do not share page state.
type ChromeRenderer struct {
	timeout time.Duration

	once          sync.Once
	allocCtx      context.Context
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
	startErr      error
}

// NewChromeRenderer creates a renderer; the browser is started on first use
func NewChromeRenderer(timeout time.Duration) *ChromeRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChromeRenderer{timeout: timeout}
}

func (r *ChromeRenderer) start() error {
	r.once.Do(func() {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("lang", "ja-JP"),
			chromedp.UserAgent(userAgent),
		)
		r.allocCtx, r.cancelAlloc = chromedp.NewExecAllocator(context.Background(), opts...)
		r.browserCtx, r.cancelBrowser = chromedp.NewContext(r.allocCtx)

		// Warm up the browser so the first page is not charged for the launch
		if err := chromedp.Run(r.browserCtx); err != nil {
			r.startErr = errors.NewNetwork("chrome", "failed to start browser", err)
			logger.ForComponent("chrome").Error().Err(err).Msg("Chrome start failed")
		}
	})
	return r.startErr
}

// Render navigates to rawURL and returns the rendered document HTML
func (r *ChromeRenderer) Render(ctx context.Context, rawURL string) (string, error) {
	if err := r.start(); err != nil {
		return "", err
	}

	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.timeout)
	defer cancelTimeout()

	// Tie the tab to the caller's cancellation
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", errors.NewNetwork(hostOf(rawURL), "chrome render failed", err)
	}
	return html, nil
}

// Close shuts the browser down
func (r *ChromeRenderer) Close() {
	if r.cancelBrowser != nil {
		r.cancelBrowser()
	}
	if r.cancelAlloc != nil {
		r.cancelAlloc()
	}
}

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
