package utils

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"retail-crawler/internal/types"
)

// BrowserClient renders pages in a headless browser.
// One browser is started per crawl session and every fetch opens its own tab.
type BrowserClient struct {
	site   *types.SiteConfig
	logger types.Logger

	browserCtx context.Context
	cancel     context.CancelFunc
	stop       func() bool
}

// NewBrowserClient starts a headless browser bound to ctx
func NewBrowserClient(ctx context.Context, site *types.SiteConfig, logger types.Logger) (*BrowserClient, error) {
	// Suppress chromedp debug logging
	log.SetOutput(io.Discard)

	userAgent := site.UserAgent
	if userAgent == "" {
		userAgent = types.DefaultConfig().UserAgent
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
		chromedp.DisableGPU,
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(logger.Debugf))

	cancel := func() {
		browserCancel()
		allocCancel()
	}

	// Start the browser eagerly so a missing binary is reported once
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	b := &BrowserClient{
		site:       site,
		logger:     logger,
		browserCtx: browserCtx,
		cancel:     cancel,
	}
	b.stop = context.AfterFunc(ctx, cancel)

	logger.Debugf("Browser session started for %s", site.Name)
	return b, nil
}

// Fetch navigates a new tab to the request URL, waits for the ready
// selector of the fetch mode and returns the rendered HTML
func (b *BrowserClient) Fetch(ctx context.Context, req types.PageRequest) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.site.Timeout())
	defer cancelTimeout()

	if len(b.site.Headers) > 0 {
		headers := make(network.Headers, len(b.site.Headers))
		for k, v := range b.site.Headers {
			headers[k] = v
		}
		if err := chromedp.Run(tabCtx, network.Enable(), network.SetExtraHTTPHeaders(headers)); err != nil {
			return "", fmt.Errorf("failed to set headers: %w", err)
		}
	}

	resp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(req.URL))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("failed to navigate to %s: %w", req.URL, err)
	}
	if resp != nil {
		if resp.Status == 429 {
			return "", &RateLimitError{
				URL:        req.URL,
				RetryAfter: ParseRetryAfter(headerValue(resp.Headers, "Retry-After"), time.Now()),
			}
		}
		if resp.Status >= 400 {
			return "", fmt.Errorf("unexpected status code: %d", resp.Status)
		}
	}

	var actions []chromedp.Action
	if selector := b.readySelector(req.Mode); selector != "" {
		actions = append(actions, chromedp.WaitReady(selector, chromedp.ByQuery))
	}
	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("failed to get page content: %w", err)
	}

	b.logger.Debugf("Successfully retrieved page content from %s (%d bytes)", req.URL, len(html))
	return html, nil
}

func (b *BrowserClient) readySelector(mode types.FetchMode) string {
	if mode == types.ModeDetail {
		return b.site.DetailInfoSelector
	}
	return b.site.ProductListSelector
}

// Close shuts the browser down
func (b *BrowserClient) Close() {
	if b.stop != nil {
		b.stop()
	}
	b.cancel()
}

func headerValue(headers network.Headers, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return fmt.Sprint(v)
		}
	}
	return ""
}
