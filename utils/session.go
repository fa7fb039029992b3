package utils

import (
	"context"

	"retail-crawler/internal/types"
)

// Session is a page source owned by one crawl
type Session interface {
	Fetcher
	Close()
}

// SessionFactory opens the page source for a site
type SessionFactory func(ctx context.Context, site *types.SiteConfig, logger types.Logger) (Session, error)

// NewSession opens a browser session for rendered sites and an HTTP
// session for static HTML and API sources
func NewSession(ctx context.Context, site *types.SiteConfig, logger types.Logger) (Session, error) {
	if site.BrowserEnabled() {
		browser, err := NewBrowserClient(ctx, site, logger)
		if err != nil {
			return nil, err
		}
		return browser, nil
	}
	return NewHTTPClient(site, logger), nil
}
