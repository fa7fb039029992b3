package extractor

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"retail-crawler/adapters"
	"retail-crawler/config"
	"retail-crawler/exporter"
	"retail-crawler/internal/types"
	"retail-crawler/utils"
)

// Options configures crawls. Zero values fall back to the production
// behaviour: real sessions, real sleeps and per-retailer log files.
type Options struct {
	OutputDir           string
	LogDir              string
	LogLevel            string
	MaxConcurrentCrawls int

	Sleep      utils.Sleeper
	NewSession utils.SessionFactory
	NewLogger  func(site *types.SiteConfig) (types.Logger, func())
	Now        func() time.Time
}

// OptionsFromConfig builds crawl options from the process configuration
func OptionsFromConfig(cfg *types.Config) Options {
	return Options{
		OutputDir:           cfg.OutputDir,
		LogDir:              cfg.LogDir,
		LogLevel:            cfg.LogLevel,
		MaxConcurrentCrawls: cfg.MaxConcurrentCrawls,
	}
}

func (o Options) withDefaults() Options {
	if o.OutputDir == "" {
		o.OutputDir = types.DefaultConfig().OutputDir
	}
	if o.MaxConcurrentCrawls <= 0 {
		o.MaxConcurrentCrawls = types.DefaultConfig().MaxConcurrentCrawls
	}
	if o.Sleep == nil {
		o.Sleep = utils.ContextSleep
	}
	if o.NewSession == nil {
		o.NewSession = utils.NewSession
	}
	if o.NewLogger == nil {
		logDir, level := o.LogDir, o.LogLevel
		o.NewLogger = func(site *types.SiteConfig) (types.Logger, func()) {
			return utils.NewRetailerLogger(site, logDir, level)
		}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Crawler runs the crawl of one retailer at a time
type Crawler struct {
	opts Options
}

// NewCrawler creates a crawler
func NewCrawler(opts Options) *Crawler {
	return &Crawler{opts: opts.withDefaults()}
}

// Scrape crawls every page of a site, enriches each page with detail
// fields and appends it to the output file before requesting the next
// page. It never returns an error and never panics: failures are logged
// and reflected in the result.
func (c *Crawler) Scrape(ctx context.Context, site *types.SiteConfig) (result types.StoreResult) {
	logger, closeLog := c.opts.NewLogger(site)
	defer closeLog()

	startTime := c.opts.Now()
	result.StoreName = site.Name
	total := 0

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Unexpected error scraping %s: %v\n%s", site.Name, r, debug.Stack())
			result.Error = fmt.Sprint(r)
		}
		result.Records = total
		logger.Infof("Scrape completed for %s. Total products scraped: %d", site.Name, total)
	}()

	logger.Infof("Starting scrape for %s at %v", site.Name, startTime.Format("15:04:05.000"))

	// Step 1: Validate configuration
	logger.Debug("Step 1: Validating configuration...")
	if err := config.Prepare(site); err != nil {
		logger.Errorf("Configuration error: %v", err)
		result.Error = err.Error()
		return result
	}
	mapper, err := adapters.NewMapper(site, logger)
	if err != nil {
		logger.Errorf("Configuration error: %v", err)
		result.Error = err.Error()
		return result
	}

	// Step 2: Open the page source
	logger.Debug("Step 2: Opening session...")
	session, err := c.opts.NewSession(ctx, site, logger)
	if err != nil {
		logger.Errorf("Failed to open session: %v", err)
		result.Error = err.Error()
		return result
	}
	defer session.Close()

	executor := utils.NewExecutor(session, site, logger)
	executor.Sleep = c.opts.Sleep
	enricher := NewEnricher(site, executor, mapper, logger, c.opts.Now)
	sink := exporter.NewSink(c.opts.OutputDir, site, startTime, logger)
	paginator := NewPaginator(site)

	// Step 3: Walk the pages
	logger.Debug("Step 3: Crawling pages...")
	for {
		req := paginator.Request()
		logger.Infof("Scraping page %d: %s", paginator.Page(), req.URL)

		content, err := executor.Fetch(ctx, req)
		if err != nil || content == "" {
			if ctx.Err() != nil {
				logger.Warnf("Crawl cancelled on page %d: %v", paginator.Page(), ctx.Err())
				result.Error = ctx.Err().Error()
			} else {
				logger.Warnf("No content for page %d. Stopping", paginator.Page())
			}
			break
		}

		page, err := mapper.Map(content)
		if err != nil {
			logger.Errorf("Failed to parse page %d: %v", paginator.Page(), err)
			break
		}
		if !page.ListFound {
			logger.Infof("No product list found on page %d. Stopping", paginator.Page())
			break
		}
		if len(page.Records) == 0 {
			logger.Infof("No products found on page %d. Stopping", paginator.Page())
			break
		}

		records := enricher.Enrich(ctx, page.Records)
		written, err := sink.Append(records)
		if err != nil {
			logger.Errorf("Failed to save page %d: %v", paginator.Page(), err)
		}
		total += written
		result.Pages++
		logger.Infof("Saved %d products from page %d to %s", written, paginator.Page(), sink.Path())

		if !paginator.HasNext(page) {
			logger.Infof("No next page after page %d. Stopping", paginator.Page())
			break
		}
		if !paginator.Advance(page.Cursor) {
			logger.Infof("Reached dev page limit of %d. Stopping", site.PageLimit)
			break
		}
	}

	logger.Debugf("%s crawl finished in %v", site.Name, c.opts.Now().Sub(startTime))
	return result
}
