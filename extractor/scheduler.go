package extractor

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"retail-crawler/internal/types"
)

// RunAll crawls every enabled site concurrently, with at most
// opts.MaxConcurrentCrawls crawls in flight. A failing crawl never
// affects its siblings. Results keep the order of sites.
func RunAll(ctx context.Context, sites []*types.SiteConfig, opts Options) types.ExtractionResult {
	crawler := NewCrawler(opts)
	start := crawler.opts.Now()
	sem := semaphore.NewWeighted(int64(crawler.opts.MaxConcurrentCrawls))

	results := make([]*types.StoreResult, len(sites))
	var wg sync.WaitGroup
	for i, site := range sites {
		if !site.IsEnabled() {
			continue
		}

		wg.Add(1)
		go func(i int, site *types.SiteConfig) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = &types.StoreResult{StoreName: site.Name, Error: err.Error()}
				return
			}
			defer sem.Release(1)

			result := crawler.Scrape(ctx, site)
			results[i] = &result
		}(i, site)
	}
	wg.Wait()

	extraction := types.ExtractionResult{}
	for _, result := range results {
		if result != nil {
			extraction.Stores = append(extraction.Stores, *result)
		}
	}
	extraction.Duration = crawler.opts.Now().Sub(start)
	return extraction
}
