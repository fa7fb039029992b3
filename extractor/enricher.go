package extractor

import (
	"context"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"retail-crawler/adapters"
	"retail-crawler/internal/types"
	"retail-crawler/utils"
)

// Enricher fetches the detail page of every record of a page and merges
// the detail fields into it
type Enricher struct {
	site    *types.SiteConfig
	fetcher utils.Fetcher
	mapper  adapters.Mapper
	logger  types.Logger
	now     func() time.Time
	sem     *semaphore.Weighted
}

// NewEnricher creates the enricher of one crawl. The concurrency limit is
// shared by every page of the crawl.
func NewEnricher(site *types.SiteConfig, fetcher utils.Fetcher, mapper adapters.Mapper, logger types.Logger, now func() time.Time) *Enricher {
	limit := site.DetailConcurrency
	if limit <= 0 {
		limit = types.DefaultDetailConcurrency
	}
	return &Enricher{
		site:    site,
		fetcher: fetcher,
		mapper:  mapper,
		logger:  logger,
		now:     now,
		sem:     semaphore.NewWeighted(int64(limit)),
	}
}

// Enrich merges detail fields into records and stamps each record with
// scraped_at once it is complete. It returns once every detail fetch of
// the batch has finished.
func (e *Enricher) Enrich(ctx context.Context, records []types.Record) []types.Record {
	if !e.site.ShouldFetchDetails() {
		for _, record := range records {
			e.stamp(record)
		}
		return records
	}

	var wg sync.WaitGroup
	for _, record := range records {
		link := record.String("link")
		if link == "" {
			e.logger.Debugf("Skipping details for %v: no link", record["name"])
			e.stamp(record)
			continue
		}

		wg.Add(1)
		go func(record types.Record, link string) {
			defer wg.Done()
			defer e.stamp(record)
			defer func() {
				if r := recover(); r != nil {
					e.logger.Errorf("Panic while fetching details for %s: %v\n%s", link, r, debug.Stack())
				}
			}()

			if err := e.sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer e.sem.Release(1)

			if details := e.fetchDetails(ctx, link); details != nil {
				record.Merge(details)
			}
		}(record, link)
	}
	wg.Wait()
	return records
}

func (e *Enricher) stamp(record types.Record) {
	record["scraped_at"] = e.now().Format(types.TimestampFormat)
}

func (e *Enricher) fetchDetails(ctx context.Context, link string) types.Record {
	content, err := e.fetcher.Fetch(ctx, types.PageRequest{
		URL:    link,
		Method: http.MethodGet,
		Mode:   types.ModeDetail,
	})
	if err != nil {
		e.logger.Warnf("Failed to fetch details for %s: %v", link, err)
		return nil
	}

	details, err := e.mapper.MapDetail(content)
	if err != nil {
		e.logger.Warnf("Failed to parse details for %s: %v", link, err)
		return nil
	}
	return details
}
