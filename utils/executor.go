package utils

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"retail-crawler/internal/types"
)

// ErrFetchFailed is returned when every attempt for a request failed
var ErrFetchFailed = errors.New("fetch failed")

// DefaultRetryAfter is used when a rate-limited response names no wait
const DefaultRetryAfter = 60 * time.Second

// defaultMaxRateLimitWaits bounds the number of rate-limit waits per request
const defaultMaxRateLimitWaits = 10

// RateLimitError reports an HTTP 429 response
type RateLimitError struct {
	URL        string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited on %s, retry after %v", e.URL, e.RetryAfter)
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an HTTP date
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultRetryAfter
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if wait := at.Sub(now); wait > 0 {
			return wait
		}
		return 0
	}
	return DefaultRetryAfter
}

// Fetcher returns the content of one page or API call
type Fetcher interface {
	Fetch(ctx context.Context, req types.PageRequest) (string, error)
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the default Sleeper
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Executor wraps a Fetcher with retries, exponential backoff, polite
// delays and rate-limit waits
type Executor struct {
	source Fetcher
	site   *types.SiteConfig
	logger types.Logger

	Sleep             Sleeper
	Jitter            func(lo, hi float64) float64
	MaxRateLimitWaits int
}

// NewExecutor creates an executor for one crawl session
func NewExecutor(source Fetcher, site *types.SiteConfig, logger types.Logger) *Executor {
	return &Executor{
		source:            source,
		site:              site,
		logger:            logger,
		Sleep:             ContextSleep,
		Jitter:            uniform,
		MaxRateLimitWaits: defaultMaxRateLimitWaits,
	}
}

// Fetch performs req, retrying failed attempts with backoff.
// A rate-limited response is waited out without consuming an attempt.
func (e *Executor) Fetch(ctx context.Context, req types.PageRequest) (string, error) {
	retries := e.site.Retries
	if retries <= 0 {
		retries = types.DefaultRetries
	}
	delay := e.site.DelayDuration()

	var lastErr error
	waits := 0
	for attempt := 1; attempt <= retries; {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		e.logger.Debugf("Fetching %s (%s, attempt %d/%d)", req.URL, req.Mode, attempt, retries)
		content, err := e.source.Fetch(ctx, req)
		if err == nil {
			if err := e.politeDelay(ctx, req.Mode); err != nil {
				return content, err
			}
			return content, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		var rateLimited *RateLimitError
		if errors.As(err, &rateLimited) && waits < e.MaxRateLimitWaits {
			waits++
			e.logger.Warnf("Rate limited on %s. Waiting %v before retrying", req.URL, rateLimited.RetryAfter)
			if err := e.Sleep(ctx, rateLimited.RetryAfter); err != nil {
				return "", err
			}
			continue
		}

		lastErr = err
		if errors.Is(err, context.DeadlineExceeded) {
			e.logger.Warnf("Timeout fetching %s (attempt %d/%d)", req.URL, attempt, retries)
		} else {
			e.logger.Warnf("Error fetching %s (attempt %d/%d): %v", req.URL, attempt, retries, err)
		}

		if attempt < retries {
			backoff := delay * time.Duration(1<<attempt)
			if err := e.Sleep(ctx, backoff); err != nil {
				return "", err
			}
		}
		attempt++
	}

	e.logger.Errorf("Failed to fetch %s after %d attempts", req.URL, retries)
	return "", fmt.Errorf("%w: %s: %v", ErrFetchFailed, req.URL, lastErr)
}

// politeDelay waits between successful requests
func (e *Executor) politeDelay(ctx context.Context, mode types.FetchMode) error {
	lo, hi := 0.0, 1.0
	if mode == types.ModeList {
		lo, hi = 1.0, 3.0
	}
	wait := e.site.DelayDuration() + time.Duration(e.Jitter(lo, hi)*float64(time.Second))
	return e.Sleep(ctx, wait)
}

func uniform(lo, hi float64) float64 {
	return lo + rand.Float64()*(hi-lo)
}
