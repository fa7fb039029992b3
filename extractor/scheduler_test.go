package extractor

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-crawler/internal/types"
	"retail-crawler/utils"
)

func TestRunAll_IsolatesFailures(t *testing.T) {
	healthy := webSite()
	broken := webSite()
	broken.Name = "Broken Shop"
	disabled := webSite()
	disabled.Name = "Disabled Shop"
	enabled := false
	disabled.Enabled = &enabled

	var mu sync.Mutex
	opened := map[string]bool{}
	opts, _ := testOptions(t.TempDir(), nil)
	opts.NewSession = func(ctx context.Context, site *types.SiteConfig, l types.Logger) (utils.Session, error) {
		mu.Lock()
		opened[site.Name] = true
		mu.Unlock()
		if site.Name == "Broken Shop" {
			return panicSession{}, nil
		}
		return newFakeSession(map[string]string{
			"https://x/p/1": listPage([]string{"Glen One", "Glen Two", "Glen Three"}, false),
		}), nil
	}

	result := RunAll(context.Background(), []*types.SiteConfig{healthy, broken, disabled}, opts)

	require.Len(t, result.Stores, 2)
	assert.Equal(t, "Whisky Shop", result.Stores[0].StoreName)
	assert.Equal(t, 3, result.Stores[0].Records)
	assert.Empty(t, result.Stores[0].Error)
	assert.Equal(t, "Broken Shop", result.Stores[1].StoreName)
	assert.Equal(t, "renderer crashed", result.Stores[1].Error)
	assert.Equal(t, 3, result.Total())
	assert.False(t, opened["Disabled Shop"])
}

func TestRunAll_RespectsGlobalLimit(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		maxSeen  int
	)
	opts, _ := testOptions(t.TempDir(), nil)
	opts.MaxConcurrentCrawls = 2
	opts.NewSession = func(ctx context.Context, site *types.SiteConfig, l types.Logger) (utils.Session, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxSeen {
			maxSeen = inFlight
		}
		mu.Unlock()
		return &countingSession{done: func() {
			mu.Lock()
			inFlight--
			mu.Unlock()
		}}, nil
	}

	var sites []*types.SiteConfig
	for _, name := range []string{"A", "B", "C", "D", "E"} {
		site := webSite()
		site.Name = name
		sites = append(sites, site)
	}

	result := RunAll(context.Background(), sites, opts)

	assert.Len(t, result.Stores, 5)
	assert.LessOrEqual(t, maxSeen, 2)
}

// countingSession serves an empty catalogue and reports when it is closed
type countingSession struct {
	done func()
}

func (c *countingSession) Fetch(ctx context.Context, req types.PageRequest) (string, error) {
	return `<html><body><ul class="products"></ul></body></html>`, nil
}

func (c *countingSession) Close() {
	c.done()
}
