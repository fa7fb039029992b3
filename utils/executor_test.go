package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-crawler/internal/types"
)

// scriptedFetcher returns the scripted results in order
type scriptedFetcher struct {
	results []error
	calls   []types.PageRequest
}

func (f *scriptedFetcher) Fetch(ctx context.Context, req types.PageRequest) (string, error) {
	f.calls = append(f.calls, req)
	i := len(f.calls) - 1
	if i < len(f.results) && f.results[i] != nil {
		return "", f.results[i]
	}
	return "<html>ok</html>", nil
}

// recordSleeps captures requested waits without blocking
func recordSleeps(waits *[]time.Duration) Sleeper {
	return func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
}

func newTestExecutor(source Fetcher, waits *[]time.Duration) (*Executor, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	executor := NewExecutor(source, testSite(), logger)
	executor.Sleep = recordSleeps(waits)
	executor.Jitter = func(lo, hi float64) float64 { return lo }
	return executor, hook
}

func TestExecutor_Fetch_SuccessAppliesPoliteDelay(t *testing.T) {
	var waits []time.Duration
	source := &scriptedFetcher{}
	executor, _ := newTestExecutor(source, &waits)

	content, err := executor.Fetch(context.Background(), types.PageRequest{URL: "https://example.com/p/1", Mode: types.ModeList})

	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", content)
	assert.Len(t, source.calls, 1)
	// delay 1s + list jitter lower bound 1s
	assert.Equal(t, []time.Duration{2 * time.Second}, waits)
}

func TestExecutor_Fetch_DetailDelay(t *testing.T) {
	var waits []time.Duration
	executor, _ := newTestExecutor(&scriptedFetcher{}, &waits)

	_, err := executor.Fetch(context.Background(), types.PageRequest{URL: "https://example.com/a", Mode: types.ModeDetail})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second}, waits)
}

func TestExecutor_Fetch_RetriesWithBackoff(t *testing.T) {
	var waits []time.Duration
	boom := errors.New("connection reset")
	source := &scriptedFetcher{results: []error{boom, boom}}
	executor, _ := newTestExecutor(source, &waits)

	content, err := executor.Fetch(context.Background(), types.PageRequest{URL: "https://example.com/a", Mode: types.ModeDetail})

	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", content)
	assert.Len(t, source.calls, 3)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, time.Second}, waits)
}

func TestExecutor_Fetch_GivesUpAfterRetries(t *testing.T) {
	var waits []time.Duration
	boom := errors.New("connection reset")
	source := &scriptedFetcher{results: []error{boom, boom, boom, boom}}
	executor, hook := newTestExecutor(source, &waits)

	_, err := executor.Fetch(context.Background(), types.PageRequest{URL: "https://example.com/a"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Len(t, source.calls, 3)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, waits)

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, logrus.ErrorLevel, last.Level)
	assert.Equal(t, "Failed to fetch https://example.com/a after 3 attempts", last.Message)
}

func TestExecutor_Fetch_RateLimitDoesNotConsumeAttempt(t *testing.T) {
	var waits []time.Duration
	boom := errors.New("connection reset")
	source := &scriptedFetcher{results: []error{
		&RateLimitError{URL: "https://example.com/a", RetryAfter: 30 * time.Second},
		boom,
		boom,
	}}
	executor, _ := newTestExecutor(source, &waits)

	_, err := executor.Fetch(context.Background(), types.PageRequest{URL: "https://example.com/a", Mode: types.ModeDetail})

	require.NoError(t, err)
	// one rate-limit wait plus three full attempts
	require.Len(t, source.calls, 4)
	for _, call := range source.calls {
		assert.Equal(t, "https://example.com/a", call.URL)
	}
	assert.Equal(t, 30*time.Second, waits[0])
}

func TestExecutor_Fetch_RateLimitWaitsAreBounded(t *testing.T) {
	var waits []time.Duration
	limited := &RateLimitError{URL: "https://example.com/a", RetryAfter: time.Second}
	results := make([]error, 20)
	for i := range results {
		results[i] = limited
	}
	source := &scriptedFetcher{results: results}
	executor, _ := newTestExecutor(source, &waits)
	executor.MaxRateLimitWaits = 2

	_, err := executor.Fetch(context.Background(), types.PageRequest{URL: "https://example.com/a"})

	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Len(t, source.calls, 5)
}

func TestExecutor_Fetch_ContextCancelled(t *testing.T) {
	var waits []time.Duration
	source := &scriptedFetcher{}
	executor, _ := newTestExecutor(source, &waits)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := executor.Fetch(ctx, types.PageRequest{URL: "https://example.com/a"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, source.calls)
}

func TestContextSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := ContextSleep(ctx, time.Hour)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
