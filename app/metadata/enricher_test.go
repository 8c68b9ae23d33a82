package metadata

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letterhive/letterfeed/app/cache"
	"github.com/letterhive/letterfeed/app/sitemap"
)

// fakeFetcher returns canned metadata per URL and records call counts.
type fakeFetcher struct {
	mu    sync.Mutex
	metas map[string]sitemap.Meta
	errs  map[string]error
	delay time.Duration
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		metas: make(map[string]sitemap.Meta),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, pageURL string) (sitemap.Meta, error) {
	f.mu.Lock()
	f.calls[pageURL]++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return sitemap.Meta{}, ctx.Err()
		}
	}

	if err := f.errs[pageURL]; err != nil {
		return sitemap.Meta{}, err
	}
	return f.metas[pageURL], nil
}

func (f *fakeFetcher) callCount(pageURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[pageURL]
}

func TestEnrichBatchCompleteness(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.metas["https://a.com/1"] = sitemap.Meta{Title: "One"}
	fetcher.errs["https://a.com/2"] = errors.New("boom")
	fetcher.metas["https://a.com/3"] = sitemap.Meta{Title: "Three", Image: "img"}

	enricher := NewEnricher(fetcher, cache.NewMemory(), time.Millisecond, time.Second)
	urls := []string{"https://a.com/1", "https://a.com/2", "https://a.com/3"}
	results := enricher.EnrichBatch(context.Background(), urls)

	require.Len(t, results, 3, "every input URL must be present in the result")
	assert.Equal(t, "One", results["https://a.com/1"].Title)
	assert.Equal(t, sitemap.Meta{}, results["https://a.com/2"], "failed URL degrades to empty meta")
	assert.Equal(t, "img", results["https://a.com/3"].Image)
}

func TestEnrichBatchCachesForever(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.metas["https://a.com/1"] = sitemap.Meta{Title: "Cached"}
	store := cache.NewMemory()
	enricher := NewEnricher(fetcher, store, time.Millisecond, time.Second)

	first := enricher.EnrichBatch(context.Background(), []string{"https://a.com/1"})
	second := enricher.EnrichBatch(context.Background(), []string{"https://a.com/1"})

	assert.Equal(t, first, second)
	assert.Equal(t, 1, fetcher.callCount("https://a.com/1"), "cached URL must not be re-fetched")
}

func TestEnrichBatchDoesNotCacheFailures(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.errs["https://a.com/flaky"] = errors.New("outage")
	enricher := NewEnricher(fetcher, cache.NewMemory(), time.Millisecond, time.Second)

	enricher.EnrichBatch(context.Background(), []string{"https://a.com/flaky"})

	fetcher.mu.Lock()
	delete(fetcher.errs, "https://a.com/flaky")
	fetcher.metas["https://a.com/flaky"] = sitemap.Meta{Title: "Recovered"}
	fetcher.mu.Unlock()

	results := enricher.EnrichBatch(context.Background(), []string{"https://a.com/flaky"})
	assert.Equal(t, "Recovered", results["https://a.com/flaky"].Title, "failure must not poison the permanent cache")
	assert.Equal(t, 2, fetcher.callCount("https://a.com/flaky"))
}

func TestEnrichBatchTimeoutIsolated(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.delay = 200 * time.Millisecond
	fetcher.metas["https://a.com/slow"] = sitemap.Meta{Title: "Slow"}

	enricher := NewEnricher(fetcher, cache.NewMemory(), time.Millisecond, 10*time.Millisecond)
	fast := newFakeFetcher()
	fast.metas["https://a.com/fast"] = sitemap.Meta{Title: "Fast"}

	results := enricher.EnrichBatch(context.Background(), []string{"https://a.com/slow"})
	assert.Equal(t, sitemap.Meta{}, results["https://a.com/slow"], "timed-out URL degrades to empty meta")

	fastEnricher := NewEnricher(fast, cache.NewMemory(), time.Millisecond, 10*time.Millisecond)
	fastResults := fastEnricher.EnrichBatch(context.Background(), []string{"https://a.com/fast"})
	assert.Equal(t, "Fast", fastResults["https://a.com/fast"].Title)
}

func TestEnrichBatchDeduplicatesInput(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.metas["https://a.com/1"] = sitemap.Meta{Title: "One"}
	enricher := NewEnricher(fetcher, cache.NewMemory(), time.Millisecond, time.Second)

	results := enricher.EnrichBatch(context.Background(), []string{"https://a.com/1", "https://a.com/1"})

	assert.Len(t, results, 1)
	assert.Equal(t, 1, fetcher.callCount("https://a.com/1"))
}

func TestEnrichBatchEmptyInput(t *testing.T) {
	enricher := NewEnricher(newFakeFetcher(), cache.NewMemory(), time.Millisecond, time.Second)
	results := enricher.EnrichBatch(context.Background(), nil)
	assert.Empty(t, results)
}
