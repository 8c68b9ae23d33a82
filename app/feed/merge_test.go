package feed

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letterhive/letterfeed/app/cache"
	"github.com/letterhive/letterfeed/app/sitemap"
)

type fakeEnricher struct {
	mu      sync.Mutex
	batches [][]string
	metas   map[string]sitemap.Meta
}

func newFakeEnricher() *fakeEnricher {
	return &fakeEnricher{metas: make(map[string]sitemap.Meta)}
}

func (f *fakeEnricher) EnrichBatch(ctx context.Context, urls []string) map[string]sitemap.Meta {
	f.mu.Lock()
	f.batches = append(f.batches, append([]string(nil), urls...))
	f.mu.Unlock()

	out := make(map[string]sitemap.Meta, len(urls))
	for _, u := range urls {
		out[u] = f.metas[u]
	}
	return out
}

func (f *fakeEnricher) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

type fakeRecorder struct {
	mu      sync.Mutex
	sources []string
}

func (f *fakeRecorder) Register(ctx context.Context, sourceURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, sourceURL)
	return nil
}

func newTestEngine(t *testing.T, transport *fakeTransport) (*Engine, *ProcessedStore, *fakeEnricher) {
	t.Helper()
	store := cache.NewMemory()
	processed := NewProcessedStore(store)
	raw := NewRawSource(store, transport.client(), "letterfeed-test", time.Hour)
	enricher := newFakeEnricher()
	engine := NewEngine(raw, sitemap.NewParser(), enricher, processed, &fakeRecorder{})
	engine.SetBatching(3, 0)
	return engine, processed, enricher
}

const alphaSitemap = `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://alpha.com/a1</loc><lastmod>2024-01-03</lastmod></url>
  <url><loc>https://alpha.com/a2</loc><lastmod>2024-01-01</lastmod></url>
  <url><loc>https://alpha.com/a3</loc><lastmod>2024-01-05</lastmod></url>
</urlset>`

func TestEnsureUpToDateMergesOnlyNewEntries(t *testing.T) {
	ctx := context.Background()
	transport := newFakeTransport()
	transport.responses["https://alpha.com/sitemap.xml"] = alphaSitemap

	engine, processed, enricher := newTestEngine(t, transport)
	enricher.metas["https://alpha.com/a3"] = sitemap.Meta{Title: "A3"}

	// a1 and a2 are already processed; the high-water mark is 2024-01-03
	require.NoError(t, processed.Put(ctx, "alpha-processed", []sitemap.Entry{
		entryAt("https://alpha.com/a1", "2024-01-03"),
		entryAt("https://alpha.com/a2", "2024-01-01"),
	}))

	entries, err := engine.EnsureUpToDate(ctx, "https://alpha.com/sitemap.xml")
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, "https://alpha.com/a3", entries[0].URL)
	assert.Equal(t, "https://alpha.com/a1", entries[1].URL)
	assert.Equal(t, "https://alpha.com/a2", entries[2].URL)

	assert.Equal(t, "A3", entries[0].Meta.Title, "only the new entry is enriched")
	assert.Equal(t, "alpha", entries[0].SourceKey)
	require.Equal(t, 1, enricher.batchCount())
	assert.Equal(t, []string{"https://alpha.com/a3"}, enricher.batches[0])
}

func TestEnsureUpToDateIdempotent(t *testing.T) {
	ctx := context.Background()
	transport := newFakeTransport()
	transport.responses["https://alpha.com/sitemap.xml"] = alphaSitemap

	engine, _, enricher := newTestEngine(t, transport)

	first, err := engine.EnsureUpToDate(ctx, "https://alpha.com/sitemap.xml")
	require.NoError(t, err)
	second, err := engine.EnsureUpToDate(ctx, "https://alpha.com/sitemap.xml")
	require.NoError(t, err)

	assert.Equal(t, first, second, "re-run with no new data must not change the store")
	assert.Equal(t, 1, enricher.batchCount(), "re-run must not re-enrich")
	assert.Equal(t, 1, transport.callCount("https://alpha.com/sitemap.xml"), "raw cache absorbs the second run")
}

func TestEnsureUpToDateFirstRunEmptyDocument(t *testing.T) {
	ctx := context.Background()
	transport := newFakeTransport()
	transport.responses["https://alpha.com/sitemap.xml"] = `<urlset></urlset>`

	engine, processed, _ := newTestEngine(t, transport)

	entries, err := engine.EnsureUpToDate(ctx, "https://alpha.com/sitemap.xml")
	require.NoError(t, err)
	assert.Empty(t, entries)

	// The store now exists (empty), so later runs have a defined high-water mark
	_, found, err := processed.Get(ctx, "alpha-processed")
	require.NoError(t, err)
	assert.True(t, found, "empty processed store must be created on first run")
}

func TestEnsureUpToDateFetchFailureServesLastKnown(t *testing.T) {
	ctx := context.Background()
	transport := newFakeTransport()
	transport.errs["https://alpha.com/sitemap.xml"] = fmt.Errorf("origin down")

	engine, processed, enricher := newTestEngine(t, transport)
	require.NoError(t, processed.Put(ctx, "alpha-processed", []sitemap.Entry{
		entryAt("https://alpha.com/a1", "2024-01-03"),
	}))

	entries, err := engine.EnsureUpToDate(ctx, "https://alpha.com/sitemap.xml")
	require.NoError(t, err, "fetch failure surfaces in logs, not to the caller")
	require.Len(t, entries, 1)
	assert.Equal(t, "https://alpha.com/a1", entries[0].URL)
	assert.Equal(t, 0, enricher.batchCount())
}

func TestEnsureUpToDateSkipsRepublishedURLs(t *testing.T) {
	ctx := context.Background()
	transport := newFakeTransport()
	// a1 republished with a timestamp past the high-water mark
	transport.responses["https://alpha.com/sitemap.xml"] = `<urlset>
  <url><loc>https://alpha.com/a1</loc><lastmod>2024-06-01</lastmod></url>
</urlset>`

	engine, processed, enricher := newTestEngine(t, transport)
	require.NoError(t, processed.Put(ctx, "alpha-processed", []sitemap.Entry{
		entryAt("https://alpha.com/a1", "2024-01-03"),
	}))

	entries, err := engine.EnsureUpToDate(ctx, "https://alpha.com/sitemap.xml")
	require.NoError(t, err)
	require.Len(t, entries, 1, "republished URL must not duplicate")
	assert.Equal(t, 0, enricher.batchCount(), "republished URL must not re-enrich")
}

func TestRebuildIgnoresHighWaterMark(t *testing.T) {
	ctx := context.Background()
	transport := newFakeTransport()
	transport.responses["https://alpha.com/sitemap.xml"] = `<urlset>
  <url><loc>https://alpha.com/old</loc><lastmod>2023-01-01</lastmod></url>
</urlset>`

	engine, processed, _ := newTestEngine(t, transport)
	require.NoError(t, processed.Put(ctx, "alpha-processed", []sitemap.Entry{
		entryAt("https://alpha.com/recent", "2024-06-01"),
	}))

	// Incremental path skips the backlog entry entirely
	entries, err := engine.EnsureUpToDate(ctx, "https://alpha.com/sitemap.xml")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// Full rebuild picks it up and forces a fresh origin fetch
	entries, err = engine.Rebuild(ctx, "https://alpha.com/sitemap.xml")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "https://alpha.com/recent", entries[0].URL)
	assert.Equal(t, "https://alpha.com/old", entries[1].URL)
	assert.Equal(t, 2, transport.callCount("https://alpha.com/sitemap.xml"))
}

func TestEnsureAllIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	transport := newFakeTransport()
	transport.responses["https://alpha.com/sitemap.xml"] = alphaSitemap
	transport.errs["https://beta.com/sitemap.xml"] = fmt.Errorf("origin down")

	engine, _, _ := newTestEngine(t, transport)

	results := engine.EnsureAll(ctx, []string{
		"https://alpha.com/sitemap.xml",
		"https://beta.com/sitemap.xml",
	})

	require.Len(t, results, 2, "every requested source gets a result entry")
	assert.Len(t, results["https://alpha.com/sitemap.xml"], 3)
	assert.Empty(t, results["https://beta.com/sitemap.xml"], "failed source contributes nothing, not an error")
}

func TestEnsureAllBatchesCoverAllSources(t *testing.T) {
	ctx := context.Background()
	transport := newFakeTransport()

	var urls []string
	for _, host := range []string{"one.org", "two.org", "three.org", "four.org", "five.org"} {
		u := "https://" + host + "/sitemap.xml"
		transport.responses[u] = fmt.Sprintf(`<urlset>
  <url><loc>https://%s/p1</loc><lastmod>2024-01-01</lastmod></url>
</urlset>`, host)
		urls = append(urls, u)
	}

	engine, _, _ := newTestEngine(t, transport)
	engine.SetBatching(2, time.Millisecond)

	results := engine.EnsureAll(ctx, urls)

	require.Len(t, results, 5)
	for _, u := range urls {
		assert.Len(t, results[u], 1, u)
	}
}
