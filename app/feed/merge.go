package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/letterhive/letterfeed/app/sitemap"
)

const (
	// Sources updated together are processed this many at a time, with a
	// pause between batches, so a large bookmark set cannot hammer the
	// metadata API and every origin at once.
	DefaultSourceBatchSize  = 3
	DefaultSourceBatchDelay = 500 * time.Millisecond
)

// Engine keeps each source's processed store up to date. It owns all writes
// to the processed store; everything else reads through it.
type Engine struct {
	raw        *RawSource
	parser     *sitemap.Parser
	enricher   MetadataEnricher
	processed  *ProcessedStore
	recorder   SourceRecorder
	batchSize  int
	batchDelay time.Duration
}

func NewEngine(raw *RawSource, parser *sitemap.Parser, enricher MetadataEnricher,
	processed *ProcessedStore, recorder SourceRecorder) *Engine {
	return &Engine{
		raw:        raw,
		parser:     parser,
		enricher:   enricher,
		processed:  processed,
		recorder:   recorder,
		batchSize:  DefaultSourceBatchSize,
		batchDelay: DefaultSourceBatchDelay,
	}
}

func (e *Engine) SetBatching(size int, delay time.Duration) {
	if size > 0 {
		e.batchSize = size
	}
	if delay >= 0 {
		e.batchDelay = delay
	}
}

// EnsureUpToDate brings one source's processed store current and returns the
// full processed list. Work is bounded to entries newer than the high-water
// mark; re-running against an unchanged document is a no-op. A failed raw
// fetch degrades to the last known snapshot with the error logged, so a dead
// origin never empties a feed.
func (e *Engine) EnsureUpToDate(ctx context.Context, sourceURL string) ([]sitemap.Entry, error) {
	keys := sitemap.ResolveKeys(sourceURL)

	existing, found, err := e.processed.Get(ctx, keys.Processed)
	if err != nil {
		return nil, err
	}

	if e.recorder != nil {
		if err := e.recorder.Register(ctx, sourceURL); err != nil {
			slog.Warn("Failed to register source", "source", keys.ID, "error", err)
		}
	}

	raw, err := e.raw.Get(ctx, sourceURL)
	if err != nil {
		slog.Warn("Raw fetch failed, serving last known entries", "source", keys.ID, "error", err)
		return existing, nil
	}

	parsed := e.parser.Run(raw)
	fresh := e.selectNew(parsed, existing, keys.ID)

	if len(fresh) == 0 {
		if !found {
			// Pin an empty snapshot so later runs compare against a
			// defined high-water mark instead of re-detecting first-run.
			if err := e.processed.Put(ctx, keys.Processed, []sitemap.Entry{}); err != nil {
				return nil, err
			}
			return []sitemap.Entry{}, nil
		}
		return existing, nil
	}

	e.applyMetadata(ctx, fresh)

	merged, err := e.processed.MergeNew(ctx, keys.Processed, fresh)
	if err != nil {
		return nil, err
	}

	slog.Info("Source updated", "source", keys.ID, "new", len(fresh), "total", len(merged))
	return merged, nil
}

// selectNew filters parsed entries to those past the high-water mark, then
// drops any whose URL is already processed. The second filter is defensive:
// clock skew or republished timestamps can push an old entry past the mark.
func (e *Engine) selectNew(parsed, existing []sitemap.Entry, sourceKey string) []sitemap.Entry {
	highWater := highWaterMark(existing)

	seen := make(map[string]struct{}, len(existing))
	for _, entry := range existing {
		seen[entry.URL] = struct{}{}
	}

	var fresh []sitemap.Entry
	for _, entry := range parsed {
		if !entry.LastMod.After(highWater) {
			continue
		}
		if _, dup := seen[entry.URL]; dup {
			continue
		}
		seen[entry.URL] = struct{}{}
		entry.SourceKey = sourceKey
		fresh = append(fresh, entry)
	}
	return fresh
}

// applyMetadata enriches entries that came out of parsing without display
// metadata (sitemap-style entries; feed-style ones already carry it).
func (e *Engine) applyMetadata(ctx context.Context, entries []sitemap.Entry) {
	var missing []string
	for _, entry := range entries {
		if entry.Meta.Title == "" && entry.Meta.Description == "" {
			missing = append(missing, entry.URL)
		}
	}
	if len(missing) == 0 {
		return
	}

	metas := e.enricher.EnrichBatch(ctx, missing)
	for i := range entries {
		if meta, ok := metas[entries[i].URL]; ok {
			entries[i].Meta = meta
		}
	}
}

// EnsureAll updates many sources, batched with a throttle delay. Every
// requested source gets a result entry; a source that fails outright
// contributes nil and a log line, never an aggregate failure.
func (e *Engine) EnsureAll(ctx context.Context, sourceURLs []string) map[string][]sitemap.Entry {
	results := make(map[string][]sitemap.Entry, len(sourceURLs))
	var mu sync.Mutex

	for start := 0; start < len(sourceURLs); start += e.batchSize {
		end := min(start+e.batchSize, len(sourceURLs))

		var group errgroup.Group
		for _, sourceURL := range sourceURLs[start:end] {
			group.Go(func() error {
				entries, err := e.EnsureUpToDate(ctx, sourceURL)
				if err != nil {
					slog.Warn("Source update failed", "source", sourceURL, "error", err)
				}
				mu.Lock()
				results[sourceURL] = entries
				mu.Unlock()
				return nil
			})
		}
		_ = group.Wait()

		if end < len(sourceURLs) && e.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(e.batchDelay):
			}
		}
	}

	return results
}

// Rebuild processes an entire source from scratch: fresh fetch regardless of
// the raw TTL, no high-water cutoff, enrichment for every unprocessed URL.
// Backs the long-running catch-up job; callers are expected to hold the
// per-source refresh lock.
func (e *Engine) Rebuild(ctx context.Context, sourceURL string) ([]sitemap.Entry, error) {
	keys := sitemap.ResolveKeys(sourceURL)

	raw, err := e.raw.Fetch(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	existing, found, err := e.processed.Get(ctx, keys.Processed)
	if err != nil {
		return nil, err
	}

	parsed := e.parser.Run(raw)

	seen := make(map[string]struct{}, len(existing))
	for _, entry := range existing {
		seen[entry.URL] = struct{}{}
	}

	var fresh []sitemap.Entry
	for _, entry := range parsed {
		if _, dup := seen[entry.URL]; dup {
			continue
		}
		seen[entry.URL] = struct{}{}
		entry.SourceKey = keys.ID
		fresh = append(fresh, entry)
	}

	if len(fresh) == 0 {
		if !found {
			if err := e.processed.Put(ctx, keys.Processed, []sitemap.Entry{}); err != nil {
				return nil, err
			}
			return []sitemap.Entry{}, nil
		}
		return existing, nil
	}

	e.applyMetadata(ctx, fresh)

	merged, err := e.processed.MergeNew(ctx, keys.Processed, fresh)
	if err != nil {
		return nil, err
	}

	slog.Info("Source rebuilt", "source", keys.ID, "new", len(fresh), "total", len(merged))
	return merged, nil
}

func highWaterMark(entries []sitemap.Entry) time.Time {
	var mark time.Time
	for _, entry := range entries {
		if entry.LastMod.After(mark) {
			mark = entry.LastMod
		}
	}
	return mark
}
