package metadata

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/letterhive/letterfeed/app/cache"
	"github.com/letterhive/letterfeed/app/sitemap"
)

const DefaultFetchTimeout = 10 * time.Second

// Enricher resolves display metadata for batches of URLs. Fetched metadata
// is treated as immutable and cached without expiry; the external service is
// never called twice for the same URL. Outbound calls share a rate limiter
// so a large batch cannot fan out unbounded.
type Enricher struct {
	fetcher     Fetcher
	store       cache.Store
	limiter     *rate.Limiter
	timeout     time.Duration
	concurrency int
}

func NewEnricher(fetcher Fetcher, store cache.Store, spacing time.Duration, timeout time.Duration) *Enricher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Enricher{
		fetcher:     fetcher,
		store:       store,
		limiter:     rate.NewLimiter(rate.Every(spacing), 1),
		timeout:     timeout,
		concurrency: 4,
	}
}

// EnrichBatch returns metadata for every input URL. The result key set
// always equals the input set: a URL whose fetch fails or times out maps to
// an empty Meta rather than being dropped, so callers never distinguish
// "missing" from "empty".
func (e *Enricher) EnrichBatch(ctx context.Context, urls []string) map[string]sitemap.Meta {
	results := make(map[string]sitemap.Meta, len(urls))
	var pending []string

	for _, pageURL := range urls {
		if _, seen := results[pageURL]; seen {
			continue
		}
		results[pageURL] = sitemap.Meta{}

		cached, ok, err := e.store.Get(ctx, metaKey(pageURL))
		if err != nil {
			slog.Warn("Metadata cache read failed", "url", pageURL, "error", err)
		}
		if ok {
			var meta sitemap.Meta
			if err := json.Unmarshal([]byte(cached), &meta); err == nil {
				results[pageURL] = meta
				continue
			}
			slog.Warn("Discarding unreadable cached metadata", "url", pageURL)
		}
		pending = append(pending, pageURL)
	}

	if len(pending) == 0 {
		return results
	}

	var mu sync.Mutex
	var group errgroup.Group
	group.SetLimit(e.concurrency)

	for _, pageURL := range pending {
		group.Go(func() error {
			if err := e.limiter.Wait(ctx); err != nil {
				slog.Warn("Metadata enrichment interrupted", "url", pageURL, "error", err)
				return nil
			}

			fetchCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()

			meta, err := e.fetcher.Fetch(fetchCtx, pageURL)
			if err != nil {
				// Leaves the empty-but-present placeholder in the result
				slog.Warn("Metadata fetch failed", "url", pageURL, "error", err)
				return nil
			}

			mu.Lock()
			results[pageURL] = meta
			mu.Unlock()

			data, err := json.Marshal(meta)
			if err == nil {
				if err := e.store.Set(ctx, metaKey(pageURL), string(data), 0); err != nil {
					slog.Warn("Failed to cache metadata", "url", pageURL, "error", err)
				}
			}
			return nil
		})
	}

	_ = group.Wait()

	return results
}

func metaKey(pageURL string) string {
	hash := sha256.Sum256([]byte(pageURL))
	return fmt.Sprintf("meta:%x", hash[:8])
}
