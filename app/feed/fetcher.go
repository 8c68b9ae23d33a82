package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/letterhive/letterfeed/app/cache"
	"github.com/letterhive/letterfeed/app/sitemap"
)

const DefaultRawTTL = 24 * time.Hour

// RawSource serves the last-fetched document body per source, refetching
// lazily once the TTL has passed. Fetch failures propagate: re-invocation is
// cheap on this path and the merge engine decides how to degrade.
type RawSource struct {
	store     cache.Store
	client    *http.Client
	userAgent string
	ttl       time.Duration
}

func NewRawSource(store cache.Store, client *http.Client, userAgent string, ttl time.Duration) *RawSource {
	if ttl <= 0 {
		ttl = DefaultRawTTL
	}
	return &RawSource{
		store:     store,
		client:    client,
		userAgent: userAgent,
		ttl:       ttl,
	}
}

// Get returns the cached document for sourceURL, fetching and storing it on
// a miss.
func (r *RawSource) Get(ctx context.Context, sourceURL string) ([]byte, error) {
	keys := sitemap.ResolveKeys(sourceURL)

	cached, ok, err := r.store.Get(ctx, keys.Raw)
	if err != nil {
		slog.Warn("Raw cache read failed, fetching instead", "source", keys.ID, "error", err)
	} else if ok {
		return []byte(cached), nil
	}

	return r.Fetch(ctx, sourceURL)
}

// Fetch retrieves the document from the origin unconditionally and refreshes
// the cached copy. Used by Get on a miss and by full rebuilds that must not
// trust a stale cache.
func (r *RawSource) Fetch(ctx context.Context, sourceURL string) ([]byte, error) {
	keys := sitemap.ResolveKeys(sourceURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "application/xml, application/rss+xml, application/atom+xml, text/xml")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	if err := r.store.Set(ctx, keys.Raw, string(data), r.ttl); err != nil {
		slog.Warn("Failed to cache raw document", "source", keys.ID, "error", err)
	}

	return data, nil
}
