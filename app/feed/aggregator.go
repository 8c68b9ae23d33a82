package feed

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/letterhive/letterfeed/app/sitemap"
)

const DefaultPageSize = 10

// FeedEntry is a processed entry joined with engagement counts for display.
type FeedEntry struct {
	sitemap.Entry
	CommentCount int  `json:"commentCount"`
	LikeCount    int  `json:"likeCount"`
	IsLiked      bool `json:"isLiked"`
}

// FeedPage is one cursor-paginated window into the cross-source merge.
// Ephemeral; recomputed per request.
type FeedPage struct {
	Entries    []FeedEntry `json:"entries"`
	HasMore    bool        `json:"hasMore"`
	NextCursor *string     `json:"nextCursor"`
	Total      int         `json:"total"`
}

// SitemapPage is one offset-paginated window into a single source.
type SitemapPage struct {
	Entries     []sitemap.Entry `json:"entries"`
	HasMore     bool            `json:"hasMore"`
	Total       int             `json:"total"`
	CurrentPage int             `json:"currentPage"`
	PageSize    int             `json:"pageSize"`
}

// Aggregator combines processed entries across sources into ranked pages.
// It never computes engagement counts itself; they come from the injected
// provider and are merged on before returning.
type Aggregator struct {
	engine     *Engine
	engagement EngagementProvider
	pageSize   int
}

func NewAggregator(engine *Engine, engagement EngagementProvider, pageSize int) *Aggregator {
	if engagement == nil {
		engagement = NoopEngagement{}
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Aggregator{
		engine:     engine,
		engagement: engagement,
		pageSize:   pageSize,
	}
}

// FeedPage brings every source up to date, merges their entries newest
// first, and returns the page at the cursor. One unreachable source
// contributes its last-known entries; aggregation itself never fails, the
// worst case is an empty page.
func (a *Aggregator) FeedPage(ctx context.Context, sourceURLs []string, cursor string, pageSize int) FeedPage {
	if pageSize <= 0 {
		pageSize = a.pageSize
	}

	updated := a.engine.EnsureAll(ctx, sourceURLs)

	// Concatenate in caller order; the stable sort then breaks equal
	// timestamps by that order, keeping a given request deterministic.
	var combined []sitemap.Entry
	for _, sourceURL := range sourceURLs {
		combined = append(combined, updated[sourceURL]...)
	}
	sortEntries(combined)
	combined = dedupeByURL(combined)

	total := len(combined)
	offset := decodeCursor(cursor)
	if offset > total {
		offset = total
	}
	end := min(offset+pageSize, total)
	window := combined[offset:end]

	page := FeedPage{
		Entries: a.attachEngagement(ctx, window),
		HasMore: end < total,
		Total:   total,
	}
	if page.HasMore {
		next := encodeCursor(end)
		page.NextCursor = &next
	}
	return page
}

// SitemapPage serves one source's entries page by page, offset-based.
// Pages are 1-indexed; out-of-range pages return empty entry lists.
func (a *Aggregator) SitemapPage(ctx context.Context, sourceURL string, page int) SitemapPage {
	if page < 1 {
		page = 1
	}

	entries, err := a.engine.EnsureUpToDate(ctx, sourceURL)
	if err != nil {
		slog.Error("Sitemap page degraded to empty", "source", sourceURL, "error", err)
		entries = nil
	}

	total := len(entries)
	offset := (page - 1) * a.pageSize
	if offset > total {
		offset = total
	}
	end := min(offset+a.pageSize, total)

	return SitemapPage{
		Entries:     entries[offset:end],
		HasMore:     end < total,
		Total:       total,
		CurrentPage: page,
		PageSize:    a.pageSize,
	}
}

// dedupeByURL collapses cross-posted content appearing via two sources to
// its first (newest-ranked) occurrence. This is the single dedup point
// before entries become client-visible.
func dedupeByURL(entries []sitemap.Entry) []sitemap.Entry {
	seen := make(map[string]struct{}, len(entries))
	deduped := entries[:0]
	for _, entry := range entries {
		if _, dup := seen[entry.URL]; dup {
			continue
		}
		seen[entry.URL] = struct{}{}
		deduped = append(deduped, entry)
	}
	return deduped
}

func (a *Aggregator) attachEngagement(ctx context.Context, entries []sitemap.Entry) []FeedEntry {
	out := make([]FeedEntry, 0, len(entries))

	urls := make([]string, 0, len(entries))
	for _, entry := range entries {
		urls = append(urls, entry.URL)
	}

	counts, err := a.engagement.Counts(ctx, urls)
	if err != nil {
		slog.Warn("Engagement lookup failed, serving entries without counts", "error", err)
		counts = nil
	}

	for _, entry := range entries {
		fe := FeedEntry{Entry: entry}
		if c, ok := counts[NormalizeURL(entry.URL)]; ok {
			fe.CommentCount = c.CommentCount
			fe.LikeCount = c.LikeCount
			fe.IsLiked = c.IsLiked
		}
		out = append(out, fe)
	}
	return out
}

// NormalizeURL is the canonical key shape shared with the engagement
// provider: lowercased scheme and host, no trailing slash.
func NormalizeURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return strings.TrimRight(strings.TrimSpace(raw), "/")
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	return strings.TrimRight(parsed.String(), "/")
}
