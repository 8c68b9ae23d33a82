package feed

import (
	"context"

	"github.com/letterhive/letterfeed/app/sitemap"
)

// MetadataEnricher resolves display metadata for a batch of URLs. The
// returned map contains every input URL, failed lookups included.
type MetadataEnricher interface {
	EnrichBatch(ctx context.Context, urls []string) map[string]sitemap.Meta
}

// Counts is the engagement payload attached to feed entries. Never persisted
// by this pipeline; it is computed elsewhere and merged on at read time.
type Counts struct {
	CommentCount int
	LikeCount    int
	IsLiked      bool
}

// EngagementProvider supplies engagement counts for a set of page URLs,
// keyed by NormalizeURL output.
type EngagementProvider interface {
	Counts(ctx context.Context, urls []string) (map[string]Counts, error)
}

// BookmarkProvider supplies the source URLs a feed should aggregate when the
// caller names none.
type BookmarkProvider interface {
	Sources(ctx context.Context) ([]string, error)
}

// SourceRecorder is notified of every source the merge engine touches, so
// background refresh knows the full source population.
type SourceRecorder interface {
	Register(ctx context.Context, sourceURL string) error
}

// NoopEngagement satisfies EngagementProvider with empty counts for
// deployments without an engagement backend.
type NoopEngagement struct{}

var _ EngagementProvider = NoopEngagement{}

func (NoopEngagement) Counts(ctx context.Context, urls []string) (map[string]Counts, error) {
	return map[string]Counts{}, nil
}
