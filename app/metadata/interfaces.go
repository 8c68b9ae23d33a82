package metadata

import (
	"context"

	"github.com/letterhive/letterfeed/app/sitemap"
)

// Fetcher retrieves display metadata for a single page URL. Implemented by
// the external metadata API client and by the local og-tag extractor.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (sitemap.Meta, error)
}
