package sitemap

import (
	"time"
)

// Meta is the display metadata attached to an entry. It stays empty until
// enrichment has run for the entry's URL.
type Meta struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
}

// Entry is one content item found in a source document.
type Entry struct {
	URL       string    `json:"url"`
	LastMod   time.Time `json:"lastmod"`
	Meta      Meta      `json:"meta"`
	SourceKey string    `json:"sourceKey"`
}

// Keys addresses the two cache namespaces derived from a source URL.
type Keys struct {
	ID        string
	Raw       string
	Processed string
}
