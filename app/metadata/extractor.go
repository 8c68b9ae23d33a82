package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/letterhive/letterfeed/app/sitemap"
)

var _ Fetcher = (*Extractor)(nil)

// Extractor reads title, description and og:image straight from the page
// head. Used when no metadata API key is configured, so a standalone run
// still produces enriched entries.
type Extractor struct {
	httpClient *http.Client
	userAgent  string
}

func NewExtractor(httpClient *http.Client, userAgent string) *Extractor {
	return &Extractor{
		httpClient: httpClient,
		userAgent:  userAgent,
	}
}

func (e *Extractor) Fetch(ctx context.Context, pageURL string) (sitemap.Meta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return sitemap.Meta{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return sitemap.Meta{}, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return sitemap.Meta{}, fmt.Errorf("page returned HTTP %d", resp.StatusCode)
	}

	// Head metadata sits well within the first megabyte
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return sitemap.Meta{}, fmt.Errorf("failed to parse page: %w", err)
	}

	return extractMeta(doc), nil
}

func extractMeta(doc *goquery.Document) sitemap.Meta {
	meta := sitemap.Meta{}

	if title, ok := metaContent(doc, `meta[property="og:title"]`); ok {
		meta.Title = title
	} else {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	if desc, ok := metaContent(doc, `meta[property="og:description"]`); ok {
		meta.Description = desc
	} else if desc, ok := metaContent(doc, `meta[name="description"]`); ok {
		meta.Description = desc
	}

	if image, ok := metaContent(doc, `meta[property="og:image"]`); ok {
		meta.Image = image
	}

	return meta
}

func metaContent(doc *goquery.Document, selector string) (string, bool) {
	content, exists := doc.Find(selector).First().Attr("content")
	content = strings.TrimSpace(content)
	return content, exists && content != ""
}
