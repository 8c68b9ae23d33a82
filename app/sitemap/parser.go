package sitemap

import (
	"bytes"
	"encoding/xml"
	"log/slog"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
	stripPolicy  *bluemonday.Policy
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
		stripPolicy:  bluemonday.StrictPolicy(),
	}
}

// urlset mirrors the sitemap protocol's root element. Only loc and lastmod
// are read; changefreq and priority carry no information for ordering.
type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []urlsetItem `xml:"url"`
}

type urlsetItem struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// Run parses a sitemap or RSS/Atom document into a normalized entry list.
// Unrecognized or malformed documents yield an empty list, never an error:
// a broken source must not take down an aggregation run.
func (p *Parser) Run(data []byte) []Entry {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	switch {
	case bytes.Contains(trimmed, []byte("<urlset")):
		return p.parseURLSet(trimmed)
	case bytes.Contains(trimmed, []byte("<sitemapindex")):
		// Index documents point at further sitemaps instead of content.
		slog.Debug("Sitemap index document, no entries to extract")
		return nil
	default:
		return p.parseFeed(trimmed)
	}
}

func (p *Parser) parseURLSet(data []byte) []Entry {
	var set urlset
	if err := xml.Unmarshal(data, &set); err != nil {
		slog.Warn("Failed to parse sitemap document", "error", err)
		return nil
	}

	entries := make([]Entry, 0, len(set.URLs))
	for _, u := range set.URLs {
		loc := strings.TrimSpace(u.Loc)
		if loc == "" {
			continue
		}
		entries = append(entries, Entry{
			URL:     loc,
			LastMod: p.parseTime(u.LastMod),
		})
	}

	return entries
}

func (p *Parser) parseFeed(data []byte) []Entry {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		slog.Warn("Failed to parse feed document", "error", err)
		return nil
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" && len(item.Links) > 0 {
			link = strings.TrimSpace(item.Links[0])
		}
		if link == "" {
			continue
		}

		entry := Entry{
			URL: link,
			Meta: Meta{
				Title:       strings.TrimSpace(item.Title),
				Description: p.stripMarkup(item.Description),
			},
		}

		switch {
		case item.UpdatedParsed != nil:
			entry.LastMod = item.UpdatedParsed.UTC()
		case item.PublishedParsed != nil:
			entry.LastMod = item.PublishedParsed.UTC()
		default:
			entry.LastMod = time.Now().UTC()
		}

		if item.Image != nil {
			entry.Meta.Image = item.Image.URL
		}

		entries = append(entries, entry)
	}

	return entries
}

// parseTime normalizes a lastmod value to UTC. Sitemaps in the wild carry
// anything from bare dates to RFC 3339 with offsets; dateparse covers the
// spread. Missing or unreadable values default to the current time.
func (p *Parser) parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Now().UTC()
	}

	t, err := dateparse.ParseAny(value)
	if err != nil {
		slog.Debug("Unparseable lastmod value", "value", value, "error", err)
		return time.Now().UTC()
	}

	return t.UTC()
}

func (p *Parser) stripMarkup(s string) string {
	return strings.TrimSpace(p.stripPolicy.Sanitize(s))
}
