package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/letterhive/letterfeed/app/sitemap"
)

var _ Fetcher = (*Client)(nil)

// Client calls the external metadata API: GET <endpoint>?url=<encoded>,
// authenticated with an API key header. The response is validated against a
// narrow schema before any field is read.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	userAgent  string
}

// apiResponse is the accepted response shape: a page title plus tag-like
// key/value pairs lifted from the page head.
type apiResponse struct {
	Title string   `json:"title"`
	Tags  []apiTag `json:"tags"`
}

type apiTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func NewClient(httpClient *http.Client, endpoint, apiKey, userAgent string) *Client {
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		apiKey:     apiKey,
		userAgent:  userAgent,
	}
}

func (c *Client) Fetch(ctx context.Context, pageURL string) (sitemap.Meta, error) {
	reqURL := fmt.Sprintf("%s?url=%s", c.endpoint, url.QueryEscape(pageURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return sitemap.Meta{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return sitemap.Meta{}, fmt.Errorf("failed to fetch metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return sitemap.Meta{}, fmt.Errorf("metadata API returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return sitemap.Meta{}, fmt.Errorf("failed to read response body: %w", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return sitemap.Meta{}, fmt.Errorf("unexpected metadata response shape: %w", err)
	}

	return metaFromResponse(parsed), nil
}

func metaFromResponse(parsed apiResponse) sitemap.Meta {
	meta := sitemap.Meta{Title: strings.TrimSpace(parsed.Title)}

	for _, tag := range parsed.Tags {
		value := strings.TrimSpace(tag.Value)
		if value == "" {
			continue
		}
		switch strings.ToLower(tag.Name) {
		case "description":
			if meta.Description == "" {
				meta.Description = value
			}
		case "og:description":
			// og:description wins over the plain meta description
			meta.Description = value
		case "og:image":
			meta.Image = value
		}
	}

	return meta
}
