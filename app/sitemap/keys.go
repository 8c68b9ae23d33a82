package sitemap

import (
	"net/url"
	"strings"
)

// Newsletter platforms whose hostnames carry no identity beyond the
// subdomain. Checked before the generic .com strip so
// "example.substack.com" and "example.com" collapse to the same source.
var providerSuffixes = []string{
	".substack.com",
	".beehiiv.com",
	".ghost.io",
	".com",
}

// ResolveKeys maps a source URL to its stable cache-key namespace. Two URLs
// that normalize to the same identifier address the same raw and processed
// caches, which deliberately collapses near-duplicate URLs pointing at one
// origin (http vs https, with or without www, differing sitemap paths).
func ResolveKeys(sourceURL string) Keys {
	id := normalizeSource(sourceURL)
	return Keys{
		ID:        id,
		Raw:       id + "-raw",
		Processed: id + "-processed",
	}
}

func normalizeSource(sourceURL string) string {
	trimmed := strings.TrimSpace(sourceURL)
	fallback := strings.ToLower(trimmed)

	candidate := trimmed
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}

	parsed, err := url.Parse(candidate)
	if err != nil || parsed.Hostname() == "" {
		return fallback
	}

	host := strings.ToLower(parsed.Hostname())
	host = strings.TrimPrefix(host, "www.")

	for _, suffix := range providerSuffixes {
		if trimmedHost := strings.TrimSuffix(host, suffix); trimmedHost != host && trimmedHost != "" {
			host = trimmedHost
			break
		}
	}

	if host == "" {
		return fallback
	}

	return host
}
