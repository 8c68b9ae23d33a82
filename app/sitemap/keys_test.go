package sitemap

import (
	"testing"
)

func TestResolveKeys(t *testing.T) {
	tests := []struct {
		name      string
		sourceURL string
		wantID    string
	}{
		{"plain com domain", "https://example.com/sitemap.xml", "example"},
		{"www stripped", "https://www.example.com/sitemap.xml", "example"},
		{"http scheme", "http://example.com/sitemap.xml", "example"},
		{"substack provider suffix", "https://example.substack.com/sitemap.xml", "example"},
		{"beehiiv provider suffix", "https://daily.beehiiv.com/sitemap.xml", "daily"},
		{"ghost provider suffix", "https://weekly.ghost.io/sitemap.xml", "weekly"},
		{"no scheme", "example.com/sitemap.xml", "example"},
		{"trailing path ignored", "https://example.com/feeds/sitemap-posts.xml", "example"},
		{"non-com tld kept", "https://example.org/sitemap.xml", "example.org"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := ResolveKeys(tt.sourceURL)
			if keys.ID != tt.wantID {
				t.Errorf("ResolveKeys(%q).ID = %q, want %q", tt.sourceURL, keys.ID, tt.wantID)
			}
			if keys.Raw != tt.wantID+"-raw" {
				t.Errorf("Expected raw key %q, got %q", tt.wantID+"-raw", keys.Raw)
			}
			if keys.Processed != tt.wantID+"-processed" {
				t.Errorf("Expected processed key %q, got %q", tt.wantID+"-processed", keys.Processed)
			}
		})
	}
}

func TestResolveKeysCollapsesVariants(t *testing.T) {
	a := ResolveKeys("https://www.example.com/sitemap.xml")
	b := ResolveKeys("http://example.substack.com/sitemap-2024.xml")

	if a.ID != b.ID {
		t.Errorf("Expected variant URLs to share a source key, got %q and %q", a.ID, b.ID)
	}
}

func TestResolveKeysMalformedInput(t *testing.T) {
	keys := ResolveKeys("  ::Not A URL::  ")

	if keys.ID == "" {
		t.Error("Expected a non-empty fallback identifier")
	}
	if keys.ID != "::not a url::" {
		t.Errorf("Expected lowercased trimmed fallback, got %q", keys.ID)
	}
}
