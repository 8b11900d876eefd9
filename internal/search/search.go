// Package search implements the web search backends (C11) used by the
// web_search built-in tool: an Exa AI API client when an API key is
// configured, and an HTML-scrape fallback otherwise.
package search

import (
	"context"
	"fmt"
	"strings"
)

// Result is one search hit, backend-agnostic.
type Result struct {
	Title         string
	URL           string
	Snippet       string
	PublishedDate string
}

// Options configures a single search call.
type Options struct {
	NumResults     int
	Type           string // "auto", "fast", "deep" — Exa-specific, ignored by scrape backend
	IncludeDomains []string
}

// Provider searches the web and returns ranked results.
type Provider interface {
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// FormatResults renders results as text for a tool call's Output field.
func FormatResults(results []Result) string {
	if len(results) == 0 {
		return "No results found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d result(s):\n", len(results))
	for i, r := range results {
		fmt.Fprintf(&b, "\n--- %d. %s ---\n", i+1, r.Title)
		fmt.Fprintf(&b, "URL: %s\n", r.URL)
		if r.PublishedDate != "" {
			fmt.Fprintf(&b, "Published: %s\n", r.PublishedDate)
		}
		if r.Snippet != "" {
			b.WriteString(r.Snippet)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// CacheKey builds the exact-match cache key for a query plus its
// parameters, so different num_results/type/domains don't collide.
func CacheKey(query string, opts Options) string {
	return fmt.Sprintf("%s|n=%d|t=%s|d=%s",
		query, opts.NumResults, opts.Type, strings.Join(opts.IncludeDomains, ","))
}
