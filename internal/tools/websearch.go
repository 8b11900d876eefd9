package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/kestrelcode/tinyagent/internal/registry"
	searchpkg "github.com/kestrelcode/tinyagent/internal/search"
	"github.com/kestrelcode/tinyagent/internal/store"
)

type webSearchArgs struct {
	Query          string   `json:"query"`
	NumResults     int      `json:"num_results,omitempty"`
	Type           string   `json:"type,omitempty"`
	IncludeDomains []string `json:"include_domains,omitempty"`
}

// NewWebSearchTool builds web_search. It prefers the Exa AI backend when an
// API key is configured, falling back to the HTML-scrape backend otherwise.
// Results are cached exactly, and also searched by keyword overlap against
// prior cached content before any network call.
func NewWebSearchTool(cache *store.Cache, exaAPIKey string) registry.Tool {
	var provider searchpkg.Provider
	if exaAPIKey != "" {
		provider = searchpkg.NewExaProvider(exaAPIKey, "")
	} else {
		provider = searchpkg.NewScrapeProvider("")
	}

	return registry.Tool{
		Name:        "web_search",
		Description: "Search the web. Use this to look up documentation, APIs, libraries, or current information. Results are cached.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query":           {"type": "string", "description": "Search query."},
				"num_results":     {"type": "integer", "description": "Number of results to return. Default: 5"},
				"type":            {"type": "string", "description": "Search type: \"auto\" (default), \"fast\", or \"deep\". Only honored by the Exa backend.", "enum": ["auto", "fast", "deep"]},
				"include_domains": {"type": "array", "items": {"type": "string"}, "description": "Only include results from these domains."}
			},
			"required": ["query"]
		}`),
		Execute: func(ctx context.Context, raw json.RawMessage) (registry.Result, error) {
			var args webSearchArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return registry.Result{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
			}
			if args.Query == "" {
				return registry.Result{Error: "query is required"}, nil
			}
			if args.NumResults <= 0 {
				args.NumResults = 5
			}
			if args.Type == "" {
				args.Type = "auto"
			}

			opts := searchpkg.Options{
				NumResults:     args.NumResults,
				Type:           args.Type,
				IncludeDomains: args.IncludeDomains,
			}
			exactKey := searchpkg.CacheKey(args.Query, opts)

			if cached, ok := cache.GetSearch(exactKey); ok {
				log.Debug().Str("query", args.Query).Msg("web_search exact cache hit")
				return registry.Result{Success: true, Output: cached}, nil
			}
			if cached, ok := cache.SearchCachedContent(args.Query); ok {
				log.Debug().Str("query", args.Query).Msg("web_search content cache hit")
				return registry.Result{Success: true, Output: cached}, nil
			}

			results, err := provider.Search(ctx, args.Query, opts)
			if err != nil {
				return registry.Result{Error: err.Error()}, nil
			}

			formatted := searchpkg.FormatResults(results)
			cache.SetSearch(exactKey, formatted)
			return registry.Result{Success: true, Output: formatted}, nil
		},
	}
}
