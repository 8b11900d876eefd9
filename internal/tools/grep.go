package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kestrelcode/tinyagent/internal/filesearch"
	"github.com/kestrelcode/tinyagent/internal/registry"
)

type grepArgs struct {
	Pattern       string `json:"pattern"`
	MaxResults    int    `json:"max_results,omitempty"`
	CaseSensitive bool   `json:"case_sensitive,omitempty"`
}

// NewGrepTool builds grep: regex content search over the working directory,
// honoring .gitignore.
func NewGrepTool(root string) registry.Tool {
	return registry.Tool{
		Name:        "grep",
		Description: "Search file contents for a regex pattern. Respects .gitignore.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"pattern":        {"type": "string", "description": "Regex pattern to search for in file contents"},
				"max_results":    {"type": "integer", "description": "Maximum number of matches to return. Default: 100"},
				"case_sensitive": {"type": "boolean", "description": "Enable case-sensitive matching. Default: false"}
			},
			"required": ["pattern"]
		}`),
		Execute: func(ctx context.Context, raw json.RawMessage) (registry.Result, error) {
			var args grepArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return registry.Result{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
			}
			if args.Pattern == "" {
				return registry.Result{Error: "pattern cannot be empty"}, nil
			}
			if args.MaxResults <= 0 {
				args.MaxResults = 100
			}

			searcher, err := filesearch.NewSearcher(root)
			if err != nil {
				return registry.Result{Error: fmt.Sprintf("failed to initialize search: %v", err)}, nil
			}
			results, err := searcher.Search(ctx, filesearch.Options{
				Pattern:       args.Pattern,
				ContentSearch: true,
				MaxResults:    args.MaxResults,
				CaseSensitive: args.CaseSensitive,
				RootDir:       root,
			})
			if err != nil {
				return registry.Result{Error: fmt.Sprintf("search failed: %v", err)}, nil
			}
			if len(results) == 0 {
				return registry.Result{Success: true, Output: "No matches found"}, nil
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Found %d match(es):\n\n", len(results))
			for _, r := range results {
				fmt.Fprintf(&b, "%s:%d:%s\n", r.Path, r.Line, r.Content)
			}
			if len(results) >= args.MaxResults {
				fmt.Fprintf(&b, "\n(limited to %d results; raise max_results to see more)", args.MaxResults)
			}
			return registry.Result{Success: true, Output: b.String()}, nil
		},
	}
}

type globArgs struct {
	Pattern    string `json:"pattern"`
	MaxResults int    `json:"max_results,omitempty"`
}

// NewGlobTool builds glob: filename/path pattern search over the working
// directory, honoring .gitignore.
func NewGlobTool(root string) registry.Tool {
	return registry.Tool{
		Name:        "glob",
		Description: "Find files by name or path pattern (regex). Respects .gitignore.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"pattern":     {"type": "string", "description": "Regex pattern matched against file basename or relative path"},
				"max_results": {"type": "integer", "description": "Maximum number of files to return. Default: 100"}
			},
			"required": ["pattern"]
		}`),
		Execute: func(ctx context.Context, raw json.RawMessage) (registry.Result, error) {
			var args globArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return registry.Result{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
			}
			if args.Pattern == "" {
				return registry.Result{Error: "pattern cannot be empty"}, nil
			}
			if args.MaxResults <= 0 {
				args.MaxResults = 100
			}

			searcher, err := filesearch.NewSearcher(root)
			if err != nil {
				return registry.Result{Error: fmt.Sprintf("failed to initialize search: %v", err)}, nil
			}
			results, err := searcher.Search(ctx, filesearch.Options{
				Pattern:    args.Pattern,
				MaxResults: args.MaxResults,
				RootDir:    root,
			})
			if err != nil {
				return registry.Result{Error: fmt.Sprintf("search failed: %v", err)}, nil
			}
			if len(results) == 0 {
				return registry.Result{Success: true, Output: "No matches found"}, nil
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Found %d file(s):\n\n", len(results))
			for _, r := range results {
				b.WriteString(r.Path)
				b.WriteByte('\n')
			}
			if len(results) >= args.MaxResults {
				fmt.Fprintf(&b, "\n(limited to %d results; raise max_results to see more)", args.MaxResults)
			}
			return registry.Result{Success: true, Output: b.String()}, nil
		},
	}
}
