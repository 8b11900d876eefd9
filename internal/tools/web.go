package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/kestrelcode/tinyagent/internal/registry"
	"github.com/kestrelcode/tinyagent/internal/store"
)

type webFetchArgs struct {
	URL      string `json:"url"`
	MaxChars int    `json:"max_chars,omitempty"`
}

// NewWebFetchTool builds web_fetch: fetches a URL and returns cleaned text
// content, cached by URL.
func NewWebFetchTool(cache *store.Cache) registry.Tool {
	client := &http.Client{Timeout: 15 * time.Second}

	return registry.Tool{
		Name:        "web_fetch",
		Description: "Fetch a URL and return its content as cleaned text (HTML tags, scripts, and styles stripped). Results are cached.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"url":       {"type": "string", "description": "The URL to fetch."},
				"max_chars": {"type": "integer", "description": "Maximum characters to return. Default: 10000"}
			},
			"required": ["url"]
		}`),
		Execute: func(ctx context.Context, raw json.RawMessage) (registry.Result, error) {
			var args webFetchArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return registry.Result{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
			}
			if args.URL == "" {
				return registry.Result{Error: "url is required"}, nil
			}
			if args.MaxChars <= 0 {
				args.MaxChars = 10000
			}

			if cached, ok := cache.GetFetch(args.URL); ok {
				return registry.Result{Success: true, Output: truncateRunes(cached, args.MaxChars)}, nil
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, args.URL, nil)
			if err != nil {
				return registry.Result{Error: fmt.Sprintf("bad URL: %v", err)}, nil
			}
			req.Header.Set("User-Agent", "tinyagent/1.0")
			req.Header.Set("Accept", "text/html, text/plain;q=0.9, */*;q=0.5")

			resp, err := client.Do(req)
			if err != nil {
				return registry.Result{Error: fmt.Sprintf("fetch failed: %v", err)}, nil
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 400 {
				return registry.Result{Error: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status)}, nil
			}

			body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if err != nil {
				return registry.Result{Error: fmt.Sprintf("read failed: %v", err)}, nil
			}

			var text string
			if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
				text = extractText(body)
			} else {
				text = string(body)
			}

			cache.SetFetch(args.URL, text)
			return registry.Result{Success: true, Output: truncateRunes(text, args.MaxChars)}, nil
		},
	}
}

// extractText parses HTML and returns visible text content, stripping
// script, style, and noscript elements.
func extractText(data []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(data))
	var b strings.Builder
	skip := 0

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			return collapseWhitespace(b.String())
		}
		tn, _ := tokenizer.TagName()
		tag := string(tn)

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			if isSkipTag(tag) {
				skip++
			}
			if isBlockElement(tag) && b.Len() > 0 {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			if isSkipTag(tag) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}

func isSkipTag(tag string) bool {
	return tag == "script" || tag == "style" || tag == "noscript"
}

func isBlockElement(tag string) bool {
	switch tag {
	case "p", "div", "br", "h1", "h2", "h3", "h4", "h5", "h6",
		"li", "tr", "td", "th", "blockquote", "pre", "hr",
		"header", "footer", "section", "article", "nav", "main":
		return true
	}
	return false
}

func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blanks := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			blanks++
			if blanks <= 1 {
				out = append(out, "")
			}
			continue
		}
		blanks = 0
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func truncateRunes(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars]) + "\n\n[Truncated]"
}
