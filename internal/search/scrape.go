package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// ScrapeProvider searches by scraping DuckDuckGo's no-JS HTML results page.
// It is the fallback backend when no Exa API key is configured — lower
// quality than Exa's, but needs no credentials.
type ScrapeProvider struct {
	endpoint string
	client   *http.Client
}

const scrapeDefaultEndpoint = "https://html.duckduckgo.com/html/"

// NewScrapeProvider builds an HTML-scrape Provider. endpoint may be "" to
// use the default.
func NewScrapeProvider(endpoint string) *ScrapeProvider {
	if endpoint == "" {
		endpoint = scrapeDefaultEndpoint
	}
	return &ScrapeProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *ScrapeProvider) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if opts.NumResults <= 0 {
		opts.NumResults = 5
	}

	reqURL := p.endpoint + "?" + url.Values{"q": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; tinyagent/1.0)")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("search backend returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	results := parseResultsPage(body)
	if len(opts.IncludeDomains) > 0 {
		results = filterByDomain(results, opts.IncludeDomains)
	}
	if len(results) > opts.NumResults {
		results = results[:opts.NumResults]
	}
	return results, nil
}

// parseResultsPage walks a DuckDuckGo HTML results page looking for anchors
// classed "result__a" (title + link) paired with the following
// "result__snippet" element's text.
func parseResultsPage(data []byte) []Result {
	tokenizer := html.NewTokenizer(strings.NewReader(string(data)))

	var results []Result
	var cur *Result
	inTitle, inSnippet := false, false

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			if cur != nil {
				results = append(results, *cur)
			}
			return results
		}

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := tokenizer.Token()
			class := attr(tok, "class")
			switch {
			case tok.Data == "a" && hasClass(class, "result__a"):
				if cur != nil {
					results = append(results, *cur)
				}
				cur = &Result{URL: attr(tok, "href")}
				inTitle = true
			case hasClass(class, "result__snippet"):
				inSnippet = true
			}
		case html.EndTagToken:
			tok := tokenizer.Token()
			if tok.Data == "a" {
				inTitle = false
			}
			if inSnippet && (tok.Data == "a" || tok.Data == "div" || tok.Data == "span") {
				inSnippet = false
			}
		case html.TextToken:
			text := strings.TrimSpace(string(tokenizer.Text()))
			if text == "" || cur == nil {
				continue
			}
			if inTitle {
				cur.Title += text
			} else if inSnippet {
				if cur.Snippet != "" {
					cur.Snippet += " "
				}
				cur.Snippet += text
			}
		}
	}
}

func attr(tok html.Token, name string) string {
	for _, a := range tok.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasClass(classAttr, want string) bool {
	for _, c := range strings.Fields(classAttr) {
		if c == want {
			return true
		}
	}
	return false
}

func filterByDomain(results []Result, domains []string) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		for _, d := range domains {
			if strings.Contains(r.URL, d) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
