package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const exaDefaultEndpoint = "https://api.exa.ai/search"

// ExaProvider queries the Exa AI search API.
type ExaProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewExaProvider builds an Exa-backed Provider. endpoint may be "" to use
// the default.
func NewExaProvider(apiKey, endpoint string) *ExaProvider {
	if endpoint == "" {
		endpoint = exaDefaultEndpoint
	}
	return &ExaProvider{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type exaSearchRequest struct {
	Query          string            `json:"query"`
	Type           string            `json:"type"`
	NumResults     int               `json:"numResults"`
	Contents       exaSearchContents `json:"contents"`
	IncludeDomains []string          `json:"includeDomains,omitempty"`
}

type exaSearchContents struct {
	Text exaTextOptions `json:"text"`
}

type exaTextOptions struct {
	MaxCharacters int `json:"maxCharacters"`
}

type exaSearchResponse struct {
	Results []exaResult `json:"results"`
}

type exaResult struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Text          string `json:"text"`
	PublishedDate string `json:"publishedDate,omitempty"`
}

func (p *ExaProvider) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("exa AI API key not configured")
	}
	if opts.NumResults <= 0 {
		opts.NumResults = 5
	}
	if opts.Type == "" {
		opts.Type = "auto"
	}

	reqBody := exaSearchRequest{
		Query:          query,
		Type:           opts.Type,
		NumResults:     opts.NumResults,
		Contents:       exaSearchContents{Text: exaTextOptions{MaxCharacters: 2000}},
		IncludeDomains: opts.IncludeDomains,
	}
	bodyJSON, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(bodyJSON))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("exa API error %d: %s", resp.StatusCode, string(respBody))
	}

	var exaResp exaSearchResponse
	if err := json.Unmarshal(respBody, &exaResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	results := make([]Result, 0, len(exaResp.Results))
	for _, r := range exaResp.Results {
		results = append(results, Result{
			Title:         r.Title,
			URL:           r.URL,
			Snippet:       r.Text,
			PublishedDate: r.PublishedDate,
		})
	}
	return results, nil
}
