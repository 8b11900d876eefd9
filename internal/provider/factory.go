package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// anthropicBackend implements Provider against the Anthropic Messages API.
type anthropicBackend struct {
	name        string
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// NewAnthropicBackend constructs a Provider for the Anthropic Messages API.
func NewAnthropicBackend(name, baseURL, apiKey, model string, opts Options) Provider {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	return &anthropicBackend{
		name:        name,
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		temperature: opts.Temperature,
		maxTokens:   4096,
		client:      &http.Client{Timeout: 0},
	}
}

func (b *anthropicBackend) Name() string { return b.name }

func (b *anthropicBackend) Capabilities(model string) Capabilities {
	return Capabilities{
		SupportsTools:         true,
		SupportsStreaming:     true,
		SupportsSystemPrompt:  true,
		SupportsToolStreaming: true,
		SupportsThinking:      true,
		ContextWindow:         200000,
	}
}

func (b *anthropicBackend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

func (b *anthropicBackend) ChatStream(ctx context.Context, messages []Message, tools []Tool) (<-chan StreamEvent, error) {
	system, msgs := toAnthropicMessages(messages)
	reqBody := anthropicRequest{
		Model:       b.model,
		Messages:    msgs,
		System:      system,
		MaxTokens:   b.maxTokens,
		Temperature: b.temperature,
		Stream:      true,
		Tools:       toAnthropicTools(tools),
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("x-api-key", b.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, ClassifyHTTPError(resp.StatusCode, string(body))
	}

	ch := make(chan StreamEvent)
	go func() {
		defer resp.Body.Close()
		defer close(ch)
		parseAnthropicSSEStream(ctx, resp.Body, ch)
	}()
	return ch, nil
}

func (b *anthropicBackend) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", b.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, ClassifyHTTPError(resp.StatusCode, string(body))
	}
	var listed struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		return nil, err
	}
	out := make([]Model, 0, len(listed.Data))
	for _, m := range listed.Data {
		out = append(out, Model{Name: m.ID, ModifiedAt: time.Now()})
	}
	return out, nil
}

// AnthropicFactory constructs anthropicBackend providers.
type AnthropicFactory struct {
	name    string
	baseURL string
	apiKey  string
}

// NewAnthropicFactory creates a factory for the Anthropic backend.
func NewAnthropicFactory(name, baseURL, apiKey string) *AnthropicFactory {
	return &AnthropicFactory{name: name, baseURL: baseURL, apiKey: apiKey}
}

func (f *AnthropicFactory) Name() string { return f.name }

func (f *AnthropicFactory) Create(model string, opts Options) Provider {
	return NewAnthropicBackend(f.name, f.baseURL, f.apiKey, model, opts)
}
