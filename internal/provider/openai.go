package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// openAIBackend implements Provider against any backend that speaks the
// OpenAI Chat Completions wire format: OpenAI itself, Ollama's
// /v1/chat/completions surface, OpenRouter, and opencode-style gateways all
// share this shape, differing only in base URL and auth header.
type openAIBackend struct {
	name        string
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

// NewOpenAIBackend constructs a Provider for an OpenAI-compatible endpoint.
func NewOpenAIBackend(name, baseURL, apiKey, model string, opts Options) Provider {
	return &openAIBackend{
		name:        name,
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		temperature: opts.Temperature,
		client:      &http.Client{Timeout: 0},
	}
}

func (b *openAIBackend) Name() string { return b.name }

func (b *openAIBackend) Capabilities(model string) Capabilities {
	return Capabilities{
		SupportsTools:         true,
		SupportsStreaming:     true,
		SupportsSystemPrompt:  true,
		SupportsToolStreaming: true,
		SupportsThinking:      strings.Contains(strings.ToLower(model), "o1") || strings.Contains(strings.ToLower(model), "o3"),
	}
}

func (b *openAIBackend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

type chatCompletionRequest struct {
	Model       string                  `json:"model"`
	Messages    []chatCompletionMessage `json:"messages"`
	Tools       []chatCompletionTool    `json:"tools,omitempty"`
	Temperature float64                 `json:"temperature,omitempty"`
	Stream      bool                    `json:"stream"`
	StreamOpts  *chatStreamOptions      `json:"stream_options,omitempty"`
}

type chatStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatCompletionMessage struct {
	Role       string                    `json:"role"`
	Content    string                    `json:"content,omitempty"`
	ToolCallID string                    `json:"tool_call_id,omitempty"`
	ToolCalls  []chatCompletionToolCall2 `json:"tool_calls,omitempty"`
}

type chatCompletionToolCall2 struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	Function chatCompletionFunction `json:"function"`
}

type chatCompletionTool struct {
	Type     string                  `json:"type"`
	Function chatCompletionToolSpec2 `json:"function"`
}

type chatCompletionToolSpec2 struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type chatCompletionStreamResponse struct {
	Choices []chatCompletionStreamChoice `json:"choices"`
	Usage   *chatCompletionUsage         `json:"usage,omitempty"`
}

type chatCompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type chatCompletionStreamChoice struct {
	Delta chatCompletionStreamDelta `json:"delta"`
}

type chatCompletionStreamDelta struct {
	Content   string                   `json:"content,omitempty"`
	Reasoning string                   `json:"reasoning,omitempty"`
	ToolCalls []chatCompletionToolCall `json:"tool_calls,omitempty"`
}

type chatCompletionToolCall struct {
	Index    int                    `json:"index"`
	ID       string                 `json:"id"`
	Function chatCompletionFunction `json:"function"`
}

type chatCompletionFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func toChatMessages(messages []Message) []chatCompletionMessage {
	out := make([]chatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		cm := chatCompletionMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, chatCompletionToolCall2{
				ID:   tc.ID,
				Type: "function",
				Function: chatCompletionFunction{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		out = append(out, cm)
	}
	return out
}

func toChatTools(tools []Tool) []chatCompletionTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]chatCompletionTool, len(tools))
	for i, t := range tools {
		params := t.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		out[i] = chatCompletionTool{
			Type: "function",
			Function: chatCompletionToolSpec2{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		}
	}
	return out
}

func (b *openAIBackend) ChatStream(ctx context.Context, messages []Message, tools []Tool) (<-chan StreamEvent, error) {
	reqBody := chatCompletionRequest{
		Model:       b.model,
		Messages:    toChatMessages(messages),
		Tools:       toChatTools(tools),
		Temperature: b.temperature,
		Stream:      true,
		StreamOpts:  &chatStreamOptions{IncludeUsage: true},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if b.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

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
		parseOpenAISSEStream(ctx, resp.Body, ch)
	}()
	return ch, nil
}

func parseOpenAISSEStream(ctx context.Context, reader io.Reader, ch chan<- StreamEvent) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 512*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			trySend(ctx, ch, StreamEvent{Type: EventDone})
			return
		}

		var chunk chatCompletionStreamResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			log.Warn().Err(err).Str("data", data).Msg("openai: failed to parse SSE chunk")
			continue
		}
		if chunk.Usage != nil {
			trySend(ctx, ch, StreamEvent{
				Type:         EventUsage,
				InputTokens:  chunk.Usage.PromptTokens,
				OutputTokens: chunk.Usage.CompletionTokens,
			})
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if !emitOpenAIDelta(ctx, ch, chunk.Choices[0].Delta) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		trySend(ctx, ch, StreamEvent{Type: EventError, Err: err})
		return
	}
	trySend(ctx, ch, StreamEvent{Type: EventDone})
}

func emitOpenAIDelta(ctx context.Context, ch chan<- StreamEvent, delta chatCompletionStreamDelta) bool {
	if delta.Reasoning != "" {
		if !trySend(ctx, ch, StreamEvent{Type: EventReasoningDelta, Content: delta.Reasoning}) {
			return false
		}
	}
	if delta.Content != "" {
		if !trySend(ctx, ch, StreamEvent{Type: EventContentDelta, Content: delta.Content}) {
			return false
		}
	}
	for _, tc := range delta.ToolCalls {
		if tc.Function.Name != "" {
			if !trySend(ctx, ch, StreamEvent{
				Type: EventToolCallBegin, ToolCallIndex: tc.Index,
				ToolCallID: tc.ID, ToolCallName: tc.Function.Name,
			}) {
				return false
			}
		}
		if tc.Function.Arguments != "" {
			if !trySend(ctx, ch, StreamEvent{
				Type: EventToolCallDelta, ToolCallIndex: tc.Index,
				ToolCallArgs: tc.Function.Arguments,
			}) {
				return false
			}
		}
	}
	return true
}

func trySend(ctx context.Context, ch chan<- StreamEvent, evt StreamEvent) bool {
	select {
	case ch <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}

type listModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (b *openAIBackend) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, ClassifyHTTPError(resp.StatusCode, string(body))
	}
	var listed listModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		return nil, err
	}
	out := make([]Model, 0, len(listed.Data))
	for _, m := range listed.Data {
		out = append(out, Model{Name: m.ID, ModifiedAt: time.Now()})
	}
	return out, nil
}

// OpenAIFactory constructs openAIBackend providers bound to one gateway.
type OpenAIFactory struct {
	name    string
	baseURL string
	apiKey  string
}

// NewOpenAIFactory creates a factory for an OpenAI-compatible gateway
// (openai, ollama, openrouter, opencode all implement this factory shape,
// distinguished only by baseURL/apiKey).
func NewOpenAIFactory(name, baseURL, apiKey string) *OpenAIFactory {
	return &OpenAIFactory{name: name, baseURL: baseURL, apiKey: apiKey}
}

func (f *OpenAIFactory) Name() string { return f.name }

func (f *OpenAIFactory) Create(model string, opts Options) Provider {
	return NewOpenAIBackend(f.name, f.baseURL, f.apiKey, model, opts)
}
