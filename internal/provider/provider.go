// Package provider defines the LLM provider interface and implementations.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrProviderNotFound is returned when a requested provider doesn't exist.
var ErrProviderNotFound = errors.New("provider not found")

// Error kinds a provider call can fail with. The Agent Loop uses these to
// decide retry policy; they carry no provider-specific detail beyond what
// triggered the classification.
var (
	ErrContextLength = errors.New("prompt too long for model context window")
	ErrRateLimited   = errors.New("rate limited by provider")
	ErrUnavailable   = errors.New("provider unavailable")
)

// ProviderError wraps an opaque provider failure that doesn't match one of
// the recognized kinds above.
type ProviderError struct {
	Code int
	Body string
}

func (e *ProviderError) Error() string {
	return "provider error (" + itoa(e.Code) + "): " + e.Body
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// ClassifyHTTPError maps an HTTP status code and response body to one of the
// recognized error kinds, per the provider-mapping rules: 4xx mentioning
// "prompt too long" is ErrContextLength, 429 is ErrRateLimited, anything else
// is wrapped as a ProviderError.
func ClassifyHTTPError(statusCode int, body string) error {
	lower := strings.ToLower(body)
	if statusCode >= 400 && statusCode < 500 && strings.Contains(lower, "prompt too long") {
		return ErrContextLength
	}
	if statusCode == 429 {
		return ErrRateLimited
	}
	return &ProviderError{Code: statusCode, Body: body}
}

// Message represents a chat message.
type Message struct {
	Role         string
	Content      string
	Reasoning    string     // Model reasoning/thinking content (optional)
	ToolCalls    []ToolCall // For assistant messages with tool calls
	ToolCallID   string     // For tool result messages
	FunctionName string     // For tool result messages: name of the called function (required by Gemini)
	CreatedAt    time.Time  // Message timestamp
	InputTokens  int        // Token usage for this LLM call (assistant messages only)
	OutputTokens int        // Token usage for this LLM call (assistant messages only)
}

// Tool represents a tool/function definition for the LLM.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// ToolCall represents a tool call made by the LLM.
type ToolCall struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Arguments        json.RawMessage `json:"arguments"`
	ThoughtSignature string          `json:"thought_signature,omitempty"`
}

// ChatResponse represents the response from a chat completion.
type ChatResponse struct {
	Content      string     // Text content (may be empty if tool calls)
	ToolCalls    []ToolCall // Tool calls (may be empty if text response)
	Reasoning    string     // Model reasoning content (optional)
	InputTokens  int        // Input/prompt token count (0 if unavailable)
	OutputTokens int        // Output/completion token count (0 if unavailable)
}

// StreamEventType identifies the kind of streaming event.
type StreamEventType int

const (
	// EventContentDelta carries a chunk of text content.
	EventContentDelta StreamEventType = iota
	// EventReasoningDelta carries a chunk of reasoning/thinking content.
	EventReasoningDelta
	// EventToolCallBegin signals the start of a new tool call with ID and name.
	EventToolCallBegin
	// EventToolCallDelta carries a chunk of tool call arguments.
	EventToolCallDelta
	// EventUsage carries token usage statistics.
	EventUsage
	// EventDone signals the stream is complete.
	EventDone
	// EventError signals a stream error.
	EventError
)

// StreamEvent represents a single event in a streamed LLM response.
type StreamEvent struct {
	Type StreamEventType

	// Content or reasoning text delta (for EventContentDelta, EventReasoningDelta).
	Content string

	// Tool call fields (for EventToolCallBegin, EventToolCallDelta).
	ToolCallIndex     int    // Index of the tool call in the response (from OpenAI spec)
	ToolCallID        string // Set on EventToolCallBegin
	ToolCallName      string // Set on EventToolCallBegin
	ToolCallSignature string // Optional thought signature for Gemini tool calls
	ToolCallArgs      string // Argument fragment on EventToolCallDelta

	// Token usage (for EventUsage).
	InputTokens  int
	OutputTokens int

	// Error (for EventError).
	Err error
}

// Capabilities reports what a given model supports so the Agent Loop and
// Context Composer can adapt (e.g. omitting tool schemas for a model that
// can't call tools).
type Capabilities struct {
	SupportsTools         bool
	SupportsStreaming     bool
	SupportsSystemPrompt  bool
	SupportsToolStreaming bool
	SupportsThinking      bool
	ContextWindow         int // 0 = unknown
	MaxOutputTokens       int // 0 = unknown
}

// DetectBackend maps a model string to a backend name using the first-match
// pattern table from the specification: claude* -> anthropic, gpt*/o1*/o3*
// (but not *-oss/*-v suffixed) -> openai, a known gateway prefix ->
// openrouter/opencode, everything else -> ollama.
func DetectBackend(model string) string {
	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "claude"):
		return "anthropic"
	case matchesOpenAIPattern(lower):
		return "openai"
	case strings.HasPrefix(lower, "openrouter/"),
		strings.HasPrefix(lower, "anthropic/"),
		strings.HasPrefix(lower, "google/"),
		strings.HasPrefix(lower, "meta/"),
		strings.HasPrefix(lower, "mistralai/"),
		strings.HasPrefix(lower, "deepseek/"):
		return "openrouter"
	case strings.HasPrefix(lower, "opencode/"):
		return "opencode"
	default:
		return "ollama"
	}
}

func matchesOpenAIPattern(lower string) bool {
	switch {
	case strings.HasPrefix(lower, "o1"), strings.HasPrefix(lower, "o3"):
		return true
	case strings.HasPrefix(lower, "gpt"):
		return !strings.Contains(lower, "-oss") && !strings.HasSuffix(lower, "-v")
	default:
		return false
	}
}

type Model struct {
	Name       string
	Size       int64
	Digest     string
	ModifiedAt time.Time
	Format     string
	Family     string
	ParamSize  string
	QuantLevel string
}

// Provider defines the interface for LLM providers.
type Provider interface {
	// Name returns the provider's identifier.
	Name() string

	// ChatStream sends messages with optional tools and returns a channel of streaming events.
	// The channel is closed after EventDone or EventError is sent.
	// Pass nil tools for simple chat without tool calling.
	ChatStream(ctx context.Context, messages []Message, tools []Tool) (<-chan StreamEvent, error)

	// ListModels returns available models from the provider.
	ListModels(ctx context.Context) ([]Model, error)

	// Capabilities reports what the given model supports.
	Capabilities(model string) Capabilities

	// Close closes idle HTTP connections and cleans up resources.
	Close() error
}

// Chat runs ChatStream to completion and aggregates the result into a single
// ChatResponse, for callers that don't need incremental delivery.
func Chat(ctx context.Context, p Provider, messages []Message, tools []Tool) (ChatResponse, error) {
	events, err := p.ChatStream(ctx, messages, tools)
	if err != nil {
		return ChatResponse{}, err
	}

	type pending struct {
		id, name string
		args     strings.Builder
	}
	order := []int{}
	calls := map[int]*pending{}

	var resp ChatResponse
	for ev := range events {
		switch ev.Type {
		case EventContentDelta:
			resp.Content += ev.Content
		case EventReasoningDelta:
			resp.Reasoning += ev.Content
		case EventToolCallBegin:
			if _, ok := calls[ev.ToolCallIndex]; !ok {
				order = append(order, ev.ToolCallIndex)
			}
			calls[ev.ToolCallIndex] = &pending{id: ev.ToolCallID, name: ev.ToolCallName}
		case EventToolCallDelta:
			if p, ok := calls[ev.ToolCallIndex]; ok {
				p.args.WriteString(ev.ToolCallArgs)
			}
		case EventUsage:
			if ev.InputTokens > 0 {
				resp.InputTokens = ev.InputTokens
			}
			if ev.OutputTokens > 0 {
				resp.OutputTokens = ev.OutputTokens
			}
		case EventError:
			return resp, ev.Err
		case EventDone:
		}
	}

	for _, idx := range order {
		p := calls[idx]
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        p.id,
			Name:      p.name,
			Arguments: json.RawMessage(p.args.String()),
		})
	}
	return resp, nil
}

type Factory interface {
	Name() string
	Create(model string, opts Options) Provider
}

// Registry holds available providers.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

func (r *Registry) RegisterFactory(name string, f Factory) {
	r.factories[name] = f
}

func (r *Registry) Create(name, model string, opts Options) (Provider, error) {
	f, ok := r.factories[name]
	if !ok {
		log.Error().Str("name", name).Str("model", model).Msg("Registry.Create: factory not found")
		return nil, ErrProviderNotFound
	}
	log.Info().Str("name", name).Str("model", model).Str("factory_type", "unknown").Msg("Registry.Create: calling factory")
	return f.Create(model, opts), nil
}

// Options holds provider generation settings.
type Options struct {
	Temperature float64
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// TaggedModel pairs a provider config name with a model.
type TaggedModel struct {
	ProviderName string
	Model        Model
}

// ListAllModels concurrently fetches models from every registered provider and
// returns the combined list. Errors from individual providers are logged and
// skipped so a single unavailable provider does not block the rest.
func (r *Registry) ListAllModels(ctx context.Context, opts Options) []TaggedModel {
	var (
		mu  sync.Mutex
		all []TaggedModel
	)
	g, gctx := errgroup.WithContext(ctx)
	for name := range r.factories {
		name := name
		g.Go(func() error {
			prov := r.factories[name].Create("", opts)
			defer prov.Close()
			models, err := prov.ListModels(gctx)
			if err != nil {
				log.Warn().Str("provider", name).Err(err).Msg("ListAllModels: provider error")
				return nil // a single unavailable provider does not block the rest
			}
			mu.Lock()
			for _, m := range models {
				all = append(all, TaggedModel{ProviderName: name, Model: m})
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return all
}
