package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kestrelcode/tinyagent/internal/conversation"
	"github.com/kestrelcode/tinyagent/internal/provider"
	"github.com/kestrelcode/tinyagent/internal/registry"
)

// scriptedProvider replays one ChatResponse per call to ChatStream, in
// order, as a single-shot stream of events — enough to drive the Agent
// Loop's iteration logic without a real backend.
type scriptedProvider struct {
	responses []provider.ChatResponse
	errs      []error
	calls     int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) ChatStream(ctx context.Context, messages []provider.Message, tools []provider.Tool) (<-chan provider.StreamEvent, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i >= len(p.responses) {
		return nil, errors.New("scriptedProvider: no more responses scripted")
	}
	resp := p.responses[i]

	ch := make(chan provider.StreamEvent, 8)
	go func() {
		defer close(ch)
		if resp.Content != "" {
			ch <- provider.StreamEvent{Type: provider.EventContentDelta, Content: resp.Content}
		}
		for idx, tc := range resp.ToolCalls {
			ch <- provider.StreamEvent{Type: provider.EventToolCallBegin, ToolCallIndex: idx, ToolCallID: tc.ID, ToolCallName: tc.Name}
			ch <- provider.StreamEvent{Type: provider.EventToolCallDelta, ToolCallIndex: idx, ToolCallArgs: string(tc.Arguments)}
		}
		ch <- provider.StreamEvent{Type: provider.EventDone}
	}()
	return ch, nil
}

func (p *scriptedProvider) ListModels(ctx context.Context) ([]provider.Model, error) { return nil, nil }

func (p *scriptedProvider) Capabilities(model string) provider.Capabilities {
	return provider.Capabilities{SupportsTools: true, SupportsStreaming: true}
}

func (p *scriptedProvider) Close() error { return nil }

func drain(ch <-chan Chunk) []Chunk {
	var out []Chunk
	for c := range ch {
		out = append(out, c)
	}
	return out
}

func newTestAgent(t *testing.T, prov *scriptedProvider, reg *registry.Registry) *Agent {
	t.Helper()
	if reg == nil {
		reg = registry.New(registry.NewBroker())
	}
	return New(Options{
		Provider:         prov,
		Model:            "claude-test",
		Registry:         reg,
		Conversation:     conversation.New(""),
		SystemPrompt:     "you are a test agent",
		MaxContextTokens: 8000,
	})
}

// TestRunStopsOnNoToolCalls covers invariant I1: a turn with no tool calls
// in the model's response ends the loop after exactly one iteration.
func TestRunStopsOnNoToolCalls(t *testing.T) {
	prov := &scriptedProvider{responses: []provider.ChatResponse{
		{Content: "hello there"},
	}}
	a := newTestAgent(t, prov, nil)

	chunks := drain(a.Run(context.Background(), "hi"))
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	last := chunks[len(chunks)-1]
	if !last.Done {
		t.Fatal("expected final chunk to be Done")
	}
	if last.Iterations != 1 {
		t.Fatalf("expected 1 iteration, got %d", last.Iterations)
	}
	if last.MaxIterationsReached {
		t.Fatal("did not expect MaxIterationsReached")
	}
}

// TestRunExecutesToolCallAndLoopsAgain covers the reason-then-act cycle: a
// tool call is executed and its result is fed back for a second round.
func TestRunExecutesToolCallAndLoopsAgain(t *testing.T) {
	prov := &scriptedProvider{responses: []provider.ChatResponse{
		{ToolCalls: []provider.ToolCall{{ID: "call1", Name: "echo", Arguments: json.RawMessage(`{"msg":"hi"}`)}}},
		{Content: "done"},
	}}
	reg := registry.New(registry.NewBroker())
	executed := false
	if err := reg.Register(registry.Tool{
		Name: "echo",
		Execute: func(ctx context.Context, args json.RawMessage) (registry.Result, error) {
			executed = true
			return registry.Result{Success: true, Output: "ok"}, nil
		},
	}); err != nil {
		t.Fatal(err)
	}

	a := newTestAgent(t, prov, reg)
	chunks := drain(a.Run(context.Background(), "please echo"))

	if !executed {
		t.Fatal("expected the echo tool to run")
	}
	last := chunks[len(chunks)-1]
	if !last.Done || last.Iterations != 2 {
		t.Fatalf("expected Done after 2 iterations, got Done=%v Iterations=%d", last.Done, last.Iterations)
	}
}

// TestRunStopsOnUnknownTool covers the unknown-tool-name short circuit: the
// model asks for a tool that was never registered, and the loop ends
// instead of looping forever on the same mistake.
func TestRunStopsOnUnknownTool(t *testing.T) {
	prov := &scriptedProvider{responses: []provider.ChatResponse{
		{ToolCalls: []provider.ToolCall{{ID: "call1", Name: "does_not_exist", Arguments: json.RawMessage(`{}`)}}},
	}}
	a := newTestAgent(t, prov, nil)

	chunks := drain(a.Run(context.Background(), "hi"))
	last := chunks[len(chunks)-1]
	if !last.Done || last.Iterations != 1 {
		t.Fatalf("expected the loop to stop at iteration 1 on an unknown tool, got Iterations=%d", last.Iterations)
	}
}

// TestRunRespectsMaxIterations covers invariant I4: a model that keeps
// calling tools forever is cut off at MaxIterations, not left to run
// unbounded.
func TestRunRespectsMaxIterations(t *testing.T) {
	reg := registry.New(registry.NewBroker())
	if err := reg.Register(registry.Tool{
		Name: "loopy",
		Execute: func(ctx context.Context, args json.RawMessage) (registry.Result, error) {
			return registry.Result{Success: true, Output: "again"}, nil
		},
	}); err != nil {
		t.Fatal(err)
	}

	const maxIter = 3
	responses := make([]provider.ChatResponse, 0, maxIter)
	for i := 0; i < maxIter; i++ {
		responses = append(responses, provider.ChatResponse{
			ToolCalls: []provider.ToolCall{{ID: "c", Name: "loopy", Arguments: json.RawMessage(`{}`)}},
		})
	}
	prov := &scriptedProvider{responses: responses}

	a := New(Options{
		Provider:         prov,
		Model:            "claude-test",
		Registry:         reg,
		Conversation:     conversation.New(""),
		SystemPrompt:     "loop forever",
		MaxContextTokens: 8000,
		MaxIterations:    maxIter,
	})

	chunks := drain(a.Run(context.Background(), "go"))
	last := chunks[len(chunks)-1]
	if !last.MaxIterationsReached {
		t.Fatal("expected MaxIterationsReached")
	}
	if last.Iterations != maxIter {
		t.Fatalf("expected Iterations == %d, got %d", maxIter, last.Iterations)
	}
}

// TestRunAppendsSystemMessageOnProviderError checks that a classified
// provider failure is recorded in history instead of silently dropped, and
// the turn ends rather than retrying forever.
func TestRunAppendsSystemMessageOnProviderError(t *testing.T) {
	prov := &scriptedProvider{errs: []error{provider.ErrRateLimited}}
	convStore := conversation.New("")
	a := New(Options{
		Provider:         prov,
		Model:            "claude-test",
		Registry:         registry.New(registry.NewBroker()),
		Conversation:     convStore,
		SystemPrompt:     "x",
		MaxContextTokens: 8000,
	})

	chunks := drain(a.Run(context.Background(), "hi"))
	last := chunks[len(chunks)-1]
	if !last.Done {
		t.Fatal("expected Done after provider error")
	}

	history := convStore.History()
	found := false
	for _, m := range history {
		if m.Role == "system" && m.Content == "provider error: rate limited" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a system message recording the classified error, got %+v", history)
	}
}

// TestRunCancelledContextStopsCleanly covers cancellation: no partial
// assistant state should block the loop from returning promptly.
func TestRunCancelledContextStopsCleanly(t *testing.T) {
	prov := &scriptedProvider{responses: []provider.ChatResponse{{Content: "hi"}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := newTestAgent(t, prov, nil)

	select {
	case chunks, ok := <-a.Run(ctx, "hi"):
		if ok && !chunks.Done {
			t.Fatalf("expected a Done chunk on an already-cancelled context, got %+v", chunks)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return promptly on a cancelled context")
	}
}
