// Package agent implements the Agent Loop (spec component C9): the
// iterative reason-then-act engine that drives one provider across
// streaming responses and tool-call rounds until it produces a turn with
// no further tool calls, or the iteration cap is reached.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kestrelcode/tinyagent/internal/composer"
	"github.com/kestrelcode/tinyagent/internal/conversation"
	"github.com/kestrelcode/tinyagent/internal/memory"
	"github.com/kestrelcode/tinyagent/internal/provider"
	"github.com/kestrelcode/tinyagent/internal/registry"
)

// MaxIterationsDefault bounds a single turn's reason-then-act rounds.
const MaxIterationsDefault = 25

// memoriesConsulted is how many relevant memories the composer is offered
// per iteration.
const memoriesConsulted = 10

// ScratchpadReader exposes the agent's current working plan, if any, for
// injection into the system prompt.
type ScratchpadReader interface {
	Content() string
}

// ToolExecution reports one call's progress within a Chunk.
type ToolExecution struct {
	Name   string
	Status string // "running" | "complete" | "error"
	Args   json.RawMessage
	Output string
	Error  string
}

// Chunk is one unit of progress yielded by Run.
type Chunk struct {
	Content              string
	ToolExecutions       []ToolExecution
	ContextStats         composer.ContextStats
	Done                 bool
	Iterations           int
	MaxIterationsReached bool
}

// Options configures one Agent.
type Options struct {
	Provider         provider.Provider
	Model            string
	Registry         *registry.Registry
	Memory           *memory.Store
	Conversation     *conversation.Store
	SystemPrompt     string
	MaxContextTokens int
	MaxMemoryTokens  int
	MaxIterations    int
	Scratchpad       ScratchpadReader
}

// Agent runs turns against one conversation using the options it was built
// with. Only one turn may be in flight at a time (spec §5).
type Agent struct {
	opts Options
}

// New constructs an Agent. MaxIterations <= 0 uses the default of 25.
func New(opts Options) *Agent {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = MaxIterationsDefault
	}
	return &Agent{opts: opts}
}

// Run processes one user turn, returning a channel of Chunks. The channel
// is closed after the final Chunk (Done == true). Cancelling ctx aborts
// the in-flight provider stream and any running tool calls; no partial
// assistant state is committed to history when that happens.
func (a *Agent) Run(ctx context.Context, userInput string) <-chan Chunk {
	out := make(chan Chunk, 8)
	go a.run(ctx, userInput, out)
	return out
}

func (a *Agent) run(ctx context.Context, userInput string, out chan<- Chunk) {
	defer close(out)

	a.opts.Registry.ClearRestriction()
	a.opts.Conversation.Append(provider.Message{Role: "user", Content: userInput, CreatedAt: time.Now()})

	var stats composer.ContextStats
	for i := 1; i <= a.opts.MaxIterations; i++ {
		select {
		case <-ctx.Done():
			send(ctx, out, Chunk{Done: true, Iterations: i - 1})
			return
		default:
		}

		caps := a.opts.Provider.Capabilities(a.opts.Model)

		var tools []provider.Tool
		if caps.SupportsTools {
			tools = a.opts.Registry.Schemas()
		}

		var memories []memory.Memory
		if a.opts.Memory != nil {
			memories = a.opts.Memory.FindRelevant(userInput, memoriesConsulted)
		}

		history := a.opts.Conversation.History()
		msgs, iterStats, _ := composer.Compose(a.systemPrompt(), memories, history, a.opts.MaxContextTokens, a.opts.MaxMemoryTokens)
		stats = iterStats

		resp, err := a.streamOne(ctx, msgs, tools, stats, out)
		if err != nil {
			if ctx.Err() != nil {
				send(ctx, out, Chunk{Done: true, Iterations: i})
				return
			}
			a.opts.Conversation.Append(provider.Message{
				Role:      "system",
				Content:   "provider error: " + classifyProviderError(err),
				CreatedAt: time.Now(),
			})
			send(ctx, out, Chunk{Done: true, Iterations: i, ContextStats: stats})
			return
		}

		assistantMsg := provider.Message{
			Role:         "assistant",
			Content:      resp.Content,
			Reasoning:    resp.Reasoning,
			ToolCalls:    resp.ToolCalls,
			CreatedAt:    time.Now(),
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
		}
		a.opts.Conversation.Append(assistantMsg)

		if len(resp.ToolCalls) == 0 {
			send(ctx, out, Chunk{Done: true, Iterations: i, ContextStats: stats})
			return
		}

		running := make([]ToolExecution, len(resp.ToolCalls))
		calls := make([]registry.Call, len(resp.ToolCalls))
		for j, tc := range resp.ToolCalls {
			running[j] = ToolExecution{Name: tc.Name, Status: "running", Args: tc.Arguments}
			calls[j] = registry.Call{ID: tc.ID, Name: tc.Name, Args: tc.Arguments}
		}
		send(ctx, out, Chunk{ToolExecutions: running, Iterations: i})

		results := a.opts.Registry.ExecuteBatch(ctx, calls)

		unknownTool := false
		executions := make([]ToolExecution, len(results))
		for j, res := range results {
			tc := resp.ToolCalls[j]
			a.opts.Conversation.Append(provider.Message{
				Role:       "tool",
				ToolCallID: tc.ID,
				Content:    toolMessageContent(res),
				CreatedAt:  time.Now(),
			})
			status := "complete"
			if !res.Success {
				status = "error"
			}
			executions[j] = ToolExecution{Name: tc.Name, Status: status, Args: tc.Arguments, Output: res.Output, Error: res.Error}
			if isUnknownToolError(res) {
				unknownTool = true
			}
		}
		send(ctx, out, Chunk{ToolExecutions: executions, Iterations: i})

		if unknownTool {
			send(ctx, out, Chunk{Done: true, Iterations: i, ContextStats: stats})
			return
		}
	}

	send(ctx, out, Chunk{Done: true, Iterations: a.opts.MaxIterations, MaxIterationsReached: true, ContextStats: stats})
}

func (a *Agent) systemPrompt() string {
	prompt := a.opts.SystemPrompt
	if a.opts.Scratchpad != nil {
		if plan := a.opts.Scratchpad.Content(); plan != "" {
			prompt += "\n\n## Current Plan\n" + plan
		}
	}
	return prompt
}

// pending tracks one streaming tool call's accumulated argument text, keyed
// by its stream index, mirroring the merge-partials-by-index contract.
type pending struct {
	id, name string
	args     string
}

func (a *Agent) streamOne(ctx context.Context, msgs []provider.Message, tools []provider.Tool, stats composer.ContextStats, out chan<- Chunk) (*provider.ChatResponse, error) {
	events, err := a.opts.Provider.ChatStream(ctx, msgs, tools)
	if err != nil {
		return nil, err
	}

	var resp provider.ChatResponse
	order := []int{}
	calls := map[int]*pending{}

	for evt := range events {
		switch evt.Type {
		case provider.EventContentDelta:
			resp.Content += evt.Content
			send(ctx, out, Chunk{Content: evt.Content, ContextStats: stats})
		case provider.EventReasoningDelta:
			resp.Reasoning += evt.Content
		case provider.EventToolCallBegin:
			if _, ok := calls[evt.ToolCallIndex]; !ok {
				order = append(order, evt.ToolCallIndex)
			}
			calls[evt.ToolCallIndex] = &pending{id: evt.ToolCallID, name: evt.ToolCallName}
		case provider.EventToolCallDelta:
			if p, ok := calls[evt.ToolCallIndex]; ok {
				p.args += evt.ToolCallArgs
			}
		case provider.EventUsage:
			if evt.InputTokens > 0 {
				resp.InputTokens = evt.InputTokens
			}
			if evt.OutputTokens > 0 {
				resp.OutputTokens = evt.OutputTokens
			}
		case provider.EventError:
			return nil, evt.Err
		case provider.EventDone:
		}
	}

	for _, idx := range order {
		p := calls[idx]
		resp.ToolCalls = append(resp.ToolCalls, provider.ToolCall{ID: p.id, Name: p.name, Arguments: json.RawMessage(p.args)})
	}
	return &resp, nil
}

func toolMessageContent(res registry.Result) string {
	if res.Success {
		return res.Output
	}
	return res.Error
}

func isUnknownToolError(res registry.Result) bool {
	return !res.Success && strings.HasPrefix(res.Error, `Tool "`) && strings.HasSuffix(res.Error, "not found")
}

func classifyProviderError(err error) string {
	switch {
	case errors.Is(err, provider.ErrContextLength):
		return "context length exceeded"
	case errors.Is(err, provider.ErrRateLimited):
		return "rate limited"
	case errors.Is(err, provider.ErrUnavailable):
		return "unavailable"
	default:
		var pe *provider.ProviderError
		if errors.As(err, &pe) {
			return "provider returned " + strconv.Itoa(pe.Code)
		}
		return err.Error()
	}
}

// send forwards a chunk unless ctx is already done, avoiding a blocked
// send into a channel nobody will drain after cancellation.
func send(ctx context.Context, out chan<- Chunk, c Chunk) {
	select {
	case out <- c:
	case <-ctx.Done():
		log.Debug().Msg("agent: dropped chunk after context cancellation")
	}
}
