package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kestrelcode/tinyagent/internal/agent"
	"github.com/kestrelcode/tinyagent/internal/conversation"
	"github.com/kestrelcode/tinyagent/internal/provider"
	"github.com/kestrelcode/tinyagent/internal/registry"
)

const (
	// maxSubAgentIterations is the default max tool rounds for sub-agents.
	maxSubAgentIterations = 5
	// maxAllowedSubAgentIterations is the upper bound for a user-specified
	// max_iterations.
	maxAllowedSubAgentIterations = 20
)

type subAgentArgs struct {
	Prompt        string `json:"prompt"`
	MaxIterations int    `json:"max_iterations,omitempty"`
}

// SubAgentDeps carries what a spawned sub-agent needs from its parent: the
// same provider and model, and a registry snapshot it can safely restrict
// without affecting the parent turn.
type SubAgentDeps struct {
	Provider         provider.Provider
	Model            string
	Registry         *registry.Registry
	MaxContextTokens int
	MaxMemoryTokens  int
}

// NewSubAgentTool builds sub_agent. The spawned agent gets an isolated tool
// registry snapshot (the sub_agent tool itself excluded, so it cannot spawn
// further sub-agents), an in-memory-only conversation, and its own
// scratchpad.
func NewSubAgentTool(deps SubAgentDeps) registry.Tool {
	return registry.Tool{
		Name: "sub_agent",
		Description: `Spawn a sub-agent to handle a focused task. The sub-agent runs with the same ` +
			`tools but cannot spawn further sub-agents. Use this to decompose complex tasks into smaller, ` +
			`manageable pieces. The sub-agent's work is returned as a summary.`,
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"prompt":         {"type": "string", "description": "Task description for the sub-agent. Be specific about what needs to be accomplished and the expected output format."},
				"max_iterations": {"type": "integer", "description": "Maximum tool rounds for the sub-agent (default: 5)"}
			},
			"required": ["prompt"]
		}`),
		Execute: func(ctx context.Context, raw json.RawMessage) (registry.Result, error) {
			if err := ctx.Err(); err != nil {
				return registry.Result{Error: fmt.Sprintf("sub-agent cancelled: %v", err)}, nil
			}

			var args subAgentArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return registry.Result{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
			}
			if args.Prompt == "" {
				return registry.Result{Error: "prompt is required"}, nil
			}

			maxIter := maxSubAgentIterations
			if args.MaxIterations > 0 {
				if args.MaxIterations > maxAllowedSubAgentIterations {
					return registry.Result{Error: fmt.Sprintf("max_iterations too large (max: %d)", maxAllowedSubAgentIterations)}, nil
				}
				maxIter = args.MaxIterations
			}

			subRegistry := deps.Registry.Snapshot(map[string]struct{}{"sub_agent": {}})
			subConv := conversation.New("")
			subAgent := agent.New(agent.Options{
				Provider:         deps.Provider,
				Model:            deps.Model,
				Registry:         subRegistry,
				Conversation:     subConv,
				SystemPrompt:     subAgentSystemPrompt,
				MaxContextTokens: deps.MaxContextTokens,
				MaxMemoryTokens:  deps.MaxMemoryTokens,
				MaxIterations:    maxIter,
				Scratchpad:       NewScratchpad(),
			})

			var iterations int
			for chunk := range subAgent.Run(ctx, args.Prompt) {
				iterations = chunk.Iterations
				if chunk.Done {
					break
				}
			}

			finalContent, totalIn, totalOut := lastAssistantMessage(subConv.History())
			if finalContent == "" {
				return registry.Result{Error: "sub-agent produced no final response"}, nil
			}

			result := fmt.Sprintf("Sub-agent completed in %d iteration(s).\n\n%s\n\n---\nToken usage: %d in, %d out",
				iterations, finalContent, totalIn, totalOut)
			return registry.Result{Success: true, Output: result}, nil
		},
	}
}

func lastAssistantMessage(history []provider.Message) (content string, inTokens, outTokens int) {
	var totalIn, totalOut int
	for _, m := range history {
		totalIn += m.InputTokens
		totalOut += m.OutputTokens
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "assistant" && history[i].Content != "" {
			return history[i].Content, totalIn, totalOut
		}
	}
	return "", totalIn, totalOut
}

var subAgentSystemPrompt = strings.TrimSpace(`
You are a focused sub-agent working on a specific task assigned by a parent agent.

Your role:
- Complete the assigned task efficiently
- Use the tools available to you as needed
- Provide a clear, concise final response summarizing what you accomplished
- You cannot spawn further sub-agents

When done, respond with a summary of what was accomplished: files modified, commands run, or issues
found. You have a limited number of tool rounds — work efficiently.
`)
