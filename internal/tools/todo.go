package tools

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kestrelcode/tinyagent/internal/registry"
)

// Scratchpad holds the agent's current plan/notes, safe for concurrent
// access. The Agent Loop appends its content to the system prompt under a
// "## Current Plan" heading on every iteration. It satisfies
// agent.ScratchpadReader.
type Scratchpad struct {
	mu      sync.RWMutex
	content string
}

func NewScratchpad() *Scratchpad { return &Scratchpad{} }

// Content returns the current scratchpad text.
func (s *Scratchpad) Content() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.content
}

type todoWriteArgs struct {
	Content string `json:"content"`
}

// NewTodoWriteTool builds todo_write, which replaces the scratchpad's
// content wholesale.
func NewTodoWriteTool(pad *Scratchpad) registry.Tool {
	return registry.Tool{
		Name: "todo_write",
		Description: `Write or update your working plan/scratchpad. The content replaces any previous ` +
			`plan and is kept visible in your system prompt under "Current Plan". Use this to track goals, progress, ` +
			`and next steps for tasks with 3+ steps. Rewrite it as you complete steps to stay focused. Skip ` +
			`for simple single-step tasks.`,
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"content": {"type": "string", "description": "Your current plan, todo list, or working notes. This replaces the previous content entirely."}
			},
			"required": ["content"]
		}`),
		Execute: func(_ context.Context, raw json.RawMessage) (registry.Result, error) {
			var args todoWriteArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return registry.Result{Error: "invalid arguments: " + err.Error()}, nil
			}
			if args.Content == "" {
				return registry.Result{Error: "content cannot be empty"}, nil
			}

			pad.mu.Lock()
			pad.content = args.Content
			pad.mu.Unlock()

			return registry.Result{Success: true, Output: "Plan updated."}, nil
		},
	}
}
