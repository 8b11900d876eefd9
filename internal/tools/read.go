package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kestrelcode/tinyagent/internal/hashline"
	"github.com/kestrelcode/tinyagent/internal/registry"
)

type readArgs struct {
	Path  string `json:"path"`
	Start int    `json:"start,omitempty"`
	End   int    `json:"end,omitempty"`
}

// NewReadFileTool builds read_file, which returns hashline-tagged content so
// edit_file can later verify its anchors haven't gone stale.
func NewReadFileTool(root string, tracker *FileReadTracker) registry.Tool {
	return registry.Tool{
		Name: "read_file",
		Description: `Read a file's contents. Each line is tagged "linenum:hash|content" for use ` +
			`with edit_file's hash-anchored operations. You MUST read_file a file before editing it. ` +
			`Use start/end for a line range.`,
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path":  {"type": "string", "description": "Path to the file, relative to the working directory"},
				"start": {"type": "integer", "description": "Optional 1-indexed start line (inclusive)"},
				"end":   {"type": "integer", "description": "Optional 1-indexed end line (inclusive)"}
			},
			"required": ["path"]
		}`),
		Execute: func(_ context.Context, raw json.RawMessage) (registry.Result, error) {
			var args readArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return registry.Result{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
			}
			if args.Path == "" {
				return registry.Result{Error: "path cannot be empty"}, nil
			}

			abs, err := ValidateReadPath(root, args.Path)
			if err != nil {
				return registry.Result{Error: err.Error()}, nil
			}

			content, err := os.ReadFile(abs)
			if err != nil {
				return registry.Result{Error: fmt.Sprintf("failed to read file: %v", err)}, nil
			}
			tracker.MarkRead(abs)

			lines := strings.Split(string(content), "\n")
			selected, startLine, err := extractRange(lines, string(content), args.Start, args.End)
			if err != nil {
				return registry.Result{Error: err.Error()}, nil
			}

			tagged := hashline.TagLines(selected, startLine)
			out := fmt.Sprintf("%s (%d lines):\n\n%s", args.Path, len(tagged), hashline.FormatTagged(tagged))
			return registry.Result{Success: true, Output: out}, nil
		},
	}
}

func extractRange(lines []string, full string, start, end int) (string, int, error) {
	if start <= 0 && end <= 0 {
		return full, 1, nil
	}
	if start <= 0 {
		start = 1
	}
	if start < 1 || start > len(lines) {
		return "", 0, fmt.Errorf("start line %d out of range (file has %d lines)", start, len(lines))
	}
	if end <= 0 || end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return "", 0, fmt.Errorf("invalid range: start (%d) > end (%d)", start, end)
	}
	return strings.Join(lines[start-1:end], "\n"), start, nil
}
