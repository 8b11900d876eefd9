package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"

	"github.com/kestrelcode/tinyagent/internal/hashline"
	"github.com/kestrelcode/tinyagent/internal/registry"
)

type writeArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// NewWriteFileTool builds write_file. It always requires confirmation; the
// prompt carries a unified diff against the file's current contents (empty
// for a new file) so the user can see what would change before approving.
// onWrite, if non-nil, is called with the absolute path after a successful
// write so the caller can keep a derived view (e.g. the project symbol
// index) current; it may be nil.
func NewWriteFileTool(root string, tracker *FileReadTracker, onWrite func(absPath string)) registry.Tool {
	return registry.Tool{
		Name:        "write_file",
		Description: "Create or overwrite a file with the given content.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path":    {"type": "string", "description": "Path to the file, relative to the working directory"},
				"content": {"type": "string", "description": "Full file content"}
			},
			"required": ["path", "content"]
		}`),
		Dangerous: registry.DangerFunc(func(raw json.RawMessage) (bool, string) {
			var args writeArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return true, "Write file"
			}
			abs, err := ValidateWritePath(root, args.Path)
			if err != nil {
				return true, "Write " + args.Path
			}
			before, _ := os.ReadFile(abs) // missing file reads as "", diffed against as a create
			return true, "Write " + args.Path + "\n" + renderDiff(args.Path, string(before), args.Content)
		}),
		Execute: func(_ context.Context, raw json.RawMessage) (registry.Result, error) {
			var args writeArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return registry.Result{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
			}
			if args.Path == "" {
				return registry.Result{Error: "path cannot be empty"}, nil
			}

			abs, err := ValidateWritePath(root, args.Path)
			if err != nil {
				return registry.Result{Error: err.Error()}, nil
			}
			if err := os.MkdirAll(filepath.Dir(abs), 0750); err != nil {
				return registry.Result{Error: fmt.Sprintf("failed to create directories: %v", err)}, nil
			}
			if err := os.WriteFile(abs, []byte(args.Content), 0600); err != nil {
				return registry.Result{Error: fmt.Sprintf("failed to write file: %v", err)}, nil
			}
			tracker.MarkRead(abs)
			if onWrite != nil {
				onWrite(abs)
			}

			tagged := hashline.TagLines(args.Content, 1)
			out := fmt.Sprintf("Wrote %s (%d lines):\n\n%s", args.Path, len(tagged), hashline.FormatTagged(tagged))
			return registry.Result{Success: true, Output: out}, nil
		},
	}
}

// renderDiff returns a unified diff of before -> after, or
// "(new file, N bytes)" if before is empty.
func renderDiff(label, before, after string) string {
	if before == "" {
		return "(new file, " + fmt.Sprint(len(after)) + " bytes)"
	}
	edits := myers.ComputeEdits(span.URIFromPath(label), before, after)
	return fmt.Sprint(gotextdiff.ToUnified(label, label, before, edits))
}
