package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kestrelcode/tinyagent/internal/hashline"
	"github.com/kestrelcode/tinyagent/internal/registry"
)

// editArgs mirrors edit_file's schema: exactly one operation field is set.
type editArgs struct {
	Path    string     `json:"path"`
	Replace *replaceOp `json:"replace,omitempty"`
	Insert  *insertOp  `json:"insert,omitempty"`
	Delete  *deleteOp  `json:"delete,omitempty"`
	Create  *createOp  `json:"create,omitempty"`
}

type replaceOp struct {
	Start   hashline.Anchor `json:"start"`
	End     hashline.Anchor `json:"end"`
	Content string          `json:"content"`
}

type insertOp struct {
	After   hashline.Anchor `json:"after"`
	Content string          `json:"content"`
}

type deleteOp struct {
	Start hashline.Anchor `json:"start"`
	End   hashline.Anchor `json:"end"`
}

type createOp struct {
	Content string `json:"content"`
}

const anchorSchema = `{"type": "object", "properties": {"line": {"type": "integer", "description": "1-indexed line number"}, "hash": {"type": "string", "description": "4-char hex hash from read_file output"}}, "required": ["line", "hash"]}`

// NewEditFileTool builds edit_file. Every operation (except create) is
// anchored by the line hashes read_file last returned, so an edit against a
// file that changed underneath the model fails closed instead of silently
// corrupting unrelated lines. onWrite, if non-nil, is called with the
// absolute path after a successful create/edit; it may be nil.
func NewEditFileTool(root string, tracker *FileReadTracker, onWrite func(absPath string)) registry.Tool {
	return registry.Tool{
		Name: "edit_file",
		Description: `Edit a file using hash-anchored operations. You MUST read_file the file first to ` +
			`get line hashes. Exactly one operation per call: replace, insert, delete, or create. If a hash ` +
			`does not match, the file changed since you read it — re-read and retry. Each edit returns ` +
			`fresh hashes; use those for subsequent edits.`,
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Path to the file to edit"},
				"replace": {
					"type": "object",
					"description": "Replace lines start..end (inclusive) with new content",
					"properties": {
						"start":   ` + anchorSchema + `,
						"end":     ` + anchorSchema + `,
						"content": {"type": "string"}
					},
					"required": ["start", "end", "content"]
				},
				"insert": {
					"type": "object",
					"description": "Insert new lines after the anchored line",
					"properties": {
						"after":   ` + anchorSchema + `,
						"content": {"type": "string"}
					},
					"required": ["after", "content"]
				},
				"delete": {
					"type": "object",
					"description": "Delete lines start..end (inclusive)",
					"properties": {
						"start": ` + anchorSchema + `,
						"end":   ` + anchorSchema + `
					},
					"required": ["start", "end"]
				},
				"create": {
					"type": "object",
					"description": "Create a new file (fails if it already exists)",
					"properties": {
						"content": {"type": "string"}
					},
					"required": ["content"]
				}
			},
			"required": ["path"]
		}`),
		Dangerous: registry.DangerFunc(func(raw json.RawMessage) (bool, string) {
			var args editArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return true, "Edit file"
			}
			abs, err := ValidateWritePath(root, args.Path)
			if err != nil {
				return true, "Edit " + args.Path
			}
			if args.Create != nil {
				return true, "Create " + args.Path + "\n" + renderDiff(args.Path, "", args.Create.Content)
			}
			before, _ := os.ReadFile(abs)
			after, err := computeEditedContent(string(before), args)
			if err != nil {
				return true, "Edit " + args.Path
			}
			return true, "Edit " + args.Path + "\n" + renderDiff(args.Path, string(before), after)
		}),
		Execute: func(_ context.Context, raw json.RawMessage) (registry.Result, error) {
			var args editArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return registry.Result{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
			}
			if args.Path == "" {
				return registry.Result{Error: "path cannot be empty"}, nil
			}
			if err := validateEditOps(args); err != nil {
				return registry.Result{Error: err.Error()}, nil
			}

			abs, err := ValidateWritePath(root, args.Path)
			if err != nil {
				return registry.Result{Error: err.Error()}, nil
			}

			if args.Create != nil {
				res, err := handleCreate(abs, args.Path, args.Create)
				if err == nil && res.Success && onWrite != nil {
					onWrite(abs)
				}
				return res, err
			}
			if !tracker.WasRead(abs) {
				return registry.Result{Error: fmt.Sprintf("you must read_file %s before editing it — the line hashes are required", args.Path)}, nil
			}
			res, err := applyEdit(tracker, abs, args)
			if err == nil && res.Success && onWrite != nil {
				onWrite(abs)
			}
			return res, err
		},
	}
}

func validateEditOps(args editArgs) error {
	ops := 0
	for _, set := range []bool{args.Replace != nil, args.Insert != nil, args.Delete != nil, args.Create != nil} {
		if set {
			ops++
		}
	}
	if ops != 1 {
		return fmt.Errorf("exactly one operation (replace, insert, delete, or create) must be specified")
	}
	return nil
}

func applyEdit(tracker *FileReadTracker, abs string, args editArgs) (registry.Result, error) {
	content, err := os.ReadFile(abs)
	if err != nil {
		return registry.Result{Error: fmt.Sprintf("failed to read file: %v", err)}, nil
	}

	result, err := computeEditedContent(string(content), args)
	if err != nil {
		return registry.Result{Error: err.Error()}, nil
	}

	if err := os.WriteFile(abs, []byte(result), 0600); err != nil {
		return registry.Result{Error: fmt.Sprintf("failed to write file: %v", err)}, nil
	}
	tracker.MarkRead(abs)

	tagged := hashline.TagLines(result, 1)
	text := fmt.Sprintf("Edited %s (%d lines):\n\n%s", args.Path, len(tagged), hashline.FormatTagged(tagged))
	return registry.Result{Success: true, Output: text}, nil
}

// computeEditedContent applies a replace/insert/delete operation against
// content without touching disk, used both to preview a confirmation diff
// and to compute the content actually written.
func computeEditedContent(content string, args editArgs) (string, error) {
	lines := strings.Split(content, "\n")
	switch {
	case args.Replace != nil:
		return applyReplace(lines, args.Replace)
	case args.Insert != nil:
		return applyInsert(lines, args.Insert)
	case args.Delete != nil:
		return applyDelete(lines, args.Delete)
	default:
		return "", fmt.Errorf("no operation specified")
	}
}

func handleCreate(abs, displayPath string, op *createOp) (registry.Result, error) {
	if _, err := os.Stat(abs); err == nil {
		return registry.Result{Error: fmt.Sprintf("file already exists: %s (use replace/insert/delete to modify)", displayPath)}, nil
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0750); err != nil {
		return registry.Result{Error: fmt.Sprintf("failed to create directories: %v", err)}, nil
	}
	if err := os.WriteFile(abs, []byte(op.Content), 0600); err != nil {
		return registry.Result{Error: fmt.Sprintf("failed to create file: %v", err)}, nil
	}

	tagged := hashline.TagLines(op.Content, 1)
	text := fmt.Sprintf("Created %s (%d lines):\n\n%s", displayPath, len(tagged), hashline.FormatTagged(tagged))
	return registry.Result{Success: true, Output: text}, nil
}

func applyReplace(lines []string, op *replaceOp) (string, error) {
	if err := hashline.ValidateRange(op.Start, op.End, lines); err != nil {
		return "", fmt.Errorf("replace: %w", err)
	}
	newLines := make([]string, 0, len(lines))
	newLines = append(newLines, lines[:op.Start.Num-1]...)
	newLines = append(newLines, strings.Split(op.Content, "\n")...)
	newLines = append(newLines, lines[op.End.Num:]...)
	return strings.Join(newLines, "\n"), nil
}

func applyInsert(lines []string, op *insertOp) (string, error) {
	if err := op.After.Validate(lines); err != nil {
		return "", fmt.Errorf("insert: after anchor: %w", err)
	}
	newLines := make([]string, 0, len(lines)+1)
	newLines = append(newLines, lines[:op.After.Num]...)
	newLines = append(newLines, strings.Split(op.Content, "\n")...)
	newLines = append(newLines, lines[op.After.Num:]...)
	return strings.Join(newLines, "\n"), nil
}

func applyDelete(lines []string, op *deleteOp) (string, error) {
	if err := hashline.ValidateRange(op.Start, op.End, lines); err != nil {
		return "", fmt.Errorf("delete: %w", err)
	}
	newLines := make([]string, 0, len(lines))
	newLines = append(newLines, lines[:op.Start.Num-1]...)
	newLines = append(newLines, lines[op.End.Num:]...)
	return strings.Join(newLines, "\n"), nil
}
