package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/kestrelcode/tinyagent/internal/registry"
)

type gitStatusArgs struct {
	Long bool `json:"long,omitempty"`
}

type gitDiffArgs struct {
	File   string `json:"file,omitempty"`
	Staged bool   `json:"staged,omitempty"`
}

// NewGitStatusTool builds git_status, always safe since it never touches
// disk state.
func NewGitStatusTool(root string) registry.Tool {
	return registry.Tool{
		Name:        "git_status",
		Description: "Show the working tree status. Returns modified, staged, and untracked files.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"long": {"type": "boolean", "description": "Use long format output. Default: false (short format)"}
			}
		}`),
		Execute: func(ctx context.Context, raw json.RawMessage) (registry.Result, error) {
			var args gitStatusArgs
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &args); err != nil {
					return registry.Result{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
				}
			}

			gitArgs := []string{"status"}
			if !args.Long {
				gitArgs = append(gitArgs, "--short")
			}
			out, runErr := runGit(ctx, root, gitArgs...)
			if runErr != nil {
				return registry.Result{Error: runErr.Error()}, nil
			}
			if strings.TrimSpace(out) == "" {
				out = "nothing to commit, working tree clean"
			}
			return registry.Result{Success: true, Output: out}, nil
		},
	}
}

// NewGitDiffTool builds git_diff, always safe since it never touches disk
// state.
func NewGitDiffTool(root string) registry.Tool {
	return registry.Tool{
		Name:        "git_diff",
		Description: "Show changes between working tree and index (unstaged), or between index and HEAD (staged). Returns unified diff output.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"file":   {"type": "string", "description": "Optional: specific file path to diff. If omitted, diffs all changed files."},
				"staged": {"type": "boolean", "description": "If true, show staged (cached) changes. Default: false (unstaged changes)"}
			}
		}`),
		Execute: func(ctx context.Context, raw json.RawMessage) (registry.Result, error) {
			var args gitDiffArgs
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &args); err != nil {
					return registry.Result{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
				}
			}

			gitArgs := []string{"diff"}
			if args.Staged {
				gitArgs = append(gitArgs, "--cached")
			}
			if args.File != "" {
				gitArgs = append(gitArgs, "--", args.File)
			}
			out, runErr := runGit(ctx, root, gitArgs...)
			if runErr != nil {
				return registry.Result{Error: runErr.Error()}, nil
			}
			if strings.TrimSpace(out) == "" {
				label := "unstaged"
				if args.Staged {
					label = "staged"
				}
				out = fmt.Sprintf("no %s changes", label)
			}
			return registry.Result{Success: true, Output: out}, nil
		},
	}
}

// runGit executes git in root and returns stdout. A diff's "exit 1, no
// stderr" just means differences were found, not an error.
func runGit(ctx context.Context, root string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if cmd.ProcessState != nil && cmd.ProcessState.ExitCode() == 1 && stderr.Len() == 0 {
			return stdout.String(), nil
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git error: %s", msg)
	}
	return stdout.String(), nil
}
