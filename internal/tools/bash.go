package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kestrelcode/tinyagent/internal/registry"
	"github.com/kestrelcode/tinyagent/internal/shell"
)

type bashArgs struct {
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Timeout     int    `json:"timeout,omitempty"`
}

const (
	bashDefaultTimeoutSec = 60
	bashMaxTimeoutSec     = 600
	bashMaxOutputChars    = 30000
)

// NewBashTool builds bash: an in-process POSIX interpreter anchored to root,
// with the banned-command and global-install blockers plus the
// Destructive-Command confirmation gate.
func NewBashTool(sh *shell.Shell, defaultTimeoutSec int) registry.Tool {
	if defaultTimeoutSec <= 0 {
		defaultTimeoutSec = bashDefaultTimeoutSec
	}
	return registry.Tool{
		Name: "bash",
		Description: `Execute a shell command in an in-process POSIX interpreter, anchored to the ` +
			`working directory. Shell state (cwd, env vars) persists across calls. Commands matching ` +
			`destructive patterns (rm, mv, git push, redirection, etc.) require confirmation, even when ` +
			`the command starts with one of a fixed set of read-only commands. An entire class of commands — shells and interpreters ` +
			`(bash, python, node, ...), network/remote-access tools (curl, wget, ssh, scp, ...), privilege ` +
			`escalation (sudo, su, doas), system/package management (apt, systemctl, mount, ...), and ` +
			`global package installs (npm install -g, pip install, cargo install, go install, ...) — is ` +
			`refused outright with no confirmation path; use the dedicated web_fetch/web_search tools ` +
			`instead of curl/wget.`,
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"command":     {"type": "string", "description": "The shell command to execute"},
				"description": {"type": "string", "description": "Brief description of what this command does"},
				"timeout":     {"type": "integer", "description": "Timeout in seconds (default 60, max 600)"}
			},
			"required": ["command"]
		}`),
		Dangerous: registry.DangerFunc(func(raw json.RawMessage) (bool, string) {
			var args bashArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return true, "Run shell command"
			}
			return BashDanger(args.Command)
		}),
		Execute: func(ctx context.Context, raw json.RawMessage) (registry.Result, error) {
			var args bashArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return registry.Result{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
			}
			if args.Command == "" {
				return registry.Result{Error: "command is required"}, nil
			}

			timeout := defaultTimeoutSec
			if args.Timeout > 0 {
				timeout = args.Timeout
			}
			if timeout > bashMaxTimeoutSec {
				timeout = bashMaxTimeoutSec
			}
			ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
			defer cancel()

			var stdout, stderr bytes.Buffer
			execErr := sh.ExecStream(ctx, args.Command, &stdout, &stderr)
			exitCode := shell.ExitCode(execErr)
			output := formatBashOutput(stdout.String(), stderr.String(), exitCode, ctx.Err())
			if output == "" {
				output = "(no output)\n"
			}
			if len([]rune(output)) > bashMaxOutputChars {
				output = truncateMiddle(output, bashMaxOutputChars)
			}

			if exitCode != 0 {
				return registry.Result{Success: false, Error: output}, nil
			}
			return registry.Result{Success: true, Output: output}, nil
		},
	}
}

func formatBashOutput(stdout, stderr string, exitCode int, ctxErr error) string {
	var b strings.Builder
	if stdout != "" {
		b.WriteString(stdout)
		if !strings.HasSuffix(stdout, "\n") {
			b.WriteByte('\n')
		}
	}
	if stderr != "" {
		b.WriteString(stderr)
		if !strings.HasSuffix(stderr, "\n") {
			b.WriteByte('\n')
		}
	}
	if ctxErr != nil {
		fmt.Fprintf(&b, "[timed out]\n")
	}
	if exitCode != 0 {
		fmt.Fprintf(&b, "[exit code: %d]\n", exitCode)
	}
	return b.String()
}

func truncateMiddle(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	half := maxChars / 2
	return string(runes[:half]) + "\n\n... [truncated] ...\n\n" + string(runes[len(runes)-half:])
}
