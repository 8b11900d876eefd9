package main

import (
	"flag"
	"fmt"
	"os"
)

// repeatedFlag collects a flag passed more than once, for --skills-dir.
type repeatedFlag []string

func (r *repeatedFlag) String() string { return fmt.Sprint([]string(*r)) }
func (r *repeatedFlag) Set(v string) error {
	*r = append(*r, v)
	return nil
}

// globalFlags holds every flag shared across subcommands.
type globalFlags struct {
	model          string
	provider       string
	verbose        bool
	save           bool
	noMemory       bool
	noTrackContext bool
	noStatus       bool
	noColor        bool
	json           bool
	allowAll       bool
	agentsMD       string
	skillsDirs     repeatedFlag
	memoryFile     string
	help           bool
}

// parseGlobalFlags builds a FlagSet with every global flag registered
// (including its short alias, where one exists) and parses args.
func parseGlobalFlags(name string, args []string) (*globalFlags, []string, error) {
	g := &globalFlags{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	fs.StringVar(&g.model, "model", "", "override the configured default model")
	fs.StringVar(&g.provider, "provider", "", "override the provider backend selected by model mapping")
	fs.BoolVar(&g.verbose, "verbose", false, "enable debug logging")
	fs.BoolVar(&g.verbose, "v", false, "enable debug logging (shorthand)")
	fs.BoolVar(&g.save, "save", false, "persist the conversation file even without --model requiring it")
	fs.BoolVar(&g.noMemory, "no-memory", false, "disable the persistent memory store for this invocation")
	fs.BoolVar(&g.noTrackContext, "no-track-context", false, "omit context-budget stats from output")
	fs.BoolVar(&g.noStatus, "no-status", false, "suppress the status line in interactive chat")
	fs.BoolVar(&g.noColor, "no-color", false, "disable ANSI color in output")
	fs.BoolVar(&g.json, "json", false, "emit one JSON object per line instead of formatted text")
	fs.BoolVar(&g.allowAll, "allow-all", false, "auto-approve every confirmation prompt")
	fs.BoolVar(&g.allowAll, "y", false, "auto-approve every confirmation prompt (shorthand)")
	fs.StringVar(&g.agentsMD, "agents-md", "", "explicit path to an AGENTS.md file, given precedence over discovered ones")
	fs.Var(&g.skillsDirs, "skills-dir", "additional skill directory to scan (repeatable)")
	fs.StringVar(&g.memoryFile, "memory-file", "", "override the configured memory file path")
	fs.BoolVar(&g.help, "help", false, "show usage")
	fs.BoolVar(&g.help, "h", false, "show usage (shorthand)")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return g, fs.Args(), nil
}

func printTopLevelUsage() {
	fmt.Fprint(os.Stderr, `tinyagent — a terminal coding assistant

Usage:
  tinyagent chat [flags]              interactive session (default)
  tinyagent run <prompt> [flags]      single-shot; also reads stdin if piped
  tinyagent config [open]             print or open the config file
  tinyagent status                    print provider/model/context/memory status
  tinyagent memory [list|add|clear|stats] [args]
  tinyagent skill [list|show|init] [args]
  tinyagent mcp [list|add|enable|disable] [args]

Flags (apply to chat/run):
  --model <name>          --provider <name>       --verbose, -v
  --save                  --no-memory             --no-track-context
  --no-status             --no-color              --json
  --allow-all, -y         --agents-md <path>       --skills-dir <path> (repeatable)
  --memory-file <path>    --help, -h
`)
}
