// Command tinyagent is a terminal-based coding assistant that drives an
// LLM through an iterative reason-then-act tool-calling loop.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	cmd := "chat"
	rest := argv
	if len(argv) > 0 && !isFlag(argv[0]) {
		cmd = argv[0]
		rest = argv[1:]
	}

	flags, positional, err := parseGlobalFlags("tinyagent "+cmd, rest)
	if err != nil {
		return err
	}
	if flags.help {
		printTopLevelUsage()
		return nil
	}

	if err := setupFileLogging(flags.verbose); err != nil {
		fmt.Fprintln(os.Stderr, "warning: file logging unavailable:", err)
	}

	switch cmd {
	case "chat", "run":
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		defer a.close()
		if cmd == "run" {
			return runOnce(a, positional)
		}
		return runChat(a)

	case "status":
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		defer a.close()
		return cmdStatus(a)

	case "config":
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		defer a.close()
		return cmdConfig(a, positional)

	case "memory":
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		defer a.close()
		return cmdMemory(a, positional)

	case "skill":
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		defer a.close()
		return cmdSkill(a, positional)

	case "mcp":
		a, err := newApp(flags)
		if err != nil {
			return err
		}
		defer a.close()
		return cmdMCP(a, positional)

	default:
		printTopLevelUsage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func isFlag(s string) bool {
	return len(s) > 0 && s[0] == '-'
}
