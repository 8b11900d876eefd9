package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kestrelcode/tinyagent/internal/config"
)

// loadAgentInstructions walks from the working directory up to the
// filesystem root collecting AGENTS.md files, then checks
// ~/.tiny-agent/AGENTS.md, then an explicit --agents-md override (highest
// precedence, listed first). Project-level instructions take precedence
// over user-level ones.
func loadAgentInstructions(explicitPath string) string {
	var found []string

	if cwd, err := os.Getwd(); err == nil {
		dir := cwd
		for {
			if content := readFileIfExists(filepath.Join(dir, "AGENTS.md")); content != "" {
				found = append(found, fmt.Sprintf("Instructions from: %s\n%s", filepath.Join(dir, "AGENTS.md"), content))
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	if dataDir, err := config.DataDir(); err == nil {
		userPath := filepath.Join(dataDir, "AGENTS.md")
		if content := readFileIfExists(userPath); content != "" {
			found = append(found, fmt.Sprintf("Instructions from: %s\n%s", userPath, content))
		}
	}

	// found is already ordered nearest-cwd first, user-level file last, so
	// project-level instructions precede user-level ones in the output.
	var parts []string
	if explicitPath != "" {
		if content := readFileIfExists(explicitPath); content != "" {
			parts = append(parts, fmt.Sprintf("Instructions from: %s\n%s", explicitPath, content))
		}
	}
	parts = append(parts, found...)

	return strings.Join(parts, "\n\n")
}

func readFileIfExists(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
