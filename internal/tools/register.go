package tools

import (
	"fmt"

	"github.com/kestrelcode/tinyagent/internal/config"
	"github.com/kestrelcode/tinyagent/internal/provider"
	"github.com/kestrelcode/tinyagent/internal/registry"
	"github.com/kestrelcode/tinyagent/internal/shell"
	"github.com/kestrelcode/tinyagent/internal/skill"
	"github.com/kestrelcode/tinyagent/internal/store"
)

// Deps carries everything the built-in tool catalog needs to construct
// itself: the working directory every file/shell/search tool is anchored
// to, the provider and model a sub-agent reuses, and the shared registries
// and caches tools read or write through.
type Deps struct {
	Root          string
	Tools         config.ToolsConfig
	Provider      provider.Provider
	Model         string
	SkillRegistry *skill.Registry
	WebCache      *store.Cache
	ExaAPIKey     string
	MaxContext    int
	MaxMemory     int
	OnSkillLoad   OnSkillLoad
	// OnFileWritten, if set, is called with the absolute path after every
	// successful write_file/edit_file call so a derived view (the
	// tree-sitter project index backing the system-prompt outline) can be
	// kept current across a session instead of going stale after the
	// first edit. May be nil.
	OnFileWritten func(absPath string)
}

// Register builds and registers the full built-in tool catalog (C12) into
// reg: file tools, bash, grep/glob, git, todo/scratchpad, web fetch/search,
// skill, and sub_agent. It returns the Scratchpad so the caller can wire it
// into the Agent's ScratchpadReader.
func Register(reg *registry.Registry, deps Deps) (*Scratchpad, error) {
	tracker := NewFileReadTracker()
	pad := NewScratchpad()

	sh := shell.New(deps.Root, shell.DefaultBlockFuncs())

	toolList := []registry.Tool{
		NewReadFileTool(deps.Root, tracker),
		NewWriteFileTool(deps.Root, tracker, deps.OnFileWritten),
		NewEditFileTool(deps.Root, tracker, deps.OnFileWritten),
		NewListDirectoryTool(deps.Root),
		NewGrepTool(deps.Root),
		NewGlobTool(deps.Root),
		NewBashTool(sh, deps.Tools.BashTimeoutOrDefault()),
		NewGitStatusTool(deps.Root),
		NewGitDiffTool(deps.Root),
		NewTodoWriteTool(pad),
		NewSkillTool(deps.SkillRegistry, deps.OnSkillLoad),
	}

	if deps.WebCache != nil {
		toolList = append(toolList,
			NewWebFetchTool(deps.WebCache),
			NewWebSearchTool(deps.WebCache, deps.ExaAPIKey),
		)
	}

	if deps.Provider != nil {
		toolList = append(toolList, NewSubAgentTool(SubAgentDeps{
			Provider:         deps.Provider,
			Model:            deps.Model,
			Registry:         reg,
			MaxContextTokens: deps.MaxContext,
			MaxMemoryTokens:  deps.MaxMemory,
		}))
	}

	for _, t := range toolList {
		if err := reg.Register(t); err != nil {
			return nil, fmt.Errorf("register tool %q: %w", t.Name, err)
		}
	}
	return pad, nil
}
