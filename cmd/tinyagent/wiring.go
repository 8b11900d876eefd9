package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kestrelcode/tinyagent/internal/agent"
	"github.com/kestrelcode/tinyagent/internal/config"
	"github.com/kestrelcode/tinyagent/internal/conversation"
	"github.com/kestrelcode/tinyagent/internal/mcp"
	"github.com/kestrelcode/tinyagent/internal/memory"
	"github.com/kestrelcode/tinyagent/internal/provider"
	"github.com/kestrelcode/tinyagent/internal/registry"
	"github.com/kestrelcode/tinyagent/internal/skill"
	"github.com/kestrelcode/tinyagent/internal/store"
	"github.com/kestrelcode/tinyagent/internal/tools"
	"github.com/kestrelcode/tinyagent/internal/treesitter"
)

// app bundles every long-lived service a command needs, built once from
// config + flags by newApp.
type app struct {
	cfg          *config.Config
	creds        *config.Credentials
	flags        *globalFlags
	providerName string
	model        string
	prov         provider.Provider
	registry     *registry.Registry
	broker       *registry.Broker
	mcpManager   *mcp.Manager
	memoryStore  *memory.Store
	convStore    *conversation.Store
	skillReg     *skill.Registry
	webCache     *store.Cache
	scratchpad   *tools.Scratchpad
	systemPrompt string
	promptBase   string
	projectIndex *treesitter.Index
}

func newApp(g *globalFlags) (*app, error) {
	cfg, err := config.LoadAny()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	creds, err := config.LoadCredentials()
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	model := cfg.DefaultModel
	if g.model != "" {
		model = g.model
	}
	if model == "" {
		return nil, fmt.Errorf("no model configured: set defaultModel in config.yaml, TINY_AGENT_MODEL, or pass --model")
	}

	providerName := provider.DetectBackend(model)
	if g.provider != "" {
		providerName = g.provider
	}

	apiKey := creds.GetAPIKey(providerName)
	endpoint := cfg.Providers[providerName].Endpoint
	prov, err := buildProvider(providerName, endpoint, model, apiKey)
	if err != nil {
		return nil, err
	}

	broker := registry.NewBroker()
	if g.allowAll {
		broker.SetApproveAll(true)
	} else {
		broker.SetHandler(stdinConfirmHandler)
	}
	reg := registry.New(broker)

	mcpManager := mcp.NewManager()
	if err := mcpManager.SetDisabledPatterns(cfg.DisabledMcpPatterns); err != nil {
		log.Warn().Err(err).Msg("invalid disabledMcpPatterns entry")
	}
	for name, sc := range cfg.McpServers {
		mcpManager.AddServer(name, mcp.ServerConfig{Command: sc.Command, Args: sc.Args, Env: sc.Env})
		if err := mcpManager.Connect(context.Background(), name); err != nil {
			log.Warn().Err(err).Str("server", name).Msg("MCP server connect failed, will retry lazily")
		}
	}
	for _, t := range mcpManager.ToolsForRegistration() {
		if err := reg.Register(t); err != nil {
			log.Warn().Err(err).Str("tool", t.Name).Msg("duplicate MCP tool name, skipped")
		}
	}

	memoryFile := cfg.MemoryFile
	if g.memoryFile != "" {
		memoryFile = g.memoryFile
	}
	var memStore *memory.Store
	if !g.noMemory && memoryFile != "" {
		memStore = memory.New(memoryFile, memory.DefaultMaxMemories)
		if err := memStore.Init(); err != nil {
			log.Warn().Err(err).Msg("memory store init failed, continuing without persisted memory")
			memStore = nil
		}
	}

	convPath := cfg.ConversationFile
	if !g.save {
		convPath = "" // in-memory only unless persistence was requested
	}
	convStore := conversation.New(convPath)
	convStore.LoadHistory()

	skillReg := skill.New()
	dirs := append([]string{}, cfg.SkillDirectories...)
	dirs = append(dirs, g.skillsDirs...)
	if err := skillReg.Discover(dirs); err != nil {
		log.Warn().Err(err).Msg("skill discovery failed")
	}

	webCache := openWebCache(cfg)

	promptBase := buildPromptBase(cfg.SystemPrompt, g.agentsMD)
	projectIndex := buildProjectIndex(".")

	a := &app{
		cfg:          cfg,
		creds:        creds,
		flags:        g,
		providerName: providerName,
		model:        model,
		prov:         prov,
		registry:     reg,
		broker:       broker,
		mcpManager:   mcpManager,
		memoryStore:  memStore,
		convStore:    convStore,
		skillReg:     skillReg,
		webCache:     webCache,
		promptBase:   promptBase,
		projectIndex: projectIndex,
	}
	a.systemPrompt = a.renderSystemPrompt()

	pad, err := tools.Register(reg, tools.Deps{
		Root:          ".",
		Tools:         cfg.Tools,
		Provider:      prov,
		Model:         model,
		SkillRegistry: skillReg,
		WebCache:      webCache,
		ExaAPIKey:     creds.GetAPIKey("exa_ai"),
		MaxContext:    cfg.MaxContextTokensOrDefault(),
		MaxMemory:     cfg.MaxMemoryTokens,
		OnSkillLoad:   a.onSkillLoad,
		OnFileWritten: a.onFileWritten,
	})
	if err != nil {
		return nil, fmt.Errorf("register built-in tools: %w", err)
	}
	a.scratchpad = pad

	return a, nil
}

// onSkillLoad is the skill tool's on-load callback (spec §9): it appends
// the loaded skill's content to conversation history as a system message
// and applies any allowedTools restriction.
func (a *app) onSkillLoad(name, content string, allowedTools []string) {
	a.convStore.Append(provider.Message{
		Role:      "system",
		Content:   fmt.Sprintf("<loaded_skill name=%q>\n%s\n</loaded_skill>", name, content),
		CreatedAt: time.Now(),
	})
	if allowedTools != nil {
		a.registry.RestrictTo(allowedTools)
	}
}

// onFileWritten is the write_file/edit_file success callback: it keeps the
// project symbol outline baked into the system prompt from going stale the
// moment the agent edits the file it was built from.
func (a *app) onFileWritten(absPath string) {
	if a.projectIndex == nil {
		return
	}
	a.projectIndex.UpdateFile(absPath)
	a.systemPrompt = a.renderSystemPrompt()
}

// renderSystemPrompt combines the static prompt base with a fresh render of
// the current project index, so a.newAgent always sees an up-to-date outline
// without re-walking the tree on every turn.
func (a *app) renderSystemPrompt() string {
	prompt := a.promptBase
	if a.projectIndex == nil {
		return prompt
	}
	if outline := treesitter.FormatOutlineOrdered(a.projectIndex.Snapshot(), a.projectIndex.Recency()); outline != "" {
		prompt = prompt + "\n\n---\n\n" + outline
	}
	return prompt
}

func (a *app) newAgent() *agent.Agent {
	return agent.New(agent.Options{
		Provider:         a.prov,
		Model:            a.model,
		Registry:         a.registry,
		Memory:           a.memoryStore,
		Conversation:     a.convStore,
		SystemPrompt:     a.systemPrompt,
		MaxContextTokens: a.cfg.MaxContextTokensOrDefault(),
		MaxMemoryTokens:  a.cfg.MaxMemoryTokens,
		Scratchpad:       a.scratchpad,
	})
}

func (a *app) close() {
	if a.memoryStore != nil {
		_ = a.memoryStore.Close()
	}
	_ = a.convStore.Close()
	if a.webCache != nil {
		_ = a.webCache.Close()
	}
	a.mcpManager.DisconnectAll()
	_ = a.prov.Close()
}

// defaultEndpoints gives the OpenAI-compatible backend a base URL for
// providers that share its wire shape but aren't literally OpenAI.
var defaultEndpoints = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"ollama":     "http://localhost:11434/v1",
	"openrouter": "https://openrouter.ai/api/v1",
}

func buildProvider(name, endpoint, model, apiKey string) (provider.Provider, error) {
	switch name {
	case "anthropic":
		return provider.NewAnthropicBackend(name, endpoint, apiKey, model, provider.Options{}), nil
	case "openai", "ollama", "openrouter", "opencode":
		if endpoint == "" {
			endpoint = defaultEndpoints[name]
		}
		if endpoint == "" {
			return nil, fmt.Errorf("provider %q needs an endpoint: set providers.%s.endpoint in config.yaml", name, name)
		}
		return provider.NewOpenAIBackend(name, endpoint, apiKey, model, provider.Options{}), nil
	default:
		return nil, fmt.Errorf("provider %q has no backend wired up in this build", name)
	}
}

func openWebCache(cfg *config.Config) *store.Cache {
	dataDir, err := config.EnsureDataDir()
	if err != nil {
		log.Warn().Err(err).Msg("cache dir unavailable, web tools will run uncached")
		return nil
	}
	cache, err := store.Open(filepath.Join(dataDir, "cache.db"), 24*time.Hour)
	if err != nil {
		log.Warn().Err(err).Msg("cache open failed, web tools will run uncached")
		return nil
	}
	return cache
}

// buildPromptBase assembles the part of the system prompt that never
// changes over the life of a session: AGENTS.md-style instructions layered
// over the configured (or default) prompt. The project outline is rendered
// separately by renderSystemPrompt since it's re-derived from the live
// treesitter.Index as files are edited.
func buildPromptBase(configured, agentsMDOverride string) string {
	instructions := loadAgentInstructions(agentsMDOverride)
	if configured == "" {
		configured = defaultSystemPrompt
	}
	prompt := configured
	if instructions != "" {
		prompt = instructions + "\n\n---\n\n" + prompt
	}
	return prompt
}

// buildProjectIndex indexes the working directory with the tree-sitter Go
// grammar for system-prompt outline injection. Returns nil if the build
// fails or the directory has no supported source files; renderSystemPrompt
// treats a nil index as "no outline" rather than an error.
func buildProjectIndex(root string) *treesitter.Index {
	idx := treesitter.NewIndex(root)
	if err := idx.Build(); err != nil {
		log.Warn().Err(err).Msg("project index build failed, continuing without an outline")
		return nil
	}
	if len(idx.Files()) == 0 {
		return nil
	}
	return idx
}

const defaultSystemPrompt = `You are a terminal-based coding assistant. You have tools to read, search, ` +
	`and edit files, run shell commands, and search the web. Work iteratively: use tools to gather the ` +
	`context you need before making changes, and prefer small, verifiable steps.`

// stdinConfirmHandler prompts on stderr and reads a y/n answer from stdin
// for each dangerous tool-call batch.
func stdinConfirmHandler(req registry.ConfirmationRequest) registry.ConfirmationResult {
	fmt.Fprintln(os.Stderr, "\nConfirmation required:")
	for _, a := range req.Actions {
		fmt.Fprintf(os.Stderr, "  - %s: %s\n", a.Tool, a.Description)
	}
	fmt.Fprint(os.Stderr, "Approve all? [y/N] ")

	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	if line == "y" || line == "yes" {
		return registry.ConfirmationResult{Type: registry.ConfirmApproveAll}
	}
	return registry.ConfirmationResult{Type: registry.ConfirmDenyAll}
}
