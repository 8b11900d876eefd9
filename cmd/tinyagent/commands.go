package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kestrelcode/tinyagent/internal/config"
	"github.com/kestrelcode/tinyagent/internal/mcp"
	"github.com/kestrelcode/tinyagent/internal/memory"
)

func stateName(s mcp.State) string {
	switch s {
	case mcp.StateInit:
		return "init"
	case mcp.StateConnecting:
		return "connecting"
	case mcp.StateConnected:
		return "connected"
	case mcp.StateFailed:
		return "failed"
	case mcp.StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// cmdConfig implements `tinyagent config [open]`.
func cmdConfig(a *app, args []string) error {
	path, err := config.DefaultConfigPath()
	if err != nil {
		return err
	}
	if len(args) > 0 && args[0] == "open" {
		editor := os.Getenv("VISUAL")
		if editor == "" {
			editor = os.Getenv("EDITOR")
		}
		if editor == "" {
			editor = "vi"
		}
		cmd := exec.Command(editor, path)
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
		return cmd.Run()
	}
	data, err := yaml.Marshal(a.cfg)
	if err != nil {
		return err
	}
	fmt.Printf("# %s\n%s", path, data)
	return nil
}

// cmdStatus implements `tinyagent status`.
func cmdStatus(a *app) error {
	fmt.Printf("provider:   %s\n", a.providerName)
	fmt.Printf("model:      %s\n", a.model)
	fmt.Printf("max context tokens: %d\n", a.cfg.MaxContextTokensOrDefault())
	fmt.Printf("max memory tokens:  %d\n", a.cfg.MaxMemoryTokens)
	if a.memoryStore != nil {
		fmt.Printf("memories stored:    %d\n", len(a.memoryStore.List()))
	} else {
		fmt.Println("memories stored:    (disabled)")
	}
	fmt.Printf("skills discovered:  %d\n", len(a.skillReg.List()))
	servers := a.mcpManager.ServerNames()
	fmt.Printf("mcp servers:        %d\n", len(servers))
	for _, name := range servers {
		fmt.Printf("  - %-20s %s\n", name, stateName(a.mcpManager.State(name)))
	}
	fmt.Printf("tools registered:   %d\n", len(a.registry.List()))
	return nil
}

// cmdMemory implements `tinyagent memory [list|add|clear|stats]`.
func cmdMemory(a *app, args []string) error {
	if a.memoryStore == nil {
		return fmt.Errorf("memory store is disabled (--no-memory or no memoryFile configured)")
	}
	sub := "list"
	if len(args) > 0 {
		sub = args[0]
		args = args[1:]
	}
	switch sub {
	case "list":
		for _, m := range a.memoryStore.List() {
			fmt.Printf("[%s] %s (%s, accessed %d)\n", m.ID[:8], m.Content, m.Category, m.AccessCount)
		}
	case "add":
		content := strings.Join(args, " ")
		if content == "" {
			return fmt.Errorf("usage: tinyagent memory add <text>")
		}
		m := a.memoryStore.Add(content, memory.CategoryUser)
		fmt.Printf("added [%s]\n", m.ID[:8])
	case "clear":
		a.memoryStore.Clear()
		fmt.Println("cleared")
	case "stats":
		all := a.memoryStore.List()
		fmt.Printf("total: %d\n", len(all))
		for _, cat := range []memory.Category{memory.CategoryUser, memory.CategoryProject, memory.CategoryCodebase} {
			fmt.Printf("  %-10s %d\n", cat, len(a.memoryStore.ListByCategory(cat)))
		}
	default:
		return fmt.Errorf("unknown memory subcommand %q", sub)
	}
	return nil
}

// cmdSkill implements `tinyagent skill [list|show|init]`.
func cmdSkill(a *app, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub = args[0]
		args = args[1:]
	}
	switch sub {
	case "list":
		for _, s := range a.skillReg.List() {
			fmt.Printf("%-20s %s\n", s.Name, s.Description)
		}
	case "show":
		if len(args) == 0 {
			return fmt.Errorf("usage: tinyagent skill show <name>")
		}
		s, ok := a.skillReg.Get(args[0])
		if !ok {
			return fmt.Errorf("no such skill: %s", args[0])
		}
		content, err := a.skillReg.LoadContent(s)
		if err != nil {
			return err
		}
		fmt.Println(content)
	case "init":
		if len(args) == 0 {
			return fmt.Errorf("usage: tinyagent skill init <name>")
		}
		return initSkill(args[0])
	default:
		return fmt.Errorf("unknown skill subcommand %q", sub)
	}
	return nil
}

func initSkill(name string) error {
	dir := "." + string(os.PathSeparator) + "skills" + string(os.PathSeparator) + name
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	path := dir + string(os.PathSeparator) + "SKILL.md"
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	template := fmt.Sprintf(`---
name: %s
description: TODO describe when this skill should be loaded
---

TODO write the skill's instructions here.
`, name)
	if err := os.WriteFile(path, []byte(template), 0644); err != nil {
		return err
	}
	fmt.Printf("created %s\n", path)
	return nil
}

// cmdMCP implements `tinyagent mcp [list|add|enable|disable]`.
func cmdMCP(a *app, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub = args[0]
		args = args[1:]
	}
	switch sub {
	case "list":
		for _, name := range a.mcpManager.ServerNames() {
			state := stateName(a.mcpManager.State(name))
			tools := a.mcpManager.ListTools(name)
			fmt.Printf("%-20s %-12s %d tool(s)\n", name, state, len(tools))
		}
	case "add":
		if len(args) < 2 {
			return fmt.Errorf("usage: tinyagent mcp add <name> <command> [args...]")
		}
		name, command, rest := args[0], args[1], args[2:]
		if !a.mcpManager.AddServer(name, mcp.ServerConfig{Command: command, Args: rest}) {
			return fmt.Errorf("server %q already registered or command %q not found on PATH", name, command)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.mcpManager.Connect(ctx, name); err != nil {
			return fmt.Errorf("connect %q: %w", name, err)
		}
		fmt.Printf("connected %q\n", name)
		fmt.Println("note: edit config.yaml's mcpServers section to persist this across runs")
	case "enable", "disable":
		if len(args) == 0 {
			return fmt.Errorf("usage: tinyagent mcp %s <tool-glob>", sub)
		}
		fmt.Printf("edit disabledMcpPatterns in config.yaml to %s %q persistently\n", sub, args[0])
	default:
		return fmt.Errorf("unknown mcp subcommand %q", sub)
	}
	return nil
}
