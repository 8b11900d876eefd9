// Package config handles configuration loading from YAML files and
// environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure, persisted at
// ~/.tiny-agent/config.yaml.
type Config struct {
	DefaultModel        string                    `yaml:"defaultModel"`
	SystemPrompt        string                    `yaml:"systemPrompt"`
	ConversationFile    string                    `yaml:"conversationFile"`
	MemoryFile          string                    `yaml:"memoryFile"`
	MaxContextTokens    int                       `yaml:"maxContextTokens"`
	MaxMemoryTokens     int                       `yaml:"maxMemoryTokens"`
	TrackContextUsage   bool                      `yaml:"trackContextUsage"`
	Thinking            bool                      `yaml:"thinking"`
	Providers           map[string]ProviderConfig `yaml:"providers"`
	Tools               ToolsConfig               `yaml:"tools"`
	McpServers          map[string]McpServerConfig `yaml:"mcpServers"`
	DisabledMcpPatterns []string                  `yaml:"disabledMcpPatterns"`
	SkillDirectories    []string                  `yaml:"skillDirectories"`
}

// ProviderConfig holds LLM provider settings for one configured backend.
type ProviderConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// ToolsConfig holds built-in tool behavior settings.
type ToolsConfig struct {
	BashTimeoutSeconds int `yaml:"bashTimeoutSeconds"`
}

// BashTimeoutOrDefault returns the configured bash timeout or 60s if unset.
func (t ToolsConfig) BashTimeoutOrDefault() int {
	if t.BashTimeoutSeconds <= 0 {
		return 60
	}
	return t.BashTimeoutSeconds
}

// McpServerConfig describes one MCP server entry under mcpServers.
type McpServerConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
}

// MaxContextTokensOrDefault returns the configured context budget or 128000.
func (c *Config) MaxContextTokensOrDefault() int {
	if c.MaxContextTokens <= 0 {
		return 128000
	}
	return c.MaxContextTokens
}

// Load reads configuration from a YAML file and applies environment variable
// overrides. A missing file yields defaults rather than an error — a fresh
// install should still run.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Providers:         make(map[string]ProviderConfig),
		McpServers:        make(map[string]McpServerConfig),
		TrackContextUsage: true,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// no config file yet; defaults stand.
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate returns an error if the configuration is malformed in a way that
// cannot be silently defaulted.
func (c *Config) Validate() error {
	var errs []error
	for name, pc := range c.Providers {
		if pc.Model == "" {
			errs = append(errs, fmt.Errorf("providers.%s.model is required", name))
		}
		if pc.Temperature < 0.0 || pc.Temperature > 2.0 {
			errs = append(errs, fmt.Errorf("providers.%s.temperature=%v must be between 0.0 and 2.0", name, pc.Temperature))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// applyEnvOverrides applies the environment variables listed in the
// specification's external-interfaces section, in order of precedence
// (env wins over file).
func applyEnvOverrides(cfg *Config) {
	for _, setter := range []struct {
		env   string
		apply func(string)
	}{
		{"TINY_AGENT_MODEL", func(v string) { cfg.DefaultModel = v }},
		{"TINY_AGENT_SYSTEM_PROMPT", func(v string) { cfg.SystemPrompt = v }},
		{"TINY_AGENT_CONVERSATION_FILE", func(v string) { cfg.ConversationFile = v }},
		{"TINY_AGENT_MEMORY_FILE", func(v string) { cfg.MemoryFile = v }},
		{"TINY_AGENT_MAX_CONTEXT_TOKENS", func(v string) { setIntIfValid(v, &cfg.MaxContextTokens) }},
		{"TINY_AGENT_MAX_MEMORY_TOKENS", func(v string) { setIntIfValid(v, &cfg.MaxMemoryTokens) }},
	} {
		if v := os.Getenv(setter.env); v != "" {
			setter.apply(v)
		}
	}
}

func setIntIfValid(v string, dst *int) {
	n := 0
	for _, r := range v {
		if r < '0' || r > '9' {
			return
		}
		n = n*10 + int(r-'0')
	}
	*dst = n
}

// DataDir returns the path to the tiny-agent data directory (~/.tiny-agent).
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tiny-agent"), nil
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", err
	}
	return dir, nil
}

// DefaultConfigPath returns ~/.tiny-agent/config.yaml, honoring
// TINY_AGENT_CONFIG_YAML when set.
func DefaultConfigPath() (string, error) {
	if v := os.Getenv("TINY_AGENT_CONFIG_YAML"); v != "" {
		return v, nil
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadAny resolves and loads the config file, honoring TINY_AGENT_CONFIG_JSON
// (an alternate JSON-encoded config, checked first) and TINY_AGENT_CONFIG_YAML
// before falling back to the default YAML path.
func LoadAny() (*Config, error) {
	if v := os.Getenv("TINY_AGENT_CONFIG_JSON"); v != "" {
		return loadJSON(v)
	}
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

func loadJSON(path string) (*Config, error) {
	cfg := &Config{
		Providers:         make(map[string]ProviderConfig),
		McpServers:        make(map[string]McpServerConfig),
		TrackContextUsage: true,
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
