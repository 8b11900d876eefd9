// Package skill discovers and loads skills: markdown documents with YAML
// frontmatter that the Agent Loop can inject into conversation history on
// demand, optionally narrowing the Tool Registry to an allowedTools list
// for the remainder of the turn.
package skill

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Skill is one discovered or built-in skill.
type Skill struct {
	Name         string
	Description  string
	AllowedTools []string // nil means unrestricted
	Location     string   // file path, or "builtin://<name>"
	BaseDir      string   // directory containing SKILL.md; empty for builtins
	body         string   // markdown body after frontmatter; pre-loaded for builtins
}

type frontmatter struct {
	Name         string      `yaml:"name"`
	Description  string      `yaml:"description"`
	AllowedTools interface{} `yaml:"allowedTools"`
}

// builtin is a compile-time skill bundled with the binary.
type builtin struct {
	name         string
	description  string
	allowedTools []string
	body         string
}

// builtinSkills is the constant table of skills shipped with the binary.
var builtinSkills = []builtin{
	{
		name:        "review",
		description: "Review the working tree's pending changes for correctness and style before committing.",
		body: `Review the current diff against the repository's conventions. Read the
changed files, check for correctness, unhandled errors, and inconsistent
naming, and report findings grouped by severity. Do not modify files.`,
	},
	{
		name:         "summarize",
		description:  "Summarize the project's structure and recent activity for someone new to the repository.",
		allowedTools: []string{"read_file", "list_directory", "grep", "glob", "git_status", "git_diff"},
		body: `Produce a concise orientation summary: the project's purpose, its top-level
layout, and what has changed recently. Prefer reading a handful of key files
over an exhaustive walk.`,
	},
}

// Registry owns the discovered and built-in skill catalog.
type Registry struct {
	skills map[string]*Skill
}

// New creates a Registry pre-populated with the built-in skills.
func New() *Registry {
	r := &Registry{skills: make(map[string]*Skill)}
	for _, b := range builtinSkills {
		r.skills[b.name] = &Skill{
			Name:         b.name,
			Description:  b.description,
			AllowedTools: b.allowedTools,
			Location:     "builtin://" + b.name,
			body:         b.body,
		}
	}
	return r
}

// Discover scans each directory for "*/SKILL.md" files and registers any
// with valid frontmatter (at least name and description), overriding a
// built-in of the same name if one exists.
func (r *Registry) Discover(dirs []string) error {
	for _, dir := range dirs {
		matches, err := filepath.Glob(filepath.Join(dir, "*", "SKILL.md"))
		if err != nil {
			return fmt.Errorf("skill: glob %q: %w", dir, err)
		}
		for _, path := range matches {
			s, err := loadFromFile(path)
			if err != nil {
				continue // malformed skill files are skipped, not fatal
			}
			r.skills[s.Name] = s
		}
	}
	return nil
}

func loadFromFile(path string) (*Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fm, body, err := parseFrontmatter(string(data))
	if err != nil {
		return nil, err
	}
	if fm.Name == "" || fm.Description == "" {
		return nil, fmt.Errorf("skill: %s missing required name/description", path)
	}
	return &Skill{
		Name:         fm.Name,
		Description:  fm.Description,
		AllowedTools: parseAllowedTools(fm.AllowedTools),
		Location:     path,
		BaseDir:      filepath.Dir(path),
		body:         body,
	}, nil
}

// parseFrontmatter splits a "---\nyaml\n---\nbody" document.
func parseFrontmatter(content string) (frontmatter, string, error) {
	var fm frontmatter
	content = strings.TrimLeft(content, "\xef\xbb\xbf")
	if !strings.HasPrefix(content, "---") {
		return fm, "", fmt.Errorf("skill: no frontmatter delimiter")
	}
	rest := content[3:]
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return fm, "", fmt.Errorf("skill: unterminated frontmatter")
	}
	yamlPart := rest[:idx]
	body := rest[idx+4:]
	body = strings.TrimPrefix(body, "\n")

	if err := yaml.Unmarshal([]byte(yamlPart), &fm); err != nil {
		return fm, "", fmt.Errorf("skill: parse frontmatter: %w", err)
	}
	return fm, strings.TrimSpace(body), nil
}

// parseAllowedTools accepts either a YAML array or a space-separated
// string for allowedTools.
func parseAllowedTools(v interface{}) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.Fields(val)
	default:
		return nil
	}
}

// List returns every registered skill.
func (r *Registry) List() []*Skill {
	out := make([]*Skill, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s)
	}
	return out
}

// Get looks up a skill by name.
func (r *Registry) Get(name string) (*Skill, bool) {
	s, ok := r.skills[name]
	return s, ok
}

// LoadContent returns the skill's body wrapped for injection into
// conversation history, reading from disk for file-based skills and using
// the embedded body for built-ins.
func (r *Registry) LoadContent(s *Skill) (string, error) {
	body := s.body
	if s.Location != "" && !strings.HasPrefix(s.Location, "builtin://") {
		data, err := os.ReadFile(s.Location)
		if err != nil {
			return "", fmt.Errorf("skill: read %s: %w", s.Location, err)
		}
		_, parsedBody, err := parseFrontmatter(string(data))
		if err != nil {
			return "", err
		}
		body = parsedBody
	}

	escaped := xmlEscape(body)
	return fmt.Sprintf(`<loaded_skill name=%q base_dir=%q>%s</loaded_skill>`, s.Name, s.BaseDir, escaped), nil
}

func xmlEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&apos;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
