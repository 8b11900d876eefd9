package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kestrelcode/tinyagent/internal/registry"
	"github.com/kestrelcode/tinyagent/internal/skill"
)

type skillArgs struct {
	Name string `json:"name"`
}

// OnSkillLoad is invoked after a skill's content is loaded, so the caller
// (the Agent Loop) can append it to conversation history and apply any
// allowedTools restriction via the registry. Modeling the side effect as a
// callback avoids a cyclic Agent <-> Registry <-> Skill <-> Tool dependency.
type OnSkillLoad func(name, content string, allowedTools []string)

// NewSkillTool builds skill, which lists or loads a skill by name.
func NewSkillTool(reg *skill.Registry, onLoad OnSkillLoad) registry.Tool {
	return registry.Tool{
		Name: "skill",
		Description: `List available skills, or load one by name. Loading a skill injects its ` +
			`instructions into the conversation and, if the skill declares allowedTools, restricts the ` +
			`visible tool set to that list until the next user turn.`,
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"name": {"type": "string", "description": "Name of the skill to load. Omit to list all available skills."}
			}
		}`),
		Execute: func(_ context.Context, raw json.RawMessage) (registry.Result, error) {
			var args skillArgs
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &args); err != nil {
					return registry.Result{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
				}
			}

			if args.Name == "" {
				return registry.Result{Success: true, Output: listSkills(reg)}, nil
			}

			s, ok := reg.Get(args.Name)
			if !ok {
				return registry.Result{Error: fmt.Sprintf("skill %q not found", args.Name)}, nil
			}
			content, err := reg.LoadContent(s)
			if err != nil {
				return registry.Result{Error: fmt.Sprintf("failed to load skill: %v", err)}, nil
			}

			if onLoad != nil {
				onLoad(s.Name, content, s.AllowedTools)
			}
			return registry.Result{Success: true, Output: fmt.Sprintf("Loaded skill %q.", s.Name)}, nil
		},
	}
}

func listSkills(reg *skill.Registry) string {
	skills := reg.List()
	if len(skills) == 0 {
		return "No skills available."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Available skills (%d):\n", len(skills))
	for _, s := range skills {
		fmt.Fprintf(&b, "- %s: %s\n", s.Name, s.Description)
	}
	return b.String()
}
