package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kestrelcode/tinyagent/internal/registry"
)

// CreateToolFromMcp wraps one MCP tool definition as a registry.Tool. The
// name is namespaced by server so two servers can expose a same-named tool
// without colliding; every MCP-backed tool is dangerous by default since
// the Manager cannot itself audit what a subprocess does.
func CreateToolFromMcp(m *Manager, serverName string, def Tool) registry.Tool {
	name := fmt.Sprintf("mcp_%s_%s", serverName, def.Name)
	return registry.Tool{
		Name:        name,
		Description: fmt.Sprintf("[MCP: %s] %s", serverName, def.Description),
		Parameters:  def.InputSchema,
		Dangerous:   fmt.Sprintf("Execute %s via MCP server %q", def.Name, serverName),
		Execute: func(ctx context.Context, args json.RawMessage) (registry.Result, error) {
			result, err := m.CallTool(ctx, serverName, def.Name, args)
			if err != nil {
				return registry.Result{Success: false, Error: err.Error()}, nil
			}
			output := ConcatenatedOutput(result)
			if result.IsError {
				return registry.Result{Success: false, Error: output}, nil
			}
			return registry.Result{Success: true, Output: output}, nil
		},
	}
}

// ToolsForRegistration lists every server's current tools as registry.Tool
// values, skipping names that match a disabled pattern.
func (m *Manager) ToolsForRegistration() []registry.Tool {
	var out []registry.Tool
	for _, name := range m.ServerNames() {
		for _, def := range m.ListTools(name) {
			qualified := fmt.Sprintf("mcp_%s_%s", name, def.Name)
			if m.IsDisabled(qualified) {
				continue
			}
			out = append(out, CreateToolFromMcp(m, name, def))
		}
	}
	return out
}
