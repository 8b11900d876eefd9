package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/kestrelcode/tinyagent/internal/registry"
)

type listArgs struct {
	Path string `json:"path,omitempty"`
}

// NewListDirectoryTool builds list_directory, a one-level directory listing
// relative to root.
func NewListDirectoryTool(root string) registry.Tool {
	return registry.Tool{
		Name:        "list_directory",
		Description: "List the entries of a directory (non-recursive). Directories are suffixed with /.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Directory to list, relative to the working directory. Defaults to the working directory itself."}
			}
		}`),
		Execute: func(_ context.Context, raw json.RawMessage) (registry.Result, error) {
			var args listArgs
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &args); err != nil {
					return registry.Result{Error: fmt.Sprintf("invalid arguments: %v", err)}, nil
				}
			}
			if args.Path == "" {
				args.Path = "."
			}

			abs, err := ValidateReadPath(root, args.Path)
			if err != nil {
				return registry.Result{Error: err.Error()}, nil
			}
			entries, err := os.ReadDir(abs)
			if err != nil {
				return registry.Result{Error: fmt.Sprintf("failed to list directory: %v", err)}, nil
			}

			names := make([]string, 0, len(entries))
			for _, e := range entries {
				name := e.Name()
				if e.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}
			sort.Strings(names)

			if len(names) == 0 {
				return registry.Result{Success: true, Output: "(empty directory)"}, nil
			}
			return registry.Result{Success: true, Output: strings.Join(names, "\n")}, nil
		},
	}
}
