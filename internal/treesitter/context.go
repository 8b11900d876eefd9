package treesitter

import (
	"fmt"
	"sort"
	"strings"
)

// MaxOutlineBytes caps the outline to avoid consuming too much of the LLM
// context window. ~16KB ≈ 4-5K tokens, enough for ~100 Go files.
const MaxOutlineBytes = 16 * 1024

// FormatOutline produces a compact YAML-like project outline for LLM system
// prompt injection. Groups methods by receiver type under each file.
// Output is capped at MaxOutlineBytes to protect the context window.
//
// Example output:
//
//	# Project Symbols
//	internal/mcp/proxy.go:
//	  type: ToolHandler
//	  Proxy: RegisterTool, CallTool, ListTools
//	  fn: NewProxy, parseRetryAfter
func FormatOutline(snap map[string][]Symbol) string {
	return FormatOutlineOrdered(snap, nil)
}

// FormatOutlineOrdered is FormatOutline with an optional recency signal:
// when recency is non-nil, paths with a higher sequence number are visited
// first. Index.UpdateFile bumps a path's sequence number every time the
// agent edits that file mid-session, so a file just edited stays visible
// in the outline even if MaxOutlineBytes truncates before reaching it
// alphabetically — without this, a file near the end of the alphabet that
// the agent is actively working on could never appear in a large project.
func FormatOutlineOrdered(snap map[string][]Symbol, recency map[string]uint64) string {
	if len(snap) == 0 {
		return ""
	}

	paths := make([]string, 0, len(snap))
	for p := range snap {
		paths = append(paths, p)
	}
	if recency == nil {
		sort.Strings(paths)
	} else {
		sort.Slice(paths, func(i, j int) bool {
			si, sj := recency[paths[i]], recency[paths[j]]
			if si != sj {
				return si > sj
			}
			return paths[i] < paths[j]
		})
	}

	var b strings.Builder
	b.WriteString("# Project Symbols\n")

	for _, path := range paths {
		syms := snap[path]
		text := formatFileCompact(syms)
		if text == "" {
			continue
		}
		entry := fmt.Sprintf("%s:\n%s", path, text)
		if b.Len()+len(entry) > MaxOutlineBytes {
			fmt.Fprintf(&b, "# ... truncated (%d files total)\n", len(paths))
			break
		}
		b.WriteString(entry)
	}
	return b.String()
}

// fileGroups collects symbols into categories for compact rendering.
type fileGroups struct {
	methods  map[string][]string // receiver -> method names
	funcs    []string
	types    []string
	typeKids map[string][]string // type name -> nested field/method names
	consts   []string
	vars     []string
}

func newFileGroups() *fileGroups {
	return &fileGroups{methods: make(map[string][]string), typeKids: make(map[string][]string)}
}

func (g *fileGroups) add(s Symbol) {
	switch s.Kind {
	case KindPackage, KindImport:
		// skip
	case KindFunction:
		g.funcs = append(g.funcs, s.Name)
	case KindMethod:
		recv := s.Receiver
		if recv == "" {
			recv = "?"
		}
		g.methods[recv] = append(g.methods[recv], s.Name)
	case KindStruct:
		g.types = append(g.types, s.Name+" (struct)")
		g.addChildren(s)
	case KindInterface:
		g.types = append(g.types, s.Name+" (interface)")
		g.addChildren(s)
	case KindType:
		g.types = append(g.types, s.Name)
	case KindConst:
		g.consts = append(g.consts, s.Name)
	case KindVar:
		g.vars = append(g.vars, s.Name)
	}
}

// addChildren records a struct's fields or an interface's methods, trimmed
// to a handful of names — enough for the model to know a field/method
// exists without bloating the outline with full signatures.
func (g *fileGroups) addChildren(s Symbol) {
	if len(s.Children) == 0 {
		return
	}
	const maxKids = 6
	names := make([]string, 0, len(s.Children))
	for i, c := range s.Children {
		if i >= maxKids {
			names = append(names, fmt.Sprintf("+%d more", len(s.Children)-maxKids))
			break
		}
		names = append(names, c.Name)
	}
	g.typeKids[s.Name] = names
}

func (g *fileGroups) empty() bool {
	return len(g.funcs) == 0 && len(g.methods) == 0 &&
		len(g.types) == 0 && len(g.consts) == 0 && len(g.vars) == 0
}

func (g *fileGroups) render() string {
	var b strings.Builder

	if len(g.types) > 0 {
		fmt.Fprintf(&b, "  type: %s\n", strings.Join(g.types, ", "))
	}
	typeNames := make([]string, 0, len(g.typeKids))
	for name := range g.typeKids {
		typeNames = append(typeNames, name)
	}
	sort.Strings(typeNames)
	for _, name := range typeNames {
		fmt.Fprintf(&b, "    %s: %s\n", name, strings.Join(g.typeKids[name], ", "))
	}

	recvs := make([]string, 0, len(g.methods))
	for r := range g.methods {
		recvs = append(recvs, r)
	}
	sort.Strings(recvs)
	for _, recv := range recvs {
		fmt.Fprintf(&b, "  %s: %s\n", recv, strings.Join(g.methods[recv], ", "))
	}

	if len(g.funcs) > 0 {
		fmt.Fprintf(&b, "  fn: %s\n", strings.Join(g.funcs, ", "))
	}
	if len(g.consts) > 0 {
		fmt.Fprintf(&b, "  const: %s\n", strings.Join(g.consts, ", "))
	}
	if len(g.vars) > 0 {
		fmt.Fprintf(&b, "  var: %s\n", strings.Join(g.vars, ", "))
	}

	return b.String()
}

// formatFileCompact produces a compact per-file representation.
func formatFileCompact(syms []Symbol) string {
	g := newFileGroups()
	for _, s := range syms {
		g.add(s)
	}
	if g.empty() {
		return ""
	}
	return g.render()
}
