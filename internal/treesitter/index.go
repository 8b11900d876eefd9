package treesitter

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/kestrelcode/tinyagent/internal/filesearch"
)

// Index holds a project-wide symbol map built from tree-sitter parsing.
type Index struct {
	mu      sync.RWMutex
	files   map[string][]Symbol // relPath -> symbols
	seq     map[string]uint64   // relPath -> recency sequence number
	counter uint64
	root    string
}

// NewIndex creates an empty index rooted at dir.
func NewIndex(root string) *Index {
	return &Index{
		files: make(map[string][]Symbol),
		seq:   make(map[string]uint64),
		root:  root,
	}
}

// Build walks the project tree, parsing every supported file.
// Respects .gitignore via filesearch.GitignoreMatcher.
func (idx *Index) Build() error {
	gitignorePath := filepath.Join(idx.root, ".gitignore")
	matcher, err := filesearch.NewGitignoreMatcher(gitignorePath)
	if err != nil {
		matcher, _ = filesearch.NewGitignoreMatcher("")
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	return filepath.WalkDir(idx.root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		rel, err := filepath.Rel(idx.root, path)
		if err != nil {
			return nil
		}

		// Skip .git and gitignored paths.
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			if matcher.Matches(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.Matches(rel, false) {
			return nil
		}
		if !Supported(path) {
			return nil
		}

		// Skip large files (>1MB).
		info, err := d.Info()
		if err != nil || info.Size() > 1<<20 {
			return nil
		}

		syms, err := ParseFile(path)
		if err != nil || len(syms) == 0 {
			return nil
		}
		idx.files[rel] = syms
		idx.counter++
		idx.seq[rel] = idx.counter
		return nil
	})
}

// UpdateFile re-parses a single file and updates the index, bumping its
// recency sequence number so FormatOutlineOrdered keeps it visible ahead of
// files that haven't changed this session. A file that no longer parses, or
// holds nothing but its package clause and imports, is dropped from the
// index.
func (idx *Index) UpdateFile(absPath string) {
	rel, err := filepath.Rel(idx.root, absPath)
	if err != nil || !Supported(absPath) {
		return
	}
	syms, err := ParseFile(absPath)
	empty := true
	for _, s := range syms {
		if s.Kind != KindPackage && s.Kind != KindImport {
			empty = false
			break
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err != nil || empty {
		delete(idx.files, rel)
		delete(idx.seq, rel)
		return
	}
	idx.files[rel] = syms
	idx.counter++
	idx.seq[rel] = idx.counter
}

// Recency returns a snapshot of each indexed path's sequence number, highest
// meaning most recently (re-)parsed.
func (idx *Index) Recency() map[string]uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[string]uint64, len(idx.seq))
	for k, v := range idx.seq {
		out[k] = v
	}
	return out
}

// Files returns a snapshot of all indexed file paths (sorted is not guaranteed).
func (idx *Index) Files() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	paths := make([]string, 0, len(idx.files))
	for p := range idx.files {
		paths = append(paths, p)
	}
	return paths
}

// Symbols returns symbols for a given relative path.
func (idx *Index) Symbols(relPath string) []Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.files[relPath]
}

// Snapshot returns a copy of the full index map.
func (idx *Index) Snapshot() map[string][]Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[string][]Symbol, len(idx.files))
	for k, v := range idx.files {
		out[k] = v
	}
	return out
}
