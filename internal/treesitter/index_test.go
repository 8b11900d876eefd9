package treesitter

import (
	"os"
	"path/filepath"
	"testing"
)

func writeGoFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIndexBuildFindsSupportedFiles(t *testing.T) {
	dir := t.TempDir()
	writeGoFile(t, dir, "a.go", "package a\n\nfunc Hello() string { return \"hi\" }\n")
	writeGoFile(t, dir, "b.txt", "not a source file")

	idx := NewIndex(dir)
	if err := idx.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	files := idx.Files()
	if len(files) != 1 || files[0] != "a.go" {
		t.Fatalf("expected only a.go indexed, got %v", files)
	}

	syms := idx.Symbols("a.go")
	found := false
	for _, s := range syms {
		if s.Name == "Hello" && s.Kind == KindFunction {
			found = true
		}
	}
	if !found {
		t.Errorf("expected to find function Hello in a.go symbols: %+v", syms)
	}
}

func TestUpdateFileReparsesAndBumpsRecency(t *testing.T) {
	dir := t.TempDir()
	path := writeGoFile(t, dir, "a.go", "package a\n\nfunc One() {}\n")
	writeGoFile(t, dir, "b.go", "package a\n\nfunc Two() {}\n")

	idx := NewIndex(dir)
	if err := idx.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}

	// b.go was indexed after a.go during the walk, so it starts more recent.
	before := idx.Recency()
	if before["b.go"] <= before["a.go"] {
		t.Fatalf("expected b.go to start more recent than a.go, got %v", before)
	}

	// Editing a.go should make it the most recent file in the index.
	if err := os.WriteFile(path, []byte("package a\n\nfunc OneRenamed() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	idx.UpdateFile(path)

	syms := idx.Symbols("a.go")
	if len(syms) != 2 || syms[0].Kind != KindPackage || syms[1].Name != "OneRenamed" {
		t.Fatalf("expected a.go's index to reflect the edit, got %+v", syms)
	}

	after := idx.Recency()
	if after["a.go"] <= after["b.go"] {
		t.Fatalf("expected a.go to become the most recent file after UpdateFile, got %v", after)
	}
}

func TestUpdateFileRemovesEntryWhenFileBecomesEmpty(t *testing.T) {
	dir := t.TempDir()
	path := writeGoFile(t, dir, "a.go", "package a\n\nfunc One() {}\n")

	idx := NewIndex(dir)
	if err := idx.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(idx.Files()) != 1 {
		t.Fatalf("expected 1 file indexed, got %d", len(idx.Files()))
	}

	if err := os.WriteFile(path, []byte("package a\n"), 0644); err != nil {
		t.Fatal(err)
	}
	idx.UpdateFile(path)

	if len(idx.Files()) != 0 {
		t.Errorf("expected the now-empty file to drop out of the index, got %v", idx.Files())
	}
	if _, ok := idx.Recency()["a.go"]; ok {
		t.Error("expected the recency entry for a.go to be removed too")
	}
}

func TestFormatOutlineOrderedPrioritizesRecentFile(t *testing.T) {
	snap := map[string][]Symbol{
		"z_old.go": {{Name: "Old", Kind: KindFunction}},
		"a_new.go": {{Name: "New", Kind: KindFunction}},
	}
	recency := map[string]uint64{"z_old.go": 1, "a_new.go": 2}

	outline := FormatOutlineOrdered(snap, recency)
	zIdx := indexOf(outline, "z_old.go")
	aIdx := indexOf(outline, "a_new.go")
	if zIdx == -1 || aIdx == -1 {
		t.Fatalf("expected both files in outline:\n%s", outline)
	}
	if aIdx > zIdx {
		t.Errorf("expected a_new.go (more recent) to be listed before z_old.go, got:\n%s", outline)
	}
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
