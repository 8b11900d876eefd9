package memory

import (
	"path/filepath"
	"testing"
)

// TestAddFlushReloadRetainsContent covers invariant P3: after
// add(x); flush(); reload(); list() contains a memory with content x.
func TestAddFlushReloadRetainsContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")

	s := New(path, 0)
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	s.Add("user prefers tabs over spaces", CategoryUser)
	if err := s.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	reloaded := New(path, 0)
	if err := reloaded.Init(); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, m := range reloaded.List() {
		if m.Content == "user prefers tabs over spaces" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected reloaded store to contain the added memory, got %+v", reloaded.List())
	}
}

// TestEvictionCapNeverExceeded covers invariant P4: count() <= maxMemories
// always, even as more records are added past the cap.
func TestEvictionCapNeverExceeded(t *testing.T) {
	s := New("", 3)
	for i := 0; i < 10; i++ {
		s.Add("fact", CategoryUser)
		if got := len(s.List()); got > 3 {
			t.Fatalf("store exceeded maxMemories=3 after add #%d: count=%d", i, got)
		}
	}
}

// TestEvictionKeepsMostRecentlyAccessed checks the eviction tiebreak rule:
// when over cap, the least-recently-accessed record is dropped first.
func TestEvictionKeepsMostRecentlyAccessed(t *testing.T) {
	s := New("", 2)
	a := s.Add("a", CategoryUser)
	_ = s.Add("b", CategoryUser)
	// Touch "a" so it is more recently accessed than "b".
	if _, ok := s.Get(a.ID); !ok {
		t.Fatal("expected to find memory a")
	}
	s.Add("c", CategoryUser) // pushes the store over cap=2

	ids := map[string]bool{}
	for _, m := range s.List() {
		ids[m.ID] = true
	}
	if !ids[a.ID] {
		t.Fatal("expected the recently-accessed memory a to survive eviction")
	}
	if len(ids) != 2 {
		t.Fatalf("expected exactly 2 memories after eviction, got %d", len(ids))
	}
}

func TestFindRelevantRanksByOverlapAndCategoryWeight(t *testing.T) {
	s := New("", 0)
	s.Add("the project uses PostgreSQL for storage", CategoryProject)
	s.Add("completely unrelated content about weather", CategoryUser)

	results := s.FindRelevant("what database does the project use", 5)
	if len(results) == 0 {
		t.Fatal("expected at least one relevant memory")
	}
	if results[0].Content != "the project uses PostgreSQL for storage" {
		t.Fatalf("expected the overlapping memory to rank first, got %+v", results[0])
	}
}

func TestFindRelevantRespectsMaxLimit(t *testing.T) {
	s := New("", 0)
	for i := 0; i < 5; i++ {
		s.Add("database connection pooling notes", CategoryProject)
	}
	results := s.FindRelevant("database connection", 2)
	if len(results) != 2 {
		t.Fatalf("expected FindRelevant to cap at 2 results, got %d", len(results))
	}
}

func TestInitOnMissingFileStartsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "does-not-exist.json"), 0)
	if err := s.Init(); err != nil {
		t.Fatalf("expected a missing file to be treated as empty, got error: %v", err)
	}
	if len(s.List()) != 0 {
		t.Fatal("expected an empty store")
	}
}
