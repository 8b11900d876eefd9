// Package memory implements the persistent, relevance-scored long-lived
// fact store (spec component C2). Records are held in an in-memory map
// under a single-writer discipline; persistence to disk is asynchronous and
// debounced so bursts of add/get calls don't thrash the filesystem.
package memory

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Category classifies a memory record's origin and scope.
type Category string

const (
	CategoryUser     Category = "user"
	CategoryProject  Category = "project"
	CategoryCodebase Category = "codebase"
)

var categoryWeight = map[Category]float64{
	CategoryUser:     1.0,
	CategoryProject:  1.5,
	CategoryCodebase: 1.2,
}

// DefaultMaxMemories is the default eviction cap.
const DefaultMaxMemories = 200

// debounceWindow bounds how long a write can be deferred after a mutation.
const debounceWindow = 500 * time.Millisecond

// Memory is a single long-lived fact record.
type Memory struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	Category       Category  `json:"category"`
	CreatedAt      time.Time `json:"createdAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
	AccessCount    int       `json:"accessCount"`
}

type fileFormat struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
	Memories  []Memory  `json:"memories"`
}

// Store is the Memory Store. The zero value is not usable; use New.
type Store struct {
	mu          sync.Mutex
	path        string
	maxMemories int
	records     map[string]*Memory

	dirty      bool
	writeTimer *time.Timer
	writeDone  chan struct{}
}

// New constructs a Store backed by the given file path. Call Init to load
// any existing state.
func New(path string, maxMemories int) *Store {
	if maxMemories <= 0 {
		maxMemories = DefaultMaxMemories
	}
	return &Store{
		path:        path,
		maxMemories: maxMemories,
		records:     make(map[string]*Memory),
	}
}

// Init loads the store from disk once. A missing or malformed file is
// treated as empty, never fatal.
func (s *Store) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("memory: failed to read store file")
		return nil
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil || ff.Version != 1 {
		log.Warn().Err(err).Str("path", s.path).Msg("memory: malformed or version-mismatched store file, treating as empty")
		return nil
	}

	for i := range ff.Memories {
		m := ff.Memories[i]
		s.records[m.ID] = &m
	}
	return nil
}

// Add appends a new record with a fresh id. If the store exceeds
// maxMemories after the insert, the lowest-scoring records are evicted.
func (s *Store) Add(content string, category Category) Memory {
	if category == "" {
		category = CategoryUser
	}
	s.mu.Lock()
	now := time.Now()
	m := Memory{
		ID:             uuid.NewString(),
		Content:        content,
		Category:       category,
		CreatedAt:      now,
		LastAccessedAt: now,
		AccessCount:    0,
	}
	s.records[m.ID] = &m
	s.evictLocked()
	s.markDirtyLocked()
	s.mu.Unlock()
	return m
}

// Get returns a record by id, touching its access metadata.
func (s *Store) Get(id string) (Memory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return Memory{}, false
	}
	rec.LastAccessedAt = time.Now()
	rec.AccessCount++
	s.markDirtyLocked()
	return *rec, true
}

// Remove deletes a record, reporting whether it existed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return false
	}
	delete(s.records, id)
	s.markDirtyLocked()
	return true
}

// Clear drops all records.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*Memory)
	s.markDirtyLocked()
}

// List returns a snapshot of all records sorted by lastAccessedAt desc.
func (s *Store) List() []Memory {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.snapshotLocked()
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastAccessedAt.After(out[j].LastAccessedAt)
	})
	return out
}

// ListByCategory filters List() by category.
func (s *Store) ListByCategory(c Category) []Memory {
	all := s.List()
	out := make([]Memory, 0, len(all))
	for _, m := range all {
		if m.Category == c {
			out = append(out, m)
		}
	}
	return out
}

// FindRelevant returns up to max records ranked by the blended relevance
// score: token-overlap of query vs content, times the category weight, plus
// a small access-count boost. Only records with positive score are returned.
func (s *Store) FindRelevant(query string, max int) []Memory {
	s.mu.Lock()
	all := s.snapshotLocked()
	s.mu.Unlock()

	type scored struct {
		m     Memory
		score float64
	}
	queryTokens := tokenize(query)
	var scoredRecs []scored
	for _, m := range all {
		overlap := overlapScore(queryTokens, tokenize(m.Content))
		if overlap <= 0 {
			continue
		}
		weight := categoryWeight[m.Category]
		if weight == 0 {
			weight = 1.0
		}
		score := overlap*weight + math.Log(1+float64(m.AccessCount))
		if score > 0 {
			scoredRecs = append(scoredRecs, scored{m: m, score: score})
		}
	}
	sort.Slice(scoredRecs, func(i, j int) bool { return scoredRecs[i].score > scoredRecs[j].score })

	if max > 0 && len(scoredRecs) > max {
		scoredRecs = scoredRecs[:max]
	}
	out := make([]Memory, len(scoredRecs))
	for i, sr := range scoredRecs {
		out[i] = sr.m
	}
	return out
}

// CountTokens sums an approximate token count across all memories. It takes
// a counter function so the memory package does not depend on the tokens
// package.
func (s *Store) CountTokens(count func(string) int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, m := range s.records {
		total += count(m.Content)
	}
	return total
}

// ToContextString renders the store as a markdown section suitable for
// injection into the system prompt. Returns "" if there are no memories.
func ToContextString(memories []Memory) string {
	if len(memories) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Relevant Memories\n")
	for _, m := range memories {
		b.WriteString("- [")
		b.WriteString(string(m.Category))
		b.WriteString("] ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// Flush stops a pending debounced write and, if there are unsaved changes,
// writes them before returning. A debounced write that has already started
// is not waited for.
func (s *Store) Flush() error {
	s.mu.Lock()
	dirty := s.dirty
	timer := s.writeTimer
	s.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
	if dirty {
		return s.writeNow()
	}
	return nil
}

// Close flushes pending writes and releases resources.
func (s *Store) Close() error {
	return s.Flush()
}

func (s *Store) snapshotLocked() []Memory {
	out := make([]Memory, 0, len(s.records))
	for _, m := range s.records {
		out = append(out, *m)
	}
	return out
}

// evictLocked removes lowest-score records (by lastAccessedAt desc, then
// accessCount desc) until the store is back at the cap. Called with mu held.
func (s *Store) evictLocked() {
	if len(s.records) <= s.maxMemories {
		return
	}
	all := s.snapshotLocked()
	sort.Slice(all, func(i, j int) bool {
		if !all[i].LastAccessedAt.Equal(all[j].LastAccessedAt) {
			return all[i].LastAccessedAt.After(all[j].LastAccessedAt)
		}
		return all[i].AccessCount > all[j].AccessCount
	})
	keep := all
	if len(keep) > s.maxMemories {
		keep = keep[:s.maxMemories]
	}
	kept := make(map[string]struct{}, len(keep))
	for _, m := range keep {
		kept[m.ID] = struct{}{}
	}
	for id := range s.records {
		if _, ok := kept[id]; !ok {
			delete(s.records, id)
		}
	}
}

// markDirtyLocked schedules a debounced write. Called with mu held.
func (s *Store) markDirtyLocked() {
	s.dirty = true
	if s.writeTimer != nil {
		return
	}
	s.writeTimer = time.AfterFunc(debounceWindow, func() {
		if err := s.writeNow(); err != nil {
			log.Warn().Err(err).Str("path", s.path).Msg("memory: debounced write failed")
		}
	})
}

// writeNow performs an atomic write-tmp-then-rename of the current state.
func (s *Store) writeNow() error {
	s.mu.Lock()
	ff := fileFormat{Version: 1, UpdatedAt: time.Now(), Memories: s.snapshotLocked()}
	s.dirty = false
	s.writeTimer = nil
	s.mu.Unlock()

	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return err
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "of": {}, "to": {}, "and": {}, "in": {}, "for": {},
}

func tokenize(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, f := range strings.Fields(strings.ToLower(s)) {
		f = strings.Trim(f, ".,!?;:\"'()")
		if f == "" {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out[f] = struct{}{}
	}
	return out
}

func overlapScore(query, content map[string]struct{}) float64 {
	if len(query) == 0 || len(content) == 0 {
		return 0
	}
	hits := 0
	for tok := range query {
		if _, ok := content[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}
