// Package conversation implements the append-only in-memory history list
// that backs the Agent Loop, optionally persisted to a JSON file.
package conversation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kestrelcode/tinyagent/internal/provider"
)

const debounceWindow = 500 * time.Millisecond

type fileFormat struct {
	Version   int                `json:"version"`
	Timestamp time.Time          `json:"timestamp"`
	Messages  []provider.Message `json:"messages"`
}

// Store is the Conversation Store (C8). The zero value is not usable; use
// New. A Store with an empty path is purely in-memory.
type Store struct {
	mu   sync.Mutex
	path string

	history []provider.Message

	dirty      bool
	writeTimer *time.Timer
}

// New creates a Store. path == "" disables persistence entirely.
func New(path string) *Store {
	return &Store{path: path}
}

// LoadHistory loads persisted history into memory. A missing, malformed,
// or version-mismatched file is treated as empty history, never an error
// that aborts startup.
func (s *Store) LoadHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil || ff.Version != 1 {
		log.Warn().Str("path", s.path).Msg("conversation: malformed or version-mismatched history file, starting empty")
		return
	}
	s.history = ff.Messages
}

// Append adds one message to history.
func (s *Store) Append(m provider.Message) {
	s.mu.Lock()
	s.history = append(s.history, m)
	s.markDirtyLocked()
	s.mu.Unlock()
}

// SetHistory replaces the in-memory history wholesale and schedules a
// debounced persistent write.
func (s *Store) SetHistory(msgs []provider.Message) {
	s.mu.Lock()
	s.history = msgs
	s.markDirtyLocked()
	s.mu.Unlock()
}

// History returns a snapshot of the current history.
func (s *Store) History() []provider.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]provider.Message, len(s.history))
	copy(out, s.history)
	return out
}

// Clear empties history and schedules a persistent write.
func (s *Store) Clear() {
	s.mu.Lock()
	s.history = nil
	s.markDirtyLocked()
	s.mu.Unlock()
}

func (s *Store) markDirtyLocked() {
	s.dirty = true
	if s.path == "" || s.writeTimer != nil {
		return
	}
	s.writeTimer = time.AfterFunc(debounceWindow, func() {
		if err := s.writeNow(); err != nil {
			log.Warn().Err(err).Str("path", s.path).Msg("conversation: debounced write failed")
		}
	})
}

// Flush blocks until any pending write has completed.
func (s *Store) Flush() error {
	s.mu.Lock()
	dirty := s.dirty
	timer := s.writeTimer
	s.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
	if dirty && s.path != "" {
		return s.writeNow()
	}
	return nil
}

// Close flushes pending writes.
func (s *Store) Close() error {
	return s.Flush()
}

func (s *Store) writeNow() error {
	s.mu.Lock()
	ff := fileFormat{Version: 1, Timestamp: time.Now(), Messages: append([]provider.Message{}, s.history...)}
	s.dirty = false
	s.writeTimer = nil
	path := s.path
	s.mu.Unlock()

	if path == "" {
		return nil
	}

	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
