// Package store persists the leaderboard between server restarts.
//
// On disk the table is a JSON object keyed by country code, the same shape
// the admin API accepts:
//
//	{"ar": {"name": "Argentina", "wins": 3}}
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"country-marbles/internal/game"
)

// Record is one persisted row
type Record struct {
	Name string `json:"name"`
	Wins int    `json:"wins"`
}

// Table is the on-disk and over-the-wire leaderboard shape
type Table map[string]Record

// FromEntries converts ranked entries to a table
func FromEntries(entries []game.LeaderboardEntry) Table {
	t := make(Table, len(entries))
	for _, e := range entries {
		t[e.Code] = Record{Name: e.Name, Wins: e.Wins}
	}
	return t
}

// Entries converts the table for Leaderboard.Replace
func (t Table) Entries() []game.LeaderboardEntry {
	out := make([]game.LeaderboardEntry, 0, len(t))
	for code, r := range t {
		if code == "" {
			continue
		}
		wins := r.Wins
		if wins < 0 {
			wins = 0
		}
		out = append(out, game.LeaderboardEntry{Code: code, Name: r.Name, Wins: wins})
	}
	return out
}

// FileStore reads and writes the leaderboard file. Writes go to a temp file
// in the same directory and are renamed into place.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store at path. An empty path disables persistence.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path
func (s *FileStore) Path() string { return s.path }

// Load returns the saved table. A missing file is an empty table.
func (s *FileStore) Load() (Table, error) {
	if s.path == "" {
		return Table{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}

	t := Table{}
	if len(data) == 0 {
		return t, nil
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse leaderboard %s: %w", s.path, err)
	}
	return t, nil
}

// Save atomically replaces the file with t
func (s *FileStore) Save(t Table) error {
	if s.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode leaderboard: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".leaderboard-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write leaderboard: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close leaderboard: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace leaderboard: %w", err)
	}
	return nil
}

// Restore loads the saved table into lb
func (s *FileStore) Restore(lb *game.Leaderboard) error {
	t, err := s.Load()
	if err != nil {
		return err
	}
	lb.Replace(t.Entries())
	if len(t) > 0 {
		log.Printf("📂 Restored leaderboard: %d countries from %s", len(t), s.path)
	}
	return nil
}

// Snapshot saves the current contents of lb
func (s *FileStore) Snapshot(lb *game.Leaderboard) error {
	return s.Save(FromEntries(lb.Entries()))
}
