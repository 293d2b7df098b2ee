package game

import (
	"sort"
	"sync"
)

// LeaderboardEntry is one country's cumulative record
type LeaderboardEntry struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Wins int    `json:"wins"`
	Rank int    `json:"rank,omitempty"`
}

// Leaderboard tracks cumulative wins per country across rounds.
// Safe for concurrent use: the engine writes from the tick, the API reads.
//
// Ranking order: wins descending, then name, then code.
type Leaderboard struct {
	mu      sync.RWMutex
	entries map[string]*LeaderboardEntry
}

// NewLeaderboard creates an empty leaderboard
func NewLeaderboard() *Leaderboard {
	return &Leaderboard{entries: make(map[string]*LeaderboardEntry)}
}

// RecordWin increments a country's wins and returns the new total
func (lb *Leaderboard) RecordWin(code, name string) int {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	e, ok := lb.entries[code]
	if !ok {
		e = &LeaderboardEntry{Code: code, Name: name}
		lb.entries[code] = e
	}
	e.Wins++
	return e.Wins
}

// Wins returns a country's win count (0 if unknown)
func (lb *Leaderboard) Wins(code string) int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	if e, ok := lb.entries[code]; ok {
		return e.Wins
	}
	return 0
}

// SetWins overwrites the wins of a known country. Returns false if the
// country has no entry.
func (lb *Leaderboard) SetWins(code string, wins int) bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	e, ok := lb.entries[code]
	if !ok {
		return false
	}
	if wins < 0 {
		wins = 0
	}
	e.Wins = wins
	return true
}

// Upsert sets a country's wins, creating the entry if needed
func (lb *Leaderboard) Upsert(code, name string, wins int) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if wins < 0 {
		wins = 0
	}
	e, ok := lb.entries[code]
	if !ok {
		e = &LeaderboardEntry{Code: code, Name: name}
		lb.entries[code] = e
	}
	if name != "" {
		e.Name = name
	}
	e.Wins = wins
}

// Remove deletes a country's entry. Returns false if it did not exist.
func (lb *Leaderboard) Remove(code string) bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if _, ok := lb.entries[code]; !ok {
		return false
	}
	delete(lb.entries, code)
	return true
}

// Clear removes every entry
func (lb *Leaderboard) Clear() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.entries = make(map[string]*LeaderboardEntry)
}

// Replace swaps the whole table for the given entries
func (lb *Leaderboard) Replace(entries []LeaderboardEntry) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.entries = make(map[string]*LeaderboardEntry, len(entries))
	for _, e := range entries {
		if e.Code == "" {
			continue
		}
		entry := e
		entry.Rank = 0
		lb.entries[e.Code] = &entry
	}
}

// Len returns the number of countries with an entry
func (lb *Leaderboard) Len() int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return len(lb.entries)
}

// Top returns the best n entries with ranks filled in. n <= 0 returns all.
func (lb *Leaderboard) Top(n int) []LeaderboardEntry {
	all := lb.Entries()
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

// Rank returns a country's 1-indexed rank, or 0 if not present
func (lb *Leaderboard) Rank(code string) int {
	for _, e := range lb.Entries() {
		if e.Code == code {
			return e.Rank
		}
	}
	return 0
}

// Entries returns a ranked copy of the whole table
func (lb *Leaderboard) Entries() []LeaderboardEntry {
	lb.mu.RLock()
	out := make([]LeaderboardEntry, 0, len(lb.entries))
	for _, e := range lb.entries {
		out = append(out, *e)
	}
	lb.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Code < out[j].Code
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
