package game

import (
	"sync/atomic"
	"time"
)

// ResourceLimits caps what a snapshot carries
type ResourceLimits struct {
	MaxParticipants int // Hard cap on flags per round
	MaxLeaderboard  int // Leaderboard rows copied into each snapshot
}

// DefaultLimits provides production-safe default limits
var DefaultLimits = ResourceLimits{
	MaxParticipants: 512,
	MaxLeaderboard:  10,
}

// FlagSnapshot is an immutable copy of flag state for rendering.
// Uses value types (not pointers) to ensure immutability.
type FlagSnapshot struct {
	Code    string    `json:"code"`
	Name    string    `json:"name"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	VX      float64   `json:"vx"`
	VY      float64   `json:"vy"`
	Width   float64   `json:"width"`
	Height  float64   `json:"height"`
	Radius  float64   `json:"radius"`
	State   FlagState `json:"state"`
	Opacity float64   `json:"opacity"`
}

// RingSnapshot is the boundary as drawn this tick
type RingSnapshot struct {
	CenterX   float64 `json:"centerX"`
	CenterY   float64 `json:"centerY"`
	Radius    float64 `json:"radius"`
	Thickness float64 `json:"thickness"`
	GapStart  float64 `json:"gapStart"` // absolute, rotation applied
	GapEnd    float64 `json:"gapEnd"`
}

// GameSnapshot is a complete immutable game state for rendering.
// All slices are pre-allocated and capped.
type GameSnapshot struct {
	Sequence   uint64    `json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`
	TickNumber uint64    `json:"tick"`

	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	RoundID     string        `json:"roundId"`
	RoundNumber int           `json:"roundNumber"`
	Phase       Phase         `json:"phase"`
	Winner      *FlagSnapshot `json:"winner,omitempty"`
	WinnerWins  int           `json:"winnerWins,omitempty"`
	Streak      int           `json:"streak"`
	PhaseEndsAt time.Time     `json:"phaseEndsAt,omitempty"`

	Ring        RingSnapshot       `json:"ring"`
	Flags       []FlagSnapshot     `json:"flags"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`

	Participants int `json:"participants"`
	Remaining    int `json:"remaining"`
}

// SnapshotPool publishes one fresh snapshot per tick. A published snapshot
// is never written again, so a reader may hold it as long as it likes.
type SnapshotPool struct {
	limits   ResourceLimits
	latest   atomic.Pointer[GameSnapshot]
	pending  *GameSnapshot // producer only
	sequence uint64        // atomic - monotonic sequence
}

// NewSnapshotPool creates a pool whose initial snapshot is empty
func NewSnapshotPool(limits ResourceLimits) *SnapshotPool {
	pool := &SnapshotPool{limits: limits}
	pool.latest.Store(&GameSnapshot{
		Flags:       []FlagSnapshot{},
		Leaderboard: []LeaderboardEntry{},
	})
	return pool
}

// AcquireWrite starts the next snapshot (producer only, called from the tick).
// Slices are sized from the last published snapshot.
func (p *SnapshotPool) AcquireWrite() *GameSnapshot {
	prev := p.latest.Load()
	snap := &GameSnapshot{
		Flags:       make([]FlagSnapshot, 0, min(max(len(prev.Flags), 1), p.limits.MaxParticipants)),
		Leaderboard: make([]LeaderboardEntry, 0, p.limits.MaxLeaderboard),
		Sequence:    atomic.AddUint64(&p.sequence, 1),
		Timestamp:   time.Now(),
	}
	p.pending = snap
	return snap
}

// PublishWrite makes the last acquired snapshot visible to readers
func (p *SnapshotPool) PublishWrite() {
	if p.pending == nil {
		return
	}
	p.latest.Store(p.pending)
	p.pending = nil
}

// AcquireRead returns the latest published snapshot. Treat it as read-only.
func (p *SnapshotPool) AcquireRead() *GameSnapshot {
	return p.latest.Load()
}

// GetLimits returns the resource limits
func (p *SnapshotPool) GetLimits() ResourceLimits {
	return p.limits
}
