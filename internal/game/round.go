package game

import (
	"fmt"
	"sort"
	"time"
)

// Phase is the round state
type Phase int

const (
	PhasePlaying Phase = iota
	PhaseWinnerDisplay
	PhaseChampionDisplay
)

func (p Phase) String() string {
	switch p {
	case PhasePlaying:
		return "playing"
	case PhaseWinnerDisplay:
		return "winner"
	case PhaseChampionDisplay:
		return "champion"
	default:
		return "unknown"
	}
}

// MarshalText encodes the phase by name
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name
func (p *Phase) UnmarshalText(text []byte) error {
	for _, c := range []Phase{PhasePlaying, PhaseWinnerDisplay, PhaseChampionDisplay} {
		if c.String() == string(text) {
			*p = c
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// MilestoneSet is a fixed set of one-shot latches, one per remaining-count
// threshold, cleared at the start of every round.
type MilestoneSet struct {
	thresholds [milestoneSlots]int
	fired      [milestoneSlots]bool
	n          int
}

// NewMilestoneSet keeps up to milestoneSlots positive thresholds, highest first
func NewMilestoneSet(thresholds []int) MilestoneSet {
	ts := make([]int, 0, len(thresholds))
	seen := make(map[int]bool, len(thresholds))
	for _, t := range thresholds {
		if t > 0 && !seen[t] {
			seen[t] = true
			ts = append(ts, t)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ts)))

	var m MilestoneSet
	for _, t := range ts {
		if m.n == milestoneSlots {
			break
		}
		m.thresholds[m.n] = t
		m.n++
	}
	return m
}

// Cross latches and returns every threshold t with prev > t >= now that has
// not fired yet this round, highest first.
func (m *MilestoneSet) Cross(prev, now int) []int {
	var out []int
	for i := 0; i < m.n; i++ {
		t := m.thresholds[i]
		if m.fired[i] || prev <= t || now > t {
			continue
		}
		m.fired[i] = true
		out = append(out, t)
	}
	return out
}

// Fired reports whether the threshold already fired this round
func (m *MilestoneSet) Fired(threshold int) bool {
	for i := 0; i < m.n; i++ {
		if m.thresholds[i] == threshold {
			return m.fired[i]
		}
	}
	return false
}

// Reset clears every latch
func (m *MilestoneSet) Reset() {
	m.fired = [milestoneSlots]bool{}
}

// StreakTracker counts consecutive wins by the same country. It survives
// round resets.
type StreakTracker struct {
	LastWinner  string
	Consecutive int
}

// Record registers a round winner and returns the streak level
func (s *StreakTracker) Record(code string) int {
	if s.LastWinner == code {
		s.Consecutive++
	} else {
		s.LastWinner = code
		s.Consecutive = 1
	}
	return s.Consecutive
}

// ScheduledTransition is a pending "return to playing" at FireAt.
// A manual reset disarms it.
type ScheduledTransition struct {
	Armed  bool
	From   Phase
	FireAt time.Time
}

// Due reports whether the transition should fire at now
func (s ScheduledTransition) Due(now time.Time) bool {
	return s.Armed && !now.Before(s.FireAt)
}

// Round holds the state machine for the current round plus the bookkeeping
// that outlives it (streaks).
type Round struct {
	ID        string
	Number    int
	Phase     Phase
	Winner    *Flag
	StartedAt time.Time

	cfg        RoundConfig
	milestones MilestoneSet
	streak     StreakTracker
	pending    ScheduledTransition

	remaining int // never-exited count as of the last evaluation
}

// WinnerResult describes a concluded round
type WinnerResult struct {
	Flag            *Flag
	Wins            int
	Champion        bool
	Streak          int
	StreakMilestone bool
}

// NewRound creates a state machine in the playing phase
func NewRound(cfg RoundConfig) *Round {
	return &Round{
		Phase:      PhasePlaying,
		cfg:        cfg,
		milestones: NewMilestoneSet(cfg.Milestones),
	}
}

// Begin starts a fresh round. Streak state is kept.
func (r *Round) Begin(id string, population int, now time.Time) {
	r.ID = id
	r.Number++
	r.Phase = PhasePlaying
	r.Winner = nil
	r.StartedAt = now
	r.milestones.Reset()
	r.pending = ScheduledTransition{}
	r.remaining = population
}

// Remaining returns the never-exited population at the last evaluation
func (r *Round) Remaining() int { return r.remaining }

// Streak returns the current streak state
func (r *Round) Streak() StreakTracker { return r.streak }

// Pending returns the scheduled transition, if any
func (r *Round) Pending() ScheduledTransition { return r.pending }

// Cancel disarms any scheduled transition
func (r *Round) Cancel() { r.pending = ScheduledTransition{} }

// Milestones exposes the latch set for inspection
func (r *Round) Milestones() *MilestoneSet { return &r.milestones }

// CountRemaining returns how many flags have never exited
func CountRemaining(flags []*Flag) int {
	n := 0
	for _, f := range flags {
		if !f.HasExited() {
			n++
		}
	}
	return n
}

// Evaluate inspects the flag set after a tick. It returns milestone
// thresholds crossed this tick and, when the round just concluded, the
// winner. Only acts while playing.
func (r *Round) Evaluate(flags []*Flag, lb *Leaderboard, now time.Time) (milestones []int, result *WinnerResult) {
	if r.Phase != PhasePlaying {
		return nil, nil
	}

	remaining := CountRemaining(flags)
	milestones = r.milestones.Cross(r.remaining, remaining)
	r.remaining = remaining

	var winner *Flag
	switch {
	case remaining == 1:
		for _, f := range flags {
			if !f.HasExited() {
				winner = f
				break
			}
		}
	case remaining == 0 && len(flags) > 0:
		// the last flags left in the same tick: the latest exit wins
		for _, f := range flags {
			if winner == nil || f.ExitSeq > winner.ExitSeq {
				winner = f
			}
		}
	}
	if winner == nil {
		return milestones, nil
	}
	return milestones, r.conclude(winner, lb, now)
}

func (r *Round) conclude(winner *Flag, lb *Leaderboard, now time.Time) *WinnerResult {
	wins := lb.RecordWin(winner.Code, winner.Name)
	streak := r.streak.Record(winner.Code)

	res := &WinnerResult{
		Flag:     winner,
		Wins:     wins,
		Champion: wins == r.cfg.ChampionThreshold,
		Streak:   streak,
	}
	for _, m := range r.cfg.StreakMilestones {
		if streak == m {
			res.StreakMilestone = true
			break
		}
	}

	r.Winner = winner
	dwell := r.cfg.WinnerDwell
	r.Phase = PhaseWinnerDisplay
	if res.Champion {
		r.Phase = PhaseChampionDisplay
		dwell = r.cfg.ChampionDwell
	}
	r.pending = ScheduledTransition{Armed: true, From: r.Phase, FireAt: now.Add(dwell)}
	return res
}
