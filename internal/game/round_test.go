package game

import (
	"reflect"
	"testing"
	"time"
)

func newTestFlags(codes ...string) []*Flag {
	cfg := DefaultSimConfig()
	flags := make([]*Flag, 0, len(codes))
	for _, c := range codes {
		flags = append(flags, NewFlag(Country{Code: c, Name: "Country " + c}, 540, 750, 0, cfg))
	}
	return flags
}

func markExited(f *Flag, seq int) {
	f.State = FlagExited
	f.Opacity = 0.5
	f.ExitSeq = seq
}

func TestMilestoneSet(t *testing.T) {
	m := NewMilestoneSet([]int{3, 100, 50, 15, 50, 0, -2})

	steps := []struct {
		prev, now int
		want      []int
	}{
		{120, 99, []int{100}},
		{99, 99, nil},
		{60, 10, []int{50, 15}},
		{10, 10, nil},
		{200, 0, []int{3}},
	}
	for _, s := range steps {
		if got := m.Cross(s.prev, s.now); !reflect.DeepEqual(got, s.want) {
			t.Errorf("Cross(%d, %d) = %v, want %v", s.prev, s.now, got, s.want)
		}
	}
	if !m.Fired(100) || !m.Fired(3) {
		t.Error("expected fired latches")
	}

	m.Reset()
	if m.Fired(100) {
		t.Error("Reset did not clear latches")
	}
}

func TestMilestoneAtPopulationNeverFires(t *testing.T) {
	m := NewMilestoneSet([]int{100, 50, 15, 3})
	// a round that starts with exactly 50 flags
	if got := m.Cross(50, 40); len(got) != 0 {
		t.Errorf("Cross(50, 40) = %v, want none", got)
	}
	if got := m.Cross(40, 15); !reflect.DeepEqual(got, []int{15}) {
		t.Errorf("Cross(40, 15) = %v, want [15]", got)
	}
}

func TestStreakTracker(t *testing.T) {
	var s StreakTracker
	seq := []struct {
		code string
		want int
	}{
		{"AR", 1}, {"AR", 2}, {"AR", 3}, {"BR", 1}, {"AR", 1},
	}
	for i, st := range seq {
		if got := s.Record(st.code); got != st.want {
			t.Errorf("step %d: Record(%s) = %d, want %d", i, st.code, got, st.want)
		}
	}
}

func TestRoundEvaluateSingleSurvivor(t *testing.T) {
	cfg := DefaultSimConfig().Round
	r := NewRound(cfg)
	lb := NewLeaderboard()
	now := time.Unix(1000, 0)

	flags := newTestFlags("AR", "BR", "CL")
	r.Begin("round-1", len(flags), now)

	markExited(flags[0], 1)
	if _, res := r.Evaluate(flags, lb, now); res != nil {
		t.Fatal("round concluded with two flags remaining")
	}

	markExited(flags[2], 2)
	_, res := r.Evaluate(flags, lb, now)
	if res == nil {
		t.Fatal("expected a winner")
	}
	if res.Flag.Code != "BR" || res.Wins != 1 || res.Champion {
		t.Errorf("result = %+v", res)
	}
	if r.Phase != PhaseWinnerDisplay {
		t.Errorf("phase = %v, want winner", r.Phase)
	}
	p := r.Pending()
	if !p.Armed || !p.FireAt.Equal(now.Add(cfg.WinnerDwell)) {
		t.Errorf("pending = %+v", p)
	}

	// round completion is reported once
	if _, again := r.Evaluate(flags, lb, now); again != nil {
		t.Error("winner reported twice")
	}
	if lb.Wins("BR") != 1 {
		t.Errorf("leaderboard wins = %d, want 1", lb.Wins("BR"))
	}
}

func TestRoundEvaluateSimultaneousExit(t *testing.T) {
	r := NewRound(DefaultSimConfig().Round)
	lb := NewLeaderboard()
	now := time.Unix(1000, 0)

	flags := newTestFlags("AR", "BR", "CL")
	r.Begin("round-1", len(flags), now)
	markExited(flags[0], 1)
	r.Evaluate(flags, lb, now)

	// the last two leave in the same tick
	markExited(flags[2], 2)
	markExited(flags[1], 3)
	_, res := r.Evaluate(flags, lb, now)
	if res == nil {
		t.Fatal("expected a winner when all flags exited")
	}
	if res.Flag.Code != "BR" {
		t.Errorf("winner = %s, want the last flag out (BR)", res.Flag.Code)
	}
}

func TestRoundChampionOnFourthWinOnly(t *testing.T) {
	cfg := DefaultSimConfig().Round
	r := NewRound(cfg)
	lb := NewLeaderboard()
	now := time.Unix(1000, 0)

	for win := 1; win <= 6; win++ {
		flags := newTestFlags("AR", "BR")
		r.Begin("round", len(flags), now)
		markExited(flags[1], 1)

		_, res := r.Evaluate(flags, lb, now)
		if res == nil {
			t.Fatalf("win %d: no result", win)
		}
		wantChampion := win == cfg.ChampionThreshold
		if res.Champion != wantChampion {
			t.Errorf("win %d: champion = %v, want %v", win, res.Champion, wantChampion)
		}
		if res.Streak != win {
			t.Errorf("win %d: streak = %d", win, res.Streak)
		}
		wantMilestone := win == 2 || win == 3 || win == 5
		if res.StreakMilestone != wantMilestone {
			t.Errorf("win %d: streak milestone = %v, want %v", win, res.StreakMilestone, wantMilestone)
		}

		wantPhase, dwell := PhaseWinnerDisplay, cfg.WinnerDwell
		if wantChampion {
			wantPhase, dwell = PhaseChampionDisplay, cfg.ChampionDwell
		}
		if r.Phase != wantPhase {
			t.Errorf("win %d: phase = %v, want %v", win, r.Phase, wantPhase)
		}
		if !r.Pending().FireAt.Equal(now.Add(dwell)) {
			t.Errorf("win %d: dwell until %v", win, r.Pending().FireAt)
		}
	}
}

func TestRoundBeginKeepsStreak(t *testing.T) {
	r := NewRound(DefaultSimConfig().Round)
	lb := NewLeaderboard()
	now := time.Unix(1000, 0)

	flags := newTestFlags("AR", "BR")
	r.Begin("a", 2, now)
	markExited(flags[0], 1)
	r.Evaluate(flags, lb, now)

	r.Begin("b", 2, now)
	if r.Phase != PhasePlaying || r.Winner != nil || r.Pending().Armed {
		t.Error("Begin did not reset round state")
	}
	if r.Number != 2 || r.ID != "b" {
		t.Errorf("round = %d/%s", r.Number, r.ID)
	}
	if s := r.Streak(); s.LastWinner != "BR" || s.Consecutive != 1 {
		t.Errorf("streak lost across rounds: %+v", s)
	}
}

func TestScheduledTransitionDue(t *testing.T) {
	at := time.Unix(2000, 0)
	s := ScheduledTransition{Armed: true, FireAt: at}

	if s.Due(at.Add(-time.Millisecond)) {
		t.Error("due before FireAt")
	}
	if !s.Due(at) {
		t.Error("not due at FireAt")
	}
	if (ScheduledTransition{FireAt: at}).Due(at.Add(time.Hour)) {
		t.Error("disarmed transition reported due")
	}
}
