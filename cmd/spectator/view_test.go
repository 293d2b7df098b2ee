package main

import (
	"math"
	"strings"
	"testing"

	"country-marbles/internal/game"

	"github.com/gdamore/tcell/v2"
)

func newSimScreen(t *testing.T, w, h int) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatal(err)
	}
	screen.SetSize(w, h)
	t.Cleanup(screen.Fini)
	return screen
}

// screenText returns the visible text, one string per row
func screenText(screen tcell.SimulationScreen) []string {
	cells, w, h := screen.GetContents()
	rows := make([]string, h)
	for y := 0; y < h; y++ {
		var b strings.Builder
		for x := 0; x < w; x++ {
			c := cells[y*w+x]
			if len(c.Runes) == 0 {
				b.WriteRune(' ')
				continue
			}
			b.WriteRune(c.Runes[0])
		}
		rows[y] = b.String()
	}
	return rows
}

func contains(rows []string, s string) bool {
	for _, r := range rows {
		if strings.Contains(r, s) {
			return true
		}
	}
	return false
}

func spectatorSnapshot() *game.GameSnapshot {
	return &game.GameSnapshot{
		RoundNumber: 2,
		Phase:       game.PhasePlaying,
		Ring: game.RingSnapshot{
			CenterX: 540, CenterY: 750, Radius: 400,
			GapStart: 0, GapEnd: math.Pi / 2,
		},
		Flags: []game.FlagSnapshot{
			{Code: "ar", Name: "Argentina", X: 540, Y: 750, State: game.FlagActive, Opacity: 1},
			{Code: "cl", Name: "Chile", X: 540, Y: 5000, State: game.FlagSettled},
		},
		Leaderboard: []game.LeaderboardEntry{
			{Code: "jp", Name: "Japan", Wins: 3, Rank: 1},
		},
		Participants: 2,
		Remaining:    1,
	}
}

func TestProjectionCentersRing(t *testing.T) {
	ring := game.RingSnapshot{CenterX: 540, CenterY: 750, Radius: 400}
	p := newProjection(ring, 120, 40)

	col, row := p.cell(540, 750)
	if col != (120-sidebarWidth)/2 || row < 19 || row > 21 {
		t.Errorf("center cell = %d,%d", col, row)
	}

	// The ring fits on the board
	left, _ := p.cell(140, 750)
	right, _ := p.cell(940, 750)
	_, top := p.cell(540, 350)
	_, bottom := p.cell(540, 1150)
	if left < 0 || right >= 120-sidebarWidth || top < 1 || bottom >= 40 {
		t.Errorf("ring spans cols %d..%d rows %d..%d", left, right, top, bottom)
	}
}

func TestDrawShowsFlagsAndSidebar(t *testing.T) {
	screen := newSimScreen(t, 120, 40)
	v := newView(screen)
	v.note("round 2 started")
	v.draw(spectatorSnapshot())

	rows := screenText(screen)
	for _, want := range []string{"ROUND 2", "AR", "Japan", "round 2 started", "q quit"} {
		if !contains(rows, want) {
			t.Errorf("screen missing %q", want)
		}
	}
	if contains(rows, "CL") {
		t.Error("settled flag drawn")
	}
}

func TestDrawRingGap(t *testing.T) {
	screen := newSimScreen(t, 120, 40)
	v := newView(screen)
	snap := spectatorSnapshot()
	v.draw(snap)

	p := newProjection(snap.Ring, 120, 40)
	cells, w, _ := screen.GetContents()
	at := func(angle float64) rune {
		col, row := p.cell(540+400*math.Cos(angle), 750+400*math.Sin(angle))
		c := cells[row*w+col]
		if len(c.Runes) == 0 {
			return ' '
		}
		return c.Runes[0]
	}

	if at(math.Pi) != '·' {
		t.Errorf("ring missing at π: %q", at(math.Pi))
	}
	if at(math.Pi/4) == '·' {
		t.Error("ring drawn inside the gap")
	}
}

func TestDrawWinnerBanner(t *testing.T) {
	screen := newSimScreen(t, 120, 40)
	v := newView(screen)
	snap := spectatorSnapshot()
	snap.Phase = game.PhaseChampionDisplay
	w := snap.Flags[0]
	snap.Winner = &w
	snap.WinnerWins = 4
	v.draw(snap)

	if !contains(screenText(screen), "CHAMPION: ARGENTINA") {
		t.Error("champion banner missing")
	}
}

func TestDrawWaiting(t *testing.T) {
	screen := newSimScreen(t, 80, 24)
	newView(screen).draw(nil)
	if !contains(screenText(screen), "waiting") {
		t.Error("placeholder missing")
	}
}

func TestFeedKeepsLatest(t *testing.T) {
	v := &view{logMax: 2}
	v.note("a")
	v.note("b")
	v.note("c")
	if len(v.log) != 2 || v.log[0] != "b" || v.log[1] != "c" {
		t.Errorf("log = %v", v.log)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		ev   game.GameEvent
		want string
		ok   bool
	}{
		{game.GameEvent{Type: game.EventTypeMilestone, Remaining: 15}, "15 remaining", true},
		{game.GameEvent{Type: game.EventTypeWinner, Country: game.Country{Name: "Peru"}, Wins: 2}, "Peru wins (2)", true},
		{game.GameEvent{Type: game.EventTypeWinner, Country: game.Country{Name: "Peru"}, Champion: true}, "Peru is CHAMPION", true},
		{game.GameEvent{Type: game.EventTypeExit}, "", false},
	}
	for _, tt := range tests {
		got, ok := describe(tt.ev)
		if got != tt.want || ok != tt.ok {
			t.Errorf("describe(%v) = %q, %v", tt.ev.Type, got, ok)
		}
	}
}
