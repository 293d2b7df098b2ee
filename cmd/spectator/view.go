package main

import (
	"fmt"
	"math"

	"country-marbles/internal/game"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const sidebarWidth = 26

var (
	styleDefault = tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite)
	styleRing    = styleDefault.Foreground(tcell.ColorAqua)
	styleHeader  = styleDefault.Foreground(tcell.ColorAqua).Bold(true)
	styleFlag    = styleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleExiting = styleDefault.Foreground(tcell.ColorGray)
	styleWinner  = styleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorGold).Bold(true)
	styleLog     = styleDefault.Foreground(tcell.ColorGray)

	rankStyles = []tcell.Style{
		styleDefault.Foreground(tcell.ColorGold),
		styleDefault.Foreground(tcell.ColorSilver),
		styleDefault.Foreground(tcell.ColorOrange),
	}
)

// view draws snapshots onto a terminal screen
type view struct {
	screen tcell.Screen
	upper  cases.Caser
	log    []string
	logMax int
}

func newView(screen tcell.Screen) *view {
	screen.SetStyle(styleDefault)
	return &view{
		screen: screen,
		upper:  cases.Upper(language.English),
		logMax: 8,
	}
}

// note appends a line to the event feed
func (v *view) note(line string) {
	v.log = append(v.log, line)
	if len(v.log) > v.logMax {
		v.log = v.log[len(v.log)-v.logMax:]
	}
}

// describe formats the events worth showing in the feed
func describe(ev game.GameEvent) (string, bool) {
	switch ev.Type {
	case game.EventTypeRoundStart:
		return fmt.Sprintf("round %d started", ev.Round), true
	case game.EventTypeMilestone:
		return fmt.Sprintf("%d remaining", ev.Remaining), true
	case game.EventTypeWinner:
		if ev.Champion {
			return fmt.Sprintf("%s is CHAMPION", ev.Country.Name), true
		}
		return fmt.Sprintf("%s wins (%d)", ev.Country.Name, ev.Wins), true
	case game.EventTypeManualReset:
		return "manual reset", true
	}
	return "", false
}

// projection maps world coordinates into board cells. Terminal cells are
// about twice as tall as they are wide.
type projection struct {
	cx, cy     float64 // world center
	col0, row0 float64 // cell center
	k          float64 // rows per world unit
}

func newProjection(ring game.RingSnapshot, cols, rows int) projection {
	boardCols := float64(cols - sidebarWidth)
	boardRows := float64(rows - 1)
	r := ring.Radius
	if r <= 0 {
		r = 1
	}
	k := math.Min(boardRows/(2.4*r), boardCols/(4.8*r))
	return projection{
		cx: ring.CenterX, cy: ring.CenterY,
		col0: boardCols / 2, row0: boardRows/2 + 1,
		k: k,
	}
}

func (p projection) cell(x, y float64) (int, int) {
	col := p.col0 + (x-p.cx)*p.k*2
	row := p.row0 + (y-p.cy)*p.k
	return int(math.Round(col)), int(math.Round(row))
}

func (v *view) text(col, row int, s string, style tcell.Style) {
	for _, r := range s {
		v.screen.SetContent(col, row, r, nil, style)
		col++
	}
}

// draw renders one frame and shows it
func (v *view) draw(snap *game.GameSnapshot) {
	v.screen.Clear()
	cols, rows := v.screen.Size()
	if snap == nil || cols <= sidebarWidth+4 || rows < 6 {
		v.text(0, 0, "waiting for the first round...", styleHeader)
		v.screen.Show()
		return
	}

	p := newProjection(snap.Ring, cols, rows)
	v.drawRing(p, snap.Ring)

	for i := range snap.Flags {
		f := &snap.Flags[i]
		if f.State == game.FlagSettled {
			continue
		}
		col, row := p.cell(f.X, f.Y)
		if row < 1 || row >= rows || col < 0 || col+1 >= cols-sidebarWidth {
			continue
		}
		style := styleFlag
		if f.State != game.FlagActive {
			style = styleExiting
		}
		v.text(col, row, v.upper.String(f.Code), style)
	}

	header := fmt.Sprintf(" ROUND %d  %d/%d left  %s ", snap.RoundNumber, snap.Remaining, snap.Participants, snap.Phase)
	v.text(0, 0, header, styleHeader)

	if snap.Winner != nil && snap.Phase != game.PhasePlaying {
		banner := fmt.Sprintf(" %s WINS! (%d) ", v.upper.String(snap.Winner.Name), snap.WinnerWins)
		if snap.Phase == game.PhaseChampionDisplay {
			banner = fmt.Sprintf(" CHAMPION: %s ", v.upper.String(snap.Winner.Name))
		}
		col, row := p.cell(snap.Ring.CenterX, snap.Ring.CenterY)
		v.text(col-len(banner)/2, row, banner, styleWinner)
	}

	v.drawSidebar(snap, cols-sidebarWidth+1, rows)
	v.screen.Show()
}

func (v *view) drawRing(p projection, ring game.RingSnapshot) {
	r := game.Ring{
		Radius:   ring.Radius,
		GapStart: ring.GapStart,
		GapWidth: game.NormalizeAngle(ring.GapEnd - ring.GapStart),
	}
	steps := int(math.Max(64, 2*math.Pi*ring.Radius*p.k*2))
	for i := 0; i < steps; i++ {
		a := float64(i) / float64(steps) * 2 * math.Pi
		if r.InGap(a) {
			continue
		}
		col, row := p.cell(ring.CenterX+ring.Radius*math.Cos(a), ring.CenterY+ring.Radius*math.Sin(a))
		v.screen.SetContent(col, row, '·', nil, styleRing)
	}
}

func (v *view) drawSidebar(snap *game.GameSnapshot, col, rows int) {
	row := 1
	v.text(col, row, "TOP COUNTRIES", styleHeader)
	row++
	for i, e := range snap.Leaderboard {
		if i >= 10 || row >= rows {
			break
		}
		style := styleDefault
		if i < len(rankStyles) {
			style = rankStyles[i]
		}
		v.text(col, row, fmt.Sprintf("%2d. %-16.16s %2d", e.Rank, e.Name, e.Wins), style)
		row++
	}
	if snap.Streak > 1 {
		row++
		v.text(col, row, fmt.Sprintf("streak x%d", snap.Streak), rankStyles[0])
	}

	row += 2
	v.text(col, row, "EVENTS", styleHeader)
	for _, line := range v.log {
		row++
		if row >= rows-1 {
			break
		}
		v.text(col, row, line, styleLog)
	}
	v.text(col, rows-1, "r reset · q quit", styleLog)
}
