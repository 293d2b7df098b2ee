// Package render draws game snapshots with fogleman/gg.
package render

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"io"
	"math"
	"sync"
	"time"

	"country-marbles/internal/game"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Config controls canvas size and assets
type Config struct {
	Width    int
	Height   int
	FlagDir  string // <code>.png|webp|jpg, empty disables images
	FontPath string // empty searches system fonts
	FlagW    int
	FlagH    int
}

// Palette
var (
	colorBackground = color.RGBA{14, 16, 30, 255}
	colorRing       = color.RGBA{0, 212, 255, 255}
	colorRingGlow   = color.RGBA{0, 212, 255, 50}
	colorText       = color.RGBA{255, 255, 255, 255}
	colorSubtle     = color.RGBA{160, 165, 180, 255}
	colorCard       = color.RGBA{18, 18, 24, 235}
	colorGold       = color.RGBA{255, 200, 60, 255}
	colorSilver     = color.RGBA{180, 185, 195, 255}
	colorBronze     = color.RGBA{205, 150, 90, 255}
	colorDim        = color.RGBA{0, 0, 0, 160}
)

// Renderer draws snapshots into a single reusable gg context. Safe for
// concurrent use; frames are serialized.
type Renderer struct {
	cfg   Config
	fonts Fonts
	flags *FlagCache
	upper cases.Caser

	// OnRender receives the duration of every frame (metrics hook)
	OnRender func(time.Duration)

	mu sync.Mutex
	dc *gg.Context
}

// NewRenderer creates a renderer; fonts are loaded once here
func NewRenderer(cfg Config) *Renderer {
	if cfg.Width <= 0 {
		cfg.Width = 1080
	}
	if cfg.Height <= 0 {
		cfg.Height = 1920
	}
	if cfg.FlagW <= 0 {
		cfg.FlagW = 60
	}
	if cfg.FlagH <= 0 {
		cfg.FlagH = 45
	}

	return &Renderer{
		cfg:   cfg,
		fonts: LoadFonts(cfg.FontPath, cfg.Height),
		flags: NewFlagCache(cfg.FlagDir, cfg.FlagW, cfg.FlagH, 0),
		upper: cases.Upper(language.English),
		dc:    gg.NewContext(cfg.Width, cfg.Height),
	}
}

// Flags exposes the image cache for preloading
func (r *Renderer) Flags() *FlagCache {
	return r.flags
}

// EncodePNG renders snap and writes it as PNG
func (r *Renderer) EncodePNG(w io.Writer, snap *game.GameSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.renderLocked(snap)
	return r.dc.EncodePNG(w)
}

// Render draws snap and returns a copy of the frame
func (r *Renderer) Render(snap *game.GameSnapshot) *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.renderLocked(snap)
	src := r.dc.Image()
	out := image.NewRGBA(src.Bounds())
	draw.Draw(out, out.Bounds(), src, src.Bounds().Min, draw.Src)
	return out
}

func (r *Renderer) renderLocked(snap *game.GameSnapshot) {
	start := time.Now()
	dc := r.dc

	dc.SetColor(colorBackground)
	dc.Clear()

	if snap != nil {
		r.drawRing(dc, snap.Ring)
		for i := range snap.Flags {
			r.drawFlag(dc, &snap.Flags[i], 1)
		}
		r.drawHUD(dc, snap)
		r.drawLeaderboard(dc, snap.Leaderboard)

		if snap.Winner != nil && snap.Phase != game.PhasePlaying {
			r.drawWinner(dc, snap)
		}
	}

	if r.OnRender != nil {
		r.OnRender(time.Since(start))
	}
}

// drawRing strokes the boundary from the end of the gap round to its start
func (r *Renderer) drawRing(dc *gg.Context, ring game.RingSnapshot) {
	if ring.Radius <= 0 {
		return
	}
	from := ring.GapEnd
	to := ring.GapStart
	for to <= from {
		to += 2 * math.Pi
	}

	dc.SetLineCapButt()
	dc.SetColor(colorRingGlow)
	dc.SetLineWidth(ring.Thickness * 2)
	dc.DrawArc(ring.CenterX, ring.CenterY, ring.Radius, from, to)
	dc.Stroke()

	dc.SetColor(colorRing)
	dc.SetLineWidth(ring.Thickness)
	dc.DrawArc(ring.CenterX, ring.CenterY, ring.Radius, from, to)
	dc.Stroke()
}

// drawFlag draws one flag centered on its position, scaled by zoom
func (r *Renderer) drawFlag(dc *gg.Context, f *game.FlagSnapshot, zoom float64) {
	if f.Opacity <= 0 {
		return
	}
	w := f.Width * zoom
	h := f.Height * zoom
	x := f.X - w/2
	y := f.Y - h/2

	if img := r.flags.GetOrLoad(f.Code); img != nil {
		src := img
		if f.Opacity < 1 {
			src = fade(img, f.Opacity)
		}
		dc.Push()
		dc.ScaleAbout(zoom, zoom, f.X, f.Y)
		dc.DrawImageAnchored(src, int(math.Round(f.X)), int(math.Round(f.Y)), 0.5, 0.5)
		dc.Pop()
		return
	}

	// Text fallback: colored tile with the country code
	c := codeColor(f.Code)
	c.A = uint8(255 * f.Opacity)
	dc.SetColor(c)
	dc.DrawRoundedRectangle(x, y, w, h, h/8)
	dc.Fill()

	dc.SetFontFace(r.fonts.Small)
	dc.SetColor(color.RGBA{255, 255, 255, uint8(255 * f.Opacity)})
	dc.DrawStringAnchored(r.upper.String(f.Code), f.X, f.Y, 0.5, 0.35)
}

func (r *Renderer) drawHUD(dc *gg.Context, snap *game.GameSnapshot) {
	width := float64(r.cfg.Width)
	margin := width * 0.04
	cardH := float64(r.cfg.Height) * 0.07

	dc.SetColor(colorCard)
	dc.DrawRoundedRectangle(margin, margin, width-2*margin, cardH, 8)
	dc.Fill()

	dc.SetColor(colorRing)
	dc.DrawRoundedRectangle(margin, margin, 6, cardH, 3)
	dc.Fill()

	dc.SetFontFace(r.fonts.Medium)
	dc.SetColor(colorText)
	dc.DrawStringAnchored(fmt.Sprintf("ROUND %d", snap.RoundNumber), margin*2, margin+cardH/2, 0, 0.35)

	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(fmt.Sprintf("%d / %d LEFT", snap.Remaining, snap.Participants),
		width-margin*2, margin+cardH/2, 1, 0.35)

	if snap.Streak > 1 {
		dc.SetFontFace(r.fonts.Small)
		dc.SetColor(colorGold)
		dc.DrawStringAnchored(fmt.Sprintf("STREAK x%d", snap.Streak), width/2, margin+cardH+margin, 0.5, 0.5)
	}
}

// drawLeaderboard shows the top three below the ring
func (r *Renderer) drawLeaderboard(dc *gg.Context, rows []game.LeaderboardEntry) {
	if len(rows) == 0 {
		return
	}
	width := float64(r.cfg.Width)
	height := float64(r.cfg.Height)
	x := width * 0.1
	y := height * 0.68

	dc.SetFontFace(r.fonts.Medium)
	dc.SetColor(colorRing)
	dc.DrawString("TOP COUNTRIES", x, y)

	limit := min(3, len(rows))
	step := height * 0.035
	dc.SetFontFace(r.fonts.Small)
	for i := 0; i < limit; i++ {
		y += step
		switch i {
		case 0:
			dc.SetColor(colorGold)
		case 1:
			dc.SetColor(colorSilver)
		default:
			dc.SetColor(colorBronze)
		}
		dc.DrawString(fmt.Sprintf("%d. %s · %d", i+1, rows[i].Name, rows[i].Wins), x, y)
	}
}

func (r *Renderer) drawWinner(dc *gg.Context, snap *game.GameSnapshot) {
	width := float64(r.cfg.Width)
	height := float64(r.cfg.Height)
	cx, cy := snap.Ring.CenterX, snap.Ring.CenterY
	if cx == 0 && cy == 0 {
		cx, cy = width/2, height/2
	}

	dc.SetColor(colorDim)
	dc.DrawRectangle(0, 0, width, height)
	dc.Fill()

	winner := *snap.Winner
	winner.X, winner.Y = cx, cy
	winner.Opacity = 1
	r.drawFlag(dc, &winner, 4*pulse(snap.Timestamp))

	textY := cy + winner.Height*2.6 + 40
	name := r.upper.String(winner.Name)

	if snap.Phase == game.PhaseChampionDisplay {
		bannerH := height * 0.06
		dc.SetColor(colorGold)
		dc.DrawRectangle(0, cy-winner.Height*2.6-bannerH-40, width, bannerH)
		dc.Fill()
		dc.SetFontFace(r.fonts.Large)
		dc.SetColor(colorBackground)
		dc.DrawStringAnchored("CHAMPION", width/2, cy-winner.Height*2.6-bannerH/2-40, 0.5, 0.35)

		dc.SetColor(colorGold)
		dc.DrawStringAnchored(name, width/2, textY, 0.5, 0.5)
	} else {
		dc.SetFontFace(r.fonts.Large)
		dc.SetColor(colorText)
		dc.DrawStringAnchored(name+" WINS!", width/2, textY, 0.5, 0.5)
	}

	dc.SetFontFace(r.fonts.Medium)
	dc.SetColor(colorSubtle)
	label := "wins"
	if snap.WinnerWins == 1 {
		label = "win"
	}
	dc.DrawStringAnchored(fmt.Sprintf("%d %s", snap.WinnerWins, label), width/2, textY+height*0.045, 0.5, 0.5)
}

// pulse oscillates around 1 with a 1 s period
func pulse(t time.Time) float64 {
	phase := float64(t.UnixMilli()%1000) / 1000
	return 1 + 0.08*math.Sin(phase*2*math.Pi)
}

// fade returns img with its alpha scaled by opacity
func fade(img image.Image, opacity float64) image.Image {
	b := img.Bounds()
	out := image.NewRGBA(b)
	mask := image.NewUniform(color.Alpha{A: uint8(255 * opacity)})
	draw.DrawMask(out, b, img, b.Min, mask, image.Point{}, draw.Over)
	return out
}

// codeColor derives a stable tile color from a country code
func codeColor(code string) color.RGBA {
	h := fnv.New32a()
	h.Write([]byte(code))
	v := h.Sum32()
	return color.RGBA{
		R: uint8(60 + v%160),
		G: uint8(60 + (v>>8)%160),
		B: uint8(60 + (v>>16)%160),
		A: 255,
	}
}
