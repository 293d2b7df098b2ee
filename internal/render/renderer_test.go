package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"country-marbles/internal/game"
)

func testSnapshot() *game.GameSnapshot {
	return &game.GameSnapshot{
		Width:       1080,
		Height:      1920,
		RoundNumber: 3,
		Phase:       game.PhasePlaying,
		Ring: game.RingSnapshot{
			CenterX:   540,
			CenterY:   750,
			Radius:    400,
			Thickness: 20,
			GapStart:  0,
			GapEnd:    math.Pi / 4,
		},
		Flags: []game.FlagSnapshot{
			{Code: "ar", Name: "Argentina", X: 540, Y: 750, Width: 60, Height: 45, Opacity: 1},
			{Code: "br", Name: "Brazil", X: 600, Y: 700, Width: 60, Height: 45, Opacity: 0.5},
			{Code: "cl", Name: "Chile", X: 300, Y: 1800, Width: 60, Height: 45, Opacity: 0, State: game.FlagSettled},
		},
		Leaderboard: []game.LeaderboardEntry{
			{Code: "ar", Name: "Argentina", Wins: 4, Rank: 1},
			{Code: "br", Name: "Brazil", Wins: 2, Rank: 2},
		},
		Participants: 3,
		Remaining:    2,
		Timestamp:    time.Unix(100, 0),
	}
}

func sameRGB(a color.RGBA, b color.RGBA) bool {
	return a.R == b.R && a.G == b.G && a.B == b.B
}

func TestRenderRingLeavesGapOpen(t *testing.T) {
	r := NewRenderer(Config{Width: 1080, Height: 1920})
	img := r.Render(testSnapshot())

	if b := img.Bounds(); b.Dx() != 1080 || b.Dy() != 1920 {
		t.Fatalf("bounds = %v", b)
	}

	at := func(angle float64) color.RGBA {
		x := 540 + 400*math.Cos(angle)
		y := 750 + 400*math.Sin(angle)
		return img.RGBAAt(int(math.Round(x)), int(math.Round(y)))
	}

	if got := at(math.Pi); !sameRGB(got, colorRing) {
		t.Errorf("ring pixel = %v, want %v", got, colorRing)
	}
	if got := at(math.Pi / 8); !sameRGB(got, colorBackground) {
		t.Errorf("gap pixel = %v, want background %v", got, colorBackground)
	}
}

func TestRenderWrappedGap(t *testing.T) {
	snap := testSnapshot()
	// Opening straddles angle 0
	snap.Ring.GapStart = 2*math.Pi - 0.2
	snap.Ring.GapEnd = 0.2

	r := NewRenderer(Config{Width: 1080, Height: 1920})
	img := r.Render(snap)

	gap := img.RGBAAt(940, 750) // angle 0
	if !sameRGB(gap, colorBackground) {
		t.Errorf("wrapped gap pixel = %v", gap)
	}
	ring := img.RGBAAt(540, 1150) // angle π/2
	if !sameRGB(ring, colorRing) {
		t.Errorf("ring pixel = %v", ring)
	}
}

func TestEncodePNG(t *testing.T) {
	var calls int
	r := NewRenderer(Config{Width: 540, Height: 960})
	r.OnRender = func(d time.Duration) { calls++ }

	snap := testSnapshot()
	snap.Phase = game.PhaseChampionDisplay
	w := snap.Flags[0]
	snap.Winner = &w
	snap.WinnerWins = 4

	var buf bytes.Buffer
	if err := r.EncodePNG(&buf, snap); err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 540 || b.Dy() != 960 {
		t.Errorf("bounds = %v", b)
	}
	if calls != 1 {
		t.Errorf("OnRender calls = %d, want 1", calls)
	}
}

func TestRenderNilSnapshot(t *testing.T) {
	r := NewRenderer(Config{Width: 100, Height: 100})
	img := r.Render(nil)
	if got := img.RGBAAt(50, 50); !sameRGB(got, colorBackground) {
		t.Errorf("empty frame pixel = %v", got)
	}
}

func writePNG(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestFlagCachePreload(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "ar.png"), 120, 80, color.RGBA{R: 200, A: 255})

	c := NewFlagCache(dir, 60, 45, 0)
	if n := c.Preload([]string{"ar", "zz"}); n != 1 {
		t.Fatalf("Preload found %d, want 1", n)
	}

	img := c.Get("ar")
	if img == nil {
		t.Fatal("ar not cached")
	}
	if b := img.Bounds(); b.Dx() != 60 || b.Dy() != 45 {
		t.Errorf("scaled bounds = %v, want 60x45", b)
	}

	// Corners are cut, the middle is opaque
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Errorf("corner alpha = %d, want 0", a)
	}
	if r, _, _, a := img.At(30, 22).RGBA(); a == 0 || r == 0 {
		t.Errorf("center pixel transparent")
	}

	// Misses are remembered and never loaded asynchronously
	if c.GetOrLoad("zz") != nil {
		t.Error("missing flag returned an image")
	}
	if c.Size() != 1 {
		t.Errorf("Size = %d, want 1", c.Size())
	}
}

func TestFlagCacheEviction(t *testing.T) {
	dir := t.TempDir()
	for _, code := range []string{"aa", "bb", "cc"} {
		writePNG(t, filepath.Join(dir, code+".png"), 8, 6, color.White)
	}

	c := NewFlagCache(dir, 8, 6, 2)
	c.Preload([]string{"aa", "bb", "cc"})

	if c.Size() != 2 {
		t.Fatalf("Size = %d, want 2", c.Size())
	}
	if c.Get("aa") != nil {
		t.Error("oldest entry not evicted")
	}
	if c.Get("cc") == nil {
		t.Error("newest entry missing")
	}
}

func TestFlagCacheDisabled(t *testing.T) {
	c := NewFlagCache("", 60, 45, 0)
	if c.Preload([]string{"ar"}) != 0 || c.GetOrLoad("ar") != nil {
		t.Error("disabled cache loaded something")
	}
}

func TestCodeColorStable(t *testing.T) {
	if codeColor("ar") != codeColor("ar") {
		t.Error("codeColor not deterministic")
	}
	if codeColor("ar") == codeColor("br") {
		t.Error("distinct codes share a color")
	}
}

func TestPulseRange(t *testing.T) {
	for ms := int64(0); ms < 1000; ms += 50 {
		p := pulse(time.UnixMilli(ms))
		if p < 0.92-1e-9 || p > 1.08+1e-9 {
			t.Errorf("pulse(%d) = %f", ms, p)
		}
	}
}
