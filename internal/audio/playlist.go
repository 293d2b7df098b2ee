package audio

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/vorbis"
)

// ErrNoTracks is returned when the music directory holds no tracks
var ErrNoTracks = errors.New("no music tracks")

// OpenFunc opens a track for streaming
type OpenFunc func(path string) (beep.StreamSeekCloser, beep.Format, error)

// OpenVorbis streams an OGG file without decoding it fully
func OpenVorbis(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}
	s, format, err := vorbis.Decode(f)
	if err != nil {
		f.Close()
		return nil, beep.Format{}, err
	}
	return s, format, nil
}

// Playlist plays random background tracks, never the same one twice in a
// row, and is a beep.Streamer so it can be mixed. Volume is 0-100.
type Playlist struct {
	mu sync.Mutex

	dir    string
	tracks []string
	open   OpenFunc
	rng    *rand.Rand

	current int // index into tracks, -1 before the first track
	source  beep.StreamSeekCloser
	volume  *effects.Volume

	playing bool
	percent int
}

// ScanTracks lists *.ogg files in dir, sorted
func ScanTracks(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.ogg"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	sort.Strings(names)
	return names, nil
}

// NewPlaylist scans dir for tracks. open may be nil to use OpenVorbis.
func NewPlaylist(dir string, percent int, playing bool, seed int64, open OpenFunc) (*Playlist, error) {
	tracks, err := ScanTracks(dir)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoTracks, dir)
	}
	if open == nil {
		open = OpenVorbis
	}

	p := &Playlist{
		dir:     dir,
		tracks:  tracks,
		open:    open,
		rng:     rand.New(rand.NewSource(seed)),
		current: -1,
		playing: playing,
	}
	p.SetVolume(percent)
	log.Printf("🎵 Playlist loaded: %d tracks from %s", len(tracks), dir)
	return p, nil
}

// Tracks returns the track file names
func (p *Playlist) Tracks() []string {
	out := make([]string, len(p.tracks))
	copy(out, p.tracks)
	return out
}

// Current returns the playing track name ("" before the first track)
func (p *Playlist) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current < 0 {
		return ""
	}
	return p.tracks[p.current]
}

// Skip moves to another random track
func (p *Playlist) Skip() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.advanceLocked()
}

// Playing reports whether music is audible
func (p *Playlist) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// SetPlaying pauses or resumes without losing the position
func (p *Playlist) SetPlaying(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = on
	log.Printf("🎵 Music %s", map[bool]string{true: "resumed", false: "paused"}[on])
}

// Volume returns the level in percent
func (p *Playlist) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.percent
}

// SetVolume sets the level, clamped to 0-100
func (p *Playlist) SetVolume(percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	p.percent = percent
	if p.volume != nil {
		applyPercent(p.volume, percent)
	}
}

// applyPercent maps 0-100 onto a base-2 volume; 0 is silent
func applyPercent(v *effects.Volume, percent int) {
	if percent <= 0 {
		v.Silent = true
		v.Volume = 0
		return
	}
	v.Silent = false
	v.Volume = math.Log2(float64(percent) / 100)
}

// nextIndex picks a random track other than last
func nextIndex(rng *rand.Rand, n, last int) int {
	if n <= 1 {
		return 0
	}
	if last < 0 || last >= n {
		return rng.Intn(n)
	}
	i := rng.Intn(n - 1)
	if i >= last {
		i++
	}
	return i
}

// advanceLocked opens the next track; unreadable tracks are skipped
func (p *Playlist) advanceLocked() error {
	if p.source != nil {
		p.source.Close()
		p.source = nil
		p.volume = nil
	}

	var lastErr error
	for attempt := 0; attempt < len(p.tracks); attempt++ {
		idx := nextIndex(p.rng, len(p.tracks), p.current)
		p.current = idx

		src, format, err := p.open(filepath.Join(p.dir, p.tracks[idx]))
		if err != nil {
			log.Printf("⚠️ Track %s unusable: %v", p.tracks[idx], err)
			lastErr = err
			continue
		}
		p.source = src
		p.volume = &effects.Volume{Streamer: toFormat(src, format), Base: 2}
		applyPercent(p.volume, p.percent)
		log.Printf("🎵 Now playing: %s", p.tracks[idx])
		return nil
	}
	return fmt.Errorf("open track: %w", lastErr)
}

// Stream fills samples with music, or silence while paused. It never
// ends; tracks chain forever.
func (p *Playlist) Stream(samples [][2]float64) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range samples {
		samples[i] = [2]float64{}
	}
	if !p.playing {
		return len(samples), true
	}

	filled := 0
	for filled < len(samples) {
		if p.volume == nil {
			if err := p.advanceLocked(); err != nil {
				break
			}
		}
		n, ok := p.volume.Stream(samples[filled:])
		filled += n
		if !ok || n == 0 {
			if err := p.advanceLocked(); err != nil {
				break
			}
		}
	}
	return len(samples), true
}

// Err implements beep.Streamer
func (p *Playlist) Err() error {
	return nil
}

// Close releases the open track
func (p *Playlist) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.source == nil {
		return nil
	}
	err := p.source.Close()
	p.source = nil
	p.volume = nil
	return err
}
