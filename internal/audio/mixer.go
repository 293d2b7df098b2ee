package audio

import (
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
)

// FrameDuration is the amount of audio written per tick
const FrameDuration = 20 * time.Millisecond

type playRequest struct {
	clip  string
	delay time.Duration
}

// MixerStats reports mixer activity
type MixerStats struct {
	Played        uint64 `json:"played"`
	Missing       uint64 `json:"missing"`
	Dropped       uint64 `json:"dropped"`
	Active        int    `json:"active"`
	FramesWritten uint64 `json:"framesWritten"`
}

// Mixer combines background music with queued announcer clips and writes
// fixed-size PCM frames to out on a ticker
type Mixer struct {
	out   io.Writer
	music beep.Streamer
	clips *ClipLibrary

	playQueue chan playRequest
	stopChan  chan struct{}
	stopped   atomic.Bool
	errChan   chan error
	wg        sync.WaitGroup

	// Accessed only by the goroutine producing frames
	fx     *beep.Mixer
	mixBuf [][2]float64
	fxBuf  [][2]float64
	outBuf []byte

	statsMu sync.Mutex
	stats   MixerStats
}

// NewMixer creates a mixer. music may be nil; out may be nil when frames are
// only pulled with GenerateFrame.
func NewMixer(out io.Writer, music beep.Streamer, clips *ClipLibrary) *Mixer {
	return &Mixer{
		out:       out,
		music:     music,
		clips:     clips,
		playQueue: make(chan playRequest, 32),
		stopChan:  make(chan struct{}),
		errChan:   make(chan error, 1),
		fx:        &beep.Mixer{KeepAlive: true},
	}
}

// Play queues a clip to start after delay. Never blocks; a full queue
// drops the request.
func (m *Mixer) Play(clip string, delay time.Duration) {
	if m.stopped.Load() {
		return
	}
	select {
	case m.playQueue <- playRequest{clip: clip, delay: delay}:
	default:
		m.statsMu.Lock()
		m.stats.Dropped++
		m.statsMu.Unlock()
	}
}

// Errors reports output failures
func (m *Mixer) Errors() <-chan error {
	return m.errChan
}

// Start begins writing frames to out
func (m *Mixer) Start() {
	if m.out == nil {
		return
	}
	m.wg.Add(1)
	go m.loop()
	log.Printf("🔊 Audio mixer started (%d Hz, %v frames)", SampleRate, FrameDuration)
}

// Stop halts the loop and waits for it to exit
func (m *Mixer) Stop() {
	m.halt()
	m.wg.Wait()
}

func (m *Mixer) halt() {
	if m.stopped.CompareAndSwap(false, true) {
		close(m.stopChan)
	}
}

// GetStats returns a copy of the counters
func (m *Mixer) GetStats() MixerStats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}

func (m *Mixer) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	samples := SampleRate.N(FrameDuration)
	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			frame := m.GenerateFrame(samples)
			if _, err := m.out.Write(frame); err != nil {
				select {
				case m.errChan <- fmt.Errorf("%w: %v", ErrPipeClosed, err):
				default:
				}
				log.Printf("⚠️ Audio output failed: %v", err)
				m.halt()
				return
			}
			m.statsMu.Lock()
			m.stats.FramesWritten++
			m.statsMu.Unlock()
		}
	}
}

// GenerateFrame mixes the next n samples and returns them as s16le bytes.
// The returned slice is reused by the next call. Must not be called
// concurrently with a running loop.
func (m *Mixer) GenerateFrame(n int) []byte {
	m.drainQueue()

	if cap(m.mixBuf) < n {
		m.mixBuf = make([][2]float64, n)
		m.fxBuf = make([][2]float64, n)
		m.outBuf = make([]byte, n*BytesPerFrame)
	}
	mix := m.mixBuf[:n]
	for i := range mix {
		mix[i] = [2]float64{}
	}

	if m.music != nil {
		m.music.Stream(mix)
	}

	if m.fx.Len() > 0 {
		fx := m.fxBuf[:n]
		for i := range fx {
			fx[i] = [2]float64{}
		}
		m.fx.Stream(fx)
		for i := range mix {
			mix[i][0] += fx[i][0]
			mix[i][1] += fx[i][1]
		}
	}

	m.statsMu.Lock()
	m.stats.Active = m.fx.Len()
	m.statsMu.Unlock()

	out := m.outBuf[:n*BytesPerFrame]
	encodeS16LE(mix, out)
	return out
}

// drainQueue moves queued requests into the effects mixer. A delay is a
// leading stretch of silence so clip timing follows the audio clock.
func (m *Mixer) drainQueue() {
	for {
		select {
		case req := <-m.playQueue:
			m.start(req)
		default:
			return
		}
	}
}

func (m *Mixer) start(req playRequest) {
	var clip beep.Streamer
	if m.clips != nil {
		if s := m.clips.Streamer(req.clip); s != nil {
			clip = s
		}
	}

	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	if clip == nil {
		m.stats.Missing++
		return
	}
	if req.delay > 0 {
		clip = beep.Seq(beep.Silence(SampleRate.N(req.delay)), clip)
	}
	m.fx.Add(clip)
	m.stats.Played++
}
