package audio

import (
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
)

const (
	// RingSlots is the number of PCM frames buffered ahead of the consumer
	// (16 × 20 ms = 320 ms)
	RingSlots = 16
	// MaxConsecutiveErrors marks the pipe lost
	MaxConsecutiveErrors = 10
)

// frameRing is a single-producer single-consumer ring of fixed-size frames.
// One slot stays empty to tell full from empty.
type frameRing struct {
	frames    [RingSlots][]byte
	readIdx   uint32 // atomic
	writeIdx  uint32 // atomic
	frameSize int

	written uint64 // atomic
	dropped uint64 // atomic
}

func newFrameRing(frameSize int) *frameRing {
	r := &frameRing{frameSize: frameSize}
	for i := range r.frames {
		r.frames[i] = make([]byte, frameSize)
	}
	return r
}

// tryWrite copies frame into the next slot; false when full
func (r *frameRing) tryWrite(frame []byte) bool {
	w := atomic.LoadUint32(&r.writeIdx)
	next := (w + 1) % RingSlots
	if next == atomic.LoadUint32(&r.readIdx) {
		atomic.AddUint64(&r.dropped, 1)
		return false
	}
	copy(r.frames[w], frame)
	atomic.StoreUint32(&r.writeIdx, next)
	atomic.AddUint64(&r.written, 1)
	return true
}

// peek returns the oldest frame without releasing its slot
func (r *frameRing) peek() []byte {
	rd := atomic.LoadUint32(&r.readIdx)
	if rd == atomic.LoadUint32(&r.writeIdx) {
		return nil
	}
	return r.frames[rd]
}

// release frees the slot returned by peek
func (r *frameRing) release() {
	rd := atomic.LoadUint32(&r.readIdx)
	atomic.StoreUint32(&r.readIdx, (rd+1)%RingSlots)
}

func (r *frameRing) available() int {
	rd := atomic.LoadUint32(&r.readIdx)
	w := atomic.LoadUint32(&r.writeIdx)
	if w >= rd {
		return int(w - rd)
	}
	return int(RingSlots - rd + w)
}

// PipeStats reports delivery to the consumer
type PipeStats struct {
	Buffered  uint64 `json:"buffered"`
	Dropped   uint64 `json:"dropped"`
	Delivered uint64 `json:"delivered"`
	Errors    uint64 `json:"errors"`
	Pending   int    `json:"pending"`
	Lost      bool   `json:"lost"`
}

// PipeWriter buffers PCM frames and delivers them to dst from its own
// goroutine, so a stalled consumer (an ffmpeg stdin, a fifo) never blocks
// the mixer clock. Frames that do not fit are dropped.
type PipeWriter struct {
	dst  io.Writer
	ring *frameRing

	notify   chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	delivered   uint64 // atomic
	errors      uint64 // atomic
	consecutive int    // writer goroutine only
	lost        atomic.Bool
}

// NewPipeWriter creates a writer for frames of exactly frameSize bytes
func NewPipeWriter(dst io.Writer, frameSize int) *PipeWriter {
	return &PipeWriter{
		dst:      dst,
		ring:     newFrameRing(frameSize),
		notify:   make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
}

// Start begins delivering frames
func (p *PipeWriter) Start() {
	p.wg.Add(1)
	go p.loop()
}

// Stop delivers nothing further and waits for the goroutine
func (p *PipeWriter) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()
}

// Write queues one frame. It fails only once the consumer is lost.
func (p *PipeWriter) Write(frame []byte) (int, error) {
	if p.lost.Load() {
		return 0, ErrPipeClosed
	}
	if len(frame) != p.ring.frameSize {
		return 0, fmt.Errorf("frame of %d bytes, want %d", len(frame), p.ring.frameSize)
	}
	p.ring.tryWrite(frame)
	select {
	case p.notify <- struct{}{}:
	default:
	}
	return len(frame), nil
}

// Stats returns delivery counters
func (p *PipeWriter) Stats() PipeStats {
	return PipeStats{
		Buffered:  atomic.LoadUint64(&p.ring.written),
		Dropped:   atomic.LoadUint64(&p.ring.dropped),
		Delivered: atomic.LoadUint64(&p.delivered),
		Errors:    atomic.LoadUint64(&p.errors),
		Pending:   p.ring.available(),
		Lost:      p.lost.Load(),
	}
}

func (p *PipeWriter) loop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			return
		case <-p.notify:
			if !p.drain() {
				return
			}
		}
	}
}

// drain writes every pending frame; false once the consumer is lost
func (p *PipeWriter) drain() bool {
	for frame := p.ring.peek(); frame != nil; frame = p.ring.peek() {
		select {
		case <-p.stopChan:
			return false
		default:
		}

		_, err := p.dst.Write(frame)
		p.ring.release()
		if err != nil {
			atomic.AddUint64(&p.errors, 1)
			p.consecutive++
			if p.consecutive <= 3 {
				log.Printf("❌ Audio pipe write error (%d/%d): %v", p.consecutive, MaxConsecutiveErrors, err)
			}
			if p.consecutive >= MaxConsecutiveErrors {
				p.lost.Store(true)
				log.Printf("🔴 Audio consumer lost after %d consecutive errors", p.consecutive)
				return false
			}
			continue
		}
		p.consecutive = 0
		atomic.AddUint64(&p.delivered, 1)
	}
	return true
}
