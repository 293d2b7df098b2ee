package store

import (
	"log"
	"sync"
	"sync/atomic"

	"country-marbles/internal/game"
)

// Saver writes the leaderboard from its own goroutine so callers on the
// tick path never wait on disk. Requests made while a save is queued
// collapse into that save.
type Saver struct {
	store *FileStore
	lb    *game.Leaderboard

	requests chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once

	saves  uint64 // atomic
	errors uint64 // atomic
}

// NewSaver creates a saver for lb. Call Start before Request.
func NewSaver(store *FileStore, lb *game.Leaderboard) *Saver {
	return &Saver{
		store:    store,
		lb:       lb,
		requests: make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
}

// Start launches the writer goroutine
func (s *Saver) Start() {
	s.wg.Add(1)
	go s.loop()
}

// Request schedules a save. Never blocks.
func (s *Saver) Request() {
	select {
	case s.requests <- struct{}{}:
	default:
	}
}

// Stop writes any queued save and waits for the writer to exit
func (s *Saver) Stop() {
	s.once.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
}

// Stats returns completed saves and failures
func (s *Saver) Stats() (saves, errors uint64) {
	return atomic.LoadUint64(&s.saves), atomic.LoadUint64(&s.errors)
}

func (s *Saver) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.requests:
			s.save()
		case <-s.stopChan:
			select {
			case <-s.requests:
				s.save()
			default:
			}
			return
		}
	}
}

func (s *Saver) save() {
	if err := s.store.Snapshot(s.lb); err != nil {
		atomic.AddUint64(&s.errors, 1)
		log.Printf("⚠️ Leaderboard save failed: %v", err)
		return
	}
	atomic.AddUint64(&s.saves, 1)
}
