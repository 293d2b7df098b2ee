package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"country-marbles/internal/api"
	"country-marbles/internal/game"

	"github.com/gorilla/websocket"
)

// source supplies what the view shows: snapshots to draw and feed lines
type source interface {
	Snapshot() *game.GameSnapshot
	Reset() error
	Feed() <-chan string
	Close()
}

// localSource watches an in-process engine
type localSource struct {
	engine *game.Engine
	feed   chan string
}

func newLocalSource(engine *game.Engine) *localSource {
	s := &localSource{engine: engine, feed: make(chan string, 64)}
	engine.Subscribe(func(ev game.GameEvent) { s.push(ev) })
	return s
}

func (s *localSource) push(ev game.GameEvent) {
	if line, ok := describe(ev); ok {
		select {
		case s.feed <- line:
		default:
		}
	}
}

func (s *localSource) Snapshot() *game.GameSnapshot { return s.engine.GetSnapshot() }
func (s *localSource) Reset() error                  { return s.engine.ManualReset("spectator") }
func (s *localSource) Feed() <-chan string           { return s.feed }
func (s *localSource) Close()                        { s.engine.Stop() }

const (
	maxReconnects      = 10
	reconnectBaseDelay = time.Second
	maxReconnectDelay  = 30 * time.Second
)

// envelope is the server's websocket message
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// remoteSource follows a running server over its /ws endpoint, reconnecting
// with exponential backoff
type remoteSource struct {
	wsURL    string
	resetURL string
	token    string
	client   *http.Client

	feed chan string
	done chan struct{}
	once sync.Once

	mu       sync.RWMutex
	conn     *websocket.Conn
	snapshot *game.GameSnapshot
	attempts int
}

// newRemoteSource prepares a client for ws://host:port/ws. Call run to
// start reading.
func newRemoteSource(wsURL, token string) (*remoteSource, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("remote url: %w", err)
	}
	scheme := "http"
	switch u.Scheme {
	case "ws":
	case "wss":
		scheme = "https"
	default:
		return nil, fmt.Errorf("remote url %q: scheme must be ws or wss", wsURL)
	}
	reset := url.URL{Scheme: scheme, Host: u.Host, Path: "/api/admin/reset"}

	return &remoteSource{
		wsURL:    u.String(),
		resetURL: reset.String(),
		token:    token,
		client:   &http.Client{Timeout: 5 * time.Second},
		feed:     make(chan string, 64),
		done:     make(chan struct{}),
	}, nil
}

func (s *remoteSource) connect() error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(s.wsURL, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.attempts = 0
	s.mu.Unlock()
	s.note("connected to " + s.wsURL)
	return nil
}

// run reads messages until Close; call in a goroutine
func (s *remoteSource) run() {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()

		if conn == nil {
			if !s.reconnect() {
				return
			}
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			log.Printf("⚠️ Remote read error: %v", err)
			s.note("connection lost")
			conn.Close()
			s.mu.Lock()
			s.conn = nil
			s.mu.Unlock()
			continue
		}
		s.handleMessage(data)
	}
}

func (s *remoteSource) handleMessage(data []byte) {
	var msg envelope
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("⚠️ Bad remote message: %v", err)
		return
	}

	switch msg.Event {
	case api.WSEventState:
		var snap game.GameSnapshot
		if err := json.Unmarshal(msg.Data, &snap); err != nil {
			log.Printf("⚠️ Bad snapshot: %v", err)
			return
		}
		s.mu.Lock()
		s.snapshot = &snap
		s.mu.Unlock()

	case api.WSEventGame:
		var ev game.GameEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Printf("⚠️ Bad event: %v", err)
			return
		}
		if line, ok := describe(ev); ok {
			s.note(line)
		}

	case api.WSEventCommand:
		var cmd struct {
			Command string `json:"command"`
		}
		if json.Unmarshal(msg.Data, &cmd) == nil && cmd.Command != "" {
			s.note("admin: " + cmd.Command)
		}
	}
}

// reconnect waits out the backoff and dials again; false once attempts are
// exhausted or the source is closed
func (s *remoteSource) reconnect() bool {
	s.mu.Lock()
	s.attempts++
	attempt := s.attempts
	s.mu.Unlock()

	if attempt > maxReconnects {
		s.note("gave up reconnecting")
		return false
	}

	delay := backoff(attempt)
	if attempt > 1 {
		s.note(fmt.Sprintf("reconnecting in %v", delay))
	}
	select {
	case <-s.done:
		return false
	case <-time.After(delay):
	}

	if err := s.connect(); err != nil {
		log.Printf("❌ Remote connect failed: %v", err)
	}
	return true
}

// backoff doubles from reconnectBaseDelay; the first attempt is immediate
func backoff(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	d := reconnectBaseDelay
	for i := 2; i < attempt && d < maxReconnectDelay; i++ {
		d *= 2
	}
	return min(d, maxReconnectDelay)
}

func (s *remoteSource) note(line string) {
	select {
	case s.feed <- line:
	default:
	}
}

func (s *remoteSource) Snapshot() *game.GameSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *remoteSource) Feed() <-chan string { return s.feed }

// Reset asks the server for a manual reset through the admin API
func (s *remoteSource) Reset() error {
	req, err := http.NewRequest(http.MethodPost, s.resetURL, strings.NewReader("{}"))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reset: %s", resp.Status)
	}
	return nil
}

func (s *remoteSource) Close() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.mu.Unlock()
	})
}
