package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"country-marbles/internal/game"
)

// ============================================================================
// Mock Implementations
// ============================================================================

type mockEngine struct {
	mu       sync.Mutex
	lb       *game.Leaderboard
	favored  string
	resets   []string
	changes  []string
	resetErr error
	snap     game.GameSnapshot
	stats    game.EngineStats
}

func newMockEngine() *mockEngine {
	lb := game.NewLeaderboard()
	lb.Upsert("fr", "France", 3)
	lb.Upsert("jp", "Japan", 5)
	return &mockEngine{
		lb: lb,
		snap: game.GameSnapshot{
			Sequence:     7,
			RoundNumber:  2,
			Participants: 3,
			Remaining:    2,
			Flags: []game.FlagSnapshot{
				{Code: "fr", Name: "France", X: 540, Y: 960},
				{Code: "jp", Name: "Japan", X: 500, Y: 900},
			},
		},
		stats: game.EngineStats{RoundNumber: 2, RoundsCompleted: 1, Remaining: 2, Streak: 1, StreakHolder: "jp"},
	}
}

func (m *mockEngine) GetSnapshot() *game.GameSnapshot { return &m.snap }
func (m *mockEngine) Stats() game.EngineStats         { return m.stats }
func (m *mockEngine) Leaderboard() *game.Leaderboard  { return m.lb }

func (m *mockEngine) ManualReset(reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resetErr != nil {
		return m.resetErr
	}
	m.resets = append(m.resets, reason)
	return nil
}

func (m *mockEngine) SetFavored(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.favored = code
}

func (m *mockEngine) Favored() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.favored
}

func (m *mockEngine) LeaderboardChanged(action string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, action)
}

type mockMusic struct {
	playing bool
	volume  int
	skips   int
}

func (m *mockMusic) Tracks() []string   { return []string{"a.ogg", "b.ogg"} }
func (m *mockMusic) Skip() error        { m.skips++; return nil }
func (m *mockMusic) Playing() bool      { return m.playing }
func (m *mockMusic) SetPlaying(on bool) { m.playing = on }
func (m *mockMusic) Volume() int        { return m.volume }
func (m *mockMusic) SetVolume(pct int)  { m.volume = pct }

type mockRenderer struct{}

func (mockRenderer) EncodePNG(w io.Writer, snap *game.GameSnapshot) error {
	_, err := w.Write([]byte("\x89PNG"))
	return err
}

type mockStore struct {
	saves int
}

func (s *mockStore) Snapshot(lb *game.Leaderboard) error {
	s.saves++
	return nil
}

type testEnv struct {
	engine   *mockEngine
	music    *mockMusic
	store    *mockStore
	commands *CommandBox
	server   *httptest.Server
}

func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()
	env := &testEnv{
		engine:   newMockEngine(),
		music:    &mockMusic{playing: true, volume: 30},
		store:    &mockStore{},
		commands: NewCommandBox(),
	}
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000, CleanupInterval: time.Hour})
	t.Cleanup(rl.Stop)

	router := NewRouter(RouterConfig{
		Engine:   env.engine,
		Music:    env.music,
		Renderer: mockRenderer{},
		Store:    env.store,
		Countries: []game.Country{
			{Code: "fr", Name: "France"},
			{Code: "jp", Name: "Japan"},
			{Code: "br", Name: "Brazil"},
		},
		Commands:       env.commands,
		AdminToken:     token,
		RateLimiter:    rl,
		DisableLogging: true,
	})
	env.server = httptest.NewServer(router)
	t.Cleanup(env.server.Close)
	return env
}

func (env *testEnv) do(t *testing.T, method, path, token, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, env.server.URL+path, rdr)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp, out
}

// ============================================================================
// Public endpoints
// ============================================================================

func TestNewRouterHasNoSideEffects(t *testing.T) {
	router := NewRouter(RouterConfig{
		Engine: newMockEngine(),
		RateLimitConfig: &RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
			CleanupInterval:   time.Hour,
		},
		DisableLogging: true,
	})
	if router == nil {
		t.Fatal("Router should not be nil")
	}
}

func TestAPIGetState(t *testing.T) {
	env := newTestEnv(t, "")

	resp, body := env.do(t, http.MethodGet, "/api/state", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	flags, ok := body["flags"].([]interface{})
	if !ok || len(flags) != 2 {
		t.Fatalf("Expected 2 flags, got %v", body["flags"])
	}
	if body["phase"] != "playing" {
		t.Errorf("phase = %v, want playing", body["phase"])
	}
}

func TestAPIGetFrame(t *testing.T) {
	env := newTestEnv(t, "")

	resp, err := http.Get(env.server.URL + "/api/frame.png")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestAPIGetFrameWithoutRenderer(t *testing.T) {
	router := NewRouter(RouterConfig{
		Engine:          newMockEngine(),
		RateLimitConfig: &RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000, CleanupInterval: time.Hour},
		DisableLogging:  true,
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/frame.png", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
}

func TestAPIGetLeaderboard(t *testing.T) {
	env := newTestEnv(t, "")

	resp, err := http.Get(env.server.URL + "/api/leaderboard")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var rows []game.LeaderboardEntry
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 2 || rows[0].Code != "jp" || rows[0].Rank != 1 {
		t.Errorf("unexpected leaderboard %+v", rows)
	}
}

func TestAPIGetMusic(t *testing.T) {
	env := newTestEnv(t, "")
	_, body := env.do(t, http.MethodGet, "/api/music", "", "")
	if tracks, _ := body["tracks"].([]interface{}); len(tracks) != 2 {
		t.Errorf("tracks = %v", body["tracks"])
	}
}

// ============================================================================
// Admin authentication
// ============================================================================

func TestAdminTokenAuth(t *testing.T) {
	env := newTestEnv(t, "s3cret")

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong bearer", "Authorization", "Bearer nope", http.StatusUnauthorized},
		{"bearer", "Authorization", "Bearer s3cret", http.StatusOK},
		{"lowercase scheme", "Authorization", "bearer s3cret", http.StatusOK},
		{"header", AdminTokenHeader, "s3cret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/api/admin/ping", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestPublicRoutesSkipAuth(t *testing.T) {
	env := newTestEnv(t, "s3cret")
	resp, _ := env.do(t, http.MethodGet, "/api/state", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("public route status = %d", resp.StatusCode)
	}
}

// ============================================================================
// Admin round control
// ============================================================================

func TestAdminResetAndNewRound(t *testing.T) {
	env := newTestEnv(t, "tok")

	resp, body := env.do(t, http.MethodPost, "/api/admin/reset", "tok", "")
	if resp.StatusCode != http.StatusOK || body["success"] != true {
		t.Fatalf("reset: %d %v", resp.StatusCode, body)
	}
	if cmd := env.commands.Take(); cmd != CommandReset {
		t.Errorf("command = %q, want %q", cmd, CommandReset)
	}

	env.do(t, http.MethodPost, "/api/admin/new-round", "tok", "")
	env.do(t, http.MethodPost, "/api/admin/new-round", "tok", "")

	if got := len(env.engine.resets); got != 3 {
		t.Errorf("resets = %d, want 3", got)
	}

	_, stats := env.do(t, http.MethodGet, "/api/admin/stats", "tok", "")
	// 1 completed + 2 admin-forced
	if stats["totalRounds"] != float64(3) {
		t.Errorf("totalRounds = %v, want 3", stats["totalRounds"])
	}
	if stats["totalCountries"] != float64(3) {
		t.Errorf("totalCountries = %v, want 3", stats["totalCountries"])
	}
}

func TestAdminResetWithoutParticipants(t *testing.T) {
	env := newTestEnv(t, "")
	env.engine.resetErr = game.ErrNoParticipants

	resp, body := env.do(t, http.MethodPost, "/api/admin/reset", "", "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
	if body["success"] != false {
		t.Errorf("body = %v", body)
	}
	if cmd := env.commands.Take(); cmd != "" {
		t.Errorf("failed reset posted command %q", cmd)
	}
}

func TestAdminResetEngineFailure(t *testing.T) {
	env := newTestEnv(t, "")
	env.engine.resetErr = errors.New("boom")

	resp, _ := env.do(t, http.MethodPost, "/api/admin/reset", "", "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestAdminCommandPolling(t *testing.T) {
	env := newTestEnv(t, "")

	_, body := env.do(t, http.MethodGet, "/api/admin/command", "", "")
	if body["command"] != nil {
		t.Errorf("idle command = %v, want null", body["command"])
	}

	env.do(t, http.MethodPost, "/api/admin/skip-track", "", "")
	_, body = env.do(t, http.MethodGet, "/api/admin/command", "", "")
	if body["command"] != CommandSkipTrack {
		t.Errorf("command = %v, want %s", body["command"], CommandSkipTrack)
	}

	// Commands are consumed on read
	_, body = env.do(t, http.MethodGet, "/api/admin/command", "", "")
	if body["command"] != nil {
		t.Errorf("second read = %v, want null", body["command"])
	}
}

// ============================================================================
// Admin leaderboard edits
// ============================================================================

func TestAdminLeaderboardEdits(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantWins   map[string]int // -1 means absent
	}{
		{"update", "/api/admin/leaderboard/update", `{"code":"FR","wins":9}`, http.StatusOK, map[string]int{"fr": 9}},
		{"update negative clamps", "/api/admin/leaderboard/update", `{"code":"fr","wins":-4}`, http.StatusOK, map[string]int{"fr": 0}},
		{"update unknown", "/api/admin/leaderboard/update", `{"code":"zz","wins":1}`, http.StatusNotFound, map[string]int{"zz": -1}},
		{"update missing wins", "/api/admin/leaderboard/update", `{"code":"fr"}`, http.StatusBadRequest, map[string]int{"fr": 3}},
		{"delete", "/api/admin/leaderboard/delete", `{"code":"jp"}`, http.StatusOK, map[string]int{"jp": -1}},
		{"delete unknown", "/api/admin/leaderboard/delete", `{"code":"zz"}`, http.StatusNotFound, map[string]int{"fr": 3}},
		{"delete bad json", "/api/admin/leaderboard/delete", `{`, http.StatusBadRequest, map[string]int{"jp": 5}},
		{"replace", "/api/admin/leaderboard", `{"leaderboard":{"br":{"name":"Brazil","wins":2}}}`, http.StatusOK, map[string]int{"br": 2, "fr": -1}},
		{"replace missing", "/api/admin/leaderboard", `{}`, http.StatusBadRequest, map[string]int{"fr": 3}},
		{"clear", "/api/admin/clear-leaderboard", "", http.StatusOK, map[string]int{"fr": -1, "jp": -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "")
			resp, body := env.do(t, http.MethodPost, tt.path, "", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%v)", resp.StatusCode, tt.wantStatus, body)
			}

			entries := map[string]int{}
			for _, e := range env.engine.lb.Entries() {
				entries[e.Code] = e.Wins
			}
			for code, want := range tt.wantWins {
				got, ok := entries[code]
				if want == -1 {
					if ok {
						t.Errorf("%s still present with %d wins", code, got)
					}
					continue
				}
				if got != want {
					t.Errorf("%s wins = %d, want %d", code, got, want)
				}
			}

			if tt.wantStatus == http.StatusOK && env.store.saves != 1 {
				t.Errorf("store saves = %d, want 1", env.store.saves)
			}
			if tt.wantStatus != http.StatusOK && env.store.saves != 0 {
				t.Errorf("failed edit saved the leaderboard")
			}
		})
	}
}

func TestAdminClearPostsClearCommand(t *testing.T) {
	env := newTestEnv(t, "")
	env.do(t, http.MethodPost, "/api/admin/clear-leaderboard", "", "")
	if cmd := env.commands.Take(); cmd != CommandClearLeaderboard {
		t.Errorf("command = %q, want %q", cmd, CommandClearLeaderboard)
	}
	if len(env.engine.changes) != 1 || env.engine.changes[0] != "clear" {
		t.Errorf("changes = %v", env.engine.changes)
	}
}

func TestAdminGetLeaderboardTable(t *testing.T) {
	env := newTestEnv(t, "")
	_, body := env.do(t, http.MethodGet, "/api/admin/leaderboard", "", "")
	table, ok := body["leaderboard"].(map[string]interface{})
	if !ok {
		t.Fatalf("leaderboard = %v", body["leaderboard"])
	}
	jp, _ := table["jp"].(map[string]interface{})
	if jp["name"] != "Japan" || jp["wins"] != float64(5) {
		t.Errorf("jp = %v", jp)
	}
}

// ============================================================================
// Music and favored country
// ============================================================================

func TestAdminVolume(t *testing.T) {
	tests := []struct {
		body string
		want int
		code int
	}{
		{`{"volume":55}`, 55, http.StatusOK},
		{`{"volume":150}`, 100, http.StatusOK},
		{`{"volume":-3}`, 0, http.StatusOK},
		{`{"volume":0}`, 0, http.StatusOK},
		{`{}`, 30, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			env := newTestEnv(t, "")
			resp, _ := env.do(t, http.MethodPost, "/api/admin/volume", "", tt.body)
			if resp.StatusCode != tt.code {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.code)
			}
			if env.music.volume != tt.want {
				t.Errorf("volume = %d, want %d", env.music.volume, tt.want)
			}
		})
	}
}

func TestAdminToggleMusic(t *testing.T) {
	env := newTestEnv(t, "")
	_, body := env.do(t, http.MethodPost, "/api/admin/toggle-music", "", "")
	if body["playing"] != false || env.music.playing {
		t.Errorf("toggle from playing: %v", body)
	}
	_, body = env.do(t, http.MethodPost, "/api/admin/toggle-music", "", "")
	if body["playing"] != true {
		t.Errorf("toggle back: %v", body)
	}
}

func TestAdminMusicUnavailable(t *testing.T) {
	router := NewRouter(RouterConfig{
		Engine:          newMockEngine(),
		RateLimitConfig: &RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000, CleanupInterval: time.Hour},
		DisableLogging:  true,
	})
	for _, path := range []string{"/api/admin/skip-track", "/api/admin/toggle-music"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", path, rec.Code)
		}
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/music", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("/api/music status = %d, want 404", rec.Code)
	}
}

func TestAdminFavored(t *testing.T) {
	env := newTestEnv(t, "")

	resp, body := env.do(t, http.MethodPost, "/api/admin/rig", "", `{"code":" JP "}`)
	if resp.StatusCode != http.StatusOK || body["riggedCountry"] != "jp" {
		t.Fatalf("set: %d %v", resp.StatusCode, body)
	}
	if env.engine.Favored() != "jp" {
		t.Errorf("engine favored = %q", env.engine.Favored())
	}

	resp, _ = env.do(t, http.MethodPost, "/api/admin/rig", "", `{"code":"zz"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown code status = %d, want 404", resp.StatusCode)
	}
	if env.engine.Favored() != "jp" {
		t.Errorf("unknown code changed favored to %q", env.engine.Favored())
	}

	resp, _ = env.do(t, http.MethodPost, "/api/admin/rig", "", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing code status = %d, want 400", resp.StatusCode)
	}

	_, body = env.do(t, http.MethodPost, "/api/admin/rig", "", `{"code":""}`)
	if body["riggedCountry"] != nil || env.engine.Favored() != "" {
		t.Errorf("clear: %v", body)
	}

	_, body = env.do(t, http.MethodGet, "/api/admin/rig", "", "")
	if body["riggedCountry"] != nil {
		t.Errorf("get after clear = %v", body["riggedCountry"])
	}
}

// ============================================================================
// Middleware
// ============================================================================

func TestRateLimiterRejectsBurst(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2, CleanupInterval: time.Hour})
	defer rl.Stop()

	router := NewRouter(RouterConfig{
		Engine:         newMockEngine(),
		RateLimiter:    rl,
		DisableLogging: true,
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	// A different client has its own bucket
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("second client status = %d", rec.Code)
	}

	if stats := rl.GetStats(); stats["rejected"] != 1 || stats["allowed"] != 3 {
		t.Errorf("stats = %v", stats)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 10, Burst: 10, CleanupInterval: time.Minute})
	defer rl.Stop()

	rl.Allow("1.1.1.1")
	rl.Allow("2.2.2.2")

	if n := rl.cleanup(time.Now()); n != 0 {
		t.Errorf("fresh entries removed: %d", n)
	}
	if n := rl.cleanup(time.Now().Add(3 * time.Minute)); n != 2 {
		t.Errorf("stale entries removed = %d, want 2", n)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.168.1.5:5555", "192.168.1.5"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "10.0.0.1:1", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.4 "}, "10.0.0.1:1", "198.51.100.4"},
		{"no port", nil, "weird", "weird"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := GetClientIP(req); got != tt.want {
				t.Errorf("GetClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConnectionLimiter(t *testing.T) {
	cl := NewConnectionLimiter(2)
	if !cl.Acquire("a") || !cl.Acquire("a") {
		t.Fatal("first two acquires should succeed")
	}
	if cl.Acquire("a") {
		t.Error("third acquire should fail")
	}
	if !cl.Acquire("b") {
		t.Error("other ip should have its own slots")
	}
	cl.Release("a")
	if cl.Count("a") != 1 {
		t.Errorf("count = %d, want 1", cl.Count("a"))
	}
	cl.Release("a")
	cl.Release("a")
	if cl.Count("a") != 0 {
		t.Errorf("count after over-release = %d, want 0", cl.Count("a"))
	}
}

func TestIsAllowedOrigin(t *testing.T) {
	saved := AllowedOrigins
	defer func() { AllowedOrigins = saved }()
	AllowedOrigins = []string{"https://marbles.example"}

	tests := map[string]bool{
		"":                        true,
		"http://localhost:5173":   true,
		"http://127.0.0.1:5000":   true,
		"https://marbles.example": true,
		"https://evil.example":    false,
	}
	for origin, want := range tests {
		if got := IsAllowedOrigin(origin); got != want {
			t.Errorf("IsAllowedOrigin(%q) = %v, want %v", origin, got, want)
		}
	}
}

// ============================================================================
// CommandBox and hub
// ============================================================================

func TestCommandBoxForwards(t *testing.T) {
	box := NewCommandBox()
	var got []string
	box.OnCommand(func(cmd string) { got = append(got, cmd) })

	box.Post(CommandSkipTrack)
	box.Post(CommandSetVolume)

	if len(got) != 2 || got[1] != CommandSetVolume {
		t.Errorf("forwarded = %v", got)
	}
	// Only the latest unread command is kept for polling
	if cmd := box.Take(); cmd != CommandSetVolume {
		t.Errorf("Take = %q", cmd)
	}
	if cmd := box.Take(); cmd != "" {
		t.Errorf("second Take = %q", cmd)
	}
}

func TestBroadcastEnvelope(t *testing.T) {
	hub := NewWebSocketHub()
	hub.Broadcast(WSEventGame, game.GameEvent{Type: game.EventTypeWinner, Country: game.Country{Code: "jp", Name: "Japan"}, Wins: 2})

	select {
	case raw := <-hub.broadcast:
		var msg struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.Event != WSEventGame {
			t.Errorf("event = %q", msg.Event)
		}
		if !bytes.Contains(msg.Data, []byte(`"winner"`)) {
			t.Errorf("data = %s", msg.Data)
		}
	default:
		t.Fatal("nothing queued")
	}
}

func TestBroadcastDropsWhenFull(t *testing.T) {
	hub := NewWebSocketHub()
	for i := 0; i < cap(hub.broadcast)+10; i++ {
		hub.BroadcastCommand(CommandReset)
	}
	if len(hub.broadcast) != cap(hub.broadcast) {
		t.Errorf("queued = %d, want %d", len(hub.broadcast), cap(hub.broadcast))
	}
}

func TestDebugHandlerHealth(t *testing.T) {
	h := DebugHandler(ObservabilityConfig{Enabled: true, ListenAddr: "127.0.0.1:0"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("health = %d %q", rec.Code, rec.Body.String())
	}

	authed := DebugHandler(ObservabilityConfig{BasicAuthUser: "u", BasicAuthPass: "p"})
	rec = httptest.NewRecorder()
	authed.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d", rec.Code)
	}
}

func TestIsLoopback(t *testing.T) {
	tests := map[string]bool{
		"127.0.0.1:6060": true,
		"localhost:6060": true,
		"[::1]:6060":     true,
		"0.0.0.0:6060":   false,
		":6060":          false,
	}
	for addr, want := range tests {
		if got := isLoopback(addr); got != want {
			t.Errorf("isLoopback(%q) = %v, want %v", addr, got, want)
		}
	}
}
