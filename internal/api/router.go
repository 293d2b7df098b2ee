package api

import (
	"io"
	"net/http"
	"time"

	"country-marbles/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// EngineInterface defines the engine methods used by the API.
// This interface enables mocking for tests without spinning up the game loop.
// Keep this minimal - only include methods the API layer actually calls.
type EngineInterface interface {
	// GetSnapshot returns the latest lock-free immutable snapshot
	GetSnapshot() *game.GameSnapshot
	// Stats returns round counters
	Stats() game.EngineStats
	// ManualReset starts a fresh round immediately
	ManualReset(reason string) error
	// SetFavored sets (or clears with "") the favored country
	SetFavored(code string)
	// Favored returns the favored country code
	Favored() string
	// Leaderboard returns the shared win table
	Leaderboard() *game.Leaderboard
	// LeaderboardChanged records an external leaderboard edit
	LeaderboardChanged(action string)
}

// MusicInterface defines the playlist controls used by the admin API.
type MusicInterface interface {
	Tracks() []string
	Skip() error
	Playing() bool
	SetPlaying(on bool)
	Volume() int // 0-100
	SetVolume(pct int)
}

// FrameRenderer draws a snapshot as a PNG image.
type FrameRenderer interface {
	EncodePNG(w io.Writer, snap *game.GameSnapshot) error
}

// LeaderboardStore persists the leaderboard after admin edits.
type LeaderboardStore interface {
	Snapshot(lb *game.Leaderboard) error
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
// This struct is designed for dependency injection and testability.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Engine: mockEngine,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the game engine (required)
	Engine EngineInterface

	// Music is the background playlist (optional; music routes report 503 without it)
	Music MusicInterface

	// Renderer draws /api/frame.png (optional)
	Renderer FrameRenderer

	// Store persists leaderboard edits (optional)
	Store LeaderboardStore

	// Countries is the participant list, used to validate admin input
	Countries []game.Country

	// Commands receives admin commands for polling and websocket clients (optional)
	Commands *CommandBox

	// AdminToken guards /api/admin when non-empty
	AdminToken string

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, localhost origins are allowed.
	CORSOrigins []string

	// StaticFilesDir serves the presentation page at / when set.
	StaticFilesDir string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler dependencies for the router.
type routerHandlers struct {
	engine    EngineInterface
	music     MusicInterface
	renderer  FrameRenderer
	store     LeaderboardStore
	countries map[string]game.Country
	commands  *CommandBox
	started   time.Time

	newRounds int64 // atomic - admin-forced rounds
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE - it has no side effects:
//   - No goroutines are started (unless no RateLimiter is passed in)
//   - No network listeners are opened
//
// This makes it safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", AdminTokenHeader},
		AllowCredentials: true,
	}))

	commands := cfg.Commands
	if commands == nil {
		commands = NewCommandBox()
	}
	h := &routerHandlers{
		engine:    cfg.Engine,
		music:     cfg.Music,
		renderer:  cfg.Renderer,
		store:     cfg.Store,
		countries: make(map[string]game.Country, len(cfg.Countries)),
		commands:  commands,
		started:   time.Now(),
	}
	for _, c := range cfg.Countries {
		h.countries[c.Code] = c
	}

	r.Route("/api", func(r chi.Router) {
		// Public read-only views
		r.Get("/state", h.handleGetState)
		r.Get("/frame.png", h.handleGetFrame)
		r.Get("/leaderboard", h.handleGetLeaderboard)
		r.Get("/music", h.handleGetMusic)

		r.Route("/admin", func(r chi.Router) {
			r.Use(TokenAuth(cfg.AdminToken))

			r.Get("/ping", h.handlePing)
			r.Get("/stats", h.handleAdminStats)
			r.Get("/command", h.handleTakeCommand)

			// Round control
			r.Post("/reset", h.handleReset)
			r.Post("/new-round", h.handleNewRound)

			// Leaderboard
			r.Get("/leaderboard", h.handleAdminLeaderboard)
			r.Post("/leaderboard", h.handleReplaceLeaderboard)
			r.Post("/leaderboard/update", h.handleUpdateLeaderboard)
			r.Post("/leaderboard/delete", h.handleDeleteLeaderboard)
			r.Post("/clear-leaderboard", h.handleClearLeaderboard)

			// Music
			r.Post("/skip-track", h.handleSkipTrack)
			r.Post("/toggle-music", h.handleToggleMusic)
			r.Post("/volume", h.handleVolume)

			// Favored country
			r.Get("/rig", h.handleGetFavored)
			r.Post("/rig", h.handleSetFavored)
		})
	})

	if cfg.StaticFilesDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticFilesDir)))
	}

	return r
}
