package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"country-marbles/internal/api"
	"country-marbles/internal/audio"
	"country-marbles/internal/config"
	"country-marbles/internal/countries"
	"country-marbles/internal/game"
	"country-marbles/internal/render"
	"country-marbles/internal/store"

	"github.com/gopxl/beep"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	} else {
		log.Println("✅ Loaded environment from .env")
	}

	log.Println("🌍 ================================")
	log.Println("🌍  COUNTRY MARBLES")
	log.Println("🌍 ================================")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Config: %v", err)
	}
	if path := os.Getenv("DUMP_CONFIG"); path != "" {
		if err := cfg.Save(path); err != nil {
			log.Printf("⚠️ Could not write effective config: %v", err)
		}
	}

	participants, err := countries.Load(cfg.Paths.Countries)
	if err != nil {
		log.Fatalf("❌ Countries: %v", err)
	}
	log.Printf("🏳️ %d countries loaded from %s", len(participants), cfg.Paths.Countries)

	engine, err := game.NewEngine(cfg.Engine())
	if err != nil {
		log.Fatalf("❌ Engine: %v", err)
	}
	if err := engine.SetParticipants(participants); err != nil {
		log.Fatalf("❌ Participants: %v", err)
	}

	// Leaderboard survives restarts
	leaderboardStore := store.NewFileStore(cfg.Paths.Leaderboard)
	if err := leaderboardStore.Restore(engine.Leaderboard()); err != nil {
		log.Printf("⚠️ Leaderboard not restored: %v", err)
	}
	saver := store.NewSaver(leaderboardStore, engine.Leaderboard())
	saver.Start()

	if err := engine.StartEventLog(cfg.Paths.EventLog); err != nil {
		log.Printf("⚠️ Event log disabled: %v", err)
	} else {
		log.Printf("📝 Event log: %s", cfg.Paths.EventLog)
	}

	// Frames for /api/frame.png
	renderer := render.NewRenderer(render.Config{
		Width:    cfg.Video.Width,
		Height:   cfg.Video.Height,
		FlagDir:  cfg.Paths.Assets,
		FontPath: os.Getenv("FONT_PATH"),
	})
	renderer.OnRender = api.RecordRender
	go func() {
		n := renderer.Flags().Preload(codes(participants))
		log.Printf("🖼️ Preloaded %d flag images", n)
	}()

	music, mixer, announcer := setupAudio(cfg)

	server := api.NewServer(api.RouterConfig{
		Engine:     engine,
		Music:      music,
		Renderer:   renderer,
		Store:      leaderboardStore,
		Countries:  participants,
		AdminToken: cfg.Server.AdminToken,
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: float64(cfg.Server.RateLimit),
			Burst:             cfg.Server.RateLimit * 3,
			CleanupInterval:   time.Minute,
		},
		StaticFilesDir: os.Getenv("STATIC_DIR"),
	}, 50*time.Millisecond)

	engine.OnTick(api.RecordTickStats)
	engine.Subscribe(func(ev game.GameEvent) {
		api.RecordGameEvent(ev)
		server.Hub().BroadcastEvent(ev)
		announcer.Handle(ev)

		if ev.Type == game.EventTypeWinner {
			saver.Request()
		}
	})

	debugCfg := api.DefaultObservabilityConfig()
	debugCfg.ListenAddr = fmt.Sprintf("127.0.0.1:%d", cfg.Server.DebugPort)
	debugCfg.BasicAuthUser = os.Getenv("DEBUG_USER")
	debugCfg.BasicAuthPass = os.Getenv("DEBUG_PASS")
	debugCfg.Enabled = os.Getenv("DISABLE_DEBUG_SERVER") != "true"
	if err := api.StartDebugServer(debugCfg); err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	stopStats := make(chan struct{})
	go pollEventLogStats(engine, stopStats)

	if err := engine.StartRound(); err != nil {
		log.Fatalf("❌ First round: %v", err)
	}
	engine.Start()

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	select {
	case <-quit:
	case err := <-mixerErrors(mixer):
		log.Printf("❌ Audio output lost: %v", err)
	}

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}
	close(stopStats)
	if mixer != nil {
		mixer.Stop()
	}
	engine.Stop()
	engine.StopEventLog()
	saver.Stop()
	if err := leaderboardStore.Snapshot(engine.Leaderboard()); err != nil {
		log.Printf("⚠️ Leaderboard save failed: %v", err)
	}
	log.Println("👋 Goodbye!")
}

// setupAudio builds the playlist, the PCM mixer and the announcer. Missing
// music or an unset output degrade gracefully.
func setupAudio(cfg config.AppConfig) (api.MusicInterface, *audio.Mixer, *audio.Announcer) {
	var (
		music   api.MusicInterface
		playing beep.Streamer
	)
	playlist, err := audio.NewPlaylist(cfg.Paths.Music, int(cfg.Audio.Volume*100), cfg.Audio.Enabled, time.Now().UnixNano(), nil)
	if err != nil {
		log.Printf("⚠️ Music disabled: %v", err)
	} else {
		music = playlist
		playing = playlist
	}

	if cfg.Audio.Output == "" {
		log.Println("🔇 AUDIO_OUTPUT not set, announcer muted")
		return music, nil, audio.NewAnnouncer(nil, cfg.Audio.ExcitingChance, nil)
	}

	out, err := openOutput(cfg.Audio.Output)
	if err != nil {
		log.Printf("⚠️ Audio output %s unavailable: %v", cfg.Audio.Output, err)
		return music, nil, audio.NewAnnouncer(nil, cfg.Audio.ExcitingChance, nil)
	}

	pipe := audio.NewPipeWriter(out, audio.SampleRate.N(audio.FrameDuration)*audio.BytesPerFrame)
	pipe.Start()

	mixer := audio.NewMixer(pipe, playing, audio.NewClipLibrary(cfg.Paths.Audio))
	mixer.Start()
	return music, mixer, audio.NewAnnouncer(mixer, cfg.Audio.ExcitingChance, nil)
}

// openOutput opens the PCM destination; "-" is stdout
func openOutput(path string) (io.Writer, error) {
	if path == "-" {
		return os.Stdout, nil
	}
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
}

func mixerErrors(m *audio.Mixer) <-chan error {
	if m == nil {
		return nil
	}
	return m.Errors()
}

func pollEventLogStats(engine *game.Engine, stop <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			stats := engine.GetEventLogStats()
			total, _ := stats["total"].(uint64)
			dropped, _ := stats["dropped"].(uint64)
			api.UpdateEventLogStats(total, dropped)
		}
	}
}

func codes(list []game.Country) []string {
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.Code
	}
	return out
}
