// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for arena, round and server settings.
//
// Precedence: defaults < YAML file (CONFIG_FILE) < environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"country-marbles/internal/game"
)

// =============================================================================
// VIDEO & CANVAS CONFIGURATION
// =============================================================================

// VideoConfig holds the canvas size and tick rate.
// These values are shared between the engine and the renderer.
type VideoConfig struct {
	Width  int `yaml:"width"`  // Canvas width in pixels
	Height int `yaml:"height"` // Canvas height in pixels
	FPS    int `yaml:"fps"`    // Frames per second (also the game tick rate)
}

// DefaultVideo returns the portrait canvas the arena is laid out for.
func DefaultVideo() VideoConfig {
	return VideoConfig{
		Width:  1080,
		Height: 1920,
		FPS:    60,
	}
}

// VideoFromEnv applies environment overrides to cfg.
func VideoFromEnv(cfg VideoConfig) VideoConfig {
	if w := getEnvInt("CANVAS_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvInt("CANVAS_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}
	if fps := getEnvInt("TICK_RATE", 0); fps > 0 {
		cfg.FPS = fps
	}
	return cfg
}

// =============================================================================
// RING CONFIGURATION
// =============================================================================

// RingConfig is the rotating boundary. Angles are in degrees here and
// converted to radians for the engine.
type RingConfig struct {
	CenterX       float64 `yaml:"center_x"`
	CenterY       float64 `yaml:"center_y"`
	Radius        float64 `yaml:"radius"`
	Thickness     float64 `yaml:"thickness"`
	GapDegrees    float64 `yaml:"gap_degrees"`
	GapStartTurns float64 `yaml:"gap_start_turns"` // fraction of π, 0.75 = 135°
	RotationSpeed float64 `yaml:"rotation_speed"`  // rad per tick
}

// DefaultRing returns the default ring geometry.
func DefaultRing() RingConfig {
	return RingConfig{
		CenterX:       540,
		CenterY:       750,
		Radius:        400,
		Thickness:     20,
		GapDegrees:    50,
		GapStartTurns: 0.75,
		RotationSpeed: 0.02,
	}
}

// RingFromEnv applies environment overrides to cfg.
func RingFromEnv(cfg RingConfig) RingConfig {
	if r := getEnvFloat("RING_RADIUS", 0); r > 0 {
		cfg.Radius = r
	}
	if g := getEnvFloat("RING_GAP_DEGREES", 0); g > 0 {
		cfg.GapDegrees = g
	}
	if s := getEnvFloat("RING_ROTATION_SPEED", math.NaN()); !math.IsNaN(s) {
		cfg.RotationSpeed = s
	}
	return cfg
}

// =============================================================================
// PHYSICS CONFIGURATION
// =============================================================================

// PhysicsConfig holds motion constants.
type PhysicsConfig struct {
	Speed             float64 `yaml:"speed"`
	Gravity           float64 `yaml:"gravity"`
	StackingDamping   float64 `yaml:"stacking_damping"`
	FloorFriction     float64 `yaml:"floor_friction"`
	HorizontalDamping float64 `yaml:"horizontal_damping"`
}

// DefaultPhysics returns the default motion constants.
func DefaultPhysics() PhysicsConfig {
	return PhysicsConfig{
		Speed:             10,
		Gravity:           0.5,
		StackingDamping:   0.1,
		FloorFriction:     0.3,
		HorizontalDamping: 0.95,
	}
}

// PhysicsFromEnv applies environment overrides to cfg.
func PhysicsFromEnv(cfg PhysicsConfig) PhysicsConfig {
	if s := getEnvFloat("FLAG_SPEED", 0); s > 0 {
		cfg.Speed = s
	}
	if g := getEnvFloat("GRAVITY", 0); g > 0 {
		cfg.Gravity = g
	}
	return cfg
}

// =============================================================================
// FLAG CONFIGURATION
// =============================================================================

// FlagConfig is the size of a flag token.
type FlagConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	Hitbox float64 `yaml:"hitbox"` // collision radius
}

// DefaultFlag returns the default token geometry.
func DefaultFlag() FlagConfig {
	return FlagConfig{
		Width:  60,
		Height: 45,
		Hitbox: 25,
	}
}

// =============================================================================
// ROUND CONFIGURATION
// =============================================================================

// RoundConfig controls display dwell times and announcement thresholds.
type RoundConfig struct {
	WinnerDwell       time.Duration `yaml:"winner_dwell"`
	ChampionDwell     time.Duration `yaml:"champion_dwell"`
	ChampionThreshold int           `yaml:"champion_threshold"`
	Milestones        []int         `yaml:"milestones"`
	StreakMilestones  []int         `yaml:"streak_milestones"`
}

// DefaultRound returns the default round timings.
func DefaultRound() RoundConfig {
	return RoundConfig{
		WinnerDwell:       3500 * time.Millisecond,
		ChampionDwell:     12 * time.Second,
		ChampionThreshold: 4,
		Milestones:        []int{100, 50, 15, 3},
		StreakMilestones:  []int{2, 3, 5},
	}
}

// RoundFromEnv applies environment overrides to cfg.
func RoundFromEnv(cfg RoundConfig) RoundConfig {
	if ms := getEnvInt("WINNER_DWELL_MS", 0); ms > 0 {
		cfg.WinnerDwell = time.Duration(ms) * time.Millisecond
	}
	if ms := getEnvInt("CHAMPION_DWELL_MS", 0); ms > 0 {
		cfg.ChampionDwell = time.Duration(ms) * time.Millisecond
	}
	if n := getEnvInt("CHAMPION_THRESHOLD", 0); n > 0 {
		cfg.ChampionThreshold = n
	}
	return cfg
}

// =============================================================================
// STEERING CONFIGURATION
// =============================================================================

// SteeringConfig tunes the favored-country bias.
type SteeringConfig struct {
	InnerFraction  float64 `yaml:"inner_fraction"`
	AngleDegrees   float64 `yaml:"angle_degrees"`
	OutwardDegrees float64 `yaml:"outward_degrees"`
	Strength       float64 `yaml:"strength"`
}

// DefaultSteering returns a bias small enough to look like chance.
func DefaultSteering() SteeringConfig {
	return SteeringConfig{
		InnerFraction:  0.7,
		AngleDegrees:   60,
		OutwardDegrees: 90,
		Strength:       0.015,
	}
}

// =============================================================================
// AUDIO CONFIGURATION
// =============================================================================

// AudioConfig holds audio mixer settings.
type AudioConfig struct {
	SampleRate     int     `yaml:"sample_rate"`     // Audio sample rate in Hz
	Volume         float64 `yaml:"volume"`          // Music volume (0.0 to 1.0)
	Enabled        bool    `yaml:"enabled"`         // Whether music plays at startup
	ExcitingChance float64 `yaml:"exciting_chance"` // Chance of an extra clip on an ordinary win
	Output         string  `yaml:"output"`          // s16le PCM destination (file or fifo), empty disables
}

// DefaultAudio returns the default audio configuration.
func DefaultAudio() AudioConfig {
	return AudioConfig{
		SampleRate:     44100,
		Volume:         0.15,
		Enabled:        true,
		ExcitingChance: 0.2,
	}
}

// AudioFromEnv applies environment overrides to cfg.
func AudioFromEnv(cfg AudioConfig) AudioConfig {
	if v := getEnvFloat("MUSIC_VOLUME", -1); v >= 0 {
		cfg.Volume = v
	}
	if os.Getenv("MUSIC_ENABLED") == "false" {
		cfg.Enabled = false
	}
	if v := os.Getenv("AUDIO_OUTPUT"); v != "" {
		cfg.Output = v
	}
	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port       int    `yaml:"port"`
	DebugPort  int    `yaml:"debug_port"`
	AdminToken string `yaml:"admin_token"` // empty disables the admin guard
	RateLimit  int    `yaml:"rate_limit"`  // requests per second per IP
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:      5000,
		DebugPort: 6060,
		RateLimit: 20,
	}
}

// ServerFromEnv applies environment overrides to cfg.
func ServerFromEnv(cfg ServerConfig) ServerConfig {
	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if p := getEnvInt("DEBUG_PORT", 0); p > 0 {
		cfg.DebugPort = p
	}
	if tok := os.Getenv("ADMIN_TOKEN"); tok != "" {
		cfg.AdminToken = tok
	}
	if rl := getEnvInt("RATE_LIMIT", 0); rl > 0 {
		cfg.RateLimit = rl
	}
	return cfg
}

// =============================================================================
// FILE PATHS
// =============================================================================

// PathsConfig locates data files on disk.
type PathsConfig struct {
	Countries   string `yaml:"countries"`
	Assets      string `yaml:"assets"` // flag PNGs, <code>.png
	Audio       string `yaml:"audio"`  // announcer clips, <name>.ogg
	Music       string `yaml:"music"`  // playlist tracks
	Leaderboard string `yaml:"leaderboard"`
	EventLog    string `yaml:"event_log"`
}

// DefaultPaths returns paths relative to the working directory.
func DefaultPaths() PathsConfig {
	return PathsConfig{
		Countries:   "data/countries.json",
		Assets:      "assets/flags",
		Audio:       "assets/audio",
		Music:       "assets/music",
		Leaderboard: "data/leaderboard.json",
		EventLog:    "data/events.jsonl",
	}
}

// PathsFromEnv applies environment overrides to cfg.
func PathsFromEnv(cfg PathsConfig) PathsConfig {
	overrides := map[string]*string{
		"COUNTRIES_FILE":   &cfg.Countries,
		"ASSETS_DIR":       &cfg.Assets,
		"AUDIO_DIR":        &cfg.Audio,
		"MUSIC_DIR":        &cfg.Music,
		"LEADERBOARD_FILE": &cfg.Leaderboard,
		"EVENT_LOG_FILE":   &cfg.EventLog,
	}
	for key, dst := range overrides {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Video    VideoConfig         `yaml:"video"`
	Ring     RingConfig          `yaml:"ring"`
	Physics  PhysicsConfig       `yaml:"physics"`
	Flag     FlagConfig          `yaml:"flag"`
	Round    RoundConfig         `yaml:"round"`
	Steering SteeringConfig      `yaml:"steering"`
	Audio    AudioConfig         `yaml:"audio"`
	Server   ServerConfig        `yaml:"server"`
	Paths    PathsConfig         `yaml:"paths"`
	Limits   game.ResourceLimits `yaml:"-"`
}

// Default returns the complete default configuration.
func Default() AppConfig {
	return AppConfig{
		Video:    DefaultVideo(),
		Ring:     DefaultRing(),
		Physics:  DefaultPhysics(),
		Flag:     DefaultFlag(),
		Round:    DefaultRound(),
		Steering: DefaultSteering(),
		Audio:    DefaultAudio(),
		Server:   DefaultServer(),
		Paths:    DefaultPaths(),
		Limits:   game.DefaultLimits,
	}
}

// Load returns the complete configuration: defaults, then the YAML file named
// by CONFIG_FILE (if set), then environment overrides.
func Load() (AppConfig, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		var err error
		if cfg, err = LoadFile(cfg, path); err != nil {
			return cfg, err
		}
	}

	cfg = FromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto base. Keys absent from the
// file keep their base value.
func LoadFile(base AppConfig, path string) (AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv applies every section's environment overrides.
func FromEnv(cfg AppConfig) AppConfig {
	cfg.Video = VideoFromEnv(cfg.Video)
	cfg.Ring = RingFromEnv(cfg.Ring)
	cfg.Physics = PhysicsFromEnv(cfg.Physics)
	cfg.Round = RoundFromEnv(cfg.Round)
	cfg.Audio = AudioFromEnv(cfg.Audio)
	cfg.Server = ServerFromEnv(cfg.Server)
	cfg.Paths = PathsFromEnv(cfg.Paths)
	return cfg
}

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// Validate reports values the engine or server cannot run with.
func (c AppConfig) Validate() error {
	if c.Video.FPS <= 0 {
		return fmt.Errorf("%w: fps %d", ErrInvalidConfig, c.Video.FPS)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 1 {
		return fmt.Errorf("%w: volume %v", ErrInvalidConfig, c.Audio.Volume)
	}
	if c.Round.ChampionThreshold <= 0 {
		return fmt.Errorf("%w: champion threshold %d", ErrInvalidConfig, c.Round.ChampionThreshold)
	}
	if err := c.Sim().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Sim converts to the engine's simulation config.
func (c AppConfig) Sim() game.SimConfig {
	sim := game.DefaultSimConfig()

	sim.Width = float64(c.Video.Width)
	sim.Height = float64(c.Video.Height)

	sim.Ring = game.RingConfig{
		CenterX:       c.Ring.CenterX,
		CenterY:       c.Ring.CenterY,
		Radius:        c.Ring.Radius,
		Thickness:     c.Ring.Thickness,
		GapWidth:      c.Ring.GapDegrees * math.Pi / 180,
		GapStart:      c.Ring.GapStartTurns * math.Pi,
		RotationSpeed: c.Ring.RotationSpeed,
	}

	sim.Physics.Speed = c.Physics.Speed
	sim.Physics.Gravity = c.Physics.Gravity
	sim.Physics.StackingDamping = c.Physics.StackingDamping
	sim.Physics.FloorFriction = c.Physics.FloorFriction
	sim.Physics.HorizontalDamping = c.Physics.HorizontalDamping

	sim.Flag = game.FlagConfig{
		Width:  c.Flag.Width,
		Height: c.Flag.Height,
		Radius: c.Flag.Hitbox,
	}

	sim.Steering = game.SteeringConfig{
		InnerFraction: c.Steering.InnerFraction,
		AngleWindow:   c.Steering.AngleDegrees * math.Pi / 180,
		OutwardWindow: c.Steering.OutwardDegrees * math.Pi / 180,
		Strength:      c.Steering.Strength,
	}

	sim.Round.WinnerDwell = c.Round.WinnerDwell
	sim.Round.ChampionDwell = c.Round.ChampionDwell
	sim.Round.ChampionThreshold = c.Round.ChampionThreshold
	sim.Round.Milestones = append([]int(nil), c.Round.Milestones...)
	sim.Round.StreakMilestones = append([]int(nil), c.Round.StreakMilestones...)

	return sim
}

// Engine returns the engine config for this app config.
func (c AppConfig) Engine() game.EngineConfig {
	return game.EngineConfig{
		TickRate: c.Video.FPS,
		Sim:      c.Sim(),
		Limits:   c.Limits,
	}
}

// Save writes the configuration as YAML (used to dump the effective config).
func (c AppConfig) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
