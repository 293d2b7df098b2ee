package game

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Precondition failures reported when a round is started
var (
	ErrNoParticipants = errors.New("no participants")
	ErrInvalidRing    = errors.New("invalid ring geometry")
	ErrInvalidSpeed   = errors.New("nominal speed must be positive")
	ErrInvalidCanvas  = errors.New("invalid canvas size")
)

// RingConfig is the boundary geometry
type RingConfig struct {
	CenterX       float64
	CenterY       float64
	Radius        float64
	Thickness     float64
	GapWidth      float64 // rad
	GapStart      float64 // rad, reference orientation
	RotationSpeed float64 // rad per tick
}

// PhysicsConfig holds the motion constants.
// Active flags move at Speed; exited and settled flags fall under Gravity.
type PhysicsConfig struct {
	Speed             float64
	Gravity           float64
	HorizontalDamping float64 // per-tick vx multiplier while settled
	StackingDamping   float64 // vy multiplier on floor bounce
	FloorFriction     float64 // vx multiplier on floor bounce
	FloorMargin       float64 // floor line sits this far above the canvas bottom
	RestThreshold     float64 // |vy| below this snaps to 0 on the floor
	ExitOpacity       float64
	LaunchPowerMin    float64 // gap facing down
	LaunchPowerMax    float64 // gap facing up
	WallInset         float64 // distance inside the boundary after a wall bounce
}

// FlagConfig is the per-flag geometry
type FlagConfig struct {
	Width  float64
	Height float64
	Radius float64 // collision radius
}

// SteeringConfig tunes the favored-country bias
type SteeringConfig struct {
	InnerFraction float64 // fraction of boundary distance where steering begins
	AngleWindow   float64 // max angular distance from the gap center (rad)
	OutwardWindow float64 // max angle between velocity and outward radial (rad)
	Strength      float64 // peak nudge as a fraction of nominal speed
}

// RoundConfig drives the round state machine
type RoundConfig struct {
	WinnerDwell       time.Duration
	ChampionDwell     time.Duration
	ChampionThreshold int
	Milestones        []int // descending remaining-count thresholds
	StreakMilestones  []int
	SpawnEdgeMargin   float64 // spawn no closer than this to the ring edge
	SpawnMinDistance  float64 // spawn no closer than this to the ring center
}

// SimConfig is everything the simulation reads. It is passed explicitly to
// every physics function; nothing in the package reads global settings.
type SimConfig struct {
	Width    float64
	Height   float64
	Ring     RingConfig
	Physics  PhysicsConfig
	Flag     FlagConfig
	Steering SteeringConfig
	Round    RoundConfig
}

// DefaultSimConfig returns the portrait 1080x1920 arena
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Width:  1080,
		Height: 1920,
		Ring: RingConfig{
			CenterX:       540,
			CenterY:       750,
			Radius:        400,
			Thickness:     20,
			GapWidth:      50 * math.Pi / 180,
			GapStart:      math.Pi * 0.75,
			RotationSpeed: 0.02,
		},
		Physics: PhysicsConfig{
			Speed:             10,
			Gravity:           0.5,
			HorizontalDamping: 0.95,
			StackingDamping:   0.1,
			FloorFriction:     0.3,
			FloorMargin:       10,
			RestThreshold:     0.5,
			ExitOpacity:       0.5,
			LaunchPowerMin:    0.5,
			LaunchPowerMax:    1.8,
			WallInset:         1,
		},
		Flag: FlagConfig{
			Width:  60,
			Height: 45,
			Radius: 25,
		},
		Steering: SteeringConfig{
			InnerFraction: 0.7,
			AngleWindow:   math.Pi / 3,
			OutwardWindow: math.Pi / 2,
			Strength:      0.015,
		},
		Round: RoundConfig{
			WinnerDwell:       3500 * time.Millisecond,
			ChampionDwell:     12 * time.Second,
			ChampionThreshold: 4,
			Milestones:        []int{100, 50, 15, 3},
			StreakMilestones:  []int{2, 3, 5},
			SpawnEdgeMargin:   60,
			SpawnMinDistance:  20,
		},
	}
}

// Validate reports configuration that would make a round meaningless
func (c SimConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: %vx%v", ErrInvalidCanvas, c.Width, c.Height)
	}
	if c.Ring.Radius <= 0 {
		return fmt.Errorf("%w: radius %v", ErrInvalidRing, c.Ring.Radius)
	}
	if c.Ring.GapWidth <= 0 || c.Ring.GapWidth >= TwoPi {
		return fmt.Errorf("%w: gap width %v", ErrInvalidRing, c.Ring.GapWidth)
	}
	if c.Flag.Radius <= 0 || c.Flag.Radius >= c.Ring.Radius {
		return fmt.Errorf("%w: flag radius %v does not fit radius %v", ErrInvalidRing, c.Flag.Radius, c.Ring.Radius)
	}
	if c.Physics.Speed <= 0 || math.IsNaN(c.Physics.Speed) || math.IsInf(c.Physics.Speed, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, c.Physics.Speed)
	}
	return nil
}

// milestoneSlots bounds the latch array
const milestoneSlots = 8
