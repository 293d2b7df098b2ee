package game

import (
	"fmt"
	"math"
)

// FlagState is the lifecycle of a flag within one round. It only advances.
type FlagState int

const (
	FlagActive  FlagState = iota // inside the ring, constant speed
	FlagExited                   // left through the gap, falling
	FlagSettled                  // off screen, at rest on the floor
)

func (s FlagState) String() string {
	switch s {
	case FlagActive:
		return "active"
	case FlagExited:
		return "exited"
	case FlagSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name
func (s FlagState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name
func (s *FlagState) UnmarshalText(text []byte) error {
	for _, c := range []FlagState{FlagActive, FlagExited, FlagSettled} {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown flag state %q", text)
}

// Country identifies a participant
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Flag is one country's moving token
type Flag struct {
	Code string `json:"code"`
	Name string `json:"name"`

	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`

	Speed  float64 `json:"-"`
	Radius float64 `json:"-"`
	Width  float64 `json:"-"`
	Height float64 `json:"-"`

	State   FlagState `json:"state"`
	Opacity float64   `json:"opacity"`

	// ExitSeq orders exits within a round (1 = first out). 0 while active.
	ExitSeq int `json:"-"`
}

// NewFlag places a flag with the configured geometry and nominal speed
func NewFlag(c Country, x, y, heading float64, cfg SimConfig) *Flag {
	speed := cfg.Physics.Speed
	return &Flag{
		Code:    c.Code,
		Name:    c.Name,
		X:       x,
		Y:       y,
		VX:      math.Cos(heading) * speed,
		VY:      math.Sin(heading) * speed,
		Speed:   speed,
		Radius:  cfg.Flag.Radius,
		Width:   cfg.Flag.Width,
		Height:  cfg.Flag.Height,
		State:   FlagActive,
		Opacity: 1,
	}
}

// IsActive reports whether the flag is still inside the ring
func (f *Flag) IsActive() bool { return f.State == FlagActive }

// HasExited reports whether the flag has ever left the ring
func (f *Flag) HasExited() bool { return f.State != FlagActive }

// normalizeSpeed enforces the constant-speed invariant
func (f *Flag) normalizeSpeed() {
	f.VX, f.VY = setSpeed(f.VX, f.VY, f.Speed)
}

// CurrentSpeed returns |v|
func (f *Flag) CurrentSpeed() float64 {
	return math.Hypot(f.VX, f.VY)
}

// UpdateFlag advances one flag by one tick. It reports whether the flag
// crossed through the gap during this tick.
func UpdateFlag(f *Flag, ring Ring, cfg SimConfig, favored string) bool {
	switch f.State {
	case FlagActive:
		if favored != "" && f.Code == favored {
			ApplySteering(f, ring, cfg.Steering)
		}
		f.normalizeSpeed()
		f.X += f.VX
		f.Y += f.VY
		return HandleRingCollision(f, ring, cfg.Physics)
	case FlagExited:
		updateExited(f, cfg)
	case FlagSettled:
		updateSettled(f, cfg)
	}
	return false
}

// updateExited lets the flag fall straight through and vanish below the canvas
func updateExited(f *Flag, cfg SimConfig) {
	f.VY += cfg.Physics.Gravity
	f.X += f.VX
	f.Y += f.VY

	if f.Y > cfg.Height+f.Height {
		f.Opacity = 0
		f.State = FlagSettled
	}
}

// updateSettled piles the flag on the floor line with damped bounces
func updateSettled(f *Flag, cfg SimConfig) {
	p := cfg.Physics
	f.VY += p.Gravity * 0.5
	f.Y += f.VY
	f.X += f.VX
	f.VX *= p.HorizontalDamping

	floor := cfg.Height - p.FloorMargin
	if f.Y+f.Radius > floor {
		f.Y = floor - f.Radius
		f.VY *= -p.StackingDamping
		f.VX *= p.FloorFriction
		if math.Abs(f.VY) < p.RestThreshold {
			f.VY = 0
		}
	}
}

// HandleRingCollision checks an active flag against the boundary band.
// A flag inside the opening exits; otherwise it reflects off the wall and is
// placed back inside. Returns true when the flag exited.
func HandleRingCollision(f *Flag, ring Ring, p PhysicsConfig) bool {
	dx := f.X - ring.CenterX
	dy := f.Y - ring.CenterY
	dist := math.Hypot(dx, dy)
	boundary := ring.BoundaryDistance(f.Radius)

	if dist < boundary || dist == 0 {
		return false
	}

	if ring.InGap(math.Atan2(dy, dx)) {
		f.State = FlagExited
		f.Opacity = p.ExitOpacity

		power := ring.LaunchPower(p.LaunchPowerMin, p.LaunchPowerMax)
		center := ring.GapCenter()
		f.VX = math.Cos(center) * f.Speed * power
		f.VY = math.Sin(center) * f.Speed * power
		return true
	}

	nx := dx / dist
	ny := dy / dist
	if dot := f.VX*nx + f.VY*ny; dot > 0 {
		f.VX -= 2 * dot * nx
		f.VY -= 2 * dot * ny
	}

	inset := boundary - p.WallInset
	if inset < 0 {
		inset = 0
	}
	f.X = ring.CenterX + nx*inset
	f.Y = ring.CenterY + ny*inset
	f.normalizeSpeed()
	return false
}
