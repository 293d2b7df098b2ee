package game

import "math"

// Ring is the rotating circular boundary with a single opening
type Ring struct {
	CenterX   float64
	CenterY   float64
	Radius    float64
	Thickness float64 // visual only

	GapWidth      float64 // angular width of the opening (rad)
	GapStart      float64 // reference orientation of the opening before rotation
	Rotation      float64 // cumulative rotation offset
	RotationSpeed float64 // rotation added per tick
}

// NewRing builds a ring from the simulation config with zero rotation
func NewRing(cfg RingConfig) Ring {
	return Ring{
		CenterX:       cfg.CenterX,
		CenterY:       cfg.CenterY,
		Radius:        cfg.Radius,
		Thickness:     cfg.Thickness,
		GapWidth:      cfg.GapWidth,
		GapStart:      cfg.GapStart,
		RotationSpeed: cfg.RotationSpeed,
	}
}

// Advance rotates the ring by one tick
func (r *Ring) Advance() {
	r.Rotation += r.RotationSpeed
}

// Reset returns the opening to its reference orientation
func (r *Ring) Reset() {
	r.Rotation = 0
}

// GapWindow returns the normalized start and end angles of the opening.
// end < start means the window wraps past 2π.
func (r Ring) GapWindow() (start, end float64) {
	start = NormalizeAngle(r.GapStart + r.Rotation)
	end = NormalizeAngle(r.GapStart + r.Rotation + r.GapWidth)
	return start, end
}

// GapCenter returns the angle through the middle of the opening (not normalized)
func (r Ring) GapCenter() float64 {
	return r.GapStart + r.Rotation + r.GapWidth/2
}

// InGap reports whether the angle falls in [start, end) of the opening
func (r Ring) InGap(angle float64) bool {
	if r.GapWidth >= TwoPi {
		return true
	}
	if r.GapWidth <= 0 {
		return false
	}
	a := NormalizeAngle(angle)
	start, end := r.GapWindow()
	if start < end {
		return a >= start && a < end
	}
	// window wraps around 0
	return a >= start || a < end
}

// BoundaryDistance is the furthest a flag center may sit from the ring center
func (r Ring) BoundaryDistance(flagRadius float64) float64 {
	return r.Radius - flagRadius
}

// LaunchPower maps the opening's orientation to an exit speed multiplier:
// min when the gap faces the bottom of the canvas, max when it faces the top.
func (r Ring) LaunchPower(lo, hi float64) float64 {
	// canvas y grows downward, so "up" is sin = -1
	t := (1 - math.Sin(r.GapCenter())) / 2
	return lerp(lo, hi, t)
}
