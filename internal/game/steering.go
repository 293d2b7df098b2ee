package game

import "math"

// ApplySteering nudges the favored flag's heading away from the opening when
// it is about to reach it. The nudge is tangential and the speed is restored
// afterwards, so only the heading changes. Flags far from the wall, away from
// the gap, or not moving outward are left alone.
func ApplySteering(f *Flag, ring Ring, s SteeringConfig) {
	if !f.IsActive() || s.Strength <= 0 {
		return
	}

	dx := f.X - ring.CenterX
	dy := f.Y - ring.CenterY
	dist := math.Hypot(dx, dy)
	if dist == 0 {
		return
	}
	boundary := ring.BoundaryDistance(f.Radius)
	inner := boundary * s.InnerFraction
	if dist < inner {
		return
	}

	position := math.Atan2(dy, dx)
	toGap := AngleDelta(position, ring.GapCenter())
	if math.Abs(toGap) > s.AngleWindow {
		return
	}

	heading := math.Atan2(f.VY, f.VX)
	if math.Abs(AngleDelta(position, heading)) > s.OutwardWindow {
		return
	}

	proximity := 1.0
	if span := boundary - inner; span > 0 {
		proximity = math.Min((dist-inner)/span, 1)
	}
	gapProximity := 1 - math.Abs(toGap)/s.AngleWindow
	strength := s.Strength * proximity * gapProximity

	// gap center ahead (counter-clockwise in canvas terms) -> push the other way
	dir := 1.0
	if toGap > 0 {
		dir = -1
	}
	tx := -dy / dist
	ty := dx / dist

	f.VX += tx * dir * strength * f.Speed
	f.VY += ty * dir * strength * f.Speed
	f.normalizeSpeed()
}
