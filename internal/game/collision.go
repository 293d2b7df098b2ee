package game

import "math"

// ResolveCollisions separates and bounces every overlapping pair of active,
// visible flags. Each unordered pair is examined once per call. Returns the
// number of pairs resolved.
//
// O(n²): the population is a few hundred flags, one pass per frame.
func ResolveCollisions(flags []*Flag) int {
	resolved := 0
	for i := 0; i < len(flags); i++ {
		a := flags[i]
		if !collidable(a) {
			continue
		}
		for j := i + 1; j < len(flags); j++ {
			b := flags[j]
			if !collidable(b) {
				continue
			}
			if resolvePair(a, b) {
				resolved++
			}
		}
	}
	return resolved
}

func collidable(f *Flag) bool {
	return f.State == FlagActive && f.Opacity > 0
}

// resolvePair pushes a and b apart along the center line by half the overlap
// each, and swaps their normal velocity components if they are closing.
// Tangential components are untouched; both end at their own nominal speed.
func resolvePair(a, b *Flag) bool {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dist := math.Hypot(dx, dy)
	if dist >= a.Radius+b.Radius || dist == 0 {
		return false
	}

	nx := dx / dist
	ny := dy / dist

	half := (a.Radius + b.Radius - dist) / 2
	a.X += nx * half
	a.Y += ny * half
	b.X -= nx * half
	b.Y -= ny * half

	d1 := a.VX*nx + a.VY*ny
	d2 := b.VX*nx + b.VY*ny
	if d1-d2 < 0 {
		a.VX += (d2 - d1) * nx
		a.VY += (d2 - d1) * ny
		b.VX += (d1 - d2) * nx
		b.VY += (d1 - d2) * ny
	}

	// a full swap can cancel a velocity; leave along the normal instead
	if math.Hypot(a.VX, a.VY) < minVelocity {
		a.VX, a.VY = nx, ny
	}
	if math.Hypot(b.VX, b.VY) < minVelocity {
		b.VX, b.VY = -nx, -ny
	}

	a.normalizeSpeed()
	b.normalizeSpeed()
	return true
}

const minVelocity = 1e-9

// ContainActive pulls active flags that pair separation pushed past the
// boundary back to the wall inset. Position only: no bounce, no exit test.
// Returns the number of flags moved.
func ContainActive(flags []*Flag, ring Ring, p PhysicsConfig) int {
	moved := 0
	for _, f := range flags {
		if !f.IsActive() {
			continue
		}
		dx := f.X - ring.CenterX
		dy := f.Y - ring.CenterY
		dist := math.Hypot(dx, dy)
		boundary := ring.BoundaryDistance(f.Radius)
		if dist <= boundary || dist == 0 {
			continue
		}
		inset := max(boundary-p.WallInset, 0)
		f.X = ring.CenterX + dx/dist*inset
		f.Y = ring.CenterY + dy/dist*inset
		moved++
	}
	return moved
}
