package game

import "math"

// TwoPi is a full turn in radians
const TwoPi = 2 * math.Pi

// Vec2 is a 2D vector in canvas coordinates (y grows downward)
type Vec2 struct {
	X, Y float64
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

func (v Vec2) Dot(o Vec2) float64 { return v.X*o.X + v.Y*o.Y }

// Len returns the Euclidean length
func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

// Normalize returns the unit vector and the original length.
// A zero vector is returned unchanged with length 0.
func (v Vec2) Normalize() (Vec2, float64) {
	l := v.Len()
	if l == 0 {
		return v, 0
	}
	return Vec2{v.X / l, v.Y / l}, l
}

// NormalizeAngle maps any angle into [0, 2π)
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, TwoPi)
	if a < 0 {
		a += TwoPi
	}
	// math.Mod can return exactly 2π after the correction for tiny negatives
	if a >= TwoPi {
		a = 0
	}
	return a
}

// AngleDelta returns the signed shortest rotation from `from` to `to`, in [-π, π]
func AngleDelta(from, to float64) float64 {
	d := NormalizeAngle(to) - NormalizeAngle(from)
	if d > math.Pi {
		d -= TwoPi
	} else if d < -math.Pi {
		d += TwoPi
	}
	return d
}

// setSpeed rescales (vx, vy) to the given magnitude. Zero velocity stays zero.
func setSpeed(vx, vy, speed float64) (float64, float64) {
	cur := math.Hypot(vx, vy)
	if cur == 0 {
		return vx, vy
	}
	return vx / cur * speed, vy / cur * speed
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
