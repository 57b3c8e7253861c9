package arena

import "math"

type Vec3 struct {
	X, Y, Z float64
}

func V(x, y, z float64) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func FromArray(a [3]float64) Vec3 { return Vec3{X: a[0], Y: a[1], Z: a[2]} }

func (v Vec3) Array() [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func (v Vec3) Add(o Vec3) Vec3             { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3             { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(k float64) Vec3        { return Vec3{v.X * k, v.Y * k, v.Z * k} }
func (v Vec3) Dot(o Vec3) float64          { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) Len() float64                { return math.Sqrt(v.Dot(v)) }
func (v Vec3) Dist(o Vec3) float64         { return v.Sub(o).Len() }
func (v Vec3) IsZero() bool                { return v.X == 0 && v.Y == 0 && v.Z == 0 }
func (v Vec3) Lerp(o Vec3, t float64) Vec3 { return v.Add(o.Sub(v).Scale(t)) }

// Normalize returns the unit vector of v, or the zero vector when v has no length.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Flat drops the vertical component. Steering happens on the X/Z plane.
func (v Vec3) Flat() Vec3 { return Vec3{X: v.X, Z: v.Z} }
