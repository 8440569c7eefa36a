package geom

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Point2 is a world-space integer point on the terrain plane.
type Point2 struct {
	X, Y int32
}

// Point3 is a world-space integer point with a vertical component.
type Point3 struct {
	X, Y, Z int32
}

// Box3 is an axis-aligned integer bounding box: a 2D tile extent plus the
// fixed vertical extent of the terrain slab. Min is inclusive, Max exclusive
// in the tiling sense (adjacent tiles share Min/Max coordinates).
type Box3 struct {
	Min, Max Point3
}

// NewBox3 builds a box from two corner points.
func NewBox3(min, max Point3) Box3 {
	return Box3{Min: min, Max: max}
}

// Center returns the integer center of the box (component-wise midpoint,
// truncated toward zero like integer division).
func (b Box3) Center() Point3 {
	return Point3{
		X: (b.Min.X + b.Max.X) / 2,
		Y: (b.Min.Y + b.Max.Y) / 2,
		Z: (b.Min.Z + b.Max.Z) / 2,
	}
}

// CenterVec returns the box center as a float vector, used for
// camera-distance prioritization.
func (b Box3) CenterVec() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(b.Min.X+b.Max.X) / 2,
		float32(b.Min.Y+b.Max.Y) / 2,
		float32(b.Min.Z+b.Max.Z) / 2,
	}
}

// Width returns the X extent.
func (b Box3) Width() int32 { return b.Max.X - b.Min.X }

// Height returns the Y extent.
func (b Box3) Height() int32 { return b.Max.Y - b.Min.Y }

// Depth returns the Z extent.
func (b Box3) Depth() int32 { return b.Max.Z - b.Min.Z }

// Rect returns the 2D footprint of the box as a float rectangle, the form
// the region predicates operate on.
func (b Box3) Rect() Rect {
	return Rect{
		Min: mgl32.Vec2{float32(b.Min.X), float32(b.Min.Y)},
		Max: mgl32.Vec2{float32(b.Max.X), float32(b.Max.Y)},
	}
}

// Rect is an axis-aligned float rectangle in world space.
type Rect struct {
	Min, Max mgl32.Vec2
}

// RectFromPoints returns the bounding rectangle of a point set.
// The zero Rect is returned for an empty set.
func RectFromPoints(points []mgl32.Vec2) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	r := Rect{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		if p.X() < r.Min.X() {
			r.Min[0] = p.X()
		}
		if p.Y() < r.Min.Y() {
			r.Min[1] = p.Y()
		}
		if p.X() > r.Max.X() {
			r.Max[0] = p.X()
		}
		if p.Y() > r.Max.Y() {
			r.Max[1] = p.Y()
		}
	}
	return r
}

// ContainsRect reports whether other lies entirely inside r (inclusive).
func (r Rect) ContainsRect(other Rect) bool {
	return other.Min.X() >= r.Min.X() && other.Min.Y() >= r.Min.Y() &&
		other.Max.X() <= r.Max.X() && other.Max.Y() <= r.Max.Y()
}

// Corners returns the four corner points in counter-clockwise order
// starting from Min.
func (r Rect) Corners() [4]mgl32.Vec2 {
	return [4]mgl32.Vec2{
		{r.Min.X(), r.Min.Y()},
		{r.Max.X(), r.Min.Y()},
		{r.Max.X(), r.Max.Y()},
		{r.Min.X(), r.Max.Y()},
	}
}

// RoundDownToMultiple rounds n down to the nearest multiple of m,
// correctly for negative n. m must be positive.
func RoundDownToMultiple(n, m int32) int32 {
	if n >= 0 {
		return (n / m) * m
	}
	return ((n - m + 1) / m) * m
}

// RoundUpToMultiple rounds n up to the nearest multiple of m,
// correctly for negative n. m must be positive.
func RoundUpToMultiple(n, m int32) int32 {
	if n >= 0 {
		return ((n + m - 1) / m) * m
	}
	return (n / m) * m
}
