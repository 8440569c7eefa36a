package geom

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Region is an immutable world-space polygon used to test terrain coverage.
// Regions are derived from the camera each frame (one per visibility band)
// and are never cached by the engine.
//
// The point containment test is a same-side-of-every-edge test: exact for
// convex polygons and a correct approximation for the star-shaped polygons
// the camera produces, but not a general non-convex point-in-polygon test.
type Region struct {
	points []mgl32.Vec2
}

// NewRegion builds a region from an ordered point sequence. Fewer than
// three points yields a degenerate region whose predicates report false.
func NewRegion(points []mgl32.Vec2) Region {
	pts := make([]mgl32.Vec2, len(points))
	copy(pts, points)
	return Region{points: pts}
}

// Points returns the polygon's points. Callers must not mutate the slice.
func (r *Region) Points() []mgl32.Vec2 {
	return r.points
}

// BoundingRect returns the polygon's axis-aligned bounding rectangle.
func (r *Region) BoundingRect() Rect {
	return RectFromPoints(r.points)
}

// ContainsPoint reports whether point lies inside the polygon. An exact
// vertex hit counts as inside. The test tracks cross-product sign changes
// around the boundary; any sign flip means outside.
func (r *Region) ContainsPoint(point mgl32.Vec2) bool {
	if len(r.points) < 3 {
		return false
	}
	pos := 0
	neg := 0
	for i := range r.points {
		if r.points[i] == point {
			return true
		}
		x1 := r.points[i].X()
		y1 := r.points[i].Y()

		i2 := (i + 1) % len(r.points)
		x2 := r.points[i2].X()
		y2 := r.points[i2].Y()

		d := (point.X()-x1)*(y2-y1) - (point.Y()-y1)*(x2-x1)
		if d > 0 {
			pos++
		}
		if d < 0 {
			neg++
		}
		// A sign change means the point is outside.
		if pos > 0 && neg > 0 {
			return false
		}
	}
	return true
}

// IntersectsLine reports whether segment ab touches the polygon boundary.
// An endpoint coinciding with a polygon vertex counts as touching.
// Collinear overlaps are not specially handled.
func (r *Region) IntersectsLine(a, b mgl32.Vec2) bool {
	if len(r.points) < 3 {
		return false
	}
	for i := range r.points {
		if r.points[i] == a || r.points[i] == b {
			return true
		}
		c := r.points[i]
		d := r.points[(i+1)%len(r.points)]
		if segmentsCross(a, b, c, d) {
			return true
		}
	}
	return false
}

// IntersectsRect reports whether the polygon and the rectangle overlap.
// The rectangle is treated as its four edges, plus two containment checks
// covering "rect inside region" and "region inside rect".
func (r *Region) IntersectsRect(rect Rect) bool {
	corners := rect.Corners()
	for i := range corners {
		if r.IntersectsLine(corners[i], corners[(i+1)%4]) {
			return true
		}
	}
	return rect.ContainsRect(r.BoundingRect()) || r.ContainsRect(rect)
}

// ContainsRect reports whether all four rectangle corners lie inside the
// polygon.
func (r *Region) ContainsRect(rect Rect) bool {
	for _, x := range [2]float32{rect.Min.X(), rect.Max.X()} {
		for _, y := range [2]float32{rect.Min.Y(), rect.Max.Y()} {
			if !r.ContainsPoint(mgl32.Vec2{x, y}) {
				return false
			}
		}
	}
	return true
}

// segmentsCross reports whether segment ab strictly crosses segment cd.
// Collinear configurations report false.
func segmentsCross(a, b, c, d mgl32.Vec2) bool {
	return ccw(a, c, d) != ccw(b, c, d) && ccw(a, b, c) != ccw(a, b, d)
}

func ccw(a, b, c mgl32.Vec2) bool {
	return (c.Y()-a.Y())*(b.X()-a.X()) > (b.Y()-a.Y())*(c.X()-a.X())
}
