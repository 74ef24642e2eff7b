// Package geo provides the planar geometry primitives used by the embedding
// engine: points, bounding boxes, polygons, convex hulls and segment tests.
//
// All coordinates are in the input graph's units. The package has no notion
// of projections; callers are expected to supply projected coordinates.
package geo

import (
	"math"
	"slices"
)

// Epsilon is the tolerance used for coordinate comparisons.
const Epsilon = 1e-9

// Point is a position in the plane.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{x, y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

func (p Point) Add(q Point) Point         { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) Sub(q Point) Point         { return Point{p.X - q.X, p.Y - q.Y} }
func (p Point) Scale(f float64) Point     { return Point{p.X * f, p.Y * f} }
func (p Point) Dist(q Point) float64      { return math.Hypot(p.X-q.X, p.Y-q.Y) }
func (p Point) Len() float64              { return math.Hypot(p.X, p.Y) }
func (p Point) Cross(q Point) float64     { return p.X*q.Y - p.Y*q.X }
func (p Point) Dot(q Point) float64       { return p.X*q.X + p.Y*q.Y }
func (p Point) Lerp(q Point, t float64) Point {
	return Point{p.X + (q.X-p.X)*t, p.Y + (q.Y-p.Y)*t}
}

// Angle returns the bearing from p to q in radians in (-π, π].
func (p Point) Angle(q Point) float64 {
	return math.Atan2(q.Y-p.Y, q.X-p.X)
}

// Eq reports whether p and q are equal within Epsilon.
func (p Point) Eq(q Point) bool {
	return math.Abs(p.X-q.X) < Epsilon && math.Abs(p.Y-q.Y) < Epsilon
}

// BBox is an axis aligned bounding box. The zero value is empty.
type BBox struct {
	Min, Max Point
	nonEmpty bool
}

// BBoxOf returns the bounding box of pts.
func BBoxOf(pts ...Point) BBox {
	var b BBox
	for _, p := range pts {
		b = b.Extend(p)
	}
	return b
}

// Empty reports whether no point was added to b.
func (b BBox) Empty() bool { return !b.nonEmpty }

// Extend returns b grown to contain p.
func (b BBox) Extend(p Point) BBox {
	if !b.nonEmpty {
		return BBox{Min: p, Max: p, nonEmpty: true}
	}
	b.Min.X = math.Min(b.Min.X, p.X)
	b.Min.Y = math.Min(b.Min.Y, p.Y)
	b.Max.X = math.Max(b.Max.X, p.X)
	b.Max.Y = math.Max(b.Max.Y, p.Y)
	return b
}

// Pad returns b grown by d on every side.
func (b BBox) Pad(d float64) BBox {
	if !b.nonEmpty {
		return b
	}
	b.Min = b.Min.Sub(Point{d, d})
	b.Max = b.Max.Add(Point{d, d})
	return b
}

func (b BBox) Width() float64  { return b.Max.X - b.Min.X }
func (b BBox) Height() float64 { return b.Max.Y - b.Min.Y }
func (b BBox) Center() Point   { return b.Min.Lerp(b.Max, 0.5) }

// Contains reports whether p lies inside b or on its border.
func (b BBox) Contains(p Point) bool {
	return b.nonEmpty &&
		p.X >= b.Min.X-Epsilon && p.X <= b.Max.X+Epsilon &&
		p.Y >= b.Min.Y-Epsilon && p.Y <= b.Max.Y+Epsilon
}

// Intersects reports whether b and o overlap.
func (b BBox) Intersects(o BBox) bool {
	if !b.nonEmpty || !o.nonEmpty {
		return false
	}
	return b.Min.X <= o.Max.X && o.Min.X <= b.Max.X &&
		b.Min.Y <= o.Max.Y && o.Min.Y <= b.Max.Y
}

// Polygon is a simple polygon given by its outer ring. The ring need not be
// closed explicitly.
type Polygon struct {
	Outer []Point `json:"outer"`
}

// BBox returns the polygon's bounding box.
func (pg Polygon) BBox() BBox { return BBoxOf(pg.Outer...) }

// Contains reports whether p is strictly inside the polygon using the even-odd
// rule. Points on the border count as outside.
func (pg Polygon) Contains(p Point) bool {
	n := len(pg.Outer)
	if n < 3 {
		return false
	}
	in := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := pg.Outer[i], pg.Outer[j]
		if DistToSegment(p, a, b) < Epsilon {
			return false
		}
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < x {
				in = !in
			}
		}
	}
	return in
}

// IntersectsSegment reports whether the segment ab enters the polygon's
// interior.
func (pg Polygon) IntersectsSegment(a, b Point) bool {
	if pg.Contains(a) || pg.Contains(b) || pg.Contains(a.Lerp(b, 0.5)) {
		return true
	}
	n := len(pg.Outer)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if SegmentsCross(a, b, pg.Outer[j], pg.Outer[i]) {
			return true
		}
	}
	return false
}

// Dist returns the distance from p to the polygon border, or 0 if p is inside.
func (pg Polygon) Dist(p Point) float64 {
	if pg.Contains(p) {
		return 0
	}
	d := math.Inf(1)
	n := len(pg.Outer)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		d = math.Min(d, DistToSegment(p, pg.Outer[j], pg.Outer[i]))
	}
	return d
}

func orient(a, b, c Point) float64 {
	return b.Sub(a).Cross(c.Sub(a))
}

// SegmentsCross reports whether segments ab and cd properly intersect, that
// is they cross at a single point interior to both.
func SegmentsCross(a, b, c, d Point) bool {
	d1 := orient(c, d, a)
	d2 := orient(c, d, b)
	d3 := orient(a, b, c)
	d4 := orient(a, b, d)
	return ((d1 > Epsilon && d2 < -Epsilon) || (d1 < -Epsilon && d2 > Epsilon)) &&
		((d3 > Epsilon && d4 < -Epsilon) || (d3 < -Epsilon && d4 > Epsilon))
}

// DistToSegment returns the distance from p to segment ab.
func DistToSegment(p, a, b Point) float64 {
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 == 0 {
		return p.Dist(a)
	}
	t := math.Max(0, math.Min(1, p.Sub(a).Dot(ab)/l2))
	return p.Dist(a.Lerp(b, t))
}

// ConvexHull returns the convex hull of pts in counter-clockwise order using
// the monotone chain algorithm. Collinear points are dropped.
func ConvexHull(pts []Point) []Point {
	ps := slices.Clone(pts)
	slices.SortFunc(ps, func(a, b Point) int {
		if a.X != b.X {
			if a.X < b.X {
				return -1
			}
			return 1
		}
		switch {
		case a.Y < b.Y:
			return -1
		case a.Y > b.Y:
			return 1
		}
		return 0
	})
	ps = slices.CompactFunc(ps, Point.Eq)
	if len(ps) < 3 {
		return ps
	}

	hull := make([]Point, 0, 2*len(ps))
	for _, p := range ps {
		for len(hull) >= 2 && orient(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(ps) - 2; i >= 0; i-- {
		p := ps[i]
		for len(hull) >= lower && orient(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// PolylineLength returns the summed segment length of pts.
func PolylineLength(pts []Point) float64 {
	var l float64
	for i := 1; i < len(pts); i++ {
		l += pts[i-1].Dist(pts[i])
	}
	return l
}

// PointAt returns the point at distance d along the polyline pts.
func PointAt(pts []Point, d float64) Point {
	if len(pts) == 0 {
		return Point{}
	}
	for i := 1; i < len(pts); i++ {
		seg := pts[i-1].Dist(pts[i])
		if d <= seg {
			if seg == 0 {
				return pts[i-1]
			}
			return pts[i-1].Lerp(pts[i], d/seg)
		}
		d -= seg
	}
	return pts[len(pts)-1]
}

// SplitAt splits the polyline at distance d, returning the two halves. Both
// halves contain the split point.
func SplitAt(pts []Point, d float64) ([]Point, []Point) {
	if len(pts) < 2 {
		return slices.Clone(pts), slices.Clone(pts)
	}
	for i := 1; i < len(pts); i++ {
		seg := pts[i-1].Dist(pts[i])
		if d <= seg {
			p := pts[i-1]
			if seg > 0 {
				p = pts[i-1].Lerp(pts[i], d/seg)
			}
			head := append(slices.Clone(pts[:i]), p)
			tail := append([]Point{p}, pts[i:]...)
			return head, tail
		}
		d -= seg
	}
	last := pts[len(pts)-1]
	return slices.Clone(pts), []Point{last, last}
}
