package geo

import (
	"math"
	"testing"
)

func square() Polygon {
	return Polygon{Outer: []Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}}
}

func TestPolygonContains(t *testing.T) {
	pg := square()
	tests := []struct {
		p    Point
		want bool
	}{
		{Pt(5, 5), true},
		{Pt(0.1, 9.9), true},
		{Pt(-1, 5), false},
		{Pt(11, 5), false},
		{Pt(0, 5), false}, // border
	}
	for _, tt := range tests {
		if got := pg.Contains(tt.p); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestPolygonIntersectsSegment(t *testing.T) {
	pg := square()
	tests := []struct {
		name string
		a, b Point
		want bool
	}{
		{"through", Pt(-5, 5), Pt(15, 5), true},
		{"inside", Pt(2, 2), Pt(3, 3), true},
		{"outside", Pt(-5, -5), Pt(-5, 15), false},
		{"touching corner", Pt(-5, 5), Pt(0, 10), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pg.IntersectsSegment(tt.a, tt.b); got != tt.want {
				t.Errorf("IntersectsSegment(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSegmentsCross(t *testing.T) {
	if !SegmentsCross(Pt(0, 0), Pt(1, 1), Pt(0, 1), Pt(1, 0)) {
		t.Error("diagonals of unit square should cross")
	}
	if SegmentsCross(Pt(0, 0), Pt(1, 0), Pt(1, 0), Pt(2, 0)) {
		t.Error("collinear touching segments should not cross")
	}
	if SegmentsCross(Pt(0, 0), Pt(1, 1), Pt(1, 1), Pt(2, 0)) {
		t.Error("segments sharing an endpoint should not cross")
	}
}

func TestConvexHull(t *testing.T) {
	pts := []Point{{0, 0}, {2, 0}, {1, 1}, {2, 2}, {0, 2}, {1, 0}, {0, 0}}
	hull := ConvexHull(pts)
	if len(hull) != 4 {
		t.Fatalf("len(hull) = %d, want 4 (%v)", len(hull), hull)
	}
	for _, p := range hull {
		if p.Eq(Pt(1, 1)) || p.Eq(Pt(1, 0)) {
			t.Errorf("hull contains non-extreme point %v", p)
		}
	}
}

func TestBBox(t *testing.T) {
	var b BBox
	if !b.Empty() {
		t.Error("zero BBox should be empty")
	}
	b = BBoxOf(Pt(1, 2), Pt(-3, 5)).Pad(1)
	if b.Min != Pt(-4, 1) || b.Max != Pt(2, 6) {
		t.Errorf("BBox = %v..%v, want (-4,1)..(2,6)", b.Min, b.Max)
	}
	if !b.Contains(Pt(0, 3)) || b.Contains(Pt(3, 3)) {
		t.Error("Contains mismatch")
	}
}

func TestPolylineHelpers(t *testing.T) {
	line := []Point{{0, 0}, {10, 0}, {10, 10}}
	if l := PolylineLength(line); l != 20 {
		t.Errorf("PolylineLength = %v, want 20", l)
	}
	if p := PointAt(line, 15); !p.Eq(Pt(10, 5)) {
		t.Errorf("PointAt(15) = %v, want (10,5)", p)
	}
	head, tail := SplitAt(line, 5)
	if PolylineLength(head) != 5 || PolylineLength(tail) != 15 {
		t.Errorf("SplitAt lengths = %v/%v, want 5/15", PolylineLength(head), PolylineLength(tail))
	}
	if d := DistToSegment(Pt(5, 3), Pt(0, 0), Pt(10, 0)); math.Abs(d-3) > Epsilon {
		t.Errorf("DistToSegment = %v, want 3", d)
	}
}
