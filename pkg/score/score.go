// Package score evaluates and compares embeddings.
//
// A score is the weighted sum of five non-negative terms:
//
//   - Hop: lattice edge costs plus direction penalties, plus the geographic
//     course penalty when enabled
//   - Bend: bend penalties along every path and at degree-2 stations
//   - Move: node-move penalties for displaced comb nodes
//   - Density: occupied lattice nodes next to a path
//   - Crossing: shared nodes, crossing diagonals, shared edges and passed
//     stations
//
// The router charges the same weights step by step, so drawings with no
// crossings and no bends score exactly their hop, move and density terms.
package score

import (
	"math"

	"github.com/matzehuels/octi/pkg/geo"
	"github.com/matzehuels/octi/pkg/penalty"
	"github.com/matzehuels/octi/pkg/route"
)

// Score is the total penalty of a drawing and its breakdown.
type Score struct {
	Total    float64 `json:"total"`
	Hop      float64 `json:"hop"`
	Bend     float64 `json:"bend"`
	Move     float64 `json:"move"`
	Density  float64 `json:"density"`
	Crossing float64 `json:"crossing"`

	// Skipped is the number of comb edges missing from the drawing.
	Skipped int `json:"skipped,omitempty"`
}

// Finite reports whether every term of s is a finite number.
func (s Score) Finite() bool {
	for _, v := range []float64{s.Total, s.Hop, s.Bend, s.Move, s.Density, s.Crossing} {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}

func (s *Score) sum() {
	s.Total = s.Hop + s.Bend + s.Move + s.Density + s.Crossing
}

// Less reports whether s is strictly better than o. A drawing that dropped
// fewer edges always wins.
func (s Score) Less(o Score) bool {
	if s.Skipped != o.Skipped {
		return s.Skipped < o.Skipped
	}
	return s.Total < o.Total
}

// Options carries the weights a drawing is scored with.
type Options struct {
	Penalties penalty.Penalties
	EnfGeoPen float64
}

// Compute scores d.
func Compute(d *route.Drawing, opts Options) Score {
	pen := opts.Penalties
	base := d.Base
	var s Score
	s.Skipped = len(d.Skipped)

	for c, n := range d.Settled {
		if n < 0 {
			continue
		}
		dist := base.Node(n).Pos.Dist(d.Comb.Nodes[c].Pos()) / base.Cell
		s.Move += pen.Move(dist)
	}

	for e, p := range d.Paths {
		if p == nil {
			continue
		}
		ce := d.Comb.Edges[e]
		up := d.Comb.Nodes[p.From].Pos()
		vp := d.Comb.Nodes[ce.Other(p.From)].Pos()
		own := map[int]bool{p.Nodes[0]: true, p.Nodes[len(p.Nodes)-1]: true}

		prev := geo.NoDir
		for i, le := range p.Edges {
			dir := base.DirFrom(le, p.Nodes[i])
			m := p.Nodes[i+1]
			s.Hop += base.Edge(le).Cost + pen.Dir(dir)
			if opts.EnfGeoPen > 0 {
				s.Hop += opts.EnfGeoPen * geo.DistToSegment(base.Node(m).Pos, up, vp) / base.Cell
			}
			if prev != geo.NoDir {
				s.Bend += bend(pen, base.Turn(prev, dir))
			}
			prev = dir

			if i == len(p.Edges)-1 {
				continue
			}
			if _, ok := d.Occ.Station(m); ok {
				s.Crossing += pen.StationCrossPen
			}
			if pen.DensityPen > 0 {
				s.Density += pen.DensityPen * float64(crowding(d, m, p.Nodes[i], p, own))
			}
		}
	}

	// Station bends are charged once per degree-2 comb node.
	for _, c := range d.Comb.Nodes {
		if c.Degree() != 2 || d.Settled[c.ID] < 0 {
			continue
		}
		a, b := route.StationDir(d, c.ID, c.Edges[0]), route.StationDir(d, c.ID, c.Edges[1])
		if a != geo.NoDir && b != geo.NoDir {
			s.Bend += bend(pen, base.Turn(b.Opposite(), a))
		}
	}

	for n := 0; n < base.NumNodes(); n++ {
		if k := d.Occ.Pass(n); k > 1 {
			s.Crossing += pen.CrossPen * float64(k-1)
		}
	}
	for e := 0; e < base.NumEdges(); e++ {
		if !d.Occ.Used(e) {
			continue
		}
		if k := d.Occ.Users(e); k > 1 {
			s.Crossing += pen.CrossPen * float64(k-1)
		}
		if c, ok := base.Crossing(e); ok && c > e && d.Occ.Used(c) {
			s.Crossing += pen.CrossPen
		}
	}

	s.sum()
	return s
}

// bend prices a turn of turn·45°. Reversals, which the router never produces
// on its own, get the finite reversal cost so a score stays comparable.
func bend(pen penalty.Penalties, turn int) float64 {
	if turn >= 4 {
		return pen.Reversal()
	}
	return pen.BendTurn(turn)
}

// crowding counts the occupied neighbours of the interior path node m that
// belong to neither the path itself nor its endpoints.
func crowding(d *route.Drawing, m, from int, p *route.Path, own map[int]bool) int {
	k := 0
	for dir := geo.Dir(0); dir < geo.NumDirs; dir++ {
		nb, _, ok := d.Base.Neighbor(m, dir)
		if !ok || nb == from || own[nb] {
			continue
		}
		if _, st := d.Occ.Station(nb); st || d.Occ.Pass(nb) > onPath(p, nb) {
			k++
		}
	}
	return k
}

func onPath(p *route.Path, n int) int {
	k := 0
	for _, m := range p.Nodes[1 : len(p.Nodes)-1] {
		if m == n {
			k++
		}
	}
	return k
}

// StraightLineBaseline scores the naive octilinearization of the input:
// every node stays in place and every comb edge is drawn as at most two
// straight legs along the compass directions bracketing its bearing, with a
// 45° bend between them. A diagonal leg counts one hop per √2 cells, as on
// the lattice. Degree-2 stations pay the bend between their two edges; edges
// that leave a station in the same direction overlap and pay the sharpest
// bend. No node moves, so the baseline has no move term.
func StraightLineBaseline(d *route.Drawing, opts Options) Score {
	pen := opts.Penalties
	cell := d.Base.Cell
	var s Score
	for _, e := range d.Comb.Edges {
		a, b := d.Comb.Nodes[e.From].Pos(), d.Comb.Nodes[e.To].Pos()
		ls := legs(a, b)
		for _, l := range ls {
			hops := l.len / cell
			if l.dir.Diagonal() {
				hops /= math.Sqrt2
			}
			s.Hop += hops * (1 + pen.Dir(l.dir))
		}
		if len(ls) == 2 {
			s.Bend += pen.BendTurn(geo.Turn(ls[0].dir, ls[1].dir))
		}
	}
	for _, c := range d.Comb.Nodes {
		if c.Degree() != 2 {
			continue
		}
		in, ok1 := firstLeg(d, c.ID, c.Edges[0])
		out, ok2 := firstLeg(d, c.ID, c.Edges[1])
		if ok1 && ok2 {
			s.Bend += pen.BendTurn(min(geo.Turn(in.Opposite(), out), 3))
		}
	}
	s.sum()
	return s
}

type leg struct {
	dir geo.Dir
	len float64
}

// legs splits the segment a-b into lengths along the two compass directions
// bracketing its bearing, longest first. Empty legs are dropped.
func legs(a, b geo.Point) []leg {
	v := b.Sub(a)
	if v.Len() < geo.Epsilon {
		return nil
	}
	theta := math.Atan2(v.Y, v.X)
	if theta < 0 {
		theta += 2 * math.Pi
	}
	k := int(math.Floor(theta / (math.Pi / 4)))
	d1 := geo.Dir(k % geo.NumDirs)
	d2 := d1.Rotate(1)
	u1 := geo.Pt(math.Cos(d1.Angle()), math.Sin(d1.Angle()))
	u2 := geo.Pt(math.Cos(d2.Angle()), math.Sin(d2.Angle()))
	det := u1.Cross(u2)
	out := []leg{{d1, v.Cross(u2) / det}, {d2, u1.Cross(v) / det}}
	if out[1].len > out[0].len {
		out[0], out[1] = out[1], out[0]
	}
	if out[1].len < 1e-9*v.Len() {
		out = out[:1]
	}
	return out
}

func firstLeg(d *route.Drawing, c, e int) (geo.Dir, bool) {
	ce := d.Comb.Edges[e]
	ls := legs(d.Comb.Nodes[c].Pos(), d.Comb.Nodes[ce.Other(c)].Pos())
	if len(ls) == 0 {
		return geo.NoDir, false
	}
	return ls[0].dir, true
}

// Attempt is one scored candidate drawing.
type Attempt struct {
	Index   int
	Score   Score
	Drawing *route.Drawing
}

// Select returns the position in attempts of the best scoring attempt. Ties
// go to the lowest Index. It returns -1 for an empty slice.
func Select(attempts []Attempt) int {
	best := -1
	for i, a := range attempts {
		if best < 0 {
			best = i
			continue
		}
		b := attempts[best]
		switch {
		case equal(a.Score, b.Score):
			if a.Index < b.Index {
				best = i
			}
		case a.Score.Less(b.Score):
			best = i
		}
	}
	return best
}

func equal(a, b Score) bool {
	return a.Skipped == b.Skipped && math.Abs(a.Total-b.Total) <= 1e-9*math.Max(1, math.Abs(a.Total))
}
