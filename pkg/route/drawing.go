package route

import (
	"slices"

	"github.com/matzehuels/octi/pkg/basegraph"
	"github.com/matzehuels/octi/pkg/combgraph"
	"github.com/matzehuels/octi/pkg/geo"
	"github.com/matzehuels/octi/pkg/linegraph"
)

// Path is the lattice image of one comb edge. Nodes[0] hosts comb node From;
// Edges[i] joins Nodes[i] and Nodes[i+1].
type Path struct {
	Edge  int
	From  int
	Nodes []int
	Edges []int

	// Relaxed is set when the path was found with disjointness relaxed.
	Relaxed bool
}

// Len returns the number of hops.
func (p *Path) Len() int { return len(p.Edges) }

// Drawing is one embedding attempt: where every comb node sits and which
// lattice path every comb edge takes. A Drawing is owned by a single
// goroutine.
type Drawing struct {
	Comb *combgraph.Graph
	Base *basegraph.Graph
	Occ  *basegraph.Occupancy

	// Settled maps comb node IDs to lattice nodes, -1 when unplaced.
	Settled []int

	// Paths maps comb edge IDs to their path, nil when unrouted.
	Paths []*Path

	// Skipped lists the comb edges dropped under the skip policy.
	Skipped []int
}

// NewDrawing returns an empty drawing of comb on base.
func NewDrawing(comb *combgraph.Graph, base *basegraph.Graph) *Drawing {
	settled := make([]int, len(comb.Nodes))
	for i := range settled {
		settled[i] = -1
	}
	return &Drawing{
		Comb:    comb,
		Base:    base,
		Occ:     basegraph.NewOccupancy(base),
		Settled: settled,
		Paths:   make([]*Path, len(comb.Edges)),
	}
}

// Degraded reports whether edges were dropped.
func (d *Drawing) Degraded() bool { return len(d.Skipped) > 0 }

// Routed returns the number of routed comb edges.
func (d *Drawing) Routed() int {
	n := 0
	for _, p := range d.Paths {
		if p != nil {
			n++
		}
	}
	return n
}

// Clone returns an independent copy. Paths are immutable and shared.
func (d *Drawing) Clone() *Drawing {
	return &Drawing{
		Comb:    d.Comb,
		Base:    d.Base,
		Occ:     d.Occ.Clone(),
		Settled: slices.Clone(d.Settled),
		Paths:   slices.Clone(d.Paths),
		Skipped: slices.Clone(d.Skipped),
	}
}

// Restore overwrites d with the state of a snapshot taken by Clone.
func (d *Drawing) Restore(snap *Drawing) {
	d.Occ.CopyFrom(snap.Occ)
	copy(d.Settled, snap.Settled)
	copy(d.Paths, snap.Paths)
	d.Skipped = append(d.Skipped[:0], snap.Skipped...)
}

// Settle places comb node c at lattice node n.
func (d *Drawing) Settle(c, n int) {
	if old := d.Settled[c]; old >= 0 {
		d.Occ.Unsettle(old)
	}
	d.Settled[c] = n
	d.Occ.Settle(n, c)
}

// Unsettle removes comb node c from the lattice.
func (d *Drawing) Unsettle(c int) {
	if n := d.Settled[c]; n >= 0 {
		d.Occ.Unsettle(n)
		d.Settled[c] = -1
	}
}

// commit records p and updates the occupancy.
func (d *Drawing) commit(p *Path) {
	e := d.Comb.Edges[p.Edge]
	to := e.Other(p.From)
	if d.Settled[p.From] < 0 {
		d.Settle(p.From, p.Nodes[0])
	}
	if d.Settled[to] < 0 {
		d.Settle(to, p.Nodes[len(p.Nodes)-1])
	}
	for _, le := range p.Edges {
		d.Occ.Use(le)
	}
	for _, n := range p.Nodes[1 : len(p.Nodes)-1] {
		d.Occ.AddPass(n, 1)
	}
	d.Paths[p.Edge] = p
}

// Unroute removes the path of comb edge e. Endpoints stay settled.
func (d *Drawing) Unroute(e int) {
	p := d.Paths[e]
	if p == nil {
		return
	}
	for _, le := range p.Edges {
		d.Occ.Release(le)
	}
	for _, n := range p.Nodes[1 : len(p.Nodes)-1] {
		d.Occ.AddPass(n, -1)
	}
	d.Paths[e] = nil
}

// Skip drops comb edge e from the drawing.
func (d *Drawing) Skip(e int) {
	d.Unroute(e)
	if !slices.Contains(d.Skipped, e) {
		d.Skipped = append(d.Skipped, e)
	}
}

// Unskip removes e from the skipped list after it was routed again.
func (d *Drawing) Unskip(e int) {
	d.Skipped = slices.DeleteFunc(d.Skipped, func(s int) bool { return s == e })
}

// Polyline returns the lattice geometry of comb edge e oriented from the
// edge's From node, or nil when e is unrouted.
func (d *Drawing) Polyline(e int) []geo.Point {
	p := d.Paths[e]
	if p == nil {
		return nil
	}
	pts := make([]geo.Point, len(p.Nodes))
	for i, n := range p.Nodes {
		pts[i] = d.Base.Node(n).Pos
	}
	if p.From != d.Comb.Edges[e].From {
		slices.Reverse(pts)
	}
	return simplify(pts)
}

// simplify drops interior points that continue straight on.
func simplify(pts []geo.Point) []geo.Point {
	if len(pts) < 3 {
		return pts
	}
	out := []geo.Point{pts[0]}
	for i := 1; i < len(pts)-1; i++ {
		a, b, c := out[len(out)-1], pts[i], pts[i+1]
		if abs(b.Sub(a).Cross(c.Sub(b))) < geo.Epsilon && b.Sub(a).Dot(c.Sub(b)) > 0 {
			continue
		}
		out = append(out, b)
	}
	return append(out, pts[len(pts)-1])
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Layout converts the drawing into output coordinates for expansion.
func (d *Drawing) Layout() combgraph.Layout {
	l := combgraph.Layout{
		Pos:   make(map[int]geo.Point),
		Geoms: make(map[int][]geo.Point),
	}
	for c, n := range d.Settled {
		if n >= 0 {
			l.Pos[c] = d.Base.Node(n).Pos
		}
	}
	for e, p := range d.Paths {
		if p != nil {
			l.Geoms[e] = d.Polyline(e)
		}
	}
	return l
}

// Output expands the drawing into an embedded line graph.
func (d *Drawing) Output() *linegraph.Graph {
	out := d.Comb.Expand(d.Layout())
	if out.Props == nil {
		out.Props = make(map[string]any)
	}
	if d.Degraded() {
		out.Props["degraded"] = true
	}
	return out
}
