package ilp

import (
	"fmt"
	"slices"

	"github.com/matzehuels/octi/pkg/basegraph"
	"github.com/matzehuels/octi/pkg/combgraph"
	"github.com/matzehuels/octi/pkg/errors"
	"github.com/matzehuels/octi/pkg/geo"
	"github.com/matzehuels/octi/pkg/route"
)

// corridorSlack widens the lattice region available to each comb edge,
// in cells, beyond the candidate radius of its endpoints.
const corridorSlack = 1

// Problem is the integer program of one embedding together with the maps
// needed to translate between drawings and variable assignments.
type Problem struct {
	Model *Model

	base *basegraph.Graph
	comb *combgraph.Graph

	// place lists the placement variables of every comb node.
	place [][]placement

	// out lists, per comb edge, the arc variables leaving each lattice node.
	out []map[int][]arc
}

type placement struct {
	node, v int
}

type arc struct {
	edge, head, v int
}

func yName(c, n int) string { return fmt.Sprintf("y_%d_%d", c, n) }

func xName(e, le int, fwd bool) string {
	if fwd {
		return fmt.Sprintf("x_%d_%d_f", e, le)
	}
	return fmt.Sprintf("x_%d_%d_r", e, le)
}

func zName(e, in, out int) string { return fmt.Sprintf("z_%d_%d_%d", e, in, out) }

func cName(n int) string { return fmt.Sprintf("c_%d", n) }

func kName(le int) string { return fmt.Sprintf("k_%d", le) }

// Formulate builds the integer program for embedding the router's comb
// graph on its lattice.
//
// Variables: y(v,n) places comb node v on lattice node n; x(e,a) routes
// comb edge e over the directed lattice arc a; z(e,a,b) pays the bend
// between consecutive arcs; c(n) and k(le) pay node and diagonal crossings.
// Every comb edge may only use lattice nodes in a corridor around its
// original course.
func Formulate(r *route.Router) (*Problem, error) {
	base, comb, opts := r.Base(), r.Comb(), r.Options()
	pen := opts.Penalties
	cell := base.Cell

	p := &Problem{
		Model: NewModel(fmt.Sprintf("octi %d nodes %d edges", len(comb.Nodes), len(comb.Edges))),
		base:  base,
		comb:  comb,
		place: make([][]placement, len(comb.Nodes)),
		out:   make([]map[int][]arc, len(comb.Edges)),
	}
	m := p.Model

	stations := map[int][]Term{}
	for _, c := range comb.Nodes {
		var terms []Term
		for _, cand := range base.Candidates(c.Pos(), opts.MaxGrDist) {
			if base.Degree(cand.Node) < c.Degree() {
				continue
			}
			v := m.AddVar(yName(c.ID, cand.Node), pen.Move(cand.Dist))
			p.place[c.ID] = append(p.place[c.ID], placement{node: cand.Node, v: v})
			terms = append(terms, Term{Var: v, Coef: 1})
			stations[cand.Node] = append(stations[cand.Node], Term{Var: v, Coef: 1})
		}
		if len(terms) == 0 {
			return nil, errors.New(errors.ErrCodeInfeasible, "node %s has no lattice candidate", c.Input.ID)
		}
		m.AddConstr(fmt.Sprintf("place_%d", c.ID), terms, EQ, 1)
	}
	for _, n := range sortedKeys(stations) {
		if terms := stations[n]; len(terms) > 1 {
			m.AddConstr(fmt.Sprintf("excl_%d", n), terms, LE, 1)
		}
	}

	usage := map[int][]Term{}
	pass := map[int][]Term{}
	passEdges := map[int]int{}

	for _, ce := range comb.Edges {
		up, wp := comb.Nodes[ce.From].Pos(), comb.Nodes[ce.To].Pos()
		radius := up.Dist(wp)/2/cell + opts.MaxGrDist + corridorSlack
		corridor := map[int]bool{}
		var nodes []int
		for _, cand := range base.Candidates(up.Lerp(wp, 0.5), radius) {
			corridor[cand.Node] = true
			nodes = append(nodes, cand.Node)
		}
		slices.Sort(nodes)

		type dirArc struct {
			v, le int
			dir   geo.Dir
		}
		in := map[int][]dirArc{}
		outs := map[int][]dirArc{}
		p.out[ce.ID] = map[int][]arc{}

		for _, n := range nodes {
			for dir := geo.Dir(0); dir < geo.NumDirs; dir++ {
				h, le, ok := base.Neighbor(n, dir)
				if !ok || !corridor[h] {
					continue
				}
				cost := base.Edge(le).Cost + pen.Dir(dir)
				if opts.EnfGeoPen > 0 {
					cost += opts.EnfGeoPen * geo.DistToSegment(base.Node(h).Pos, up, wp) / cell
				}
				v := m.AddVar(xName(ce.ID, le, base.Edge(le).A == n), cost)
				outs[n] = append(outs[n], dirArc{v, le, dir})
				in[h] = append(in[h], dirArc{v, le, dir})
				p.out[ce.ID][n] = append(p.out[ce.ID][n], arc{edge: le, head: h, v: v})
				usage[le] = append(usage[le], Term{Var: v, Coef: 1})
			}
		}

		for _, n := range nodes {
			var flow []Term
			for _, a := range outs[n] {
				flow = append(flow, Term{Var: a.v, Coef: 1})
			}
			for _, a := range in[n] {
				flow = append(flow, Term{Var: a.v, Coef: -1})
			}
			if v, ok := p.placeVar(ce.From, n); ok {
				flow = append(flow, Term{Var: v, Coef: -1})
			}
			if v, ok := p.placeVar(ce.To, n); ok {
				flow = append(flow, Term{Var: v, Coef: 1})
			}
			m.AddConstr(fmt.Sprintf("flow_%d_%d", ce.ID, n), flow, EQ, 0)

			for _, a := range in[n] {
				for _, b := range outs[n] {
					turn := base.Turn(a.dir, b.dir)
					if turn >= 4 {
						m.AddConstr(fmt.Sprintf("rev_%d_%d_%d", ce.ID, a.le, b.le),
							[]Term{{a.v, 1}, {b.v, 1}}, LE, 1)
						continue
					}
					if bend := pen.BendTurn(turn); bend > 0 {
						z := m.AddVar(zName(ce.ID, a.le, b.le), bend)
						m.AddConstr(fmt.Sprintf("bend_%d_%d_%d", ce.ID, a.le, b.le),
							[]Term{{z, 1}, {a.v, -1}, {b.v, -1}}, GE, -1)
					}
				}
			}

			if len(in[n]) > 0 {
				for _, a := range in[n] {
					pass[n] = append(pass[n], Term{Var: a.v, Coef: 1})
				}
				if v, ok := p.placeVar(ce.To, n); ok {
					pass[n] = append(pass[n], Term{Var: v, Coef: -1})
				}
				passEdges[n]++
			}
		}
	}

	for _, le := range sortedKeys(usage) {
		if terms := usage[le]; len(terms) > 1 {
			m.AddConstr(fmt.Sprintf("disj_%d", le), terms, LE, 1)
		}
		if c, ok := base.Crossing(le); ok && c > le && len(usage[c]) > 0 && pen.CrossPen > 0 {
			k := m.AddVar(kName(le), pen.CrossPen)
			terms := []Term{{k, 1}}
			for _, t := range usage[le] {
				terms = append(terms, Term{Var: t.Var, Coef: -1})
			}
			for _, t := range usage[c] {
				terms = append(terms, Term{Var: t.Var, Coef: -1})
			}
			m.AddConstr(fmt.Sprintf("diag_%d", le), terms, GE, -1)
		}
	}

	// At most two paths cross at a free node, none passes a station.
	for _, n := range sortedKeys(pass) {
		terms := slices.Clone(pass[n])
		for _, t := range stations[n] {
			terms = append(terms, Term{Var: t.Var, Coef: 2})
		}
		m.AddConstr(fmt.Sprintf("cap_%d", n), terms, LE, 2)
		if passEdges[n] > 1 && pen.CrossPen > 0 {
			c := m.AddVar(cName(n), pen.CrossPen)
			cross := []Term{{c, 1}}
			for _, t := range pass[n] {
				cross = append(cross, Term{Var: t.Var, Coef: -t.Coef})
			}
			m.AddConstr(fmt.Sprintf("cross_%d", n), cross, GE, -1)
		}
	}
	return p, nil
}

func (p *Problem) placeVar(c, n int) (int, bool) {
	for _, pl := range p.place[c] {
		if pl.node == n {
			return pl.v, true
		}
	}
	return -1, false
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Encode converts a complete drawing into a variable assignment, used as a
// warm start. It fails when the drawing leaves the model's domain: skipped
// or relaxed edges, or nodes and paths outside their candidate regions.
func Encode(p *Problem, d *route.Drawing) ([]float64, error) {
	m := p.Model
	vals := make([]float64, len(m.Vars))
	set := func(name string) error {
		i, ok := m.Lookup(name)
		if !ok {
			return fmt.Errorf("drawing uses %s outside the model", name)
		}
		vals[i] = 1
		return nil
	}

	for c, n := range d.Settled {
		if n < 0 {
			return nil, fmt.Errorf("comb node %d is not placed", c)
		}
		if err := set(yName(c, n)); err != nil {
			return nil, err
		}
	}
	for e, path := range d.Paths {
		if path == nil || path.Relaxed {
			return nil, fmt.Errorf("comb edge %d has no disjoint path", e)
		}
		nodes, edges := slices.Clone(path.Nodes), slices.Clone(path.Edges)
		if path.From != p.comb.Edges[e].From {
			slices.Reverse(nodes)
			slices.Reverse(edges)
		}
		for i, le := range edges {
			if err := set(xName(e, le, p.base.Edge(le).A == nodes[i])); err != nil {
				return nil, err
			}
			if i > 0 {
				if j, ok := m.Lookup(zName(e, edges[i-1], le)); ok {
					vals[j] = 1
				}
			}
		}
	}
	for n := 0; n < p.base.NumNodes(); n++ {
		if d.Occ.Pass(n) > 1 {
			if j, ok := m.Lookup(cName(n)); ok {
				vals[j] = 1
			}
		}
	}
	for le := 0; le < p.base.NumEdges(); le++ {
		if c, ok := p.base.Crossing(le); ok && c > le && d.Occ.Used(le) && d.Occ.Used(c) {
			if j, ok := m.Lookup(kName(le)); ok {
				vals[j] = 1
			}
		}
	}
	if c, bad := m.Violated(vals); bad {
		return nil, fmt.Errorf("drawing violates %s", c.Name)
	}
	return vals, nil
}

// Decode commits the embedding described by values to the empty drawing d.
func Decode(p *Problem, values []float64, r *route.Router, d *route.Drawing) error {
	for c, pls := range p.place {
		placed := false
		for _, pl := range pls {
			if values[pl.v] > 0.5 {
				d.Settle(c, pl.node)
				placed = true
				break
			}
		}
		if !placed {
			return errors.New(errors.ErrCodeSolver, "solution leaves node %s unplaced", p.comb.Nodes[c].Input.ID)
		}
	}
	for _, ce := range p.comb.Edges {
		from, to := d.Settled[ce.From], d.Settled[ce.To]
		nodes := []int{from}
		seen := map[int]bool{from: true}
		for n := from; n != to; {
			next := -1
			for _, a := range p.out[ce.ID][n] {
				if values[a.v] > 0.5 && !seen[a.head] {
					next = a.head
					break
				}
			}
			if next < 0 {
				return errors.New(errors.ErrCodeSolver, "solution path of edge %d breaks at lattice node %d", ce.ID, n)
			}
			seen[next] = true
			nodes = append(nodes, next)
			n = next
		}
		if err := r.Place(d, ce.ID, ce.From, nodes); err != nil {
			return errors.Wrap(errors.ErrCodeSolver, err, "place edge %d", ce.ID)
		}
	}
	return nil
}
