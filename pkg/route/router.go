// Package route embeds comb edges as lattice paths.
//
// Each comb edge is routed by a shortest path search over (lattice node,
// entry direction) states, so bend penalties are exact without expanding
// every lattice node into port nodes. Endpoints that are not yet placed are
// represented by their candidate lattice nodes, each weighted by the
// node-move penalty; the search settles them at the chosen candidates.
package route

import (
	"container/heap"
	"context"
	stderrors "errors"
	"math"

	"github.com/matzehuels/octi/pkg/basegraph"
	"github.com/matzehuels/octi/pkg/combgraph"
	"github.com/matzehuels/octi/pkg/errors"
	"github.com/matzehuels/octi/pkg/geo"
	"github.com/matzehuels/octi/pkg/penalty"
)

// ErrNoPath is returned when no feasible path exists for a comb edge.
var ErrNoPath = stderrors.New("no feasible path")

// DefaultMaxGrDist is the default candidate radius in cells.
const DefaultMaxGrDist = 3

// Options configures a Router.
type Options struct {
	Penalties penalty.Penalties

	// MaxGrDist is the radius, in cells, within which an unplaced comb node
	// may be put on the lattice.
	MaxGrDist float64

	// EnfGeoPen charges every hop by its distance, in cells, from the
	// straight segment between the edge's original endpoints.
	EnfGeoPen float64

	// SkipOnError drops unroutable edges instead of failing the drawing.
	SkipOnError bool

	// RetryOnError retries an unroutable edge once with disjointness and
	// station blocking relaxed. A relaxed path may also share the port of a
	// degree-2 station with the station's other path, at the reversal cost.
	RetryOnError bool
}

// Router routes the comb edges of one attempt. It keeps reusable search
// buffers and is not safe for concurrent use.
type Router struct {
	base *basegraph.Graph
	comb *combgraph.Graph
	opts Options

	dist   []float64
	stamp  []uint32
	prev   []int32
	via    []int32
	origin []int32
	gen    uint32
	pq     stateHeap
}

// NewRouter returns a router for comb on base.
func NewRouter(base *basegraph.Graph, comb *combgraph.Graph, opts Options) *Router {
	if opts.MaxGrDist < 0 {
		opts.MaxGrDist = 0
	}
	n := base.NumNodes() * numDirStates
	return &Router{
		base:   base,
		comb:   comb,
		opts:   opts,
		dist:   make([]float64, n),
		stamp:  make([]uint32, n),
		prev:   make([]int32, n),
		via:    make([]int32, n),
		origin: make([]int32, n),
	}
}

// Options returns the router's configuration.
func (r *Router) Options() Options { return r.opts }

// Base returns the lattice the router works on.
func (r *Router) Base() *basegraph.Graph { return r.base }

// Comb returns the comb graph the router embeds.
func (r *Router) Comb() *combgraph.Graph { return r.comb }

// Draw routes every comb edge in order on a fresh drawing, applying the
// skip and retry policies. Comb nodes without edges are placed at their
// nearest free lattice node.
func (r *Router) Draw(ctx context.Context, order []int) (*Drawing, error) {
	d := NewDrawing(r.comb, r.base)
	for _, e := range order {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeAborted, err, "routing interrupted")
		}
		if err := r.RouteEdge(d, e); err != nil {
			return nil, err
		}
	}
	r.settleIsolated(d)
	return d, nil
}

// RouteEdge routes comb edge e, falling back to a relaxed retry and then to
// skipping it as configured.
func (r *Router) RouteEdge(d *Drawing, e int) error {
	err := r.Route(d, e, false)
	if err == nil {
		return nil
	}
	if r.opts.RetryOnError {
		if err = r.Route(d, e, true); err == nil {
			return nil
		}
	}
	if r.opts.SkipOnError {
		d.Skip(e)
		return nil
	}
	ce := r.comb.Edges[e]
	return errors.Wrap(errors.ErrCodeUnroutable, err, "route edge %s - %s",
		r.comb.Nodes[ce.From].Input.ID, r.comb.Nodes[ce.To].Input.ID)
}

// Route finds the cheapest path for comb edge e under the current state of
// d and commits it. A relaxed search may reuse lattice edges and pass
// foreign stations at crossPen and stationCrossPen.
func (r *Router) Route(d *Drawing, e int, relaxed bool) error {
	p, err := r.find(d, e, relaxed)
	if err != nil {
		return err
	}
	d.commit(p)
	return nil
}

// Place commits an explicit path for comb edge e running through the given
// lattice nodes, starting at comb node from.
func (r *Router) Place(d *Drawing, e, from int, nodes []int) error {
	if len(nodes) < 2 {
		return ErrNoPath
	}
	p := &Path{Edge: e, From: from, Nodes: nodes}
	for i := 1; i < len(nodes); i++ {
		le, ok := r.edgeBetween(nodes[i-1], nodes[i])
		if !ok {
			return ErrNoPath
		}
		if d.Occ.Used(le) {
			p.Relaxed = true
		}
		p.Edges = append(p.Edges, le)
	}
	d.commit(p)
	return nil
}

func (r *Router) edgeBetween(a, b int) (int, bool) {
	for dir := geo.Dir(0); dir < geo.NumDirs; dir++ {
		if m, le, ok := r.base.Neighbor(a, dir); ok && m == b {
			return le, true
		}
	}
	return -1, false
}

func (r *Router) settleIsolated(d *Drawing) {
	for _, c := range r.comb.Nodes {
		if c.Degree() > 0 || d.Settled[c.ID] >= 0 {
			continue
		}
		for _, cand := range r.base.Candidates(c.Pos(), r.opts.MaxGrDist) {
			if !d.Occ.Occupied(cand.Node) {
				d.Settle(c.ID, cand.Node)
				break
			}
		}
	}
}

// endpoint is a lattice node a path may start or end at.
type endpoint struct {
	node int
	cost float64

	// dir is the direction in which the neighbouring path of a degree-2
	// station leaves the node.
	dir geo.Dir
}

// endpoints returns where comb node c may sit for edge e.
func (r *Router) endpoints(d *Drawing, c, e int) []endpoint {
	if n := d.Settled[c]; n >= 0 {
		return []endpoint{{node: n, dir: StationDir(d, c, e)}}
	}
	deg := r.comb.Nodes[c].Degree()
	var out []endpoint
	for _, cand := range r.base.Candidates(r.comb.Nodes[c].Pos(), r.opts.MaxGrDist) {
		if d.Occ.Occupied(cand.Node) || r.base.Degree(cand.Node) < deg {
			continue
		}
		out = append(out, endpoint{
			node: cand.Node,
			cost: r.opts.Penalties.Move(cand.Dist),
			dir:  geo.NoDir,
		})
	}
	return out
}

// StationDir returns the direction in which the other routed edge of a
// degree-2 comb node c leaves its lattice node, or NoDir.
func StationDir(d *Drawing, c, e int) geo.Dir {
	cn := d.Comb.Nodes[c]
	if cn.Degree() != 2 || d.Settled[c] < 0 {
		return geo.NoDir
	}
	other := cn.Edges[0]
	if other == e {
		other = cn.Edges[1]
	}
	p := d.Paths[other]
	if p == nil {
		return geo.NoDir
	}
	if p.From == c {
		return d.Base.DirFrom(p.Edges[0], p.Nodes[0])
	}
	last := len(p.Edges) - 1
	return d.Base.DirFrom(p.Edges[last], p.Nodes[last+1])
}

const numDirStates = geo.NumDirs + 1

func stateOf(n int, in geo.Dir) int {
	if in == geo.NoDir {
		return n*numDirStates + geo.NumDirs
	}
	return n*numDirStates + int(in)
}

func decodeState(s int) (int, geo.Dir) {
	n, k := s/numDirStates, s%numDirStates
	if k == geo.NumDirs {
		return n, geo.NoDir
	}
	return n, geo.Dir(k)
}

func (r *Router) reset() {
	r.gen++
	if r.gen == 0 {
		clear(r.stamp)
		r.gen = 1
	}
	r.pq = r.pq[:0]
}

func (r *Router) distOf(s int) float64 {
	if r.stamp[s] != r.gen {
		return math.Inf(1)
	}
	return r.dist[s]
}

func (r *Router) push(s int, cost float64, prev, via, origin int) {
	r.stamp[s] = r.gen
	r.dist[s] = cost
	r.prev[s] = int32(prev)
	r.via[s] = int32(via)
	r.origin[s] = int32(origin)
	heap.Push(&r.pq, stateItem{state: int32(s), cost: cost})
}

func (r *Router) find(d *Drawing, e int, relaxed bool) (*Path, error) {
	ce := r.comb.Edges[e]
	u, v := ce.From, ce.To
	if d.Settled[u] < 0 && d.Settled[v] >= 0 {
		u, v = v, u
	}
	sources := r.endpoints(d, u, e)
	targetList := r.endpoints(d, v, e)
	if len(sources) == 0 || len(targetList) == 0 {
		return nil, ErrNoPath
	}
	for i := range sources {
		if sources[i].dir != geo.NoDir {
			sources[i].dir = sources[i].dir.Opposite()
		}
	}
	targets := make(map[int]endpoint, len(targetList))
	for _, t := range targetList {
		targets[t.node] = t
	}
	own := map[int]bool{}
	if n := d.Settled[u]; n >= 0 {
		own[n] = true
	}
	if n := d.Settled[v]; n >= 0 {
		own[n] = true
	}

	pen := r.opts.Penalties
	up, vp := r.comb.Nodes[u].Pos(), r.comb.Nodes[v].Pos()

	r.reset()
	for _, s := range sources {
		st := stateOf(s.node, s.dir)
		if s.cost < r.distOf(st) {
			r.push(st, s.cost, -1, -1, s.node)
		}
	}

	best := math.Inf(1)
	bestState, bestEdge, bestNode := -1, -1, -1

	for r.pq.Len() > 0 {
		it := heap.Pop(&r.pq).(stateItem)
		s := int(it.state)
		if it.cost > r.distOf(s) {
			continue
		}
		if it.cost >= best {
			break
		}
		n, in := decodeState(s)
		origin := int(r.origin[s])

		for dir := geo.Dir(0); dir < geo.NumDirs; dir++ {
			m, le, ok := r.base.Neighbor(n, dir)
			if !ok || m == origin {
				continue
			}
			step := r.base.Edge(le).Cost + pen.Dir(dir)
			if in != geo.NoDir {
				turn := r.base.Turn(in, dir)
				switch {
				case turn < 4:
					step += pen.BendTurn(turn)
				case relaxed && r.prev[s] < 0:
					// Leaving a station through its neighbour's port.
					step += pen.Reversal()
				default:
					continue
				}
			}
			if d.Occ.Used(le) {
				if !relaxed {
					continue
				}
				step += pen.CrossPen
			}
			if c, ok := r.base.Crossing(le); ok && d.Occ.Used(c) {
				step += pen.CrossPen
			}
			if r.opts.EnfGeoPen > 0 {
				step += r.opts.EnfGeoPen * geo.DistToSegment(r.base.Node(m).Pos, up, vp) / r.base.Cell
			}
			cost := it.cost + step

			if t, ok := targets[m]; ok {
				total := cost + t.cost
				if t.dir != geo.NoDir {
					switch turn := r.base.Turn(dir, t.dir); {
					case turn < 4:
						total += pen.BendTurn(turn)
					case relaxed:
						total += pen.Reversal()
					default:
						total = math.Inf(1)
					}
				}
				if total < best {
					best, bestState, bestEdge, bestNode = total, s, le, m
				}
			}

			if own[m] {
				continue
			}
			if _, ok := d.Occ.Station(m); ok {
				if !relaxed {
					continue
				}
				cost += pen.StationCrossPen
			}
			if d.Occ.Pass(m) > 0 {
				cost += pen.CrossPen
			}
			if pen.DensityPen > 0 {
				cost += pen.DensityPen * float64(r.crowding(d, m, n, own))
			}
			ms := stateOf(m, dir)
			if cost < r.distOf(ms) {
				r.push(ms, cost, s, le, origin)
			}
		}
	}

	if bestState < 0 {
		return nil, ErrNoPath
	}

	p := &Path{Edge: e, From: u, Relaxed: relaxed}
	nodes := []int{bestNode}
	edges := []int{bestEdge}
	for s := bestState; s >= 0; s = int(r.prev[s]) {
		n, _ := decodeState(s)
		nodes = append(nodes, n)
		if r.via[s] >= 0 {
			edges = append(edges, int(r.via[s]))
		}
	}
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}
	p.Nodes, p.Edges = nodes, edges
	return p, nil
}

// crowding counts the occupied lattice neighbours of m, ignoring the node
// the path comes from and the edge's own endpoints.
func (r *Router) crowding(d *Drawing, m, from int, own map[int]bool) int {
	k := 0
	for dir := geo.Dir(0); dir < geo.NumDirs; dir++ {
		nb, _, ok := r.base.Neighbor(m, dir)
		if !ok || nb == from || own[nb] {
			continue
		}
		if d.Occ.Occupied(nb) {
			k++
		}
	}
	return k
}

type stateItem struct {
	state int32
	cost  float64
}

// stateHeap is a min-heap of search states.
type stateHeap []stateItem

func (h stateHeap) Len() int { return len(h) }
func (h stateHeap) Less(i, j int) bool {
	if h[i].cost != h[j].cost {
		return h[i].cost < h[j].cost
	}
	return h[i].state < h[j].state
}
func (h stateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *stateHeap) Push(x any)   { *h = append(*h, x.(stateItem)) }
func (h *stateHeap) Pop() any {
	old := *h
	it := old[len(old)-1]
	*h = old[:len(old)-1]
	return it
}
