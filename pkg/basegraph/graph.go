// Package basegraph builds the candidate lattices that transit lines are
// routed across.
//
// A base graph is a set of lattice nodes, each with eight compass port slots,
// and undirected lattice edges that occupy one port at either end. The
// topology is chosen from a closed table ([Type]); every topology produces
// the same [Graph] structure so routing, optimization and scoring are
// topology agnostic.
//
// Bends are not modelled as separate port-to-port edges. A path's cost
// instead depends on the pair (entry port, exit port) at each node it passes,
// which the router tracks as part of its search state. This is equivalent to
// the classic eight-ports-plus-sink node expansion with far fewer edges.
//
// Base graphs are immutable after [Build] and [Graph.ApplyObstacles]. The
// mutable routing state of an attempt lives in an [Occupancy].
package basegraph

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/bits-and-blooms/bitset"

	octierrors "github.com/matzehuels/octi/pkg/errors"
	"github.com/matzehuels/octi/pkg/geo"
)

// DefaultMaxNodes bounds the size of a generated lattice.
const DefaultMaxNodes = 2_000_000

var (
	// ErrTooLarge is returned when a lattice would exceed Spec.MaxNodes.
	ErrTooLarge = errors.New("lattice too large")

	// ErrEmpty is returned when the input extent is empty.
	ErrEmpty = errors.New("empty input extent")
)

// Spec describes the lattice to build.
type Spec struct {
	Type Type

	// Cell is the lattice spacing in input units.
	Cell float64

	// BBox is the extent of the input nodes; Border pads it on every side.
	BBox   geo.BBox
	Border float64

	// Points are the input node positions. They drive the convex hull,
	// quad tree and Hanan topologies.
	Points []geo.Point

	// Center is the origin of the pseudo-orthoradial lattice. The bounding
	// box center is used when it is nil.
	Center *geo.Point

	// HananIters is the number of line intersection rounds for the Hanan
	// lattice. Values below 1 mean 1.
	HananIters int

	// MaxNodes bounds the lattice size. Zero means DefaultMaxNodes.
	MaxNodes int
}

// Node is a lattice node.
type Node struct {
	ID  int
	Pos geo.Point

	// LX, LY are integer lattice coordinates for regular lattices. Lattice is
	// false for irregular topologies.
	LX, LY  int
	Lattice bool

	// Closed nodes lie inside an obstacle and cannot be used.
	Closed bool
}

// Edge is an undirected lattice edge. Dir is the port it occupies at A; the
// port at B is Dir.Opposite().
type Edge struct {
	ID   int
	A, B int
	Dir  geo.Dir

	// Cost is the base penalty of traversing the edge: one per hop on the
	// regular grids, its length in cells on the irregular lattices.
	Cost float64
}

// Graph is an immutable lattice.
type Graph struct {
	Type Type
	Cell float64
	BBox geo.BBox

	nodes   []Node
	edges   []Edge
	ports   [][geo.NumDirs]int32
	blocked *bitset.BitSet
	cross   []int32

	buckets map[[2]int][]int32
	origin  geo.Point
}

// Build generates the lattice described by spec.
func Build(spec Spec) (*Graph, error) {
	if !spec.Type.Valid() {
		return nil, octierrors.New(octierrors.ErrCodeInvalidConfig, "invalid base graph type %d", int(spec.Type))
	}
	if !(spec.Cell > 0) || math.IsInf(spec.Cell, 0) {
		return nil, octierrors.New(octierrors.ErrCodeInvalidConfig, "lattice cell size must be positive, got %g", spec.Cell)
	}
	if spec.BBox.Empty() {
		return nil, ErrEmpty
	}
	if spec.MaxNodes <= 0 {
		spec.MaxNodes = DefaultMaxNodes
	}
	if spec.HananIters < 1 {
		spec.HananIters = 1
	}

	b := newBuilder(spec)
	if err := types[spec.Type].build(b, spec); err != nil {
		return nil, fmt.Errorf("build %s lattice: %w", spec.Type, err)
	}
	return b.finish(), nil
}

// generator fills a builder with the nodes and edges of one topology.
type generator func(b *builder, spec Spec) error

// builder accumulates nodes and edges while a generator runs.
type builder struct {
	g        *Graph
	maxNodes int
	lattice  map[[2]int]int
}

func newBuilder(spec Spec) *builder {
	return &builder{
		g: &Graph{
			Type: spec.Type,
			Cell: spec.Cell,
			BBox: spec.BBox.Pad(spec.Border),
		},
		maxNodes: spec.MaxNodes,
		lattice:  make(map[[2]int]int),
	}
}

func (b *builder) addNode(p geo.Point) (int, error) {
	if len(b.g.nodes) >= b.maxNodes {
		return -1, fmt.Errorf("%w: more than %d nodes", ErrTooLarge, b.maxNodes)
	}
	id := len(b.g.nodes)
	b.g.nodes = append(b.g.nodes, Node{ID: id, Pos: p})
	var ports [geo.NumDirs]int32
	for i := range ports {
		ports[i] = -1
	}
	b.g.ports = append(b.g.ports, ports)
	return id, nil
}

func (b *builder) addLatticeNode(p geo.Point, x, y int) (int, error) {
	id, err := b.addNode(p)
	if err != nil {
		return -1, err
	}
	n := &b.g.nodes[id]
	n.LX, n.LY, n.Lattice = x, y, true
	b.lattice[[2]int{x, y}] = id
	return id, nil
}

func (b *builder) latticeNode(x, y int) (int, bool) {
	id, ok := b.lattice[[2]int{x, y}]
	return id, ok
}

// connect links a and b through port d at a. It reports false when either
// port is already taken or the nodes are already adjacent.
func (b *builder) connect(a, c int, d geo.Dir, cost float64) bool {
	if a == c || b.g.ports[a][d] >= 0 || b.g.ports[c][d.Opposite()] >= 0 {
		return false
	}
	for _, e := range b.g.ports[a] {
		if e >= 0 && b.g.edges[e].other(a) == c {
			return false
		}
	}
	id := int32(len(b.g.edges))
	b.g.edges = append(b.g.edges, Edge{ID: int(id), A: a, B: c, Dir: d, Cost: cost})
	b.g.ports[a][d] = id
	b.g.ports[c][d.Opposite()] = id
	return true
}

// connectGeo links a and c through the port nearest to their bearing, with a
// cost equal to their distance in cells.
func (b *builder) connectGeo(a, c int) bool {
	pa, pc := b.g.nodes[a].Pos, b.g.nodes[c].Pos
	return b.connect(a, c, geo.NearestDir(pa, pc), pa.Dist(pc)/b.g.Cell)
}

func (b *builder) finish() *Graph {
	g := b.g
	g.blocked = bitset.New(uint(len(g.edges)))
	g.cross = make([]int32, len(g.edges))
	for i := range g.cross {
		g.cross[i] = -1
	}
	for i, e := range g.edges {
		if g.Type == HexGrid || !e.Dir.Diagonal() || !g.nodes[e.A].Lattice {
			continue
		}
		// The other diagonal of the unit square spanned by e.
		na := g.nodes[e.A]
		dx, _ := e.Dir.Delta()
		if c, ok := b.latticeNode(na.LX+dx, na.LY); ok {
			other := e.Dir.Rotate(2)
			if e.Dir == geo.NW || e.Dir == geo.SE {
				other = e.Dir.Rotate(-2)
			}
			if ce := g.ports[c][other]; ce >= 0 {
				g.cross[i] = ce
			}
		}
	}

	if len(g.nodes) > 0 {
		g.origin = g.nodes[0].Pos
		for _, n := range g.nodes {
			g.origin.X = math.Min(g.origin.X, n.Pos.X)
			g.origin.Y = math.Min(g.origin.Y, n.Pos.Y)
		}
	}
	g.buckets = make(map[[2]int][]int32)
	for _, n := range g.nodes {
		k := g.bucket(n.Pos)
		g.buckets[k] = append(g.buckets[k], int32(n.ID))
	}
	return g
}

func (e Edge) other(n int) int {
	if e.A == n {
		return e.B
	}
	return e.A
}

func (g *Graph) bucket(p geo.Point) [2]int {
	return [2]int{
		int(math.Floor((p.X - g.origin.X) / g.Cell)),
		int(math.Floor((p.Y - g.origin.Y) / g.Cell)),
	}
}

// NumNodes returns the number of lattice nodes.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NumEdges returns the number of lattice edges.
func (g *Graph) NumEdges() int { return len(g.edges) }

// Node returns node i.
func (g *Graph) Node(i int) *Node { return &g.nodes[i] }

// Edge returns edge i.
func (g *Graph) Edge(i int) *Edge { return &g.edges[i] }

// Other returns the endpoint of edge e opposite to node n.
func (g *Graph) Other(e, n int) int { return g.edges[e].other(n) }

// DirFrom returns the direction of travelling edge e starting at node n.
func (g *Graph) DirFrom(e, n int) geo.Dir {
	if g.edges[e].A == n {
		return g.edges[e].Dir
	}
	return g.edges[e].Dir.Opposite()
}

// Port returns the usable edge occupying port d of node n.
func (g *Graph) Port(n int, d geo.Dir) (int, bool) {
	e := g.ports[n][d]
	if e < 0 || g.blocked.Test(uint(e)) {
		return -1, false
	}
	return int(e), true
}

// Neighbor returns the node reached from n through port d and the edge used.
func (g *Graph) Neighbor(n int, d geo.Dir) (next, edge int, ok bool) {
	e, ok := g.Port(n, d)
	if !ok {
		return -1, -1, false
	}
	m := g.edges[e].other(n)
	if g.nodes[m].Closed {
		return -1, -1, false
	}
	return m, e, true
}

// Degree returns the number of usable ports of n.
func (g *Graph) Degree(n int) int {
	deg := 0
	for d := geo.Dir(0); d < geo.NumDirs; d++ {
		if _, _, ok := g.Neighbor(n, d); ok {
			deg++
		}
	}
	return deg
}

// Blocked reports whether edge e was removed by an obstacle.
func (g *Graph) Blocked(e int) bool { return g.blocked.Test(uint(e)) }

// Crossing returns the diagonal edge that geometrically crosses e, if any.
func (g *Graph) Crossing(e int) (int, bool) {
	c := g.cross[e]
	return int(c), c >= 0
}

// Turn returns the deviation class (0 straight .. 4 reversal) between
// travelling in and then out. Hexagonal lattices measure 60° steps: a 60°
// deviation is class 1 and a 120° deviation class 3.
func (g *Graph) Turn(in, out geo.Dir) int {
	if g.Type != HexGrid {
		return geo.Turn(in, out)
	}
	dev := math.Abs(hexAngle(in) - hexAngle(out))
	if dev > 180 {
		dev = 360 - dev
	}
	switch {
	case dev < 30:
		return 0
	case dev < 90:
		return 1
	case dev < 150:
		return 3
	}
	return 4
}

func hexAngle(d geo.Dir) float64 {
	switch d {
	case geo.E:
		return 0
	case geo.NE:
		return 60
	case geo.NW:
		return 120
	case geo.W:
		return 180
	case geo.SW:
		return 240
	case geo.SE:
		return 300
	}
	return float64(d) * 45
}

// Candidate is a lattice node near a position.
type Candidate struct {
	Node int
	Dist float64 // distance in cells
}

// Candidates returns the open nodes within radius cells of p, nearest first,
// ties broken by node ID. If none lies within the radius the single nearest
// open node is returned.
func (g *Graph) Candidates(p geo.Point, radius float64) []Candidate {
	r := int(math.Ceil(radius)) + 1
	k := g.bucket(p)
	var out []Candidate
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			for _, id := range g.buckets[[2]int{k[0] + dx, k[1] + dy}] {
				n := &g.nodes[id]
				if n.Closed {
					continue
				}
				if d := n.Pos.Dist(p) / g.Cell; d <= radius+geo.Epsilon {
					out = append(out, Candidate{Node: int(id), Dist: d})
				}
			}
		}
	}
	if len(out) == 0 {
		if n, ok := g.Nearest(p); ok {
			out = append(out, Candidate{Node: n, Dist: g.nodes[n].Pos.Dist(p) / g.Cell})
		}
	}
	slices.SortFunc(out, func(a, b Candidate) int {
		if a.Dist != b.Dist {
			if a.Dist < b.Dist {
				return -1
			}
			return 1
		}
		return a.Node - b.Node
	})
	return out
}

// Nearest returns the open node closest to p.
func (g *Graph) Nearest(p geo.Point) (int, bool) {
	best, bestD := -1, math.Inf(1)
	for i := range g.nodes {
		if g.nodes[i].Closed {
			continue
		}
		if d := g.nodes[i].Pos.Dist(p); d < bestD {
			best, bestD = i, d
		}
	}
	return best, best >= 0
}
