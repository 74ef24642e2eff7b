// Package combgraph contracts a line graph into the combinatorial skeleton
// that is embedded on a lattice.
//
// Parallel input edges between the same pair of nodes become one bundle
// whose line set is their union. With the degree-2 heuristic enabled, every
// node that merely continues a bundle (exactly two neighbours, both bundles
// carrying the same lines) is elided, so a comb edge may stand for a whole
// chain of input edges. [Graph.Expand] is the inverse step: it distributes
// the elided nodes along the embedded geometry.
package combgraph

import (
	"fmt"
	"slices"

	"github.com/matzehuels/octi/pkg/geo"
	"github.com/matzehuels/octi/pkg/linegraph"
)

// Options configures contraction.
type Options struct {
	// Deg2Heur elides degree-2 nodes into the edges passing through them.
	Deg2Heur bool
}

// Node is a comb node: an input node that keeps its own lattice position.
type Node struct {
	ID    int
	Input *linegraph.Node
	Edges []int
}

// Pos returns the node's original position.
func (n *Node) Pos() geo.Point { return n.Input.Pos }

// Degree returns the number of incident comb edges.
func (n *Node) Degree() int { return len(n.Edges) }

// Segment is a bundle of parallel input edges between two consecutive chain
// nodes.
type Segment struct {
	Edges  []*linegraph.Edge
	Length float64
}

// Edge is a comb edge. Path lists the input node IDs from the From node to
// the To node; Segments[i] joins Path[i] and Path[i+1].
type Edge struct {
	ID       int
	From, To int
	Lines    []linegraph.Line
	Path     []string
	Segments []Segment
	Length   float64
}

// LineCount returns the number of distinct lines on the edge.
func (e *Edge) LineCount() int { return len(e.Lines) }

// Other returns the endpoint opposite to n.
func (e *Edge) Other(n int) int {
	if e.From == n {
		return e.To
	}
	return e.From
}

// Graph is a contracted line graph. It is read-only after Build.
type Graph struct {
	Input *linegraph.Graph
	Nodes []*Node
	Edges []*Edge

	byInput map[string]int
}

// NodeOf returns the comb node of an input node ID.
func (g *Graph) NodeOf(id string) (*Node, bool) {
	i, ok := g.byInput[id]
	if !ok {
		return nil, false
	}
	return g.Nodes[i], true
}

// LineDegree returns the number of line occurrences on the edges incident
// to n.
func (g *Graph) LineDegree(n int) int {
	d := 0
	for _, e := range g.Nodes[n].Edges {
		d += g.Edges[e].LineCount()
	}
	return d
}

// MaxDegree returns the largest comb node degree.
func (g *Graph) MaxDegree() int {
	m := 0
	for _, n := range g.Nodes {
		m = max(m, n.Degree())
	}
	return m
}

// ElidedCount returns the number of input nodes hidden inside comb edges.
func (g *Graph) ElidedCount() int { return g.Input.NodeCount() - len(g.Nodes) }

// pairKey identifies an unordered pair of input nodes.
type pairKey struct{ a, b string }

func keyOf(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// Build contracts lg.
func Build(lg *linegraph.Graph, opts Options) (*Graph, error) {
	segs := make(map[pairKey]*Segment)
	var order []pairKey
	nbrs := make(map[string][]string)
	for _, e := range lg.Edges() {
		k := keyOf(e.From, e.To)
		s, ok := segs[k]
		if !ok {
			s = &Segment{Length: lg.Length(e)}
			segs[k] = s
			order = append(order, k)
			nbrs[e.From] = append(nbrs[e.From], e.To)
			nbrs[e.To] = append(nbrs[e.To], e.From)
		}
		s.Edges = append(s.Edges, e)
	}

	isComb := make(map[string]bool)
	for _, n := range lg.Nodes() {
		isComb[n.ID] = !opts.Deg2Heur || !elidable(n.ID, nbrs, segs)
	}

	for {
		g, loop, err := contract(lg, isComb, nbrs, segs, order)
		if err != nil {
			return nil, err
		}
		if loop == "" {
			return g, nil
		}
		// A chain closed on itself; keep one interior node to break it.
		isComb[loop] = true
	}
}

func elidable(id string, nbrs map[string][]string, segs map[pairKey]*Segment) bool {
	ns := nbrs[id]
	if len(ns) != 2 {
		return false
	}
	a := lineSet(segs[keyOf(id, ns[0])])
	b := lineSet(segs[keyOf(id, ns[1])])
	return slices.Equal(a, b)
}

func lineSet(s *Segment) []string {
	var ids []string
	for _, e := range s.Edges {
		for _, l := range e.Lines {
			ids = append(ids, l.ID)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// contract walks every chain between comb nodes. It returns the ID of an
// interior node to promote when a chain starts and ends at the same node.
func contract(lg *linegraph.Graph, isComb map[string]bool, nbrs map[string][]string, segs map[pairKey]*Segment, order []pairKey) (*Graph, string, error) {
	g := &Graph{Input: lg, byInput: make(map[string]int)}
	for _, n := range lg.Nodes() {
		if isComb[n.ID] {
			g.byInput[n.ID] = len(g.Nodes)
			g.Nodes = append(g.Nodes, &Node{ID: len(g.Nodes), Input: n})
		}
	}

	visited := make(map[pairKey]bool, len(segs))
	walk := func(start, next string) (path []string, chain []Segment) {
		path = []string{start}
		prev, cur := start, next
		for {
			k := keyOf(prev, cur)
			visited[k] = true
			chain = append(chain, *segs[k])
			path = append(path, cur)
			if isComb[cur] {
				return path, chain
			}
			ns := nbrs[cur]
			nxt := ns[0]
			if nxt == prev {
				nxt = ns[1]
			}
			prev, cur = cur, nxt
		}
	}

	for _, k := range order {
		if visited[k] {
			continue
		}
		start, next := k.a, k.b
		if !isComb[start] {
			start, next = next, start
		}
		if !isComb[start] {
			// Both ends elided: the segment belongs to a chain reached from
			// a comb node later, or to a pure cycle.
			continue
		}
		path, chain := walk(start, next)
		if path[0] == path[len(path)-1] {
			return nil, path[len(path)/2], nil
		}
		g.addEdge(path, chain)
	}

	// Pure cycles without any comb node.
	for _, k := range order {
		if !visited[k] {
			return nil, k.a, nil
		}
	}

	if len(g.Nodes) == 0 && lg.NodeCount() > 0 {
		return nil, "", fmt.Errorf("contract: no comb nodes")
	}
	return g, "", nil
}

func (g *Graph) addEdge(path []string, chain []Segment) {
	from := g.byInput[path[0]]
	to := g.byInput[path[len(path)-1]]
	e := &Edge{ID: len(g.Edges), From: from, To: to, Path: path, Segments: chain}
	seen := make(map[string]bool)
	for _, s := range chain {
		e.Length += s.Length
		for _, ie := range s.Edges {
			for _, l := range ie.Lines {
				if !seen[l.ID] {
					seen[l.ID] = true
					e.Lines = append(e.Lines, l)
				}
			}
		}
	}
	g.Edges = append(g.Edges, e)
	g.Nodes[from].Edges = append(g.Nodes[from].Edges, e.ID)
	g.Nodes[to].Edges = append(g.Nodes[to].Edges, e.ID)
}
