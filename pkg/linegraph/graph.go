// Package linegraph models the transit line graph that octi reads and writes.
//
// A line graph is an undirected multigraph: nodes are stations or track
// junctions with a geographic position, and edges are track segments that
// carry one or more transit lines. The engine contracts a line graph into a
// [combgraph.Graph], embeds it, and writes the embedded result back as a line
// graph with octilinear edge geometries.
//
// Graphs are read from and written to GeoJSON feature collections
// ([Read], [Write]) or read from Graphviz DOT ([ReadDOT]).
package linegraph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/matzehuels/octi/pkg/geo"
)

var (
	// ErrDuplicateNode is returned by AddNode when the ID already exists.
	ErrDuplicateNode = errors.New("duplicate node ID")

	// ErrUnknownNode is returned by AddEdge when an endpoint does not exist.
	ErrUnknownNode = errors.New("unknown node")

	// ErrSelfLoop is returned by AddEdge for edges whose endpoints coincide.
	ErrSelfLoop = errors.New("self loop")

	// ErrInvalidNodeID is returned for empty node IDs.
	ErrInvalidNodeID = errors.New("node ID must not be empty")
)

// Line is a transit line (route) served on an edge.
type Line struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	Color string `json:"color,omitempty"`
}

// Node is a station or junction.
type Node struct {
	ID           string
	Pos          geo.Point
	StationID    string
	StationLabel string
}

// IsStation reports whether the node represents a station rather than a bare
// track junction.
func (n *Node) IsStation() bool { return n.StationID != "" || n.StationLabel != "" }

// Edge is a track segment between two nodes. Geom, when set, runs from From
// to To; otherwise the edge is drawn as a straight segment.
type Edge struct {
	ID    string
	From  string
	To    string
	Lines []Line
	Geom  []geo.Point

	// Props carries extra output properties (for example the drawing's
	// component index). It is not interpreted by the engine.
	Props map[string]any
}

// Graph is an undirected line multigraph. Node and edge iteration order is
// insertion order, which keeps every downstream step deterministic.
type Graph struct {
	nodes map[string]*Node
	order []string
	edges []*Edge
	adj   map[string][]int

	// Props carries collection level properties written with the graph.
	Props map[string]any
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		adj:   make(map[string][]int),
	}
}

// AddNode adds n to the graph.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, ok := g.nodes[n.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	nn := n
	g.nodes[n.ID] = &nn
	g.order = append(g.order, n.ID)
	return nil
}

// AddEdge adds e to the graph. Parallel edges are allowed. An empty edge ID
// is replaced by a generated one.
func (g *Graph) AddEdge(e Edge) error {
	if _, ok := g.nodes[e.From]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, e.From)
	}
	if _, ok := g.nodes[e.To]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, e.To)
	}
	if e.From == e.To {
		return fmt.Errorf("%w: %s", ErrSelfLoop, e.From)
	}
	if e.ID == "" {
		e.ID = fmt.Sprintf("e%d", len(g.edges))
	}
	ee := e
	idx := len(g.edges)
	g.edges = append(g.edges, &ee)
	g.adj[e.From] = append(g.adj[e.From], idx)
	g.adj[e.To] = append(g.adj[e.To], idx)
	return nil
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.order))
	for i, id := range g.order {
		out[i] = g.nodes[id]
	}
	return out
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []*Edge { return slices.Clone(g.edges) }

func (g *Graph) NodeCount() int { return len(g.order) }
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Degree returns the number of edges incident to id.
func (g *Graph) Degree(id string) int { return len(g.adj[id]) }

// Incident returns the edges incident to id in insertion order.
func (g *Graph) Incident(id string) []*Edge {
	out := make([]*Edge, 0, len(g.adj[id]))
	for _, i := range g.adj[id] {
		out = append(out, g.edges[i])
	}
	return out
}

// Other returns the endpoint of e opposite to id.
func (e *Edge) Other(id string) string {
	if e.From == id {
		return e.To
	}
	return e.From
}

// Polyline returns the edge geometry, falling back to the straight segment
// between the endpoint positions.
func (g *Graph) Polyline(e *Edge) []geo.Point {
	if len(e.Geom) >= 2 {
		return e.Geom
	}
	return []geo.Point{g.nodes[e.From].Pos, g.nodes[e.To].Pos}
}

// Length returns the geometric length of e.
func (g *Graph) Length(e *Edge) float64 {
	return geo.PolylineLength(g.Polyline(e))
}

// BBox returns the bounding box of all node positions.
func (g *Graph) BBox() geo.BBox {
	var b geo.BBox
	for _, id := range g.order {
		b = b.Extend(g.nodes[id].Pos)
	}
	return b
}

// AvgEdgeLength returns the mean straight-line distance between adjacent
// nodes. It is the reference length for relative grid sizes.
func (g *Graph) AvgEdgeLength() float64 {
	if len(g.edges) == 0 {
		return 0
	}
	var sum float64
	for _, e := range g.edges {
		sum += g.nodes[e.From].Pos.Dist(g.nodes[e.To].Pos)
	}
	return sum / float64(len(g.edges))
}

// Components splits the graph into connected components, each returned as an
// independent graph. Components are ordered by their first node in insertion
// order.
func (g *Graph) Components() []*Graph {
	seen := make(map[string]bool, len(g.order))
	var comps []*Graph
	for _, start := range g.order {
		if seen[start] {
			continue
		}
		var members []string
		stack := []string{start}
		seen[start] = true
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			members = append(members, id)
			for _, ei := range g.adj[id] {
				o := g.edges[ei].Other(id)
				if !seen[o] {
					seen[o] = true
					stack = append(stack, o)
				}
			}
		}
		comps = append(comps, g.subgraph(members))
	}
	return comps
}

func (g *Graph) subgraph(ids []string) *Graph {
	in := make(map[string]bool, len(ids))
	for _, id := range ids {
		in[id] = true
	}
	sub := New()
	for _, id := range g.order {
		if in[id] {
			_ = sub.AddNode(*g.nodes[id])
		}
	}
	for _, e := range g.edges {
		if in[e.From] {
			_ = sub.AddEdge(*e)
		}
	}
	return sub
}

// Merge appends all nodes and edges of o to g. Node IDs must not collide.
func (g *Graph) Merge(o *Graph) error {
	for _, n := range o.Nodes() {
		if err := g.AddNode(*n); err != nil {
			return err
		}
	}
	for _, e := range o.edges {
		if err := g.AddEdge(*e); err != nil {
			return err
		}
	}
	return nil
}
