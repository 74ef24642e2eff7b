package combgraph

import (
	"maps"
	"slices"

	"github.com/matzehuels/octi/pkg/geo"
	"github.com/matzehuels/octi/pkg/linegraph"
)

// Layout is an embedding of the comb graph in output coordinates.
type Layout struct {
	// Pos holds the position of every placed comb node.
	Pos map[int]geo.Point

	// Geoms holds the polyline of every embedded comb edge, running from
	// the edge's From node to its To node.
	Geoms map[int][]geo.Point
}

// Expand maps an embedding back onto the input graph. Elided nodes are
// placed along their comb edge at the same fractional distance they had in
// the input; every input edge receives the matching piece of the embedded
// polyline. Nodes and edges left out of the layout keep their input
// geometry, and their edges are marked with the "unrouted" property.
func (g *Graph) Expand(l Layout) *linegraph.Graph {
	out := linegraph.New()
	out.Props = maps.Clone(g.Input.Props)

	pos := make(map[string]geo.Point, g.Input.NodeCount())
	for _, n := range g.Input.Nodes() {
		pos[n.ID] = n.Pos
	}
	for _, n := range g.Nodes {
		if p, ok := l.Pos[n.ID]; ok {
			pos[n.Input.ID] = p
		}
	}

	geoms := make(map[*linegraph.Edge][]geo.Point)
	for _, e := range g.Edges {
		line, ok := l.Geoms[e.ID]
		if !ok || len(line) < 2 {
			continue
		}
		total := geo.PolylineLength(line)
		rest := line
		for i, s := range e.Segments {
			piece := rest
			if i < len(e.Segments)-1 {
				frac := s.Length / e.Length
				if e.Length == 0 {
					frac = 1 / float64(len(e.Segments))
				}
				step := frac * total
				piece, rest = geo.SplitAt(rest, step)
				pos[e.Path[i+1]] = piece[len(piece)-1]
			}
			for _, ie := range s.Edges {
				pts := piece
				if ie.From != e.Path[i] {
					pts = slices.Clone(piece)
					slices.Reverse(pts)
				}
				geoms[ie] = pts
			}
		}
	}

	for _, n := range g.Input.Nodes() {
		nn := *n
		nn.Pos = pos[n.ID]
		_ = out.AddNode(nn)
	}
	for _, ie := range g.Input.Edges() {
		e := *ie
		e.Props = maps.Clone(ie.Props)
		if pts, ok := geoms[ie]; ok {
			e.Geom = pts
		} else {
			e.Geom = slices.Clone(g.Input.Polyline(ie))
			e.Geom[0] = pos[e.From]
			e.Geom[len(e.Geom)-1] = pos[e.To]
			if e.Props == nil {
				e.Props = make(map[string]any)
			}
			e.Props["unrouted"] = true
		}
		_ = out.AddEdge(e)
	}
	return out
}
