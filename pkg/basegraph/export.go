package basegraph

import (
	"fmt"

	"github.com/matzehuels/octi/pkg/geo"
	"github.com/matzehuels/octi/pkg/linegraph"
)

// ToLineGraph exports the lattice as a line graph for inspection. Closed
// nodes and blocked edges are omitted. When occ is non-nil every edge is
// annotated with its number of users and every node with its station.
func (g *Graph) ToLineGraph(occ *Occupancy) *linegraph.Graph {
	out := linegraph.New()
	out.Props = map[string]any{
		"type": g.Type.String(),
		"cell": g.Cell,
	}
	for _, n := range g.nodes {
		if n.Closed {
			continue
		}
		node := linegraph.Node{ID: nodeName(n.ID), Pos: n.Pos}
		if occ != nil {
			if s, ok := occ.Station(n.ID); ok {
				node.StationID = fmt.Sprintf("%d", s)
			}
		}
		_ = out.AddNode(node)
	}
	for _, e := range g.edges {
		if g.Blocked(e.ID) || g.nodes[e.A].Closed || g.nodes[e.B].Closed {
			continue
		}
		edge := linegraph.Edge{
			ID:    fmt.Sprintf("ge%d", e.ID),
			From:  nodeName(e.A),
			To:    nodeName(e.B),
			Geom:  []geo.Point{g.nodes[e.A].Pos, g.nodes[e.B].Pos},
			Props: map[string]any{"cost": e.Cost, "dir": e.Dir.String()},
		}
		if occ != nil {
			edge.Props["users"] = occ.Users(e.ID)
		}
		_ = out.AddEdge(edge)
	}
	return out
}

func nodeName(id int) string { return fmt.Sprintf("g%d", id) }
