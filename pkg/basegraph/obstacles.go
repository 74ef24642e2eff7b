package basegraph

import "github.com/matzehuels/octi/pkg/geo"

// ApplyObstacles closes every node inside a polygon and blocks every edge
// whose segment enters one. It returns the number of closed nodes and
// blocked edges. It must be called before the graph is shared between
// routers.
func (g *Graph) ApplyObstacles(polys []geo.Polygon) (closed, blocked int) {
	for _, pg := range polys {
		box := pg.BBox()
		for i := range g.nodes {
			n := &g.nodes[i]
			if !n.Closed && box.Contains(n.Pos) && pg.Contains(n.Pos) {
				n.Closed = true
				closed++
			}
		}
		for i, e := range g.edges {
			if g.blocked.Test(uint(i)) {
				continue
			}
			a, c := g.nodes[e.A].Pos, g.nodes[e.B].Pos
			if !box.Intersects(geo.BBoxOf(a, c)) {
				continue
			}
			if pg.IntersectsSegment(a, c) {
				g.blocked.Set(uint(i))
				blocked++
			}
		}
	}
	return closed, blocked
}
