package pipeline

import (
	"strconv"

	"github.com/matzehuels/octi/pkg/linegraph"
	"github.com/matzehuels/octi/pkg/route"
	"github.com/matzehuels/octi/pkg/score"
)

// Render assembles the output graph from the selected drawing of every
// component: the embedded line graph, or the lattices themselves with
// PrintGridGraph.
func Render(drawings []*route.Drawing, opts Options) (*linegraph.Graph, error) {
	out := linegraph.New()
	multi := len(drawings) > 1
	for i, d := range drawings {
		var g *linegraph.Graph
		if opts.PrintMode == PrintGridGraph {
			g = d.Base.ToLineGraph(d.Occ)
			if multi {
				g = prefixed(g, i)
			}
		} else {
			g = d.Output()
		}
		for _, e := range g.Edges() {
			if e.Props == nil {
				e.Props = make(map[string]any)
			}
			e.Props["component"] = i
		}
		if err := out.Merge(g); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// prefixed copies g with every node ID qualified by the component index, so
// lattices of several components can share one graph.
func prefixed(g *linegraph.Graph, comp int) *linegraph.Graph {
	out := linegraph.New()
	id := func(s string) string { return "c" + strconv.Itoa(comp) + "." + s }
	for _, n := range g.Nodes() {
		nn := *n
		nn.ID = id(n.ID)
		_ = out.AddNode(nn)
	}
	for _, e := range g.Edges() {
		ee := *e
		ee.ID = id(e.ID)
		ee.From, ee.To = id(e.From), id(e.To)
		_ = out.AddEdge(ee)
	}
	return out
}

// setProps writes the run summary onto the output collection. Scores that
// are not finite have no JSON form and are left out.
func setProps(g *linegraph.Graph, res *Result) {
	if g.Props == nil {
		g.Props = make(map[string]any)
	}
	if res.Score.Finite() {
		g.Props["score"] = res.Score
	}
	if res.Baseline.Finite() {
		g.Props["baseline"] = res.Baseline
	}
	if res.Degraded {
		g.Props["degraded"] = true
	}
}

// addScores sums component scores.
func addScores(a, b score.Score) score.Score {
	return score.Score{
		Total:    a.Total + b.Total,
		Hop:      a.Hop + b.Hop,
		Bend:     a.Bend + b.Bend,
		Move:     a.Move + b.Move,
		Density:  a.Density + b.Density,
		Crossing: a.Crossing + b.Crossing,
		Skipped:  a.Skipped + b.Skipped,
	}
}
