package linegraph

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/octi/pkg/geo"
)

// ReadDOT parses a Graphviz graph into a line graph.
//
// Every DOT node needs a pos="x,y" attribute. An optional label becomes the
// station label and station_id the station ID. Edges list their lines in a
// comma separated lines attribute; an edge without one carries a single line
// named after its color attribute, or "1".
func ReadDOT(ctx context.Context, data []byte) (*Graph, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	dg, err := graphviz.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer dg.Close()

	g := New()
	type pending struct{ from, to, lines, color string }
	var edges []pending

	for n, err := dg.FirstNode(); n != nil; n, err = dg.NextNode(n) {
		if err != nil {
			return nil, fmt.Errorf("iterate nodes: %w", err)
		}
		name, err := n.Name()
		if err != nil {
			return nil, fmt.Errorf("node name: %w", err)
		}
		pos, err := parsePos(n.GetStr("pos"))
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", name, err)
		}
		label := n.GetStr("label")
		if label == name || label == `\N` {
			label = ""
		}
		if err := g.AddNode(Node{
			ID:           name,
			Pos:          pos,
			StationID:    n.GetStr("station_id"),
			StationLabel: label,
		}); err != nil {
			return nil, err
		}

		for e, err := dg.FirstOut(n); e != nil; e, err = dg.NextOut(e) {
			if err != nil {
				return nil, fmt.Errorf("iterate edges of %s: %w", name, err)
			}
			head, err := e.Head()
			if err != nil {
				return nil, err
			}
			to, err := head.Name()
			if err != nil {
				return nil, err
			}
			edges = append(edges, pending{from: name, to: to, lines: e.GetStr("lines"), color: e.GetStr("color")})
		}
	}

	for _, p := range edges {
		if err := g.AddEdge(Edge{From: p.from, To: p.to, Lines: parseLines(p.lines, p.color)}); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func parsePos(s string) (geo.Point, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "!")
	parts := strings.Split(s, ",")
	if len(parts) < 2 {
		return geo.Point{}, fmt.Errorf("missing or malformed pos %q", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("pos x: %w", err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("pos y: %w", err)
	}
	return geo.Pt(x, y), nil
}

func parseLines(lines, color string) []Line {
	var out []Line
	for _, id := range strings.Split(lines, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, Line{ID: id, Label: id, Color: color})
		}
	}
	if len(out) == 0 {
		id := color
		if id == "" {
			id = "1"
		}
		out = []Line{{ID: id, Label: id, Color: color}}
	}
	return out
}
