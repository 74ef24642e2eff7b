package dot

import (
	"context"
	"strings"
	"testing"

	"github.com/matzehuels/octi/pkg/basegraph"
	"github.com/matzehuels/octi/pkg/combgraph"
	"github.com/matzehuels/octi/pkg/geo"
	"github.com/matzehuels/octi/pkg/linegraph"
	"github.com/matzehuels/octi/pkg/penalty"
	"github.com/matzehuels/octi/pkg/route"
)

func drawing(t *testing.T) *route.Drawing {
	t.Helper()
	lg := linegraph.New()
	for _, n := range []linegraph.Node{
		{ID: "west", Pos: geo.Pt(0, 0)},
		{ID: "east", Pos: geo.Pt(200, 0)},
	} {
		if err := lg.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	if err := lg.AddEdge(linegraph.Edge{From: "west", To: "east", Lines: []linegraph.Line{{ID: "U1", Color: "ff0000"}}}); err != nil {
		t.Fatal(err)
	}
	comb, err := combgraph.Build(lg, combgraph.Options{})
	if err != nil {
		t.Fatal(err)
	}
	base, err := basegraph.Build(basegraph.Spec{
		Type:   basegraph.OctiGrid,
		Cell:   100,
		BBox:   lg.BBox(),
		Border: 100,
	})
	if err != nil {
		t.Fatal(err)
	}
	r := route.NewRouter(base, comb, route.Options{Penalties: penalty.Default(), MaxGrDist: 1})
	d, err := r.Draw(context.Background(), route.Order(comb, route.OrderNumLines))
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestToDOT(t *testing.T) {
	d := drawing(t)
	hops := d.Paths[0].Len()

	tests := []struct {
		name  string
		opts  Options
		nodes int
	}{
		{"used only", Options{}, hops + 1},
		{"lattice", Options{Lattice: true}, d.Base.NumNodes()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := ToDOT(d, tt.opts)
			if !strings.HasPrefix(src, "graph G {") {
				t.Fatalf("unexpected header:\n%s", src)
			}
			if got := strings.Count(src, "pos=\""); got != tt.nodes {
				t.Errorf("%d positioned nodes, want %d", got, tt.nodes)
			}
			if got := strings.Count(src, `color="#ff0000"`); got != hops {
				t.Errorf("%d colored path segments, want %d", got, hops)
			}
			for _, name := range []string{`xlabel="west"`, `xlabel="east"`} {
				if !strings.Contains(src, name) {
					t.Errorf("station %s missing", name)
				}
			}
		})
	}
}

func TestPathColor(t *testing.T) {
	d := drawing(t)
	if got := pathColor(d, 0); got != "#ff0000" {
		t.Errorf("pathColor() = %q, want #ff0000", got)
	}
	d.Comb.Edges[0].Lines[0].Color = "navy"
	if got := pathColor(d, 0); got != "navy" {
		t.Errorf("pathColor() = %q, want navy", got)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="100pt" height="50pt" viewBox="0.00 0.00 100.00 50.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	got := string(normalizeViewBox(in))
	want := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100.00 50.00" width="100" height="50"><g/></svg>`
	if got != want {
		t.Errorf("normalizeViewBox() = %s, want %s", got, want)
	}
	if got := normalizeViewBox([]byte("<svg/>")); string(got) != "<svg/>" {
		t.Errorf("normalizeViewBox without viewBox = %s", got)
	}
}
