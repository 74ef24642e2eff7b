package score

import (
	"context"
	"math"
	"testing"

	"github.com/matzehuels/octi/pkg/basegraph"
	"github.com/matzehuels/octi/pkg/combgraph"
	"github.com/matzehuels/octi/pkg/geo"
	"github.com/matzehuels/octi/pkg/linegraph"
	"github.com/matzehuels/octi/pkg/penalty"
	"github.com/matzehuels/octi/pkg/route"
)

// straightDrawing places a single comb edge a - b as three horizontal hops.
func straightDrawing(t *testing.T) (*route.Router, *route.Drawing) {
	t.Helper()
	lg := linegraph.New()
	_ = lg.AddNode(linegraph.Node{ID: "a", Pos: geo.Pt(0, 10)})
	_ = lg.AddNode(linegraph.Node{ID: "b", Pos: geo.Pt(300, 0)})
	if err := lg.AddEdge(linegraph.Edge{From: "a", To: "b", Lines: []linegraph.Line{{ID: "1"}}}); err != nil {
		t.Fatal(err)
	}
	comb, err := combgraph.Build(lg, combgraph.Options{})
	if err != nil {
		t.Fatal(err)
	}
	base, err := basegraph.Build(basegraph.Spec{
		Type: basegraph.OctiGrid,
		Cell: 100,
		BBox: geo.BBoxOf(geo.Pt(0, 0), geo.Pt(300, 100)),
	})
	if err != nil {
		t.Fatal(err)
	}
	r := route.NewRouter(base, comb, route.Options{Penalties: penalty.Default()})
	d := route.NewDrawing(comb, base)
	var nodes []int
	for x := 0.0; x <= 300; x += 100 {
		c := base.Candidates(geo.Pt(x, 0), 0)
		nodes = append(nodes, c[0].Node)
	}
	if err := r.Place(d, 0, 0, nodes); err != nil {
		t.Fatal(err)
	}
	return r, d
}

func TestComputePureLengthTerms(t *testing.T) {
	_, d := straightDrawing(t)
	pens := penalty.Default()
	pens.HorizontalPen = 0.25
	s := Compute(d, Options{Penalties: pens})

	if s.Bend != 0 || s.Crossing != 0 {
		t.Fatalf("Bend = %v, Crossing = %v, want 0, 0", s.Bend, s.Crossing)
	}
	if want := 3 * (1 + 0.25); math.Abs(s.Hop-want) > 1e-9 {
		t.Errorf("Hop = %v, want %v", s.Hop, want)
	}
	if want := pens.NdMovePen * 0.1; math.Abs(s.Move-want) > 1e-9 {
		t.Errorf("Move = %v, want %v", s.Move, want)
	}
	if s.Density != 0 {
		t.Errorf("Density = %v, want 0", s.Density)
	}
	if want := s.Hop + s.Move + s.Density; math.Abs(s.Total-want) > 1e-9 {
		t.Errorf("Total = %v, want %v", s.Total, want)
	}
}

func TestComputeCountsCrossings(t *testing.T) {
	r, d := straightDrawing(t)
	// A second bundle passing the first interior node.
	pens := penalty.Default()
	before := Compute(d, Options{Penalties: pens})
	col := func(x float64) []int {
		var out []int
		for _, y := range []float64{0, 100} {
			out = append(out, r.Base().Candidates(geo.Pt(x, y), 0)[0].Node)
		}
		return out
	}
	d.Occ.AddPass(col(100)[0], 1)
	after := Compute(d, Options{Penalties: pens})
	if after.Crossing-before.Crossing != pens.CrossPen {
		t.Errorf("crossing delta = %v, want %v", after.Crossing-before.Crossing, pens.CrossPen)
	}
	for _, v := range []float64{after.Hop, after.Bend, after.Move, after.Density, after.Crossing} {
		if v < 0 {
			t.Errorf("negative term in %+v", after)
		}
	}
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name     string
		attempts []Attempt
		want     int
	}{
		{"empty", nil, -1},
		{
			name: "strict minimum",
			attempts: []Attempt{
				{Index: 0, Score: Score{Total: 3}},
				{Index: 1, Score: Score{Total: 1}},
				{Index: 2, Score: Score{Total: 2}},
			},
			want: 1,
		},
		{
			name: "tie goes to earliest attempt",
			attempts: []Attempt{
				{Index: 4, Score: Score{Total: 1}},
				{Index: 2, Score: Score{Total: 1}},
				{Index: 3, Score: Score{Total: 5}},
			},
			want: 1,
		},
		{
			name: "fewer skipped edges win",
			attempts: []Attempt{
				{Index: 0, Score: Score{Total: 1, Skipped: 1}},
				{Index: 1, Score: Score{Total: 9}},
			},
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Select(tt.attempts); got != tt.want {
				t.Errorf("Select = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLegs(t *testing.T) {
	tests := []struct {
		name string
		b    geo.Point
		want []leg
	}{
		{"east", geo.Pt(100, 0), []leg{{geo.E, 100}}},
		{"diagonal", geo.Pt(-100, -100), []leg{{geo.SW, 100 * math.Sqrt2}}},
		{"steep", geo.Pt(10, 100), []leg{{geo.N, 90}, {geo.NE, 10 * math.Sqrt2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := legs(geo.Pt(0, 0), tt.b)
			if len(got) != len(tt.want) {
				t.Fatalf("legs = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i].dir != tt.want[i].dir || math.Abs(got[i].len-tt.want[i].len) > 1e-6 {
					t.Errorf("leg %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBaselineChargesNonOctilinearSegments(t *testing.T) {
	_, d := straightDrawing(t)
	pens := penalty.Uniform(1)
	base := StraightLineBaseline(d, Options{Penalties: pens})
	// a - b deviates from horizontal, so the baseline needs two legs.
	if base.Bend != pens.P135 {
		t.Errorf("baseline Bend = %v, want %v", base.Bend, pens.P135)
	}
	if base.Move != 0 {
		t.Errorf("baseline Move = %v, want 0", base.Move)
	}
}

func squareComb(t *testing.T) *combgraph.Graph {
	t.Helper()
	lg := linegraph.New()
	for _, n := range []linegraph.Node{
		{ID: "a", Pos: geo.Pt(0, 0)},
		{ID: "b", Pos: geo.Pt(300, 0)},
		{ID: "c", Pos: geo.Pt(300, 300)},
		{ID: "d", Pos: geo.Pt(0, 300)},
	} {
		if err := lg.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	for _, e := range [][3]string{{"a", "b", "1"}, {"b", "c", "1"}, {"c", "d", "2"}, {"d", "a", "2"}} {
		if err := lg.AddEdge(linegraph.Edge{From: e[0], To: e[1], Lines: []linegraph.Line{{ID: e[2]}}}); err != nil {
			t.Fatal(err)
		}
	}
	comb, err := combgraph.Build(lg, combgraph.Options{Deg2Heur: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(comb.Nodes) != 2 || len(comb.Edges) != 2 {
		t.Fatalf("comb graph has %d nodes, %d edges, want 2, 2", len(comb.Nodes), len(comb.Edges))
	}
	return comb
}

func TestBaselineParallelEdgesIsFinite(t *testing.T) {
	comb := squareComb(t)
	base, err := basegraph.Build(basegraph.Spec{
		Type: basegraph.OctiGrid,
		Cell: 100,
		BBox: geo.BBoxOf(geo.Pt(0, 0), geo.Pt(300, 300)),
	})
	if err != nil {
		t.Fatal(err)
	}
	pens := penalty.Default()
	s := StraightLineBaseline(route.NewDrawing(comb, base), Options{Penalties: pens})
	if !s.Finite() {
		t.Fatalf("baseline = %+v, want finite", s)
	}
	// Both edges leave a and c along NE and overlap: each station pays the
	// sharpest bend.
	if want := 2 * pens.P45; math.Abs(s.Bend-want) > 1e-9 {
		t.Errorf("baseline Bend = %v, want %v", s.Bend, want)
	}
	if want := 2 * 3 * (1 + pens.DiagonalPen); math.Abs(s.Hop-want) > 1e-9 {
		t.Errorf("baseline Hop = %v, want %v", s.Hop, want)
	}
}

func TestBaselineCountsDiagonalHops(t *testing.T) {
	lg := linegraph.New()
	_ = lg.AddNode(linegraph.Node{ID: "a", Pos: geo.Pt(0, 0)})
	_ = lg.AddNode(linegraph.Node{ID: "b", Pos: geo.Pt(300, 300)})
	if err := lg.AddEdge(linegraph.Edge{From: "a", To: "b", Lines: []linegraph.Line{{ID: "1"}}}); err != nil {
		t.Fatal(err)
	}
	comb, err := combgraph.Build(lg, combgraph.Options{})
	if err != nil {
		t.Fatal(err)
	}
	base, err := basegraph.Build(basegraph.Spec{
		Type: basegraph.OctiGrid,
		Cell: 100,
		BBox: geo.BBoxOf(geo.Pt(0, 0), geo.Pt(300, 300)),
	})
	if err != nil {
		t.Fatal(err)
	}
	r := route.NewRouter(base, comb, route.Options{Penalties: penalty.Default()})
	d := route.NewDrawing(comb, base)
	var nodes []int
	for x := 0.0; x <= 300; x += 100 {
		nodes = append(nodes, base.Candidates(geo.Pt(x, x), 0)[0].Node)
	}
	if err := r.Place(d, 0, 0, nodes); err != nil {
		t.Fatal(err)
	}

	opts := Options{Penalties: penalty.Default()}
	got, baseline := Compute(d, opts), StraightLineBaseline(d, opts)
	if math.Abs(got.Total-baseline.Total) > 1e-9 {
		t.Errorf("exact diagonal scores %v, baseline %v, want equal", got.Total, baseline.Total)
	}
}

// sharedDrawing routes two parallel comb edges a - b on a 2x2 ortholinear
// lattice whose top edge is blocked, so the second edge can only share the
// first one's lattice edge.
func sharedDrawing(t *testing.T) *route.Drawing {
	t.Helper()
	lg := linegraph.New()
	for _, n := range []linegraph.Node{
		{ID: "a", Pos: geo.Pt(0, 0)},
		{ID: "x", Pos: geo.Pt(50, -30)},
		{ID: "y", Pos: geo.Pt(50, 30)},
		{ID: "b", Pos: geo.Pt(100, 0)},
	} {
		if err := lg.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	for _, e := range [][3]string{{"a", "x", "1"}, {"x", "b", "1"}, {"a", "y", "2"}, {"y", "b", "2"}} {
		if err := lg.AddEdge(linegraph.Edge{From: e[0], To: e[1], Lines: []linegraph.Line{{ID: e[2]}}}); err != nil {
			t.Fatal(err)
		}
	}
	comb, err := combgraph.Build(lg, combgraph.Options{Deg2Heur: true})
	if err != nil {
		t.Fatal(err)
	}
	base, err := basegraph.Build(basegraph.Spec{
		Type: basegraph.Grid,
		Cell: 100,
		BBox: geo.BBoxOf(geo.Pt(0, 0), geo.Pt(100, 100)),
	})
	if err != nil {
		t.Fatal(err)
	}
	obstacle := geo.Polygon{Outer: []geo.Point{{X: 40, Y: 90}, {X: 60, Y: 90}, {X: 60, Y: 110}, {X: 40, Y: 110}}}
	base.ApplyObstacles([]geo.Polygon{obstacle})

	r := route.NewRouter(base, comb, route.Options{Penalties: penalty.Default(), RetryOnError: true})
	d, err := r.Draw(context.Background(), []int{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if d.Routed() != 2 || !d.Paths[1].Relaxed {
		t.Fatalf("routed = %d, relaxed = %v, want 2 and a relaxed second path", d.Routed(), d.Paths[1].Relaxed)
	}
	return d
}

func TestComputeRelaxedStationIsFinite(t *testing.T) {
	d := sharedDrawing(t)
	pens := penalty.Default()
	s := Compute(d, Options{Penalties: pens})
	if !s.Finite() {
		t.Fatalf("score = %+v, want finite", s)
	}
	// Both stations send their two paths through the same port.
	if want := 2 * pens.Reversal(); math.Abs(s.Bend-want) > 1e-9 {
		t.Errorf("Bend = %v, want %v", s.Bend, want)
	}
	if s.Crossing < pens.CrossPen {
		t.Errorf("Crossing = %v, want at least %v for the shared edge", s.Crossing, pens.CrossPen)
	}
}

func TestScoreFinite(t *testing.T) {
	tests := []struct {
		s    Score
		want bool
	}{
		{Score{Total: 3, Hop: 3}, true},
		{Score{Total: math.Inf(1), Bend: math.Inf(1)}, false},
		{Score{Density: math.NaN()}, false},
	}
	for _, tt := range tests {
		if got := tt.s.Finite(); got != tt.want {
			t.Errorf("Finite(%+v) = %v, want %v", tt.s, got, tt.want)
		}
	}
}
