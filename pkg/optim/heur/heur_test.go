package heur

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/matzehuels/octi/pkg/basegraph"
	"github.com/matzehuels/octi/pkg/combgraph"
	"github.com/matzehuels/octi/pkg/errors"
	"github.com/matzehuels/octi/pkg/geo"
	"github.com/matzehuels/octi/pkg/linegraph"
	"github.com/matzehuels/octi/pkg/penalty"
	"github.com/matzehuels/octi/pkg/route"
	"github.com/matzehuels/octi/pkg/score"
)

func cycleInput(t *testing.T) *linegraph.Graph {
	t.Helper()
	lg := linegraph.New()
	for _, n := range []linegraph.Node{
		{ID: "a", Pos: geo.Pt(0, 0)},
		{ID: "b", Pos: geo.Pt(100, 0)},
		{ID: "c", Pos: geo.Pt(110, 100)},
		{ID: "d", Pos: geo.Pt(0, 90)},
	} {
		if err := lg.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	for _, e := range [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}, {"d", "a"}} {
		if err := lg.AddEdge(linegraph.Edge{From: e[0], To: e[1], Lines: []linegraph.Line{{ID: "1"}}}); err != nil {
			t.Fatal(err)
		}
	}
	return lg
}

func setup(t *testing.T, lg *linegraph.Graph, pens penalty.Penalties) (*route.Router, *route.Drawing) {
	t.Helper()
	comb, err := combgraph.Build(lg, combgraph.Options{})
	if err != nil {
		t.Fatal(err)
	}
	var pts []geo.Point
	for _, n := range lg.Nodes() {
		pts = append(pts, n.Pos)
	}
	base, err := basegraph.Build(basegraph.Spec{
		Type:   basegraph.OctiGrid,
		Cell:   100,
		BBox:   geo.BBoxOf(pts...),
		Border: 100,
		Points: pts,
	})
	if err != nil {
		t.Fatal(err)
	}
	r := route.NewRouter(base, comb, route.Options{Penalties: pens, MaxGrDist: route.DefaultMaxGrDist})
	d, err := r.Draw(context.Background(), route.Order(comb, route.OrderNumLines))
	if err != nil {
		t.Fatal(err)
	}
	return r, d
}

// checkDisjoint verifies that no two comb edges share a lattice edge unless
// one of them was routed relaxed, and that the occupancy agrees with the
// paths.
func checkDisjoint(t *testing.T, d *route.Drawing) {
	t.Helper()
	users := make(map[int][]int)
	for e, p := range d.Paths {
		if p == nil {
			continue
		}
		for _, le := range p.Edges {
			users[le] = append(users[le], e)
		}
	}
	for le, es := range users {
		if got := d.Occ.Users(le); got != len(es) {
			t.Errorf("lattice edge %d: occupancy has %d users, paths %d", le, got, len(es))
		}
		if len(es) < 2 {
			continue
		}
		for _, e := range es {
			if !d.Paths[e].Relaxed {
				t.Errorf("lattice edge %d shared by comb edges %v", le, es)
				break
			}
		}
	}
}

func TestFourCycle(t *testing.T) {
	pens := penalty.Uniform(1)
	r, d := setup(t, cycleInput(t), pens)
	sopts := score.Options{Penalties: pens}

	res, err := Optimize(context.Background(), r, d, Options{
		Iters:      50,
		AbortAfter: -1,
		Rand:       rand.New(rand.NewPCG(42, 0)),
		Score:      sopts,
	})
	if err != nil {
		t.Fatal(err)
	}

	if d.Routed() != 4 || d.Degraded() {
		t.Fatalf("routed = %d, degraded = %v, want a closed cycle", d.Routed(), d.Degraded())
	}
	checkDisjoint(t, d)
	baseline := score.StraightLineBaseline(d, sopts)
	if res.Score.Total >= baseline.Total {
		t.Errorf("score = %v, want < straight-line baseline %v", res.Score.Total, baseline.Total)
	}
	if got := score.Compute(d, sopts); got != res.Score {
		t.Errorf("reported score %+v differs from drawing score %+v", res.Score, got)
	}

	out := d.Output()
	for _, e := range out.Edges() {
		from, _ := out.Node(e.From)
		to, _ := out.Node(e.To)
		if !e.Geom[0].Eq(from.Pos) || !e.Geom[len(e.Geom)-1].Eq(to.Pos) {
			t.Errorf("edge %s is not attached to its stations", e.ID)
		}
		for i := 1; i < len(e.Geom); i++ {
			p, q := e.Geom[i-1], e.Geom[i]
			if geo.BearingError(p, q, geo.NearestDir(p, q)) > 1e-9 {
				t.Errorf("edge %s segment %v-%v is not octilinear", e.ID, p, q)
			}
		}
	}
}

func TestOptimizeImprovesDetour(t *testing.T) {
	lg := linegraph.New()
	_ = lg.AddNode(linegraph.Node{ID: "a", Pos: geo.Pt(0, 0)})
	_ = lg.AddNode(linegraph.Node{ID: "b", Pos: geo.Pt(200, 0)})
	_ = lg.AddEdge(linegraph.Edge{From: "a", To: "b", Lines: []linegraph.Line{{ID: "1"}}})
	comb, err := combgraph.Build(lg, combgraph.Options{})
	if err != nil {
		t.Fatal(err)
	}
	base, err := basegraph.Build(basegraph.Spec{
		Type: basegraph.OctiGrid,
		Cell: 100,
		BBox: geo.BBoxOf(geo.Pt(0, 0), geo.Pt(200, 100)),
	})
	if err != nil {
		t.Fatal(err)
	}
	pens := penalty.Default()
	pens.NdMovePen = 10
	r := route.NewRouter(base, comb, route.Options{Penalties: pens, MaxGrDist: 1})
	d := route.NewDrawing(comb, base)
	node := func(x, y float64) int { return base.Candidates(geo.Pt(x, y), 0)[0].Node }
	if err := r.Place(d, 0, 0, []int{node(0, 0), node(100, 100), node(200, 0)}); err != nil {
		t.Fatal(err)
	}

	sopts := score.Options{Penalties: pens}
	before := score.Compute(d, sopts)
	res, err := Optimize(context.Background(), r, d, Options{Iters: 10, AbortAfter: -1, Score: sopts})
	if err != nil {
		t.Fatal(err)
	}
	if res.Moves == 0 || !(res.Score.Total < before.Total) {
		t.Errorf("Optimize = %+v, want an improvement over %v", res, before.Total)
	}
	if got := d.Paths[0].Len(); got != 2 {
		t.Errorf("path length = %d, want 2", got)
	}
}

func TestOptimizeAbortAfter(t *testing.T) {
	pens := penalty.Default()
	r, d := setup(t, cycleInput(t), pens)
	res, err := Optimize(context.Background(), r, d, Options{Iters: 50, AbortAfter: 2, Score: score.Options{Penalties: pens}})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Aborted || res.Iterations != 0 {
		t.Errorf("Optimize = %+v, want aborted without iterations", res)
	}
}

func TestOptimizeCancelled(t *testing.T) {
	pens := penalty.Default()
	r, d := setup(t, cycleInput(t), pens)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Optimize(ctx, r, d, Options{Iters: 50, AbortAfter: -1, Score: score.Options{Penalties: pens}})
	if !errors.Is(err, errors.ErrCodeAborted) {
		t.Errorf("Optimize error = %v, want ABORTED", err)
	}
}

func TestOptimizeDeterministic(t *testing.T) {
	pens := penalty.Default()
	run := func() score.Score {
		r, d := setup(t, cycleInput(t), pens)
		res, err := Optimize(context.Background(), r, d, Options{
			Iters:      20,
			AbortAfter: -1,
			Rand:       rand.New(rand.NewPCG(7, 1)),
			Score:      score.Options{Penalties: pens},
		})
		if err != nil {
			t.Fatal(err)
		}
		return res.Score
	}
	if a, b := run(), run(); a != b {
		t.Errorf("runs differ: %+v vs %+v", a, b)
	}
}

func TestOptimizeRestricted(t *testing.T) {
	lg := linegraph.New()
	for _, n := range []linegraph.Node{
		{ID: "c", Pos: geo.Pt(200, 200)},
		{ID: "x", Pos: geo.Pt(0, 200)},
		{ID: "y", Pos: geo.Pt(400, 200)},
		{ID: "z", Pos: geo.Pt(200, 0)},
	} {
		if err := lg.AddNode(n); err != nil {
			t.Fatal(err)
		}
	}
	for _, leaf := range []string{"x", "y", "z"} {
		if err := lg.AddEdge(linegraph.Edge{From: "c", To: leaf, Lines: []linegraph.Line{{ID: "1"}}}); err != nil {
			t.Fatal(err)
		}
	}
	comb, err := combgraph.Build(lg, combgraph.Options{})
	if err != nil {
		t.Fatal(err)
	}
	base, err := basegraph.Build(basegraph.Spec{
		Type:   basegraph.OctiGrid,
		Cell:   100,
		BBox:   geo.BBoxOf(geo.Pt(0, 0), geo.Pt(400, 200)),
		Border: 100,
	})
	if err != nil {
		t.Fatal(err)
	}
	pens := penalty.Default()
	pens.DensityPen = 0
	r := route.NewRouter(base, comb, route.Options{Penalties: pens, MaxGrDist: route.DefaultMaxGrDist})

	// The hub starts one cell below its position.
	d := route.NewDrawing(comb, base)
	hub, _ := comb.NodeOf("c")
	d.Settle(hub.ID, base.Candidates(geo.Pt(200, 100), 0)[0].Node)
	for _, e := range route.Order(comb, route.OrderNumLines) {
		if err := r.Route(d, e, false); err != nil {
			t.Fatal(err)
		}
	}
	start := append([]int(nil), d.Settled...)

	sopts := score.Options{Penalties: pens}
	res, err := Optimize(context.Background(), r, d, Options{
		Iters:      1,
		Restricted: true,
		AbortAfter: -1,
		Rand:       rand.New(rand.NewPCG(3, 0)),
		Score:      sopts,
	})
	if err != nil {
		t.Fatal(err)
	}

	if d.Settled[hub.ID] != start[hub.ID] {
		t.Errorf("degree-3 hub moved from node %d to %d in a restricted search", start[hub.ID], d.Settled[hub.ID])
	}
	for c, n := range d.Settled {
		if dist := base.Node(n).Pos.Dist(base.Node(start[c]).Pos) / base.Cell; dist > 1+1e-9 {
			t.Errorf("comb node %d moved %v cells in one restricted round, want <= 1", c, dist)
		}
	}
	if d.Routed() != 3 {
		t.Errorf("routed = %d, want 3", d.Routed())
	}
	checkDisjoint(t, d)
	if got := score.Compute(d, sopts); got != res.Score {
		t.Errorf("reported score %+v differs from drawing score %+v", res.Score, got)
	}
}
