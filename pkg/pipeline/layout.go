package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/octi/pkg/basegraph"
	"github.com/matzehuels/octi/pkg/combgraph"
	"github.com/matzehuels/octi/pkg/errors"
	"github.com/matzehuels/octi/pkg/geo"
	"github.com/matzehuels/octi/pkg/linegraph"
	"github.com/matzehuels/octi/pkg/observability"
	"github.com/matzehuels/octi/pkg/optim/heur"
	"github.com/matzehuels/octi/pkg/optim/ilp"
	"github.com/matzehuels/octi/pkg/route"
	"github.com/matzehuels/octi/pkg/score"
	"github.com/matzehuels/octi/pkg/stats"
)

// attempt is one point of a component's attempt grid.
type attempt struct {
	index int
	order route.OrderMethod
	hanan int
	run   int
}

func (a attempt) label() string {
	var b strings.Builder
	b.WriteString(a.order.String())
	if a.hanan > 0 {
		fmt.Fprintf(&b, "/hanan=%d", a.hanan)
	}
	fmt.Fprintf(&b, "/run=%d", a.run)
	return b.String()
}

// plan expands the configured attempt axes. They compose multiplicatively:
// every order method is tried with every Hanan iteration count and every
// optimization run.
func plan(opts Options) []attempt {
	hanans := []int{0}
	if opts.BaseGraphType == basegraph.OctiHananGrid {
		hanans = hanans[:0]
		for i := 1; i <= opts.HananIters; i++ {
			hanans = append(hanans, i)
		}
	}
	var out []attempt
	for _, m := range opts.EdgeOrderMethod.Expand() {
		for _, h := range hanans {
			for run := range opts.OptimRuns {
				out = append(out, attempt{index: len(out), order: m, hanan: h, run: run})
			}
		}
	}
	return out
}

// component is one connected component of the input.
type component struct {
	index  int
	input  *linegraph.Graph
	comb   *combgraph.Graph
	points []geo.Point
	center *geo.Point
}

func newComponent(index int, in *linegraph.Graph, opts Options) (*component, error) {
	comb, err := combgraph.Build(in, combgraph.Options{Deg2Heur: opts.Deg2Heur})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidGraph, err, "contract component %d", index)
	}
	c := &component{index: index, input: in, comb: comb}
	for _, n := range in.Nodes() {
		c.points = append(c.points, n.Pos)
	}
	if opts.BaseGraphType == basegraph.PseudoOrthoRadial {
		c.center = centralNode(comb)
	}
	return c, nil
}

// centralNode returns the position of the highest-degree comb node, ties
// broken by distance to the centroid.
func centralNode(g *combgraph.Graph) *geo.Point {
	if len(g.Nodes) == 0 {
		return nil
	}
	var sum geo.Point
	for _, n := range g.Nodes {
		sum = sum.Add(n.Pos())
	}
	centroid := sum.Scale(1 / float64(len(g.Nodes)))

	best := g.Nodes[0]
	for _, n := range g.Nodes[1:] {
		switch {
		case n.Degree() > best.Degree():
			best = n
		case n.Degree() == best.Degree() && n.Pos().Dist(centroid) < best.Pos().Dist(centroid):
			best = n
		}
	}
	p := best.Pos()
	return &p
}

// outcome is the result of one attempt.
type outcome struct {
	attempt

	router   *route.Router
	drawing  *route.Drawing
	score    score.Score
	baseline score.Score

	cell       float64
	tries      int
	iterations int
	moves      int
	ilpStatus  string
	ilpCached  bool
	fallback   bool

	duration time.Duration
	err      error
}

// env carries the per-run state shared by all attempts.
type env struct {
	runID     string
	cell      float64
	obstacles []geo.Polygon
	exact     *ilp.Optimizer
	lpOpts    *ilp.Options
	ncomp     int
}

// lpOptimizer returns the optimizer that also writes the model of the
// first attempt of component comp to disk.
func (e *env) lpOptimizer(comp int) *ilp.Optimizer {
	o := *e.lpOpts
	if e.ncomp > 1 {
		ext := filepath.Ext(o.LPPath)
		o.LPPath = fmt.Sprintf("%s.%d%s", strings.TrimSuffix(o.LPPath, ext), comp, ext)
	}
	return ilp.New(o)
}

// embed runs every attempt for c and returns all outcomes together with the
// position of the selected one.
func (r *Runner) embed(ctx context.Context, c *component, e *env, opts Options) ([]*outcome, int, error) {
	attempts := plan(opts)
	outs := make([]*outcome, len(attempts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, opts.Threads))
	for i, a := range attempts {
		g.Go(func() error {
			observability.Pipeline().OnAttemptStart(gctx, a.index, a.label())
			began := time.Now()
			o := r.runAttempt(gctx, c, a, e, opts)
			o.duration = time.Since(began)
			outs[i] = o
			observability.Pipeline().OnAttemptComplete(gctx, a.index, o.score.Total, o.duration, o.err)
			if errors.Is(o.err, errors.ErrCodeAborted) {
				return o.err
			}
			if o.err != nil {
				opts.Logger.Warn("attempt failed", "component", c.index, "attempt", a.label(), "err", o.err)
				return nil
			}
			opts.Logger.Debug("attempt done", "component", c.index, "attempt", a.label(),
				"score", o.score.Total, "cell", o.cell, "elapsed", o.duration.Round(time.Millisecond))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outs, -1, err
	}

	var cands []score.Attempt
	for _, o := range outs {
		if o.err == nil {
			cands = append(cands, score.Attempt{Index: o.index, Score: o.score, Drawing: o.drawing})
		}
	}
	if len(cands) == 0 {
		return outs, -1, outs[0].err
	}
	best := cands[score.Select(cands)].Index
	observability.Pipeline().OnSelect(ctx, c.index, best, outs[best].score.Total)
	return outs, best, nil
}

// runAttempt draws and optimizes one attempt, rebuilding the lattice on a
// finer grid when routing fails and retries are enabled.
func (r *Runner) runAttempt(ctx context.Context, c *component, a attempt, e *env, opts Options) *outcome {
	o := &outcome{attempt: a}
	cell := e.cell
	for try := 0; ; try++ {
		o.cell, o.tries = cell, try+1
		err := r.draw(ctx, c, o, e, opts)
		if err == nil {
			break
		}
		if !opts.RetryOnError || try == gridRetries || !errors.Is(err, errors.ErrCodeUnroutable) {
			o.err = err
			return o
		}
		opts.Logger.Debug("retrying on finer grid", "component", c.index, "attempt", a.label(), "cell", cell*gridShrink, "err", err)
		cell *= gridShrink
	}
	o.err = r.optimize(ctx, c, o, e, opts)
	return o
}

// draw builds the lattice for o and routes the initial drawing.
func (r *Runner) draw(ctx context.Context, c *component, o *outcome, e *env, opts Options) error {
	base, err := basegraph.Build(basegraph.Spec{
		Type:       opts.BaseGraphType,
		Cell:       o.cell,
		BBox:       c.input.BBox(),
		Border:     opts.BorderRad / 100 * o.cell,
		Points:     c.points,
		Center:     c.center,
		HananIters: o.hanan,
	})
	if err != nil {
		if errors.GetCode(err) == "" {
			err = errors.Wrap(errors.ErrCodeInvalidGraph, err, "component %d", c.index)
		}
		return err
	}
	if len(e.obstacles) > 0 {
		closed, blocked := base.ApplyObstacles(e.obstacles)
		opts.Logger.Debug("applied obstacles", "component", c.index, "closed", closed, "blocked", blocked)
	}

	o.router = route.NewRouter(base, c.comb, route.Options{
		Penalties:    opts.Pens,
		MaxGrDist:    opts.MaxGrDist,
		EnfGeoPen:    opts.EnfGeoPen,
		SkipOnError:  opts.SkipOnError,
		RetryOnError: opts.RetryOnError,
	})
	o.drawing, err = o.router.Draw(ctx, route.Order(c.comb, o.order))
	return err
}

// optimize refines o's drawing. Exact optimization falls back to the local
// search when the solver fails.
func (r *Runner) optimize(ctx context.Context, c *component, o *outcome, e *env, opts Options) error {
	sopts := scoreOptions(opts)
	o.baseline = score.StraightLineBaseline(o.drawing, sopts)

	if opts.OptimMode == OptimILP {
		opt := e.exact
		if o.index == 0 && e.lpOpts != nil {
			opt = e.lpOptimizer(c.index)
		}
		res, err := opt.Optimize(ctx, o.router, o.drawing)
		switch {
		case err == nil:
			o.score = res.Score
			o.ilpCached = res.Cached
			if res.Solved {
				o.ilpStatus = res.Status.String()
			}
			return nil
		case errors.IsSolverFailure(err):
			opts.Logger.Warn("exact optimization failed, using local search", "component", c.index, "attempt", o.label(), "err", err)
			o.ilpStatus = string(errors.GetCode(err))
			o.fallback = true
		default:
			return err
		}
	}

	rng := rand.New(rand.NewPCG(opts.Seed+uint64(o.index), uint64(c.index)))
	res, err := heur.Optimize(ctx, o.router, o.drawing, heur.Options{
		Iters:      opts.HeurLocSearchIters,
		Restricted: opts.RestrLocSearch,
		AbortAfter: opts.AbortAfter,
		Rand:       rng,
		Score:      sopts,
		Logger:     opts.Logger,
	})
	if err != nil {
		return err
	}
	o.score = res.Score
	o.iterations, o.moves = res.Iterations, res.Moves
	return nil
}

func scoreOptions(opts Options) score.Options {
	return score.Options{Penalties: opts.Pens, EnfGeoPen: opts.EnfGeoPen}
}

// records converts the outcomes of a component into stats records.
func records(e *env, c *component, outs []*outcome, best int, opts Options) []stats.Record {
	now := time.Now().UTC()
	recs := make([]stats.Record, 0, len(outs))
	for _, o := range outs {
		if o == nil {
			continue
		}
		rec := stats.Record{
			RunID:      e.runID,
			Time:       now,
			Component:  c.index,
			Attempt:    o.index,
			Label:      o.label(),
			GridType:   opts.BaseGraphType.String(),
			Cell:       o.cell,
			GridTries:  o.tries,
			Order:      o.order.String(),
			HananIters: o.hanan,
			Run:        o.run,
			OptimMode:  opts.OptimMode,
			CombNodes:  len(c.comb.Nodes),
			CombEdges:  len(c.comb.Edges),
			Score:      stats.Finite(o.score.Total),
			Baseline:   stats.Finite(o.baseline.Total),
			Skipped:    o.score.Skipped,
			Iterations: o.iterations,
			Moves:      o.moves,
			ILPStatus:  o.ilpStatus,
			ILPCached:  o.ilpCached,
			Fallback:   o.fallback,
			Selected:   o.index == best,
			DurationMS: float64(o.duration.Microseconds()) / 1000,
		}
		if o.router != nil {
			rec.LatticeNodes = o.router.Base().NumNodes()
			rec.LatticeEdges = o.router.Base().NumEdges()
		}
		if o.err != nil {
			rec.Error = o.err.Error()
		}
		recs = append(recs, rec)
	}
	return recs
}
