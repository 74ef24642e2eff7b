// Package ilp embeds a comb graph exactly by integer linear programming.
//
// The model is handed to an external solver ([CBC] or [Gurobi]) through
// the narrow [Solver] interface. Solutions are cached by a fingerprint of
// the model, so repeated runs on the same input skip the solver.
package ilp

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/octi/pkg/cache"
	"github.com/matzehuels/octi/pkg/errors"
	"github.com/matzehuels/octi/pkg/observability"
	"github.com/matzehuels/octi/pkg/route"
	"github.com/matzehuels/octi/pkg/score"
)

// Default option values.
const (
	DefaultTimeLimit = 60 * time.Second

	// timeoutGrace is added to the solver's own time limit before the
	// process is killed.
	timeoutGrace = 10 * time.Second
)

// Options configures an Optimizer.
type Options struct {
	Solver Solver

	// TimeLimit bounds one solver call.
	TimeLimit time.Duration

	Cache cache.Cache
	Keyer cache.Keyer

	// CacheThreshold is the largest model size, in variables plus
	// constraints, whose solution is cached. Zero caches every size.
	CacheThreshold int

	// LPPath, when set, receives the model in LP format. NoSolve stops
	// after writing it.
	LPPath  string
	NoSolve bool

	Score  score.Options
	Logger *log.Logger
}

// Result describes one exact optimization.
type Result struct {
	Score       score.Score
	Status      Status
	Fingerprint string
	Vars        int
	Constraints int

	// Cached is set when the solution came from the cache.
	Cached bool

	// Solved is false when the solver was not run.
	Solved bool
}

// Optimizer runs exact optimizations. It is safe for concurrent use;
// identical models solved at the same time share one solver call.
type Optimizer struct {
	opts    Options
	flight  singleflight.Group
	noCache atomic.Bool
}

// New returns an optimizer.
func New(opts Options) *Optimizer {
	if opts.Cache == nil {
		opts.Cache = cache.NewNullCache()
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	if opts.TimeLimit <= 0 {
		opts.TimeLimit = DefaultTimeLimit
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Optimizer{opts: opts}
}

type flightResult struct {
	sol    *Solution
	cached bool
}

// Optimize formulates the embedding of r's comb graph, solves it and, if
// the solution scores no worse than d, replaces d with it. d serves as the
// warm start.
func (o *Optimizer) Optimize(ctx context.Context, r *route.Router, d *route.Drawing) (Result, error) {
	logger := o.opts.Logger
	res := Result{Score: score.Compute(d, o.opts.Score)}

	p, err := Formulate(r)
	if err != nil {
		return res, err
	}
	m := p.Model
	res.Vars, res.Constraints = len(m.Vars), len(m.Constrs)

	if o.opts.LPPath != "" {
		if err := writeLPFile(o.opts.LPPath, m); err != nil {
			return res, errors.Wrap(errors.ErrCodeInvalidPath, err, "write LP file")
		}
		logger.Info("wrote ILP", "path", o.opts.LPPath, "vars", res.Vars, "constraints", res.Constraints)
	}
	if o.opts.NoSolve {
		return res, nil
	}

	start, err := Encode(p, d)
	if err != nil {
		logger.Debug("no warm start", "reason", err)
		start = nil
	}

	fp, err := cache.Fingerprint(m)
	if err != nil {
		return res, errors.Wrap(errors.ErrCodeInternal, err, "fingerprint model")
	}
	res.Fingerprint = fp
	key := o.opts.Keyer.SolutionKey(fp)

	v, err, shared := o.flight.Do(key, func() (any, error) {
		return o.solve(ctx, key, m, start)
	})
	if err != nil {
		return res, err
	}
	fr := v.(flightResult)
	sol := fr.sol
	res.Status, res.Cached, res.Solved = sol.Status, fr.cached, true
	if shared {
		logger.Debug("shared solver result", "fingerprint", fp)
	}

	switch {
	case sol.Status == StatusInfeasible:
		return res, errors.New(errors.ErrCodeInfeasible, "model %s is infeasible", fp)
	case !sol.HasIncumbent():
		return res, errors.New(errors.ErrCodeSolverTimeout, "solver found no solution within %s", o.opts.TimeLimit)
	}

	nd := route.NewDrawing(d.Comb, d.Base)
	if err := Decode(p, m.Values(sol.Values), r, nd); err != nil {
		return res, err
	}
	ns := score.Compute(nd, o.opts.Score)
	if ns.Less(res.Score) || ns == res.Score || res.Score.Skipped > 0 {
		d.Restore(nd)
		res.Score = ns
	} else {
		logger.Debug("kept warm start", "ilp", ns.Total, "start", res.Score.Total)
	}
	return res, nil
}

func (o *Optimizer) solve(ctx context.Context, key string, m *Model, start []float64) (flightResult, error) {
	if sol, ok := o.lookup(ctx, key); ok {
		return flightResult{sol: sol, cached: true}, nil
	}

	tctx, cancel := context.WithTimeout(ctx, o.opts.TimeLimit+timeoutGrace)
	defer cancel()

	name := o.opts.Solver.Name()
	observability.Solver().OnSolveStart(ctx, name, len(m.Vars), len(m.Constrs))
	began := time.Now()
	sol, err := o.opts.Solver.Solve(tctx, m, start)
	elapsed := time.Since(began)

	switch {
	case err != nil && ctx.Err() != nil:
		err = errors.Wrap(errors.ErrCodeAborted, ctx.Err(), "solver interrupted")
	case err != nil && tctx.Err() != nil:
		sol, err = &Solution{Status: StatusTimeout}, nil
	case err != nil && !errors.IsSolverFailure(err):
		err = errors.Wrap(errors.ErrCodeSolver, err, "%s failed", name)
	}
	status := ""
	if sol != nil {
		status = sol.Status.String()
	}
	observability.Solver().OnSolveComplete(ctx, name, status, elapsed, err)
	if err != nil {
		return flightResult{}, err
	}
	o.opts.Logger.Info("solved ILP", "solver", name, "status", sol.Status, "objective", sol.Objective, "elapsed", elapsed.Round(time.Millisecond))

	if sol.Status == StatusOptimal && (o.opts.CacheThreshold <= 0 || m.Size() <= o.opts.CacheThreshold) {
		o.store(ctx, key, sol)
	}
	return flightResult{sol: sol}, nil
}

func (o *Optimizer) lookup(ctx context.Context, key string) (*Solution, bool) {
	if o.noCache.Load() {
		return nil, false
	}
	data, hit, err := o.opts.Cache.Get(ctx, key)
	if err != nil {
		o.disableCache(err)
		return nil, false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, "solution")
		return nil, false
	}
	var sol Solution
	if err := json.Unmarshal(data, &sol); err != nil {
		o.opts.Logger.Warn("discarding corrupt cached solution", "key", key, "err", err)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, "solution")
	return &sol, true
}

func (o *Optimizer) store(ctx context.Context, key string, sol *Solution) {
	if o.noCache.Load() {
		return
	}
	data, err := json.Marshal(sol)
	if err != nil {
		o.disableCache(err)
		return
	}
	if err := o.opts.Cache.Set(ctx, key, data, cache.TTLSolution); err != nil {
		o.disableCache(err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "solution", len(data))
}

func (o *Optimizer) disableCache(err error) {
	if o.noCache.CompareAndSwap(false, true) {
		o.opts.Logger.Warn("solution cache disabled", "err", errors.Wrap(errors.ErrCodeCache, err, "cache access"))
	}
}

func writeLPFile(path string, m *Model) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := m.WriteLP(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
