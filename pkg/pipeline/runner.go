package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/octi/pkg/cache"
	"github.com/matzehuels/octi/pkg/errors"
	"github.com/matzehuels/octi/pkg/linegraph"
	"github.com/matzehuels/octi/pkg/optim/ilp"
	"github.com/matzehuels/octi/pkg/route"
	"github.com/matzehuels/octi/pkg/score"
	"github.com/matzehuels/octi/pkg/stats"
)

// Result is the outcome of an embedding run.
type Result struct {
	RunID string `json:"runId,omitempty"`

	// Graph is the embedded line graph, or the lattice in grid graph mode.
	Graph *linegraph.Graph `json:"-"`

	Score    score.Score `json:"score"`
	Baseline score.Score `json:"baseline"`

	// Degraded is set when edges were skipped.
	Degraded bool `json:"degraded,omitempty"`

	Components []ComponentResult `json:"components"`
	Stats      Stats             `json:"stats"`

	// Cached is set when the whole layout came from the cache.
	Cached bool `json:"cached,omitempty"`
}

// ComponentResult describes the embedding of one connected component.
type ComponentResult struct {
	Index     int         `json:"index"`
	Nodes     int         `json:"nodes"`
	Edges     int         `json:"edges"`
	CombNodes int         `json:"combNodes"`
	CombEdges int         `json:"combEdges"`
	Attempts  int         `json:"attempts"`
	Failed    int         `json:"failed"`
	Selected  string      `json:"selected"`
	Cell      float64     `json:"cell"`
	Score     score.Score `json:"score"`
	Baseline  score.Score `json:"baseline"`

	// Drawing is the selected drawing. It is not kept for cached results.
	Drawing *route.Drawing `json:"-"`
}

// Stats holds run statistics.
type Stats struct {
	Attempts int           `json:"attempts"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Runner executes embedding runs with caching.
//
// The Runner holds no per-run state: the cache serves both ILP solutions and
// whole layouts, and several goroutines may call Execute concurrently with
// different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// Stats, when set, receives attempt records of runs with WriteStats.
	// Otherwise a sink is opened per run from the options.
	Stats stats.Sink
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute embeds in. Configuration errors are returned before any work is
// done; a component whose attempts all fail fails the run with its first
// attempt's error.
func (r *Runner) Execute(ctx context.Context, in *linegraph.Graph, opts Options) (*Result, error) {
	res, _, err := r.ExecuteWithCacheInfo(ctx, in, opts)
	return res, err
}

// ExecuteWithCacheInfo is Execute that also reports whether the layout was
// served from the cache.
func (r *Runner) ExecuteWithCacheInfo(ctx context.Context, in *linegraph.Graph, opts Options) (*Result, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}

	key := ""
	if opts.cacheable() {
		var buf bytes.Buffer
		if err := linegraph.Write(&buf, in); err != nil {
			return nil, false, errors.Wrap(errors.ErrCodeInvalidGraph, err, "encode input")
		}
		key = r.Keyer.LayoutKey(cache.Hash(buf.Bytes()), opts.LayoutKeyOpts())
		if res, ok := r.cachedLayout(ctx, key); ok {
			opts.Logger.Info("layout cache hit", "score", res.Score.Total)
			return res, true, nil
		}
	}

	res, err := r.run(ctx, in, opts)
	if err != nil {
		return nil, false, err
	}
	if key != "" {
		r.storeLayout(ctx, key, res)
	}
	return res, false, nil
}

func (r *Runner) run(ctx context.Context, in *linegraph.Graph, opts Options) (*Result, error) {
	began := time.Now()
	e := &env{runID: stats.NewRunID()}

	size, relative, err := errors.ParseGridSize(opts.GridSize)
	if err != nil {
		return nil, err
	}
	e.cell = size
	if relative {
		avg := in.AvgEdgeLength()
		if avg <= 0 {
			return nil, errors.New(errors.ErrCodeInvalidGraph, "relative grid size %s needs edges of positive length", opts.GridSize)
		}
		e.cell = size * avg
	}
	if e.obstacles, err = loadObstacles(opts); err != nil {
		return nil, err
	}
	if err := r.setupExact(e, opts); err != nil {
		return nil, err
	}

	parts := in.Components()
	e.ncomp = len(parts)
	opts.Logger.Info("embedding", "nodes", in.NodeCount(), "edges", in.EdgeCount(),
		"components", len(parts), "cell", e.cell, "grid", opts.BaseGraphType)

	res := &Result{RunID: e.runID}
	var (
		drawings []*route.Drawing
		recs     []stats.Record
	)
	for i, part := range parts {
		c, err := newComponent(i, part, opts)
		if err != nil {
			return nil, err
		}
		outs, best, err := r.embed(ctx, c, e, opts)
		recs = append(recs, records(e, c, outs, best, opts)...)
		res.Stats.Attempts += len(outs)
		if err != nil {
			r.writeStats(ctx, recs, opts)
			return nil, fmt.Errorf("component %d: %w", i, err)
		}

		o := outs[best]
		cr := ComponentResult{
			Index:     i,
			Nodes:     part.NodeCount(),
			Edges:     part.EdgeCount(),
			CombNodes: len(c.comb.Nodes),
			CombEdges: len(c.comb.Edges),
			Attempts:  len(outs),
			Selected:  o.label(),
			Cell:      o.cell,
			Score:     o.score,
			Baseline:  o.baseline,
			Drawing:   o.drawing,
		}
		for _, o := range outs {
			if o == nil || o.err != nil {
				cr.Failed++
			}
		}
		res.Stats.Failed += cr.Failed
		res.Score = addScores(res.Score, o.score)
		res.Baseline = addScores(res.Baseline, o.baseline)
		res.Degraded = res.Degraded || o.drawing.Degraded()
		res.Components = append(res.Components, cr)
		drawings = append(drawings, o.drawing)

		opts.Logger.Info("embedded component", "component", i, "selected", cr.Selected,
			"score", o.score.Total, "baseline", o.baseline.Total, "failed", cr.Failed)
	}

	if res.Graph, err = Render(drawings, opts); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "assemble output")
	}
	setProps(res.Graph, res)
	res.Stats.Duration = time.Since(began)
	r.writeStats(ctx, recs, opts)

	opts.Logger.Info("embedding done", "score", res.Score.Total, "attempts", res.Stats.Attempts,
		"failed", res.Stats.Failed, "duration", res.Stats.Duration.Round(time.Millisecond))
	return res, nil
}

// setupExact prepares the exact optimizer shared by all attempts.
func (r *Runner) setupExact(e *env, opts Options) error {
	if opts.OptimMode != OptimILP {
		return nil
	}
	solver := opts.Solver
	if solver == nil {
		var err error
		solver, err = ilp.NewSolver(opts.ILPSolver, ilp.SolverOptions{
			TimeLimit: opts.TimeLimit(),
			Threads:   opts.ILPNumThreads,
			Logger:    opts.Logger,
		})
		if err != nil {
			return err
		}
	}
	xo := ilp.Options{
		Solver:         solver,
		TimeLimit:      opts.TimeLimit(),
		Cache:          r.Cache,
		Keyer:          r.Keyer,
		CacheThreshold: opts.ILPCacheThreshold,
		NoSolve:        opts.ILPNoSolve,
		Score:          scoreOptions(opts),
		Logger:         opts.Logger,
	}
	e.exact = ilp.New(xo)
	if opts.ILPPath != "" {
		lp := xo
		lp.LPPath = opts.ILPPath
		e.lpOpts = &lp
	}
	return nil
}

// cachedEntry is the layout cache payload.
type cachedEntry struct {
	Result *Result         `json:"result"`
	Graph  json.RawMessage `json:"graph"`
}

func (r *Runner) cachedLayout(ctx context.Context, key string) (*Result, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil || !hit {
		return nil, false
	}
	var ce cachedEntry
	if err := json.Unmarshal(data, &ce); err != nil || ce.Result == nil {
		return nil, false
	}
	g, err := linegraph.Read(bytes.NewReader(ce.Graph))
	if err != nil {
		return nil, false
	}
	ce.Result.Graph = g
	ce.Result.Cached = true
	return ce.Result, true
}

func (r *Runner) storeLayout(ctx context.Context, key string, res *Result) {
	if !res.Score.Finite() || !res.Baseline.Finite() {
		r.Logger.Warn("layout not cached", "reason", "score is not finite")
		return
	}
	var buf bytes.Buffer
	if err := linegraph.Write(&buf, res.Graph); err != nil {
		r.Logger.Warn("layout not cached", "err", err)
		return
	}
	data, err := json.Marshal(cachedEntry{Result: res, Graph: buf.Bytes()})
	if err != nil {
		r.Logger.Warn("layout not cached", "err", err)
		return
	}
	if err := r.Cache.Set(ctx, key, data, cache.TTLLayout); err != nil {
		r.Logger.Warn("layout not cached", "err", errors.Wrap(errors.ErrCodeCache, err, "store layout"))
	}
}

// writeStats hands recs to the configured sink. Failures are logged only.
func (r *Runner) writeStats(ctx context.Context, recs []stats.Record, opts Options) {
	if !opts.WriteStats || len(recs) == 0 {
		return
	}
	sink := r.Stats
	if sink == nil {
		var err error
		if sink, err = openSink(ctx, opts); err != nil {
			opts.Logger.Warn("stats not written", "err", err)
			return
		}
		defer sink.Close()
	}
	if err := sink.Write(ctx, recs); err != nil {
		opts.Logger.Warn("stats not written", "err", err)
		return
	}
	opts.Logger.Debug("wrote stats", "records", len(recs))
}

func openSink(ctx context.Context, opts Options) (stats.Sink, error) {
	if opts.StatsMongoURI != "" {
		return stats.NewMongoSink(ctx, opts.StatsMongoURI)
	}
	return stats.NewJSONLSink(opts.StatsPath), nil
}

// Close releases resources held by the runner.
func (r *Runner) Close() error {
	var err error
	if r.Stats != nil {
		err = r.Stats.Close()
	}
	if r.Cache != nil {
		if cerr := r.Cache.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
