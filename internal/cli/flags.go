package cli

import (
	"encoding"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/octi/pkg/basegraph"
	"github.com/matzehuels/octi/pkg/pipeline"
	"github.com/matzehuels/octi/pkg/route"
)

// textFlag adapts a text-(un)marshalable option such as a grid type or an
// edge order method to a cobra flag value.
type textFlag struct {
	v interface {
		encoding.TextMarshaler
		encoding.TextUnmarshaler
	}
	typ string
}

func (f textFlag) String() string {
	b, _ := f.v.MarshalText()
	return string(b)
}

func (f textFlag) Set(s string) error { return f.v.UnmarshalText([]byte(s)) }

func (f textFlag) Type() string { return f.typ }

// bindOptions registers one flag per embedding option on cmd. Flags write
// straight into opts, so values decoded from a config file must be copied
// into opts before the changed flags are re-applied; see applyConfig.
func bindOptions(cmd *cobra.Command, opts *pipeline.Options) {
	f := cmd.Flags()

	// Lattice
	f.StringVarP(&opts.GridSize, "grid-size", "g", opts.GridSize, `grid cell size, absolute or "N%" of the average edge length`)
	f.Float64Var(&opts.BorderRad, "border-rad", opts.BorderRad, "lattice padding around the input, in percent of the cell size")
	f.Var(textFlag{&opts.BaseGraphType, "type"}, "base-graph", "lattice topology: "+typeNames())
	f.IntVar(&opts.HananIters, "hanan-iters", opts.HananIters, "Hanan grid rounds; each round count is one attempt")
	f.StringVar(&opts.ObstaclePath, "obstacles", opts.ObstaclePath, "GeoJSON file with obstacle polygons")

	// Routing
	f.Var(textFlag{&opts.EdgeOrderMethod, "method"}, "edge-order", "routing order: "+orderNames())
	f.Float64Var(&opts.MaxGrDist, "max-gr-dist", opts.MaxGrDist, "station candidate radius in cells")
	f.Float64Var(&opts.EnfGeoPen, "geo-pen", opts.EnfGeoPen, "per-hop penalty for leaving the geographic course")
	f.BoolVar(&opts.SkipOnError, "skip-on-error", opts.SkipOnError, "skip edges that cannot be routed")
	f.BoolVar(&opts.RetryOnError, "retry-on-error", opts.RetryOnError, "retry failed edges relaxed and failed attempts on a finer grid")
	f.BoolVar(&opts.Deg2Heur, "deg2-heur", opts.Deg2Heur, "contract degree-2 stations before routing")

	// Penalties
	f.Float64Var(&opts.Pens.DensityPen, "density-pen", opts.Pens.DensityPen, "line density penalty")
	f.Float64Var(&opts.Pens.VerticalPen, "vertical-pen", opts.Pens.VerticalPen, "vertical hop penalty")
	f.Float64Var(&opts.Pens.HorizontalPen, "horizontal-pen", opts.Pens.HorizontalPen, "horizontal hop penalty")
	f.Float64Var(&opts.Pens.DiagonalPen, "diagonal-pen", opts.Pens.DiagonalPen, "diagonal hop penalty")
	f.Float64Var(&opts.Pens.P0, "pen-180", opts.Pens.P0, "bend penalty for a straight continuation")
	f.Float64Var(&opts.Pens.P135, "pen-135", opts.Pens.P135, "bend penalty for a 135 degree turn")
	f.Float64Var(&opts.Pens.P90, "pen-90", opts.Pens.P90, "bend penalty for a 90 degree turn")
	f.Float64Var(&opts.Pens.P45, "pen-45", opts.Pens.P45, "bend penalty for a 45 degree turn")
	f.Float64Var(&opts.Pens.NdMovePen, "nd-move-pen", opts.Pens.NdMovePen, "penalty per cell of station displacement")
	f.Float64Var(&opts.Pens.CrossPen, "cross-pen", opts.Pens.CrossPen, "penalty for crossing another path at a free node")
	f.Float64Var(&opts.Pens.StationCrossPen, "station-cross-pen", opts.Pens.StationCrossPen, "penalty for passing through a foreign station")

	// Optimization
	f.StringVar(&opts.OptimMode, "optim", opts.OptimMode, "optimization mode: heur, ilp")
	f.IntVar(&opts.OptimRuns, "runs", opts.OptimRuns, "optimization runs per order method")
	f.IntVar(&opts.HeurLocSearchIters, "loc-search-iters", opts.HeurLocSearchIters, "local search iteration budget")
	f.BoolVar(&opts.RestrLocSearch, "restr-loc-search", opts.RestrLocSearch, "only move stations touching a bend")
	f.IntVar(&opts.AbortAfter, "abort-after", opts.AbortAfter, "skip local search above this many combined edges (-1: never)")

	// Exact optimization
	f.Float64Var(&opts.ILPTimeLimit, "ilp-time-limit", opts.ILPTimeLimit, "solver time limit in seconds (0: none)")
	f.IntVar(&opts.ILPNumThreads, "ilp-threads", opts.ILPNumThreads, "solver threads (0: solver default)")
	f.StringVar(&opts.ILPSolver, "ilp-solver", opts.ILPSolver, "ILP solver: gurobi, cbc")
	f.StringVar(&opts.ILPCacheDir, "ilp-cache-dir", opts.ILPCacheDir, `solution cache directory ("." for the user cache directory)`)
	f.IntVar(&opts.ILPCacheThreshold, "ilp-cache-threshold", opts.ILPCacheThreshold, "largest model, in variables, to cache (0: any)")
	f.StringVar(&opts.CacheRedisAddr, "redis", opts.CacheRedisAddr, "redis address for a shared cache (host:port)")

	// Output and bookkeeping
	f.StringVar(&opts.PrintMode, "print", opts.PrintMode, "output: linegraph, gridgraph")
	f.BoolVar(&opts.WriteStats, "stats", opts.WriteStats, "write per-attempt statistics")
	f.StringVar(&opts.StatsPath, "stats-path", opts.StatsPath, "JSON-lines statistics file")
	f.StringVar(&opts.StatsMongoURI, "stats-mongo", opts.StatsMongoURI, "MongoDB URI receiving statistics instead of the file")
	f.BoolVar(&opts.FromDot, "from-dot", opts.FromDot, "read the input as a Graphviz DOT graph")

	// Execution
	f.IntVarP(&opts.Threads, "threads", "j", opts.Threads, "concurrent attempts")
	f.Uint64Var(&opts.Seed, "seed", opts.Seed, "random seed")
}

// applyConfig loads the config file at path into opts and re-applies every
// flag the user set explicitly, so flags override the file.
func applyConfig(cmd *cobra.Command, opts *pipeline.Options, path string) error {
	if path == "" {
		return nil
	}
	changed := make(map[string]string)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
	})

	loaded, err := pipeline.LoadConfig(path, pipeline.DefaultOptions())
	if err != nil {
		return err
	}
	*opts = loaded
	for name, v := range changed {
		if err := cmd.Flags().Set(name, v); err != nil {
			return err
		}
	}
	return nil
}

func typeNames() string {
	var names []string
	for _, t := range basegraph.Types() {
		names = append(names, t.String())
	}
	return strings.Join(names, ", ")
}

func orderNames() string {
	names := []string{}
	for _, m := range route.OrderMethods() {
		names = append(names, m.String())
	}
	return strings.Join(append(names, route.OrderAll.String()), ", ")
}
