// Package pipeline runs the octilinear embedding engine end to end.
//
// It is the single implementation of an embedding run used by the CLI and
// the HTTP server. A run splits the input line graph into connected
// components and embeds every component independently: each component is
// contracted into a comb graph, then a set of attempts (edge order method ×
// Hanan iteration × optimization run, each with its own grid-size retries)
// is routed and optimized in parallel, and the best scoring attempt is
// selected. The selected drawings are expanded back into one output line
// graph.
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	defer runner.Close()
//
//	opts := pipeline.DefaultOptions()
//	opts.OptimMode = pipeline.OptimILP
//	res, err := runner.Execute(ctx, input, opts)
//	if err != nil {
//	    return err
//	}
//	linegraph.Write(os.Stdout, res.Graph)
//
// Options can be loaded from a JSON or TOML file with [LoadConfig].
package pipeline

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/octi/pkg/basegraph"
	"github.com/matzehuels/octi/pkg/errors"
	"github.com/matzehuels/octi/pkg/optim/heur"
	"github.com/matzehuels/octi/pkg/optim/ilp"
	"github.com/matzehuels/octi/pkg/penalty"
	"github.com/matzehuels/octi/pkg/route"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Server
// =============================================================================

const (
	DefaultGridSize        = "100%"
	DefaultBorderRad       = 45.0
	DefaultBaseGraphType   = basegraph.OctiGrid
	DefaultEdgeOrderMethod = route.OrderNumLines
	DefaultOptimMode       = OptimHeur
	DefaultOptimRuns       = 1
	DefaultILPTimeLimit    = 60.0
	DefaultILPSolver       = ilp.SolverGurobi
	DefaultILPCacheDir     = "."
	DefaultHananIters      = 1
	DefaultLocSearchIters  = heur.DefaultIters
	DefaultAbortAfter      = heur.DefaultAbortAfter
	DefaultMaxGrDist       = route.DefaultMaxGrDist
	DefaultPrintMode       = PrintLineGraph
	DefaultSeed            = 42
	DefaultStatsPath       = "octi-stats.jsonl"
)

// Optimization modes.
const (
	OptimHeur = "heur"
	OptimILP  = "ilp"
)

// Output modes.
const (
	PrintLineGraph = "linegraph"
	PrintGridGraph = "gridgraph"
)

// Grid-size retry: a failed attempt is rebuilt on a finer lattice.
const (
	gridRetries = 3
	gridShrink  = 0.75
)

// =============================================================================
// Valid Values
// =============================================================================

// ValidOptimModes lists the supported optimization modes.
var ValidOptimModes = map[string]bool{OptimHeur: true, OptimILP: true}

// ValidPrintModes lists the supported output modes.
var ValidPrintModes = map[string]bool{PrintLineGraph: true, PrintGridGraph: true}

// =============================================================================
// Options
// =============================================================================

// Options configures an embedding run. Start from [DefaultOptions]: the
// zero value of several fields (base graph type, penalties, border) is a
// valid but different setting.
type Options struct {
	// Lattice
	GridSize      string         `json:"gridSize" toml:"gridSize"`
	BorderRad     float64        `json:"borderRad" toml:"borderRad"`
	BaseGraphType basegraph.Type `json:"baseGraphType" toml:"baseGraphType"`
	HananIters    int            `json:"hananIters" toml:"hananIters"`
	ObstaclePath  string         `json:"obstaclePath,omitempty" toml:"obstaclePath"`

	// Routing
	EdgeOrderMethod route.OrderMethod `json:"edgeOrderMethod" toml:"edgeOrderMethod"`
	Pens            penalty.Penalties `json:"pens" toml:"pens"`
	MaxGrDist       float64           `json:"maxGrDist" toml:"maxGrDist"`
	EnfGeoPen       float64           `json:"enfGeoPen" toml:"enfGeoPen"`
	SkipOnError     bool              `json:"skipOnError" toml:"skipOnError"`
	RetryOnError    bool              `json:"retryOnError" toml:"retryOnError"`
	Deg2Heur        bool              `json:"deg2Heur" toml:"deg2Heur"`

	// Optimization
	OptimMode          string `json:"optimMode" toml:"optimMode"`
	OptimRuns          int    `json:"optimRuns" toml:"optimRuns"`
	HeurLocSearchIters int    `json:"heurLocSearchIters" toml:"heurLocSearchIters"`
	RestrLocSearch     bool   `json:"restrLocSearch" toml:"restrLocSearch"`
	AbortAfter         int    `json:"abortAfter" toml:"abortAfter"`

	// Exact optimization
	ILPTimeLimit      float64 `json:"ilpTimeLimit" toml:"ilpTimeLimit"`
	ILPNumThreads     int     `json:"ilpNumThreads" toml:"ilpNumThreads"`
	ILPSolver         string  `json:"ilpSolver" toml:"ilpSolver"`
	ILPCacheDir       string  `json:"ilpCacheDir" toml:"ilpCacheDir"`
	ILPCacheThreshold int     `json:"ilpCacheThreshold" toml:"ilpCacheThreshold"`
	ILPPath           string  `json:"ilpPath,omitempty" toml:"ilpPath"`
	ILPNoSolve        bool    `json:"ilpNoSolve" toml:"ilpNoSolve"`
	CacheRedisAddr    string  `json:"cacheRedisAddr,omitempty" toml:"cacheRedisAddr"`

	// Output and bookkeeping
	PrintMode     string `json:"printMode" toml:"printMode"`
	WriteStats    bool   `json:"writeStats" toml:"writeStats"`
	StatsPath     string `json:"statsPath,omitempty" toml:"statsPath"`
	StatsMongoURI string `json:"statsMongoURI,omitempty" toml:"statsMongoURI"`
	FromDot       bool   `json:"fromDot" toml:"fromDot"`

	// Execution
	Threads int    `json:"threads" toml:"threads"`
	Seed    uint64 `json:"seed" toml:"seed"`

	// Solver overrides the ILP backend named by ILPSolver.
	Solver ilp.Solver `json:"-" toml:"-"`

	// Logger receives progress messages. A discard logger is used when nil.
	Logger *log.Logger `json:"-" toml:"-"`

	validated bool
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		GridSize:           DefaultGridSize,
		BorderRad:          DefaultBorderRad,
		BaseGraphType:      DefaultBaseGraphType,
		HananIters:         DefaultHananIters,
		EdgeOrderMethod:    DefaultEdgeOrderMethod,
		Pens:               penalty.Default(),
		MaxGrDist:          DefaultMaxGrDist,
		Deg2Heur:           true,
		OptimMode:          DefaultOptimMode,
		OptimRuns:          DefaultOptimRuns,
		HeurLocSearchIters: DefaultLocSearchIters,
		AbortAfter:         DefaultAbortAfter,
		ILPTimeLimit:       DefaultILPTimeLimit,
		ILPSolver:          DefaultILPSolver,
		ILPCacheDir:        DefaultILPCacheDir,
		PrintMode:          DefaultPrintMode,
		StatsPath:          DefaultStatsPath,
		Threads:            runtime.GOMAXPROCS(0),
		Seed:               DefaultSeed,
	}
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateOptimMode checks that mode is a supported optimization mode.
func ValidateOptimMode(mode string) error {
	if !ValidOptimModes[mode] {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid optimMode %q (must be heur or ilp)", mode)
	}
	return nil
}

// ValidatePrintMode checks that mode is a supported output mode.
func ValidatePrintMode(mode string) error {
	if !ValidPrintModes[mode] {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid printMode %q (must be linegraph or gridgraph)", mode)
	}
	return nil
}

// ValidateSolver checks that name is a supported ILP solver.
func ValidateSolver(name string) error {
	if !ilp.ValidSolvers[name] {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid ilpSolver %q (must be gurobi or cbc)", name)
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults fills unset fields and rejects invalid settings
// with an INVALID_CONFIG error. It is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	o.SetDefaults()
	if err := o.Validate(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// SetDefaults fills fields whose zero value is not a usable setting.
func (o *Options) SetDefaults() {
	if o.GridSize == "" {
		o.GridSize = DefaultGridSize
	}
	if o.OptimMode == "" {
		o.OptimMode = DefaultOptimMode
	}
	if o.OptimRuns == 0 {
		o.OptimRuns = DefaultOptimRuns
	}
	if o.HananIters == 0 {
		o.HananIters = DefaultHananIters
	}
	if o.ILPTimeLimit == 0 {
		o.ILPTimeLimit = DefaultILPTimeLimit
	}
	if o.ILPSolver == "" {
		o.ILPSolver = DefaultILPSolver
	}
	if o.ILPCacheDir == "" {
		o.ILPCacheDir = DefaultILPCacheDir
	}
	if o.PrintMode == "" {
		o.PrintMode = DefaultPrintMode
	}
	if o.StatsPath == "" {
		o.StatsPath = DefaultStatsPath
	}
	if o.Threads == 0 {
		o.Threads = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Validate rejects invalid settings with an INVALID_CONFIG error.
func (o *Options) Validate() error {
	if _, _, err := errors.ParseGridSize(o.GridSize); err != nil {
		return err
	}
	if err := errors.ValidateNonNegative("borderRad", o.BorderRad); err != nil {
		return err
	}
	if err := errors.ValidateNonNegative("maxGrDist", o.MaxGrDist); err != nil {
		return err
	}
	if err := errors.ValidateNonNegative("enfGeoPen", o.EnfGeoPen); err != nil {
		return err
	}
	if !o.BaseGraphType.Valid() {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid baseGraphType %d", int(o.BaseGraphType))
	}
	if o.EdgeOrderMethod.String() == "unknown" {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid edgeOrderMethod %d", int(o.EdgeOrderMethod))
	}
	if err := o.Pens.Validate(); err != nil {
		return err
	}
	if err := ValidateOptimMode(o.OptimMode); err != nil {
		return err
	}
	if err := ValidatePrintMode(o.PrintMode); err != nil {
		return err
	}
	if err := ValidateSolver(o.ILPSolver); err != nil {
		return err
	}
	switch {
	case o.OptimRuns < 1:
		return errors.New(errors.ErrCodeInvalidConfig, "optimRuns must be at least 1, got %d", o.OptimRuns)
	case o.HananIters < 1:
		return errors.New(errors.ErrCodeInvalidConfig, "hananIters must be at least 1, got %d", o.HananIters)
	case o.HeurLocSearchIters < 0:
		return errors.New(errors.ErrCodeInvalidConfig, "heurLocSearchIters must be non-negative, got %d", o.HeurLocSearchIters)
	case o.AbortAfter < -1:
		return errors.New(errors.ErrCodeInvalidConfig, "abortAfter must be -1 or non-negative, got %d", o.AbortAfter)
	case o.ILPTimeLimit < 0:
		return errors.New(errors.ErrCodeInvalidConfig, "ilpTimeLimit must be positive, got %g", o.ILPTimeLimit)
	case o.ILPNumThreads < 0:
		return errors.New(errors.ErrCodeInvalidConfig, "ilpNumThreads must be non-negative, got %d", o.ILPNumThreads)
	case o.ILPCacheThreshold < 0:
		return errors.New(errors.ErrCodeInvalidConfig, "ilpCacheThreshold must be non-negative, got %d", o.ILPCacheThreshold)
	case o.Threads < 0:
		return errors.New(errors.ErrCodeInvalidConfig, "threads must be non-negative, got %d", o.Threads)
	case o.ILPNoSolve && o.ILPPath == "":
		return errors.New(errors.ErrCodeInvalidConfig, "ilpNoSolve requires ilpPath")
	}
	for _, p := range []string{o.ObstaclePath, o.ILPPath} {
		if p == "" {
			continue
		}
		if err := errors.ValidatePath(p); err != nil {
			return err
		}
	}
	return nil
}

// TimeLimit returns the per-call solver time limit.
func (o *Options) TimeLimit() time.Duration {
	return time.Duration(o.ILPTimeLimit * float64(time.Second))
}

// layoutKeyOpts is the subset of options that determines the output.
type layoutKeyOpts struct {
	GridSize           string            `json:"gridSize"`
	BorderRad          float64           `json:"borderRad"`
	BaseGraphType      basegraph.Type    `json:"baseGraphType"`
	HananIters         int               `json:"hananIters"`
	ObstaclePath       string            `json:"obstaclePath,omitempty"`
	EdgeOrderMethod    route.OrderMethod `json:"edgeOrderMethod"`
	Pens               penalty.Penalties `json:"pens"`
	MaxGrDist          float64           `json:"maxGrDist"`
	EnfGeoPen          float64           `json:"enfGeoPen"`
	SkipOnError        bool              `json:"skipOnError"`
	RetryOnError       bool              `json:"retryOnError"`
	Deg2Heur           bool              `json:"deg2Heur"`
	OptimMode          string            `json:"optimMode"`
	OptimRuns          int               `json:"optimRuns"`
	HeurLocSearchIters int               `json:"heurLocSearchIters"`
	RestrLocSearch     bool              `json:"restrLocSearch"`
	AbortAfter         int               `json:"abortAfter"`
	ILPTimeLimit       float64           `json:"ilpTimeLimit,omitempty"`
	ILPSolver          string            `json:"ilpSolver,omitempty"`
	PrintMode          string            `json:"printMode"`
	Seed               uint64            `json:"seed"`
}

// LayoutKeyOpts returns the options that go into the layout cache key.
// Settings that only affect resources or bookkeeping are left out.
func (o *Options) LayoutKeyOpts() any {
	k := layoutKeyOpts{
		GridSize:           o.GridSize,
		BorderRad:          o.BorderRad,
		BaseGraphType:      o.BaseGraphType,
		HananIters:         o.HananIters,
		ObstaclePath:       o.ObstaclePath,
		EdgeOrderMethod:    o.EdgeOrderMethod,
		Pens:               o.Pens,
		MaxGrDist:          o.MaxGrDist,
		EnfGeoPen:          o.EnfGeoPen,
		SkipOnError:        o.SkipOnError,
		RetryOnError:       o.RetryOnError,
		Deg2Heur:           o.Deg2Heur,
		OptimMode:          o.OptimMode,
		OptimRuns:          o.OptimRuns,
		HeurLocSearchIters: o.HeurLocSearchIters,
		RestrLocSearch:     o.RestrLocSearch,
		AbortAfter:         o.AbortAfter,
		PrintMode:          o.PrintMode,
		Seed:               o.Seed,
	}
	if o.OptimMode == OptimILP {
		k.ILPTimeLimit = o.ILPTimeLimit
		k.ILPSolver = o.ILPSolver
	}
	return k
}

// cacheable reports whether a run may be served from the layout cache.
// Runs with side effects beyond the output always execute.
func (o *Options) cacheable() bool {
	return o.ILPPath == "" && !o.WriteStats
}

// =============================================================================
// Configuration Files
// =============================================================================

// LoadConfig decodes a JSON or TOML file, chosen by extension, on top of
// base. Unknown keys are rejected.
func LoadConfig(path string, base Options) (Options, error) {
	if err := errors.ValidatePath(path); err != nil {
		return base, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return base, errors.Wrap(errors.ErrCodeFileNotFound, err, "config file %s", path)
	}
	if err != nil {
		return base, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	return DecodeConfig(data, strings.ToLower(filepath.Ext(path)), base)
}

// DecodeConfig decodes data on top of base. format is ".toml" for TOML;
// anything else is read as JSON.
func DecodeConfig(data []byte, format string, base Options) (Options, error) {
	o := base
	switch format {
	case ".toml":
		md, err := toml.Decode(string(data), &o)
		if err != nil {
			return base, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode TOML config")
		}
		if und := md.Undecoded(); len(und) > 0 {
			return base, errors.New(errors.ErrCodeInvalidConfig, "unknown config key %q", und[0].String())
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&o); err != nil {
			return base, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode JSON config")
		}
	}
	o.validated = false
	return o, nil
}
