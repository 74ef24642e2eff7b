package ilp

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/octi/pkg/errors"
)

// Status is the outcome of a solver run.
type Status int

const (
	StatusOptimal Status = iota
	StatusFeasible
	StatusInfeasible
	StatusTimeout
)

var statusNames = [...]string{"optimal", "feasible", "infeasible", "timeout"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	for i, n := range statusNames {
		if n == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown solver status %q", b)
}

// Solution is a solver's answer. Values holds the non-zero variables by
// name; it is empty when the solver found no incumbent.
type Solution struct {
	Status    Status             `json:"status"`
	Objective float64            `json:"objective"`
	Values    map[string]float64 `json:"values"`
}

// HasIncumbent reports whether the solution carries an assignment.
func (s *Solution) HasIncumbent() bool {
	return s.Status != StatusInfeasible && len(s.Values) > 0
}

// Solver solves a model. start, when non-nil, is a feasible assignment the
// solver may use as a warm start.
type Solver interface {
	Name() string
	Solve(ctx context.Context, m *Model, start []float64) (*Solution, error)
}

// Solver names.
const (
	SolverGurobi = "gurobi"
	SolverCBC    = "cbc"
)

// ValidSolvers lists the supported backends.
var ValidSolvers = map[string]bool{SolverGurobi: true, SolverCBC: true}

// SolverOptions configures a command-line solver backend.
type SolverOptions struct {
	// Bin overrides the executable. It defaults to the solver name.
	Bin string

	TimeLimit time.Duration
	Threads   int
	Logger    *log.Logger
}

// NewSolver returns the backend with the given name.
func NewSolver(name string, opts SolverOptions) (Solver, error) {
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	switch name {
	case SolverCBC:
		if opts.Bin == "" {
			opts.Bin = "cbc"
		}
		return &CBC{opts: opts}, nil
	case SolverGurobi:
		if opts.Bin == "" {
			opts.Bin = "gurobi_cl"
		}
		return &Gurobi{opts: opts}, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown ILP solver %q", name)
}

// workspace writes the model and optional start into a fresh directory.
type workspace struct {
	dir   string
	model string
	start string
	sol   string
}

func newWorkspace(m *Model, start []float64, writeStart func(path string, m *Model, start []float64) error) (*workspace, error) {
	dir, err := os.MkdirTemp("", "octi-ilp-*")
	if err != nil {
		return nil, err
	}
	ws := &workspace{
		dir:   dir,
		model: filepath.Join(dir, "model.lp"),
		sol:   filepath.Join(dir, "model.sol"),
	}
	f, err := os.Create(ws.model)
	if err != nil {
		ws.remove()
		return nil, err
	}
	if err := m.WriteLP(f); err != nil {
		f.Close()
		ws.remove()
		return nil, err
	}
	if err := f.Close(); err != nil {
		ws.remove()
		return nil, err
	}
	if start != nil && writeStart != nil {
		ws.start = filepath.Join(dir, "start.sol")
		if err := writeStart(ws.start, m, start); err != nil {
			ws.remove()
			return nil, err
		}
	}
	return ws, nil
}

func (ws *workspace) remove() { os.RemoveAll(ws.dir) }

// launchAttempts bounds retries of a solver process that fails to start.
const launchAttempts = 3

// run executes a solver binary. Launch failures other than a missing
// executable are retried with exponential backoff; a started process is
// never restarted.
func run(ctx context.Context, logger *log.Logger, bin string, args ...string) ([]byte, error) {
	var out []byte
	op := func() error {
		cmd := exec.CommandContext(ctx, bin, args...)
		var buf bytes.Buffer
		cmd.Stdout = &buf
		cmd.Stderr = &buf
		if err := cmd.Start(); err != nil {
			if stderrors.Is(err, exec.ErrNotFound) || stderrors.Is(err, fs.ErrNotExist) {
				return backoff.Permanent(err)
			}
			logger.Warn("solver launch failed", "bin", bin, "err", err)
			return err
		}
		err := cmd.Wait()
		out = buf.Bytes()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return backoff.Permanent(ctxErr)
		}
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%s: %w: %s", filepath.Base(bin), err, lastLine(out)))
		}
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 100 * time.Millisecond
	b := backoff.WithContext(backoff.WithMaxRetries(eb, launchAttempts-1), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return out, err
	}
	return out, nil
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return lines[len(lines)-1]
}

// seconds renders a positive time limit in whole seconds, at least one.
func seconds(d time.Duration) string {
	return strconv.FormatInt(max(1, int64(d.Round(time.Second)/time.Second)), 10)
}
