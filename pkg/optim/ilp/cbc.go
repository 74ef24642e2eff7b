package ilp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/matzehuels/octi/pkg/errors"
)

// CBC runs the COIN-OR branch and cut solver.
type CBC struct {
	opts SolverOptions
}

// Name returns "cbc".
func (s *CBC) Name() string { return SolverCBC }

// Solve writes m to a temporary directory and runs cbc on it.
func (s *CBC) Solve(ctx context.Context, m *Model, start []float64) (*Solution, error) {
	ws, err := newWorkspace(m, start, writeCBCStart)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSolver, err, "prepare cbc input")
	}
	defer ws.remove()

	args := []string{ws.model}
	if s.opts.TimeLimit > 0 {
		args = append(args, "sec", seconds(s.opts.TimeLimit))
	}
	if s.opts.Threads > 0 {
		args = append(args, "threads", strconv.Itoa(s.opts.Threads))
	}
	if ws.start != "" {
		args = append(args, "mipstart", ws.start)
	}
	args = append(args, "solve", "solu", ws.sol)

	s.opts.Logger.Debug("running cbc", "vars", len(m.Vars), "constraints", len(m.Constrs))
	if _, err := run(ctx, s.opts.Logger, s.opts.Bin, args...); err != nil {
		return nil, err
	}

	f, err := os.Open(ws.sol)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSolver, err, "cbc wrote no solution")
	}
	defer f.Close()
	return parseCBCSolution(f)
}

// parseCBCSolution reads a cbc solution file: a status line followed by
// one "index name value reducedCost" row per variable.
func parseCBCSolution(r io.Reader) (*Solution, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	if !sc.Scan() {
		return nil, errors.New(errors.ErrCodeSolver, "empty cbc solution")
	}
	head := strings.TrimSpace(sc.Text())
	sol := &Solution{Values: map[string]float64{}}
	lower := strings.ToLower(head)
	switch {
	case strings.HasPrefix(lower, "optimal"):
		sol.Status = StatusOptimal
	case strings.Contains(lower, "infeasible"):
		sol.Status = StatusInfeasible
		return sol, nil
	case strings.HasPrefix(lower, "stopped on time"):
		sol.Status = StatusTimeout
		if strings.Contains(lower, "no feasible") {
			return sol, nil
		}
	default:
		sol.Status = StatusFeasible
	}
	if i := strings.LastIndex(head, "objective value"); i >= 0 {
		sol.Objective, _ = strconv.ParseFloat(strings.TrimSpace(head[i+len("objective value"):]), 64)
	}

	for sc.Scan() {
		fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(sc.Text()), "**"))
		if len(fields) < 3 {
			continue
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeSolver, err, "parse cbc value of %s", fields[1])
		}
		if v > 0.5 {
			sol.Values[fields[1]] = 1
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSolver, err, "read cbc solution")
	}
	return sol, nil
}

// writeCBCStart writes start in cbc's solution file layout.
func writeCBCStart(path string, m *Model, start []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "Feasible - objective value %s\n", formatFloat(m.Objective(start)))
	for i, v := range m.Vars {
		fmt.Fprintf(w, "%7d %s %s 0\n", i, v.Name, formatFloat(start[i]))
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
