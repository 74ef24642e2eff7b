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

// Gurobi runs the Gurobi command-line optimizer.
type Gurobi struct {
	opts SolverOptions
}

// Name returns "gurobi".
func (s *Gurobi) Name() string { return SolverGurobi }

// Solve writes m to a temporary directory and runs gurobi_cl on it.
func (s *Gurobi) Solve(ctx context.Context, m *Model, start []float64) (*Solution, error) {
	ws, err := newWorkspace(m, start, writeMST)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSolver, err, "prepare gurobi input")
	}
	defer ws.remove()

	args := []string{"ResultFile=" + ws.sol}
	if s.opts.TimeLimit > 0 {
		args = append(args, "TimeLimit="+seconds(s.opts.TimeLimit))
	}
	if s.opts.Threads > 0 {
		args = append(args, "Threads="+strconv.Itoa(s.opts.Threads))
	}
	if ws.start != "" {
		args = append(args, "InputFile="+ws.start)
	}
	args = append(args, ws.model)

	s.opts.Logger.Debug("running gurobi", "vars", len(m.Vars), "constraints", len(m.Constrs))
	out, err := run(ctx, s.opts.Logger, s.opts.Bin, args...)
	if err != nil {
		return nil, err
	}

	status := gurobiStatus(string(out))
	sol := &Solution{Status: status, Values: map[string]float64{}}
	if status == StatusInfeasible {
		return sol, nil
	}
	f, err := os.Open(ws.sol)
	if os.IsNotExist(err) && status == StatusTimeout {
		return sol, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSolver, err, "gurobi wrote no solution")
	}
	defer f.Close()
	if err := parseGurobiSolution(f, sol); err != nil {
		return nil, err
	}
	return sol, nil
}

func gurobiStatus(out string) Status {
	switch {
	case strings.Contains(out, "Optimal solution found"):
		return StatusOptimal
	case strings.Contains(out, "Model is infeasible"), strings.Contains(out, "Infeasible model"):
		return StatusInfeasible
	case strings.Contains(out, "Time limit reached"):
		return StatusTimeout
	}
	return StatusFeasible
}

// parseGurobiSolution reads a .sol file: comment lines followed by one
// "name value" row per variable.
func parseGurobiSolution(r io.Reader, sol *Solution) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if rest, ok := strings.CutPrefix(line, "# Objective value ="); ok {
			sol.Objective, _ = strconv.ParseFloat(strings.TrimSpace(rest), 64)
			continue
		}
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return errors.Wrap(errors.ErrCodeSolver, err, "parse gurobi value of %s", fields[0])
		}
		if v > 0.5 {
			sol.Values[fields[0]] = 1
		}
	}
	if err := sc.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeSolver, err, "read gurobi solution")
	}
	return nil
}

// writeMST writes start as a MIP start file.
func writeMST(path string, m *Model, start []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "# MIP start")
	for i, v := range m.Vars {
		fmt.Fprintf(w, "%s %s\n", v.Name, formatFloat(start[i]))
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
