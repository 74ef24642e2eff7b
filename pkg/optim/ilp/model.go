package ilp

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
)

// Sense is the relation of a constraint.
type Sense int8

const (
	LE Sense = iota // ≤
	GE              // ≥
	EQ              // =
)

func (s Sense) String() string {
	switch s {
	case LE:
		return "<="
	case GE:
		return ">="
	}
	return "="
}

// Term is one coefficient of a linear expression.
type Term struct {
	Var  int
	Coef float64
}

// Var is a binary decision variable.
type Var struct {
	Name string
	Obj  float64
}

// Constr is a linear constraint over binary variables.
type Constr struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Model is a minimization problem over 0/1 variables.
type Model struct {
	Name    string
	Vars    []Var
	Constrs []Constr

	index map[string]int
}

// NewModel returns an empty model.
func NewModel(name string) *Model {
	return &Model{Name: name, index: make(map[string]int)}
}

// AddVar adds a binary variable with objective coefficient obj and returns
// its index. Names must be unique.
func (m *Model) AddVar(name string, obj float64) int {
	if i, ok := m.index[name]; ok {
		m.Vars[i].Obj += obj
		return i
	}
	m.Vars = append(m.Vars, Var{Name: name, Obj: obj})
	m.index[name] = len(m.Vars) - 1
	return len(m.Vars) - 1
}

// Lookup returns the index of the named variable.
func (m *Model) Lookup(name string) (int, bool) {
	i, ok := m.index[name]
	return i, ok
}

// AddConstr adds a constraint. Repeated variables are merged and empty
// constraints are dropped.
func (m *Model) AddConstr(name string, terms []Term, sense Sense, rhs float64) {
	terms = merge(terms)
	if len(terms) == 0 {
		return
	}
	m.Constrs = append(m.Constrs, Constr{Name: name, Terms: terms, Sense: sense, RHS: rhs})
}

func merge(terms []Term) []Term {
	pos := make(map[int]int, len(terms))
	out := make([]Term, 0, len(terms))
	for _, t := range terms {
		if i, ok := pos[t.Var]; ok {
			out[i].Coef += t.Coef
			continue
		}
		pos[t.Var] = len(out)
		out = append(out, t)
	}
	return slices.DeleteFunc(out, func(t Term) bool { return t.Coef == 0 })
}

// Size returns the number of variables plus constraints.
func (m *Model) Size() int { return len(m.Vars) + len(m.Constrs) }

// Objective evaluates the objective at values.
func (m *Model) Objective(values []float64) float64 {
	obj := 0.0
	for i, v := range m.Vars {
		obj += v.Obj * values[i]
	}
	return obj
}

// Violated returns the first constraint not satisfied by values.
func (m *Model) Violated(values []float64) (*Constr, bool) {
	for i := range m.Constrs {
		c := &m.Constrs[i]
		lhs := 0.0
		for _, t := range c.Terms {
			lhs += t.Coef * values[t.Var]
		}
		var ok bool
		switch c.Sense {
		case LE:
			ok = lhs <= c.RHS+1e-6
		case GE:
			ok = lhs >= c.RHS-1e-6
		default:
			ok = math.Abs(lhs-c.RHS) <= 1e-6
		}
		if !ok {
			return c, true
		}
	}
	return nil, false
}

// Values converts named values into a dense vector. Unknown names are
// ignored; missing variables are zero.
func (m *Model) Values(named map[string]float64) []float64 {
	out := make([]float64, len(m.Vars))
	for name, v := range named {
		if i, ok := m.index[name]; ok {
			out[i] = v
		}
	}
	return out
}

// WriteLP writes the model in CPLEX LP format.
func (m *Model) WriteLP(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "\\ %s\n", m.Name)
	bw.WriteString("Minimize\n obj:")
	n := 0
	for _, v := range m.Vars {
		if v.Obj == 0 {
			continue
		}
		writeTerm(bw, v.Obj, v.Name, n == 0)
		n++
		if n%8 == 0 {
			bw.WriteString("\n ")
		}
	}
	if n == 0 {
		bw.WriteString(" 0")
	}
	bw.WriteString("\nSubject To\n")
	for _, c := range m.Constrs {
		fmt.Fprintf(bw, " %s:", c.Name)
		for i, t := range c.Terms {
			writeTerm(bw, t.Coef, m.Vars[t.Var].Name, i == 0)
			if (i+1)%8 == 0 && i+1 < len(c.Terms) {
				bw.WriteString("\n  ")
			}
		}
		fmt.Fprintf(bw, " %s %s\n", c.Sense, formatFloat(c.RHS))
	}
	bw.WriteString("Binary\n")
	for i, v := range m.Vars {
		bw.WriteString(" ")
		bw.WriteString(v.Name)
		if (i+1)%8 == 0 {
			bw.WriteString("\n")
		}
	}
	bw.WriteString("\nEnd\n")
	return bw.Flush()
}

func writeTerm(w *bufio.Writer, coef float64, name string, first bool) {
	switch {
	case coef < 0:
		w.WriteString(" - ")
		coef = -coef
	case !first:
		w.WriteString(" + ")
	default:
		w.WriteString(" ")
	}
	if coef != 1 {
		w.WriteString(formatFloat(coef))
		w.WriteString(" ")
	}
	w.WriteString(name)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
