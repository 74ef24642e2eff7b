package route

import (
	"cmp"
	"slices"
	"strings"

	"github.com/matzehuels/octi/pkg/combgraph"
	"github.com/matzehuels/octi/pkg/errors"
)

// OrderMethod selects the order in which comb edges are routed.
type OrderMethod int

const (
	OrderNumLines OrderMethod = iota
	OrderLength
	OrderAdjNodeDeg
	OrderAdjNodeLineDeg
	OrderGrowthDeg
	OrderGrowthLineDeg
	OrderAll

	numOrderMethods
)

type orderer func(g *combgraph.Graph) []int

type orderInfo struct {
	name  string
	order orderer
}

// orderers is indexed by OrderMethod. OrderAll has no orderer of its own; it
// expands to every other method.
var orderers = [numOrderMethods]orderInfo{
	OrderNumLines:       {"num-lines", byEdgeKey(func(g *combgraph.Graph, e *combgraph.Edge) float64 { return float64(e.LineCount()) })},
	OrderLength:         {"length", byEdgeKey(func(g *combgraph.Graph, e *combgraph.Edge) float64 { return e.Length })},
	OrderAdjNodeDeg:     {"adj-nd-deg", byEdgeKey(adjDeg)},
	OrderAdjNodeLineDeg: {"adj-nd-ldeg", byEdgeKey(adjLineDeg)},
	OrderGrowthDeg:      {"growth-deg", growth(func(g *combgraph.Graph, n int) int { return g.Nodes[n].Degree() })},
	OrderGrowthLineDeg:  {"growth-ldeg", growth((*combgraph.Graph).LineDegree)},
	OrderAll:            {"all", nil},
}

// OrderMethods returns every concrete method, excluding OrderAll.
func OrderMethods() []OrderMethod {
	out := make([]OrderMethod, 0, OrderAll)
	for m := OrderMethod(0); m < OrderAll; m++ {
		out = append(out, m)
	}
	return out
}

// String returns the configuration name of m.
func (m OrderMethod) String() string {
	if m < 0 || m >= numOrderMethods {
		return "unknown"
	}
	return orderers[m].name
}

// Expand returns the concrete methods m stands for.
func (m OrderMethod) Expand() []OrderMethod {
	if m == OrderAll {
		return OrderMethods()
	}
	return []OrderMethod{m}
}

// ParseOrderMethod parses a configuration name.
func ParseOrderMethod(s string) (OrderMethod, error) {
	names := make([]string, 0, numOrderMethods)
	for m := OrderMethod(0); m < numOrderMethods; m++ {
		if orderers[m].name == s {
			return m, nil
		}
		names = append(names, orderers[m].name)
	}
	return 0, errors.New(errors.ErrCodeInvalidConfig,
		"unknown edge order method %q (valid: %s)", s, strings.Join(names, ", "))
}

// MarshalText implements encoding.TextMarshaler.
func (m OrderMethod) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *OrderMethod) UnmarshalText(b []byte) error {
	v, err := ParseOrderMethod(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Order returns the comb edge IDs of g in routing order. OrderAll yields
// the num-lines order.
func Order(g *combgraph.Graph, m OrderMethod) []int {
	if m < 0 || m >= OrderAll {
		m = OrderNumLines
	}
	return orderers[m].order(g)
}

func adjDeg(g *combgraph.Graph, e *combgraph.Edge) float64 {
	return float64(g.Nodes[e.From].Degree() + g.Nodes[e.To].Degree())
}

func adjLineDeg(g *combgraph.Graph, e *combgraph.Edge) float64 {
	return float64(g.LineDegree(e.From) + g.LineDegree(e.To))
}

// byEdgeKey orders edges by descending key. Equal keys keep ID order.
func byEdgeKey(key func(*combgraph.Graph, *combgraph.Edge) float64) orderer {
	return func(g *combgraph.Graph) []int {
		ids := make([]int, len(g.Edges))
		keys := make([]float64, len(g.Edges))
		for i, e := range g.Edges {
			ids[i] = i
			keys[i] = key(g, e)
		}
		slices.SortStableFunc(ids, func(a, b int) int {
			return cmp.Compare(keys[b], keys[a])
		})
		return ids
	}
}

// growth orders edges so the routed part stays connected: starting at the
// node with the largest weight, it repeatedly takes the frontier edge whose
// far endpoint weighs most. Disconnected parts start over at their heaviest
// node.
func growth(weight func(*combgraph.Graph, int) int) orderer {
	return func(g *combgraph.Graph) []int {
		out := make([]int, 0, len(g.Edges))
		done := make([]bool, len(g.Edges))
		inTree := make([]bool, len(g.Nodes))

		seed := func() bool {
			best := -1
			for _, e := range g.Edges {
				if done[e.ID] {
					continue
				}
				for _, n := range [2]int{e.From, e.To} {
					if best < 0 || weight(g, n) > weight(g, best) {
						best = n
					}
				}
			}
			if best < 0 {
				return false
			}
			inTree[best] = true
			return true
		}

		for len(out) < len(g.Edges) {
			next, nextW := -1, -1
			for _, e := range g.Edges {
				if done[e.ID] || (!inTree[e.From] && !inTree[e.To]) {
					continue
				}
				far := e.To
				if inTree[e.To] {
					far = e.From
				}
				if w := weight(g, far); w > nextW {
					next, nextW = e.ID, w
				}
			}
			if next < 0 {
				if !seed() {
					break
				}
				continue
			}
			done[next] = true
			out = append(out, next)
			inTree[g.Edges[next].From] = true
			inTree[g.Edges[next].To] = true
		}
		return out
	}
}
