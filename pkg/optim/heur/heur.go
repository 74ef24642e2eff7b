// Package heur improves a drawing by local search.
//
// Every iteration tries two kinds of moves in random order: relocating a
// low-degree comb node to a nearby lattice node (re-routing its edges), and
// re-routing a single edge on its own. A move is kept only when it strictly
// lowers the drawing's score; otherwise the drawing is restored from a
// snapshot. The search stops when an iteration finds no improving move, the
// iteration budget is spent, or the context is cancelled.
package heur

import (
	"context"
	"io"
	"math/rand/v2"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/octi/pkg/errors"
	"github.com/matzehuels/octi/pkg/route"
	"github.com/matzehuels/octi/pkg/score"
)

// Default option values.
const (
	DefaultIters      = 100
	DefaultAbortAfter = -1
)

// Options configures the local search.
type Options struct {
	// Iters bounds the number of improvement rounds.
	Iters int

	// Restricted narrows node moves to degree-2 nodes and a radius of one
	// cell. Unrestricted search moves nodes up to degree 4 by two cells.
	Restricted bool

	// AbortAfter skips the search for comb graphs with more edges. Negative
	// values disable the limit.
	AbortAfter int

	// Rand orders the candidate moves. A generator seeded with zero is used
	// when nil.
	Rand *rand.Rand

	Score  score.Options
	Logger *log.Logger
}

// Result is the outcome of a local search.
type Result struct {
	Score      score.Score
	Iterations int
	Moves      int

	// Aborted is set when the search was skipped for size.
	Aborted bool
}

// Optimize improves d in place.
func Optimize(ctx context.Context, r *route.Router, d *route.Drawing, opts Options) (Result, error) {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(0, 0))
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	s := &search{r: r, d: d, opts: opts}
	s.cur = score.Compute(d, opts.Score)
	res := Result{Score: s.cur}

	if opts.AbortAfter >= 0 && len(d.Comb.Edges) > opts.AbortAfter {
		opts.Logger.Debug("local search skipped", "edges", len(d.Comb.Edges), "abortAfter", opts.AbortAfter)
		res.Aborted = true
		return res, nil
	}

	for res.Iterations < opts.Iters {
		if err := ctx.Err(); err != nil {
			res.Score = s.cur
			return res, errors.Wrap(errors.ErrCodeAborted, err, "local search interrupted")
		}
		res.Iterations++
		moves := s.moveNodes() + s.rerouteEdges()
		res.Moves += moves
		opts.Logger.Debug("local search round", "iter", res.Iterations, "moves", moves, "score", s.cur.Total)
		if moves == 0 {
			break
		}
	}
	res.Score = s.cur
	return res, nil
}

type search struct {
	r    *route.Router
	d    *route.Drawing
	opts Options
	cur  score.Score
}

// improves reports whether n is strictly better than the incumbent.
func (s *search) improves(n score.Score) bool {
	if n.Skipped != s.cur.Skipped {
		return n.Skipped < s.cur.Skipped
	}
	return n.Total < s.cur.Total-1e-9
}

// try keeps the state produced by apply if it routes and improves the
// score, and restores the snapshot otherwise.
func (s *search) try(apply func() bool) bool {
	snap := s.d.Clone()
	if apply() {
		if n := score.Compute(s.d, s.opts.Score); s.improves(n) {
			s.cur = n
			return true
		}
	}
	s.d.Restore(snap)
	return false
}

func (s *search) moveNodes() int {
	maxDeg, radius := 4, 2.0
	if s.opts.Restricted {
		maxDeg, radius = 2, 1.0
	}
	maxDist := s.r.Options().MaxGrDist
	base := s.d.Base

	var nodes []int
	for _, c := range s.d.Comb.Nodes {
		if deg := c.Degree(); deg > 0 && deg <= maxDeg && s.d.Settled[c.ID] >= 0 {
			nodes = append(nodes, c.ID)
		}
	}
	s.opts.Rand.Shuffle(len(nodes), func(i, j int) { nodes[i], nodes[j] = nodes[j], nodes[i] })

	moves := 0
	for _, c := range nodes {
		cn := s.d.Comb.Nodes[c]
		from := s.d.Settled[c]
		for _, cand := range base.Candidates(base.Node(from).Pos, radius) {
			n := cand.Node
			if n == from || s.d.Occ.Occupied(n) || base.Degree(n) < cn.Degree() {
				continue
			}
			if maxDist > 0 && base.Node(n).Pos.Dist(cn.Pos())/base.Cell > maxDist {
				continue
			}
			ok := s.try(func() bool {
				for _, e := range cn.Edges {
					s.d.Unroute(e)
				}
				s.d.Settle(c, n)
				for _, e := range cn.Edges {
					if s.isSkipped(e) {
						continue
					}
					if err := s.r.Route(s.d, e, false); err != nil {
						return false
					}
				}
				return true
			})
			if ok {
				moves++
				break
			}
		}
	}
	return moves
}

func (s *search) rerouteEdges() int {
	edges := make([]int, len(s.d.Comb.Edges))
	for i := range edges {
		edges[i] = i
	}
	s.opts.Rand.Shuffle(len(edges), func(i, j int) { edges[i], edges[j] = edges[j], edges[i] })

	moves := 0
	for _, e := range edges {
		skipped := s.isSkipped(e)
		p := s.d.Paths[e]
		if p == nil && !skipped {
			continue
		}
		ok := s.try(func() bool {
			relaxed := p != nil && p.Relaxed
			s.d.Unroute(e)
			if err := s.r.Route(s.d, e, relaxed); err != nil {
				return false
			}
			if skipped {
				s.d.Unskip(e)
			}
			return true
		})
		if ok {
			moves++
		}
	}
	return moves
}

func (s *search) isSkipped(e int) bool { return slices.Contains(s.d.Skipped, e) }
