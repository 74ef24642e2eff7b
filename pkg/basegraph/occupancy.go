package basegraph

import (
	"slices"

	"github.com/bits-and-blooms/bitset"
)

// Occupancy is the mutable routing state of one attempt on a shared Graph:
// which lattice edges carry a path, how many paths pass each node, and
// which comb node is settled where. It is not safe for concurrent use.
type Occupancy struct {
	g       *Graph
	used    *bitset.BitSet
	users   []int16
	pass    []int16
	station []int32
}

// NewOccupancy returns an empty occupancy for g.
func NewOccupancy(g *Graph) *Occupancy {
	st := make([]int32, g.NumNodes())
	for i := range st {
		st[i] = -1
	}
	return &Occupancy{
		g:       g,
		used:    bitset.New(uint(g.NumEdges())),
		users:   make([]int16, g.NumEdges()),
		pass:    make([]int16, g.NumNodes()),
		station: st,
	}
}

// Graph returns the lattice the occupancy refers to.
func (o *Occupancy) Graph() *Graph { return o.g }

// Used reports whether any path runs along edge e.
func (o *Occupancy) Used(e int) bool { return o.used.Test(uint(e)) }

// Users returns the number of paths running along edge e. It exceeds one
// only after relaxed routing.
func (o *Occupancy) Users(e int) int { return int(o.users[e]) }

// Use records one more path along edge e.
func (o *Occupancy) Use(e int) {
	o.users[e]++
	o.used.Set(uint(e))
}

// Release removes one path from edge e.
func (o *Occupancy) Release(e int) {
	if o.users[e] > 0 {
		o.users[e]--
	}
	if o.users[e] == 0 {
		o.used.Clear(uint(e))
	}
}

// UsedCount returns the number of edges carrying at least one path.
func (o *Occupancy) UsedCount() int { return int(o.used.Count()) }

// Pass returns the number of paths passing through node n.
func (o *Occupancy) Pass(n int) int { return int(o.pass[n]) }

// AddPass adjusts the pass-through count of node n.
func (o *Occupancy) AddPass(n, delta int) {
	o.pass[n] += int16(delta)
	if o.pass[n] < 0 {
		o.pass[n] = 0
	}
}

// Station returns the comb node settled at lattice node n.
func (o *Occupancy) Station(n int) (int, bool) {
	s := o.station[n]
	return int(s), s >= 0
}

// Settle places comb node c at lattice node n.
func (o *Occupancy) Settle(n, c int) { o.station[n] = int32(c) }

// Unsettle frees lattice node n.
func (o *Occupancy) Unsettle(n int) { o.station[n] = -1 }

// Occupied reports whether a station sits at n or a path passes it.
func (o *Occupancy) Occupied(n int) bool {
	return o.station[n] >= 0 || o.pass[n] > 0
}

// Clone returns an independent copy sharing the immutable graph.
func (o *Occupancy) Clone() *Occupancy {
	return &Occupancy{
		g:       o.g,
		used:    o.used.Clone(),
		users:   slices.Clone(o.users),
		pass:    slices.Clone(o.pass),
		station: slices.Clone(o.station),
	}
}

// CopyFrom overwrites o with the state of src. Both must share a graph.
func (o *Occupancy) CopyFrom(src *Occupancy) {
	src.used.CopyFull(o.used)
	copy(o.users, src.users)
	copy(o.pass, src.pass)
	copy(o.station, src.station)
}
