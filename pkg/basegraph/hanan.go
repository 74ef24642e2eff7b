package basegraph

import (
	"cmp"
	"math"
	"slices"

	"github.com/google/btree"

	"github.com/matzehuels/octi/pkg/geo"
)

// lineFamilies holds the octilinear lines of a Hanan lattice: vertical
// (x = c), horizontal (y = c), rising diagonal (x − y = c) and falling
// diagonal (x + y = c).
type lineFamilies struct {
	quantum            float64
	xs, ys, rise, fall *btree.BTreeG[float64]
}

func newLineFamilies(quantum float64) *lineFamilies {
	less := func(a, b float64) bool { return a < b }
	return &lineFamilies{
		quantum: quantum,
		xs:      btree.NewG(8, less),
		ys:      btree.NewG(8, less),
		rise:    btree.NewG(8, less),
		fall:    btree.NewG(8, less),
	}
}

func (f *lineFamilies) snap(v float64) float64 {
	return math.Round(v/f.quantum) * f.quantum
}

// add inserts the four lines through p and reports whether any was new.
func (f *lineFamilies) add(p geo.Point) bool {
	grew := false
	for _, t := range []struct {
		tree *btree.BTreeG[float64]
		v    float64
	}{{f.xs, p.X}, {f.ys, p.Y}, {f.rise, p.X - p.Y}, {f.fall, p.X + p.Y}} {
		if _, found := t.tree.ReplaceOrInsert(f.snap(t.v)); !found {
			grew = true
		}
	}
	return grew
}

func values(t *btree.BTreeG[float64]) []float64 {
	out := make([]float64, 0, t.Len())
	t.Ascend(func(v float64) bool {
		out = append(out, v)
		return true
	})
	return out
}

// intersections returns every pairwise intersection of lines from different
// families that lies inside box.
func (f *lineFamilies) intersections(box geo.BBox, emit func(geo.Point) error) error {
	xs, ys, rise, fall := values(f.xs), values(f.ys), values(f.rise), values(f.fall)
	try := func(x, y float64) error {
		p := geo.Pt(f.snap(x), f.snap(y))
		if !box.Contains(p) {
			return nil
		}
		return emit(p)
	}
	for _, x := range xs {
		for _, y := range ys {
			if err := try(x, y); err != nil {
				return err
			}
		}
		for _, u := range rise {
			if err := try(x, x-u); err != nil {
				return err
			}
		}
		for _, v := range fall {
			if err := try(x, v-x); err != nil {
				return err
			}
		}
	}
	for _, y := range ys {
		for _, u := range rise {
			if err := try(y+u, y); err != nil {
				return err
			}
		}
		for _, v := range fall {
			if err := try(v-y, y); err != nil {
				return err
			}
		}
	}
	for _, u := range rise {
		for _, v := range fall {
			if err := try((u+v)/2, (v-u)/2); err != nil {
				return err
			}
		}
	}
	return nil
}

// buildHanan places nodes at the intersections of the octilinear lines
// through the input points. Each further iteration adds the lines through
// the previous round's intersections. Nodes sharing a line are linked to
// their nearest neighbour along it.
func buildHanan(b *builder, spec Spec) error {
	box := b.g.BBox
	fam := newLineFamilies(spec.Cell * 1e-6)
	for _, p := range spec.Points {
		fam.add(p)
	}

	pts := make(map[geo.Point]struct{})
	collect := func(p geo.Point) error {
		if _, ok := pts[p]; ok {
			return nil
		}
		if len(pts) >= b.maxNodes {
			return ErrTooLarge
		}
		pts[p] = struct{}{}
		return nil
	}
	for it := 0; it < spec.HananIters; it++ {
		if err := fam.intersections(box, collect); err != nil {
			return err
		}
		if it == spec.HananIters-1 {
			break
		}
		grew := false
		for p := range pts {
			if fam.add(p) {
				grew = true
			}
		}
		if !grew {
			break
		}
	}

	ordered := make([]geo.Point, 0, len(pts))
	for p := range pts {
		ordered = append(ordered, p)
	}
	slices.SortFunc(ordered, func(a, c geo.Point) int {
		if r := cmp.Compare(a.Y, c.Y); r != 0 {
			return r
		}
		return cmp.Compare(a.X, c.X)
	})
	ids := make([]int, len(ordered))
	for i, p := range ordered {
		id, err := b.addNode(p)
		if err != nil {
			return err
		}
		ids[i] = id
	}

	// Group nodes by the line they share, in increasing x (or y for
	// verticals), and link consecutive members.
	type lineKey struct {
		family int
		v      float64
	}
	lines := make(map[lineKey][]int)
	var keys []lineKey
	push := func(k lineKey, i int) {
		if _, ok := lines[k]; !ok {
			keys = append(keys, k)
		}
		lines[k] = append(lines[k], i)
	}
	for i, p := range ordered {
		push(lineKey{0, fam.snap(p.Y)}, i)
		push(lineKey{1, fam.snap(p.X)}, i)
		push(lineKey{2, fam.snap(p.X - p.Y)}, i)
		push(lineKey{3, fam.snap(p.X + p.Y)}, i)
	}
	dirs := [4]geo.Dir{geo.E, geo.N, geo.NE, geo.SE}
	for _, k := range keys {
		members := lines[k]
		slices.SortFunc(members, func(a, c int) int {
			if k.family == 1 {
				return cmp.Compare(ordered[a].Y, ordered[c].Y)
			}
			return cmp.Compare(ordered[a].X, ordered[c].X)
		})
		for j := 1; j < len(members); j++ {
			a, c := members[j-1], members[j]
			b.connect(ids[a], ids[c], dirs[k.family], ordered[a].Dist(ordered[c])/spec.Cell)
		}
	}
	return nil
}
