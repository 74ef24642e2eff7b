package basegraph

import (
	"math"

	"github.com/matzehuels/octi/pkg/geo"
)

// quad is a quad tree cell. Leaves carry the lattice node at their center.
type quad struct {
	min      geo.Point
	side     float64
	children *[4]quad
	node     int
}

func (q *quad) contains(p geo.Point) bool {
	return p.X >= q.min.X && p.X < q.min.X+q.side &&
		p.Y >= q.min.Y && p.Y < q.min.Y+q.side
}

func (q *quad) center() geo.Point {
	return q.min.Add(geo.Pt(q.side/2, q.side/2))
}

// split subdivides q while it holds more than one point and is larger than
// minSide.
func (q *quad) split(pts []geo.Point, minSide float64) {
	var in []geo.Point
	for _, p := range pts {
		if q.contains(p) {
			in = append(in, p)
		}
	}
	if len(in) <= 1 || q.side/2 < minSide-geo.Epsilon {
		return
	}
	h := q.side / 2
	q.children = &[4]quad{
		{min: q.min, side: h},
		{min: q.min.Add(geo.Pt(h, 0)), side: h},
		{min: q.min.Add(geo.Pt(0, h)), side: h},
		{min: q.min.Add(geo.Pt(h, h)), side: h},
	}
	for i := range q.children {
		q.children[i].split(in, minSide)
	}
}

func (q *quad) leaves(fn func(*quad) error) error {
	if q.children == nil {
		return fn(q)
	}
	for i := range q.children {
		if err := q.children[i].leaves(fn); err != nil {
			return err
		}
	}
	return nil
}

func (q *quad) find(p geo.Point) *quad {
	if !q.contains(p) {
		return nil
	}
	for q.children != nil {
		for i := range q.children {
			if q.children[i].contains(p) {
				q = &q.children[i]
				break
			}
		}
	}
	return q
}

// buildQuadTree subdivides the padded box around the input points down to
// one cell and places a node at every leaf center. Each leaf looks up the
// region just beyond its border in all eight directions and links to the
// leaf found there.
func buildQuadTree(b *builder, spec Spec) error {
	box := b.g.BBox
	cell := b.g.Cell
	side := math.Max(box.Width(), box.Height()) + cell
	// Round the root up to a power-of-two multiple of the cell so leaves
	// align with the finest level.
	side = cell * math.Pow(2, math.Ceil(math.Log2(side/cell)))
	root := &quad{min: box.Min, side: side}
	root.split(spec.Points, cell)

	if err := root.leaves(func(q *quad) error {
		id, err := b.addNode(q.center())
		q.node = id
		return err
	}); err != nil {
		return err
	}

	eps := cell / 4
	return root.leaves(func(q *quad) error {
		c := q.center()
		for d := geo.Dir(0); d < geo.NumDirs; d++ {
			dx, dy := d.Delta()
			at := c.Add(geo.Pt(float64(dx), float64(dy)).Scale(q.side/2 + eps))
			nb := root.find(at)
			if nb == nil || nb == q {
				continue
			}
			b.connect(q.node, nb.node, d, c.Dist(nb.center())/cell)
		}
		return nil
	})
}
