package basegraph

import (
	"math"

	"github.com/matzehuels/octi/pkg/geo"
)

// latticeExtent returns the number of lattice columns and rows covering the
// padded box at the given spacings.
func latticeExtent(box geo.BBox, dx, dy float64) (nx, ny int) {
	nx = int(math.Ceil(box.Width()/dx-geo.Epsilon)) + 1
	ny = int(math.Ceil(box.Height()/dy-geo.Epsilon)) + 1
	return nx, ny
}

// squareLattice adds the nodes of a square lattice over the padded box for
// which keep returns true, and links them through the given forward
// directions. Every hop costs one cell.
func squareLattice(b *builder, keep func(geo.Point) bool, forward []geo.Dir) error {
	box := b.g.BBox
	cell := b.g.Cell
	nx, ny := latticeExtent(box, cell, cell)
	if nx*ny > b.maxNodes {
		return ErrTooLarge
	}
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			p := geo.Pt(box.Min.X+float64(x)*cell, box.Min.Y+float64(y)*cell)
			if keep != nil && !keep(p) {
				continue
			}
			if _, err := b.addLatticeNode(p, x, y); err != nil {
				return err
			}
		}
	}
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			a, ok := b.latticeNode(x, y)
			if !ok {
				continue
			}
			for _, d := range forward {
				dx, dy := d.Delta()
				if c, ok := b.latticeNode(x+dx, y+dy); ok {
					b.connect(a, c, d, 1)
				}
			}
		}
	}
	return nil
}

func buildGrid(b *builder, _ Spec) error {
	return squareLattice(b, nil, []geo.Dir{geo.E, geo.N})
}

func buildOctiGrid(b *builder, _ Spec) error {
	return squareLattice(b, nil, []geo.Dir{geo.E, geo.NE, geo.N, geo.NW})
}

// buildConvexHullGrid keeps the octilinear lattice nodes within Border (and
// at least one cell) of the input's convex hull.
func buildConvexHullGrid(b *builder, spec Spec) error {
	pts := spec.Points
	if len(pts) == 0 {
		pts = []geo.Point{spec.BBox.Min, spec.BBox.Max}
	}
	hull := geo.Polygon{Outer: geo.ConvexHull(pts)}
	pad := math.Max(spec.Border, spec.Cell)
	keep := func(p geo.Point) bool {
		return hull.Dist(p) <= pad+geo.Epsilon
	}
	return squareLattice(b, keep, []geo.Dir{geo.E, geo.NE, geo.N, geo.NW})
}

// buildHexGrid builds a triangular lattice: rows are a cell·√3/2 apart and
// every odd row is shifted by half a cell. Each node has up to six
// neighbours, using the E, NE, NW, W, SW and SE ports.
func buildHexGrid(b *builder, _ Spec) error {
	box := b.g.BBox
	cell := b.g.Cell
	rowH := cell * math.Sqrt(3) / 2
	nx, ny := latticeExtent(box, cell, rowH)
	nx++ // room for the shifted rows
	if nx*ny > b.maxNodes {
		return ErrTooLarge
	}
	for y := 0; y < ny; y++ {
		off := 0.0
		if y%2 == 1 {
			off = cell / 2
		}
		for x := 0; x < nx; x++ {
			p := geo.Pt(box.Min.X-cell/2+off+float64(x)*cell, box.Min.Y+float64(y)*rowH)
			if _, err := b.addLatticeNode(p, x, y); err != nil {
				return err
			}
		}
	}
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			a, _ := b.latticeNode(x, y)
			if c, ok := b.latticeNode(x+1, y); ok {
				b.connect(a, c, geo.E, 1)
			}
			// Upper neighbours depend on the row parity.
			ne, nw := x, x-1
			if y%2 == 1 {
				ne, nw = x+1, x
			}
			if c, ok := b.latticeNode(ne, y+1); ok {
				b.connect(a, c, geo.NE, 1)
			}
			if c, ok := b.latticeNode(nw, y+1); ok {
				b.connect(a, c, geo.NW, 1)
			}
		}
	}
	return nil
}
