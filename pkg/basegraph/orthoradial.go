package basegraph

import (
	"math"

	"github.com/matzehuels/octi/pkg/geo"
)

// beams returns the number of rays on ring k. The count doubles whenever the
// ring radius doubles so that ring segments stay roughly one cell long.
func beams(k int) int {
	if k <= 0 {
		return 1
	}
	return 8 << uint(math.Floor(math.Log2(float64(k))))
}

// buildOrthoRadial builds concentric rings around the center joined by rays.
// Ring k has radius k·cell. Nodes outside the padded box are dropped. Rays
// are linked first, then ring segments, then the diagonals between adjacent
// rings, each through the port nearest to its bearing; a link whose port is
// taken is skipped.
func buildOrthoRadial(b *builder, spec Spec) error {
	box := b.g.BBox
	cell := b.g.Cell
	center := box.Center()
	if spec.Center != nil {
		center = *spec.Center
	}
	var rmax float64
	for _, c := range []geo.Point{box.Min, box.Max, geo.Pt(box.Min.X, box.Max.Y), geo.Pt(box.Max.X, box.Min.Y)} {
		rmax = math.Max(rmax, center.Dist(c))
	}
	rings := int(math.Ceil(rmax / cell))

	// ids[k][j] is the node of beam j on ring k, or -1 when dropped.
	ids := make([][]int, rings+1)
	centerID, err := b.addNode(center)
	if err != nil {
		return err
	}
	ids[0] = []int{centerID}
	for k := 1; k <= rings; k++ {
		n := beams(k)
		ids[k] = make([]int, n)
		for j := 0; j < n; j++ {
			a := 2 * math.Pi * float64(j) / float64(n)
			p := center.Add(geo.Pt(math.Cos(a), math.Sin(a)).Scale(float64(k) * cell))
			ids[k][j] = -1
			if !box.Contains(p) {
				continue
			}
			if ids[k][j], err = b.addNode(p); err != nil {
				return err
			}
		}
	}

	link := func(a, c int) {
		if a >= 0 && c >= 0 {
			b.connectGeo(a, c)
		}
	}
	// Rays.
	for j := 0; j < len(ids[1]) && rings >= 1; j++ {
		link(centerID, ids[1][j])
	}
	for k := 1; k < rings; k++ {
		ratio := len(ids[k+1]) / len(ids[k])
		for j, a := range ids[k] {
			link(a, ids[k+1][j*ratio])
		}
	}
	// Rings.
	for k := 1; k <= rings; k++ {
		n := len(ids[k])
		for j := range ids[k] {
			link(ids[k][j], ids[k][(j+1)%n])
		}
	}
	// Diagonals between neighbouring rings.
	for k := 1; k < rings; k++ {
		n := len(ids[k+1])
		ratio := n / len(ids[k])
		for j, a := range ids[k] {
			o := j * ratio
			link(a, ids[k+1][(o+1)%n])
			link(a, ids[k+1][(o-1+n)%n])
		}
	}
	return nil
}
