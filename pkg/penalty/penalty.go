// Package penalty defines the weights that score an octilinear embedding.
//
// The same weights drive the path router's per-step cost, the heuristic and
// exact optimizers' objectives, and the final score, so a drawing's score is
// always the sum of the costs that produced it.
//
// Bend penalties are named after the angle between two consecutive segments:
// P0 applies to a straight continuation (segments meet at 180°, deviation
// 0°), P135 to a 45° deviation, P90 to a right angle and P45 to the sharp
// 135° deviation. Reversals are never allowed inside a path. A relaxed path
// doubling back at a station pays [Penalties.Reversal].
package penalty

import (
	"math"

	"github.com/matzehuels/octi/pkg/errors"
	"github.com/matzehuels/octi/pkg/geo"
)

// Penalties holds all non-negative cost weights.
type Penalties struct {
	DensityPen    float64 `json:"densityPen" toml:"densityPen"`
	VerticalPen   float64 `json:"verticalPen" toml:"verticalPen"`
	HorizontalPen float64 `json:"horizontalPen" toml:"horizontalPen"`
	DiagonalPen   float64 `json:"diagonalPen" toml:"diagonalPen"`
	P0            float64 `json:"p_0" toml:"p_0"`
	P45           float64 `json:"p_45" toml:"p_45"`
	P90           float64 `json:"p_90" toml:"p_90"`
	P135          float64 `json:"p_135" toml:"p_135"`
	NdMovePen     float64 `json:"ndMovePen" toml:"ndMovePen"`

	// CrossPen is charged when a path passes a lattice node already passed by
	// another bundle. StationCrossPen is charged when a relaxed retry routes
	// through a foreign station.
	CrossPen        float64 `json:"crossPen" toml:"crossPen"`
	StationCrossPen float64 `json:"stationCrossPen" toml:"stationCrossPen"`
}

// Default returns the default weights.
func Default() Penalties {
	return Penalties{
		DensityPen:      10,
		VerticalPen:     0,
		HorizontalPen:   0,
		DiagonalPen:     0.5,
		P0:              0,
		P45:             2,
		P90:             1.5,
		P135:            1,
		NdMovePen:       0.5,
		CrossPen:        50,
		StationCrossPen: 100,
	}
}

// Uniform returns weights that are all equal to w.
func Uniform(w float64) Penalties {
	return Penalties{
		DensityPen: w, VerticalPen: w, HorizontalPen: w, DiagonalPen: w,
		P0: w, P45: w, P90: w, P135: w, NdMovePen: w,
		CrossPen: w, StationCrossPen: w,
	}
}

// Validate reports the first negative or NaN weight as a configuration error.
func (p Penalties) Validate() error {
	for _, f := range p.fields() {
		if err := errors.ValidateNonNegative(f.name, f.v); err != nil {
			return err
		}
	}
	return nil
}

type field struct {
	name string
	v    float64
}

func (p Penalties) fields() []field {
	return []field{
		{"densityPen", p.DensityPen},
		{"verticalPen", p.VerticalPen},
		{"horizontalPen", p.HorizontalPen},
		{"diagonalPen", p.DiagonalPen},
		{"p_0", p.P0},
		{"p_45", p.P45},
		{"p_90", p.P90},
		{"p_135", p.P135},
		{"ndMovePen", p.NdMovePen},
		{"crossPen", p.CrossPen},
		{"stationCrossPen", p.StationCrossPen},
	}
}

// Set assigns a weight by its configuration key. It reports false for
// unknown keys.
func (p *Penalties) Set(key string, v float64) bool {
	switch key {
	case "densityPen":
		p.DensityPen = v
	case "verticalPen":
		p.VerticalPen = v
	case "horizontalPen":
		p.HorizontalPen = v
	case "diagonalPen":
		p.DiagonalPen = v
	case "p_0":
		p.P0 = v
	case "p_45":
		p.P45 = v
	case "p_90":
		p.P90 = v
	case "p_135":
		p.P135 = v
	case "ndMovePen":
		p.NdMovePen = v
	case "crossPen":
		p.CrossPen = v
	case "stationCrossPen":
		p.StationCrossPen = v
	default:
		return false
	}
	return true
}

// Dir returns the direction penalty for one step in direction d.
func (p Penalties) Dir(d geo.Dir) float64 {
	switch {
	case d.Vertical():
		return p.VerticalPen
	case d.Horizontal():
		return p.HorizontalPen
	case d.Diagonal():
		return p.DiagonalPen
	}
	return 0
}

// Bend returns the penalty for continuing in direction out after travelling
// in direction in. Reversals cost +Inf.
func (p Penalties) Bend(in, out geo.Dir) float64 {
	if in == geo.NoDir || out == geo.NoDir {
		return 0
	}
	return p.BendTurn(geo.Turn(in, out))
}

// BendTurn returns the penalty for a deviation of turn·45°.
func (p Penalties) BendTurn(turn int) float64 {
	switch turn {
	case 0:
		return p.P0
	case 1:
		return p.P135
	case 2:
		return p.P90
	case 3:
		return p.P45
	}
	return math.Inf(1)
}

// Reversal returns the finite cost charged when a scored drawing doubles
// back through the port it arrived from. That only happens where paths share
// a lattice edge, so it is priced as the sharpest bend plus a crossing.
func (p Penalties) Reversal() float64 {
	return p.P45 + p.CrossPen
}

// Move returns the penalty for displacing a node by dist lattice cells.
func (p Penalties) Move(dist float64) float64 {
	return p.NdMovePen * dist
}
