package penalty

import (
	"math"
	"testing"

	"github.com/matzehuels/octi/pkg/errors"
	"github.com/matzehuels/octi/pkg/geo"
)

func TestValidate(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}

	p := Default()
	p.P90 = -1
	err := p.Validate()
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("Validate() = %v, want INVALID_CONFIG", err)
	}
}

func TestBend(t *testing.T) {
	p := Penalties{P0: 1, P135: 2, P90: 3, P45: 4}
	tests := []struct {
		in, out geo.Dir
		want    float64
	}{
		{geo.E, geo.E, 1},
		{geo.E, geo.NE, 2},
		{geo.E, geo.SE, 2},
		{geo.E, geo.N, 3},
		{geo.E, geo.NW, 4},
		{geo.SE, geo.E, 2},
		{geo.N, geo.SW, 4},
		{geo.NoDir, geo.N, 0},
	}
	for _, tt := range tests {
		if got := p.Bend(tt.in, tt.out); got != tt.want {
			t.Errorf("Bend(%v, %v) = %v, want %v", tt.in, tt.out, got, tt.want)
		}
	}
	if got := p.Bend(geo.E, geo.W); !math.IsInf(got, 1) {
		t.Errorf("Bend(E, W) = %v, want +Inf", got)
	}
}

func TestReversal(t *testing.T) {
	p := Penalties{P45: 2, CrossPen: 50}
	if got := p.Reversal(); got != 52 {
		t.Errorf("Reversal() = %v, want 52", got)
	}
	if got := Default().Reversal(); math.IsInf(got, 0) || got <= Default().P45 {
		t.Errorf("Default().Reversal() = %v, want finite and above P45", got)
	}
}

func TestDir(t *testing.T) {
	p := Penalties{VerticalPen: 1, HorizontalPen: 2, DiagonalPen: 3}
	for d := geo.E; d < geo.NumDirs; d++ {
		var want float64
		switch d {
		case geo.N, geo.S:
			want = 1
		case geo.E, geo.W:
			want = 2
		default:
			want = 3
		}
		if got := p.Dir(d); got != want {
			t.Errorf("Dir(%v) = %v, want %v", d, got, want)
		}
	}
}

func TestSet(t *testing.T) {
	var p Penalties
	for _, f := range Default().fields() {
		if !p.Set(f.name, 7) {
			t.Errorf("Set(%q) = false, want true", f.name)
		}
	}
	if p != Uniform(7) {
		t.Errorf("after setting every key to 7: %+v, want Uniform(7)", p)
	}
	if p.Set("bogus", 1) {
		t.Error("Set(bogus) = true, want false")
	}
}
