package geo

import "math"

// Dir is one of the eight compass directions, counter-clockwise from east in
// steps of 45°.
type Dir int8

const (
	E Dir = iota
	NE
	N
	NW
	W
	SW
	S
	SE

	// NoDir marks the absence of a direction, e.g. before the first step of a
	// path.
	NoDir Dir = -1
)

// NumDirs is the number of compass directions.
const NumDirs = 8

var dirNames = [NumDirs]string{"E", "NE", "N", "NW", "W", "SW", "S", "SE"}

func (d Dir) String() string {
	if d < 0 || d >= NumDirs {
		return "-"
	}
	return dirNames[d]
}

// Opposite returns the direction rotated by 180°.
func (d Dir) Opposite() Dir { return (d + 4) % NumDirs }

// Rotate returns d rotated counter-clockwise by k·45°.
func (d Dir) Rotate(k int) Dir {
	return Dir(((int(d)+k)%NumDirs + NumDirs) % NumDirs)
}

// Vertical reports whether d is N or S.
func (d Dir) Vertical() bool { return d == N || d == S }

// Horizontal reports whether d is E or W.
func (d Dir) Horizontal() bool { return d == E || d == W }

// Diagonal reports whether d is one of the four diagonal directions.
func (d Dir) Diagonal() bool { return d >= 0 && d%2 == 1 }

// Delta returns the unit lattice step of d.
func (d Dir) Delta() (dx, dy int) {
	switch d {
	case E:
		return 1, 0
	case NE:
		return 1, 1
	case N:
		return 0, 1
	case NW:
		return -1, 1
	case W:
		return -1, 0
	case SW:
		return -1, -1
	case S:
		return 0, -1
	case SE:
		return 1, -1
	}
	return 0, 0
}

// Angle returns the bearing of d in radians.
func (d Dir) Angle() float64 { return float64(d) * math.Pi / 4 }

// Turn returns the deviation between travelling in direction a and then in
// direction b, in multiples of 45° (0 = straight on, 4 = reversal).
func Turn(a, b Dir) int {
	t := int(b-a) % NumDirs
	if t < 0 {
		t += NumDirs
	}
	if t > 4 {
		t = NumDirs - t
	}
	return t
}

// NearestDir returns the compass direction closest to the bearing from p to q.
func NearestDir(p, q Point) Dir {
	a := p.Angle(q)
	if a < 0 {
		a += 2 * math.Pi
	}
	return Dir(int(math.Round(a/(math.Pi/4))) % NumDirs)
}

// BearingError returns the absolute angle in radians between the bearing from
// p to q and the direction d.
func BearingError(p, q Point, d Dir) float64 {
	diff := math.Abs(p.Angle(q) - d.Angle())
	for diff > math.Pi {
		diff = math.Abs(diff - 2*math.Pi)
	}
	return diff
}
