package basegraph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/octi/pkg/errors"
	"github.com/matzehuels/octi/pkg/geo"
)

// Type selects the lattice topology.
type Type int

const (
	// Grid is an orthogonal lattice (ortholinear drawings).
	Grid Type = iota
	// OctiGrid is a square lattice with diagonals (octilinear drawings).
	OctiGrid
	// HexGrid is a triangular lattice (hexalinear drawings).
	HexGrid
	// ConvexHullOctiGrid is an OctiGrid clipped to the input's convex hull.
	ConvexHullOctiGrid
	// PseudoOrthoRadial is a ring-and-ray lattice around a center node.
	PseudoOrthoRadial
	// OctiQuadTree is an adaptive lattice refined around input nodes.
	OctiQuadTree
	// OctiHananGrid places nodes at octilinear line intersections through
	// the input nodes.
	OctiHananGrid

	numTypes
)

// typeInfo is one row of the closed topology table.
type typeInfo struct {
	name  string
	dirs  []geo.Dir
	build generator
}

var (
	orthoDirs = []geo.Dir{geo.E, geo.N, geo.W, geo.S}
	octiDirs  = []geo.Dir{geo.E, geo.NE, geo.N, geo.NW, geo.W, geo.SW, geo.S, geo.SE}
	hexDirs   = []geo.Dir{geo.E, geo.NE, geo.NW, geo.W, geo.SW, geo.SE}
)

var types = [numTypes]typeInfo{
	Grid:               {"ortholinear", orthoDirs, buildGrid},
	OctiGrid:           {"octilinear", octiDirs, buildOctiGrid},
	HexGrid:            {"hexalinear", hexDirs, buildHexGrid},
	ConvexHullOctiGrid: {"chulloctilinear", octiDirs, buildConvexHullGrid},
	PseudoOrthoRadial:  {"pseudoorthoradial", octiDirs, buildOrthoRadial},
	OctiQuadTree:       {"quadtree", octiDirs, buildQuadTree},
	OctiHananGrid:      {"octihanan", octiDirs, buildHanan},
}

// Types returns every topology in table order.
func Types() []Type {
	out := make([]Type, numTypes)
	for i := range out {
		out[i] = Type(i)
	}
	return out
}

// String returns the configuration name of t.
func (t Type) String() string {
	if t < 0 || t >= numTypes {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return types[t].name
}

// Valid reports whether t is a known topology.
func (t Type) Valid() bool { return t >= 0 && t < numTypes }

// AllowedDirs returns the compass directions a path may step in.
func (t Type) AllowedDirs() []geo.Dir {
	if !t.Valid() {
		return nil
	}
	return slices.Clone(types[t].dirs)
}

// MaxDegree returns the maximum number of distinct ports of a node.
func (t Type) MaxDegree() int { return len(types[t].dirs) }

// ParseType maps a configuration name to a topology.
func ParseType(s string) (Type, error) {
	for i, ti := range types {
		if ti.name == s {
			return Type(i), nil
		}
	}
	names := make([]string, 0, numTypes)
	for _, ti := range types {
		names = append(names, ti.name)
	}
	return 0, errors.New(errors.ErrCodeInvalidConfig,
		"invalid base graph type: %q (must be one of: %s)", s, strings.Join(names, ", "))
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
