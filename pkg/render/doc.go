// Package render holds debug renderers for embedded drawings.
//
// Cartographic rendering is left to external tools that consume the
// GeoJSON output; the [dot] subpackage only visualizes lattices and routed
// paths for inspection.
//
// [dot]: github.com/matzehuels/octi/pkg/render/dot
package render
