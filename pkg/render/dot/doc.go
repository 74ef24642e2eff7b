// Package dot exports drawings as Graphviz graphs for debugging.
//
// [ToDOT] writes the lattice of a drawing with every node pinned at its
// position: open lattice nodes and edges in grey, settled comb nodes as
// stations and routed paths in the color of their first line. The result
// renders with neato, in process via [RenderSVG] or with the Graphviz tools.
//
//	src := dot.ToDOT(d, dot.Options{Lattice: true})
//	svg, err := dot.RenderSVG(ctx, src)
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering.
package dot
