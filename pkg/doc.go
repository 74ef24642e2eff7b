// Package pkg provides the libraries behind octi, an engine that draws
// transit networks as octilinear schematic maps.
//
// # Overview
//
// A line graph (stations, track segments and the lines running on them) is
// embedded into a lattice, the base graph, so that every edge becomes a path
// of lattice edges in the allowed directions. The pkg directory is organized
// as:
//
//  1. [linegraph], [geo] - Input and output graphs, geometry
//  2. [combgraph] - Contraction of degree-2 stations into combined edges
//  3. [basegraph] - Lattice topologies (grid, octilinear, hexalinear, ...)
//  4. [route] - Shortest-path routing of combined edges into a drawing
//  5. [optim/heur], [optim/ilp] - Local search and exact optimization
//  6. [score], [penalty] - Drawing cost and its weights
//  7. [pipeline] - Orchestration (parse, attempt grid, select, render)
//  8. [cache], [stats], [observability] - Infrastructure
//
// # Architecture
//
// The data flow through one run:
//
//	GeoJSON / DOT input
//	         ↓
//	    [linegraph] package (components)
//	         ↓
//	    [combgraph] package (contract)
//	         ↓
//	    [basegraph] + [route] packages (one drawing per attempt)
//	         ↓
//	    [optim/heur] or [optim/ilp] packages (refine)
//	         ↓
//	    [score] package (select the best attempt)
//	         ↓
//	    GeoJSON output
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/matzehuels/octi/pkg/linegraph"
//	    "github.com/matzehuels/octi/pkg/pipeline"
//	)
//
//	g, _ := linegraph.ReadFile("network.geojson")
//	runner := pipeline.NewRunner(nil, nil, nil)
//	res, err := runner.Execute(context.Background(), g, pipeline.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	linegraph.WriteFile(res.Graph, "schematic.geojson")
package pkg
