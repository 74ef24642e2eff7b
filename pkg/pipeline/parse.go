package pipeline

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/matzehuels/octi/pkg/errors"
	"github.com/matzehuels/octi/pkg/geo"
	"github.com/matzehuels/octi/pkg/linegraph"
)

// Parse decodes an input line graph, as Graphviz DOT when opts.FromDot is
// set and as GeoJSON otherwise.
func Parse(ctx context.Context, r io.Reader, opts Options) (*linegraph.Graph, error) {
	var (
		g   *linegraph.Graph
		err error
	)
	if opts.FromDot {
		data, rerr := io.ReadAll(r)
		if rerr != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidGraph, rerr, "read input")
		}
		g, err = linegraph.ReadDOT(ctx, data)
	} else {
		g, err = linegraph.Read(r)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidGraph, err, "parse input")
	}
	if g.NodeCount() == 0 {
		return nil, errors.New(errors.ErrCodeInvalidGraph, "input graph has no nodes")
	}
	return g, nil
}

// ParseFile reads the input graph at path; "-" reads stdin.
func ParseFile(ctx context.Context, path string, opts Options) (*linegraph.Graph, error) {
	if path == "-" || path == "" {
		return Parse(ctx, os.Stdin, opts)
	}
	if err := errors.ValidatePath(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "input %s", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read input %s", path)
	}
	return Parse(ctx, bytes.NewReader(data), opts)
}

// loadObstacles reads the obstacle polygons configured in opts.
func loadObstacles(opts Options) ([]geo.Polygon, error) {
	if opts.ObstaclePath == "" {
		return nil, nil
	}
	polys, err := linegraph.ReadObstaclesFile(opts.ObstaclePath)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "obstacles %s", opts.ObstaclePath)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read obstacles %s", opts.ObstaclePath)
	}
	opts.Logger.Debug("loaded obstacles", "polygons", len(polys))
	return polys, nil
}
