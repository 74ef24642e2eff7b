package linegraph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/octi/pkg/geo"
)

// ReadObstacles decodes obstacle polygons from a GeoJSON feature collection.
// Only the outer ring of Polygon and MultiPolygon features is used.
func ReadObstacles(r io.Reader) ([]geo.Polygon, error) {
	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode obstacles: %w", err)
	}

	var out []geo.Polygon
	for i, f := range fc.Features {
		switch f.Geometry.Type {
		case "Polygon":
			var rings [][][2]float64
			if err := json.Unmarshal(f.Geometry.Coordinates, &rings); err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			if len(rings) > 0 {
				out = append(out, ring(rings[0]))
			}
		case "MultiPolygon":
			var polys [][][][2]float64
			if err := json.Unmarshal(f.Geometry.Coordinates, &polys); err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			for _, rings := range polys {
				if len(rings) > 0 {
					out = append(out, ring(rings[0]))
				}
			}
		}
	}
	return out, nil
}

// ReadObstaclesFile reads obstacle polygons from path.
func ReadObstaclesFile(path string) ([]geo.Polygon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadObstacles(f)
}

func ring(cs [][2]float64) geo.Polygon {
	pts := make([]geo.Point, 0, len(cs))
	for _, c := range cs {
		pts = append(pts, geo.Pt(c[0], c[1]))
	}
	if len(pts) > 1 && pts[0].Eq(pts[len(pts)-1]) {
		pts = pts[:len(pts)-1]
	}
	return geo.Polygon{Outer: pts}
}
