package linegraph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/natefinch/atomic"

	"github.com/matzehuels/octi/pkg/geo"
)

// featureCollection is the GeoJSON envelope used for input and output.
type featureCollection struct {
	Type       string         `json:"type"`
	Features   []feature      `json:"features"`
	Properties map[string]any `json:"properties,omitempty"`
}

type feature struct {
	Type       string          `json:"type"`
	Geometry   geometry        `json:"geometry"`
	Properties json.RawMessage `json:"properties"`
}

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type nodeProps struct {
	ID           string `json:"id"`
	StationID    string `json:"station_id,omitempty"`
	StationLabel string `json:"station_label,omitempty"`
}

type edgeProps struct {
	ID    string `json:"id,omitempty"`
	From  string `json:"from"`
	To    string `json:"to"`
	Lines []Line `json:"lines"`
}

// Read decodes a GeoJSON feature collection. Point features become nodes,
// LineString features become edges; other geometry types are ignored.
// Nodes are added before edges regardless of feature order.
func Read(r io.Reader) (*Graph, error) {
	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	if fc.Type != "" && fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("decode geojson: unexpected type %q", fc.Type)
	}

	g := New()
	g.Props = fc.Properties
	var edges []Edge
	for i, f := range fc.Features {
		switch f.Geometry.Type {
		case "Point":
			var c [2]float64
			if err := json.Unmarshal(f.Geometry.Coordinates, &c); err != nil {
				return nil, fmt.Errorf("feature %d: point coordinates: %w", i, err)
			}
			var p nodeProps
			if err := json.Unmarshal(f.Properties, &p); err != nil {
				return nil, fmt.Errorf("feature %d: properties: %w", i, err)
			}
			if err := g.AddNode(Node{
				ID:           p.ID,
				Pos:          geo.Pt(c[0], c[1]),
				StationID:    p.StationID,
				StationLabel: p.StationLabel,
			}); err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
		case "LineString":
			var cs [][2]float64
			if err := json.Unmarshal(f.Geometry.Coordinates, &cs); err != nil {
				return nil, fmt.Errorf("feature %d: line coordinates: %w", i, err)
			}
			var p edgeProps
			if err := json.Unmarshal(f.Properties, &p); err != nil {
				return nil, fmt.Errorf("feature %d: properties: %w", i, err)
			}
			geom := make([]geo.Point, len(cs))
			for j, c := range cs {
				geom[j] = geo.Pt(c[0], c[1])
			}
			edges = append(edges, Edge{ID: p.ID, From: p.From, To: p.To, Lines: p.Lines, Geom: geom})
		}
	}
	for _, e := range edges {
		if err := g.AddEdge(e); err != nil {
			return nil, fmt.Errorf("edge %s: %w", e.ID, err)
		}
	}
	return g, nil
}

// ReadFile reads a GeoJSON line graph from path.
func ReadFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Write encodes g as an indented GeoJSON feature collection.
func Write(w io.Writer, g *Graph) error {
	fc := featureCollection{Type: "FeatureCollection", Properties: g.Props}
	for _, n := range g.Nodes() {
		f, err := makeFeature("Point", [2]float64{n.Pos.X, n.Pos.Y}, nodeProps{
			ID:           n.ID,
			StationID:    n.StationID,
			StationLabel: n.StationLabel,
		})
		if err != nil {
			return err
		}
		fc.Features = append(fc.Features, f)
	}
	for _, e := range g.edges {
		pl := g.Polyline(e)
		cs := make([][2]float64, len(pl))
		for i, p := range pl {
			cs[i] = [2]float64{p.X, p.Y}
		}
		props := map[string]any{
			"id":    e.ID,
			"from":  e.From,
			"to":    e.To,
			"lines": e.Lines,
		}
		for k, v := range e.Props {
			props[k] = v
		}
		f, err := makeFeature("LineString", cs, props)
		if err != nil {
			return err
		}
		fc.Features = append(fc.Features, f)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(fc)
}

// WriteFile writes g to path as GeoJSON. The file is replaced atomically, so
// readers never see a partial graph.
func WriteFile(g *Graph, path string) error {
	var buf bytes.Buffer
	if err := Write(&buf, g); err != nil {
		return err
	}
	return atomic.WriteFile(path, &buf)
}

func makeFeature(typ string, coords, props any) (feature, error) {
	c, err := json.Marshal(coords)
	if err != nil {
		return feature{}, err
	}
	p, err := json.Marshal(props)
	if err != nil {
		return feature{}, err
	}
	return feature{
		Type:       "Feature",
		Geometry:   geometry{Type: typ, Coordinates: c},
		Properties: p,
	}, nil
}
