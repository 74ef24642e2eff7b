package dot

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/octi/pkg/route"
)

// Options configures DOT export.
type Options struct {
	// Lattice includes every open lattice node and edge. When false, only
	// the nodes and edges used by the drawing are written.
	Lattice bool

	// Width is the width of the drawing in inches. Zero means 10.
	Width float64
}

const defaultWidth = 10

// ToDOT converts a drawing to Graphviz DOT source with pinned positions.
func ToDOT(d *route.Drawing, opts Options) string {
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	base := d.Base
	bb := base.Node(0).Pos
	minX, minY, maxX := bb.X, bb.Y, bb.X
	for i := range base.NumNodes() {
		p := base.Node(i).Pos
		minX, minY, maxX = min(minX, p.X), min(minY, p.Y), max(maxX, p.X)
	}
	scale := 1.0
	if maxX > minX {
		scale = opts.Width * 72 / (maxX - minX)
	}

	used := make(map[int]bool)
	for _, p := range d.Paths {
		if p == nil {
			continue
		}
		for _, n := range p.Nodes {
			used[n] = true
		}
	}
	stations := make(map[int]string)
	for c, n := range d.Settled {
		if n >= 0 {
			used[n] = true
			stations[n] = d.Comb.Nodes[c].Input.ID
		}
	}

	var buf bytes.Buffer
	buf.WriteString("graph G {\n")
	buf.WriteString("  layout=neato;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=point, width=0.04, color=grey70];\n")
	buf.WriteString("  edge [color=grey85];\n")
	buf.WriteString("\n")

	for i := range base.NumNodes() {
		n := base.Node(i)
		if n.Closed || (!opts.Lattice && !used[i]) {
			continue
		}
		pos := fmt.Sprintf("pos=\"%s,%s!\"", fmtFloat((n.Pos.X-minX)*scale), fmtFloat((n.Pos.Y-minY)*scale))
		attrs := []string{pos}
		if name, ok := stations[i]; ok {
			attrs = append(attrs, "shape=circle", "width=0.15", "style=filled", "fillcolor=white", "color=black",
				"label=\"\"", fmt.Sprintf("xlabel=%q", name))
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", nodeName(i), strings.Join(attrs, ", "))
	}

	if opts.Lattice {
		buf.WriteString("\n")
		for i := range base.NumEdges() {
			e := base.Edge(i)
			if base.Blocked(i) || base.Node(e.A).Closed || base.Node(e.B).Closed {
				continue
			}
			fmt.Fprintf(&buf, "  %q -- %q;\n", nodeName(e.A), nodeName(e.B))
		}
	}

	buf.WriteString("\n")
	for _, p := range d.Paths {
		if p == nil {
			continue
		}
		attrs := fmt.Sprintf("color=%q, penwidth=3", pathColor(d, p.Edge))
		if p.Relaxed {
			attrs += ", style=dashed"
		}
		for i := 1; i < len(p.Nodes); i++ {
			fmt.Fprintf(&buf, "  %q -- %q [%s];\n", nodeName(p.Nodes[i-1]), nodeName(p.Nodes[i]), attrs)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeName(n int) string { return "g" + strconv.Itoa(n) }

func fmtFloat(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

// pathColor returns the color of the first line on comb edge e.
func pathColor(d *route.Drawing, e int) string {
	lines := d.Comb.Edges[e].Lines
	if len(lines) == 0 || lines[0].Color == "" {
		return "black"
	}
	c := lines[0].Color
	if !strings.HasPrefix(c, "#") && hexColor.MatchString(c) {
		c = "#" + c
	}
	return c
}

var hexColor = regexp.MustCompile(`^[0-9a-fA-F]{6}$`)

// RenderSVG renders DOT source to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
