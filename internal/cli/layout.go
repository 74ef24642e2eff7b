package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/octi/pkg/linegraph"
	"github.com/matzehuels/octi/pkg/pipeline"
	"github.com/matzehuels/octi/pkg/render/dot"
)

// layoutFlags are the layout command's flags that are not embedding options.
type layoutFlags struct {
	config  string
	output  string
	noCache bool
	dotOut  string
	svgOut  string
	lattice bool
}

// layoutCommand creates the layout command that embeds a line graph.
func (c *CLI) layoutCommand() *cobra.Command {
	var lf layoutFlags
	opts := pipeline.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "layout [input.geojson|-]",
		Short: "Embed a transit line graph into an octilinear grid",
		Long: `Embed a transit line graph into an octilinear grid.

The input is a GeoJSON FeatureCollection of stations (Point features) and
edges (LineString features carrying their lines), or a Graphviz DOT graph with
--from-dot. It is read from stdin when no file or "-" is given. The embedded
graph is written as GeoJSON to stdout or to --output.

Options may be given in a JSON or TOML file with --config; flags override the
file. Layouts and exact solutions are cached locally.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyConfig(cmd, &opts, lf.config); err != nil {
				return err
			}
			input := "-"
			if len(args) == 1 {
				input = args[0]
			}
			return c.runLayout(cmd.Context(), input, opts, lf)
		},
	}

	cmd.Flags().StringVarP(&lf.config, "config", "c", "", "JSON or TOML options file")
	cmd.Flags().StringVarP(&lf.output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&lf.noCache, "no-cache", false, "disable caching")
	cmd.Flags().StringVar(&lf.dotOut, "dot-out", "", "write the selected drawing as Graphviz DOT")
	cmd.Flags().StringVar(&lf.svgOut, "svg-out", "", "render the selected drawing to SVG")
	cmd.Flags().BoolVar(&lf.lattice, "lattice", false, "include unused lattice nodes and edges in --dot-out/--svg-out")
	bindOptions(cmd, &opts)

	return cmd
}

// runLayout parses the input, embeds it, and writes the result.
func (c *CLI) runLayout(ctx context.Context, input string, opts pipeline.Options, lf layoutFlags) error {
	opts.Logger = c.Logger
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}

	p := newProgress(c.Logger)
	g, err := pipeline.ParseFile(ctx, input, opts)
	if err != nil {
		return fmt.Errorf("load %s: %w", displayName(input), err)
	}
	p.done("parsed input", "nodes", g.NodeCount(), "edges", g.EdgeCount())

	runner := c.newRunner(ctx, opts, lf.noCache)
	defer runner.Close()

	sp := spin(ctx, fmt.Sprintf("Embedding into %s grid...", opts.BaseGraphType))

	res, cacheHit, err := runner.ExecuteWithCacheInfo(ctx, g, opts)
	if err != nil {
		sp.fail("Layout failed")
		return fmt.Errorf("embed: %w", err)
	}
	sp.stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if lf.output == "" {
		if err := linegraph.Write(os.Stdout, res.Graph); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	} else if err := linegraph.WriteFile(res.Graph, lf.output); err != nil {
		return fmt.Errorf("write output %s: %w", lf.output, err)
	}

	printSuccess("Layout complete")
	if lf.output != "" {
		printFile(lf.output)
	}
	printStats(g.NodeCount(), g.EdgeCount(), len(res.Components), cacheHit)
	printScore(res.Score, res.Baseline)

	if lf.dotOut != "" || lf.svgOut != "" {
		if cacheHit {
			printWarning("Cached layout has no drawing to export; rerun with --no-cache")
			return nil
		}
		if err := exportDrawings(ctx, res, lf); err != nil {
			return err
		}
	}
	return nil
}

// exportDrawings writes the DOT and SVG debug views of each component.
func exportDrawings(ctx context.Context, res *pipeline.Result, lf layoutFlags) error {
	multi := len(res.Components) > 1
	for _, cr := range res.Components {
		src := dot.ToDOT(cr.Drawing, dot.Options{Lattice: lf.lattice})
		if lf.dotOut != "" {
			path := componentPath(lf.dotOut, cr.Index, multi)
			if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			printFile(path)
		}
		if lf.svgOut != "" {
			svg, err := dot.RenderSVG(ctx, src)
			if err != nil {
				return fmt.Errorf("render SVG: %w", err)
			}
			path := componentPath(lf.svgOut, cr.Index, multi)
			if err := os.WriteFile(path, svg, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			printFile(path)
		}
	}
	return nil
}

// componentPath inserts the component index before the extension when a run
// has several components.
func componentPath(path string, comp int, multi bool) string {
	if !multi {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s.%d%s", strings.TrimSuffix(path, ext), comp, ext)
}

func displayName(input string) string {
	if input == "" || input == "-" {
		return "stdin"
	}
	return input
}
