package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/octi/pkg/pipeline"
)

// lpCommand creates the lp command that writes the exact optimization model
// of a line graph in LP format.
func (c *CLI) lpCommand() *cobra.Command {
	var (
		config string
		output string
		solve  bool
	)
	opts := pipeline.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "lp [input.geojson|-] -o model.lp",
		Short: "Write the ILP model of a line graph",
		Long: `Write the integer linear program that embeds a line graph, in CPLEX LP
format, for inspection or for solving with an external solver.

By default the model is only written. With --solve the configured solver is
run as well. A graph with several components gets one model per component,
numbered before the extension.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyConfig(cmd, &opts, config); err != nil {
				return err
			}
			input := "-"
			if len(args) == 1 {
				input = args[0]
			}
			opts.OptimMode = pipeline.OptimILP
			opts.ILPPath = output
			opts.ILPNoSolve = !solve
			return c.runLP(cmd.Context(), input, opts)
		},
	}

	cmd.Flags().StringVarP(&config, "config", "c", "", "JSON or TOML options file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "LP file to write")
	cmd.Flags().BoolVar(&solve, "solve", false, "also solve the model")
	_ = cmd.MarkFlagRequired("output")
	bindOptions(cmd, &opts)

	return cmd
}

func (c *CLI) runLP(ctx context.Context, input string, opts pipeline.Options) error {
	opts.Logger = c.Logger
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}
	g, err := pipeline.ParseFile(ctx, input, opts)
	if err != nil {
		return fmt.Errorf("load %s: %w", displayName(input), err)
	}

	runner := c.newRunner(ctx, opts, opts.ILPNoSolve)
	defer runner.Close()

	sp := spin(ctx, "Building ILP model...")
	res, err := runner.Execute(ctx, g, opts)
	if err != nil {
		sp.fail("Model failed")
		return fmt.Errorf("build model: %w", err)
	}
	sp.stop()

	printSuccess("Model written")
	for _, cr := range res.Components {
		printFile(componentPath(opts.ILPPath, cr.Index, len(res.Components) > 1))
	}
	if !opts.ILPNoSolve {
		printScore(res.Score, res.Baseline)
	}
	return nil
}
