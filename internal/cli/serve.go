package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/octi/internal/server"
	"github.com/matzehuels/octi/pkg/pipeline"
)

// serveCommand creates the serve command that exposes layouts over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		config  string
		addr    string
		noCache bool
		cfg     server.Config
	)
	opts := pipeline.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve layouts over HTTP",
		Long: `Serve layouts over HTTP.

POST /v1/layout accepts {"graph": <GeoJSON>, "options": {...}} or
{"dot": "<DOT source>"} and answers with the embedded graph and its score.
The options given here and in --config are the defaults of every request.
Paths and external services can only be configured on the server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyConfig(cmd, &opts, config); err != nil {
				return err
			}
			opts.Logger = c.Logger
			if err := opts.ValidateAndSetDefaults(); err != nil {
				return err
			}

			ctx := cmd.Context()
			runner := c.newRunner(ctx, opts, noCache)
			defer runner.Close()

			srv := server.New(runner, opts, cfg, c.Logger)
			printInfo("Listening on %s", StyleHighlight.Render(addr))
			c.Logger.Info("serving", "addr", addr, "concurrent", cfg.MaxConcurrent, "timeout", cfg.Timeout)
			return server.ListenAndServe(ctx, addr, srv.Handler())
		},
	}

	cmd.Flags().StringVarP(&config, "config", "c", "", "JSON or TOML options file")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().Int64Var(&cfg.MaxConcurrent, "max-concurrent", server.DefaultMaxConcurrent, "layouts computed at once")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", server.DefaultTimeout, "per-request time limit")
	cmd.Flags().Int64Var(&cfg.MaxBody, "max-body", server.DefaultMaxBody, "largest request body in bytes")
	bindOptions(cmd, &opts)

	return cmd
}

