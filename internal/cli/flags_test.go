package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/matzehuels/octi/pkg/basegraph"
	"github.com/matzehuels/octi/pkg/pipeline"
	"github.com/matzehuels/octi/pkg/route"
)

// newFlagCommand returns a command with the embedding options bound, parsed
// from args.
func newFlagCommand(t *testing.T, opts *pipeline.Options, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	bindOptions(cmd, opts)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags(%v) = %v", args, err)
	}
	return cmd
}

func TestBindOptions(t *testing.T) {
	opts := pipeline.DefaultOptions()
	newFlagCommand(t, &opts,
		"--base-graph", "hexalinear",
		"--edge-order", "all",
		"-g", "50%",
		"--pen-45", "7",
		"--optim", "ilp",
		"--seed", "7",
	)

	if opts.BaseGraphType != basegraph.HexGrid {
		t.Errorf("BaseGraphType = %v, want %v", opts.BaseGraphType, basegraph.HexGrid)
	}
	if opts.EdgeOrderMethod != route.OrderAll {
		t.Errorf("EdgeOrderMethod = %v, want %v", opts.EdgeOrderMethod, route.OrderAll)
	}
	if opts.GridSize != "50%" {
		t.Errorf("GridSize = %q, want 50%%", opts.GridSize)
	}
	if opts.Pens.P45 != 7 {
		t.Errorf("Pens.P45 = %g, want 7", opts.Pens.P45)
	}
	if opts.OptimMode != pipeline.OptimILP || opts.Seed != 7 {
		t.Errorf("OptimMode, Seed = %q, %d, want ilp, 7", opts.OptimMode, opts.Seed)
	}
	if opts.Pens.P90 != pipeline.DefaultOptions().Pens.P90 {
		t.Errorf("unset flag changed Pens.P90 to %g", opts.Pens.P90)
	}
}

func TestBindOptionsRejectsUnknownType(t *testing.T) {
	opts := pipeline.DefaultOptions()
	cmd := &cobra.Command{Use: "test"}
	bindOptions(cmd, &opts)
	if err := cmd.ParseFlags([]string{"--base-graph", "triangular"}); err == nil {
		t.Error("ParseFlags(--base-graph triangular) = nil, want error")
	}
}

func TestApplyConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "octi.toml")
	config := `
gridSize = "80%"
optimRuns = 3
baseGraphType = "ortholinear"

[pens]
p_90 = 9.0
`
	if err := os.WriteFile(path, []byte(config), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := pipeline.DefaultOptions()
	cmd := newFlagCommand(t, &opts, "--runs", "5", "--pen-135", "4")
	if err := applyConfig(cmd, &opts, path); err != nil {
		t.Fatalf("applyConfig() = %v", err)
	}

	if opts.GridSize != "80%" {
		t.Errorf("GridSize = %q, want 80%% from file", opts.GridSize)
	}
	if opts.BaseGraphType != basegraph.Grid {
		t.Errorf("BaseGraphType = %v, want ortholinear from file", opts.BaseGraphType)
	}
	if opts.Pens.P90 != 9 {
		t.Errorf("Pens.P90 = %g, want 9 from file", opts.Pens.P90)
	}
	if opts.OptimRuns != 5 {
		t.Errorf("OptimRuns = %d, want 5 from flag", opts.OptimRuns)
	}
	if opts.Pens.P135 != 4 {
		t.Errorf("Pens.P135 = %g, want 4 from flag", opts.Pens.P135)
	}
}

func TestApplyConfigMissingFile(t *testing.T) {
	opts := pipeline.DefaultOptions()
	cmd := newFlagCommand(t, &opts)
	if err := applyConfig(cmd, &opts, filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("applyConfig(missing) = nil, want error")
	}
}

func TestRootCommand(t *testing.T) {
	root := New(os.Stderr, LogInfo).RootCommand()
	want := map[string]bool{"layout": false, "lp": false, "serve": false, "cache": false, "completion": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}
