package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/octi/pkg/buildinfo"
	"github.com/matzehuels/octi/pkg/cache"
	"github.com/matzehuels/octi/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "octi"

	// lruSize is the number of entries kept in memory in front of the
	// directory or redis cache.
	lruSize = 256
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "octi",
		Short: "octi draws transit networks as octilinear schematic maps",
		Long: `octi embeds a geographic transit line graph into an octilinear (or
orthogonal, hexalinear, orthoradial) grid, producing a schematic map with
few bends, little displacement and no crossings at stations.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.lpCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, opts pipeline.Options, noCache bool) *pipeline.Runner {
	cc, keyer := c.newCache(ctx, opts, noCache)
	return pipeline.NewRunner(cc, keyer, c.Logger)
}

// newCache opens the solution and layout cache: redis when an address is
// configured, else the cache directory, fronted by an in-memory LRU. Keys in
// a shared redis are prefixed with the application name.
func (c *CLI) newCache(ctx context.Context, opts pipeline.Options, noCache bool) (cache.Cache, cache.Keyer) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	if opts.CacheRedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{Addr: opts.CacheRedisAddr})
		if err != nil {
			c.Logger.Warn("redis cache unavailable, caching disabled", "addr", opts.CacheRedisAddr, "err", err)
			return cache.NewNullCache(), nil
		}
		return cache.NewLRUCache(rc, lruSize), cache.NewScopedKeyer(nil, appName+":")
	}
	dir, err := resolveCacheDir(opts.ILPCacheDir)
	if err != nil {
		return cache.NewNullCache(), nil
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		c.Logger.Warn("cache directory unavailable, caching disabled", "dir", dir, "err", err)
		return cache.NewNullCache(), nil
	}
	return cache.NewLRUCache(fc, lruSize), nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/octi/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// resolveCacheDir maps the configured ilpCacheDir to a directory. The
// default "." stands for the user cache directory.
func resolveCacheDir(dir string) (string, error) {
	if dir == "" || dir == pipeline.DefaultILPCacheDir {
		return cacheDir()
	}
	return dir, nil
}
