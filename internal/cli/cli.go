// Package cli implements the towerpack command-line interface.
//
// The CLI loads a project configuration, runs builds through
// [pipeline.Runner], and presents results with lipgloss styling. Commands:
//   - build: bundle the project into the output directory
//   - serve: run the development server with rebuild on request
//   - graph: export the module graph as DOT, SVG or JSON
//   - inspect: browse chunks and their modules interactively
//   - config: print the resolved configuration
//   - cache: manage the transform cache
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/towerpack/pkg/cache"
	"github.com/matzehuels/towerpack/pkg/config"
	"github.com/matzehuels/towerpack/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "towerpack"

	// memoryCacheSize bounds the in-process cache used by serve.
	memoryCacheSize = 8192
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

	// Persistent flags.
	configPath string
	redisURL   string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// =============================================================================
// Configuration
// =============================================================================

// loadConfig reads the configuration for the project in dir. An explicit
// --config path wins; otherwise the first towerpack.* file in dir is used,
// and without one the built-in defaults apply with dir as the project root.
// Environment overrides are applied last.
func (c *CLI) loadConfig(dir string) (*config.Config, error) {
	path := c.configPath
	if path == "" {
		path = config.Find(dir)
	}

	var cfg *config.Config
	if path == "" {
		cfg = config.Default()
		cfg.Context = dir
		c.Logger.Debug("no config file, using defaults", "dir", dir)
	} else {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
		c.Logger.Debug("loaded config", "path", path)
	}

	if err := config.ApplyEnv(cfg, cfg.Root()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// cacheStore selects the cache backing a runner.
type cacheStore int

const (
	storeNone   cacheStore = iota // caching disabled
	storeFile                     // persistent cache under cacheDir
	storeMemory                   // in-process LRU for long-running commands
)

// newRunner creates a pipeline runner for building cfg. A --cache-redis URL
// replaces the file and memory stores; its keys are scoped to the project
// root so projects sharing a server stay apart.
func (c *CLI) newRunner(ctx context.Context, cfg *config.Config, store cacheStore) (*pipeline.Runner, error) {
	cc, err := c.newCache(ctx, store)
	if err != nil {
		return nil, err
	}
	var keyer cache.Keyer
	if c.redisURL != "" && store != storeNone {
		keyer = cache.NewScopedKeyer(nil, "project:"+cache.Hash([]byte(cfg.Root()))[:12]+":")
	}
	return pipeline.NewRunner(cc, keyer, c.Logger), nil
}

func (c *CLI) newCache(ctx context.Context, store cacheStore) (cache.Cache, error) {
	switch {
	case store == storeNone:
		return cache.NewNullCache(), nil
	case c.redisURL != "":
		rc, err := cache.NewRedisCache(ctx, c.redisURL)
		if err != nil {
			return nil, fmt.Errorf("connect cache: %w", err)
		}
		return rc, nil
	case store == storeMemory:
		lru, err := cache.NewLRUCache(memoryCacheSize)
		if err != nil {
			return nil, err
		}
		return lru, nil
	}
	dir, err := cacheDir()
	if err != nil {
		c.Logger.Warn("cache disabled", "error", err)
		return cache.NewNullCache(), nil
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return nil, err
	}
	return fc, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/towerpack/).
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

// workDir returns the directory commands treat as the project directory.
func workDir(args []string) (string, error) {
	if len(args) > 0 {
		return filepath.Abs(args[0])
	}
	return os.Getwd()
}
