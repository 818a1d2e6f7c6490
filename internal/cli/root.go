package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/towerpack/pkg/buildinfo"
)

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Towerpack bundles JavaScript, CSS and assets for the browser",
		Long:         `Towerpack resolves a project's module graph from its entry points, transforms each module, splits the result into content-hashed chunks and writes them with a manifest.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config `file` (default: towerpack.{toml,yaml,json} in the project dir)")
	root.PersistentFlags().StringVar(&c.redisURL, "cache-redis", "", "share the build cache through Redis at `url` (redis://host:port/db)")

	// Register all subcommands
	root.AddCommand(c.buildCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}
