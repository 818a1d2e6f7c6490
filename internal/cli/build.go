package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/towerpack/pkg/config"
	pkgio "github.com/matzehuels/towerpack/pkg/io"
	"github.com/matzehuels/towerpack/pkg/pipeline"
)

// buildOpts holds the command-line flags for the build command.
type buildOpts struct {
	mode    string // overrides the configured mode when set
	output  string // overrides the configured output directory when set
	clean   bool   // empty the output directory first
	noCache bool   // disable the transform cache
	stats   string // write module graph stats JSON to this path
}

// buildCommand creates the build command.
func (c *CLI) buildCommand() *cobra.Command {
	var opts buildOpts

	cmd := &cobra.Command{
		Use:   "build [dir]",
		Short: "Bundle the project into the output directory",
		Long: `Build resolves every module reachable from the configured entries, transforms
them, splits them into chunks and writes the bundles and manifest.json.

Errors in individual modules do not stop the build: the bundle is written with
the failing modules replaced by code that throws when loaded, every error is
listed, and the command exits with a non-zero status.`,
		Example: `  towerpack build
  towerpack build --mode development --no-cache
  towerpack build ./web --stats stats.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := workDir(args)
			if err != nil {
				return err
			}
			cfg, err := c.loadConfig(dir)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("clean") {
				cfg.Clean = opts.clean
			}
			return c.runBuild(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "build mode: production or development")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output directory (overrides config)")
	cmd.Flags().BoolVar(&opts.clean, "clean", false, "remove previous output before writing")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the transform cache")
	cmd.Flags().StringVar(&opts.stats, "stats", "", "write module graph stats JSON to `file`")

	return cmd
}

// applyBuildFlags overrides configuration values with non-empty flags.
func applyBuildFlags(cfg *config.Config, opts buildOpts) {
	if opts.mode != "" {
		cfg.Mode = opts.mode
	}
	if opts.output != "" {
		cfg.OutputDir = opts.output
	}
}

func (c *CLI) runBuild(ctx context.Context, cfg *config.Config, opts buildOpts) error {
	applyBuildFlags(cfg, opts)

	store := storeFile
	if opts.noCache {
		store = storeNone
	}
	runner, err := c.newRunner(ctx, cfg, store)
	if err != nil {
		return err
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, "Building...")
	spinner.Start()
	res, err := runner.Build(ctx, cfg)
	spinner.Stop()
	if err != nil {
		return err
	}

	printBuildResult(res)

	if opts.stats != "" {
		prog := newProgress(c.Logger)
		if err := pkgio.ExportJSON(pkgio.FromBuild(res.Graph, res.Plan, res.Manifest), opts.stats); err != nil {
			return fmt.Errorf("write stats: %w", err)
		}
		prog.done("Wrote " + opts.stats)
	}

	if res.Failed() {
		return fmt.Errorf("build finished with %d module error(s)", len(res.Errors))
	}
	return nil
}

// printBuildResult reports written files, warnings and module errors.
func printBuildResult(res *pipeline.Result) {
	outDir := res.Config.OutputPath()
	if res.Failed() {
		printWarning("Built with errors into %s", outDir)
	} else {
		printSuccess("Built %s", outDir)
	}
	printStats(res.Stats, res.Config.Mode)
	for _, f := range res.Files {
		printFile(fmt.Sprintf("%-40s %s", f.Path, formatBytes(f.Size)))
	}
	for _, w := range res.Warnings {
		printWarning("%s", w)
	}
	for _, e := range res.Errors {
		printError("%v", e)
	}
}
