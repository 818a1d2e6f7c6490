package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/towerpack/pkg/config"
	"github.com/matzehuels/towerpack/pkg/devserver"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	host string
	port int
	mode string
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve [dir]",
		Short: "Build and serve the project for development",
		Long: `Serve builds the project once and serves the output directory over HTTP.
Trigger a rebuild with:

  curl -X POST http://localhost:1234/__towerpack/rebuild

Builds default to development mode. Transform results are cached in memory
across rebuilds, or in Redis with --cache-redis.`,
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
			applyServeFlags(cmd, cfg, opts)

			ctx := cmd.Context()
			runner, err := c.newRunner(ctx, cfg, storeMemory)
			if err != nil {
				return err
			}
			defer runner.Close()

			srv := devserver.New(devserver.Options{Config: cfg, Runner: runner, Logger: c.Logger})
			printInfo("Serving %s", StyleLink.Render("http://"+srv.Addr()))
			printNextStep("Rebuild", "curl -X POST http://"+srv.Addr()+devserver.RoutePrefix+"/rebuild")
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", config.DefaultDevHost, "listen host (overrides config)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", config.DefaultDevPort, "listen port (overrides config)")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", config.ModeDevelopment, "build mode: production or development")

	return cmd
}

// applyServeFlags overrides configuration values with explicitly set flags.
// The mode is always taken from the flag so that serve builds for
// development unless asked otherwise.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config, opts serveOpts) {
	if cmd.Flags().Changed("host") {
		cfg.DevServer.Host = opts.host
	}
	if cmd.Flags().Changed("port") {
		cfg.DevServer.Port = opts.port
	}
	cfg.Mode = opts.mode
}
