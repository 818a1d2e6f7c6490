package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/towerpack/pkg/chunk"
	"github.com/matzehuels/towerpack/pkg/config"
	"github.com/matzehuels/towerpack/pkg/deps"
	pkgio "github.com/matzehuels/towerpack/pkg/io"
	"github.com/matzehuels/towerpack/pkg/render"
)

// Graph output formats.
const (
	formatDOT  = "dot"
	formatSVG  = "svg"
	formatJSON = "json"
)

// graphOpts holds the command-line flags for the graph command.
type graphOpts struct {
	format   string // output format: dot, svg or json
	output   string // output file (stdout if empty)
	stats    string // read the graph from a stats file instead of building
	chunks   bool   // cluster modules by chunk
	detailed bool   // show kinds, sizes, errors and specifiers
}

// graphCommand creates the graph command.
func (c *CLI) graphCommand() *cobra.Command {
	opts := graphOpts{format: formatDOT, chunks: true}

	cmd := &cobra.Command{
		Use:   "graph [dir]",
		Short: "Export the module graph as DOT, SVG or JSON",
		Long: `Graph resolves and transforms the project without writing bundles, then
prints its module graph. With --stats the graph is read from a file written by
'towerpack build --stats' instead.`,
		Example: `  towerpack graph | dot -Tpng > graph.png
  towerpack graph --format svg -o graph.svg
  towerpack graph --stats stats.json --format svg -o graph.svg`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateGraphFormat(opts.format); err != nil {
				return err
			}
			dir, err := workDir(args)
			if err != nil {
				return err
			}
			return c.runGraph(cmd.Context(), dir, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: dot, svg, json")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().StringVar(&opts.stats, "stats", "", "read the graph from a stats `file`")
	cmd.Flags().BoolVar(&opts.chunks, "chunks", opts.chunks, "group modules by chunk")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show module details and import specifiers")

	return cmd
}

// validateGraphFormat checks that format is one of the supported formats.
func validateGraphFormat(format string) error {
	switch format {
	case formatDOT, formatSVG, formatJSON:
		return nil
	}
	return fmt.Errorf("invalid format: %s (must be 'dot', 'svg', or 'json')", format)
}

func (c *CLI) runGraph(ctx context.Context, dir string, opts graphOpts) error {
	cfg, err := c.loadConfig(dir)
	if err != nil {
		return err
	}

	var stats *pkgio.Stats
	var g *deps.Graph
	var plan *chunk.Plan
	if opts.stats != "" {
		stats, g, plan, err = graphFromStats(opts.stats, cfg)
	} else {
		stats, g, plan, err = c.graphFromBuild(ctx, cfg)
	}
	if err != nil {
		return err
	}

	var data []byte
	switch opts.format {
	case formatJSON:
		var buf bytes.Buffer
		if err := pkgio.WriteJSON(stats, &buf); err != nil {
			return err
		}
		data = buf.Bytes()
	default:
		ropts := render.Options{Detailed: opts.detailed}
		if opts.chunks {
			ropts.Chunks = plan
		}
		dot := render.ToDOT(g, ropts)
		data = []byte(dot)
		if opts.format == formatSVG {
			if data, err = render.RenderSVG(ctx, dot); err != nil {
				return err
			}
		}
	}
	return writeOutput(opts.output, data)
}

// graphFromStats loads a stats file and re-splits its graph with the
// configured chunk policies.
func graphFromStats(path string, cfg *config.Config) (*pkgio.Stats, *deps.Graph, *chunk.Plan, error) {
	stats, err := pkgio.ImportJSON(path)
	if err != nil {
		return nil, nil, nil, err
	}
	g, err := stats.Graph()
	if err != nil {
		return nil, nil, nil, err
	}
	policies, err := chunk.PoliciesFromConfig(cfg.WithDefaults().ChunkPolicies)
	if err != nil {
		return nil, nil, nil, err
	}
	plan, err := chunk.Split(g, policies)
	if err != nil {
		return nil, nil, nil, err
	}
	return stats, g, plan, nil
}

func (c *CLI) graphFromBuild(ctx context.Context, cfg *config.Config) (*pkgio.Stats, *deps.Graph, *chunk.Plan, error) {
	runner, err := c.newRunner(ctx, cfg, storeFile)
	if err != nil {
		return nil, nil, nil, err
	}
	defer runner.Close()

	res, err := runner.Plan(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, e := range res.Errors {
		c.Logger.Warn("module error", "error", e)
	}
	stats := pkgio.FromBuild(res.Graph, res.Plan, nil)
	stats.BuildID = res.BuildID
	stats.Mode = res.Config.Mode
	return stats, res.Graph, res.Plan, nil
}

// writeOutput writes data to path, or to stdout when path is empty.
func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	printSuccess("Wrote %s", path)
	return nil
}
