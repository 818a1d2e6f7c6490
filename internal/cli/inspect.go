package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/towerpack/pkg/emit"
)

// inspectCommand creates the inspect command.
func (c *CLI) inspectCommand() *cobra.Command {
	var build bool

	cmd := &cobra.Command{
		Use:   "inspect [dir]",
		Short: "Browse chunks and their modules interactively",
		Long: `Inspect computes the chunk plan for the project and opens an interactive
browser listing every chunk with its policy, entry and modules. Output file
names are taken from the last build's manifest, or from a fresh build with
--build.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dir, err := workDir(args)
			if err != nil {
				return err
			}
			cfg, err := c.loadConfig(dir)
			if err != nil {
				return err
			}
			runner, err := c.newRunner(ctx, cfg, storeFile)
			if err != nil {
				return err
			}
			defer runner.Close()

			spinner := newSpinnerWithContext(ctx, "Analyzing...")
			spinner.Start()
			run := runner.Plan
			if build {
				run = runner.Build
			}
			res, err := run(ctx, cfg)
			spinner.Stop()
			if err != nil {
				return err
			}

			files := map[string]string{}
			if res.Manifest != nil {
				files = res.Manifest.Chunks
			} else if m, err := emit.ReadManifest(res.Config.OutputPath()); err == nil {
				files = m.Chunks
			}

			model := NewChunkListModel(res.Graph, res.Plan, files)
			if _, err := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen()).Run(); err != nil {
				return fmt.Errorf("inspect: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&build, "build", false, "build before inspecting")

	return cmd
}
