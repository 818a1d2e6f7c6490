package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/towerpack/pkg/config"
)

// configCommand creates the config command.
func (c *CLI) configCommand() *cobra.Command {
	format := config.FormatTOML

	cmd := &cobra.Command{
		Use:   "config [dir]",
		Short: "Print the resolved configuration",
		Long: `Config prints the configuration a build in dir would use: the config file
(or the built-in defaults) with environment overrides applied and every unset
option filled in. The output is a valid config file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case config.FormatTOML, config.FormatYAML, config.FormatJSON:
			default:
				return fmt.Errorf("invalid format: %s (must be 'toml', 'yaml', or 'json')", format)
			}
			dir, err := workDir(args)
			if err != nil {
				return err
			}
			cfg, err := c.loadConfig(dir)
			if err != nil {
				return err
			}
			cfg.WithDefaults()
			if err := cfg.Validate(); err != nil {
				return err
			}
			return config.Encode(os.Stdout, cfg, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", format, "output format: toml, yaml, json")

	return cmd
}
