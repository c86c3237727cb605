package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/umsd/internal/cli/output"
	"github.com/marmos91/umsd/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective umsd configuration with defaults applied.

By default outputs YAML format. Use --output to change format.

Examples:
  # Show default config as YAML
  umsd config show

  # Show as JSON
  umsd config show --output json`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		format = output.FormatYAML
	}

	return output.NewPrinter(cmd.OutOrStdout(), format, false).Print(cfg)
}
