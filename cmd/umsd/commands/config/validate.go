package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/umsd/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the umsd configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  umsd config validate

  # Validate specific config file
  umsd config validate --config /etc/umsd/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	for i, u := range cfg.Storage.Units {
		if u.Type == config.BackendMemory {
			warnings = append(warnings, fmt.Sprintf("unit %d is memory-backed; its contents are lost on restart", i))
		}
		if u.Type == config.BackendS3 && u.S3.AccessKeyID != "" {
			warnings = append(warnings, fmt.Sprintf("unit %d stores S3 credentials in the config file", i))
		}
	}
	if cfg.Storage.Watch {
		watched := 0
		for _, u := range cfg.Storage.Units {
			if u.Type == config.BackendFile {
				watched++
			}
		}
		if watched == 0 {
			warnings = append(warnings, "storage.watch is set but no unit is file-backed")
		}
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  Device:        %s\n", cfg.Service.DeviceName)
	_, _ = fmt.Fprintf(out, "  Socket:        %s\n", cfg.Service.SocketPath)
	_, _ = fmt.Fprintf(out, "  Units:         %d\n", len(cfg.Storage.Units))
	_, _ = fmt.Fprintf(out, "  Queue depth:   %d\n", cfg.Service.QueueDepth)
	_, _ = fmt.Fprintf(out, "  Log level:     %s\n", cfg.Logging.Level)

	return nil
}
