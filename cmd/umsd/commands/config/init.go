package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/umsd/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file with every default value filled in.

Examples:
  # Write $XDG_CONFIG_HOME/umsd/config.yaml
  umsd config init

  # Write to a specific path, replacing an existing file
  umsd config init --config /etc/umsd/config.yaml --force`,
	RunE: runConfigInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	var err error
	if configPath == "" {
		configPath, err = config.InitConfig(initForce)
	} else {
		err = config.InitConfigToPath(configPath, initForce)
	}
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", configPath)
	return nil
}
