// Package commands implements the CLI commands of the umsd daemon.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/umsd/cmd/umsd/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "umsd",
	Short: "umsd - USB mass-storage and WBFS driver service",
	Long: `umsd serves a USB mass-storage device and the WBFS disc images stored
on it to client processes through a single-threaded request loop.

Clients connect to a unix socket and speak the IOS-style OPEN / CLOSE /
IOCTLV protocol; storage is provided by memory, file, S3 or badger backends.

Use "umsd [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/umsd/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(config.Cmd)
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
